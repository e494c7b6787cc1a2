package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/jdholdren/podwatch/internal/catalog"
	"github.com/jdholdren/podwatch/internal/logger"
	"github.com/jdholdren/podwatch/internal/sqlite"
	"github.com/jdholdren/podwatch/internal/sync"
)

// Flag defaults come from the same environment the servers read.
type config struct {
	Database     string        `env:"DATABASE, default=podwatch.db"`
	Timezone     string        `env:"TIMEZONE, default=Local"`
	Catalog      string        `env:"CATALOG"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT, default=10s"`
	FetchRetries uint64        `env:"FETCH_RETRIES, default=2"`
}

type commandContext struct {
	config
	verbose bool
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}
	if err := envconfig.Process(context.Background(), &ctx.config); err != nil {
		slog.Warn("error reading environment", "error", err)
	}

	root := &cobra.Command{
		Use:           "podwatchctl",
		Short:         "Track weekly podcast and channel releases",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if ctx.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(logger.New(cmd.ErrOrStderr(), "text", level))
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&ctx.Database, "database", ctx.Database, "path to the sqlite database")
	flags.StringVar(&ctx.Timezone, "timezone", ctx.Timezone, "location week boundaries are computed in")
	flags.StringVar(&ctx.Catalog, "catalog", ctx.Catalog, "shows catalog to seed from, the built in one if empty")
	flags.BoolVarP(&ctx.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newShowsCommand(ctx),
		newResolveCommand(ctx),
		newSyncCommand(ctx),
	)

	return root
}

func (c *commandContext) location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	return loc, nil
}

func (c *commandContext) fetcher() *sync.Client {
	return sync.New(sync.Config{
		Timeout: c.FetchTimeout,
		Retries: c.FetchRetries,
	})
}

// withStore opens and seeds the database for the duration of fn.
func (c *commandContext) withStore(ctx context.Context, fn func(repo sqlite.Repo) error) error {
	dbx, err := sqlite.Open(c.Database)
	if err != nil {
		return err
	}
	defer dbx.Close()
	repo := sqlite.New(dbx)

	cat, err := catalog.FromPath(c.Catalog)
	if err != nil {
		return err
	}
	if _, err := catalog.Seed(ctx, repo, cat); err != nil {
		return fmt.Errorf("seed shows: %w", err)
	}

	return fn(repo)
}
