package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sethvargo/go-envconfig"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/jdholdren/podwatch/internal/catalog"
	"github.com/jdholdren/podwatch/internal/logger"
	"github.com/jdholdren/podwatch/internal/sqlite"
	"github.com/jdholdren/podwatch/internal/sync"
	"github.com/jdholdren/podwatch/internal/tracker"
	podworker "github.com/jdholdren/podwatch/internal/worker"
)

type config struct {
	Database         string `env:"DATABASE, required"`
	TemporalHostPort string `env:"TEMPORAL_HOST_PORT, required"`

	Namespace    string        `env:"TEMPORAL_NAMESPACE, default=default"`
	LoggerFormat string        `env:"LOGGER_FORMAT, default=text"`
	Timezone     string        `env:"TIMEZONE, default=Local"`
	Catalog      string        `env:"CATALOG"`
	PollEvery    time.Duration `env:"POLL_EVERY, default=15m"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT, default=10s"`
	FetchRetries uint64        `env:"FETCH_RETRIES, default=2"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.LoggerFormat, slog.LevelInfo))

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("error loading timezone: %s", err)
	}

	dbx, err := sqlite.Open(cfg.Database)
	if err != nil {
		log.Fatalf("error opening database: %s", err)
	}
	defer dbx.Close()
	repo := sqlite.New(dbx)

	cat, err := catalog.FromPath(cfg.Catalog)
	if err != nil {
		log.Fatalf("error loading catalog: %s", err)
	}
	if _, err := catalog.Seed(ctx, repo, cat); err != nil {
		log.Fatalf("error seeding shows: %s", err)
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHostPort,
		Namespace: cfg.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalln("Unable to create Temporal client:", err)
	}
	defer c.Close()

	if err := podworker.EnsureNamespace(ctx, c.WorkflowService(), cfg.Namespace); err != nil {
		log.Fatalf("error ensuring namespace: %s", err)
	}

	fetcher := sync.New(sync.Config{
		Timeout: cfg.FetchTimeout,
		Retries: cfg.FetchRetries,
	})
	trk := tracker.New(fetcher, repo, nil, tracker.Config{Location: loc})

	w, err := podworker.NewWorker(ctx, repo, trk, c, cfg.PollEvery)
	if err != nil {
		log.Fatalf("error creating worker: %s", err)
	}

	slog.Info("starting worker", "task_queue", podworker.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("error running worker: %s", err)
	}
}
