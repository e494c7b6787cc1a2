package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	"go.temporal.io/sdk/client"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/jdholdren/podwatch/internal/api"
	"github.com/jdholdren/podwatch/internal/catalog"
	"github.com/jdholdren/podwatch/internal/logger"
	"github.com/jdholdren/podwatch/internal/sqlite"
	"github.com/jdholdren/podwatch/internal/sync"
	"github.com/jdholdren/podwatch/internal/tracker"
	"github.com/jdholdren/podwatch/internal/worker"
)

type config struct {
	Database string `env:"DATABASE, required"`

	Port         int           `env:"PORT, default=4444"`
	LoggerFormat string        `env:"LOGGER_FORMAT, default=text"`
	Timezone     string        `env:"TIMEZONE, default=Local"`
	Catalog      string        `env:"CATALOG"`
	PollSchedule string        `env:"POLL_SCHEDULE"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT, default=10s"`
	FetchRetries uint64        `env:"FETCH_RETRIES, default=2"`
	CorsOrigin   string        `env:"CORS_ORIGIN, default=*"`

	// When set, backfills run as workflows on the cluster.
	TemporalHostPort string `env:"TEMPORAL_HOST_PORT"`
}

func main() {
	ctx := context.Background()

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

	// Make sure every configured show exists
	cat, err := catalog.FromPath(cfg.Catalog)
	if err != nil {
		log.Fatalf("error loading catalog: %s", err)
	}
	if _, err := catalog.Seed(ctx, repo, cat); err != nil {
		log.Fatalf("error seeding shows: %s", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	fetcher := sync.New(sync.Config{
		Timeout:  cfg.FetchTimeout,
		Retries:  cfg.FetchRetries,
		CacheTTL: time.Minute,
	})
	trk := tracker.New(fetcher, repo, tracker.NewMetrics(reg), tracker.Config{Location: loc})

	var backfiller api.Backfiller = trk
	if cfg.TemporalHostPort != "" {
		c, err := dialTemporal(ctx, cfg.TemporalHostPort)
		if err != nil {
			log.Fatalln("Unable to create Temporal client:", err)
		}
		defer c.Close()
		backfiller = worker.Dispatcher{Client: c}
	}

	srv := api.NewServer(api.ServerConfig{
		Port:       cfg.Port,
		CorsOrigin: cfg.CorsOrigin,
		Location:   loc,
	}, repo, backfiller, reg)

	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	g.Add(func() error {
		slog.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}
	})

	// The in-process poller is for running without a temporal cluster
	if cfg.PollSchedule != "" {
		poller, err := tracker.NewPoller(trk, cfg.PollSchedule, loc)
		if err != nil {
			log.Fatalf("error creating poller: %s", err)
		}

		pollCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return poller.Run(pollCtx)
		}, func(error) {
			cancel()
		})
	}

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		slog.Info("shutting down", "signal", sigErr.Signal)
		return
	}
	if err != nil {
		log.Fatalf("error running: %s", err)
	}
}

// Retry until temporal is ready
func dialTemporal(ctx context.Context, hostPort string) (client.Client, error) {
	var c client.Client
	err := retry.Do(ctx, retry.WithMaxRetries(10, retry.NewFibonacci(time.Second)), func(ctx context.Context) error {
		cli, err := client.Dial(client.Options{
			HostPort: hostPort,
			Logger:   slog.Default(),
		})
		if err != nil {
			slog.Warn("temporal not ready", "error", err)
			return retry.RetryableError(err)
		}
		c = cli

		return nil
	})

	return c, err
}
