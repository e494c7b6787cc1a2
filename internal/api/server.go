package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	podwatcherrs "github.com/jdholdren/podwatch/internal/errors"
	"github.com/jdholdren/podwatch/internal/freshness"
	"github.com/jdholdren/podwatch/internal/podwatch"
	"github.com/jdholdren/podwatch/internal/serverutil"
	"github.com/jdholdren/podwatch/internal/tracker"
)

type (
	// Server is the HTTP face of the tracker: it lists shows with their
	// freshness, takes new shows and ratings, and exposes metrics.
	Server struct {
		*http.Server

		repo       podwatch.Repository
		evaluator  freshness.Evaluator
		backfiller Backfiller
	}

	ServerConfig struct {
		Port       int
		CorsOrigin string
		// Location is where week boundaries are computed.
		Location *time.Location
		// Now overrides the clock, for tests.
		Now func() time.Time
	}

	// Backfiller loads a show's whole history. Either the tracker itself or a
	// temporal dispatcher.
	Backfiller interface {
		Backfill(ctx context.Context, showID string) (tracker.Report, error)
	}
)

func NewServer(config ServerConfig, repo podwatch.Repository, backfiller Backfiller, gatherer prometheus.Gatherer) *Server {
	r := serverutil.ErrRouter{Router: mux.NewRouter()}

	evaluator := freshness.New(config.Location)
	if config.Now != nil {
		evaluator = freshness.NewWithClock(config.Location, config.Now)
	}

	srvr := Server{
		repo:       repo,
		evaluator:  evaluator,
		backfiller: backfiller,
		Server: &http.Server{
			Addr:        fmt.Sprintf(":%d", config.Port),
			ReadTimeout: 5 * time.Second,
			// Adding a show waits on its backfill.
			WriteTimeout: 2 * time.Minute,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsOrigin}),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type"}),
			)(r),
		},
	}

	r.Use(serverutil.AccessLogMiddleware) // Log everything

	// Shows
	r.HandleFuncE("/api/shows", srvr.getShows).Methods(http.MethodGet)
	r.HandleFuncE("/api/shows", srvr.postShows).Methods(http.MethodPost)
	r.HandleFuncE("/api/shows/{showID}", srvr.patchShow).Methods(http.MethodPatch)
	r.HandleFuncE("/api/shows/{showID}", srvr.deleteShow).Methods(http.MethodDelete)
	r.HandleFuncE("/api/shows/{showID}/episodes", srvr.getEpisodes).Methods(http.MethodGet)
	r.HandleFuncE("/api/shows/{showID}/sync", srvr.postSync).Methods(http.MethodPost)

	// Ratings
	r.HandleFuncE("/api/ratings", srvr.putRating).Methods(http.MethodPut)
	r.HandleFuncE("/api/ratings", srvr.deleteRating).Methods(http.MethodDelete)

	r.HandleFuncE("/api/stats", srvr.getStats).Methods(http.MethodGet)

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	slog.Debug("configured api server", "port", config.Port)

	return &srvr
}

// Maps domain errors onto statuses. Structured errors pass through.
func httpErr(err error) error {
	sErr := &podwatcherrs.Error{}
	switch {
	case errors.As(err, &sErr):
		return sErr
	case errors.Is(err, podwatch.ErrNotFound):
		return podwatcherrs.E(err, http.StatusNotFound)
	case errors.Is(err, podwatch.ErrConflict):
		return podwatcherrs.E(err, http.StatusConflict)
	case errors.Is(err, podwatch.ErrFeedUnavailable):
		return podwatcherrs.E(err, http.StatusBadGateway)
	}

	return err
}
