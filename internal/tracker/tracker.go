// Package tracker runs the update cycle of each show: fetch its feed,
// resolve episode numbers and merge the new ones into the store.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jdholdren/podwatch/internal/logger"
	"github.com/jdholdren/podwatch/internal/merge"
	"github.com/jdholdren/podwatch/internal/podwatch"
	"github.com/jdholdren/podwatch/internal/resolve"
)

// Mode picks between routine polling and a full history load.
type Mode string

const (
	// ModeIncremental skips shows that already released this week.
	ModeIncremental Mode = "incremental"
	// ModeBackfill always fetches and merges the whole feed.
	ModeBackfill Mode = "backfill"
)

type (
	Fetcher interface {
		Fetch(ctx context.Context, kind podwatch.SourceKind, locator string) ([]podwatch.RawEntry, error)
	}

	Store interface {
		merge.Store
		Show(ctx context.Context, id string) (podwatch.Show, error)
		Shows(ctx context.Context) ([]podwatch.Show, error)
		LatestEpisode(ctx context.Context, showID string) (podwatch.Episode, error)
	}
)

// Report summarizes one show's cycle. It travels through temporal, so the
// error is kept as text.
type Report struct {
	ShowID     string `json:"show_id"`
	ShowName   string `json:"show_name"`
	Mode       Mode   `json:"mode"`
	Skipped    bool   `json:"skipped"`
	FeedFailed bool   `json:"feed_failed"`
	Fetched    int    `json:"fetched"`
	Resolved   int    `json:"resolved"`
	Unparsed   int    `json:"unparsed"`
	Positional int    `json:"positional"`
	Duplicates int    `json:"duplicates"`
	Inserted   int    `json:"inserted"`
	Error      string `json:"error,omitempty"`
}

type Config struct {
	// Concurrency bounds how many shows SyncAll processes at once.
	Concurrency int
	Location    *time.Location
	Now         func() time.Time
}

type Tracker struct {
	fetcher Fetcher
	store   Store
	merger  *merge.Merger
	metrics *Metrics

	concurrency int
	loc         *time.Location
	now         func() time.Time
}

// New builds a tracker. metrics may be nil.
func New(fetcher Fetcher, store Store, metrics *Metrics, cfg Config) *Tracker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Tracker{
		fetcher:     fetcher,
		store:       store,
		merger:      merge.New(store),
		metrics:     metrics,
		concurrency: cfg.Concurrency,
		loc:         cfg.Location,
		now:         cfg.Now,
	}
}

// SyncShowByID loads the show and syncs it.
func (t *Tracker) SyncShowByID(ctx context.Context, showID string, mode Mode) (Report, error) {
	show, err := t.store.Show(ctx, showID)
	if err != nil {
		return Report{ShowID: showID, Mode: mode, Error: err.Error()}, fmt.Errorf("error loading show: %w", err)
	}

	return t.SyncShow(ctx, show, mode)
}

// Backfill loads the whole feed of a show into the store.
func (t *Tracker) Backfill(ctx context.Context, showID string) (Report, error) {
	return t.SyncShowByID(ctx, showID, ModeBackfill)
}

// SyncShow runs one show's cycle. The report is filled in even when an
// error is returned.
func (t *Tracker) SyncShow(ctx context.Context, show podwatch.Show, mode Mode) (Report, error) {
	ctx = logger.Ctx(ctx, slog.String("show_id", show.ID), slog.String("show", show.Name))

	r, err := t.syncShow(ctx, show, mode)
	if err != nil {
		r.Error = err.Error()
		r.FeedFailed = errors.Is(err, podwatch.ErrFeedUnavailable)
		slog.ErrorContext(ctx, "show sync failed", "mode", mode, "error", err)
	} else {
		slog.InfoContext(ctx, "show synced",
			"mode", mode,
			"skipped", r.Skipped,
			"fetched", r.Fetched,
			"unparsed", r.Unparsed,
			"inserted", r.Inserted,
		)
	}
	t.metrics.observe(r)

	return r, err
}

func (t *Tracker) syncShow(ctx context.Context, show podwatch.Show, mode Mode) (Report, error) {
	r := Report{ShowID: show.ID, ShowName: show.Name, Mode: mode}

	if mode == ModeIncremental {
		latest, err := t.latest(ctx, show.ID)
		if err != nil {
			return r, err
		}
		if !merge.NeedsRefresh(t.now().In(t.loc), latest) {
			r.Skipped = true
			return r, nil
		}
	}

	entries, err := t.fetcher.Fetch(ctx, show.Kind, show.Locator)
	if err != nil {
		return r, fmt.Errorf("error fetching feed: %w", err)
	}
	r.Fetched = len(entries)

	res, err := resolve.Resolve(show, entries)
	if err != nil {
		return r, err
	}
	r.Resolved = len(res.Episodes)
	r.Unparsed = res.Unparsed
	r.Positional = res.Positional
	r.Duplicates = res.Duplicates

	out, err := t.merger.Apply(ctx, show.ID, res.Episodes)
	r.Inserted = len(out.Inserted)
	if err != nil {
		return r, fmt.Errorf("error merging episodes: %w", err)
	}

	return r, nil
}

func (t *Tracker) latest(ctx context.Context, showID string) (*podwatch.Episode, error) {
	ep, err := t.store.LatestEpisode(ctx, showID)
	if errors.Is(err, podwatch.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching latest episode: %w", err)
	}

	return &ep, nil
}

// SyncAll runs every show's cycle. A failing show is recorded in its report
// and never stops the others; the error is only for listing shows.
func (t *Tracker) SyncAll(ctx context.Context, mode Mode) ([]Report, error) {
	start := time.Now()

	shows, err := t.store.Shows(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing shows: %w", err)
	}

	reports := make([]Report, len(shows))
	g := errgroup.Group{}
	g.SetLimit(t.concurrency)
	for i, show := range shows {
		g.Go(func() error {
			reports[i], _ = t.SyncShow(ctx, show, mode)
			return nil
		})
	}
	_ = g.Wait()

	if t.metrics != nil {
		t.metrics.cycleDuration.Observe(time.Since(start).Seconds())
	}
	slog.InfoContext(ctx, "sync cycle finished", "mode", mode, "shows", len(shows), "duration", time.Since(start))

	return reports, nil
}
