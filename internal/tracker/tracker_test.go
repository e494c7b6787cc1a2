package tracker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/jdholdren/podwatch/internal/migrations"
	"github.com/jdholdren/podwatch/internal/podwatch"
	"github.com/jdholdren/podwatch/internal/sqlite"
)

// Wednesday.
var now = time.Date(2024, time.March, 13, 10, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	mu    sync.Mutex
	feeds map[string][]podwatch.RawEntry
	calls map[string]int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ podwatch.SourceKind, locator string) ([]podwatch.RawEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[locator]++
	entries, ok := f.feeds[locator]
	if !ok {
		return nil, fmt.Errorf("%w: no such feed", podwatch.ErrFeedUnavailable)
	}
	return entries, nil
}

func newTestRepo(t *testing.T) sqlite.Repo {
	t.Helper()

	dbx, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	dbx.SetMaxOpenConns(1)
	t.Cleanup(func() { dbx.Close() })

	require.NoError(t, migrations.Run(dbx))
	return sqlite.New(dbx)
}

type fixture struct {
	repo    sqlite.Repo
	fetcher *fakeFetcher
	metrics *Metrics
	tracker *Tracker
}

func newFixture(t *testing.T) fixture {
	repo := newTestRepo(t)
	fetcher := &fakeFetcher{feeds: map[string][]podwatch.RawEntry{}, calls: map[string]int{}}
	metrics := NewMetrics(prometheus.NewRegistry())

	return fixture{
		repo:    repo,
		fetcher: fetcher,
		metrics: metrics,
		tracker: New(fetcher, repo, metrics, Config{
			Location: time.UTC,
			Now:      func() time.Time { return now },
		}),
	}
}

func (f fixture) addShow(t *testing.T, name, locator string, strategy podwatch.Strategy) podwatch.Show {
	show, err := f.repo.InsertShow(context.Background(), podwatch.Show{
		Name:     name,
		Weekday:  time.Monday,
		Kind:     podwatch.SourceRSS,
		Locator:  locator,
		Strategy: strategy,
	})
	require.NoError(t, err)
	return show
}

func TestSyncShow_Backfill(t *testing.T) {
	var (
		ctx  = context.Background()
		f    = newFixture(t)
		show = f.addShow(t, "Zé Carioca", "https://ze.example/rss", podwatch.StrategyLeadingColon)
	)
	f.fetcher.feeds[show.Locator] = []podwatch.RawEntry{
		{Title: "46 : Newest", PublishedAt: now.AddDate(0, 0, -2)},
		{Title: "not numbered", PublishedAt: now.AddDate(0, 0, -5)},
		{Title: "45 : Episode Forty Five", PublishedAt: now.AddDate(0, 0, -9)},
	}

	r, err := f.tracker.SyncShow(ctx, show, ModeBackfill)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Fetched)
	assert.Equal(t, 2, r.Resolved)
	assert.Equal(t, 1, r.Unparsed)
	assert.Equal(t, 2, r.Inserted)

	latest, err := f.repo.LatestEpisode(ctx, show.ID)
	require.NoError(t, err)
	assert.Equal(t, podwatch.EpisodeNumber("46"), latest.Number)

	// A second backfill finds nothing new.
	r, err = f.tracker.SyncShow(ctx, show, ModeBackfill)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Inserted)

	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.inserted.WithLabelValues(show.ID)))
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.unparsed.WithLabelValues(show.ID)))
}

func TestSyncShow_IncrementalSkipsFreshShows(t *testing.T) {
	var (
		ctx  = context.Background()
		f    = newFixture(t)
		show = f.addShow(t, "Fresh", "https://fresh.example/rss", podwatch.StrategyTrailingHash)
	)
	f.fetcher.feeds[show.Locator] = []podwatch.RawEntry{
		{Title: "Monday | #2", PublishedAt: now.AddDate(0, 0, -2)},
	}

	// Nothing stored yet, so it has to fetch.
	r, err := f.tracker.SyncShow(ctx, show, ModeIncremental)
	require.NoError(t, err)
	assert.False(t, r.Skipped)
	assert.Equal(t, 1, r.Inserted)

	// Latest is now from this week.
	r, err = f.tracker.SyncShow(ctx, show, ModeIncremental)
	require.NoError(t, err)
	assert.True(t, r.Skipped)
	assert.Equal(t, 1, f.fetcher.calls[show.Locator])

	// Backfill ignores the policy.
	_, err = f.tracker.SyncShow(ctx, show, ModeBackfill)
	require.NoError(t, err)
	assert.Equal(t, 2, f.fetcher.calls[show.Locator])
}

func TestSyncAll_IsolatesFailures(t *testing.T) {
	var (
		ctx    = context.Background()
		f      = newFixture(t)
		good   = f.addShow(t, "Good", "https://good.example/rss", podwatch.StrategyTrailingHash)
		broken = f.addShow(t, "Broken", "https://broken.example/rss", podwatch.StrategyTrailingHash)
	)
	f.fetcher.feeds[good.Locator] = []podwatch.RawEntry{
		{Title: "One | #1", PublishedAt: now.AddDate(0, 0, -10)},
	}

	reports, err := f.tracker.SyncAll(ctx, ModeIncremental)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	byID := map[string]Report{}
	for _, r := range reports {
		byID[r.ShowID] = r
	}

	assert.Equal(t, 1, byID[good.ID].Inserted)
	assert.Empty(t, byID[good.ID].Error)

	assert.True(t, byID[broken.ID].FeedFailed)
	assert.NotEmpty(t, byID[broken.ID].Error)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.feedFailures.WithLabelValues(broken.ID)))
}

func TestSyncShowByID_Missing(t *testing.T) {
	f := newFixture(t)

	_, err := f.tracker.SyncShowByID(context.Background(), "nope", ModeBackfill)
	assert.ErrorIs(t, err, podwatch.ErrNotFound)
}

func TestNewPoller(t *testing.T) {
	f := newFixture(t)

	_, err := NewPoller(f.tracker, "*/15 * * * *", time.UTC)
	assert.NoError(t, err)

	_, err = NewPoller(f.tracker, "every so often", time.UTC)
	assert.Error(t, err)
}

func TestPoller_StopsWithContext(t *testing.T) {
	f := newFixture(t)
	p, err := NewPoller(f.tracker, "@every 1h", time.UTC)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("poller didn't stop")
	}
}
