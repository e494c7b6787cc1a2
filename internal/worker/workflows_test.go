package worker

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
	_ "modernc.org/sqlite"

	podwatcherrs "github.com/jdholdren/podwatch/internal/errors"
	"github.com/jdholdren/podwatch/internal/migrations"
	"github.com/jdholdren/podwatch/internal/podwatch"
	"github.com/jdholdren/podwatch/internal/sqlite"
	"github.com/jdholdren/podwatch/internal/tracker"
)

type staticFetcher map[string][]podwatch.RawEntry

func (f staticFetcher) Fetch(_ context.Context, _ podwatch.SourceKind, locator string) ([]podwatch.RawEntry, error) {
	entries, ok := f[locator]
	if !ok {
		return nil, fmt.Errorf("%w: %s", podwatch.ErrFeedUnavailable, locator)
	}
	return entries, nil
}

type fixture struct {
	repo sqlite.Repo
	acts activities
}

func newFixture(t *testing.T, feeds staticFetcher) fixture {
	t.Helper()

	dbx, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	dbx.SetMaxOpenConns(1)
	t.Cleanup(func() { dbx.Close() })
	require.NoError(t, migrations.Run(dbx))

	repo := sqlite.New(dbx)
	trk := tracker.New(feeds, repo, nil, tracker.Config{
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2024, time.March, 13, 10, 0, 0, 0, time.UTC) },
	})

	return fixture{
		repo: repo,
		acts: activities{store: repo, tracker: trk},
	}
}

func (f fixture) addShow(t *testing.T, name, locator string) podwatch.Show {
	show, err := f.repo.InsertShow(context.Background(), podwatch.Show{
		Name:     name,
		Weekday:  time.Monday,
		Kind:     podwatch.SourceRSS,
		Locator:  locator,
		Strategy: podwatch.StrategyTrailingHash,
	})
	require.NoError(t, err)
	return show
}

func entries(titles ...string) []podwatch.RawEntry {
	base := time.Date(2024, time.March, 11, 8, 0, 0, 0, time.UTC)

	var out []podwatch.RawEntry
	for i, title := range titles {
		out = append(out, podwatch.RawEntry{Title: title, PublishedAt: base.AddDate(0, 0, -7*i)})
	}
	return out
}

func TestSyncAllShows(t *testing.T) {
	f := newFixture(t, staticFetcher{
		"https://a.example/feed": entries("Three #3", "Two #2", "One #1"),
		"https://b.example/feed": entries("Only #7"),
	})
	f.addShow(t, "A", "https://a.example/feed")
	f.addShow(t, "B", "https://b.example/feed")
	f.addShow(t, "Broken", "https://gone.example/feed")

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	register(env, f.acts)

	env.ExecuteWorkflow(workflows{}.SyncAllShows, tracker.ModeBackfill)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var sum Summary
	require.NoError(t, env.GetWorkflowResult(&sum))
	assert.Equal(t, Summary{Shows: 3, Failed: 1, Inserted: 4}, sum)
}

func TestBackfillShow(t *testing.T) {
	f := newFixture(t, staticFetcher{
		"https://a.example/feed": entries("Two #2", "One #1"),
	})
	show := f.addShow(t, "A", "https://a.example/feed")

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	register(env, f.acts)

	env.ExecuteWorkflow(workflows{}.BackfillShow, show.ID)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var report tracker.Report
	require.NoError(t, env.GetWorkflowResult(&report))
	assert.Equal(t, show.ID, report.ShowID)
	assert.Equal(t, tracker.ModeBackfill, report.Mode)
	assert.Equal(t, 2, report.Inserted)

	latest, err := f.repo.LatestEpisode(context.Background(), show.ID)
	require.NoError(t, err)
	assert.Equal(t, podwatch.EpisodeNumber("2"), latest.Number)
}

func TestBackfillShow_Errors(t *testing.T) {
	tests := []struct {
		name       string
		showID     func(f fixture) string
		wantStatus int
	}{
		{
			name:       "missing show",
			showID:     func(fixture) string { return "nope-show" },
			wantStatus: http.StatusNotFound,
		},
		{
			name: "unreachable feed",
			showID: func(f fixture) string {
				return f.addShow(t, "Broken", "https://gone.example/feed").ID
			},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, staticFetcher{})

			var ts testsuite.WorkflowTestSuite
			env := ts.NewTestWorkflowEnvironment()
			register(env, f.acts)

			env.ExecuteWorkflow(workflows{}.BackfillShow, tt.showID(f))
			require.True(t, env.IsWorkflowCompleted())

			err := env.GetWorkflowError()
			require.Error(t, err)

			podErr := &podwatcherrs.Error{}
			require.True(t, asPodwatchErr(err, &podErr))
			assert.Equal(t, tt.wantStatus, podErr.Status)
		})
	}
}

func TestAsPodwatchErr_Plain(t *testing.T) {
	podErr := &podwatcherrs.Error{}
	assert.False(t, asPodwatchErr(nil, &podErr))
	assert.False(t, asPodwatchErr(fmt.Errorf("plain"), &podErr))
}
