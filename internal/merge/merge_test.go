package merge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/podwatch/internal/podwatch"
	"github.com/jdholdren/podwatch/internal/resolve"
)

// memStore is an in-memory store keyed by (show, number).
type memStore struct {
	mu       sync.Mutex
	episodes map[string]podwatch.Episode
	inserts  int

	// When set, reported as missing by EpisodeExists to force a conflict on insert.
	hide map[string]bool
}

func newMemStore() *memStore {
	return &memStore{episodes: make(map[string]podwatch.Episode), hide: make(map[string]bool)}
}

func key(showID string, n podwatch.EpisodeNumber) string {
	return fmt.Sprintf("%s/%s", showID, n)
}

func (s *memStore) EpisodeExists(_ context.Context, showID string, n podwatch.EpisodeNumber) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(showID, n)
	if s.hide[k] {
		return false, nil
	}
	_, ok := s.episodes[k]
	return ok, nil
}

func (s *memStore) InsertEpisode(_ context.Context, ep podwatch.Episode) (podwatch.Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(ep.ShowID, ep.Number)
	if _, ok := s.episodes[k]; ok {
		return podwatch.Episode{}, fmt.Errorf("episode exists: %w", podwatch.ErrConflict)
	}
	ep.ID = fmt.Sprintf("ep-%d", len(s.episodes))
	s.episodes[k] = ep
	s.inserts++
	return ep, nil
}

func eps(numbers ...string) []podwatch.Episode {
	out := make([]podwatch.Episode, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, podwatch.Episode{Number: podwatch.EpisodeNumber(n), Title: "ep " + n})
	}
	return out
}

func TestPlan(t *testing.T) {
	stored := map[podwatch.EpisodeNumber]bool{"1": true, "3": true}
	exists := func(_ context.Context, showID string, n podwatch.EpisodeNumber) (bool, error) {
		assert.Equal(t, "show-a", showID)
		return stored[n], nil
	}

	planned, err := Plan(context.Background(), "show-a", eps("1", "2", "3", "4", "4"), exists)
	require.NoError(t, err)

	require.Len(t, planned, 2)
	assert.Equal(t, podwatch.EpisodeNumber("2"), planned[0].Number)
	assert.Equal(t, podwatch.EpisodeNumber("4"), planned[1].Number)
	for _, ep := range planned {
		assert.Equal(t, "show-a", ep.ShowID)
	}
}

func TestPlan_DedupesByExactNumber(t *testing.T) {
	exists := func(context.Context, string, podwatch.EpisodeNumber) (bool, error) {
		return false, nil
	}

	planned, err := Plan(context.Background(), "show-a",
		eps("9007199254740992", "9007199254740993", "1.5", "1.50"), exists)
	require.NoError(t, err)

	require.Len(t, planned, 3)
	assert.Equal(t, podwatch.EpisodeNumber("9007199254740992"), planned[0].Number)
	assert.Equal(t, podwatch.EpisodeNumber("9007199254740993"), planned[1].Number)
	assert.Equal(t, podwatch.EpisodeNumber("1.5"), planned[2].Number)
}

func TestPlan_LookupError(t *testing.T) {
	boom := errors.New("boom")
	exists := func(context.Context, string, podwatch.EpisodeNumber) (bool, error) {
		return false, boom
	}

	_, err := Plan(context.Background(), "show-a", eps("1"), exists)
	assert.ErrorIs(t, err, boom)
}

func TestApply_Idempotent(t *testing.T) {
	var (
		ctx   = context.Background()
		store = newMemStore()
		m     = New(store)
	)

	out, err := m.Apply(ctx, "show-a", eps("1", "2", "3"))
	require.NoError(t, err)
	assert.Len(t, out.Inserted, 3)

	out, err = m.Apply(ctx, "show-a", eps("1", "2", "3"))
	require.NoError(t, err)
	assert.Empty(t, out.Inserted)
	assert.Equal(t, 3, store.inserts)
}

func TestApply_NeverOverwrites(t *testing.T) {
	var (
		ctx   = context.Background()
		store = newMemStore()
		m     = New(store)
	)

	_, err := m.Apply(ctx, "show-a", []podwatch.Episode{{Number: "5", Title: "Original"}})
	require.NoError(t, err)

	_, err = m.Apply(ctx, "show-a", []podwatch.Episode{{Number: "5", Title: "Renamed"}})
	require.NoError(t, err)

	assert.Equal(t, "Original", store.episodes[key("show-a", "5")].Title)
}

func TestApply_ToleratesConflict(t *testing.T) {
	var (
		ctx   = context.Background()
		store = newMemStore()
		m     = New(store)
	)

	_, err := m.Apply(ctx, "show-a", eps("1"))
	require.NoError(t, err)

	// Another writer inserted "1" between the lookup and the insert.
	store.hide[key("show-a", "1")] = true

	out, err := m.Apply(ctx, "show-a", eps("1", "2"))
	require.NoError(t, err)
	assert.Equal(t, 1, out.Conflicts)
	require.Len(t, out.Inserted, 1)
	assert.Equal(t, podwatch.EpisodeNumber("2"), out.Inserted[0].Number)
}

func TestApply_ConcurrentSameShow(t *testing.T) {
	var (
		ctx   = context.Background()
		store = newMemStore()
		m     = New(store)
		wg    sync.WaitGroup
	)

	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := m.Apply(ctx, "show-a", eps("1", "2", "3"))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := m.Apply(ctx, "show-b", eps("1", "2"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, store.inserts)
}

func TestResolveThenMerge(t *testing.T) {
	var (
		ctx   = context.Background()
		store = newMemStore()
		m     = New(store)
		show  = podwatch.Show{ID: "ze", Name: "Zé Carioca", Kind: podwatch.SourceRSS, Strategy: podwatch.StrategyLeadingColon}
		feed  = []podwatch.RawEntry{
			{Title: "45 : Episode Forty Five", PublishedAt: time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC)},
			{Title: "not numbered", PublishedAt: time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)},
		}
	)

	res, err := resolve.Resolve(show, feed)
	require.NoError(t, err)
	require.Len(t, res.Episodes, 1)
	assert.Equal(t, podwatch.EpisodeNumber("45"), res.Episodes[0].Number)
	assert.Equal(t, "Episode Forty Five", res.Episodes[0].Title)

	out, err := m.Apply(ctx, show.ID, res.Episodes)
	require.NoError(t, err)
	assert.Len(t, out.Inserted, 1)

	out, err = m.Apply(ctx, show.ID, res.Episodes)
	require.NoError(t, err)
	assert.Empty(t, out.Inserted)
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2024, time.March, 13, 10, 0, 0, 0, time.UTC) // Wednesday

	assert.True(t, NeedsRefresh(now, nil))
	assert.False(t, NeedsRefresh(now, &podwatch.Episode{PublishedAt: time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)}))
	assert.True(t, NeedsRefresh(now, &podwatch.Episode{PublishedAt: time.Date(2024, time.March, 9, 23, 0, 0, 0, time.UTC)}))
}
