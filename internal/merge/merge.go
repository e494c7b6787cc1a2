// Package merge reconciles freshly resolved episodes with what is already
// stored. Stored episodes are never modified.
package merge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jdholdren/podwatch/internal/freshness"
	"github.com/jdholdren/podwatch/internal/podwatch"
)

// ExistsFunc reports whether a show already has an episode with the number.
type ExistsFunc func(ctx context.Context, showID string, number podwatch.EpisodeNumber) (bool, error)

// Plan returns the resolved episodes that aren't stored yet, in input order.
// Repeated numbers in the input are only planned once.
func Plan(ctx context.Context, showID string, resolved []podwatch.Episode, exists ExistsFunc) ([]podwatch.Episode, error) {
	var (
		planned = make([]podwatch.Episode, 0)
		seen    = make(map[string]struct{}, len(resolved))
	)
	for _, ep := range resolved {
		key := ep.Number.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		found, err := exists(ctx, showID, ep.Number)
		if err != nil {
			return nil, fmt.Errorf("error checking episode %s: %w", ep.Number, err)
		}
		if found {
			continue
		}

		ep.ShowID = showID
		planned = append(planned, ep)
	}

	return planned, nil
}

// Store is the slice of the repository the merger needs.
type Store interface {
	EpisodeExists(ctx context.Context, showID string, number podwatch.EpisodeNumber) (bool, error)
	InsertEpisode(ctx context.Context, ep podwatch.Episode) (podwatch.Episode, error)
}

// Outcome of applying one resolved sequence.
type Outcome struct {
	Inserted []podwatch.Episode
	// Conflicts counts inserts the store rejected as already present.
	Conflicts int
}

// Merger applies plans to a store. Merges of the same show are serialized;
// different shows proceed independently.
type Merger struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(store Store) *Merger {
	return &Merger{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *Merger) lock(showID string) func() {
	m.mu.Lock()
	l, ok := m.locks[showID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[showID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Apply inserts every resolved episode the store doesn't have yet.
//
// A unique constraint violation from the store means another writer got
// there first and is counted, not returned.
func (m *Merger) Apply(ctx context.Context, showID string, resolved []podwatch.Episode) (Outcome, error) {
	unlock := m.lock(showID)
	defer unlock()

	planned, err := Plan(ctx, showID, resolved, m.store.EpisodeExists)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Inserted: make([]podwatch.Episode, 0, len(planned))}
	for _, ep := range planned {
		inserted, err := m.store.InsertEpisode(ctx, ep)
		if errors.Is(err, podwatch.ErrConflict) {
			out.Conflicts++
			continue
		}
		if err != nil {
			return out, fmt.Errorf("error inserting episode %s: %w", ep.Number, err)
		}

		out.Inserted = append(out.Inserted, inserted)
	}

	return out, nil
}

// NeedsRefresh is the routine polling policy: a show whose latest episode is
// already dated this week is not fetched again.
func NeedsRefresh(now time.Time, latest *podwatch.Episode) bool {
	if latest == nil {
		return true
	}
	return !freshness.InWeek(now, latest.PublishedAt)
}
