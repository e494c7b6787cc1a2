package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/jdholdren/podwatch/internal/podwatch"
)

// number_value only exists for ordering, so episodes are never selected with *.
var episodeColumns = []string{"id", "show_id", "number", "title", "published_at", "created_at"}

func episodes() sq.SelectBuilder {
	return sq.Select(episodeColumns...).From("episodes")
}

func (r Repo) EpisodeExists(ctx context.Context, showID string, number podwatch.EpisodeNumber) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM episodes WHERE show_id = ? AND number = ?);`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, q, showID, number); err != nil {
		return false, fmt.Errorf("error checking episode: %s", err)
	}

	return exists, nil
}

// InsertEpisode returns ErrConflict when the show already has the number.
func (r Repo) InsertEpisode(ctx context.Context, ep podwatch.Episode) (podwatch.Episode, error) {
	const q = `INSERT INTO episodes (id, show_id, number, number_value, title, published_at)
	VALUES (?, ?, ?, ?, ?, ?);`

	ep.ID = newID(episodeNamespace)
	_, err := r.db.ExecContext(ctx, q, ep.ID, ep.ShowID, ep.Number, ep.Number.Value(), ep.Title, ep.PublishedAt.UTC())
	if isConflict(err) {
		return podwatch.Episode{}, fmt.Errorf("episode %s already exists: %w", ep.Number, podwatch.ErrConflict)
	}
	if err != nil {
		return podwatch.Episode{}, fmt.Errorf("error inserting episode: %s", err)
	}

	return r.episode(ctx, sq.Eq{"id": ep.ID})
}

func (r Repo) episode(ctx context.Context, where sq.Sqlizer) (podwatch.Episode, error) {
	query, args, err := episodes().Where(where).Limit(1).ToSql()
	if err != nil {
		return podwatch.Episode{}, fmt.Errorf("error constructing sql: %s", err)
	}

	var ep podwatch.Episode
	err = r.db.GetContext(ctx, &ep, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return podwatch.Episode{}, podwatch.ErrNotFound
	}
	if err != nil {
		return podwatch.Episode{}, fmt.Errorf("error fetching episode: %s", err)
	}

	return ep, nil
}

func (r Repo) EpisodeByNumber(ctx context.Context, showID string, number podwatch.EpisodeNumber) (podwatch.Episode, error) {
	return r.episode(ctx, sq.Eq{"show_id": showID, "number": number})
}

// Episodes pages through a show's episodes, newest number first.
func (r Repo) Episodes(ctx context.Context, showID string, limit, offset int) ([]podwatch.Episode, error) {
	query, args, err := episodes().
		Where(sq.Eq{"show_id": showID}).
		OrderBy("number_value DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	eps := []podwatch.Episode{}
	if err := r.db.SelectContext(ctx, &eps, query, args...); err != nil {
		return nil, fmt.Errorf("error selecting episodes: %s", err)
	}

	return eps, nil
}

func (r Repo) LatestEpisode(ctx context.Context, showID string) (podwatch.Episode, error) {
	query, args, err := episodes().
		Where(sq.Eq{"show_id": showID}).
		OrderBy("number_value DESC", "published_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return podwatch.Episode{}, fmt.Errorf("error constructing sql: %s", err)
	}

	var ep podwatch.Episode
	err = r.db.GetContext(ctx, &ep, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return podwatch.Episode{}, podwatch.ErrNotFound
	}
	if err != nil {
		return podwatch.Episode{}, fmt.Errorf("error fetching latest episode: %s", err)
	}

	return ep, nil
}

func (r Repo) LatestEpisodes(ctx context.Context) (map[string]podwatch.Episode, error) {
	const q = `
	SELECT e.id, e.show_id, e.number, e.title, e.published_at, e.created_at
	FROM episodes e
	WHERE e.number_value = (
		SELECT MAX(inner_e.number_value) FROM episodes inner_e WHERE inner_e.show_id = e.show_id
	)
	ORDER BY e.published_at;`

	var eps []podwatch.Episode
	if err := r.db.SelectContext(ctx, &eps, q); err != nil {
		return nil, fmt.Errorf("error selecting latest episodes: %s", err)
	}

	latest := make(map[string]podwatch.Episode, len(eps))
	for _, ep := range eps {
		latest[ep.ShowID] = ep
	}

	return latest, nil
}

func (r Repo) EpisodeCounts(ctx context.Context) (map[string]int, error) {
	const q = `SELECT show_id, COUNT(*) AS count FROM episodes GROUP BY show_id;`

	var rows []struct {
		ShowID string `db:"show_id"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("error counting episodes: %s", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.ShowID] = row.Count
	}

	return counts, nil
}
