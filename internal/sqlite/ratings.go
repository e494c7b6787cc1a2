package sqlite

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/jdholdren/podwatch/internal/podwatch"
)

// UpsertRating stores a user's score for an episode, replacing any earlier one.
func (r Repo) UpsertRating(ctx context.Context, rating podwatch.Rating) (podwatch.Rating, error) {
	const q = `INSERT INTO ratings (id, show_id, episode_id, user_name, score)
	VALUES (:id, :show_id, :episode_id, :user_name, :score)
	ON CONFLICT (episode_id, user_name) DO UPDATE SET
		score = excluded.score,
		updated_at = CURRENT_TIMESTAMP;`

	rating.ID = newID(ratingNamespace)
	if _, err := r.db.NamedExecContext(ctx, q, rating); err != nil {
		return podwatch.Rating{}, fmt.Errorf("error upserting rating: %s", err)
	}

	const sel = `SELECT * FROM ratings WHERE episode_id = ? AND user_name = ?;`
	var stored podwatch.Rating
	if err := r.db.GetContext(ctx, &stored, sel, rating.EpisodeID, rating.User); err != nil {
		return podwatch.Rating{}, fmt.Errorf("error fetching rating: %s", err)
	}

	return stored, nil
}

func (r Repo) DeleteRating(ctx context.Context, episodeID, user string) error {
	const q = `DELETE FROM ratings WHERE episode_id = ? AND user_name = ?;`

	res, err := r.db.ExecContext(ctx, q, episodeID, user)
	if err != nil {
		return fmt.Errorf("error deleting rating: %s", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return podwatch.ErrNotFound
	}

	return nil
}

func (r Repo) RatingsForEpisodes(ctx context.Context, episodeIDs []string) ([]podwatch.Rating, error) {
	if len(episodeIDs) == 0 {
		return []podwatch.Rating{}, nil
	}

	query, args, err := sq.Select("*").
		From("ratings").
		Where(sq.Eq{"episode_id": episodeIDs}).
		OrderBy("user_name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	ratings := []podwatch.Rating{}
	if err := r.db.SelectContext(ctx, &ratings, query, args...); err != nil {
		return nil, fmt.Errorf("error selecting ratings: %s", err)
	}

	return ratings, nil
}
