package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/jdholdren/podwatch/internal/podwatch"
)

func (r Repo) Show(ctx context.Context, id string) (podwatch.Show, error) {
	const q = `SELECT * FROM shows WHERE id = ?;`

	var show podwatch.Show
	err := r.db.GetContext(ctx, &show, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return podwatch.Show{}, podwatch.ErrNotFound
	}
	if err != nil {
		return podwatch.Show{}, fmt.Errorf("error fetching show: %s", err)
	}

	return show, nil
}

// Shows returns every show ordered by scheduled weekday, then name.
func (r Repo) Shows(ctx context.Context) ([]podwatch.Show, error) {
	const q = `SELECT * FROM shows ORDER BY weekday, name;`

	shows := []podwatch.Show{}
	if err := r.db.SelectContext(ctx, &shows, q); err != nil {
		return nil, fmt.Errorf("error selecting shows: %s", err)
	}

	return shows, nil
}

func (r Repo) ShowByLocator(ctx context.Context, kind podwatch.SourceKind, locator string) (podwatch.Show, error) {
	const q = `SELECT * FROM shows WHERE kind = ? AND locator = ?;`

	var show podwatch.Show
	err := r.db.GetContext(ctx, &show, q, kind, locator)
	if errors.Is(err, sql.ErrNoRows) {
		return podwatch.Show{}, podwatch.ErrNotFound
	}
	if err != nil {
		return podwatch.Show{}, fmt.Errorf("error fetching show: %s", err)
	}

	return show, nil
}

// InsertShow assigns a fresh id; the name plays no part in it.
func (r Repo) InsertShow(ctx context.Context, show podwatch.Show) (podwatch.Show, error) {
	const q = `INSERT INTO shows (id, name, weekday, kind, locator, strategy, label, link)
	VALUES (:id, :name, :weekday, :kind, :locator, :strategy, :label, :link);`

	show.ID = newID(showNamespace)
	_, err := r.db.NamedExecContext(ctx, q, show)
	if isConflict(err) {
		return podwatch.Show{}, fmt.Errorf("show already exists: %w", podwatch.ErrConflict)
	}
	if err != nil {
		return podwatch.Show{}, fmt.Errorf("error inserting show: %s", err)
	}

	return r.Show(ctx, show.ID)
}

// UpdateShowLocator is the only change allowed to a show once created.
func (r Repo) UpdateShowLocator(ctx context.Context, id, locator string) error {
	query, args, err := sq.Update("shows").
		Set("locator", locator).
		Set("updated_at", sq.Expr("CURRENT_TIMESTAMP")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if isConflict(err) {
		return fmt.Errorf("locator already in use: %w", podwatch.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("error updating show locator: %s", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return podwatch.ErrNotFound
	}

	return nil
}

// DeleteShow removes a show with its episodes and ratings. Returns
// ErrNotFound when there is no such show.
func (r Repo) DeleteShow(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %s", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM ratings WHERE show_id = ?;`,
		`DELETE FROM episodes WHERE show_id = ?;`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("error deleting show: %s", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM shows WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("error deleting show: %s", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return podwatch.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing show delete: %s", err)
	}

	return nil
}
