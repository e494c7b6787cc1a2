// Package sqlite is the sqlite backed implementation of [podwatch.Repository].
package sqlite

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"

	"github.com/jdholdren/podwatch/internal/podwatch"
)

// Ensure Repo implements the Repository interface
var _ podwatch.Repository = (*Repo)(nil)

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) Repo {
	return Repo{db: db}
}

const (
	showNamespace    = "-show"
	episodeNamespace = "-ep"
	ratingNamespace  = "-rt"
)

func newID(namespace string) string {
	return fmt.Sprintf("%s%s", uuid.NewString(), namespace)
}

// sqlite extended result codes for constraint violations.
const (
	codeConstraintPrimaryKey = 1555
	codeConstraintUnique     = 2067
)

func isConflict(err error) bool {
	sqliteErr := &sqlite.Error{}
	if !errors.As(err, &sqliteErr) {
		return false
	}

	code := sqliteErr.Code()
	return code == codeConstraintUnique || code == codeConstraintPrimaryKey
}
