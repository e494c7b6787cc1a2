// Package podwatch holds the domain types shared by the resolver, the
// freshness evaluator, the history merger and the storage layer.
package podwatch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrConflict = errors.New("resource already exists")
	ErrNotFound = errors.New("resource not found")

	// ErrFeedUnavailable is returned when a feed could not be retrieved or decoded.
	// A feed that was fetched but has no items is not an error.
	ErrFeedUnavailable = errors.New("feed unavailable")
)

// SourceKind is the flavor of feed a show publishes.
type SourceKind string

const (
	SourceRSS     SourceKind = "rss"
	SourceYouTube SourceKind = "youtube"
)

func (k SourceKind) Valid() bool {
	return k == SourceRSS || k == SourceYouTube
}

// Strategy is the numbering convention a show is bound to.
type Strategy string

const (
	// <title> | #45
	StrategyTrailingHash Strategy = "trailing_hash"
	// 45 : <title>
	StrategyLeadingColon Strategy = "leading_colon"
	// <Label> #45 - <title>
	StrategyNamedPrefix Strategy = "named_prefix"
	// <title> | #0.95, title kept verbatim
	StrategyDecimalBonus Strategy = "decimal_bonus"
	// <title> | <label> 45
	StrategyTrailingLabel Strategy = "trailing_label"
	// first 1-4 digit run, else feed position
	StrategyGeneric Strategy = "generic"
)

var strategies = []Strategy{
	StrategyTrailingHash,
	StrategyLeadingColon,
	StrategyNamedPrefix,
	StrategyDecimalBonus,
	StrategyTrailingLabel,
	StrategyGeneric,
}

// Strategies lists every supported numbering convention.
func Strategies() []Strategy {
	return append([]Strategy(nil), strategies...)
}

func ParseStrategy(s string) (Strategy, error) {
	for _, st := range strategies {
		if string(st) == s {
			return st, nil
		}
	}

	return "", fmt.Errorf("unknown strategy %q", s)
}

// Strict reports whether entries that don't match the strategy are dropped
// instead of being given a positional number.
func (s Strategy) Strict() bool {
	return s != StrategyGeneric
}

type (
	// Show is one tracked podcast or channel.
	Show struct {
		ID       string       `db:"id"`
		Name     string       `db:"name"`
		Weekday  time.Weekday `db:"weekday"`
		Kind     SourceKind   `db:"kind"`
		Locator  string       `db:"locator"`
		Strategy Strategy     `db:"strategy"`
		// Label is the literal text used by the named_prefix and trailing_label
		// strategies. Empty means the show name.
		Label     string    `db:"label"`
		Link      string    `db:"link"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	// RawEntry is a single unprocessed item from a fetched feed.
	RawEntry struct {
		Title       string
		PublishedAt time.Time
		GUID        string
	}

	// Episode is a resolved, numbered release of a show.
	Episode struct {
		ID          string        `db:"id"`
		ShowID      string        `db:"show_id"`
		Number      EpisodeNumber `db:"number"`
		Title       string        `db:"title"`
		PublishedAt time.Time     `db:"published_at"`
		CreatedAt   time.Time     `db:"created_at"`
	}

	// Rating is a user's 1-10 score for an episode.
	Rating struct {
		ID        string    `db:"id"`
		ShowID    string    `db:"show_id"`
		EpisodeID string    `db:"episode_id"`
		User      string    `db:"user_name"`
		Score     int       `db:"score"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
)

// PrefixLabel is the text a show's titles are expected to carry for the
// label based strategies.
func (s Show) PrefixLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Name
}

const (
	MinScore = 1
	MaxScore = 10
)

type (
	ShowRepo interface {
		Show(ctx context.Context, id string) (Show, error)
		Shows(ctx context.Context) ([]Show, error)
		ShowByLocator(ctx context.Context, kind SourceKind, locator string) (Show, error)
		InsertShow(ctx context.Context, show Show) (Show, error)
		UpdateShowLocator(ctx context.Context, id, locator string) error
		DeleteShow(ctx context.Context, id string) error
	}

	EpisodeRepo interface {
		EpisodeExists(ctx context.Context, showID string, number EpisodeNumber) (bool, error)
		InsertEpisode(ctx context.Context, ep Episode) (Episode, error)
		Episodes(ctx context.Context, showID string, limit, offset int) ([]Episode, error)
		EpisodeByNumber(ctx context.Context, showID string, number EpisodeNumber) (Episode, error)
		// LatestEpisode returns the highest numbered episode of a show, or ErrNotFound.
		LatestEpisode(ctx context.Context, showID string) (Episode, error)
		// LatestEpisodes returns the highest numbered episode of every show that has one.
		LatestEpisodes(ctx context.Context) (map[string]Episode, error)
		EpisodeCounts(ctx context.Context) (map[string]int, error)
	}

	RatingRepo interface {
		UpsertRating(ctx context.Context, r Rating) (Rating, error)
		DeleteRating(ctx context.Context, episodeID, user string) error
		RatingsForEpisodes(ctx context.Context, episodeIDs []string) ([]Rating, error)
	}

	Repository interface {
		ShowRepo
		EpisodeRepo
		RatingRepo
	}
)
