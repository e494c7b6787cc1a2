// Package catalog reads the configured list of shows and seeds the store with it.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jdholdren/podwatch/internal/podwatch"
)

//go:embed shows.yaml
var defaultCatalog []byte

type (
	Catalog struct {
		Shows []Entry `yaml:"shows"`
	}

	// Entry is one show as written in the catalog file.
	Entry struct {
		Name     string `yaml:"name"`
		Weekday  string `yaml:"weekday"`
		Kind     string `yaml:"kind"`
		Locator  string `yaml:"locator"`
		Strategy string `yaml:"strategy"`
		Label    string `yaml:"label,omitempty"`
		Link     string `yaml:"link,omitempty"`
	}
)

// Default is the catalog shipped with the binary.
func Default() (Catalog, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// FromPath loads the catalog at path, or the default one when path is empty.
func FromPath(path string) (Catalog, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

func LoadFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("error opening catalog: %w", err)
	}
	defer f.Close()

	return Load(f)
}

func Load(r io.Reader) (Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Catalog{}, fmt.Errorf("error decoding catalog: %w", err)
	}

	return c, nil
}

// ToShow validates an entry and converts it.
func (e Entry) ToShow() (podwatch.Show, error) {
	var errs []error
	if strings.TrimSpace(e.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(e.Locator) == "" {
		errs = append(errs, errors.New("locator is required"))
	}
	weekday, err := podwatch.ParseWeekday(e.Weekday)
	if err != nil {
		errs = append(errs, err)
	}
	kind := podwatch.SourceKind(e.Kind)
	if !kind.Valid() {
		errs = append(errs, fmt.Errorf("unknown kind %q", e.Kind))
	}
	strategy, err := podwatch.ParseStrategy(e.Strategy)
	if err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return podwatch.Show{}, fmt.Errorf("show %q: %w", e.Name, err)
	}

	return podwatch.Show{
		Name:     strings.TrimSpace(e.Name),
		Weekday:  weekday,
		Kind:     kind,
		Locator:  strings.TrimSpace(e.Locator),
		Strategy: strategy,
		Label:    e.Label,
		Link:     e.Link,
	}, nil
}

func (c Catalog) ToShows() ([]podwatch.Show, error) {
	shows := make([]podwatch.Show, 0, len(c.Shows))
	var errs []error
	for _, e := range c.Shows {
		s, err := e.ToShow()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		shows = append(shows, s)
	}

	return shows, errors.Join(errs...)
}

// SeedRepo is what seeding needs from the store.
type SeedRepo interface {
	ShowByLocator(ctx context.Context, kind podwatch.SourceKind, locator string) (podwatch.Show, error)
	InsertShow(ctx context.Context, show podwatch.Show) (podwatch.Show, error)
}

// Seed inserts every catalog show the store doesn't know about yet. Shows
// are matched by feed, so running it again is a no-op.
//
// Returns the shows that were created.
func Seed(ctx context.Context, repo SeedRepo, c Catalog) ([]podwatch.Show, error) {
	shows, err := c.ToShows()
	if err != nil {
		return nil, err
	}

	created := []podwatch.Show{}
	for _, show := range shows {
		_, err := repo.ShowByLocator(ctx, show.Kind, show.Locator)
		if err == nil {
			continue
		}
		if !errors.Is(err, podwatch.ErrNotFound) {
			return created, fmt.Errorf("error looking up show %q: %w", show.Name, err)
		}

		inserted, err := repo.InsertShow(ctx, show)
		if errors.Is(err, podwatch.ErrConflict) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("error inserting show %q: %w", show.Name, err)
		}

		slog.InfoContext(ctx, "seeded show", "show_id", inserted.ID, "name", inserted.Name)
		created = append(created, inserted)
	}

	return created, nil
}
