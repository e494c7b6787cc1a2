// Package resolve turns raw feed entries into a show's canonical, ordered
// and deduplicated episode sequence.
//
// Every show is bound to one numbering strategy when it is configured. The
// strategy is never guessed from the titles themselves.
package resolve

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/jdholdren/podwatch/internal/podwatch"
)

// Result is the outcome of resolving one fetch of a show's feed.
type Result struct {
	// Episodes ascending by number, one per number.
	Episodes []podwatch.Episode

	// Unparsed counts entries that didn't follow the show's convention,
	// whether they were dropped or numbered by position.
	Unparsed int
	// Positional counts entries numbered by their place in the feed.
	Positional int
	// Duplicates counts entries discarded because another entry won the same number or date.
	Duplicates int
}

// Latest is the highest numbered episode in the result, if any.
func (r Result) Latest() (podwatch.Episode, bool) {
	if len(r.Episodes) == 0 {
		return podwatch.Episode{}, false
	}
	return r.Episodes[len(r.Episodes)-1], true
}

type candidate struct {
	ep    podwatch.Episode
	order int // position in the feed
}

// Resolve applies the show's strategy to every entry.
//
// A feed with no usable entries is a valid, empty result. The only error is
// a show bound to a strategy that doesn't exist.
func Resolve(show podwatch.Show, entries []podwatch.RawEntry) (Result, error) {
	ex, err := extractorFor(show)
	if err != nil {
		return Result{}, err
	}

	var (
		res        Result
		candidates = make([]candidate, 0, len(entries))
	)
	for i, entry := range entries {
		title := normalize(entry.Title)

		raw, clean, ok := ex.extract(title)
		if !ok {
			res.Unparsed++
			if show.Strategy.Strict() {
				continue
			}

			// Feeds are newest first, so the first entry gets the highest position.
			res.Positional++
			raw, clean = podwatch.IntNumber(len(entries) - i).String(), title
		}
		if show.Strategy == podwatch.StrategyDecimalBonus {
			clean = entry.Title
		}

		num, err := podwatch.ParseEpisodeNumber(raw)
		if err != nil {
			res.Unparsed++
			continue
		}

		candidates = append(candidates, candidate{
			order: i,
			ep: podwatch.Episode{
				ShowID:      show.ID,
				Number:      num,
				Title:       clean,
				PublishedAt: entry.PublishedAt,
			},
		})
	}

	kept := dedupeByNumber(candidates)
	if show.Strategy == podwatch.StrategyDecimalBonus {
		kept = dedupeByDate(kept)
	}
	res.Duplicates = len(candidates) - len(kept)

	slices.SortFunc(kept, func(a, b candidate) int {
		return a.ep.Number.Compare(b.ep.Number)
	})

	res.Episodes = make([]podwatch.Episode, 0, len(kept))
	for _, c := range kept {
		res.Episodes = append(res.Episodes, c.ep)
	}

	return res, nil
}

// wins reports whether a should be kept over b: the later publish time wins
// and feed order breaks ties.
func wins(a, b candidate) bool {
	if !a.ep.PublishedAt.Equal(b.ep.PublishedAt) {
		return a.ep.PublishedAt.After(b.ep.PublishedAt)
	}
	return a.order < b.order
}

func dedupeByNumber(cs []candidate) []candidate {
	return dedupe(cs, func(c candidate) (string, bool) {
		return c.ep.Number.Key(), true
	})
}

// dedupeByDate keeps the most recently published episode of each UTC calendar
// day. Entries without a publish time are left alone.
func dedupeByDate(cs []candidate) []candidate {
	return dedupe(cs, func(c candidate) (int, bool) {
		if c.ep.PublishedAt.IsZero() {
			return 0, false
		}
		y, m, d := c.ep.PublishedAt.UTC().Date()
		return y*10000 + int(m)*100 + d, true
	})
}

// dedupe keeps one candidate per key, preserving the input order otherwise.
func dedupe[K comparable](cs []candidate, key func(candidate) (K, bool)) []candidate {
	best := make(map[K]int, len(cs))
	out := make([]candidate, 0, len(cs))
	for _, c := range cs {
		k, ok := key(c)
		if !ok {
			out = append(out, c)
			continue
		}

		idx, seen := best[k]
		if !seen {
			best[k] = len(out)
			out = append(out, c)
			continue
		}
		if wins(c, out[idx]) {
			out[idx] = c
		}
	}

	return out
}

// normalize puts a title into NFC form, turns exotic whitespace into plain
// spaces and trims it.
func normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}
