package resolve

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jdholdren/podwatch/internal/podwatch"
)

// extractor pulls an episode number and a cleaned title out of one feed title.
//
// ok is false when the title doesn't follow the convention.
type extractor interface {
	extract(title string) (number, clean string, ok bool)
}

// separators that may sit between a title and its trailing number.
const separators = "|:-–— "

var (
	trailingHashRe = regexp.MustCompile(`^(.*?)\s*(?:[|:\-–—]\s*)?#(\d+)\s*$`)
	leadingColonRe = regexp.MustCompile(`^(\d+)\s*:\s*(.+)$`)
	decimalBonusRe = regexp.MustCompile(`\|\s*#(\d+(?:\.\d+)?)\s*$`)
	// A run of one to four digits that isn't part of a longer run.
	firstNumberRe = regexp.MustCompile(`(?:^|\D)(\d{1,4})(?:\D|$)`)
)

type trailingHash struct{}

func (trailingHash) extract(title string) (string, string, bool) {
	m := trailingHashRe.FindStringSubmatch(title)
	if m == nil {
		return "", "", false
	}

	clean := strings.TrimRight(m[1], separators)
	if clean == "" {
		clean = title
	}
	return m[2], clean, true
}

type leadingColon struct{}

func (leadingColon) extract(title string) (string, string, bool) {
	m := leadingColonRe.FindStringSubmatch(title)
	if m == nil {
		return "", "", false
	}

	return m[1], strings.TrimSpace(m[2]), true
}

type namedPrefix struct {
	re *regexp.Regexp
}

func newNamedPrefix(label string) namedPrefix {
	return namedPrefix{
		re: regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(normalize(label)) + `\s*#(\d+)\s*[-–—:]\s*(.+)$`),
	}
}

func (p namedPrefix) extract(title string) (string, string, bool) {
	m := p.re.FindStringSubmatch(title)
	if m == nil {
		return "", "", false
	}

	return m[1], strings.TrimSpace(m[2]), true
}

// decimalBonus keeps the whole title, since the show reuses near identical
// titles and the decoration is what tells them apart.
type decimalBonus struct{}

func (decimalBonus) extract(title string) (string, string, bool) {
	m := decimalBonusRe.FindStringSubmatch(title)
	if m == nil {
		return "", "", false
	}

	return m[1], title, true
}

type trailingLabel struct {
	re *regexp.Regexp
}

func newTrailingLabel(label string) trailingLabel {
	return trailingLabel{
		re: regexp.MustCompile(`(?i)^(.+?)\s*\|\s*` + regexp.QuoteMeta(normalize(label)) + `\s*#?(\d+)\s*$`),
	}
}

func (l trailingLabel) extract(title string) (string, string, bool) {
	m := l.re.FindStringSubmatch(title)
	if m == nil {
		return "", "", false
	}

	return m[2], strings.TrimSpace(m[1]), true
}

// firstNumber never fails to match on its own; the positional fallback is
// applied by the caller.
type firstNumber struct{}

func (firstNumber) extract(title string) (string, string, bool) {
	m := firstNumberRe.FindStringSubmatch(title)
	if m == nil {
		return "", "", false
	}

	return m[1], title, true
}

func extractorFor(show podwatch.Show) (extractor, error) {
	switch show.Strategy {
	case podwatch.StrategyTrailingHash:
		return trailingHash{}, nil
	case podwatch.StrategyLeadingColon:
		return leadingColon{}, nil
	case podwatch.StrategyNamedPrefix:
		return newNamedPrefix(show.PrefixLabel()), nil
	case podwatch.StrategyDecimalBonus:
		return decimalBonus{}, nil
	case podwatch.StrategyTrailingLabel:
		return newTrailingLabel(show.PrefixLabel()), nil
	case podwatch.StrategyGeneric:
		return firstNumber{}, nil
	}

	return nil, fmt.Errorf("show %s has unknown strategy %q", show.ID, show.Strategy)
}
