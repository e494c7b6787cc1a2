package podwatch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// EpisodeNumber is the canonical identity of an episode within a show.
//
// Integers are stored without leading zeros. Decimal numbers, used by some
// shows for bonus episodes, are kept exactly as written so "0.95" never
// turns into 95 or a float approximation.
type EpisodeNumber string

var numberPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// ParseEpisodeNumber validates and canonicalizes the textual form of a number.
func ParseEpisodeNumber(s string) (EpisodeNumber, error) {
	s = strings.TrimSpace(s)
	if !numberPattern.MatchString(s) {
		return "", fmt.Errorf("invalid episode number %q", s)
	}
	if strings.Contains(s, ".") {
		return EpisodeNumber(s), nil
	}

	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return EpisodeNumber(trimmed), nil
}

// IntNumber builds a number from a position or count.
func IntNumber(n int) EpisodeNumber {
	return EpisodeNumber(strconv.Itoa(n))
}

func (n EpisodeNumber) String() string {
	return string(n)
}

func (n EpisodeNumber) IsDecimal() bool {
	return strings.Contains(string(n), ".")
}

// Value is the numeric value used for ordering. Invalid numbers sort first.
func (n EpisodeNumber) Value() float64 {
	v, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return -1
	}
	return v
}

// Key is the identity used to tell numbers apart: "1.50" and "1.5" share a
// key, while large integers never collapse the way their float values would.
func (n EpisodeNumber) Key() string {
	whole, frac, ok := n.parts()
	if !ok {
		return string(n)
	}
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// parts splits a valid number into its integer digits without leading zeros
// and its fraction digits without trailing zeros.
func (n EpisodeNumber) parts() (whole, frac string, ok bool) {
	if !numberPattern.MatchString(string(n)) {
		return "", "", false
	}

	whole, frac, _ = strings.Cut(string(n), ".")
	whole = strings.TrimLeft(whole, "0")
	if whole == "" {
		whole = "0"
	}
	return whole, strings.TrimRight(frac, "0"), true
}

// Compare orders numbers by their exact value, falling back to the text so the
// order is total. Invalid numbers sort first.
func (n EpisodeNumber) Compare(o EpisodeNumber) int {
	aw, af, aok := n.parts()
	bw, bf, bok := o.parts()
	switch {
	case !aok && !bok:
		return strings.Compare(string(n), string(o))
	case !aok:
		return -1
	case !bok:
		return 1
	}

	if c := cmpInt(len(aw), len(bw)); c != 0 {
		return c
	}
	if c := strings.Compare(aw, bw); c != 0 {
		return c
	}
	if c := strings.Compare(af, bf); c != 0 {
		return c
	}

	return strings.Compare(string(n), string(o))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
