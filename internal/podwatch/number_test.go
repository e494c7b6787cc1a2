package podwatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEpisodeNumber(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    EpisodeNumber
		wantErr bool
	}{
		{name: "plain integer", input: "45", want: "45"},
		{name: "leading zeros dropped", input: "007", want: "7"},
		{name: "zero", input: "000", want: "0"},
		{name: "decimal kept verbatim", input: "0.95", want: "0.95"},
		{name: "decimal trailing zero kept", input: "1.50", want: "1.50"},
		{name: "surrounding space", input: " 12 ", want: "12"},
		{name: "negative", input: "-3", wantErr: true},
		{name: "garbage", input: "twelve", wantErr: true},
		{name: "dangling dot", input: "3.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEpisodeNumber(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEpisodeNumberCompare(t *testing.T) {
	assert.Equal(t, -1, EpisodeNumber("0.95").Compare("1"))
	assert.Equal(t, 1, EpisodeNumber("10").Compare("9"))
	assert.Equal(t, 0, EpisodeNumber("3").Compare("3"))
	// Numeric, not lexicographic.
	assert.Equal(t, 1, EpisodeNumber("100").Compare("20"))

	assert.True(t, EpisodeNumber("0.95").IsDecimal())
	assert.False(t, EpisodeNumber("95").IsDecimal())
	assert.InDelta(t, 0.95, EpisodeNumber("0.95").Value(), 1e-9)
}

func TestEpisodeNumberCompare_Exact(t *testing.T) {
	tests := []struct {
		a, b EpisodeNumber
		want int
	}{
		// Both round to the same float64.
		{a: "9007199254740993", b: "9007199254740992", want: 1},
		{a: "9007199254740992", b: "9007199254740993", want: -1},
		{a: "1.5", b: "1.45", want: 1},
		{a: "2", b: "1.999", want: 1},
		{a: "0.95", b: "1", want: -1},
		// Same value, different text: ordered by text so the order stays total.
		{a: "1.5", b: "1.50", want: -1},
		{a: "bogus", b: "1", want: -1},
	}

	for _, tt := range tests {
		t.Run(string(tt.a)+" vs "+string(tt.b), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
		})
	}
}

func TestEpisodeNumberKey(t *testing.T) {
	assert.Equal(t, "1.5", EpisodeNumber("1.50").Key())
	assert.Equal(t, EpisodeNumber("1.5").Key(), EpisodeNumber("1.50").Key())
	assert.Equal(t, "3", EpisodeNumber("3.0").Key())
	assert.Equal(t, "7", EpisodeNumber("007").Key())
	assert.NotEqual(t, EpisodeNumber("9007199254740993").Key(), EpisodeNumber("9007199254740992").Key())
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		input string
		want  time.Weekday
	}{
		{"sunday", time.Sunday},
		{"Mon", time.Monday},
		{"domingo", time.Sunday},
		{"Sábado", time.Saturday},
		{"sabado", time.Saturday},
		{"TERÇA", time.Tuesday},
		{"quarta-feira", time.Wednesday},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseWeekday(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseWeekday("someday")
	assert.Error(t, err)
}

func TestParseStrategy(t *testing.T) {
	for _, s := range Strategies() {
		got, err := ParseStrategy(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStrategy("guess")
	assert.Error(t, err)

	assert.False(t, StrategyGeneric.Strict())
	assert.True(t, StrategyNamedPrefix.Strict())
}
