package catalog

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/podwatch/internal/podwatch"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	shows, err := c.ToShows()
	require.NoError(t, err)
	require.NotEmpty(t, shows)

	byName := map[string]podwatch.Show{}
	for _, s := range shows {
		byName[s.Name] = s
	}

	assert.Equal(t, podwatch.StrategyLeadingColon, byName["Zé Carioca"].Strategy)
	assert.Equal(t, time.Monday, byName["Zé Carioca"].Weekday)
	assert.Equal(t, podwatch.StrategyNamedPrefix, byName["Prata da Casa"].Strategy)
	assert.Equal(t, podwatch.StrategyDecimalBonus, byName["Velho amigo"].Strategy)
	assert.Equal(t, time.Sunday, byName["watch.tm"].Weekday)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown strategy",
			yaml: "shows:\n  - {name: A, weekday: monday, kind: rss, locator: http://a, strategy: guess}\n",
		},
		{
			name: "unknown weekday",
			yaml: "shows:\n  - {name: A, weekday: someday, kind: rss, locator: http://a, strategy: generic}\n",
		},
		{
			name: "unknown kind",
			yaml: "shows:\n  - {name: A, weekday: monday, kind: podbean, locator: http://a, strategy: generic}\n",
		},
		{
			name: "missing locator",
			yaml: "shows:\n  - {name: A, weekday: monday, kind: rss, strategy: generic}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(strings.NewReader(tt.yaml))
			require.NoError(t, err)

			_, err = c.ToShows()
			assert.Error(t, err)
		})
	}

	_, err := Load(strings.NewReader("shows:\n  - {name: A, colour: red}\n"))
	assert.Error(t, err, "unknown fields are rejected")
}

type memRepo struct {
	shows map[string]podwatch.Show
}

func (r *memRepo) ShowByLocator(_ context.Context, kind podwatch.SourceKind, locator string) (podwatch.Show, error) {
	s, ok := r.shows[string(kind)+locator]
	if !ok {
		return podwatch.Show{}, podwatch.ErrNotFound
	}
	return s, nil
}

func (r *memRepo) InsertShow(_ context.Context, show podwatch.Show) (podwatch.Show, error) {
	show.ID = fmt.Sprintf("show-%d", len(r.shows))
	r.shows[string(show.Kind)+show.Locator] = show
	return show, nil
}

func TestSeed_Idempotent(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = &memRepo{shows: map[string]podwatch.Show{}}
	)

	c, err := Default()
	require.NoError(t, err)

	created, err := Seed(ctx, repo, c)
	require.NoError(t, err)
	assert.Len(t, created, len(c.Shows))

	created, err = Seed(ctx, repo, c)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Len(t, repo.shows, len(c.Shows))
}
