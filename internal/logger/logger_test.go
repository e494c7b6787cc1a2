package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json", slog.LevelInfo)

	ctx := Ctx(context.Background(), slog.String("show_id", "abc-show"))
	l.With("component", "tracker").InfoContext(ctx, "show synced", "inserted", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "abc-show", rec["show_id"])
	assert.Equal(t, "tracker", rec["component"])
	assert.Equal(t, float64(2), rec["inserted"])
}

func TestCtx_SiblingsDontShareAttrs(t *testing.T) {
	parent := Ctx(context.Background(), slog.String("a", "1"))
	left := Ctx(parent, slog.String("b", "2"))
	right := Ctx(parent, slog.String("c", "3"))

	assert.Len(t, Attrs(parent), 1)
	assert.Equal(t, "b", Attrs(left)[1].Key)
	assert.Equal(t, "c", Attrs(right)[1].Key)
}
