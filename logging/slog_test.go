package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json", "info")

	l.With("component", "inbox").Warn(context.Background(), "skipping missing thread", "thread", int64(7))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "skipping missing thread", rec["msg"])
	assert.Equal(t, "inbox", rec["component"])
	assert.Equal(t, float64(7), rec["thread"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "text", "warn")

	l.Info(context.Background(), "hidden")
	l.Debug(context.Background(), "hidden too")
	assert.Empty(t, buf.String())

	l.Error(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
