package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json", slog.LevelWarn)
	l.Info("hidden")
	l.Warn("shown", "group_id", "g1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "g1", rec["group_id"])
}

func TestNew_TextAndTint(t *testing.T) {
	for _, format := range []string{"text", "tint"} {
		var buf bytes.Buffer
		New(&buf, format, slog.LevelInfo).Info("expense recorded", "shares", 3)
		assert.Contains(t, buf.String(), "expense recorded", format)
		assert.Contains(t, buf.String(), "shares", format)
	}
}
