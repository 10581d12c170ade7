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

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "parseLevel(%q)", in)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("exported", "table", "orders")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "expected exactly one JSON line, got %q", buf.String())
	assert.Equal(t, "exported", entry["msg"])
	assert.Equal(t, "orders", entry["table"])
}

func TestWithFields_CarriesRunID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "debug", "text"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := ContextWithRunID(context.Background(), "run-42")
	WithFields(ctx, "table", "orders").Info("hello")

	out := buf.String()
	assert.Contains(t, out, "run_id=run-42")
	assert.Contains(t, out, "table=orders")
}

func TestRunIDFromContext_Empty(t *testing.T) {
	assert.Empty(t, RunIDFromContext(context.Background()))
}
