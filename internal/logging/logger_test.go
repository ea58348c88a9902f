package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Level: "loud", Format: "json"}.Validate())
	assert.Error(t, Config{Level: "info", Format: "xml"}.Validate())
}

func TestNewWithWriter_AutoFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(Config{Level: "info", Format: "auto"}, &buf)
	require.NoError(t, err)

	l.Info("plan generated", zap.String("difficulty", "easy"))
	require.NoError(t, l.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "plan generated", entry["msg"])
	assert.Equal(t, "easy", entry["difficulty"])
	assert.Contains(t, entry, "ts")
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(Config{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	l.Info("hidden")
	assert.Zero(t, buf.Len())
}

func TestFromContext_AddsRequestID(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithRequestID(context.Background(), "req-1")

	FromContext(ctx, tl.Logger).Info("hello")

	tl.AssertLogged(t, zapcore.InfoLevel, "hello")
	tl.AssertField(t, "hello", "request.id", "req-1")
}

func TestFromContext_PrefersStoredLogger(t *testing.T) {
	stored := NewTestLogger()
	base := NewTestLogger()
	ctx := WithLogger(context.Background(), stored.Logger)

	FromContext(ctx, base.Logger).Info("x")

	assert.Len(t, stored.All(), 1)
	assert.Empty(t, base.All())
}

func TestFromContext_NilBase(t *testing.T) {
	assert.NotPanics(t, func() { FromContext(context.Background(), nil).Info("x") })
}

func TestRedactedString(t *testing.T) {
	f := RedactedString("api_key", "abcdef")
	assert.Equal(t, "[REDACTED:6]", f.String)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "Tuần", Preview("input", "Tuần", 10).String)
	assert.Equal(t, "Tuần…", Preview("input", "Tuần sau", 4).String)
}
