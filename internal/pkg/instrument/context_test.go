package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetCorrelationID(ctx))

	ctx = SetCorrelationID(ctx, "abc-123")

	assert.Equal(t, "abc-123", GetCorrelationID(ctx))
}

func TestContextHandler_AddsCorrelationIDAndService(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	logger := slog.New(&contextHandler{
		Handler: slog.NewJSONHandler(&buf, nil),
		service: "inboxed",
	})
	ctx := SetCorrelationID(context.Background(), "cid-1")

	// Act
	logger.InfoContext(ctx, "hello")

	// Assert
	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "cid-1", got["_cID"])
	assert.Equal(t, "inboxed", got["service"])
}

func TestContextHandler_Redacts(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	logger := slog.New(&contextHandler{
		Handler: slog.NewJSONHandler(&buf, nil),
		service: "inboxed",
		mask:    map[string]struct{}{"password": {}, "smtp_pass": {}, "authorization": {}},
	})

	// Act
	logger.With("smtp_pass", "x").Info("login",
		"Password", "secret",
		"nested", map[string]any{"password": "p", "keep": 1, "list": []any{map[string]any{"password": "q"}}},
		"headers", map[string]string{"Authorization": "Bearer t", "Accept": "*/*"},
		slog.Group("grp", slog.String("password", "g"), slog.String("ok", "yes")),
	)

	// Assert
	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "***", got["smtp_pass"])
	assert.Equal(t, "***", got["Password"])
	assert.Equal(t, map[string]any{
		"password": "***",
		"keep":     float64(1),
		"list":     []any{map[string]any{"password": "***"}},
	}, got["nested"])
	assert.Equal(t, map[string]any{"Authorization": "***", "Accept": "*/*"}, got["headers"])
	assert.Equal(t, map[string]any{"password": "***", "ok": "yes"}, got["grp"])
	assert.Equal(t, "inboxed", got["service"])
}

func TestFanout(t *testing.T) {
	var all, errs bytes.Buffer
	logger := slog.New(fanout{
		slog.NewJSONHandler(&all, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&errs, &slog.HandlerOptions{Level: slog.LevelError}),
	}).With("k", "v")

	logger.Debug("debug line")
	logger.Error("error line")

	assert.Contains(t, all.String(), "debug line")
	assert.Contains(t, all.String(), "error line")
	assert.NotContains(t, errs.String(), "debug line")
	assert.Contains(t, errs.String(), `"k":"v"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
