package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerWritesFieldsAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	ctx, id := EnsureRequestID(context.Background())
	log.With(String("component", "engine")).Info(ctx, "placed", String("item", "X"), Int("score", 0))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "placed", rec["msg"])
	assert.Equal(t, "engine", rec["component"])
	assert.Equal(t, "X", rec["item"])
	assert.Equal(t, id, rec["request_id"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
	log.Warn(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestEnsureRequestIDKeepsExisting(t *testing.T) {
	ctx, first := EnsureRequestID(context.Background())
	ctx, second := EnsureRequestID(ctx)
	assert.Equal(t, first, second)
	assert.Equal(t, first, RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestNoopDiscards(t *testing.T) {
	log := Noop().With(String("k", "v"))
	log.Error(context.Background(), "nothing")
}
