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

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CorrelationID(ctx))
	assert.Empty(t, StepName(ctx))
	assert.Empty(t, Actor(ctx))

	ctx = WithCorrelationID(ctx, "corr-9")
	ctx = WithStepName(ctx, "disable-account")
	ctx = WithActor(ctx, "hr-system")

	assert.Equal(t, "corr-9", CorrelationID(ctx))
	assert.Equal(t, "disable-account", StepName(ctx))
	assert.Equal(t, "hr-system", Actor(ctx))
}

func TestCorrelationHandler_InjectsAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithStepName(WithCorrelationID(context.Background(), "corr-9"), "disable")
	logger.InfoContext(ctx, "step started")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "corr-9", record["correlation_id"])
	assert.Equal(t, "disable", record["step"])
	_, hasActor := record["actor"]
	assert.False(t, hasActor, "absent context values add no attributes")
}

func TestCorrelationHandler_PlainContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("no context values")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	_, has := record["correlation_id"]
	assert.False(t, has)
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithCorrelationID(context.Background(), "corr-1")
	LogWith(ctx, base).Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "corr-1", record["correlation_id"])
}
