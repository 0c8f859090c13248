package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "vroom", cfg.ServiceName)
	require.Equal(t, "http://localhost:14268/api/traces", cfg.JaegerURL)
	require.Equal(t, 1.0, cfg.SampleRate)
}

func TestInit_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	provider, err := Init(cfg)
	require.NoError(t, err)
	require.NotNil(t, provider)
	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestStartSpan_WithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "room.join")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End()
}

func TestRecordError_NoPanic(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "stream.relay")
	defer span.End()

	RecordError(ctx, errors.New("peer gone"))
	RecordError(ctx, nil)
}

func TestTraceHelpers(t *testing.T) {
	ctx := context.Background()

	_, span := TraceHTTPRequest(ctx, "POST", "/api/rooms")
	require.NotNil(t, span)
	span.End()

	_, span = TraceChannelCommand(ctx, "position_update", "user-1")
	require.NotNil(t, span)
	span.End()

	_, span = TraceSignalRelay(ctx, "offer", "stream-1")
	require.NotNil(t, span)
	span.End()
}
