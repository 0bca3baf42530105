package logging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	prev := logger
	SetLogger(zap.New(core))
	t.Cleanup(func() { logger = prev })
	return logs
}

func TestInitLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		require.NoError(t, Init(level, "production"), level)
	}
	require.NoError(t, Init("info", "development"))
	assert.NotNil(t, GetLogger())
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc-123")
	assert.Equal(t, "abc-123", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestLogUpstreamCallCarriesRequestID(t *testing.T) {
	logs := observe(t)
	ctx := WithRequestID(context.Background(), "req-1")

	LogUpstreamCall(ctx, "/entity", "query", "success", 200, 12)

	entries := logs.FilterMessage("upstream_call").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "/entity", fields["endpoint"])
	assert.Equal(t, "success", fields["outcome"])
	assert.EqualValues(t, 200, fields["upstream_status"])
}

func TestLogRejected(t *testing.T) {
	logs := observe(t)

	LogRejected(context.Background(), "/query", errors.New("missing credential"))

	entries := logs.FilterMessage("request_rejected").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "missing credential", entries[0].ContextMap()["reason"])
	_, hasID := entries[0].ContextMap()["request_id"]
	assert.False(t, hasID)
}
