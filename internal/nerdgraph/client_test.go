package nerdgraph

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xReLogic/nerdrelay/internal/config"
)

// Verify that HTTPClient satisfies the Client interface at compile time.
var _ Client = (*HTTPClient)(nil)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

type captured struct {
	mu      sync.Mutex
	method  string
	headers http.Header
	payload map[string]any
}

// snapshot returns what the stub received, read under its lock.
func (c *captured) snapshot() (string, http.Header, map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.method, c.headers, c.payload
}

// stubUpstream answers every request with status/body and records what it received.
func stubUpstream(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		got.mu.Lock()
		got.method = r.Method
		got.headers = r.Header.Clone()
		_ = json.Unmarshal(raw, &got.payload)
		got.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func strPtr(s string) *string { return &s }

func newClient(t *testing.T, url string, timeout time.Duration) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(config.UpstreamConfig{URL: url, Timeout: timeout})
	require.NoError(t, err)
	return c
}

// closedURL returns the URL of a port nothing listens on.
func closedURL(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return "http://" + addr + "/graphql"
}

// ---------------------------------------------------------------------------
// NewHTTPClient
// ---------------------------------------------------------------------------

func TestNewHTTPClient(t *testing.T) {
	_, err := NewHTTPClient(config.UpstreamConfig{})
	require.Error(t, err)

	c, err := NewHTTPClient(config.UpstreamConfig{URL: "http://upstream.local/graphql"})
	require.NoError(t, err)
	assert.Equal(t, defaultTimeout, c.httpClient.Timeout)

	c, err = NewHTTPClient(config.UpstreamConfig{URL: "http://upstream.local/graphql", Timeout: 3 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
}

// ---------------------------------------------------------------------------
// Forward
// ---------------------------------------------------------------------------

func TestForwardSuccessPassesBodyThrough(t *testing.T) {
	body := `{"data": {"actor": {"user": {"name": "Ada"}}}}`
	srv, got := stubUpstream(t, http.StatusOK, body)

	out := newClient(t, srv.URL, time.Second).Forward(context.Background(),
		Payload{Query: strPtr("{ actor { user } }"), Variables: map[string]any{}}, "secret-key")

	require.Equal(t, KindSuccess, out.Kind)
	status, resp := out.Response()
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, body, string(resp))

	method, headers, payload := got.snapshot()
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "secret-key", headers.Get(APIKeyHeader))
	assert.Equal(t, "{ actor { user } }", payload["query"])
	assert.Equal(t, map[string]any{}, payload["variables"])
}

func TestForwardNilVariablesSentAsNull(t *testing.T) {
	srv, got := stubUpstream(t, http.StatusOK, `{}`)

	newClient(t, srv.URL, time.Second).Forward(context.Background(), Payload{Query: strPtr("{ a }")}, "k")

	_, _, payload := got.snapshot()
	v, present := payload["variables"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestForwardNilQuerySentAsNull(t *testing.T) {
	srv, got := stubUpstream(t, http.StatusOK, `{}`)

	newClient(t, srv.URL, time.Second).Forward(context.Background(), Payload{Variables: map[string]any{"a": 1.0}}, "k")

	_, _, payload := got.snapshot()
	q, present := payload["query"]
	assert.True(t, present)
	assert.Nil(t, q)
	assert.Equal(t, map[string]any{"a": 1.0}, payload["variables"])
}

func TestPayloadQueryText(t *testing.T) {
	assert.Empty(t, Payload{}.QueryText())
	assert.Equal(t, "{ a }", Payload{Query: strPtr("{ a }")}.QueryText())
}

func TestForwardRejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"forbidden", http.StatusForbidden, "Forbidden"},
		{"bad gateway", http.StatusBadGateway, `{"errors":[{"message":"down"}]}`},
		{"empty body", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := stubUpstream(t, tt.status, tt.body)

			out := newClient(t, srv.URL, time.Second).Forward(context.Background(), Payload{Query: strPtr("{ a }")}, "k")
			require.Equal(t, KindRejected, out.Kind)

			status, resp := out.Response()
			assert.Equal(t, tt.status, status)

			var eb map[string]any
			require.NoError(t, json.Unmarshal(resp, &eb))
			assert.Equal(t, "New Relic API returned an error: "+strconv.Itoa(tt.status), eb["error"])
			assert.Equal(t, tt.body, eb["details"])
		})
	}
}

func TestForwardConnectionRefused(t *testing.T) {
	out := newClient(t, closedURL(t), time.Second).Forward(context.Background(), Payload{Query: strPtr("{ a }")}, "k")

	require.Equal(t, KindTransportFailure, out.Kind)
	status, resp := out.Response()
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.JSONEq(t, `{"error": "A network error occurred while contacting the New Relic API."}`, string(resp))
}

func TestForwardTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	out := newClient(t, srv.URL, 50*time.Millisecond).Forward(context.Background(), Payload{Query: strPtr("{ a }")}, "k")

	assert.Equal(t, KindTransportFailure, out.Kind)
	require.Error(t, out.Err)
}

func TestForwardNonJSONSuccessIsInternalFailure(t *testing.T) {
	srv, _ := stubUpstream(t, http.StatusOK, "<html>maintenance</html>")

	out := newClient(t, srv.URL, time.Second).Forward(context.Background(), Payload{Query: strPtr("{ a }")}, "k")

	require.Equal(t, KindInternalFailure, out.Kind)
	status, resp := out.Response()
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.JSONEq(t, `{"error": "An unexpected server error occurred."}`, string(resp))
}

func TestForwardBadURLIsInternalFailure(t *testing.T) {
	out := newClient(t, "http://bad host/graphql", time.Second).Forward(context.Background(), Payload{Query: strPtr("{ a }")}, "k")
	assert.Equal(t, KindInternalFailure, out.Kind)
}
