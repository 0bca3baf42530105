// Package nerdgraph forwards GraphQL payloads to the New Relic NerdGraph API
// on behalf of a caller and classifies what came back.
package nerdgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/0xReLogic/nerdrelay/internal/config"
	"github.com/0xReLogic/nerdrelay/internal/logging"
	"github.com/0xReLogic/nerdrelay/internal/tracing"
)

// APIKeyHeader carries the caller's credential on the upstream request.
const APIKeyHeader = "API-Key"

const defaultTimeout = 60 * time.Second

// Payload is the JSON body of a GraphQL HTTP request. Query and Variables
// are sent as null when absent.
type Payload struct {
	Query     *string        `json:"query"`
	Variables map[string]any `json:"variables"`
}

// QueryText returns the query document, or "" when it is absent.
func (p Payload) QueryText() string {
	if p.Query == nil {
		return ""
	}
	return *p.Query
}

// Client forwards one payload upstream with the given credential.
type Client interface {
	Forward(ctx context.Context, payload Payload, apiKey string) Outcome
}

// HTTPClient sends payloads to a single GraphQL endpoint over HTTP.
type HTTPClient struct {
	httpClient *http.Client
	url        string
}

// NewHTTPClient returns a client for cfg.URL. A non-positive timeout falls
// back to 60 seconds.
func NewHTTPClient(cfg config.UpstreamConfig) (*HTTPClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("nerdgraph: upstream URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.URL,
	}, nil
}

// Forward performs exactly one POST and never retries. Every failure mode is
// folded into the returned Outcome.
func (c *HTTPClient) Forward(ctx context.Context, payload Payload, apiKey string) Outcome {
	ctx, span := tracing.StartSpan(ctx, "nerdgraph.forward", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	out := c.forward(ctx, payload, apiKey)

	span.SetAttributes(
		attribute.String("nerdgraph.outcome", out.Kind.String()),
		attribute.Int("http.status_code", out.Status),
	)
	if out.Kind == KindSuccess {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, out.Kind.String())
		if out.Err != nil {
			span.RecordError(out.Err)
		}
	}
	return out
}

func (c *HTTPClient) forward(ctx context.Context, payload Payload, apiKey string) Outcome {
	body, err := json.Marshal(payload)
	if err != nil {
		return internalFailure(errors.Wrap(err, "marshal payload"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return internalFailure(errors.Wrap(err, "create request"))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.LogUpstreamError(ctx, req.URL.Host, err)
		return transportFailure(errors.Wrap(err, "request failed"))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logging.LogUpstreamError(ctx, req.URL.Host, err)
		return transportFailure(errors.Wrap(err, "read response"))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Outcome{
			Kind:   KindRejected,
			Status: resp.StatusCode,
			Body:   raw,
			Err:    errors.Errorf("upstream returned HTTP %d", resp.StatusCode),
		}
	}

	if !json.Valid(raw) {
		out := internalFailure(errors.Errorf("upstream returned HTTP %d with a non-JSON body", resp.StatusCode))
		out.Status = resp.StatusCode
		return out
	}
	return Outcome{Kind: KindSuccess, Status: resp.StatusCode, Body: raw}
}
