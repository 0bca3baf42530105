// Package relay exposes the HTTP surface of the relay: the static index page
// and the two credential-injecting forwarding endpoints.
package relay

import (
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/0xReLogic/nerdrelay/internal/logging"
	"github.com/0xReLogic/nerdrelay/internal/nerdgraph"
)

const (
	endpointQuery  = "/query"
	endpointEntity = "/entity"
)

// IndexNotFound is served on the index routes when no document is available.
const IndexNotFound = "<h1>Error: No HTML file found</h1><p>Please make sure your HTML file is in the configured location.</p>"

// Relay holds the per-process, read-only state shared by all requests.
type Relay struct {
	upstream  nerdgraph.Client
	indexPath string
}

// New returns a Relay forwarding to upstream. indexPath is the located index
// document, or "" when none was found at startup.
func New(upstream nerdgraph.Client, indexPath string) *Relay {
	return &Relay{upstream: upstream, indexPath: indexPath}
}

// ServeIndex writes the index document, or the 404 fragment if it is missing.
func (rl *Relay) ServeIndex(w http.ResponseWriter, r *http.Request) {
	if rl.indexPath != "" {
		data, err := os.ReadFile(rl.indexPath)
		if err == nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}
		logging.GetLogger().Error("index_read_failed", zap.String("path", rl.indexPath), zap.Error(err))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(IndexNotFound))
}

// ForwardQuery relays a caller-supplied GraphQL query and variables.
func (rl *Relay) ForwardQuery(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		reject(w, r, endpointQuery, err)
		return
	}
	req, err := parseQueryRequest(body)
	if err != nil {
		reject(w, r, endpointQuery, err)
		return
	}

	if accountID, ok := req.Variables["accountId"]; ok {
		logging.GetLogger().Debug("query_received",
			zap.String("request_id", logging.GetRequestID(r.Context())),
			zap.Any("account_id", accountID),
		)
	}

	rl.forward(w, r, endpointQuery, nerdgraph.Payload{Query: req.Query, Variables: req.Variables}, req.APIKey)
}

// ForwardEntityLookup relays the fixed entity query for one GUID.
func (rl *Relay) ForwardEntityLookup(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		reject(w, r, endpointEntity, err)
		return
	}
	req, err := parseEntityRequest(body)
	if err != nil {
		reject(w, r, endpointEntity, err)
		return
	}

	logging.GetLogger().Debug("entity_received",
		zap.String("request_id", logging.GetRequestID(r.Context())),
		zap.String("guid", req.GUID),
	)

	rl.forward(w, r, endpointEntity, nerdgraph.EntityPayload(req.GUID), req.APIKey)
}

func (rl *Relay) forward(w http.ResponseWriter, r *http.Request, endpoint string, payload nerdgraph.Payload, apiKey string) {
	ctx := r.Context()
	op := nerdgraph.OperationKind(payload.QueryText())
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("relay.endpoint", endpoint),
		attribute.String("graphql.operation.type", op),
	)

	start := time.Now()
	out := rl.upstream.Forward(ctx, payload, apiKey)
	latency := time.Since(start)

	upstreamRequestsTotal.WithLabelValues(endpoint, op, out.Kind.String()).Inc()
	upstreamLatency.WithLabelValues(endpoint).Observe(latency.Seconds())
	logging.LogUpstreamCall(ctx, endpoint, op, out.Kind.String(), out.Status, latency.Milliseconds())
	if out.Kind == nerdgraph.KindInternalFailure && out.Err != nil {
		logging.GetLogger().Error("upstream_unexpected_failure",
			zap.String("request_id", logging.GetRequestID(ctx)),
			zap.Error(out.Err),
		)
	}

	status, body := out.Response()
	writeJSON(w, status, body)
}

func reject(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	cause := errors.Cause(err)
	msg, ok := rejectMessages[cause]
	if !ok {
		msg = nerdgraph.MsgUnexpectedError
	}
	rejectedTotal.WithLabelValues(endpoint, cause.Error()).Inc()
	logging.LogRejected(r.Context(), endpoint, err)
	writeJSON(w, http.StatusBadRequest, nerdgraph.ErrorJSON(msg))
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
