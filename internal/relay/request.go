package relay

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// Validation failures. Each one is answered with 400 before anything is
// sent upstream.
var (
	ErrMissingCredential = errors.New("missing credential")
	ErrMissingIdentifier = errors.New("missing entity guid")
	ErrMalformedBody     = errors.New("malformed request body")
)

// caller-facing messages for the validation failures
var rejectMessages = map[error]string{
	ErrMissingCredential: "API Key is missing in the request from the client.",
	ErrMissingIdentifier: "Entity GUID is required.",
	ErrMalformedBody:     "Request body must be a JSON object.",
}

// QueryRequest is the body of POST /query. A nil Query is relayed as null.
type QueryRequest struct {
	APIKey    string
	Query     *string
	Variables map[string]any
}

// EntityRequest is the body of POST /entity.
type EntityRequest struct {
	APIKey string
	GUID   string
}

// rawBody holds the top-level fields of a request before any of them is
// typed, so the credential can be checked first.
type rawBody map[string]json.RawMessage

// decodeBody reads the request as a JSON object. An empty body and a
// literal null both decode to an empty object.
func decodeBody(r *http.Request) (rawBody, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.WithMessage(ErrMalformedBody, err.Error())
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return rawBody{}, nil
	}
	var body rawBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, errors.WithMessage(ErrMalformedBody, err.Error())
	}
	if body == nil {
		body = rawBody{}
	}
	return body, nil
}

// credential returns apiKey. Absent, null and empty values, along with
// other JSON falsy values (false, 0, [], {}), count as missing. A present
// value that is not a string is malformed.
func (b rawBody) credential() (string, error) {
	raw, ok := b["apiKey"]
	if !ok || isFalsy(raw) {
		return "", ErrMissingCredential
	}
	var key string
	if err := json.Unmarshal(raw, &key); err != nil {
		return "", errors.WithMessage(ErrMalformedBody, "apiKey: "+err.Error())
	}
	return key, nil
}

// field decodes name into dst. Absent and null fields leave dst untouched.
func (b rawBody) field(name string, dst any) error {
	raw, ok := b[name]
	if !ok || isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.WithMessage(ErrMalformedBody, name+": "+err.Error())
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isFalsy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "null", `""`, "false", "0", "[]", "{}":
		return true
	}
	return false
}

// parseQueryRequest checks the credential before typing query and variables.
func parseQueryRequest(b rawBody) (*QueryRequest, error) {
	key, err := b.credential()
	if err != nil {
		return nil, err
	}
	req := &QueryRequest{APIKey: key}
	if err := b.field("query", &req.Query); err != nil {
		return nil, err
	}
	if err := b.field("variables", &req.Variables); err != nil {
		return nil, err
	}
	return req, nil
}

// parseEntityRequest checks the credential first, then the GUID.
func parseEntityRequest(b rawBody) (*EntityRequest, error) {
	key, err := b.credential()
	if err != nil {
		return nil, err
	}
	req := &EntityRequest{APIKey: key}
	if err := b.field("guid", &req.GUID); err != nil {
		return nil, err
	}
	if req.GUID == "" {
		return nil, ErrMissingIdentifier
	}
	return req, nil
}
