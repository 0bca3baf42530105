package nerdgraph

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Kind classifies one upstream attempt.
type Kind int

const (
	// KindSuccess: 2xx with a JSON body.
	KindSuccess Kind = iota
	// KindRejected: the upstream answered with a non-2xx status.
	KindRejected
	// KindTransportFailure: no complete response was obtained.
	KindTransportFailure
	// KindInternalFailure: anything else.
	KindInternalFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRejected:
		return "rejected"
	case KindTransportFailure:
		return "transport_failure"
	case KindInternalFailure:
		return "internal_failure"
	default:
		return "unknown"
	}
}

// Outcome is the result of Forward. Status is the upstream HTTP status when
// a response was received, zero otherwise. Body holds the raw upstream bytes.
type Outcome struct {
	Kind   Kind
	Status int
	Body   []byte
	Err    error
}

// Caller-facing messages.
const (
	MsgNetworkError    = "A network error occurred while contacting the New Relic API."
	MsgUnexpectedError = "An unexpected server error occurred."
	msgRejectedPrefix  = "New Relic API returned an error: "
)

// ErrorBody is the JSON shape of every relay error response.
type ErrorBody struct {
	Error   string  `json:"error"`
	Details *string `json:"details,omitempty"`
}

// Response maps the outcome to the status code and body returned to the
// caller. Successful bodies pass through byte-for-byte.
func (o Outcome) Response() (int, []byte) {
	switch o.Kind {
	case KindSuccess:
		return http.StatusOK, o.Body
	case KindRejected:
		details := string(o.Body)
		return o.Status, mustJSON(ErrorBody{
			Error:   msgRejectedPrefix + strconv.Itoa(o.Status),
			Details: &details,
		})
	case KindTransportFailure:
		return http.StatusServiceUnavailable, ErrorJSON(MsgNetworkError)
	default:
		return http.StatusInternalServerError, ErrorJSON(MsgUnexpectedError)
	}
}

// ErrorJSON encodes an error body without details.
func ErrorJSON(msg string) []byte {
	return mustJSON(ErrorBody{Error: msg})
}

func transportFailure(err error) Outcome {
	return Outcome{Kind: KindTransportFailure, Err: err}
}

func internalFailure(err error) Outcome {
	return Outcome{Kind: KindInternalFailure, Err: err}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// ErrorBody only holds strings
		panic(err)
	}
	return b
}
