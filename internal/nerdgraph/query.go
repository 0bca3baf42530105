package nerdgraph

import (
	_ "embed"

	"github.com/dgraph-io/gqlparser/v2/ast"
	"github.com/dgraph-io/gqlparser/v2/parser"
)

// EntityQuery fetches the summary of one entity by GUID. It takes a single
// variable, $guid.
//
//go:embed entity.gql
var EntityQuery string

func init() {
	if _, gqlErr := parser.ParseQuery(&ast.Source{Name: "entity.gql", Input: EntityQuery}); gqlErr != nil {
		panic("nerdgraph: embedded entity query does not parse: " + gqlErr.Message)
	}
}

// EntityPayload builds the upstream payload for an entity lookup.
func EntityPayload(guid string) Payload {
	query := EntityQuery
	return Payload{
		Query:     &query,
		Variables: map[string]any{"guid": guid},
	}
}

// Operation kinds reported by OperationKind.
const (
	OpQuery        = "query"
	OpMutation     = "mutation"
	OpSubscription = "subscription"
	OpUnknown      = "unknown"
)

// OperationKind reports the type of the first operation in a caller-supplied
// document. Unparseable documents are OpUnknown; the relay forwards them
// anyway and lets the upstream answer.
func OperationKind(query string) string {
	doc, gqlErr := parser.ParseQuery(&ast.Source{Input: query})
	if gqlErr != nil || doc == nil || len(doc.Operations) == 0 {
		return OpUnknown
	}
	switch doc.Operations[0].Operation {
	case ast.Query:
		return OpQuery
	case ast.Mutation:
		return OpMutation
	case ast.Subscription:
		return OpSubscription
	default:
		return OpUnknown
	}
}
