package nerdgraph

import (
	"testing"

	"github.com/dgraph-io/gqlparser/v2/ast"
	"github.com/dgraph-io/gqlparser/v2/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityQueryParses(t *testing.T) {
	doc, gqlErr := parser.ParseQuery(&ast.Source{Input: EntityQuery})
	require.Nil(t, gqlErr)
	require.Len(t, doc.Operations, 1)

	op := doc.Operations[0]
	assert.Equal(t, ast.Query, op.Operation)
	require.Len(t, op.VariableDefinitions, 1)
	assert.Equal(t, "guid", op.VariableDefinitions[0].Variable)
	assert.Equal(t, "EntityGuid", op.VariableDefinitions[0].Type.Name())
	assert.True(t, op.VariableDefinitions[0].Type.NonNull)

	for _, field := range []string{"name", "domain", "type", "guid", "entityType", "account", "id"} {
		assert.Contains(t, EntityQuery, field)
	}
}

func TestEntityPayload(t *testing.T) {
	p := EntityPayload("MTxFT3xFTlRJVFk")
	require.NotNil(t, p.Query)
	assert.Equal(t, EntityQuery, *p.Query)
	assert.Equal(t, map[string]any{"guid": "MTxFT3xFTlRJVFk"}, p.Variables)
}

func TestOperationKind(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"{ actor { user { name } } }", OpQuery},
		{"query Q($id: Int!) { actor { account(id: $id) { name } } }", OpQuery},
		{"mutation { alertsPolicyCreate(accountId: 1) { id } }", OpMutation},
		{"subscription { ticks }", OpSubscription},
		{"{ unterminated", OpUnknown},
		{"", OpUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, OperationKind(tt.query))
		})
	}
}
