package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/runtime/internal/record"
)

func TestSqlQueryParamsRenderAsJSONArray(t *testing.T) {
	n := SqlQuery{Cfg: SqlQueryConfig{
		Query:          "SELECT * FROM users WHERE id = $1 AND name = $2",
		ParamsTemplate: `[{{id}}, "{{name}}"]`,
	}}
	in := record.Map(map[string]record.Record{
		"id":   record.Number(7),
		"name": record.String("ada"),
	})

	params, err := n.params(in)
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, 7.0, params[0])
	assert.Equal(t, "ada", params[1])
}

func TestSqlQueryParamsEmptyTemplateMeansNoParams(t *testing.T) {
	n := SqlQuery{Cfg: SqlQueryConfig{Query: "SELECT 1"}}
	params, err := n.params(record.Null)
	require.NoError(t, err)
	assert.Nil(t, params)
}

func TestSqlQueryParamsRejectNonArrayRender(t *testing.T) {
	n := SqlQuery{Cfg: SqlQueryConfig{Query: "SELECT 1", ParamsTemplate: `{{name}}`}}
	in := record.Map(map[string]record.Record{"name": record.String("not an array")})
	_, err := n.params(in)
	require.Error(t, err)
}

func TestSqlQueryParamsScreenInjectionAttempts(t *testing.T) {
	n := SqlQuery{Cfg: SqlQueryConfig{Query: "SELECT 1", ParamsTemplate: `["{{v}}"]`}}
	in := record.Map(map[string]record.Record{
		"v": record.String("x'; DROP TABLE users; --"),
	})
	_, err := n.params(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}
