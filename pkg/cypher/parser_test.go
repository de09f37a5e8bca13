package cypher

import (
	"testing"

	"github.com/kkollsga/kglite/pkg/kgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleMatchReturn(t *testing.T) {
	q, err := Parse("MATCH (p:Person) RETURN p.name AS name")
	require.NoError(t, err)
	require.NotNil(t, q.Match)
	require.Len(t, q.Match.Pattern.Nodes, 1)
	assert.Equal(t, "p", q.Match.Pattern.Nodes[0].Variable)
	assert.Equal(t, "Person", q.Match.Pattern.Nodes[0].Label)
	require.Len(t, q.Return.Items, 1)
	assert.Equal(t, "name", q.Return.Items[0].Alias)
}

func TestParseRelationshipDirections(t *testing.T) {
	t.Run("right", func(t *testing.T) {
		q, err := Parse("MATCH (a)-[:KNOWS]->(b) RETURN a")
		require.NoError(t, err)
		assert.Equal(t, DirRight, q.Match.Pattern.Edges[0].Direction)
	})
	t.Run("left", func(t *testing.T) {
		q, err := Parse("MATCH (a)<-[:KNOWS]-(b) RETURN a")
		require.NoError(t, err)
		assert.Equal(t, DirLeft, q.Match.Pattern.Edges[0].Direction)
	})
	t.Run("undirected", func(t *testing.T) {
		q, err := Parse("MATCH (a)-[:KNOWS]-(b) RETURN a")
		require.NoError(t, err)
		assert.Equal(t, DirEither, q.Match.Pattern.Edges[0].Direction)
	})
}

func TestParseVariableLengthRanges(t *testing.T) {
	t.Run("min and max", func(t *testing.T) {
		q, err := Parse("MATCH (a)-[:KNOWS*1..3]->(b) RETURN a")
		require.NoError(t, err)
		edge := q.Match.Pattern.Edges[0]
		assert.True(t, edge.IsVarLength)
		assert.Equal(t, 1, edge.MinHops)
		assert.Equal(t, 3, edge.MaxHops)
	})

	t.Run("defaults min to 1 when omitted before ..", func(t *testing.T) {
		q, err := Parse("MATCH (a)-[:KNOWS*..3]->(b) RETURN a")
		require.NoError(t, err)
		edge := q.Match.Pattern.Edges[0]
		assert.Equal(t, 1, edge.MinHops)
		assert.Equal(t, 3, edge.MaxHops)
	})

	t.Run("defaults max to min when omitted after ..", func(t *testing.T) {
		q, err := Parse("MATCH (a)-[:KNOWS*2..]->(b) RETURN a")
		require.NoError(t, err)
		edge := q.Match.Pattern.Edges[0]
		assert.Equal(t, 2, edge.MinHops)
		assert.Equal(t, 2, edge.MaxHops)
	})

	t.Run("exact hop count with no range", func(t *testing.T) {
		q, err := Parse("MATCH (a)-[:KNOWS*2]->(b) RETURN a")
		require.NoError(t, err)
		edge := q.Match.Pattern.Edges[0]
		assert.Equal(t, 2, edge.MinHops)
		assert.Equal(t, 2, edge.MaxHops)
	})

	t.Run("bare star is a plan error", func(t *testing.T) {
		_, err := Parse("MATCH (a)-[:KNOWS*]->(b) RETURN a")
		require.Error(t, err)
		assert.True(t, kgerr.Is(err, kgerr.PlanError))
	})
}

func TestParseWhereAndExpressions(t *testing.T) {
	q, err := Parse("MATCH (p:Person) WHERE p.age > 18 AND p.active = true RETURN p")
	require.NoError(t, err)
	where, ok := q.Match.Where.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "AND", where.Op)
}

func TestParseInExpression(t *testing.T) {
	q, err := Parse("MATCH (p:Person) WHERE p.id IN [1, 2, 3] RETURN p")
	require.NoError(t, err)
	where, ok := q.Match.Where.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "IN", where.Op)
	list, ok := where.Right.(*ListExpr)
	require.True(t, ok)
	assert.Len(t, list.Items, 3)
}

func TestParseParameterReference(t *testing.T) {
	q, err := Parse("MATCH (p:Person) WHERE p.name = $target RETURN p")
	require.NoError(t, err)
	where, ok := q.Match.Where.(*BinaryExpr)
	require.True(t, ok)
	param, ok := where.Right.(*Parameter)
	require.True(t, ok)
	assert.Equal(t, "target", param.Name)
}

func TestParseFunctionCallWithDistinct(t *testing.T) {
	q, err := Parse("MATCH (p:Person) RETURN count(DISTINCT p.age) AS n")
	require.NoError(t, err)
	call, ok := q.Return.Items[0].Expr.(*FuncCall)
	require.True(t, ok)
	assert.Equal(t, "count", call.Name)
	assert.True(t, call.Distinct)
}

func TestParseWithClauseBeforeReturn(t *testing.T) {
	q, err := Parse("MATCH (p:Person) WITH p.age AS age RETURN age")
	require.NoError(t, err)
	require.NotNil(t, q.With)
	assert.Equal(t, "age", q.With.Items[0].Alias)
}

func TestParseNoMatchReturnOnly(t *testing.T) {
	q, err := Parse("RETURN 1 + 1 AS two")
	require.NoError(t, err)
	assert.Nil(t, q.Match)
	assert.Equal(t, "two", q.Return.Items[0].Alias)
}

func TestParseScientificNotationLiteral(t *testing.T) {
	q, err := Parse("RETURN 1.5e3 AS x")
	require.NoError(t, err)
	lit, ok := q.Return.Items[0].Expr.(*LiteralFloat)
	require.True(t, ok)
	assert.Equal(t, 1500.0, lit.Value)
}

func TestParseSyntaxErrorHasPosition(t *testing.T) {
	_, err := Parse("MATCH (p:Person RETURN p")
	require.Error(t, err)
	assert.True(t, kgerr.Is(err, kgerr.SyntaxError))
	assert.Contains(t, err.Error(), "(line 1, column 17)")
}

func TestParsePropertyMapPattern(t *testing.T) {
	q, err := Parse("MATCH (p:Person {active: true}) RETURN p")
	require.NoError(t, err)
	require.Contains(t, q.Match.Pattern.Nodes[0].Props, "active")
}

func TestParseUnaliasedProjectionUsesSourceText(t *testing.T) {
	q, err := Parse("MATCH (p:Person) RETURN p.age")
	require.NoError(t, err)
	assert.Equal(t, "", q.Return.Items[0].Alias)
	assert.Equal(t, "p . age", q.Return.Items[0].Text)
}
