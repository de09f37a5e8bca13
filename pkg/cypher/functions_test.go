package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionsMathDomainErrorsYieldNull(t *testing.T) {
	s := newFixtureStore(t)
	cases := []string{
		"RETURN log(0) AS x",
		"RETURN log(-1) AS x",
		"RETURN log10(0) AS x",
		"RETURN log10(-1) AS x",
		"RETURN sqrt(-4) AS x",
	}
	for _, q := range cases {
		result := run(t, s, q)
		require.Len(t, result.Rows, 1, q)
		assert.True(t, result.Rows[0][0].IsNull(), q)
	}
}

func TestFunctionsMathUnaryValidDomain(t *testing.T) {
	s := newFixtureStore(t)
	result := run(t, s, "RETURN sqrt(16) AS x")
	require.Len(t, result.Rows, 1)
	assert.Equal(t, 4.0, result.Rows[0][0].Float())

	result = run(t, s, "RETURN log10(100) AS x")
	require.Len(t, result.Rows, 1)
	assert.Equal(t, 2.0, result.Rows[0][0].Float())
}

func TestFunctionsIntegerDivisionOnlyForLiteralOperands(t *testing.T) {
	s := newFixtureStore(t)

	// Both operands are integer literals: truncating integer division.
	result := run(t, s, "RETURN 7 / 2 AS x")
	require.Len(t, result.Rows, 1)
	assert.Equal(t, int64(3), result.Rows[0][0].Int())

	// A property holding an Int64 is not a literal context: always float.
	result = run(t, s, "MATCH (p:Person {name: 'Bob'}) RETURN p.age / 2 AS x")
	require.Len(t, result.Rows, 1)
	assert.InDelta(t, 12.5, result.Rows[0][0].Float(), 1e-9)
}
