package cypher

import (
	"testing"
	"time"

	"github.com/kkollsga/kglite/pkg/kgerr"
	"github.com/kkollsga/kglite/pkg/store"
	"github.com/kkollsga/kglite/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFixtureStore builds the small Person/KNOWS graph used throughout
// these tests: Alice(30) -KNOWS-> Bob(25) -KNOWS-> Cara(40) -KNOWS-> Dan(22),
// plus a direct Alice -KNOWS-> Cara shortcut.
func newFixtureStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New()

	people := &store.Batch{
		Columns: []string{"id", "name", "age", "active"},
		ColumnVal: map[string][]value.Value{
			"id":     {value.NewInt(1), value.NewInt(2), value.NewInt(3), value.NewInt(4)},
			"name":   {value.NewText("Alice"), value.NewText("Bob"), value.NewText("Cara"), value.NewText("Dan")},
			"age":    {value.NewInt(30), value.NewInt(25), value.NewInt(40), value.NewInt(22)},
			"active": {value.NewBool(true), value.NewBool(true), value.NewBool(false), value.NewBool(true)},
		},
		Rows: 4,
	}
	require.NoError(t, s.AddNodes(people, "Person", "id", "name"))

	knows := &store.Batch{
		Columns: []string{"src", "tgt", "since"},
		ColumnVal: map[string][]value.Value{
			"src":   {value.NewInt(1), value.NewInt(2), value.NewInt(3), value.NewInt(1)},
			"tgt":   {value.NewInt(2), value.NewInt(3), value.NewInt(4), value.NewInt(3)},
			"since": {value.NewInt(2019), value.NewInt(2020), value.NewInt(2021), value.NewInt(2018)},
		},
		Rows: 4,
	}
	require.NoError(t, s.AddConnections(knows, "KNOWS", "Person", "src", "Person", "tgt", nil))
	return s
}

func run(t *testing.T, s *store.Store, query string) *Result {
	t.Helper()
	result, err := Execute(s, query, nil, time.Second)
	require.NoError(t, err)
	return result
}

func colIndex(result *Result, name string) int {
	for i, c := range result.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func TestEngineBasicMatchReturn(t *testing.T) {
	s := newFixtureStore(t)
	result := run(t, s, "MATCH (p:Person) RETURN p.name AS name")
	assert.Len(t, result.Rows, 4)
	names := make([]string, len(result.Rows))
	idx := colIndex(result, "name")
	for i, row := range result.Rows {
		names[i] = row[idx].Text()
	}
	assert.ElementsMatch(t, []string{"Alice", "Bob", "Cara", "Dan"}, names)
}

func TestEngineWhereFilter(t *testing.T) {
	s := newFixtureStore(t)
	result := run(t, s, "MATCH (p:Person) WHERE p.age > 26 RETURN p.name AS name")
	names := make([]string, 0, len(result.Rows))
	idx := colIndex(result, "name")
	for _, row := range result.Rows {
		names = append(names, row[idx].Text())
	}
	assert.ElementsMatch(t, []string{"Alice", "Cara"}, names)
}

func TestEngineSeedPushdown(t *testing.T) {
	s := newFixtureStore(t)
	result := run(t, s, "MATCH (p:Person) WHERE p.id IN [1, 3, 99] RETURN p.name AS name")
	names := make([]string, 0, len(result.Rows))
	idx := colIndex(result, "name")
	for _, row := range result.Rows {
		names = append(names, row[idx].Text())
	}
	// id 99 does not exist and is silently skipped.
	assert.ElementsMatch(t, []string{"Alice", "Cara"}, names)
}

func TestEngineOneHopExpand(t *testing.T) {
	s := newFixtureStore(t)
	result := run(t, s, "MATCH (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person) RETURN b.name AS name")
	names := make([]string, 0, len(result.Rows))
	idx := colIndex(result, "name")
	for _, row := range result.Rows {
		names = append(names, row[idx].Text())
	}
	assert.ElementsMatch(t, []string{"Bob", "Cara"}, names)
}

func TestEngineReverseExpand(t *testing.T) {
	s := newFixtureStore(t)
	result := run(t, s, "MATCH (a:Person {name: 'Cara'})<-[:KNOWS]-(b:Person) RETURN b.name AS name")
	names := make([]string, 0, len(result.Rows))
	idx := colIndex(result, "name")
	for _, row := range result.Rows {
		names = append(names, row[idx].Text())
	}
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, names)
}

func TestEngineVariableLengthExpansion(t *testing.T) {
	s := newFixtureStore(t)
	result := run(t, s, "MATCH (a:Person {name: 'Alice'})-[:KNOWS*1..3]->(b:Person) RETURN b.name AS name")
	names := make(map[string]bool)
	idx := colIndex(result, "name")
	for _, row := range result.Rows {
		names[row[idx].Text()] = true
	}
	// Bob (1 hop), Cara (1 hop direct + 2 hop via Bob), Dan (2 hops via Cara + 3 hops via Bob,Cara).
	assert.True(t, names["Bob"])
	assert.True(t, names["Cara"])
	assert.True(t, names["Dan"])
}

func TestEngineVariableLengthIsSeedScopedNotGraphGlobal(t *testing.T) {
	s := newFixtureStore(t)
	// Every Person as a seed should independently reach its own
	// descendants; visiting Cara from Alice's BFS must not prevent Bob's
	// BFS from also reaching Cara. count(DISTINCT b) puts the expansion in
	// the mode that keeps a visited set.
	result := run(t, s, "MATCH (a:Person)-[:KNOWS*1..1]->(b:Person) RETURN a.name AS src, b.name AS dst, count(DISTINCT b) AS n")
	pairs := make(map[[2]string]bool)
	srcIdx, dstIdx := colIndex(result, "src"), colIndex(result, "dst")
	for _, row := range result.Rows {
		pairs[[2]string{row[srcIdx].Text(), row[dstIdx].Text()}] = true
	}
	assert.True(t, pairs[[2]string{"Alice", "Bob"}])
	assert.True(t, pairs[[2]string{"Alice", "Cara"}])
	assert.True(t, pairs[[2]string{"Bob", "Cara"}])
	assert.True(t, pairs[[2]string{"Cara", "Dan"}])
}

func TestEngineVariableLengthWithoutDistinctEmitsDuplicatePaths(t *testing.T) {
	s := newFixtureStore(t)
	// Alice reaches Cara both directly (1 hop) and via Bob (2 hops); with
	// no DISTINCT in play, each path is its own row (spec §4.6).
	result := run(t, s, "MATCH (a:Person {name: 'Alice'})-[:KNOWS*1..3]->(b:Person {name: 'Cara'}) RETURN b.name AS name")
	assert.Len(t, result.Rows, 2)
}

func TestEngineVariableLengthWithDistinctSuppressesDuplicatePaths(t *testing.T) {
	s := newFixtureStore(t)
	// Once the endpoint feeds count(DISTINCT b), the same rule that
	// dedupes the projected count must also dedupe the BFS itself: Cara
	// counts once even though two paths reach her.
	result := run(t, s, "MATCH (a:Person {name: 'Alice'})-[:KNOWS*1..3]->(b:Person) RETURN count(DISTINCT b) AS total")
	require.Len(t, result.Rows, 1)
	// Bob, Cara, Dan: 3 distinct endpoints despite 5 underlying paths.
	assert.Equal(t, int64(3), result.Rows[0][0].Int())
}

func TestEngineAggregateCount(t *testing.T) {
	s := newFixtureStore(t)
	result := run(t, s, "MATCH (p:Person) RETURN count(p) AS n")
	require.Len(t, result.Rows, 1)
	assert.Equal(t, int64(4), result.Rows[0][colIndex(result, "n")].Int())
}

func TestEngineAggregateGroupBy(t *testing.T) {
	s := newFixtureStore(t)
	result := run(t, s, "MATCH (p:Person) RETURN p.active AS active, count(p) AS n")
	counts := make(map[bool]int64)
	activeIdx, nIdx := colIndex(result, "active"), colIndex(result, "n")
	for _, row := range result.Rows {
		counts[row[activeIdx].Bool()] = row[nIdx].Int()
	}
	assert.Equal(t, int64(3), counts[true])
	assert.Equal(t, int64(1), counts[false])
}

func TestEngineCountDistinct(t *testing.T) {
	s := newFixtureStore(t)
	result := run(t, s, "MATCH (p:Person) RETURN count(DISTINCT p.active) AS n")
	assert.Equal(t, int64(2), result.Rows[0][colIndex(result, "n")].Int())
}

func TestEngineNoMatchLiteralReturn(t *testing.T) {
	s := newFixtureStore(t)
	result := run(t, s, "RETURN 1 + 2 AS sum")
	require.Len(t, result.Rows, 1)
	assert.Equal(t, int64(3), result.Rows[0][0].Int())
}

func TestEngineKeysFunction(t *testing.T) {
	s := newFixtureStore(t)
	result := run(t, s, "MATCH (p:Person {name: 'Alice'}) RETURN keys(p) AS ks")
	require.Len(t, result.Rows, 1)
	ks := result.Rows[0][colIndex(result, "ks")].List()
	names := make(map[string]bool)
	for _, k := range ks {
		names[k.Text()] = true
	}
	assert.True(t, names["id"])
	assert.True(t, names["age"])
	assert.True(t, names["active"])
}

func TestEngineStringFunctions(t *testing.T) {
	s := newFixtureStore(t)
	result := run(t, s, "MATCH (p:Person {name: 'Alice'}) RETURN left(p.name, 3) AS l, reverse(p.name) AS r, toString(p.age) AS s")
	row := result.Rows[0]
	assert.Equal(t, "Ali", row[colIndex(result, "l")].Text())
	assert.Equal(t, "ecilA", row[colIndex(result, "r")].Text())
	assert.Equal(t, "30", row[colIndex(result, "s")].Text())
}

func TestEngineNullPropagation(t *testing.T) {
	s := newFixtureStore(t)
	result := run(t, s, "MATCH (p:Person {name: 'Alice'}) RETURN p.nonexistent IS NULL AS isnull")
	assert.True(t, result.Rows[0][0].Bool())
}

func TestEngineTimeout(t *testing.T) {
	s := newFixtureStore(t)
	_, err := Execute(s, "MATCH (p:Person) RETURN p.name AS name", nil, 0)
	require.Error(t, err)
	assert.True(t, kgerr.Is(err, kgerr.TimeoutError))
}
