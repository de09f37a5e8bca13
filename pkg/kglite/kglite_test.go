package kglite

import (
	"sync"
	"testing"
	"time"

	"github.com/kkollsga/kglite/pkg/kgerr"
	"github.com/kkollsga/kglite/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func peopleBatch() *Batch {
	return &Batch{
		Columns: []string{"id", "name", "age"},
		ColumnVal: map[string][]value.Value{
			"id":   {value.NewInt(1), value.NewInt(2), value.NewInt(3)},
			"name": {value.NewText("Alice"), value.NewText("Bob"), value.NewText("Cara")},
			"age":  {value.NewInt(30), value.NewInt(25), value.NewInt(40)},
		},
		Rows: 3,
	}
}

func knowsBatch() *Batch {
	return &Batch{
		Columns: []string{"src", "tgt"},
		ColumnVal: map[string][]value.Value{
			"src": {value.NewInt(1), value.NewInt(2)},
			"tgt": {value.NewInt(2), value.NewInt(3)},
		},
		Rows: 2,
	}
}

func TestOpenGraphStartsEmpty(t *testing.T) {
	g := OpenGraph()
	assert.Equal(t, 0, g.NumNodes())
}

func TestAddNodesAndQuery(t *testing.T) {
	g := OpenGraph()
	require.NoError(t, g.AddNodes(peopleBatch(), "Person", "id", "name"))
	assert.Equal(t, 3, g.NumNodes())

	result, err := g.Cypher("MATCH (p:Person) WHERE p.age > 28 RETURN p.name AS name", nil)
	require.NoError(t, err)
	names := make([]string, len(result.Rows))
	for i, row := range result.Rows {
		names[i] = row[0].Text()
	}
	assert.ElementsMatch(t, []string{"Alice", "Cara"}, names)
}

func TestAddConnectionsAndTraverse(t *testing.T) {
	g := OpenGraph()
	require.NoError(t, g.AddNodes(peopleBatch(), "Person", "id", "name"))
	require.NoError(t, g.AddConnections(knowsBatch(), "KNOWS", "Person", "src", "Person", "tgt", nil))

	result, err := g.Cypher("MATCH (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person) RETURN b.name AS name", nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Bob", result.Rows[0][0].Text())
}

func TestCypherTimeoutProducesTimeoutError(t *testing.T) {
	g := OpenGraph()
	require.NoError(t, g.AddNodes(peopleBatch(), "Person", "id", "name"))

	_, err := g.CypherTimeout("MATCH (p:Person) RETURN p.name AS name", nil, 0)
	require.Error(t, err)
	assert.True(t, kgerr.Is(err, kgerr.TimeoutError))
}

func TestCypherUsesParameters(t *testing.T) {
	g := OpenGraph()
	require.NoError(t, g.AddNodes(peopleBatch(), "Person", "id", "name"))

	result, err := g.Cypher("MATCH (p:Person) WHERE p.name = $target RETURN p.age AS age",
		map[string]value.Value{"target": value.NewText("Bob")})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, int64(25), result.Rows[0][0].Int())
}

// TestConcurrentReadersDoNotBlockEachOther exercises the RWMutex's shared
// read side: concurrent Cypher calls against an already-loaded graph must
// all complete without serializing on a writer lock.
func TestConcurrentReadersDoNotBlockEachOther(t *testing.T) {
	g := OpenGraph()
	require.NoError(t, g.AddNodes(peopleBatch(), "Person", "id", "name"))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := g.Cypher("MATCH (p:Person) RETURN p.name AS name", nil)
			errs[idx] = err
		}(i)
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent readers did not complete in time")
	}
	for _, err := range errs {
		assert.NoError(t, err)
	}
}
