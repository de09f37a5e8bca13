// Package kglite is the embedded, in-process API surface of the KGLite
// graph engine: open a graph, bulk-load nodes and relationships in
// columnar batches, and run Cypher-subset queries against it (spec §1,
// §6).
package kglite

import (
	"sync"
	"time"

	"github.com/kkollsga/kglite/pkg/cypher"
	"github.com/kkollsga/kglite/pkg/store"
	"github.com/kkollsga/kglite/pkg/value"
)

// DefaultQueryTimeout bounds a Cypher call when no explicit timeout is
// given (spec §4.7).
const DefaultQueryTimeout = 30 * time.Second

// Batch is the tabular ingestion unit consumed by AddNodes and
// AddConnections (spec §6's add_nodes/add_connections contract).
type Batch = store.Batch

// Result is the outcome of a Cypher query (spec §6).
type Result = cypher.Result

// Graph is a single in-memory property graph opened for bulk-loading and
// querying. Graph is safe for concurrent use: loads take the exclusive
// side of an RWMutex, queries take the shared side, enforcing the
// reader/writer exclusivity spec §5 requires without serializing
// concurrent read-only queries against each other.
type Graph struct {
	mu    sync.RWMutex
	store *store.Store
}

// OpenGraph returns a new, empty Graph (spec §6: open_graph).
func OpenGraph() *Graph {
	return &Graph{store: store.New()}
}

// AddNodes bulk-loads batch as nodes of label, indexing idCol as the
// primary key and titleCol as the title (spec §6: add_nodes).
func (g *Graph) AddNodes(batch *Batch, label, idCol, titleCol string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.AddNodes(batch, label, idCol, titleCol)
}

// AddConnections bulk-loads batch as relType relationships from srcLabel
// to tgtLabel, resolved through each label's primary-key index (spec §6:
// add_connections). columns, if non-nil, restricts which batch columns
// become relationship properties; nil stores every remaining column.
func (g *Graph) AddConnections(batch *Batch, relType, srcLabel, srcCol, tgtLabel, tgtCol string, columns []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.AddConnections(batch, relType, srcLabel, srcCol, tgtLabel, tgtCol, columns)
}

// Cypher runs a Cypher-subset query against the graph with the default
// query timeout (spec §6: cypher).
func (g *Graph) Cypher(query string, params map[string]value.Value) (*Result, error) {
	return g.CypherTimeout(query, params, DefaultQueryTimeout)
}

// CypherTimeout runs query with an explicit per-query deadline (spec §4.7).
func (g *Graph) CypherTimeout(query string, params map[string]value.Value, timeout time.Duration) (*Result, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return cypher.Execute(g.store, query, params, timeout)
}

// NumNodes reports the number of nodes currently loaded.
func (g *Graph) NumNodes() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.NumNodes()
}
