package store

import (
	"github.com/kkollsga/kglite/pkg/kgerr"
	"github.com/kkollsga/kglite/pkg/value"
)

// Store is the arena-backed, label-indexed, adjacency-indexed in-memory
// graph. Store is grown only by AddNodes/AddConnections; there is no
// mutation or deletion API (spec §1 Non-goals).
//
// Store's query-facing methods (NodesByLabel, NodeByPK, OutEdges, InEdges)
// are safe to call concurrently from multiple goroutines once loading has
// finished — the Store itself does not hold a lock; pkg/kglite.Graph
// enforces the writer-exclusivity rule of spec §5 around calls into Store.
type Store struct {
	nodes []*Node
	edges []*Edge

	// nodesByLabel preserves insertion order per label (spec §3: "stable
	// order" for NodeScan).
	nodesByLabel map[string][]*Node

	// pkIndex maps label -> primary key hash -> node, for node_by_pk
	// lookups and WHERE n.id IN [...] seed pushdown.
	pkIndex map[string]*pkTable

	// outAdj/inAdj map node id -> relationship type -> ordered edge ids,
	// insertion order (spec §3).
	outAdj map[NodeID]map[string][]EdgeID
	inAdj  map[NodeID]map[string][]EdgeID
}

// pkTable is a hash-bucketed primary-key index for one label. Value.Hash
// does not alone guarantee identity, so each bucket is checked with
// value.Equal on lookup, matching pkg/value.Set's collision handling.
type pkTable struct {
	buckets map[uint64][]pkEntry
}

type pkEntry struct {
	pk value.Value
	id NodeID
}

func newPKTable() *pkTable { return &pkTable{buckets: make(map[uint64][]pkEntry)} }

func (t *pkTable) put(pk value.Value, id NodeID) bool {
	h := pk.Hash()
	for _, e := range t.buckets[h] {
		if value.Equal(e.pk, pk) {
			return false // duplicate
		}
	}
	t.buckets[h] = append(t.buckets[h], pkEntry{pk: pk, id: id})
	return true
}

func (t *pkTable) get(pk value.Value) (NodeID, bool) {
	for _, e := range t.buckets[pk.Hash()] {
		if value.Equal(e.pk, pk) {
			return e.id, true
		}
	}
	return 0, false
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		nodesByLabel: make(map[string][]*Node),
		pkIndex:      make(map[string]*pkTable),
		outAdj:       make(map[NodeID]map[string][]EdgeID),
		inAdj:        make(map[NodeID]map[string][]EdgeID),
	}
}

// Batch is a columnar, uniform-row-count table — the Go-native shape of the
// tabular ingestion contract described at spec §6 (the distilled spec treats
// construction of a Batch, e.g. from pandas, as out of scope; this type is
// the interface the Store consumes).
type Batch struct {
	Columns   []string
	ColumnVal map[string][]value.Value
	Rows      int
}

// Column returns the values in column name, or nil if the column is absent.
func (b *Batch) Column(name string) []value.Value {
	return b.ColumnVal[name]
}

// AddNodes bulk-loads one node per row of batch under label, indexing
// idCol as the primary key and titleCol as the title (spec §4.2).
//
// Every other column in the batch becomes a stored property. Returns
// SchemaError if idCol or titleCol is missing from the batch, IntegrityError
// on a duplicate primary key within label.
func (s *Store) AddNodes(batch *Batch, label, idCol, titleCol string) error {
	idValues, ok := batch.ColumnVal[idCol]
	if !ok {
		return kgerr.New(kgerr.SchemaError, "add_nodes: id column %q not present in batch", idCol)
	}
	titleValues, ok := batch.ColumnVal[titleCol]
	if !ok {
		return kgerr.New(kgerr.SchemaError, "add_nodes: title column %q not present in batch", titleCol)
	}

	table, ok := s.pkIndex[label]
	if !ok {
		table = newPKTable()
		s.pkIndex[label] = table
	}

	for row := 0; row < batch.Rows; row++ {
		pk := idValues[row]
		id := NodeID(len(s.nodes))
		node := NewNode(id, label, pk, titleValues[row])

		for _, col := range batch.Columns {
			if col == idCol || col == titleCol {
				continue
			}
			node.SetProp(col, batch.ColumnVal[col][row])
		}

		if !table.put(pk, id) {
			return kgerr.New(kgerr.IntegrityError, "add_nodes: duplicate primary key %v for label %q", value.ToText(pk).Text(), label)
		}

		s.nodes = append(s.nodes, node)
		s.nodesByLabel[label] = append(s.nodesByLabel[label], node)
	}
	return nil
}

// AddConnections bulk-loads one edge per row of batch, looking up endpoints
// through the label primary-key indexes (spec §4.2).
//
// columns, if non-empty, lists which batch columns become edge properties;
// if nil, every non-endpoint column is stored. Returns ReferenceError if
// either endpoint's primary key is not found under its label.
func (s *Store) AddConnections(batch *Batch, relType, srcLabel, srcCol, tgtLabel, tgtCol string, columns []string) error {
	srcValues, ok := batch.ColumnVal[srcCol]
	if !ok {
		return kgerr.New(kgerr.SchemaError, "add_connections: source column %q not present in batch", srcCol)
	}
	tgtValues, ok := batch.ColumnVal[tgtCol]
	if !ok {
		return kgerr.New(kgerr.SchemaError, "add_connections: target column %q not present in batch", tgtCol)
	}

	srcTable := s.pkIndex[srcLabel]
	tgtTable := s.pkIndex[tgtLabel]

	propCols := columns
	if propCols == nil {
		for _, c := range batch.Columns {
			if c != srcCol && c != tgtCol {
				propCols = append(propCols, c)
			}
		}
	}

	for row := 0; row < batch.Rows; row++ {
		srcPK, tgtPK := srcValues[row], tgtValues[row]

		var srcID, tgtID NodeID
		if srcTable == nil {
			return kgerr.New(kgerr.ReferenceError, "add_connections: source node %v not found in label %q", value.ToText(srcPK).Text(), srcLabel)
		}
		if srcID, ok = srcTable.get(srcPK); !ok {
			return kgerr.New(kgerr.ReferenceError, "add_connections: source node %v not found in label %q", value.ToText(srcPK).Text(), srcLabel)
		}
		if tgtTable == nil {
			return kgerr.New(kgerr.ReferenceError, "add_connections: target node %v not found in label %q", value.ToText(tgtPK).Text(), tgtLabel)
		}
		if tgtID, ok = tgtTable.get(tgtPK); !ok {
			return kgerr.New(kgerr.ReferenceError, "add_connections: target node %v not found in label %q", value.ToText(tgtPK).Text(), tgtLabel)
		}

		id := EdgeID(len(s.edges))
		edge := NewEdge(id, relType, srcID, tgtID)
		for _, col := range propCols {
			if vals, ok := batch.ColumnVal[col]; ok {
				edge.SetProp(col, vals[row])
			}
		}
		s.edges = append(s.edges, edge)

		if s.outAdj[srcID] == nil {
			s.outAdj[srcID] = make(map[string][]EdgeID)
		}
		s.outAdj[srcID][relType] = append(s.outAdj[srcID][relType], id)

		if s.inAdj[tgtID] == nil {
			s.inAdj[tgtID] = make(map[string][]EdgeID)
		}
		s.inAdj[tgtID][relType] = append(s.inAdj[tgtID][relType], id)
	}
	return nil
}

// NodesByLabel returns every node with the given label, in insertion order.
func (s *Store) NodesByLabel(label string) []*Node {
	return s.nodesByLabel[label]
}

// NodeByPK looks up the node with the given primary key under label.
func (s *Store) NodeByPK(label string, pk value.Value) (*Node, bool) {
	table, ok := s.pkIndex[label]
	if !ok {
		return nil, false
	}
	id, ok := table.get(pk)
	if !ok {
		return nil, false
	}
	return s.nodes[id], true
}

// Node returns the node with the given internal id.
func (s *Store) Node(id NodeID) *Node {
	if int(id) < 0 || int(id) >= len(s.nodes) {
		return nil
	}
	return s.nodes[id]
}

// Edge returns the edge with the given internal id.
func (s *Store) Edge(id EdgeID) *Edge {
	if int(id) < 0 || int(id) >= len(s.edges) {
		return nil
	}
	return s.edges[id]
}

// NumNodes returns the number of nodes currently loaded, which is also the
// size of the dense internal-id space.
func (s *Store) NumNodes() int { return len(s.nodes) }

// OutEdges returns the outgoing edges of n, optionally filtered to
// relType, in insertion order (spec §3, §4.2). Reverse and forward
// adjacency are both queryable in O(degree).
func (s *Store) OutEdges(n NodeID, relType string) []EdgeID {
	byType := s.outAdj[n]
	if byType == nil {
		return nil
	}
	if relType == "" {
		return flattenAdjacency(byType)
	}
	return byType[relType]
}

// InEdges returns the incoming edges of n, optionally filtered to relType.
func (s *Store) InEdges(n NodeID, relType string) []EdgeID {
	byType := s.inAdj[n]
	if byType == nil {
		return nil
	}
	if relType == "" {
		return flattenAdjacency(byType)
	}
	return byType[relType]
}

// flattenAdjacency concatenates every relationship type's edge list when no
// type filter is given. Order is only guaranteed within a single type; the
// across-type order follows Go's unordered map iteration, which is
// acceptable here since spec §5's ordering guarantee is about scan and
// expansion order, not about unfiltered multi-type traversal.
func flattenAdjacency(byType map[string][]EdgeID) []EdgeID {
	var out []EdgeID
	for _, ids := range byType {
		out = append(out, ids...)
	}
	return out
}
