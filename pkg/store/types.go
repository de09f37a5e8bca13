// Package store implements KGLite's in-memory labeled property graph: node
// and edge arenas, per-label primary-key indexes, and per-relationship-type
// adjacency (spec §3, §4.2).
//
// Nodes and edges are created only via bulk load (New + AddNodes +
// AddConnections); there is no mutation API. Once loaded, a Store is safe
// for concurrent reads from multiple goroutines — see pkg/kglite for the
// reader/writer exclusivity policy built on top of this package.
package store

import "github.com/kkollsga/kglite/pkg/value"

// NodeID is a dense, stable 64-bit internal node identifier (spec §3).
type NodeID int64

// EdgeID is a dense, stable 64-bit internal edge identifier (spec §3).
type EdgeID int64

// Synthetic property names every Node and Edge implicitly carries,
// readable by keys() (spec §3).
const (
	PropID    = "id"
	PropTitle = "title"
	PropType  = "type"
)

// Node is a graph vertex: one label, a primary key, a title, and a bag of
// user properties.
type Node struct {
	ID    NodeID
	Label string

	// PK is the user-supplied primary key value (the id_col column),
	// unique within Label.
	PK value.Value

	// Title is the user-supplied title/name column value.
	Title value.Value

	// Props holds the remaining, non-synthetic columns, in the order they
	// were first seen across the batch (insertion order, per spec §3's
	// keys() invariant).
	Props      map[string]value.Value
	propOrder  []string
}

// NewNode allocates a Node with an empty property bag.
func NewNode(id NodeID, label string, pk, title value.Value) *Node {
	return &Node{ID: id, Label: label, PK: pk, Title: title, Props: make(map[string]value.Value)}
}

// SetProp records a user property, tracking first-seen order for keys().
func (n *Node) SetProp(name string, v value.Value) {
	if _, exists := n.Props[name]; !exists {
		n.propOrder = append(n.propOrder, name)
	}
	n.Props[name] = v
}

// Property looks up a property by name, checking synthetic keys first.
// Unknown properties yield Null, never an error (spec §4.5).
func (n *Node) Property(name string) value.Value {
	switch name {
	case PropID:
		return n.PK
	case PropTitle:
		return n.Title
	case PropType:
		return value.NewText(n.Label)
	}
	if v, ok := n.Props[name]; ok {
		return v
	}
	return value.Nil
}

// Keys returns every property name physically stored on n plus the
// synthetic id/title/type keys, in insertion order, de-duplicated (spec
// §3). Synthetic keys are prepended since they are conceptually present
// before any user column is read; the source tests assert set membership,
// not sequence (spec §9 Open Question).
func (n *Node) Keys() []value.Value {
	keys := make([]value.Value, 0, len(n.propOrder)+3)
	keys = append(keys, value.NewText(PropID), value.NewText(PropTitle), value.NewText(PropType))
	for _, k := range n.propOrder {
		if k == PropID || k == PropTitle || k == PropType {
			continue
		}
		keys = append(keys, value.NewText(k))
	}
	return keys
}

// Edge is a directed graph relationship: one type, a source and target
// node, and a bag of user properties.
type Edge struct {
	ID     EdgeID
	Type   string
	Source NodeID
	Target NodeID

	Props     map[string]value.Value
	propOrder []string
}

// NewEdge allocates an Edge with an empty property bag.
func NewEdge(id EdgeID, edgeType string, src, tgt NodeID) *Edge {
	return &Edge{ID: id, Type: edgeType, Source: src, Target: tgt, Props: make(map[string]value.Value)}
}

// SetProp records a user property, tracking first-seen order for keys().
func (e *Edge) SetProp(name string, v value.Value) {
	if _, exists := e.Props[name]; !exists {
		e.propOrder = append(e.propOrder, name)
	}
	e.Props[name] = v
}

// Property looks up a property by name; the synthetic "type" key and
// unknown properties are handled the same way Node.Property handles them.
func (e *Edge) Property(name string) value.Value {
	if name == PropType {
		return value.NewText(e.Type)
	}
	if v, ok := e.Props[name]; ok {
		return v
	}
	return value.Nil
}

// Keys returns every stored property name plus the synthetic "type" key,
// in insertion order, de-duplicated (spec §3).
func (e *Edge) Keys() []value.Value {
	keys := make([]value.Value, 0, len(e.propOrder)+1)
	keys = append(keys, value.NewText(PropType))
	for _, k := range e.propOrder {
		if k == PropType {
			continue
		}
		keys = append(keys, value.NewText(k))
	}
	return keys
}
