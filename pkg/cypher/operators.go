package cypher

import (
	"fmt"
	"strings"

	"github.com/kkollsga/kglite/pkg/store"
	"github.com/kkollsga/kglite/pkg/value"
)

// Binding maps pattern and projection variable names to their current
// value within one row flowing through the operator tree (spec §4.4).
type Binding map[string]value.Value

func (b Binding) clone() Binding {
	c := make(Binding, len(b))
	for k, v := range b {
		c[k] = v
	}
	return c
}

// operator is the pull-based iterator capability shared by every plan node
// (spec §4.4, §9: a pull-based iterator model, not bulk-materializing).
// open is called once before the first next; next returns ok=false once
// the operator is exhausted; close releases any resources held open.
type operator interface {
	open(ctx *execContext) error
	next() (Binding, bool, error)
	close()
}

// singleEmptyRowOp emits exactly one empty binding, used as the root
// operator for queries with no MATCH clause (e.g. `RETURN 1 + 1`).
type singleEmptyRowOp struct{ emitted bool }

func (o *singleEmptyRowOp) open(ctx *execContext) error { o.emitted = false; return nil }

func (o *singleEmptyRowOp) next() (Binding, bool, error) {
	if o.emitted {
		return nil, false, nil
	}
	o.emitted = true
	return Binding{}, true, nil
}

func (o *singleEmptyRowOp) close() {}

// nodeScanOp iterates every node of a label, in the Store's insertion
// order (spec §3, §4.4).
type nodeScanOp struct {
	variable string
	label    string

	nodes []*store.Node
	idx   int
}

func (o *nodeScanOp) open(ctx *execContext) error {
	o.nodes = ctx.store.NodesByLabel(o.label)
	o.idx = 0
	return nil
}

func (o *nodeScanOp) next() (Binding, bool, error) {
	if o.idx >= len(o.nodes) {
		return nil, false, nil
	}
	n := o.nodes[o.idx]
	o.idx++
	return Binding{o.variable: value.NewNodeRef(int64(n.ID))}, true, nil
}

func (o *nodeScanOp) close() {}

// seedOp replaces a NodeScan when the planner detects a `WHERE var.id IN
// [...]` pushdown candidate (spec §4.4): rather than scanning the whole
// label, it looks up each literal primary key directly. Primary keys with
// no matching node are silently skipped, matching MATCH's usual "no match,
// no row" behavior.
type seedOp struct {
	variable string
	label    string
	pks      []value.Value

	ctx *execContext
	idx int
}

func (o *seedOp) open(ctx *execContext) error {
	o.ctx = ctx
	o.idx = 0
	return nil
}

func (o *seedOp) next() (Binding, bool, error) {
	for o.idx < len(o.pks) {
		pk := o.pks[o.idx]
		o.idx++
		n, ok := o.ctx.store.NodeByPK(o.label, pk)
		if !ok {
			continue
		}
		return Binding{o.variable: value.NewNodeRef(int64(n.ID))}, true, nil
	}
	return nil, false, nil
}

func (o *seedOp) close() {}

// expandOp performs one fixed-length hop across a relationship pattern,
// emitting one output binding per matching edge (spec §4.2, §4.4).
type expandOp struct {
	input     operator
	srcVar    string
	edgeVar   string
	edgeType  string
	direction Direction
	tgtVar    string
	tgtLabel  string

	ctx        *execContext
	cur        Binding
	candidates []store.EdgeID
	idx        int
}

func (o *expandOp) open(ctx *execContext) error {
	o.ctx = ctx
	return o.input.open(ctx)
}

func (o *expandOp) candidatesFrom(srcID store.NodeID) []store.EdgeID {
	switch o.direction {
	case DirRight:
		return o.ctx.store.OutEdges(srcID, o.edgeType)
	case DirLeft:
		return o.ctx.store.InEdges(srcID, o.edgeType)
	default:
		out := o.ctx.store.OutEdges(srcID, o.edgeType)
		in := o.ctx.store.InEdges(srcID, o.edgeType)
		combined := make([]store.EdgeID, 0, len(out)+len(in))
		combined = append(combined, out...)
		combined = append(combined, in...)
		return combined
	}
}

func (o *expandOp) next() (Binding, bool, error) {
	for {
		if o.cur == nil {
			b, ok, err := o.input.next()
			if err != nil || !ok {
				return nil, ok, err
			}
			o.cur = b
			o.candidates = o.candidatesFrom(store.NodeID(o.cur[o.srcVar].RefID()))
			o.idx = 0
		}
		for o.idx < len(o.candidates) {
			eid := o.candidates[o.idx]
			o.idx++
			edge := o.ctx.store.Edge(eid)
			srcID := store.NodeID(o.cur[o.srcVar].RefID())
			var otherID store.NodeID
			if edge.Source == srcID {
				otherID = edge.Target
			} else {
				otherID = edge.Source
			}
			if o.tgtLabel != "" {
				if n := o.ctx.store.Node(otherID); n == nil || n.Label != o.tgtLabel {
					continue
				}
			}
			if err := o.ctx.tick(); err != nil {
				return nil, false, err
			}
			out := o.cur.clone()
			if o.edgeVar != "" {
				out[o.edgeVar] = value.NewEdgeRef(int64(eid))
			}
			out[o.tgtVar] = value.NewNodeRef(int64(otherID))
			return out, true, nil
		}
		o.cur = nil
	}
}

func (o *expandOp) close() { o.input.close() }

// varLenExpandOp performs a `[:TYPE*min..max]` variable-length expansion.
// For each input binding it runs a breadth-first search outward from the
// bound source node. When distinct is set (the endpoint variable feeds a
// DISTINCT aggregate downstream), the search tracks a visited set scoped to
// that single source binding, not a graph-global set, so the same node can
// legitimately be reached again from a different seed within the same query
// (spec §4.6, §9). When distinct is unset, no visited set is kept at all:
// every path to an endpoint contributes its own row, and the search is
// bounded purely by maxHops rather than by deduplication. The deadline is
// checked at each hop boundary, and emitted bindings are additionally
// ticked against the 4096-binding cadence.
type varLenExpandOp struct {
	input     operator
	srcVar    string
	edgeType  string
	direction Direction
	tgtVar    string
	tgtLabel  string
	minHops   int
	maxHops   int
	distinct  bool

	ctx   *execContext
	queue []Binding
}

func (o *varLenExpandOp) open(ctx *execContext) error {
	o.ctx = ctx
	return o.input.open(ctx)
}

func (o *varLenExpandOp) next() (Binding, bool, error) {
	for len(o.queue) == 0 {
		b, ok, err := o.input.next()
		if err != nil || !ok {
			return nil, ok, err
		}
		if err := o.bfsFrom(b); err != nil {
			return nil, false, err
		}
	}
	b := o.queue[0]
	o.queue = o.queue[1:]
	return b, true, nil
}

func (o *varLenExpandOp) edgesFrom(id store.NodeID) []store.EdgeID {
	switch o.direction {
	case DirRight:
		return o.ctx.store.OutEdges(id, o.edgeType)
	case DirLeft:
		return o.ctx.store.InEdges(id, o.edgeType)
	default:
		out := o.ctx.store.OutEdges(id, o.edgeType)
		in := o.ctx.store.InEdges(id, o.edgeType)
		combined := make([]store.EdgeID, 0, len(out)+len(in))
		combined = append(combined, out...)
		combined = append(combined, in...)
		return combined
	}
}

func (o *varLenExpandOp) bfsFrom(base Binding) error {
	startID := store.NodeID(base[o.srcVar].RefID())
	frontier := []store.NodeID{startID}
	var visited map[store.NodeID]bool
	if o.distinct {
		visited = map[store.NodeID]bool{startID: true}
	}

	for hop := 1; hop <= o.maxHops && len(frontier) > 0; hop++ {
		if err := o.ctx.checkDeadline(); err != nil {
			return err
		}
		var next []store.NodeID
		for _, id := range frontier {
			for _, eid := range o.edgesFrom(id) {
				edge := o.ctx.store.Edge(eid)
				var other store.NodeID
				if edge.Source == id {
					other = edge.Target
				} else {
					other = edge.Source
				}
				if o.distinct {
					if visited[other] {
						continue
					}
					visited[other] = true
				}
				next = append(next, other)

				if hop < o.minHops {
					continue
				}
				if o.tgtLabel != "" {
					if n := o.ctx.store.Node(other); n == nil || n.Label != o.tgtLabel {
						continue
					}
				}
				if err := o.ctx.tick(); err != nil {
					return err
				}
				out := base.clone()
				out[o.tgtVar] = value.NewNodeRef(int64(other))
				o.queue = append(o.queue, out)
			}
		}
		frontier = next
	}
	return nil
}

func (o *varLenExpandOp) close() { o.input.close() }

// filterOp drops bindings for which expr does not evaluate to true; Null
// is treated as false (spec §4.4, §4.5).
type filterOp struct {
	input operator
	expr  Expr
	ctx   *execContext
}

func (o *filterOp) open(ctx *execContext) error {
	o.ctx = ctx
	return o.input.open(ctx)
}

func (o *filterOp) next() (Binding, bool, error) {
	for {
		b, ok, err := o.input.next()
		if err != nil || !ok {
			return nil, ok, err
		}
		v, err := eval(o.expr, b, o.ctx)
		if err != nil {
			return nil, false, err
		}
		if value.Truthy(v) {
			return b, true, nil
		}
	}
}

func (o *filterOp) close() { o.input.close() }

// projectOp evaluates a projection list against each input binding,
// producing a fresh Binding keyed by each item's output column name (spec
// §4.4: With/Project). It backs both WITH and RETURN when no aggregate
// function is present.
type projectOp struct {
	input operator
	items []ProjItem
	ctx   *execContext
}

func (o *projectOp) open(ctx *execContext) error {
	o.ctx = ctx
	return o.input.open(ctx)
}

func (o *projectOp) next() (Binding, bool, error) {
	b, ok, err := o.input.next()
	if err != nil || !ok {
		return nil, ok, err
	}
	out := make(Binding, len(o.items))
	for _, item := range o.items {
		v, err := eval(item.Expr, b, o.ctx)
		if err != nil {
			return nil, false, err
		}
		out[columnName(item)] = v
	}
	return out, true, nil
}

func (o *projectOp) close() { o.input.close() }

// columnName is the output column name of a projection item: its alias,
// or the token-rebuilt expression text when no AS was given (spec §6).
func columnName(item ProjItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	return item.Text
}

// aggregateFuncs names the aggregate function identifiers recognized by
// the planner when deciding whether a projection list requires grouping
// (spec §4.8).
var aggregateFuncs = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true, "collect": true,
}

// aggregateOp groups input bindings by the non-aggregate projection items
// and computes the aggregate projection items per group (spec §4.4, §4.8).
// Unlike the streaming operators, aggregateOp must see every input row
// before it can emit its first output row, so it materializes its groups
// during open rather than lazily during next.
type aggregateOp struct {
	input      operator
	groupItems []ProjItem
	aggItems   []ProjItem

	results []Binding
	idx     int
}

type aggGroup struct {
	keyBinding Binding
	acc        map[string]*aggAccumulator
}

func (o *aggregateOp) open(ctx *execContext) error {
	if err := o.input.open(ctx); err != nil {
		return err
	}

	groups := make(map[string]*aggGroup)
	var order []string

	for {
		b, ok, err := o.input.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		keyBinding := make(Binding, len(o.groupItems))
		var keyParts []string
		for _, item := range o.groupItems {
			v, err := eval(item.Expr, b, ctx)
			if err != nil {
				return err
			}
			keyBinding[columnName(item)] = v
			keyParts = append(keyParts, fmt.Sprintf("%d/%s", v.Hash(), v.Tag()))
		}
		key := strings.Join(keyParts, "|")

		g, exists := groups[key]
		if !exists {
			g = &aggGroup{keyBinding: keyBinding, acc: make(map[string]*aggAccumulator, len(o.aggItems))}
			for _, item := range o.aggItems {
				g.acc[columnName(item)] = newAggAccumulator(item.Expr.(*FuncCall))
			}
			groups[key] = g
			order = append(order, key)
		}

		for _, item := range o.aggItems {
			fc := item.Expr.(*FuncCall)
			var argVal value.Value
			if len(fc.Args) > 0 {
				v, err := eval(fc.Args[0], b, ctx)
				if err != nil {
					return err
				}
				argVal = v
			}
			g.acc[columnName(item)].add(fc, argVal)
		}
		if err := ctx.tick(); err != nil {
			return err
		}
	}

	if len(order) == 0 && len(o.groupItems) == 0 {
		// Aggregating over zero rows with no grouping key still yields a
		// single row (count() -> 0, sum() -> 0, etc.), matching standard
		// Cypher aggregate semantics.
		g := &aggGroup{keyBinding: Binding{}, acc: make(map[string]*aggAccumulator, len(o.aggItems))}
		for _, item := range o.aggItems {
			g.acc[columnName(item)] = newAggAccumulator(item.Expr.(*FuncCall))
		}
		groups[""] = g
		order = append(order, "")
	}

	o.results = make([]Binding, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := g.keyBinding.clone()
		for _, item := range o.aggItems {
			row[columnName(item)] = g.acc[columnName(item)].result()
		}
		o.results = append(o.results, row)
	}
	return nil
}

func (o *aggregateOp) next() (Binding, bool, error) {
	if o.idx >= len(o.results) {
		return nil, false, nil
	}
	b := o.results[o.idx]
	o.idx++
	return b, true, nil
}

func (o *aggregateOp) close() { o.input.close() }

// aggAccumulator accumulates one aggregate function's running state across
// a single group (spec §4.8). DISTINCT dedup uses the same structural
// hashing as count(DISTINCT x) (spec §4.1, §4.5).
type aggAccumulator struct {
	fn       string
	distinct bool
	seen     *value.Set

	count      int64
	sum        float64
	sumIsFloat bool
	min, max   value.Value
	hasMinMax  bool
	collected  []value.Value
}

func newAggAccumulator(fc *FuncCall) *aggAccumulator {
	return &aggAccumulator{fn: strings.ToLower(fc.Name), distinct: fc.Distinct, seen: value.NewSet()}
}

func (a *aggAccumulator) add(fc *FuncCall, v value.Value) {
	if a.distinct {
		if a.fn != "count" && v.IsNull() {
			return
		}
		if !a.seen.Add(v) {
			return
		}
	}
	switch a.fn {
	case "count":
		if len(fc.Args) == 0 || !v.IsNull() {
			a.count++
		}
	case "sum":
		if v.IsNull() {
			return
		}
		a.sum += v.AsFloat()
		if v.Tag() == value.Float64 {
			a.sumIsFloat = true
		}
	case "avg":
		if v.IsNull() {
			return
		}
		a.sum += v.AsFloat()
		a.count++
	case "min":
		if v.IsNull() {
			return
		}
		if !a.hasMinMax || value.Compare(v, a.min) < 0 {
			a.min, a.hasMinMax = v, true
		}
	case "max":
		if v.IsNull() {
			return
		}
		if !a.hasMinMax || value.Compare(v, a.max) > 0 {
			a.max, a.hasMinMax = v, true
		}
	case "collect":
		if v.IsNull() {
			return
		}
		a.collected = append(a.collected, v)
	}
}

func (a *aggAccumulator) result() value.Value {
	switch a.fn {
	case "count":
		return value.NewInt(a.count)
	case "sum":
		if a.sumIsFloat {
			return value.NewFloat(a.sum)
		}
		return value.NewInt(int64(a.sum))
	case "avg":
		if a.count == 0 {
			return value.Nil
		}
		return value.NewFloat(a.sum / float64(a.count))
	case "min":
		if !a.hasMinMax {
			return value.Nil
		}
		return a.min
	case "max":
		if !a.hasMinMax {
			return value.Nil
		}
		return a.max
	case "collect":
		return value.NewList(a.collected)
	default:
		return value.Nil
	}
}
