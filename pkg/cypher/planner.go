package cypher

import (
	"fmt"
	"strings"

	"github.com/kkollsga/kglite/pkg/kgerr"
	"github.com/kkollsga/kglite/pkg/value"
)

// plan lowers a parsed Query into a root operator plus the final column
// list, composing NodeScan/Seed/Expand/Filter/With/Project/Aggregate
// left-deep (spec §4.4).
func plan(q *Query) (operator, []ProjItem, error) {
	var root operator
	var err error

	if q.Match != nil {
		root, err = planPattern(q.Match, q)
		if err != nil {
			return nil, nil, err
		}
	} else {
		root = &singleEmptyRowOp{}
	}

	if q.With != nil {
		if hasAggregate(q.With.Items) {
			root = planAggregate(root, q.With.Items)
		} else {
			root = &projectOp{input: root, items: q.With.Items}
		}
	}

	finalItems := q.Return.Items
	if hasAggregate(finalItems) {
		root = planAggregate(root, finalItems)
		return root, finalItems, nil
	}
	root = &projectOp{input: root, items: finalItems}
	return root, finalItems, nil
}

func planAggregate(input operator, items []ProjItem) operator {
	var groupItems, aggItems []ProjItem
	for _, item := range items {
		if containsAggregate(item.Expr) {
			aggItems = append(aggItems, item)
		} else {
			groupItems = append(groupItems, item)
		}
	}
	return &aggregateOp{input: input, groupItems: groupItems, aggItems: aggItems}
}

func hasAggregate(items []ProjItem) bool {
	for _, item := range items {
		if containsAggregate(item.Expr) {
			return true
		}
	}
	return false
}

func containsAggregate(e Expr) bool {
	switch n := e.(type) {
	case *FuncCall:
		if aggregateFuncs[strings.ToLower(n.Name)] {
			return true
		}
		for _, a := range n.Args {
			if containsAggregate(a) {
				return true
			}
		}
	case *BinaryExpr:
		return containsAggregate(n.Left) || containsAggregate(n.Right)
	case *UnaryExpr:
		return containsAggregate(n.Operand)
	case *PropertyAccess:
		return containsAggregate(n.Target)
	case *IsNullExpr:
		return containsAggregate(n.Operand)
	case *ListExpr:
		for _, it := range n.Items {
			if containsAggregate(it) {
				return true
			}
		}
	}
	return false
}

// planPattern lowers one MATCH clause's pattern and WHERE filter into an
// operator chain, attempting seed pushdown on the first node (spec §4.4,
// §4.6). q is the enclosing query, consulted so a variable-length edge
// knows whether its endpoint is ever wrapped in a DISTINCT aggregate
// downstream (spec §4.6's path-duplication rule).
func planPattern(m *MatchClause, q *Query) (operator, error) {
	pat := m.Pattern
	if len(pat.Nodes) == 0 {
		return nil, kgerr.New(kgerr.PlanError, "MATCH requires at least one node pattern")
	}

	// Every node gets an internal binding key, synthesizing one for
	// anonymous nodes so Expand can still chain off them. Cypher
	// identifiers never start with '$', so these never collide with a
	// user-written variable.
	nodeVars := make([]string, len(pat.Nodes))
	for i, np := range pat.Nodes {
		if np.Variable != "" {
			nodeVars[i] = np.Variable
		} else {
			nodeVars[i] = fmt.Sprintf("$n%d", i)
		}
	}

	conjuncts := splitConjuncts(m.Where)
	first := pat.Nodes[0]

	var root operator
	if first.Variable != "" && first.Label != "" {
		if pks, remaining, ok := extractSeedPushdown(conjuncts, first.Variable); ok {
			root = &seedOp{variable: nodeVars[0], label: first.Label, pks: pks}
			conjuncts = remaining
		}
	}
	if root == nil {
		root = &nodeScanOp{variable: nodeVars[0], label: first.Label}
	}
	if len(first.Props) > 0 {
		root = &filterOp{input: root, expr: propMapToExpr(nodeVars[0], first.Props)}
	}

	for i, edge := range pat.Edges {
		tgt := pat.Nodes[i+1]
		if edge.IsVarLength {
			root = &varLenExpandOp{
				input:     root,
				srcVar:    nodeVars[i],
				edgeType:  edge.Type,
				direction: edge.Direction,
				tgtVar:    nodeVars[i+1],
				tgtLabel:  tgt.Label,
				minHops:   edge.MinHops,
				maxHops:   edge.MaxHops,
				distinct:  tgt.Variable != "" && queryRequestsDistinct(q, tgt.Variable),
			}
		} else {
			root = &expandOp{
				input:     root,
				srcVar:    nodeVars[i],
				edgeVar:   edge.Variable,
				edgeType:  edge.Type,
				direction: edge.Direction,
				tgtVar:    nodeVars[i+1],
				tgtLabel:  tgt.Label,
			}
		}
		if len(tgt.Props) > 0 {
			root = &filterOp{input: root, expr: propMapToExpr(nodeVars[i+1], tgt.Props)}
		}
	}

	if rest := combineConjuncts(conjuncts); rest != nil {
		root = &filterOp{input: root, expr: rest}
	}
	return root, nil
}

// propMapToExpr turns an inline `{k: expr, ...}` node-pattern property map
// into an AND-chain of equality tests, so it can run through the ordinary
// Filter operator rather than needing its own evaluation path.
func propMapToExpr(variable string, props map[string]Expr) Expr {
	var result Expr
	for k, v := range props {
		eq := &BinaryExpr{Op: "=", Left: &PropertyAccess{Target: &Ident{Name: variable}, Property: k}, Right: v}
		if result == nil {
			result = eq
		} else {
			result = &BinaryExpr{Op: "AND", Left: result, Right: eq}
		}
	}
	return result
}

func splitConjuncts(e Expr) []Expr {
	if e == nil {
		return nil
	}
	if b, ok := e.(*BinaryExpr); ok && b.Op == "AND" {
		return append(splitConjuncts(b.Left), splitConjuncts(b.Right)...)
	}
	return []Expr{e}
}

func combineConjuncts(items []Expr) Expr {
	if len(items) == 0 {
		return nil
	}
	result := items[0]
	for _, it := range items[1:] {
		result = &BinaryExpr{Op: "AND", Left: result, Right: it}
	}
	return result
}

// extractSeedPushdown looks for a `var.id IN [literal, ...]` conjunct over
// the pattern's first node and, if found, returns its literal primary keys
// plus the remaining conjuncts (spec §4.4's seed-pushdown optimization).
func extractSeedPushdown(conjuncts []Expr, variable string) ([]value.Value, []Expr, bool) {
	for i, c := range conjuncts {
		bin, ok := c.(*BinaryExpr)
		if !ok || bin.Op != "IN" {
			continue
		}
		prop, ok := bin.Left.(*PropertyAccess)
		if !ok || prop.Property != "id" {
			continue
		}
		ident, ok := prop.Target.(*Ident)
		if !ok || ident.Name != variable {
			continue
		}
		list, ok := bin.Right.(*ListExpr)
		if !ok {
			continue
		}
		values, ok := literalListValues(list)
		if !ok {
			continue
		}
		remaining := make([]Expr, 0, len(conjuncts)-1)
		remaining = append(remaining, conjuncts[:i]...)
		remaining = append(remaining, conjuncts[i+1:]...)
		return values, remaining, true
	}
	return nil, conjuncts, false
}

// queryRequestsDistinct reports whether variable is ever passed to a
// DISTINCT-marked function call (e.g. count(DISTINCT m)) in the query's WITH
// or RETURN projections. This is how a pattern's variable-length expansion
// learns that its endpoint must be deduplicated (spec §4.6): without such a
// DISTINCT, every path is a separate row and duplicate endpoints are
// expected, not a bug.
func queryRequestsDistinct(q *Query, variable string) bool {
	check := func(items []ProjItem) bool {
		for _, item := range items {
			if exprHasDistinctRef(item.Expr, variable) {
				return true
			}
		}
		return false
	}
	if q.With != nil && check(q.With.Items) {
		return true
	}
	if q.Return != nil && check(q.Return.Items) {
		return true
	}
	return false
}

// exprHasDistinctRef walks e looking for a FuncCall{Distinct: true} whose
// arguments reference variable, directly or through a property access.
func exprHasDistinctRef(e Expr, variable string) bool {
	switch n := e.(type) {
	case *FuncCall:
		if n.Distinct {
			for _, a := range n.Args {
				if exprReferencesVar(a, variable) {
					return true
				}
			}
		}
		for _, a := range n.Args {
			if exprHasDistinctRef(a, variable) {
				return true
			}
		}
	case *BinaryExpr:
		return exprHasDistinctRef(n.Left, variable) || exprHasDistinctRef(n.Right, variable)
	case *UnaryExpr:
		return exprHasDistinctRef(n.Operand, variable)
	case *PropertyAccess:
		return exprHasDistinctRef(n.Target, variable)
	case *IsNullExpr:
		return exprHasDistinctRef(n.Operand, variable)
	case *ListExpr:
		for _, it := range n.Items {
			if exprHasDistinctRef(it, variable) {
				return true
			}
		}
	}
	return false
}

// exprReferencesVar reports whether e reads variable, either as a bare
// identifier or as the target of a property access.
func exprReferencesVar(e Expr, variable string) bool {
	switch n := e.(type) {
	case *Ident:
		return n.Name == variable
	case *PropertyAccess:
		return exprReferencesVar(n.Target, variable)
	}
	return false
}

// literalListValues extracts the Values of a list literal whose elements
// are all scalar literals (no idents, no nested calls), the shape seed
// pushdown recognizes.
func literalListValues(list *ListExpr) ([]value.Value, bool) {
	values := make([]value.Value, 0, len(list.Items))
	for _, item := range list.Items {
		switch lit := item.(type) {
		case *LiteralInt:
			values = append(values, value.NewInt(lit.Value))
		case *LiteralFloat:
			values = append(values, value.NewFloat(lit.Value))
		case *LiteralString:
			values = append(values, value.NewText(lit.Value))
		case *LiteralBool:
			values = append(values, value.NewBool(lit.Value))
		default:
			return nil, false
		}
	}
	return values, true
}
