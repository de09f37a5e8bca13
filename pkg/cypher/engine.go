package cypher

import (
	"time"

	"github.com/kkollsga/kglite/pkg/kgerr"
	"github.com/kkollsga/kglite/pkg/store"
	"github.com/kkollsga/kglite/pkg/value"
)

// Result is the outcome of one Cypher query: an ordered column list and
// the rows projected onto it, in operator-emission order (spec §4.7, §6).
type Result struct {
	Columns []string
	Rows    [][]value.Value
}

// execContext is the state threaded through every operator for a single
// query execution: the store being read, the query's parameters, and the
// monotonic per-query deadline (spec §4.7).
type execContext struct {
	store    *store.Store
	start    time.Time
	deadline time.Time
	params   map[string]value.Value
	emitted  int
}

// checkDeadline is called at hop boundaries and other natural suspension
// points in the operator tree (spec §4.7: "checked at hop boundaries").
func (c *execContext) checkDeadline() error {
	if time.Now().After(c.deadline) {
		return kgerr.Timeout(time.Since(c.start).Milliseconds())
	}
	return nil
}

// tick counts one emitted binding and checks the deadline every 4096
// bindings, the cadence spec §4.7 requires within a single unbroken hop or
// scan so a pathological query still yields to the deadline.
func (c *execContext) tick() error {
	c.emitted++
	if c.emitted%4096 == 0 {
		return c.checkDeadline()
	}
	return nil
}

// Execute parses, plans, and runs src to completion against s, enforcing a
// single monotonic deadline for the whole query (spec §4.7). A timeout
// discards whatever partial results had been computed — Execute returns
// either a complete Result or an error, never both.
func Execute(s *store.Store, src string, params map[string]value.Value, timeout time.Duration) (*Result, error) {
	q, err := Parse(src)
	if err != nil {
		return nil, err
	}
	root, items, err := plan(q)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]value.Value{}
	}

	now := time.Now()
	ctx := &execContext{store: s, start: now, deadline: now.Add(timeout), params: params}

	if err := root.open(ctx); err != nil {
		return nil, err
	}
	defer root.close()

	columns := make([]string, len(items))
	for i, item := range items {
		columns[i] = columnName(item)
	}

	var rows [][]value.Value
	for {
		if err := ctx.checkDeadline(); err != nil {
			return nil, err
		}
		b, ok, err := root.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		row := make([]value.Value, len(columns))
		for i, col := range columns {
			row[i] = b[col]
		}
		rows = append(rows, row)
	}
	return &Result{Columns: columns, Rows: rows}, nil
}
