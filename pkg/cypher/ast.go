package cypher

// AST node types for the Cypher subset of spec §4.3.
//
// Query is the root: an optional MATCH (with an optional WHERE), an
// optional WITH projection, and a mandatory final RETURN projection.

// Query is a full parsed Cypher statement.
type Query struct {
	Match  *MatchClause
	With   *WithClause
	Return *ReturnClause
}

// MatchClause holds the pattern and optional filter of a MATCH clause.
type MatchClause struct {
	Pattern *Pattern
	Where   Expr // nil if absent
}

// WithClause is an intermediate projection that introduces a visibility
// boundary (spec §4.4's With operator).
type WithClause struct {
	Items []ProjItem
}

// ReturnClause is the final projection.
type ReturnClause struct {
	Items []ProjItem
}

// ProjItem is a single projected expression, optionally aliased.
type ProjItem struct {
	Expr  Expr
	Alias string // "" if no AS given; callers fall back to expression text
	Text  string // expression text rebuilt from its tokens (space-separated), for unaliased column names
}

// Pattern is a chain of node patterns connected by relationship patterns:
// Nodes[0] (Edges[0]) Nodes[1] (Edges[1]) Nodes[2] ...
type Pattern struct {
	Nodes []*NodePattern
	Edges []*EdgePattern
}

// NodePattern is one `(var:Label {props})` element of a pattern.
type NodePattern struct {
	Variable string
	Label    string // "" if unlabeled
	Props    map[string]Expr
}

// Direction is the arrow direction of a relationship pattern.
type Direction int

const (
	DirRight Direction = iota // -[...]->
	DirLeft                    // <-[...]-
	DirEither                  // -[...]-
)

// EdgePattern is one `-[var:TYPE*min..max]->` element of a pattern.
type EdgePattern struct {
	Variable  string
	Type      string // "" if untyped
	Direction Direction

	// Variable-length bounds. IsVarLength is false for a plain single-hop
	// edge; when true, MinHops/MaxHops are always populated per the
	// defaulting rules of spec §4.6.
	IsVarLength bool
	MinHops     int
	MaxHops     int
}

// Expr is any scalar expression node.
type Expr interface {
	exprNode()
}

type LiteralNull struct{}
type LiteralBool struct{ Value bool }
type LiteralInt struct{ Value int64 }
type LiteralFloat struct{ Value float64 }
type LiteralString struct{ Value string }

// ListExpr is a list literal `[e1, e2, ...]`.
type ListExpr struct{ Items []Expr }

// Ident is a bare variable reference.
type Ident struct{ Name string }

// PropertyAccess is `expr.prop`.
type PropertyAccess struct {
	Target   Expr
	Property string
}

// Parameter is a `$name` query parameter reference.
type Parameter struct{ Name string }

// FuncCall is `name(args...)`, optionally with DISTINCT before the first
// argument (only meaningful for aggregate functions).
type FuncCall struct {
	Name     string
	Args     []Expr
	Distinct bool
}

// BinaryExpr covers arithmetic, comparison, and logical binary operators.
type BinaryExpr struct {
	Op    string // "+", "-", "*", "/", "%", "=", "<>", "<", "<=", ">", ">=", "AND", "OR", "XOR", "IN"
	Left  Expr
	Right Expr
}

// UnaryExpr covers NOT and unary minus.
type UnaryExpr struct {
	Op      string // "NOT", "-"
	Operand Expr
}

// IsNullExpr is `expr IS NULL` / `expr IS NOT NULL`.
type IsNullExpr struct {
	Operand Expr
	Negate  bool
}

func (*LiteralNull) exprNode()    {}
func (*LiteralBool) exprNode()    {}
func (*LiteralInt) exprNode()     {}
func (*LiteralFloat) exprNode()   {}
func (*LiteralString) exprNode()  {}
func (*ListExpr) exprNode()       {}
func (*Ident) exprNode()          {}
func (*PropertyAccess) exprNode() {}
func (*Parameter) exprNode()      {}
func (*FuncCall) exprNode()       {}
func (*BinaryExpr) exprNode()     {}
func (*UnaryExpr) exprNode()      {}
func (*IsNullExpr) exprNode()     {}
