package cypher

import (
	"strconv"
	"strings"

	"github.com/kkollsga/kglite/pkg/kgerr"
)

// Parser is a hand-written recursive-descent parser with a Pratt-style
// expression layer, per spec §4.3/§9. It consumes the token stream produced
// by Lexer and builds a Query AST.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse parses a full Cypher query string.
func Parse(src string) (*Query, error) {
	toks, err := AllTokens(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: toks}
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		tok := p.peek()
		return nil, kgerr.AtPosition(tok.Line, tok.Column, "unexpected token %s after query", tokenDesc(tok))
	}
	return q, nil
}

// --- token stream helpers -------------------------------------------------

func (p *Parser) peek() Token { return p.tokens[p.pos] }

func (p *Parser) atEOF() bool { return p.peek().Kind == TokEOF }

func (p *Parser) advance() Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

// isKeyword reports whether the current token is the given keyword
// (case-insensitive match already folded by the lexer into upper case).
func (p *Parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.Kind == TokKeyword && t.Text == kw
}

func (p *Parser) isPunct(s string) bool {
	t := p.peek()
	return t.Kind == TokPunct && t.Text == s
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		t := p.peek()
		return kgerr.AtPosition(t.Line, t.Column, "expected %q, found %s", kw, tokenDesc(t))
	}
	p.advance()
	return nil
}

func (p *Parser) expectPunct(s string) error {
	if !p.isPunct(s) {
		t := p.peek()
		return kgerr.AtPosition(t.Line, t.Column, "expected %q, found %s", s, tokenDesc(t))
	}
	p.advance()
	return nil
}

func (p *Parser) expectIdent() (string, error) {
	t := p.peek()
	if t.Kind != TokIdent {
		return "", kgerr.AtPosition(t.Line, t.Column, "expected identifier, found %s", tokenDesc(t))
	}
	p.advance()
	return t.Text, nil
}

// --- top-level query -------------------------------------------------------

// parseQuery implements `query := (MATCH pattern (WHERE expr)?)? (WITH proj)? RETURN proj`.
func (p *Parser) parseQuery() (*Query, error) {
	q := &Query{}

	if p.isKeyword("MATCH") || p.isKeyword("OPTIONAL") {
		if p.isKeyword("OPTIONAL") {
			p.advance()
		}
		if err := p.expectKeyword("MATCH"); err != nil {
			return nil, err
		}
		pattern, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		match := &MatchClause{Pattern: pattern}
		if p.isKeyword("WHERE") {
			p.advance()
			where, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			match.Where = where
		}
		q.Match = match
	}

	if p.isKeyword("WITH") {
		p.advance()
		items, err := p.parseProjItems()
		if err != nil {
			return nil, err
		}
		q.With = &WithClause{Items: items}
	}

	if err := p.expectKeyword("RETURN"); err != nil {
		return nil, err
	}
	items, err := p.parseProjItems()
	if err != nil {
		return nil, err
	}
	q.Return = &ReturnClause{Items: items}

	return q, nil
}

// --- pattern ---------------------------------------------------------------

// parsePattern implements `pattern := nodePat (relPat nodePat)*`.
func (p *Parser) parsePattern() (*Pattern, error) {
	pat := &Pattern{}
	node, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}
	pat.Nodes = append(pat.Nodes, node)

	for p.isPunct("-") || p.isPunct("<-") {
		edge, err := p.parseEdgePattern()
		if err != nil {
			return nil, err
		}
		node, err := p.parseNodePattern()
		if err != nil {
			return nil, err
		}
		pat.Edges = append(pat.Edges, edge)
		pat.Nodes = append(pat.Nodes, node)
	}
	return pat, nil
}

// parseNodePattern implements `nodePat := '(' ident? (':' Label)? propMap? ')'`.
func (p *Parser) parseNodePattern() (*NodePattern, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	np := &NodePattern{Props: make(map[string]Expr)}

	if p.peek().Kind == TokIdent {
		np.Variable = p.advance().Text
	}
	if p.isPunct(":") {
		p.advance()
		label, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		np.Label = label
	}
	if p.isPunct("{") {
		props, err := p.parsePropMap()
		if err != nil {
			return nil, err
		}
		np.Props = props
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return np, nil
}

func (p *Parser) parsePropMap() (map[string]Expr, error) {
	props := make(map[string]Expr)
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	if p.isPunct("}") {
		p.advance()
		return props, nil
	}
	for {
		key, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		props[key] = val
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return props, nil
}

// parseEdgePattern implements:
//
//	relPat := '-' '[' ident? (':' RelType)? ('*' range)? ']' '->'   -- or undirected '-'
//
// It also accepts the symmetric `<-[...]-` left-pointing form.
func (p *Parser) parseEdgePattern() (*EdgePattern, error) {
	leftArrow := false
	if p.isPunct("<-") {
		leftArrow = true
		p.advance()
	} else if err := p.expectPunct("-"); err != nil {
		return nil, err
	}

	ep := &EdgePattern{Direction: DirEither}

	if p.isPunct("[") {
		p.advance()
		if p.peek().Kind == TokIdent {
			ep.Variable = p.advance().Text
		}
		if p.isPunct(":") {
			p.advance()
			relType, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			ep.Type = relType
		}
		if p.isPunct("*") {
			p.advance()
			if err := p.parseHopRange(ep); err != nil {
				return nil, err
			}
		}
		if err := p.expectPunct("]"); err != nil {
			return nil, err
		}
	}

	if leftArrow {
		if err := p.expectPunct("-"); err != nil {
			return nil, err
		}
		ep.Direction = DirLeft
		return ep, nil
	}

	if p.isPunct("->") {
		p.advance()
		ep.Direction = DirRight
		return ep, nil
	}
	if err := p.expectPunct("-"); err != nil {
		return nil, err
	}
	ep.Direction = DirEither
	return ep, nil
}

// parseHopRange implements `range := INT? ('..' INT?)?` and the defaulting
// rules of spec §4.6: bare `*` (no digits and no "..") is a PlanError;
// `*..max` defaults min to 1; `*min..` defaults max to min; `*min` (no
// "..") is an exact hop count, min == max.
func (p *Parser) parseHopRange(ep *EdgePattern) error {
	ep.IsVarLength = true
	t := p.peek()

	hasMin := false
	min := 0
	if t.Kind == TokInt {
		n, err := strconv.Atoi(p.advance().Text)
		if err != nil {
			return kgerr.AtPosition(t.Line, t.Column, "invalid hop count %q", t.Text)
		}
		min = n
		hasMin = true
	}

	if p.isPunct("..") {
		p.advance()
		hasMax := false
		max := 0
		if p.peek().Kind == TokInt {
			tt := p.peek()
			n, err := strconv.Atoi(p.advance().Text)
			if err != nil {
				return kgerr.AtPosition(tt.Line, tt.Column, "invalid hop count %q", tt.Text)
			}
			max = n
			hasMax = true
		}
		switch {
		case hasMin && hasMax:
			ep.MinHops, ep.MaxHops = min, max
		case hasMin && !hasMax:
			ep.MinHops, ep.MaxHops = min, min
		case !hasMin && hasMax:
			ep.MinHops, ep.MaxHops = 1, max
		default:
			return kgerr.New(kgerr.PlanError, "bare variable-length range [*..] is not allowed; specify at least a maximum hop count")
		}
		return nil
	}

	if !hasMin {
		// Bare `*` with no digits and no "..": disallowed (spec §4.6).
		return kgerr.New(kgerr.PlanError, "bare variable-length range [*] is not allowed; use [*min..max], [*..max], or [*min]")
	}

	// `*min` with no "..": exact hop count.
	ep.MinHops, ep.MaxHops = min, min
	return nil
}

// --- projections -------------------------------------------------------

// parseProjItems implements `proj := projItem (',' projItem)*`.
func (p *Parser) parseProjItems() ([]ProjItem, error) {
	var items []ProjItem
	for {
		item, err := p.parseProjItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

// parseProjItem implements `projItem := expr ('AS' ident)?`.
func (p *Parser) parseProjItem() (ProjItem, error) {
	startPos := p.pos
	expr, err := p.parseExpr(0)
	if err != nil {
		return ProjItem{}, err
	}
	text := p.sourceTextBetween(startPos, p.pos)

	item := ProjItem{Expr: expr, Text: text}
	if p.isKeyword("AS") {
		p.advance()
		alias, err := p.expectIdent()
		if err != nil {
			return ProjItem{}, err
		}
		item.Alias = alias
	}
	return item, nil
}

// sourceTextBetween reconstructs a readable expression-text column name
// from the consumed token range, used when a projection has no AS alias
// (spec §6: "Record shape ... alias (or expression text if no alias)").
func (p *Parser) sourceTextBetween(start, end int) string {
	var sb strings.Builder
	for i := start; i < end; i++ {
		if i > start {
			sb.WriteByte(' ')
		}
		t := p.tokens[i]
		if t.Kind == TokString {
			sb.WriteByte('\'')
			sb.WriteString(t.Text)
			sb.WriteByte('\'')
		} else {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// --- expressions: Pratt parser -------------------------------------------

// binding powers, lowest to highest. Higher binds tighter.
var binPrec = map[string]int{
	"OR": 1, "XOR": 2, "AND": 3,
	"=": 4, "<>": 4, "!=": 4, "<": 4, "<=": 4, ">": 4, ">=": 4, "IN": 4, "IS": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

func (p *Parser) parseExpr(minPrec int) (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op, ok := p.peekBinaryOp()
		if !ok {
			break
		}
		prec, known := binPrec[op]
		if !known || prec < minPrec {
			break
		}

		if op == "IS" {
			p.advance() // IS
			negate := false
			if p.isKeyword("NOT") {
				p.advance()
				negate = true
			}
			if err := p.expectKeyword("NULL"); err != nil {
				return nil, err
			}
			left = &IsNullExpr{Operand: left, Negate: negate}
			continue
		}

		p.advance() // operator token
		if op == "IN" {
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			// IN binds like a comparison; still allow chaining higher-prec
			// operators on the right via normal precedence climbing.
			right, err = p.continueBinary(right, prec+1)
			if err != nil {
				return nil, err
			}
			left = &BinaryExpr{Op: "IN", Left: left, Right: right}
			continue
		}

		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// continueBinary lets IN's right-hand operand absorb higher-precedence
// operators applied directly to it (e.g. `x IN [1] OR y`), without IN
// itself trying to consume OR.
func (p *Parser) continueBinary(left Expr, minPrec int) (Expr, error) {
	for {
		op, ok := p.peekBinaryOp()
		if !ok {
			break
		}
		prec, known := binPrec[op]
		if !known || prec < minPrec || op == "IN" || op == "IS" {
			break
		}
		p.advance()
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// peekBinaryOp returns the canonical operator text of the current token if
// it denotes a binary operator, and whether one was found.
func (p *Parser) peekBinaryOp() (string, bool) {
	t := p.peek()
	if t.Kind == TokKeyword {
		switch t.Text {
		case "AND", "OR", "XOR", "IN", "IS":
			return t.Text, true
		}
		return "", false
	}
	if t.Kind == TokPunct {
		switch t.Text {
		case "+", "-", "*", "/", "%", "=", "<>", "!=", "<", "<=", ">", ">=":
			return t.Text, true
		}
	}
	return "", false
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.isKeyword("NOT") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "NOT", Operand: operand}, nil
	}
	if p.isPunct("-") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "-", Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary expression followed by any number of
// `.prop` property accesses.
func (p *Parser) parsePostfix() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.isPunct(".") {
		p.advance()
		prop, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		e = &PropertyAccess{Target: e, Property: prop}
	}
	return e, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	t := p.peek()
	switch {
	case t.Kind == TokInt:
		p.advance()
		n, err := strconv.ParseInt(t.Text, 10, 64)
		if err != nil {
			return nil, kgerr.AtPosition(t.Line, t.Column, "invalid integer literal %q", t.Text)
		}
		return &LiteralInt{Value: n}, nil
	case t.Kind == TokFloat:
		p.advance()
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, kgerr.AtPosition(t.Line, t.Column, "invalid float literal %q", t.Text)
		}
		return &LiteralFloat{Value: f}, nil
	case t.Kind == TokString:
		p.advance()
		return &LiteralString{Value: t.Text}, nil
	case t.Kind == TokKeyword && t.Text == "TRUE":
		p.advance()
		return &LiteralBool{Value: true}, nil
	case t.Kind == TokKeyword && t.Text == "FALSE":
		p.advance()
		return &LiteralBool{Value: false}, nil
	case t.Kind == TokKeyword && t.Text == "NULL":
		p.advance()
		return &LiteralNull{}, nil
	case t.Kind == TokPunct && t.Text == "(":
		p.advance()
		e, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return e, nil
	case t.Kind == TokPunct && t.Text == "[":
		return p.parseListLiteral()
	case t.Kind == TokPunct && t.Text == "$":
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &Parameter{Name: name}, nil
	case t.Kind == TokIdent:
		return p.parseIdentOrCall()
	default:
		return nil, kgerr.AtPosition(t.Line, t.Column, "unexpected token %s in expression", tokenDesc(t))
	}
}

func (p *Parser) parseListLiteral() (Expr, error) {
	if err := p.expectPunct("["); err != nil {
		return nil, err
	}
	lit := &ListExpr{}
	if p.isPunct("]") {
		p.advance()
		return lit, nil
	}
	for {
		item, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		lit.Items = append(lit.Items, item)
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return lit, nil
}

// parseIdentOrCall disambiguates a bare identifier from a function call by
// looking ahead for '('.
func (p *Parser) parseIdentOrCall() (Expr, error) {
	name := p.advance().Text
	if !p.isPunct("(") {
		return &Ident{Name: name}, nil
	}
	p.advance() // '('
	call := &FuncCall{Name: name}
	if p.isKeyword("DISTINCT") {
		p.advance()
		call.Distinct = true
	}
	if !p.isPunct(")") {
		for {
			arg, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if p.isPunct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return call, nil
}
