package cypher

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser is a recursive-descent, one-token-lookahead parser over a flat
// token sequence (spec.md §4.2).
type Parser struct {
	tokens []Token
	src    string
	pos    int
}

// Parse parses Cypher query text into a Query AST, or returns a *ParseError
// positioned at the first unexpected token (spec.md §4.2).
func Parse(text string) (*Query, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens, src: text}

	explain := false
	if p.curKeywordIs("EXPLAIN") {
		p.advance()
		explain = true
	}

	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	q.Explain = explain

	if !p.atEOF() {
		return nil, p.errorf("unexpected trailing input %q", p.cur().Lexeme)
	}
	return q, nil
}

// --- token stream helpers -------------------------------------------------

func (p *Parser) cur() Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(n int) Token {
	idx := p.pos + n
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[idx]
}

func (p *Parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) atEOF() bool { return p.cur().Kind == TokenEOF }

func (p *Parser) curLexeme() string { return p.cur().Lexeme }

func (p *Parser) curKeywordIs(name string) bool {
	t := p.cur()
	return t.Kind == TokenKeyword && strings.EqualFold(t.Lexeme, name)
}

func (p *Parser) curOpIs(lexeme string) bool {
	t := p.cur()
	return (t.Kind == TokenOp || t.Kind == TokenPunct) && t.Lexeme == lexeme
}

func (p *Parser) errorf(format string, args ...any) error {
	t := p.cur()
	return &ParseError{Message: fmt.Sprintf(format, args...), Offset: t.Offset, Line: t.Line, Column: t.Column}
}

func (p *Parser) expectOp(lexeme string) error {
	if !p.curOpIs(lexeme) {
		return p.errorf("expected %q, found %q", lexeme, p.curLexeme())
	}
	p.advance()
	return nil
}

func (p *Parser) expectKeyword(name string) error {
	if !p.curKeywordIs(name) {
		return p.errorf("expected %s, found %q", name, p.curLexeme())
	}
	p.advance()
	return nil
}

// identifierName consumes an identifier or keyword-as-name token (Cypher
// lets several keywords double as property/label names in practice; we
// accept any identifier-kind or keyword-kind token here for robustness).
func (p *Parser) identifierName() (string, error) {
	t := p.cur()
	if t.Kind != TokenIdentifier && t.Kind != TokenKeyword {
		return "", p.errorf("expected identifier, found %q", t.Lexeme)
	}
	p.advance()
	return t.Lexeme, nil
}

// sourceTextSince returns the normalized (whitespace-collapsed) source text
// between startOffset and the offset of the current token, used for
// default RETURN/WITH column names (spec.md §4.5).
func (p *Parser) sourceTextSince(startOffset int) string {
	end := len(p.src)
	if p.pos < len(p.tokens) {
		end = p.cur().Offset
	}
	if startOffset > end || startOffset > len(p.src) {
		return ""
	}
	if end > len(p.src) {
		end = len(p.src)
	}
	raw := p.src[startOffset:end]
	return strings.Join(strings.Fields(raw), " ")
}

// --- top-level query / clause dispatch ------------------------------------

func (p *Parser) parseQuery() (*Query, error) {
	q := &Query{Parameters: make(map[string]any)}

	for {
		if p.atEOF() {
			break
		}
		if p.curKeywordIs("UNION") {
			p.advance()
			all := false
			if p.curKeywordIs("ALL") {
				p.advance()
				all = true
			}
			sub, err := p.parseQuery()
			if err != nil {
				return nil, err
			}
			q.Union = &UnionBranch{All: all, Query: sub}
			break
		}

		clause, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		q.Clauses = append(q.Clauses, clause)

		if _, ok := clause.(*ReturnClause); ok {
			if p.curKeywordIs("UNION") {
				continue
			}
			break
		}
	}

	if len(q.Clauses) == 0 {
		return nil, p.errorf("empty query")
	}
	return q, nil
}

func (p *Parser) parseClause() (Clause, error) {
	switch {
	case p.curKeywordIs("OPTIONAL"):
		p.advance()
		if err := p.expectKeyword("MATCH"); err != nil {
			return nil, err
		}
		return p.parseMatchBody(true)
	case p.curKeywordIs("MATCH"):
		p.advance()
		return p.parseMatchBody(false)
	case p.curKeywordIs("CREATE"):
		p.advance()
		return p.parseCreate()
	case p.curKeywordIs("MERGE"):
		p.advance()
		return p.parseMerge()
	case p.curKeywordIs("SET"):
		p.advance()
		return p.parseSet()
	case p.curKeywordIs("REMOVE"):
		p.advance()
		return p.parseRemove()
	case p.curKeywordIs("DETACH"):
		p.advance()
		if err := p.expectKeyword("DELETE"); err != nil {
			return nil, err
		}
		return p.parseDeleteBody(true)
	case p.curKeywordIs("DELETE"):
		p.advance()
		return p.parseDeleteBody(false)
	case p.curKeywordIs("RETURN"):
		p.advance()
		return p.parseReturn()
	case p.curKeywordIs("WITH"):
		p.advance()
		return p.parseWith()
	case p.curKeywordIs("UNWIND"):
		p.advance()
		return p.parseUnwind()
	case p.curKeywordIs("CALL"):
		p.advance()
		return p.parseCall()
	default:
		return nil, p.errorf("unexpected token %q, expected a clause", p.curLexeme())
	}
}

// --- MATCH / CREATE / MERGE -----------------------------------------------

func (p *Parser) parseMatchBody(optional bool) (*MatchClause, error) {
	patterns, err := p.parsePatternList()
	if err != nil {
		return nil, err
	}
	var where Expression
	if p.curKeywordIs("WHERE") {
		p.advance()
		where, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	return &MatchClause{Patterns: patterns, Optional: optional, Where: where}, nil
}

func (p *Parser) parseCreate() (*CreateClause, error) {
	patterns, err := p.parsePatternList()
	if err != nil {
		return nil, err
	}
	return &CreateClause{Patterns: patterns}, nil
}

func (p *Parser) parseMerge() (*MergeClause, error) {
	pat, err := p.parseOnePattern()
	if err != nil {
		return nil, err
	}
	mc := &MergeClause{Pattern: *pat}
	for p.curKeywordIs("ON") {
		p.advance()
		switch {
		case p.curKeywordIs("CREATE"):
			p.advance()
			if err := p.expectKeyword("SET"); err != nil {
				return nil, err
			}
			items, err := p.parseSetItemList()
			if err != nil {
				return nil, err
			}
			mc.OnCreate = append(mc.OnCreate, items...)
		case p.curKeywordIs("MATCH"):
			p.advance()
			if err := p.expectKeyword("SET"); err != nil {
				return nil, err
			}
			items, err := p.parseSetItemList()
			if err != nil {
				return nil, err
			}
			mc.OnMatch = append(mc.OnMatch, items...)
		default:
			return nil, p.errorf("expected CREATE or MATCH after ON, found %q", p.curLexeme())
		}
	}
	return mc, nil
}

// --- SET / REMOVE / DELETE -------------------------------------------------

func (p *Parser) parseSet() (*SetClause, error) {
	items, err := p.parseSetItemList()
	if err != nil {
		return nil, err
	}
	return &SetClause{Items: items}, nil
}

func (p *Parser) parseSetItemList() ([]SetItem, error) {
	var items []SetItem
	for {
		variable, err := p.identifierName()
		if err != nil {
			return nil, err
		}
		switch {
		case p.curOpIs("."):
			p.advance()
			prop, err := p.identifierName()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("="); err != nil {
				return nil, err
			}
			value, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			items = append(items, SetItem{Variable: variable, Property: prop, Value: value})
		case p.curOpIs(":"):
			var labels []string
			for p.curOpIs(":") {
				p.advance()
				label, err := p.identifierName()
				if err != nil {
					return nil, err
				}
				labels = append(labels, label)
			}
			items = append(items, SetItem{Variable: variable, AddLabels: labels})
		case p.curOpIs("="):
			p.advance()
			value, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			items = append(items, SetItem{Variable: variable, Value: value})
		default:
			return nil, p.errorf("expected '.', ':' or '=' in SET item, found %q", p.curLexeme())
		}
		if p.curOpIs(",") {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseRemove() (*RemoveClause, error) {
	var items []RemoveItem
	for {
		variable, err := p.identifierName()
		if err != nil {
			return nil, err
		}
		switch {
		case p.curOpIs("."):
			p.advance()
			prop, err := p.identifierName()
			if err != nil {
				return nil, err
			}
			items = append(items, RemoveItem{Variable: variable, Property: prop})
		case p.curOpIs(":"):
			var labels []string
			for p.curOpIs(":") {
				p.advance()
				label, err := p.identifierName()
				if err != nil {
					return nil, err
				}
				labels = append(labels, label)
			}
			items = append(items, RemoveItem{Variable: variable, Labels: labels})
		default:
			return nil, p.errorf("expected '.' or ':' in REMOVE item, found %q", p.curLexeme())
		}
		if p.curOpIs(",") {
			p.advance()
			continue
		}
		break
	}
	return &RemoveClause{Items: items}, nil
}

func (p *Parser) parseDeleteBody(detach bool) (*DeleteClause, error) {
	var vars []string
	for {
		name, err := p.identifierName()
		if err != nil {
			return nil, err
		}
		vars = append(vars, name)
		if p.curOpIs(",") {
			p.advance()
			continue
		}
		break
	}
	return &DeleteClause{Variables: vars, Detach: detach}, nil
}

// --- RETURN / WITH / UNWIND / CALL ----------------------------------------

func (p *Parser) parseReturnItemList() ([]ReturnItem, error) {
	var items []ReturnItem
	for {
		start := p.cur().Offset
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		srcText := p.sourceTextSince(start)
		alias := ""
		if p.curKeywordIs("AS") {
			p.advance()
			alias, err = p.identifierName()
			if err != nil {
				return nil, err
			}
		}
		items = append(items, ReturnItem{Expression: expr, Alias: alias, SourceText: srcText})
		if p.curOpIs(",") {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseOrderByList() ([]OrderItem, error) {
	var items []OrderItem
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		desc := false
		if p.curKeywordIs("DESC") {
			p.advance()
			desc = true
		} else if p.curKeywordIs("ASC") {
			p.advance()
		}
		items = append(items, OrderItem{Expression: expr, Descending: desc})
		if p.curOpIs(",") {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseReturn() (*ReturnClause, error) {
	rc := &ReturnClause{}
	if p.curKeywordIs("DISTINCT") {
		p.advance()
		rc.Distinct = true
	}
	items, err := p.parseReturnItemList()
	if err != nil {
		return nil, err
	}
	rc.Items = items

	for {
		switch {
		case p.curKeywordIs("ORDER"):
			p.advance()
			if err := p.expectKeyword("BY"); err != nil {
				return nil, err
			}
			rc.OrderBy, err = p.parseOrderByList()
			if err != nil {
				return nil, err
			}
			continue
		case p.curKeywordIs("SKIP"):
			p.advance()
			rc.Skip, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
			continue
		case p.curKeywordIs("LIMIT"):
			p.advance()
			rc.Limit, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return rc, nil
}

func (p *Parser) parseWith() (*WithClause, error) {
	wc := &WithClause{}
	if p.curKeywordIs("DISTINCT") {
		p.advance()
		wc.Distinct = true
	}
	items, err := p.parseReturnItemList()
	if err != nil {
		return nil, err
	}
	wc.Items = items

	if p.curKeywordIs("WHERE") {
		p.advance()
		wc.Where, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}

	for {
		switch {
		case p.curKeywordIs("ORDER"):
			p.advance()
			if err := p.expectKeyword("BY"); err != nil {
				return nil, err
			}
			wc.OrderBy, err = p.parseOrderByList()
			if err != nil {
				return nil, err
			}
			continue
		case p.curKeywordIs("SKIP"):
			p.advance()
			wc.Skip, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
			continue
		case p.curKeywordIs("LIMIT"):
			p.advance()
			wc.Limit, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return wc, nil
}

func (p *Parser) parseUnwind() (*UnwindClause, error) {
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	as, err := p.identifierName()
	if err != nil {
		return nil, err
	}
	return &UnwindClause{Expression: expr, As: as}, nil
}

func (p *Parser) parseCall() (*CallClause, error) {
	name, err := p.identifierName()
	if err != nil {
		return nil, err
	}
	for p.curOpIs(".") {
		p.advance()
		part, err := p.identifierName()
		if err != nil {
			return nil, err
		}
		name += "." + part
	}

	cc := &CallClause{Procedure: name}
	if p.curOpIs("(") {
		p.advance()
		if !p.curOpIs(")") {
			for {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				cc.Args = append(cc.Args, arg)
				if p.curOpIs(",") {
					p.advance()
					continue
				}
				break
			}
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
	}

	if p.curKeywordIs("YIELD") {
		p.advance()
		if p.curOpIs("*") {
			p.advance()
		} else {
			for {
				name, err := p.identifierName()
				if err != nil {
					return nil, err
				}
				if p.curKeywordIs("AS") {
					p.advance()
					if _, err := p.identifierName(); err != nil {
						return nil, err
					}
				}
				cc.Yields = append(cc.Yields, name)
				if p.curOpIs(",") {
					p.advance()
					continue
				}
				break
			}
		}
	}
	return cc, nil
}

// --- patterns ---------------------------------------------------------

func (p *Parser) parsePatternList() ([]Pattern, error) {
	var list []Pattern
	for {
		pat, err := p.parseOnePattern()
		if err != nil {
			return nil, err
		}
		list = append(list, *pat)
		if p.curOpIs(",") {
			p.advance()
			continue
		}
		break
	}
	return list, nil
}

// parseOnePattern parses one `[var =] Node (Edge Node)*` pattern.
func (p *Parser) parseOnePattern() (*Pattern, error) {
	var pathVar string
	if p.cur().Kind == TokenIdentifier && p.peekAt(1).Kind == TokenOp && p.peekAt(1).Lexeme == "=" && p.peekAt(2).Lexeme == "(" {
		pathVar = p.curLexeme()
		p.advance()
		p.advance()
	}

	node, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}
	pat := &Pattern{Nodes: []NodePattern{*node}, PathVar: pathVar}

	for p.isEdgeStart() {
		edge, err := p.parseEdgePattern()
		if err != nil {
			return nil, err
		}
		next, err := p.parseNodePattern()
		if err != nil {
			return nil, err
		}
		pat.Edges = append(pat.Edges, *edge)
		pat.Nodes = append(pat.Nodes, *next)
	}
	return pat, nil
}

func (p *Parser) isEdgeStart() bool {
	l := p.curLexeme()
	return l == "-" || l == "--" || l == "->" || l == "<-"
}

func (p *Parser) parseNodePattern() (*NodePattern, error) {
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	np := &NodePattern{}
	if p.cur().Kind == TokenIdentifier {
		np.Variable = p.curLexeme()
		p.advance()
	}
	for p.curOpIs(":") {
		p.advance()
		label, err := p.identifierName()
		if err != nil {
			return nil, err
		}
		np.Labels = append(np.Labels, label)
	}
	if p.curOpIs("{") {
		m, err := p.parseMapLiteral()
		if err != nil {
			return nil, err
		}
		np.Properties = mapLiteralToExprMap(m)
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return np, nil
}

func (p *Parser) parseEdgePattern() (*EdgePattern, error) {
	ep := &EdgePattern{Direction: EdgeEither}
	leftArrow := false

	switch p.curLexeme() {
	case "<-":
		p.advance()
		leftArrow = true
	case "->":
		p.advance()
		ep.Direction = EdgeOut
		return ep, nil
	case "--":
		p.advance()
		if p.curOpIs(">") {
			p.advance()
			ep.Direction = EdgeOut
		}
		return ep, nil
	case "-":
		p.advance()
	default:
		return nil, p.errorf("expected relationship pattern, found %q", p.curLexeme())
	}

	if p.curOpIs("[") {
		p.advance()
		if err := p.parseEdgeDetail(ep); err != nil {
			return nil, err
		}
		if err := p.expectOp("]"); err != nil {
			return nil, err
		}
	}

	switch p.curLexeme() {
	case "->":
		p.advance()
		if leftArrow {
			ep.Direction = EdgeEither
		} else {
			ep.Direction = EdgeOut
		}
	case "-":
		p.advance()
		if leftArrow {
			ep.Direction = EdgeIn
		}
	default:
		return nil, p.errorf("expected closing '-' or '->' in relationship pattern, found %q", p.curLexeme())
	}
	return ep, nil
}

func (p *Parser) parseEdgeDetail(ep *EdgePattern) error {
	if p.cur().Kind == TokenIdentifier {
		ep.Variable = p.curLexeme()
		p.advance()
	}
	if p.curOpIs(":") {
		p.advance()
		typ, err := p.identifierName()
		if err != nil {
			return err
		}
		ep.Types = append(ep.Types, typ)
		for p.curOpIs("|") {
			p.advance()
			typ, err := p.identifierName()
			if err != nil {
				return err
			}
			ep.Types = append(ep.Types, typ)
		}
	}
	if p.curOpIs("*") {
		p.advance()
		if err := p.parseVariableLengthSpec(ep); err != nil {
			return err
		}
	}
	if p.curOpIs("{") {
		m, err := p.parseMapLiteral()
		if err != nil {
			return err
		}
		ep.Properties = mapLiteralToExprMap(m)
	}
	return nil
}

func (p *Parser) parseVariableLengthSpec(ep *EdgePattern) error {
	isRange := func() bool { return p.curOpIs(".") && p.peekAt(1).Lexeme == "." }

	switch {
	case p.cur().Kind == TokenInteger:
		n, err := strconv.Atoi(p.curLexeme())
		if err != nil {
			return p.errorf("invalid variable-length bound %q", p.curLexeme())
		}
		p.advance()
		ep.MinHops = intPtr(n)
		if isRange() {
			p.advance()
			p.advance()
			if p.cur().Kind == TokenInteger {
				m, err := strconv.Atoi(p.curLexeme())
				if err != nil {
					return p.errorf("invalid variable-length bound %q", p.curLexeme())
				}
				p.advance()
				ep.MaxHops = intPtr(m)
			}
		} else {
			ep.MaxHops = intPtr(n)
		}
	case isRange():
		p.advance()
		p.advance()
		ep.MinHops = intPtr(1)
		if p.cur().Kind == TokenInteger {
			m, err := strconv.Atoi(p.curLexeme())
			if err != nil {
				return p.errorf("invalid variable-length bound %q", p.curLexeme())
			}
			p.advance()
			ep.MaxHops = intPtr(m)
		}
	default:
		ep.MinHops = intPtr(1)
	}
	return nil
}

func intPtr(n int) *int { return &n }

func mapLiteralToExprMap(m *MapLiteral) map[string]Expression {
	if m == nil || len(m.Keys) == 0 {
		return nil
	}
	out := make(map[string]Expression, len(m.Keys))
	for i, k := range m.Keys {
		out[k] = m.Values[i]
	}
	return out
}
