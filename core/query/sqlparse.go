package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/jchristn/lattice/core"
)

// ParseSQL compiles an expression in the narrow SQL-like search dialect
// into a structured query:
//
//	SELECT * FROM documents WHERE <predicate>
//	    [ORDER BY <createdutc|lastupdateutc|name> [ASC|DESC]]
//	    [LIMIT n] [OFFSET n]
//
// Predicates are comparisons over bare leaf paths joined by AND. Anything
// outside the grammar is rejected with UNSUPPORTED_SQL.
func ParseSQL(expression string) (*SearchQuery, error) {
	tokens, err := tokenizeSQL(expression)
	if err != nil {
		return nil, err
	}
	p := &sqlParser{tokens: tokens}
	return p.parse()
}

type sqlTokenKind int

const (
	tokIdent sqlTokenKind = iota
	tokNumber
	tokString
	tokOp
	tokStar
)

type sqlToken struct {
	kind sqlTokenKind
	text string
}

func tokenizeSQL(expression string) ([]sqlToken, error) {
	var tokens []sqlToken
	runes := []rune(expression)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '*':
			tokens = append(tokens, sqlToken{kind: tokStar, text: "*"})
			i++
		case r == '\'':
			// Single-quoted string; '' is an embedded quote.
			i++
			var sb strings.Builder
			closed := false
			for i < len(runes) {
				if runes[i] == '\'' {
					if i+1 < len(runes) && runes[i+1] == '\'' {
						sb.WriteRune('\'')
						i += 2
						continue
					}
					closed = true
					i++
					break
				}
				sb.WriteRune(runes[i])
				i++
			}
			if !closed {
				return nil, core.ErrUnsupportedSQL("unterminated string literal")
			}
			tokens = append(tokens, sqlToken{kind: tokString, text: sb.String()})
		case r == '=' || r == '<' || r == '>' || r == '!':
			op := string(r)
			if i+1 < len(runes) {
				two := op + string(runes[i+1])
				switch two {
				case "<=", ">=", "<>", "!=":
					op = two
				}
			}
			if op == "!" {
				return nil, core.ErrUnsupportedSQL("unexpected character '!'")
			}
			tokens = append(tokens, sqlToken{kind: tokOp, text: op})
			i += len(op)
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			i++
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, sqlToken{kind: tokNumber, text: string(runes[start:i])})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_' || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, sqlToken{kind: tokIdent, text: string(runes[start:i])})
		default:
			return nil, core.ErrUnsupportedSQL(fmt.Sprintf("unexpected character %q", string(r)))
		}
	}
	return tokens, nil
}

type sqlParser struct {
	tokens []sqlToken
	pos    int
}

func (p *sqlParser) peek() (sqlToken, bool) {
	if p.pos >= len(p.tokens) {
		return sqlToken{}, false
	}
	return p.tokens[p.pos], true
}

func (p *sqlParser) next() (sqlToken, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

// expectKeyword consumes an identifier matching the keyword
// case-insensitively.
func (p *sqlParser) expectKeyword(keyword string) error {
	t, ok := p.next()
	if !ok || t.kind != tokIdent || !strings.EqualFold(t.text, keyword) {
		return core.ErrUnsupportedSQL(fmt.Sprintf("expected %s", keyword))
	}
	return nil
}

func (p *sqlParser) peekKeyword(keyword string) bool {
	t, ok := p.peek()
	return ok && t.kind == tokIdent && strings.EqualFold(t.text, keyword)
}

func (p *sqlParser) parse() (*SearchQuery, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	if t, ok := p.next(); !ok || t.kind != tokStar {
		return nil, core.ErrUnsupportedSQL("only SELECT * is supported")
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	if t, ok := p.next(); !ok || t.kind != tokIdent || !strings.EqualFold(t.text, "documents") {
		return nil, core.ErrUnsupportedSQL("only the documents table is searchable")
	}
	if err := p.expectKeyword("WHERE"); err != nil {
		return nil, err
	}

	q := &SearchQuery{}
	for {
		filter, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		q.Filters = append(q.Filters, filter)
		if !p.peekKeyword("AND") {
			break
		}
		p.pos++
	}
	if p.peekKeyword("OR") {
		return nil, core.ErrUnsupportedSQL("OR is not supported; predicates combine with AND")
	}

	if p.peekKeyword("ORDER") {
		p.pos++
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		ordering, err := p.parseOrdering()
		if err != nil {
			return nil, err
		}
		q.Ordering = ordering
	}

	if p.peekKeyword("LIMIT") {
		p.pos++
		n, err := p.parseInt("LIMIT")
		if err != nil {
			return nil, err
		}
		q.MaxResults = n
	}

	if p.peekKeyword("OFFSET") {
		p.pos++
		n, err := p.parseInt("OFFSET")
		if err != nil {
			return nil, err
		}
		q.Skip = n
	}

	if t, ok := p.peek(); ok {
		return nil, core.ErrUnsupportedSQL(fmt.Sprintf("unexpected token %q", t.text))
	}
	return q, nil
}

func (p *sqlParser) parseComparison() (SearchFilter, error) {
	field, ok := p.next()
	if !ok || field.kind != tokIdent {
		return SearchFilter{}, core.ErrUnsupportedSQL("expected a field name")
	}

	if p.peekKeyword("IS") {
		p.pos++
		if p.peekKeyword("NOT") {
			p.pos++
			if err := p.expectKeyword("NULL"); err != nil {
				return SearchFilter{}, err
			}
			return SearchFilter{Field: field.text, Condition: ConditionIsNotNull}, nil
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return SearchFilter{}, err
		}
		return SearchFilter{Field: field.text, Condition: ConditionIsNull}, nil
	}

	if p.peekKeyword("LIKE") {
		p.pos++
		v, ok := p.next()
		if !ok || v.kind != tokString {
			return SearchFilter{}, core.ErrUnsupportedSQL("LIKE requires a string literal")
		}
		return SearchFilter{Field: field.text, Condition: ConditionLike, Value: v.text}, nil
	}

	op, ok := p.next()
	if !ok || op.kind != tokOp {
		return SearchFilter{}, core.ErrUnsupportedSQL("expected a comparison operator")
	}
	var condition SearchCondition
	switch op.text {
	case "=":
		condition = ConditionEquals
	case "!=", "<>":
		condition = ConditionNotEquals
	case ">":
		condition = ConditionGreaterThan
	case ">=":
		condition = ConditionGreaterThanOrEqualTo
	case "<":
		condition = ConditionLessThan
	case "<=":
		condition = ConditionLessThanOrEqualTo
	default:
		return SearchFilter{}, core.ErrUnsupportedSQL(fmt.Sprintf("unsupported operator %q", op.text))
	}

	v, ok := p.next()
	if !ok || (v.kind != tokString && v.kind != tokNumber) {
		return SearchFilter{}, core.ErrUnsupportedSQL("expected a string or numeric literal")
	}
	return SearchFilter{Field: field.text, Condition: condition, Value: v.text}, nil
}

func (p *sqlParser) parseOrdering() (*Ordering, error) {
	col, ok := p.next()
	if !ok || col.kind != tokIdent {
		return nil, core.ErrUnsupportedSQL("expected an order column")
	}
	var field OrderField
	switch strings.ToLower(col.text) {
	case "createdutc":
		field = OrderByCreatedUTC
	case "lastupdateutc":
		field = OrderByLastUpdateUTC
	case "name":
		field = OrderByName
	default:
		return nil, core.ErrUnsupportedSQL(
			fmt.Sprintf("ordering supports createdutc, lastupdateutc, name; got %q", col.text))
	}

	descending := false
	if p.peekKeyword("DESC") {
		p.pos++
		descending = true
	} else if p.peekKeyword("ASC") {
		p.pos++
	}
	return &Ordering{Field: field, Descending: descending}, nil
}

func (p *sqlParser) parseInt(clause string) (int, error) {
	t, ok := p.next()
	if !ok || t.kind != tokNumber {
		return 0, core.ErrUnsupportedSQL(clause + " requires an integer")
	}
	n, err := strconv.Atoi(t.text)
	if err != nil || n < 0 {
		return 0, core.ErrUnsupportedSQL(clause + " requires a non-negative integer")
	}
	return n, nil
}
