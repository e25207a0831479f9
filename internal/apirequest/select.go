// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apirequest

import (
	"strconv"
	"strings"

	"github.com/relaybase/pgrestcore/internal/platform/apperr"
)

// selectParser is a recursive-descent parser over the `select=` grammar
// (§4.3): a comma-separated list of fields and relations, relations
// carrying a balanced-parens nested select.
type selectParser struct {
	s   string
	pos int
}

// parseSelect parses the full `select=` query parameter value.
func parseSelect(value string) ([]SelectItem, error) {
	p := &selectParser{s: value}
	items, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.s) {
		return nil, apperr.InvalidQueryParam("unexpected trailing characters in select: " + p.s[p.pos:])
	}
	return items, nil
}

func (p *selectParser) parseList() ([]SelectItem, error) {
	var items []SelectItem
	for {
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.pos < len(p.s) && p.s[p.pos] == ',' {
			p.pos++
			continue
		}
		break
	}
	return items, nil
}

func (p *selectParser) parseItem() (SelectItem, error) {
	spread := false
	if strings.HasPrefix(p.s[p.pos:], "...") {
		spread = true
		p.pos += 3
	}

	agg := ""
	start := p.pos
	name := p.takeIdent()
	if name == "" {
		return SelectItem{}, apperr.InvalidQueryParam("expected identifier at position " + strconv.Itoa(start))
	}

	// Aggregate-call form: agg(name). Only a fixed set of function names
	// are recognized here; anything else followed by '(' is a relation's
	// nested select, not an aggregate call.
	if p.peek() == '(' && !spread && isAggName(name) {
		p.pos++
		agg = name
		name = p.takeIdent()
		if p.peek() != ')' {
			return SelectItem{}, apperr.InvalidQueryParam("unterminated aggregate in select")
		}
		p.pos++
	}

	item := SelectItem{Kind: SelectField, Name: name, Agg: agg}

	// A single `:token` directly after the name is, per the grammar,
	// a relation's `:alias` (ordered before `!hint`/`!join_type`) if what
	// follows is itself a hint/join/nested-select opener; otherwise it's
	// left for the field-form alias below. A `::cast` is never mistaken
	// for this since it requires a second immediate colon.
	alias := ""
	if p.peek() == ':' && p.peekAt(1) != ':' {
		saved := p.pos
		p.pos++
		if candidate := p.takeIdent(); candidate != "" && (p.peek() == '!' || p.peek() == '(') {
			alias = candidate
		} else {
			p.pos = saved
		}
	}

	// Relation form: followed directly by ! (hint/join) or (
	if p.peek() == '!' || p.peek() == '(' {
		hint, joinType := p.parseHintAndJoin()
		if p.peek() != '(' {
			return SelectItem{}, apperr.InvalidQueryParam("expected '(' to open nested select for relation " + name)
		}
		p.pos++ // consume '('
		children, err := p.parseList()
		if err != nil {
			return SelectItem{}, err
		}
		if p.peek() != ')' {
			return SelectItem{}, apperr.InvalidQueryParam("unterminated nested select for relation " + name)
		}
		p.pos++ // consume ')'

		kind := SelectRelation
		if spread {
			kind = SelectSpreadRelation
		}
		return SelectItem{
			Kind:     kind,
			Name:     name,
			Hint:     hint,
			JoinType: joinType,
			Alias:    alias,
			Children: children,
		}, nil
	}

	// Field form: optional json path, cast, alias.
	item.JSONPath, item.LastAsText = p.parseJSONPath()
	if p.peek() == ':' && p.peekAt(1) == ':' {
		p.pos += 2
		item.Cast = p.takeIdent()
	}
	if alias == "" && p.peek() == ':' {
		p.pos++
		alias = p.takeIdent()
	}
	item.Alias = alias
	return item, nil
}

// parseHintAndJoin consumes zero or more `!token` suffixes before a
// relation's nested select: the first is a disambiguation hint, a
// subsequent bare `inner`/`left` sets the join type.
func (p *selectParser) parseHintAndJoin() (hint, joinType string) {
	for p.peek() == '!' {
		p.pos++
		tok := p.takeIdent()
		switch tok {
		case "inner", "left":
			joinType = tok
		default:
			hint = tok
		}
	}
	return hint, joinType
}

// parseJSONPath consumes `->key` / `->>key` chains after a field name.
func (p *selectParser) parseJSONPath() (path []string, lastAsText bool) {
	for strings.HasPrefix(p.s[p.pos:], "->") {
		p.pos += 2
		asText := false
		if p.peek() == '>' {
			asText = true
			p.pos++
		}
		seg := p.takeIdent()
		path = append(path, seg)
		lastAsText = asText
	}
	return path, lastAsText
}

func isAggName(name string) bool {
	switch name {
	case "count", "sum", "avg", "min", "max":
		return true
	default:
		return false
	}
}

func (p *selectParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *selectParser) peekAt(offset int) byte {
	if p.pos+offset >= len(p.s) {
		return 0
	}
	return p.s[p.pos+offset]
}

func (p *selectParser) takeIdent() string {
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c == ',' || c == '(' || c == ')' || c == ':' || c == '!' || c == '-' {
			break
		}
		p.pos++
	}
	return p.s[start:p.pos]
}
