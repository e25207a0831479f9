// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apirequest

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/relaybase/pgrestcore/internal/platform/apperr"
)

// parseQuery parses the full raw query string into QueryParams, per §4.3.
// Keys are processed in sorted order to produce the canonical form used by
// testable property #4 (reordered query strings parse identically).
func parseQuery(rawQuery string) (QueryParams, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return QueryParams{}, apperr.InvalidQueryParam("malformed query string: " + err.Error())
	}

	qp := QueryParams{
		Order:  map[string][]OrderTerm{},
		Ranges: map[string]RangeSpec{},
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var canonicalParts []string
	var rootOffset, rootLimit *int

	for _, key := range keys {
		for _, value := range values[key] {
			canonicalParts = append(canonicalParts, key+"="+value)

			switch {
			case key == "select":
				items, err := parseSelect(value)
				if err != nil {
					return QueryParams{}, err
				}
				qp.Select = items

			case key == "order" || strings.HasSuffix(key, ".order"):
				_, terms, err := parseOrder(value)
				if err != nil {
					return QueryParams{}, err
				}
				qp.Order[rangeEmbedPath(key, "order")] = terms

			case key == "limit" || strings.HasSuffix(key, ".limit"):
				n, err := strconv.Atoi(value)
				if err != nil {
					return QueryParams{}, apperr.InvalidQueryParam("limit must be an integer: " + value)
				}
				embedPath := rangeEmbedPath(key, "limit")
				applyRange(qp.Ranges, embedPath, func(r *RangeSpec) { r.Limit = &n })
				if embedPath == "" {
					rootLimit = &n
				}

			case key == "offset" || strings.HasSuffix(key, ".offset"):
				n, err := strconv.Atoi(value)
				if err != nil {
					return QueryParams{}, apperr.InvalidQueryParam("offset must be an integer: " + value)
				}
				embedPath := rangeEmbedPath(key, "offset")
				applyRange(qp.Ranges, embedPath, func(r *RangeSpec) { r.Offset = n })
				if embedPath == "" {
					rootOffset = &n
				}

			case key == "columns":
				qp.Columns = splitTopLevelCommas(value)

			case key == "on_conflict":
				qp.OnConflict = splitTopLevelCommas(value)

			case key == "and" || key == "or":
				node, err := parseLogicGroup(nil, key == "or", value)
				if err != nil {
					return QueryParams{}, err
				}
				qp.Logic = append(qp.Logic, node)

			case strings.HasPrefix(key, "_"):
				// Reserved namespace for future/implementation-defined keys; ignored.

			default:
				embedPath, field := splitEmbedPath(key)
				if field == "and" || field == "or" {
					node, err := parseLogicGroup(embedPath, field == "or", value)
					if err != nil {
						return QueryParams{}, err
					}
					qp.Logic = append(qp.Logic, node)
					continue
				}
				f, err := parseFilterValue(field, value)
				if err != nil {
					return QueryParams{}, err
				}
				f.EmbedPath = embedPath
				qp.Filters = append(qp.Filters, f)
			}
		}
	}

	if rootOffset != nil || rootLimit != nil {
		r := qp.Ranges[""]
		if rootOffset != nil {
			r.Offset = *rootOffset
		}
		if rootLimit != nil {
			r.Limit = rootLimit
		}
		qp.Ranges[""] = r
	}

	qp.Canonical = strings.Join(canonicalParts, "&")
	return qp, nil
}

// rangeEmbedPath strips a trailing ".limit"/".offset"/".order" suffix, if
// present, to find which embedded resource a range or order key targets;
// "" means root.
func rangeEmbedPath(key, suffix string) string {
	if key == suffix {
		return ""
	}
	return strings.TrimSuffix(key, "."+suffix)
}

func applyRange(ranges map[string]RangeSpec, embedPath string, mutate func(*RangeSpec)) {
	r := ranges[embedPath]
	mutate(&r)
	ranges[embedPath] = r
}

// parseOrder parses one `order=` (or `rel.order=`) value: a comma-separated
// list of `field[.asc|.desc][.nullsfirst|.nullslast]` terms.
func parseOrder(value string) (embedPath []string, terms []OrderTerm, err error) {
	for _, raw := range splitTopLevelCommas(value) {
		parts := strings.Split(raw, ".")
		if len(parts) == 0 || parts[0] == "" {
			return nil, nil, apperr.InvalidQueryParam("empty order term")
		}
		term := OrderTerm{Field: parts[0]}
		for _, mod := range parts[1:] {
			switch mod {
			case "asc":
				term.Desc = false
			case "desc":
				term.Desc = true
			case "nullsfirst":
				term.NullsFirst = true
			case "nullslast":
				term.NullsLast = true
			default:
				return nil, nil, apperr.InvalidQueryParam("unknown order modifier: " + mod)
			}
		}
		terms = append(terms, term)
	}
	return nil, terms, nil
}

// parseLogicGroup parses `and=(...)`/`or=(...)`: each element is either a
// nested `and(...)`/`or(...)` group or a flat `field.op.value` filter.
func parseLogicGroup(embedPath []string, isOr bool, value string) (LogicNode, error) {
	node := LogicNode{EmbedPath: embedPath, Op: LogicAnd}
	if isOr {
		node.Op = LogicOr
	}

	if strings.HasPrefix(value, "not.") {
		node.Negated = true
		value = strings.TrimPrefix(value, "not.")
	}

	if len(value) < 2 || value[0] != '(' || value[len(value)-1] != ')' {
		return LogicNode{}, apperr.InvalidQueryParam("and/or requires a parenthesized list: " + value)
	}
	inner := value[1 : len(value)-1]

	for _, elem := range splitTopLevelCommasParens(inner) {
		if strings.HasPrefix(elem, "and(") || strings.HasPrefix(elem, "or(") || strings.HasPrefix(elem, "not.and(") || strings.HasPrefix(elem, "not.or(") {
			negated := strings.HasPrefix(elem, "not.")
			rest := strings.TrimPrefix(elem, "not.")
			childIsOr := strings.HasPrefix(rest, "or(")
			open := strings.Index(rest, "(")
			childVal := rest[open:]
			child, err := parseLogicGroup(embedPath, childIsOr, childVal)
			if err != nil {
				return LogicNode{}, err
			}
			child.Negated = child.Negated || negated
			node.Children = append(node.Children, child)
			continue
		}

		field, op, found := strings.Cut(elem, ".")
		if !found {
			return LogicNode{}, apperr.InvalidQueryParam("malformed logic child: " + elem)
		}
		f, err := parseFilterValue(field, op)
		if err != nil {
			return LogicNode{}, err
		}
		node.Children = append(node.Children, LogicNode{Leaf: &f})
	}

	return node, nil
}

// splitTopLevelCommasParens splits on commas that are not nested inside
// parentheses (needed for and/or groups whose children may themselves be
// parenthesized `in.(...)` filters or nested and/or groups).
func splitTopLevelCommasParens(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
