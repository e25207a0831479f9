// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apirequest

import (
	"strings"

	"github.com/relaybase/pgrestcore/internal/platform/apperr"
)

var simpleOps = map[string]FilterOp{
	"eq":     OpEq,
	"gte":    OpGte,
	"gt":     OpGt,
	"lte":    OpLte,
	"lt":     OpLt,
	"like":   OpLike,
	"ilike":  OpILike,
	"match":  OpMatch,
	"imatch": OpIMatch,
	"neq":    OpNeq,
	"cs":     OpCs,
	"cd":     OpCd,
	"ov":     OpOv,
	"sl":     OpSl,
	"sr":     OpSr,
	"nxr":    OpNxr,
	"nxl":    OpNxl,
	"adj":    OpAdj,
}

var ftsOps = map[string]FilterOp{
	"fts":   OpFts,
	"plfts": OpPlFts,
	"phfts": OpPhFts,
	"wfts":  OpWFts,
}

// parseFilterValue parses the `[not.]<op>.<operand>` right-hand side of a
// query-string filter parameter, per §4.3's filter operator grammar.
func parseFilterValue(field, value string) (Filter, error) {
	f := Filter{Field: field}

	rest := value
	if strings.HasPrefix(rest, "not.") {
		f.Negated = true
		rest = rest[len("not."):]
		if strings.HasPrefix(rest, "not.") {
			return Filter{}, apperr.InvalidQueryParam("double 'not' negation is not permitted: " + value)
		}
	}

	opName, operand, found := strings.Cut(rest, ".")
	if !found {
		return Filter{}, apperr.InvalidQueryParam("malformed filter value: " + value)
	}

	// Full-text search family: optional `(language)` argument before the dot.
	for prefix, op := range ftsOps {
		if opName == prefix {
			f.Op = op
			f.Operand = operand
			return f, nil
		}
		if strings.HasPrefix(opName, prefix+"(") && strings.HasSuffix(opName, ")") {
			f.Op = op
			f.FtsLang = opName[len(prefix)+1 : len(opName)-1]
			f.Operand = operand
			return f, nil
		}
	}

	switch opName {
	case "in":
		list, err := parseInList(operand)
		if err != nil {
			return Filter{}, err
		}
		f.Op = OpIn
		f.List = list
		return f, nil

	case "is":
		switch operand {
		case "null", "true", "false", "unknown":
			f.Op = OpIs
			f.Operand = operand
			return f, nil
		default:
			return Filter{}, apperr.InvalidQueryParam("is. accepts only null/true/false/unknown, got: " + operand)
		}

	case "isdistinct":
		f.Op = OpIsDistinct
		f.Operand = operand
		return f, nil
	}

	if op, ok := simpleOps[opName]; ok {
		f.Op = op
		f.Operand = operand
		return f, nil
	}

	return Filter{}, apperr.InvalidQueryParam("unknown filter operator: " + opName)
}

// parseInList parses the balanced-parens `(v1,v2,...)` operand of `in.`.
func parseInList(operand string) ([]string, error) {
	if len(operand) < 2 || operand[0] != '(' || operand[len(operand)-1] != ')' {
		return nil, apperr.InvalidQueryParam("in. requires a parenthesized, comma-separated list")
	}
	inner := operand[1 : len(operand)-1]
	if inner == "" {
		return []string{}, nil
	}
	return splitTopLevelCommas(inner), nil
}

// splitTopLevelCommas splits on commas not inside a quoted element
// (PostgREST allows `"a,b"` as a single quoted list element).
func splitTopLevelCommas(s string) []string {
	var parts []string
	var buf strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			parts = append(parts, buf.String())
			buf.Reset()
			continue
		default:
		}
		buf.WriteByte(c)
	}
	parts = append(parts, buf.String())
	for i, p := range parts {
		if len(p) >= 2 && p[0] == '"' && p[len(p)-1] == '"' {
			parts[i] = p[1 : len(p)-1]
		}
	}
	return parts
}

// splitEmbedPath splits a dotted key like "orders.total" into the embed
// path ["orders"] and the bare field "total". A key with no dot is a
// root-level field.
func splitEmbedPath(key string) (embedPath []string, field string) {
	idx := strings.LastIndex(key, ".")
	if idx < 0 {
		return nil, key
	}
	return strings.Split(key[:idx], "."), key[idx+1:]
}
