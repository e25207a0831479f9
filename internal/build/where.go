// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package build

import (
	"strings"

	"github.com/relaybase/pgrestcore/internal/apirequest"
	"github.com/relaybase/pgrestcore/internal/ident"
	"github.com/relaybase/pgrestcore/internal/plan"
	"github.com/relaybase/pgrestcore/internal/platform/apperr"
)

// textlikeTypes are PostgreSQL column types a filter's text operand binds
// against without an explicit cast; everything else gets "::<data type>"
// appended so e.g. `age=gt.18` compares integers rather than strings.
var textlikeTypes = map[string]bool{
	"text":              true,
	"character varying": true,
	"character":         true,
	"varchar":           true,
	"char":               true,
	"citext":            true,
	"name":              true,
}

// buildWhereList ANDs together a node's root-level filters and and/or
// trees. alias == "" omits the table qualifier (mutation WHERE clauses
// address the bare target table, not an aliased one).
func buildWhereList(trees []plan.CoercibleLogicTree, alias string) (ident.SqlFragment, error) {
	var parts []ident.SqlFragment
	for _, t := range trees {
		frag, err := buildLogicTree(t, alias)
		if err != nil {
			return ident.SqlFragment{}, err
		}
		parts = append(parts, frag)
	}
	return ident.Join(" AND ", parts...), nil
}

// buildLogicTree renders one CoercibleLogicTree node: a leaf filter, or a
// parenthesized AND/OR of its children, each optionally negated.
func buildLogicTree(t plan.CoercibleLogicTree, alias string) (ident.SqlFragment, error) {
	if t.Leaf != nil {
		return buildFilter(*t.Leaf, alias)
	}

	var parts []ident.SqlFragment
	for _, child := range t.Children {
		frag, err := buildLogicTree(child, alias)
		if err != nil {
			return ident.SqlFragment{}, err
		}
		parts = append(parts, frag)
	}

	sep := " AND "
	if t.Op == apirequest.LogicOr {
		sep = " OR "
	}
	joined := ident.Join(sep, parts...)

	var out ident.SqlFragment
	if t.Negated {
		out.Push("NOT ")
	}
	out.Push("(")
	out.Append(joined)
	out.Push(")")
	return out, nil
}

// buildFilter renders one leaf CoercibleFilter as "<col> <op> <operand>",
// wrapping in NOT(...) when negated.
func buildFilter(f plan.CoercibleFilter, alias string) (ident.SqlFragment, error) {
	col := ident.EscapeIdent(f.Field)
	if alias != "" {
		col = ident.EscapeIdent(alias) + "." + col
	}

	var body ident.SqlFragment
	var err error
	switch f.Op {
	case apirequest.OpEq:
		body, err = buildScalarOp(col, "=", f)
	case apirequest.OpNeq:
		body, err = buildScalarOp(col, "<>", f)
	case apirequest.OpGt:
		body, err = buildScalarOp(col, ">", f)
	case apirequest.OpGte:
		body, err = buildScalarOp(col, ">=", f)
	case apirequest.OpLt:
		body, err = buildScalarOp(col, "<", f)
	case apirequest.OpLte:
		body, err = buildScalarOp(col, "<=", f)
	case apirequest.OpCs:
		body, err = buildScalarOp(col, "@>", f)
	case apirequest.OpCd:
		body, err = buildScalarOp(col, "<@", f)
	case apirequest.OpOv:
		body, err = buildScalarOp(col, "&&", f)
	case apirequest.OpSl:
		body, err = buildScalarOp(col, "<<", f)
	case apirequest.OpSr:
		body, err = buildScalarOp(col, ">>", f)
	case apirequest.OpNxr:
		body, err = buildScalarOp(col, "&<", f)
	case apirequest.OpNxl:
		body, err = buildScalarOp(col, "&>", f)
	case apirequest.OpAdj:
		body, err = buildScalarOp(col, "-|-", f)
	case apirequest.OpLike:
		body = buildTextOp(col, "LIKE", f)
	case apirequest.OpILike:
		body = buildTextOp(col, "ILIKE", f)
	case apirequest.OpMatch:
		body = buildTextOp(col, "~", f)
	case apirequest.OpIMatch:
		body = buildTextOp(col, "~*", f)
	case apirequest.OpIn:
		body, err = buildInOp(col, f)
	case apirequest.OpIs:
		body, err = buildIsOp(col, f)
	case apirequest.OpIsDistinct:
		body, err = buildScalarOp(col, "IS DISTINCT FROM", f)
	case apirequest.OpFts:
		body = buildFtsOp(col, "to_tsquery", f)
	case apirequest.OpPlFts:
		body = buildFtsOp(col, "plainto_tsquery", f)
	case apirequest.OpPhFts:
		body = buildFtsOp(col, "phraseto_tsquery", f)
	case apirequest.OpWFts:
		body = buildFtsOp(col, "websearch_to_tsquery", f)
	default:
		return ident.SqlFragment{}, apperr.Internal(nil)
	}
	if err != nil {
		return ident.SqlFragment{}, err
	}

	if !f.Negated {
		return body, nil
	}
	var out ident.SqlFragment
	out.Push("NOT (")
	out.Append(body)
	out.Push(")")
	return out, nil
}

// castSuffix returns "::<data type>" for a non-text column, so comparisons
// bind the text operand to the column's declared type via an explicit
// cast rather than relying on an implicit one that may not exist.
func castSuffix(dataType string) string {
	if dataType == "" || textlikeTypes[dataType] {
		return ""
	}
	return "::" + dataType
}

func buildScalarOp(col, op string, f plan.CoercibleFilter) (ident.SqlFragment, error) {
	var out ident.SqlFragment
	out.Push(col + " " + op + " ")
	out.PushParam(ident.Text(f.Operand))
	out.Push(castSuffix(f.DataType))
	return out, nil
}

func buildTextOp(col, op string, f plan.CoercibleFilter) ident.SqlFragment {
	var out ident.SqlFragment
	out.Push(col + " " + op + " ")
	out.PushParam(ident.Text(f.Operand))
	return out
}

func buildInOp(col string, f plan.CoercibleFilter) (ident.SqlFragment, error) {
	if len(f.List) == 0 {
		return ident.SqlFragment{}, apperr.InvalidQueryParam("in.() requires at least one value")
	}
	var out ident.SqlFragment
	out.Push(col + " IN (")
	for i, v := range f.List {
		if i > 0 {
			out.Push(", ")
		}
		out.PushParam(ident.Text(v))
		out.Push(castSuffix(f.DataType))
	}
	out.Push(")")
	return out, nil
}

func buildIsOp(col string, f plan.CoercibleFilter) (ident.SqlFragment, error) {
	var lexeme string
	switch strings.ToLower(f.Operand) {
	case "null":
		lexeme = "NULL"
	case "true":
		lexeme = "TRUE"
	case "false":
		lexeme = "FALSE"
	case "unknown":
		lexeme = "UNKNOWN"
	default:
		return ident.SqlFragment{}, apperr.InvalidQueryParam("is.<value> must be null, true, false, or unknown")
	}
	var out ident.SqlFragment
	out.Push(col + " IS " + lexeme)
	return out, nil
}

func buildFtsOp(col, fn string, f plan.CoercibleFilter) ident.SqlFragment {
	var out ident.SqlFragment
	out.Push("to_tsvector(")
	if f.FtsLang != "" {
		out.Push(quoteLiteral(f.FtsLang) + ", ")
	}
	out.Push(col)
	out.Push(") @@ " + fn + "(")
	if f.FtsLang != "" {
		out.Push(quoteLiteral(f.FtsLang) + ", ")
	}
	out.PushParam(ident.Text(f.Operand))
	out.Push(")")
	return out
}
