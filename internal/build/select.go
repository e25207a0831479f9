// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package build

import (
	"strconv"
	"strings"

	"github.com/relaybase/pgrestcore/internal/catalog"
	"github.com/relaybase/pgrestcore/internal/ident"
	"github.com/relaybase/pgrestcore/internal/plan"
	"github.com/relaybase/pgrestcore/pkg/slice"
)

// buildReadStatement renders a full SELECT ... FROM ... WHERE ... ORDER BY
// ... LIMIT/OFFSET statement for tree. fromOverride, when non-empty, names
// a CTE to select from instead of tree.Root.From's real relation (used when
// tree wraps a mutation's or call's result set).
func buildReadStatement(tree *plan.ReadPlanTree, fromOverride string) (ident.SqlFragment, error) {
	alias := tree.Root.FromAlias

	selectFrag, innerConds, lateralJoins, err := buildSelectList(tree)
	if err != nil {
		return ident.SqlFragment{}, err
	}

	var out ident.SqlFragment
	out.Push("SELECT ")
	out.Append(selectFrag)
	out.Push(" FROM ")
	if fromOverride != "" {
		out.Push(ident.EscapeIdent(fromOverride))
	} else {
		out.Push(tree.Root.From.QI().String())
	}
	out.Push(" AS ").Push(ident.EscapeIdent(alias))
	for _, lj := range lateralJoins {
		out.Append(lj)
	}

	whereFrag, err := buildWhereList(tree.Root.Where, alias)
	if err != nil {
		return ident.SqlFragment{}, err
	}
	for _, c := range innerConds {
		whereFrag = ident.Join(" AND ", whereFrag, c)
	}
	if whereFrag.SQL != "" {
		out.Push(" WHERE ")
		out.Append(whereFrag)
	}

	orderFrag := buildOrder(tree.Root.Order, alias)
	if orderFrag.SQL != "" {
		out.Push(" ORDER BY ")
		out.Append(orderFrag)
	}

	out.Append(buildRange(tree.Root.Range))

	return out, nil
}

// buildSelectList renders the column list for one ReadPlanTree level: its
// own fields, a correlated-subquery expression for every nested embed, and
// the flattened columns of every "..." spread embed (whose LATERAL JOIN the
// caller must splice into its own FROM clause, returned via lateralJoins).
// innerConds collects EXISTS(...) guards for join_type=inner embeds, which
// the caller folds into its own WHERE — there is no FROM-level join for a
// correlated subquery to hang an INNER JOIN's row-suppression semantics on.
func buildSelectList(tree *plan.ReadPlanTree) (fields ident.SqlFragment, innerConds []ident.SqlFragment, lateralJoins []ident.SqlFragment, err error) {
	alias := tree.Root.FromAlias
	parts := slice.Map(tree.Root.Select, func(f plan.CoercibleField) ident.SqlFragment {
		return renderField(f, alias)
	})

	for i := range tree.Children {
		child := &tree.Children[i]
		if child.Root.RelSpread {
			cols, lateral, serr := buildSpreadEmbed(child, alias, tree.Root.From)
			if serr != nil {
				return ident.SqlFragment{}, nil, nil, serr
			}
			parts = append(parts, cols...)
			lateralJoins = append(lateralJoins, lateral)
			continue
		}
		embedFrag, existsFrag, eerr := buildEmbed(child, alias, tree.Root.From)
		if eerr != nil {
			return ident.SqlFragment{}, nil, nil, eerr
		}
		parts = append(parts, embedFrag)
		if child.Root.RelJoinType == "inner" && existsFrag.SQL != "" {
			innerConds = append(innerConds, existsFrag)
		}
	}

	if len(parts) == 0 {
		var f ident.SqlFragment
		f.Push(ident.EscapeIdent(alias) + ".*")
		parts = append(parts, f)
	}

	return ident.Join(", ", parts...), innerConds, lateralJoins, nil
}

// renderField renders one output column: a plain column reference, a JSON
// path extraction, a cast, an aggregate wrap, and/or an alias. alias == ""
// omits the table qualifier (used when rendering a mutation's RETURNING
// list against the bare target table).
func renderField(f plan.CoercibleField, alias string) ident.SqlFragment {
	var frag ident.SqlFragment

	if f.FullRow {
		if alias == "" {
			frag.Push("*")
		} else {
			frag.Push(ident.EscapeIdent(alias) + ".*")
		}
		return frag
	}

	expr := ident.EscapeIdent(f.Name)
	if alias != "" {
		expr = ident.EscapeIdent(alias) + "." + expr
	}
	for i, seg := range f.JSONPath {
		op := "->"
		if i == len(f.JSONPath)-1 && f.LastAsText {
			op = "->>"
		}
		expr += op + quoteLiteral(seg)
	}
	if f.Cast != "" {
		expr = "(" + expr + ")::" + f.Cast
	}
	if f.Agg != "" {
		expr = strings.ToUpper(f.Agg) + "(" + expr + ")"
	}

	frag.Push(expr)
	switch {
	case f.Alias != "":
		frag.Push(" AS " + ident.EscapeIdent(f.Alias))
	case f.Agg != "" || len(f.JSONPath) > 0:
		frag.Push(" AS " + ident.EscapeIdent(f.Name))
	}
	return frag
}

// outputName is the JSON key renderField gives a field: its alias if one
// was requested, else its column name.
func outputName(f plan.CoercibleField) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// renderReturning renders a RETURNING list the same way as a select list,
// but against the bare (unaliased) mutation target.
func renderReturning(fields []plan.CoercibleField) ident.SqlFragment {
	if len(fields) == 0 {
		return ident.SqlFragment{}
	}
	var parts []ident.SqlFragment
	for _, f := range fields {
		parts = append(parts, renderField(f, ""))
	}
	return ident.Join(", ", parts...)
}

// childJoin computes the FROM extension and join predicate a resolved
// relationship implies, shared between the correlated-subquery form
// (buildEmbed) and the LATERAL-join form (buildSpreadEmbed).
func childJoin(child *plan.ReadPlanTree, parentAlias string, parentTable catalog.Table) (fromClause, joinCond ident.SqlFragment) {
	childAlias := child.Root.FromAlias
	childTable := child.Root.From

	if child.Root.RelIsM2M {
		junctionAlias := "_j_" + childAlias
		rel := child.Root.RelJunction
		junctionQI := ident.QualifiedIdentifier{Schema: rel.JunctionSchema, Name: rel.JunctionTable}

		fromClause.Push(childTable.QI().String()).Push(" AS ").Push(ident.EscapeIdent(childAlias))
		fromClause.Push(" JOIN ").Push(junctionQI.String()).Push(" AS ").Push(ident.EscapeIdent(junctionAlias))
		fromClause.Push(" ON ")
		fromClause.Append(colEquality(junctionAlias, rel.JunctionTgtCols, childAlias, childTable.PKCols))

		joinCond = colEquality(junctionAlias, rel.JunctionSrcCols, parentAlias, parentTable.PKCols)
		return fromClause, joinCond
	}

	fromClause.Push(childTable.QI().String()).Push(" AS ").Push(ident.EscapeIdent(childAlias))
	for _, pair := range child.Root.RelJoinConds {
		parentCol, childCol := pair[0], pair[1]
		cond := ident.EscapeIdent(childAlias) + "." + ident.EscapeIdent(childCol) + " = " + ident.EscapeIdent(parentAlias) + "." + ident.EscapeIdent(parentCol)
		if joinCond.SQL == "" {
			joinCond.Push(cond)
		} else {
			joinCond.Push(" AND " + cond)
		}
	}
	return fromClause, joinCond
}

// buildEmbed renders one resolved relationship as a correlated subquery in
// the parent's select list: row_to_json(...) for a to-one side, or
// COALESCE(json_agg(row_to_json(...)), '[]') for a to-many side. It also
// returns an EXISTS(...) fragment usable as a join_type=inner guard on the
// parent's WHERE clause.
func buildEmbed(child *plan.ReadPlanTree, parentAlias string, parentTable catalog.Table) (ident.SqlFragment, ident.SqlFragment, error) {
	childAlias := child.Root.FromAlias

	innerSelect, _, innerLateral, err := buildSelectList(child)
	if err != nil {
		return ident.SqlFragment{}, ident.SqlFragment{}, err
	}

	childWhere, err := buildWhereList(child.Root.Where, childAlias)
	if err != nil {
		return ident.SqlFragment{}, ident.SqlFragment{}, err
	}

	fromClause, joinCond := childJoin(child, parentAlias, parentTable)
	for _, lj := range innerLateral {
		fromClause.Append(lj)
	}

	var innerWhere ident.SqlFragment
	innerWhere.Append(joinCond)
	if childWhere.SQL != "" {
		innerWhere.Push(" AND (")
		innerWhere.Append(childWhere)
		innerWhere.Push(")")
	}

	var subSelect ident.SqlFragment
	subSelect.Push("SELECT ")
	subSelect.Append(innerSelect)
	subSelect.Push(" FROM ")
	subSelect.Append(fromClause)
	subSelect.Push(" WHERE ")
	subSelect.Append(innerWhere)

	orderFrag := buildOrder(child.Root.Order, childAlias)
	if orderFrag.SQL != "" {
		subSelect.Push(" ORDER BY ")
		subSelect.Append(orderFrag)
	}
	subSelect.Append(buildRange(child.Root.Range))

	var existsFrag ident.SqlFragment
	existsFrag.Push("EXISTS (SELECT 1 FROM ")
	existsFrag.Append(fromClause)
	existsFrag.Push(" WHERE ")
	existsFrag.Append(innerWhere)
	existsFrag.Push(")")

	var out ident.SqlFragment
	if child.Root.RelToParent {
		out.Push("(SELECT row_to_json(_sub) FROM (")
		out.Append(subSelect)
		out.Push(") _sub)")
	} else {
		out.Push("(SELECT COALESCE(json_agg(row_to_json(_sub)), '[]'::json) FROM (")
		out.Append(subSelect)
		out.Push(") _sub)")
	}
	out.Push(" AS " + ident.EscapeIdent(child.Root.RelName))

	return out, existsFrag, nil
}

// buildSpreadEmbed renders a "..." spread embed as a LEFT JOIN LATERAL: the
// child's own row is computed once in a derived table, then its columns are
// referenced directly in the parent's select list instead of being nested
// under a JSON key. Only the child's own scalar fields and non-spread
// nested embeds are spliced; a spread nested inside a spread degrades to a
// nested JSON object rather than flattening further.
func buildSpreadEmbed(child *plan.ReadPlanTree, parentAlias string, parentTable catalog.Table) ([]ident.SqlFragment, ident.SqlFragment, error) {
	childAlias := child.Root.FromAlias

	flat := *child
	flat.Children = append([]plan.ReadPlanTree(nil), child.Children...)
	for i := range flat.Children {
		flat.Children[i].Root.RelSpread = false
	}
	innerSelect, _, innerLateral, err := buildSelectList(&flat)
	if err != nil {
		return nil, ident.SqlFragment{}, err
	}
	childWhere, err := buildWhereList(child.Root.Where, childAlias)
	if err != nil {
		return nil, ident.SqlFragment{}, err
	}

	fromClause, joinCond := childJoin(child, parentAlias, parentTable)
	for _, lj := range innerLateral {
		fromClause.Append(lj)
	}

	var lateral ident.SqlFragment
	lateral.Push(" LEFT JOIN LATERAL (SELECT ")
	lateral.Append(innerSelect)
	lateral.Push(" FROM ")
	lateral.Append(fromClause)
	lateral.Push(" WHERE ")
	lateral.Append(joinCond)
	if childWhere.SQL != "" {
		lateral.Push(" AND (")
		lateral.Append(childWhere)
		lateral.Push(")")
	}
	orderFrag := buildOrder(child.Root.Order, childAlias)
	if orderFrag.SQL != "" {
		lateral.Push(" ORDER BY ")
		lateral.Append(orderFrag)
	}
	lateral.Append(buildRange(child.Root.Range))
	lateral.Push(" LIMIT 1) AS ").Push(ident.EscapeIdent(childAlias)).Push(" ON TRUE")

	var cols []ident.SqlFragment
	for _, f := range child.Root.Select {
		if f.FullRow {
			continue
		}
		name := outputName(f)
		var c ident.SqlFragment
		c.Push(ident.EscapeIdent(childAlias) + "." + ident.EscapeIdent(name) + " AS " + ident.EscapeIdent(name))
		cols = append(cols, c)
	}
	for _, grand := range child.Children {
		name := grand.Root.RelName
		var c ident.SqlFragment
		c.Push(ident.EscapeIdent(childAlias) + "." + ident.EscapeIdent(name) + " AS " + ident.EscapeIdent(name))
		cols = append(cols, c)
	}

	return cols, lateral, nil
}

// colEquality renders "left.cols[i] = right.cols[i] AND ..." for two
// positionally-matched column lists.
func colEquality(left string, leftCols []string, right string, rightCols []string) ident.SqlFragment {
	var f ident.SqlFragment
	n := len(leftCols)
	if len(rightCols) < n {
		n = len(rightCols)
	}
	for i := 0; i < n; i++ {
		cond := ident.EscapeIdent(left) + "." + ident.EscapeIdent(leftCols[i]) + " = " + ident.EscapeIdent(right) + "." + ident.EscapeIdent(rightCols[i])
		if i == 0 {
			f.Push(cond)
		} else {
			f.Push(" AND " + cond)
		}
	}
	return f
}

// buildOrder renders "col [ASC|DESC] [NULLS FIRST|LAST], ...". alias == ""
// omits the table qualifier.
func buildOrder(terms []plan.OrderTerm, alias string) ident.SqlFragment {
	if len(terms) == 0 {
		return ident.SqlFragment{}
	}
	var parts []string
	for _, t := range terms {
		col := ident.EscapeIdent(t.Field)
		if alias != "" {
			col = ident.EscapeIdent(alias) + "." + col
		}
		if t.Desc {
			col += " DESC"
		} else {
			col += " ASC"
		}
		switch {
		case t.NullsFirst:
			col += " NULLS FIRST"
		case t.NullsLast:
			col += " NULLS LAST"
		}
		parts = append(parts, col)
	}
	var f ident.SqlFragment
	f.Push(strings.Join(parts, ", "))
	return f
}

// buildRange renders " LIMIT n" and/or " OFFSET m", emitting each clause
// only when the plan actually carries it.
func buildRange(r plan.RangeSpec) ident.SqlFragment {
	var f ident.SqlFragment
	if r.Limit != nil {
		f.Push(" LIMIT " + strconv.Itoa(*r.Limit))
	}
	if r.Offset > 0 {
		f.Push(" OFFSET " + strconv.Itoa(r.Offset))
	}
	return f
}

// quoteLiteral renders s as a single-quoted SQL text literal, doubling any
// embedded quote. Used only for JSON path key segments, which come from the
// request's select= grammar rather than from the schema, so they're never
// passed through ident.EscapeIdent (that function is reserved for
// identifiers, not string literals).
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
