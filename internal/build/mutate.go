// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package build

import (
	"strconv"
	"strings"

	"github.com/relaybase/pgrestcore/internal/apirequest"
	"github.com/relaybase/pgrestcore/internal/ident"
	"github.com/relaybase/pgrestcore/internal/plan"
	"github.com/relaybase/pgrestcore/internal/platform/apperr"
	"github.com/relaybase/pgrestcore/pkg/slice"
)

// buildMutate renders an INSERT, UPDATE, or DELETE statement, per §4.4's
// "Mutation specifics": INSERT reads its row(s) out of the body through
// json_populate_recordset rather than a hand-built VALUES list; UPDATE
// binds the body once and extracts each column from it.
func buildMutate(mp *plan.MutatePlan) (ident.SqlFragment, error) {
	switch mp.Kind {
	case plan.MutateInsert:
		return buildInsert(mp)
	case plan.MutateUpdate:
		return buildUpdate(mp)
	case plan.MutateDelete:
		return buildDelete(mp)
	default:
		return ident.SqlFragment{}, apperr.Internal(nil)
	}
}

// buildInsert renders:
//
//	INSERT INTO "schema"."table" ("c1","c2")
//	SELECT "c1","c2" FROM json_populate_recordset(NULL::"schema"."table", $1::json)
//	[ON CONFLICT (...) DO NOTHING|DO UPDATE SET ...]
//	[RETURNING ...]
func buildInsert(mp *plan.MutatePlan) (ident.SqlFragment, error) {
	if len(mp.Columns) == 0 {
		return ident.SqlFragment{}, apperr.InvalidBody("insert body has no recognized columns")
	}

	colList := quotedColumnList(mp.Columns)

	var f ident.SqlFragment
	f.Push("INSERT INTO ").Push(mp.Target.QI().String())
	f.Push(" (" + colList + ") SELECT " + colList)
	f.Push(" FROM json_populate_recordset(NULL::")
	f.Push(mp.Target.QI().String())
	f.Push(", ")
	f.PushParam(ident.JSON(mp.Body))
	f.Push("::json)")

	if len(mp.OnConflictCols) > 0 && mp.Resolution != apirequest.ResolutionNone {
		f.Push(" ON CONFLICT (" + quotedColumnList(mp.OnConflictCols) + ")")
		switch mp.Resolution {
		case apirequest.ResolutionIgnoreDuplicates:
			f.Push(" DO NOTHING")
		case apirequest.ResolutionMergeDuplicates:
			var sets []string
			for _, c := range mp.Columns {
				sets = append(sets, ident.EscapeIdent(c)+" = EXCLUDED."+ident.EscapeIdent(c))
			}
			f.Push(" DO UPDATE SET " + strings.Join(sets, ", "))
		}
	}

	if len(mp.Returning) > 0 {
		f.Push(" RETURNING ")
		f.Append(renderReturning(mp.Returning))
	}

	return f, nil
}

// buildUpdate renders the single-object form:
//
//	UPDATE "schema"."table" SET "c1" = ($1::json->>'c1')::type1, ...
//	[WHERE ...] [RETURNING ...]
//
// or, when the body is a JSON array, the bulk-by-primary-key form using
// json_to_recordset to update many rows from one round trip.
func buildUpdate(mp *plan.MutatePlan) (ident.SqlFragment, error) {
	if len(mp.Columns) == 0 {
		return ident.SqlFragment{}, apperr.InvalidBody("update body has no recognized columns")
	}

	if isJSONArray(mp.Body) {
		return buildBulkUpdate(mp)
	}

	var f ident.SqlFragment
	f.Push("UPDATE ").Push(mp.Target.QI().String()).Push(" SET ")

	bodyIdx := f.ParamRef(ident.JSON(mp.Body))
	var sets []string
	for _, c := range mp.Columns {
		col, _ := mp.Target.Column(c)
		sets = append(sets, ident.EscapeIdent(c)+" = ($"+strconv.Itoa(bodyIdx)+"::json->>"+quoteLiteral(c)+")::"+orText(col.DataType))
	}
	f.Push(strings.Join(sets, ", "))

	whereFrag, err := buildWhereList(mp.Where, "")
	if err != nil {
		return ident.SqlFragment{}, err
	}
	if whereFrag.SQL != "" {
		f.Push(" WHERE ")
		f.Append(whereFrag)
	}

	if len(mp.Returning) > 0 {
		f.Push(" RETURNING ")
		f.Append(renderReturning(mp.Returning))
	}

	return f, nil
}

// buildBulkUpdate renders:
//
//	UPDATE "schema"."table" AS t SET "c1" = j."c1", ...
//	FROM json_to_recordset($1::json) AS j("pk" pktype, "c1" type1, ...)
//	WHERE t."pk" = j."pk" [AND ...]
//	[RETURNING ...]
func buildBulkUpdate(mp *plan.MutatePlan) (ident.SqlFragment, error) {
	if len(mp.PKCols) == 0 {
		return ident.SqlFragment{}, apperr.InvalidBody("bulk update by array requires a primary key")
	}

	recordCols := unionCols(mp.Columns, mp.PKCols)

	var f ident.SqlFragment
	f.Push("UPDATE ").Push(mp.Target.QI().String()).Push(" AS t SET ")

	var sets []string
	for _, c := range mp.Columns {
		sets = append(sets, ident.EscapeIdent(c)+" = j."+ident.EscapeIdent(c))
	}
	f.Push(strings.Join(sets, ", "))

	f.Push(" FROM json_to_recordset(")
	f.PushParam(ident.JSON(mp.Body))
	f.Push("::json) AS j(")
	var coldefs []string
	for _, c := range recordCols {
		col, _ := mp.Target.Column(c)
		coldefs = append(coldefs, ident.EscapeIdent(c)+" "+orText(col.DataType))
	}
	f.Push(strings.Join(coldefs, ", "))
	f.Push(")")

	var pkConds []string
	for _, pk := range mp.PKCols {
		pkConds = append(pkConds, "t."+ident.EscapeIdent(pk)+" = j."+ident.EscapeIdent(pk))
	}
	f.Push(" WHERE " + strings.Join(pkConds, " AND "))

	whereFrag, err := buildWhereList(mp.Where, "t")
	if err != nil {
		return ident.SqlFragment{}, err
	}
	if whereFrag.SQL != "" {
		f.Push(" AND (")
		f.Append(whereFrag)
		f.Push(")")
	}

	if len(mp.Returning) > 0 {
		f.Push(" RETURNING ")
		f.Append(renderReturning(mp.Returning))
	}

	return f, nil
}

// buildDelete renders DELETE FROM "schema"."table" [WHERE ...] [RETURNING ...].
func buildDelete(mp *plan.MutatePlan) (ident.SqlFragment, error) {
	var f ident.SqlFragment
	f.Push("DELETE FROM ").Push(mp.Target.QI().String())

	whereFrag, err := buildWhereList(mp.Where, "")
	if err != nil {
		return ident.SqlFragment{}, err
	}
	if whereFrag.SQL != "" {
		f.Push(" WHERE ")
		f.Append(whereFrag)
	}

	if len(mp.Returning) > 0 {
		f.Push(" RETURNING ")
		f.Append(renderReturning(mp.Returning))
	}

	return f, nil
}

func quotedColumnList(cols []string) string {
	return strings.Join(slice.Map(cols, ident.EscapeIdent), ", ")
}

func unionCols(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, c := range a {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range b {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// orText falls back to "text" when a column's declared type is unknown,
// matching json's own default scalar coercion.
func orText(dataType string) string {
	if dataType == "" {
		return "text"
	}
	return dataType
}
