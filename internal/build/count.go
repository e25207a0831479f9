// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package build

import (
	"github.com/relaybase/pgrestcore/internal/ident"
	"github.com/relaybase/pgrestcore/internal/plan"
	"github.com/relaybase/pgrestcore/internal/platform/apperr"
)

// BuildCount renders a `SELECT count(*) FROM ... WHERE ...` statement for a
// read plan's root node, scoped to the same filters as the main query but
// dropping select/order/range — used by internal/txexec to satisfy
// `Prefer: count=exact` (§4.3's Preferences table; §6's Content-Range
// header carries the total alongside the page of rows).
func BuildCount(p *plan.DbActionPlan) (string, []ident.SqlParam, error) {
	if p.Kind != plan.PlanRead {
		return "", nil, apperr.Internal(nil)
	}

	root := p.Read.Root
	alias := root.FromAlias

	var f ident.SqlFragment
	f.Push("SELECT count(*) FROM ").Push(root.From.QI().String()).Push(" AS ").Push(ident.EscapeIdent(alias))

	whereFrag, err := buildWhereList(root.Where, alias)
	if err != nil {
		return "", nil, err
	}
	if whereFrag.SQL != "" {
		f.Push(" WHERE ")
		f.Append(whereFrag)
	}

	sql, params := f.Build()
	return sql, params, nil
}
