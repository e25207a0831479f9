// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package build turns a validated plan.DbActionPlan into executable SQL: a
single string with contiguous `$1..$N` placeholders and the ordered
[ident.SqlParam] slice to bind against it. Every identifier reaches the
output through ident.EscapeIdent and every fragment is composed through
ident.SqlFragment.Append, so placeholder renumbering is handled once, in
one place, rather than re-derived here.

Mutations that also return a representation (return=representation, with
or without an embedding select=) are wrapped in a CTE: the mutation runs
first as `pgrst_mutation_result`, then a normal read statement selects
from it. RPC calls that carry select=/order=/range params are wrapped the
same way under `pgrst_call_result`.
*/
package build

import (
	"bytes"

	"github.com/relaybase/pgrestcore/internal/ident"
	"github.com/relaybase/pgrestcore/internal/plan"
	"github.com/relaybase/pgrestcore/internal/platform/apperr"
)

const (
	mutationCTEName = "pgrst_mutation_result"
	callCTEName     = "pgrst_call_result"
)

// Build converts a DbActionPlan into final SQL text and its bound
// parameters, ready for internal/txexec to run inside a transaction.
func Build(p *plan.DbActionPlan) (string, []ident.SqlParam, error) {
	switch p.Kind {
	case plan.PlanRead:
		frag, err := buildReadStatement(p.Read, "")
		if err != nil {
			return "", nil, err
		}
		sql, params := frag.Build()
		return sql, params, nil

	case plan.PlanMutateRead:
		return buildMutateRead(p.Mutate, p.Read)

	case plan.PlanCall:
		return buildCallRead(p.Call, p.CallRead)

	default:
		return "", nil, apperr.Internal(nil)
	}
}

func buildMutateRead(mp *plan.MutatePlan, read *plan.ReadPlanTree) (string, []ident.SqlParam, error) {
	mutateFrag, err := buildMutate(mp)
	if err != nil {
		return "", nil, err
	}

	if read == nil {
		sql, params := mutateFrag.Build()
		return sql, params, nil
	}

	readFrag, err := buildReadStatement(read, mutationCTEName)
	if err != nil {
		return "", nil, err
	}

	var out ident.SqlFragment
	out.Push("WITH " + ident.EscapeIdent(mutationCTEName) + " AS (")
	out.Append(mutateFrag)
	out.Push(") ")
	out.Append(readFrag)
	sql, params := out.Build()
	return sql, params, nil
}

func buildCallRead(cp *plan.CallPlan, read *plan.ReadPlanTree) (string, []ident.SqlParam, error) {
	callFrag, err := buildCall(cp)
	if err != nil {
		return "", nil, err
	}

	if read == nil {
		sql, params := callFrag.Build()
		return sql, params, nil
	}

	readFrag, err := buildReadStatement(read, callCTEName)
	if err != nil {
		return "", nil, err
	}

	var out ident.SqlFragment
	out.Push("WITH " + ident.EscapeIdent(callCTEName) + " AS (")
	out.Append(callFrag)
	out.Push(") ")
	out.Append(readFrag)
	sql, params := out.Build()
	return sql, params, nil
}

// isJSONArray reports whether a raw JSON payload's first token is '['.
func isJSONArray(raw []byte) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}
