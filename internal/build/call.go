// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package build

import (
	"sort"

	"github.com/relaybase/pgrestcore/internal/catalog"
	"github.com/relaybase/pgrestcore/internal/ident"
	"github.com/relaybase/pgrestcore/internal/plan"
)

// buildCall renders a routine invocation. A scalar-returning routine is
// wrapped as `SELECT schema.fn(...) AS "name"` so its value surfaces under
// a predictable JSON key; a set/table-returning routine is rendered as
// `SELECT * FROM schema.fn(...)` so the caller's optional select=/order=
// wrapper (buildReadStatement over the "pgrst_call_result" CTE) can treat
// it like any other relation.
func buildCall(cp *plan.CallPlan) (ident.SqlFragment, error) {
	args, err := buildCallArgs(cp)
	if err != nil {
		return ident.SqlFragment{}, err
	}

	var f ident.SqlFragment
	if cp.ReturnsScalar {
		f.Push("SELECT ")
		f.Push(cp.Routine.QI().String())
		f.Push("(")
		f.Append(args)
		f.Push(") AS " + ident.EscapeIdent(cp.Routine.Name))
		return f, nil
	}

	f.Push("SELECT * FROM ")
	f.Push(cp.Routine.QI().String())
	f.Push("(")
	f.Append(args)
	f.Push(")")
	return f, nil
}

func buildCallArgs(cp *plan.CallPlan) (ident.SqlFragment, error) {
	switch cp.ParamMode {
	case plan.CallParamsNone:
		return ident.SqlFragment{}, nil

	case plan.CallParamsPositional:
		var parts []ident.SqlFragment
		for _, v := range cp.PositionalArgs {
			var p ident.SqlFragment
			p.PushParam(ident.Text(v))
			parts = append(parts, p)
		}
		return ident.Join(", ", parts...), nil

	case plan.CallParamsNamed, plan.CallParamsSingleObject:
		var parts []ident.SqlFragment
		for _, name := range sortedArgNames(cp.NamedArgs) {
			dataType := lookupParamType(cp.Routine, name)
			var p ident.SqlFragment
			p.Push(ident.EscapeIdent(name) + " => ")
			p.PushParam(ident.Text(cp.NamedArgs[name]))
			p.Push(castSuffix(dataType))
			parts = append(parts, p)
		}
		return ident.Join(", ", parts...), nil

	default:
		return ident.SqlFragment{}, nil
	}
}

func sortedArgNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func lookupParamType(r catalog.Routine, name string) string {
	for _, p := range r.Params {
		if p.Name == name {
			return p.DataType
		}
	}
	return ""
}
