// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package plan

import (
	"encoding/json"

	"github.com/relaybase/pgrestcore/internal/apirequest"
	"github.com/relaybase/pgrestcore/internal/catalog"
	"github.com/relaybase/pgrestcore/internal/platform/apperr"
)

// BuildCallPlan resolves a routine overload and its argument-binding mode,
// per §4.4's "Routine" dispatch: overload resolution compares the caller's
// parameter name set against each candidate's declared names.
func (p *Planner) BuildCallPlan(schema, name string, req *apirequest.ApiRequest) (*CallPlan, error) {
	candidates := p.Cache.Routines(schema, name)
	if len(candidates) == 0 {
		return nil, apperr.NotFoundCode("PGRST202", "function", schema+"."+name)
	}

	if req.Db.InvokeMethod == apirequest.InvokeRead {
		for _, r := range candidates {
			if !r.Callable() {
				return nil, apperr.Forbidden("routine '" + name + "' is VOLATILE and cannot be invoked via GET")
			}
		}
	}

	// A routine declaring exactly one json/jsonb parameter receives the
	// whole request body as that parameter verbatim, rather than having
	// its top-level keys matched against declared parameter names — this
	// is the "single JSON/JSONB parameter" RPC shape.
	if routine, param, ok := singleJSONParamRoutine(candidates, req); ok {
		return &CallPlan{
			Routine:       routine,
			ReturnsScalar: routine.ReturnKind == catalog.ReturnSingle,
			ReturnsSet:    routine.ReturnKind == catalog.ReturnSetOf || routine.ReturnKind == catalog.ReturnTable,
			ParamMode:     CallParamsSingleObject,
			NamedArgs:     map[string]string{param.Name: string(req.Payload.Raw)},
		}, nil
	}

	argNames, namedArgs, positional, err := p.extractCallArgs(req)
	if err != nil {
		return nil, err
	}

	routine, err := resolveOverload(candidates, argNames, req.Preferences.Handling == apirequest.HandlingLenient)
	if err != nil {
		return nil, err
	}

	cp := &CallPlan{
		Routine:       routine,
		ReturnsScalar: routine.ReturnKind == catalog.ReturnSingle,
		ReturnsSet:    routine.ReturnKind == catalog.ReturnSetOf || routine.ReturnKind == catalog.ReturnTable,
	}

	switch {
	case len(namedArgs) > 0:
		cp.ParamMode = CallParamsNamed
		cp.NamedArgs = namedArgs
	case len(positional) > 0:
		cp.ParamMode = CallParamsPositional
		cp.PositionalArgs = positional
	default:
		cp.ParamMode = CallParamsNone
	}

	return cp, nil
}

// extractCallArgs gathers the routine's argument names/values from either
// the GET query string or a POST body (named object or positional array).
func (p *Planner) extractCallArgs(req *apirequest.ApiRequest) (argNames []string, named map[string]string, positional []string, err error) {
	if req.Db.InvokeMethod == apirequest.InvokeRead {
		named = map[string]string{}
		for _, f := range req.Query.Filters {
			if f.Op == apirequest.OpEq && len(f.EmbedPath) == 0 {
				named[f.Field] = f.Operand
				argNames = append(argNames, f.Field)
			}
		}
		return argNames, named, nil, nil
	}

	if req.Payload == nil || len(req.Payload.Raw) == 0 {
		return nil, nil, nil, nil
	}

	if req.Payload.IsArray {
		var arr []json.RawMessage
		if err := json.Unmarshal(req.Payload.Raw, &arr); err != nil {
			return nil, nil, nil, apperr.InvalidBody("RPC array body must be a JSON array: " + err.Error())
		}
		for _, raw := range arr {
			positional = append(positional, string(raw))
		}
		return nil, nil, positional, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(req.Payload.Raw, &obj); err != nil {
		return nil, nil, nil, apperr.InvalidBody("RPC object body must be a JSON object: " + err.Error())
	}
	named = map[string]string{}
	for k, v := range obj {
		named[k] = string(v)
		argNames = append(argNames, k)
	}
	return argNames, named, nil, nil
}

// singleJSONParamRoutine reports whether exactly one candidate overload
// declares a single json/jsonb parameter, in which case the whole request
// body is bound to that parameter rather than decomposed by key.
func singleJSONParamRoutine(candidates []catalog.Routine, req *apirequest.ApiRequest) (catalog.Routine, catalog.RoutineParam, bool) {
	if req.Db.InvokeMethod == apirequest.InvokeRead || req.Payload == nil || req.Payload.IsArray || len(req.Payload.Raw) == 0 {
		return catalog.Routine{}, catalog.RoutineParam{}, false
	}

	var match catalog.Routine
	found := 0
	for _, r := range candidates {
		if len(r.Params) == 1 && (r.Params[0].DataType == "json" || r.Params[0].DataType == "jsonb") {
			match = r
			found++
		}
	}
	if found != 1 {
		return catalog.Routine{}, catalog.RoutineParam{}, false
	}
	return match, match.Params[0], true
}

// resolveOverload picks the overload to call. A lone candidate is returned
// as is. Otherwise a candidate survives when its declared parameter names
// include every name in argNames; one survivor is returned, and more than
// one is an AmbiguousRequest (300). With no survivor, lenient takes the
// first candidate and strict reports PGRST202.
func resolveOverload(candidates []catalog.Routine, argNames []string, lenient bool) (catalog.Routine, error) {
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	var matches []catalog.Routine
	for _, r := range candidates {
		declared := map[string]struct{}{}
		for _, p := range r.Params {
			declared[p.Name] = struct{}{}
		}
		ok := true
		for _, name := range argNames {
			if _, found := declared[name]; !found {
				ok = false
				break
			}
		}
		if ok {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		if lenient && len(candidates) > 0 {
			return candidates[0], nil
		}
		return catalog.Routine{}, apperr.NotFoundCode("PGRST202", "function", "matching overload")
	case 1:
		return matches[0], nil
	default:
		return catalog.Routine{}, apperr.AmbiguousRequest(candidates[0].Name)
	}
}
