// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package plan

import (
	"github.com/relaybase/pgrestcore/internal/apirequest"
	"github.com/relaybase/pgrestcore/internal/catalog"
	"github.com/relaybase/pgrestcore/internal/platform/apperr"
)

// tableFromRoutine synthesizes a catalog.Table view of a routine's result
// shape, so a GET /rpc/<fn>?select=... can reuse the same ReadPlan
// machinery as a relation read (§4.4's "Routine" result sub-select).
func tableFromRoutine(cp *CallPlan) catalog.Table {
	return catalog.Table{
		Schema:  cp.Routine.Schema,
		Name:    cp.Routine.Name,
		Columns: cp.Routine.ReturnCols,
	}
}

// Build dispatches a parsed ApiRequest through §4.4's planner rules,
// producing a validated DbActionPlan. Callers first check req.Action ==
// ActionDb; Info/SchemaInfo/RelationInfo/RoutineInfo actions are handled
// directly by the API layer without reaching the planner.
func (p *Planner) Build(req *apirequest.ApiRequest) (*DbActionPlan, error) {
	if req.Db == nil {
		return nil, apperr.Internal(nil)
	}

	switch req.Db.Kind {
	case apirequest.DbRelationRead:
		table, err := p.Cache.RequireTable(req.Db.QI.Schema, req.Db.QI.Name)
		if err != nil {
			return nil, err
		}
		tree, err := p.BuildReadPlanTree(table, req.Query)
		if err != nil {
			return nil, err
		}
		return &DbActionPlan{Kind: PlanRead, Read: tree}, nil

	case apirequest.DbRelationMut:
		table, err := p.Cache.RequireTable(req.Db.QI.Schema, req.Db.QI.Name)
		if err != nil {
			return nil, err
		}
		mp, err := p.BuildMutatePlan(table, req.Db.Mutation, req)
		if err != nil {
			return nil, err
		}
		out := &DbActionPlan{Kind: PlanMutateRead, Mutate: mp}
		if req.Preferences.Return == apirequest.ReturnRepresentation {
			aliasTable := table
			aliasTable.Name = "pgrst_mutation_result"
			tree, err := p.BuildReadPlanTree(aliasTable, apirequest.QueryParams{Select: req.Query.Select})
			if err != nil {
				return nil, err
			}
			out.Read = tree
		}
		return out, nil

	case apirequest.DbRoutine:
		cp, err := p.BuildCallPlan(req.Db.Schema, req.Db.QI.Name, req)
		if err != nil {
			return nil, err
		}
		out := &DbActionPlan{Kind: PlanCall, Call: cp}
		if len(req.Query.Select) > 0 || len(req.Query.Filters) > 0 || len(req.Query.Order) > 0 {
			resultTable := tableFromRoutine(cp)
			tree, err := p.BuildReadPlanTree(resultTable, req.Query)
			if err == nil {
				out.CallRead = tree
			}
		}
		return out, nil

	default:
		return nil, apperr.Internal(nil)
	}
}
