// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package plan

import (
	"github.com/relaybase/pgrestcore/internal/apirequest"
	"github.com/relaybase/pgrestcore/internal/catalog"
	"github.com/relaybase/pgrestcore/internal/platform/apperr"
)

// BuildMutatePlan validates a RelationMut action's payload keys, filters,
// and conflict columns against the target table, per §4.4's "Mutation
// specifics".
func (p *Planner) BuildMutatePlan(table catalog.Table, mutation apirequest.Mutation, req *apirequest.ApiRequest) (*MutatePlan, error) {
	mp := &MutatePlan{Target: table, PKCols: table.PKCols}

	switch mutation {
	case apirequest.MutationCreate:
		mp.Kind = MutateInsert
		if !table.Insertable {
			return nil, apperr.Forbidden("relation '" + table.Name + "' is not insertable")
		}
		cols, err := p.resolveBodyColumns(table, req)
		if err != nil {
			return nil, err
		}
		mp.Columns = cols
		mp.ApplyDefaults = req.Preferences.Missing == apirequest.MissingDefault
		mp.OnConflictCols = req.Query.OnConflict
		mp.Resolution = req.Preferences.Resolution

	case apirequest.MutationSingleUpsert:
		mp.Kind = MutateInsert
		if !table.Insertable {
			return nil, apperr.Forbidden("relation '" + table.Name + "' is not insertable")
		}
		if len(table.PKCols) == 0 {
			return nil, apperr.InvalidBody("PUT requires a table with a primary key")
		}
		cols, err := p.resolveBodyColumns(table, req)
		if err != nil {
			return nil, err
		}
		mp.Columns = cols
		mp.OnConflictCols = table.PKCols
		mp.Resolution = apirequest.ResolutionMergeDuplicates
		where, err := p.resolveMutateWhere(table, req.Query.Filters, req.Query.Logic)
		if err != nil {
			return nil, err
		}
		mp.Where = where

	case apirequest.MutationUpdate:
		mp.Kind = MutateUpdate
		if !table.Updatable {
			return nil, apperr.Forbidden("relation '" + table.Name + "' is not updatable")
		}
		cols, err := p.resolveBodyColumns(table, req)
		if err != nil {
			return nil, err
		}
		mp.Columns = cols
		where, err := p.resolveMutateWhere(table, req.Query.Filters, req.Query.Logic)
		if err != nil {
			return nil, err
		}
		mp.Where = where

	case apirequest.MutationDelete:
		mp.Kind = MutateDelete
		if !table.Deletable {
			return nil, apperr.Forbidden("relation '" + table.Name + "' is not deletable")
		}
		where, err := p.resolveMutateWhere(table, req.Query.Filters, req.Query.Logic)
		if err != nil {
			return nil, err
		}
		mp.Where = where
	}

	if req.Payload != nil {
		mp.Body = req.Payload.Raw
	}

	switch {
	case req.Preferences.Return == apirequest.ReturnRepresentation:
		mp.Returning = append(mp.Returning, CoercibleField{FullRow: true})
	case mutation == apirequest.MutationCreate && len(table.PKCols) > 0:
		// return=minimal still needs the inserted primary key back to
		// render the Location header.
		for _, pk := range table.PKCols {
			col, _ := table.Column(pk)
			mp.Returning = append(mp.Returning, CoercibleField{Name: pk, DataType: col.DataType})
		}
	case req.Preferences.MaxAffected != nil:
		// max-affected is checked against the number of returned rows, so
		// the statement must return one row per affected row.
		mp.Returning = append(mp.Returning, CoercibleField{FullRow: true})
	}

	return mp, nil
}

// resolveBodyColumns validates the explicit `columns=` parameter (if any,
// else the payload's top-level key set) against the table's declared
// columns, per §4.4's "Insert uses ... only columns in the intersection of
// columns arg ... and the table's declared columns".
func (p *Planner) resolveBodyColumns(table catalog.Table, req *apirequest.ApiRequest) ([]string, error) {
	keys := req.Query.Columns
	if len(keys) == 0 && req.Payload != nil {
		keys = req.Payload.Keys
	}

	var resolved []string
	for _, k := range keys {
		if _, ok := table.Column(k); !ok {
			return nil, apperr.UnknownColumn(table.Name, k)
		}
		resolved = append(resolved, k)
	}
	return resolved, nil
}

// resolveMutateWhere validates the flat filters and and/or trees attached
// to a mutation's query string (root-level only; mutations don't support
// embedded-resource filters).
func (p *Planner) resolveMutateWhere(table catalog.Table, filters []apirequest.Filter, logic []apirequest.LogicNode) ([]CoercibleLogicTree, error) {
	var where []CoercibleLogicTree
	for _, f := range filters {
		if len(f.EmbedPath) > 0 {
			continue
		}
		col, ok := table.Column(f.Field)
		if !ok {
			return nil, apperr.UnknownColumn(table.Name, f.Field)
		}
		where = append(where, CoercibleLogicTree{
			Leaf: &CoercibleFilter{
				Field: col.Name, DataType: col.DataType, Negated: f.Negated,
				Op: f.Op, Operand: f.Operand, List: f.List, FtsLang: f.FtsLang,
			},
		})
	}
	for _, n := range logic {
		if len(n.EmbedPath) > 0 {
			continue
		}
		tree, err := p.resolveLogicNode(table, n)
		if err != nil {
			return nil, err
		}
		where = append(where, tree)
	}
	return where, nil
}
