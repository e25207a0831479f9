// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"net/http"
	"strings"

	"github.com/relaybase/pgrestcore/internal/apirequest"
	"github.com/relaybase/pgrestcore/internal/catalog"
	"github.com/relaybase/pgrestcore/internal/plan"
	"github.com/relaybase/pgrestcore/internal/platform/apperr"
	"github.com/relaybase/pgrestcore/internal/platform/constants"
	"github.com/relaybase/pgrestcore/internal/platform/respond"
)

// ServeRootInfo answers `GET /`: a reduced OpenAPI document describing
// every table and routine exposed under the negotiated schema.
func (e *Engine) ServeRootInfo(w http.ResponseWriter, r *http.Request) {
	snapshot := e.Cache.Load()
	if snapshot == nil {
		respond.Error(w, r, apperr.SchemaCacheNotLoaded())
		return
	}

	schema, err := e.negotiateInfoSchema(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	planner := plan.NewPlanner(snapshot, plan.DefaultMaxDepth, e.Config.DBMaxRows)
	ip := planner.BuildInfoPlan(schema)
	respond.JSON(w, http.StatusOK, ip.OpenApiSpec(r.Host))
}

// ServeResourceInfo answers `OPTIONS /{table}` and `OPTIONS /rpc/{fn}`: an
// `Allow` header plus a small JSON description of the resource's columns
// (or the routine's overloads), per §4.3's Info actions.
func (e *Engine) ServeResourceInfo(w http.ResponseWriter, r *http.Request) {
	snapshot := e.Cache.Load()
	if snapshot == nil {
		respond.Error(w, r, apperr.SchemaCacheNotLoaded())
		return
	}

	isRoutine, name, err := apirequest.DescribeResource(r.URL.Path)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	schema, err := e.negotiateInfoSchema(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if isRoutine {
		routines := snapshot.Routines(schema, name)
		if len(routines) == 0 {
			respond.Error(w, r, apperr.NotFoundCode("PGRST202", "function", schema+"."+name))
			return
		}
		w.Header().Set("Allow", routineAllow(routines))
		respond.JSON(w, http.StatusOK, routineInfoBody(routines))
		return
	}

	table, err := snapshot.RequireTable(schema, name)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	w.Header().Set("Allow", tableAllow(table))
	respond.JSON(w, http.StatusOK, tableInfoBody(table))
}

// negotiateInfoSchema mirrors apirequest's Accept-Profile negotiation for
// the Info actions, which never go through apirequest.Parse since they
// carry no DbAction.
func (e *Engine) negotiateInfoSchema(r *http.Request) (string, error) {
	if v := r.Header.Get(constants.HeaderAcceptProfile); v != "" {
		if !e.Config.SchemaExposed(v) {
			return "", apperr.UnacceptableSchema(v)
		}
		return v, nil
	}
	return e.Config.DefaultSchema(), nil
}

func tableAllow(t catalog.Table) string {
	methods := []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	if t.Insertable {
		methods = append(methods, http.MethodPost)
	}
	if t.Updatable {
		methods = append(methods, http.MethodPatch, http.MethodPut)
	}
	if t.Deletable {
		methods = append(methods, http.MethodDelete)
	}
	return strings.Join(methods, ",")
}

func routineAllow(routines []catalog.Routine) string {
	methods := []string{http.MethodPost, http.MethodOptions}
	for _, r := range routines {
		if r.Callable() {
			methods = append(methods, http.MethodGet, http.MethodHead)
			break
		}
	}
	return strings.Join(methods, ",")
}

func tableInfoBody(t catalog.Table) map[string]any {
	cols := make([]map[string]any, 0, len(t.Columns))
	for _, c := range t.Columns {
		cols = append(cols, map[string]any{
			"name":     c.Name,
			"type":     c.DataType,
			"nullable": c.Nullable,
			"isPrimaryKey": containsString(t.PKCols, c.Name),
		})
	}
	return map[string]any{
		"schema":     t.Schema,
		"name":       t.Name,
		"insertable": t.Insertable,
		"updatable":  t.Updatable,
		"deletable":  t.Deletable,
		"columns":    cols,
	}
}

func routineInfoBody(routines []catalog.Routine) map[string]any {
	overloads := make([]map[string]any, 0, len(routines))
	for _, r := range routines {
		params := make([]map[string]any, 0, len(r.Params))
		for _, p := range r.Params {
			params = append(params, map[string]any{
				"name": p.Name, "type": p.DataType, "hasDefault": p.HasDefault, "variadic": p.Variadic,
			})
		}
		overloads = append(overloads, map[string]any{
			"params":    params,
			"callable":  r.Callable(),
			"procedure": r.IsProcedure,
		})
	}
	return map[string]any{"overloads": overloads}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
