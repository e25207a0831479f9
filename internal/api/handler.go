// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api is the HTTP composition root: it turns the engine's internal
packages (apirequest, plan, build, txexec, catalog) into the request/response
cycle chi dispatches into, and owns the process-level concerns (router
assembly, health checks, graceful shutdown) that those packages don't.
*/
package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/relaybase/pgrestcore/internal/apirequest"
	"github.com/relaybase/pgrestcore/internal/build"
	"github.com/relaybase/pgrestcore/internal/catalog"
	"github.com/relaybase/pgrestcore/internal/plan"
	"github.com/relaybase/pgrestcore/internal/platform/apperr"
	"github.com/relaybase/pgrestcore/internal/platform/config"
	"github.com/relaybase/pgrestcore/internal/platform/constants"
	requestutil "github.com/relaybase/pgrestcore/internal/platform/request"
	"github.com/relaybase/pgrestcore/internal/platform/respond"
	"github.com/relaybase/pgrestcore/internal/txexec"
	"github.com/relaybase/pgrestcore/pkg/pagination"
)

// Engine wires a schema cache, configuration, and transaction executor into
// one value capable of answering the full request/response cycle for every
// relation and routine the cache exposes.
type Engine struct {
	Cache    *catalog.Cache
	Config   *config.Config
	Executor *txexec.Executor
}

// NewEngine constructs an Engine.
func NewEngine(cache *catalog.Cache, cfg *config.Config, executor *txexec.Executor) *Engine {
	return &Engine{Cache: cache, Config: cfg, Executor: executor}
}

// ServeDb handles every request that reaches a `/{table}` or `/rpc/{fn}`
// route under GET/HEAD/POST/PATCH/PUT/DELETE: parse, plan, build, execute,
// render. OPTIONS requests on the same paths are routed to
// ServeResourceInfo instead, since dispatchAction never resolves them to ActionDb.
func (e *Engine) ServeDb(w http.ResponseWriter, r *http.Request) {
	body, err := requestutil.ReadBody(r)
	if err != nil {
		respond.Error(w, r, apperr.InvalidBody(err.Error()))
		return
	}

	req, err := apirequest.Parse(r, body, e.Config)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if req.Action != apirequest.ActionDb {
		respond.Error(w, r, apperr.Internal(nil))
		return
	}

	snapshot := e.Cache.Load()
	if snapshot == nil {
		respond.Error(w, r, apperr.SchemaCacheNotLoaded())
		return
	}

	planner := plan.NewPlanner(snapshot, plan.DefaultMaxDepth, e.Config.DBMaxRows)
	actionPlan, err := planner.Build(req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	sql, params, err := build.Build(actionPlan)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	claims := requestutil.Claims(r)

	mediaType := apirequest.PreferredMediaType(req.AcceptMediaTypes)
	if mediaType == apirequest.MediaPgrstPlan {
		planJSON, err := e.Executor.Explain(r.Context(), claims, sql, params)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		w.Header().Set(constants.HeaderContentType, apirequest.MediaPgrstPlan+"; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(planJSON)
		return
	}

	result, err := e.Executor.Execute(r.Context(), req, actionPlan, claims, snapshot.Timezones, sql, params)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if err := e.writeResult(w, req, actionPlan, result, mediaType); err != nil {
		respond.Error(w, r, err)
	}
}

// writeResult renders a completed Result against the three action shapes a
// DbActionPlan can take, per §6's response contract.
func (e *Engine) writeResult(w http.ResponseWriter, req *apirequest.ApiRequest, actionPlan *plan.DbActionPlan, result *txexec.Result, mediaType string) error {
	if applied := req.Preferences.PreferenceApplied(); applied != "" {
		w.Header().Set(constants.HeaderPreferenceApplied, applied)
	}
	applyResponseGUCHeaders(w, result.ResponseGUC)

	headersOnly := req.Db != nil && req.Db.HeadersOnly

	switch actionPlan.Kind {
	case plan.PlanRead:
		return e.writeReadResult(w, req, actionPlan, result, mediaType, headersOnly)
	case plan.PlanMutateRead:
		return e.writeMutateResult(w, req, actionPlan, result, mediaType, headersOnly)
	case plan.PlanCall:
		return e.writeCallResult(w, req, actionPlan, result, mediaType, headersOnly)
	default:
		return apperr.Internal(nil)
	}
}

func (e *Engine) writeReadResult(w http.ResponseWriter, req *apirequest.ApiRequest, actionPlan *plan.DbActionPlan, result *txexec.Result, mediaType string, headersOnly bool) error {
	offset := actionPlan.Read.Root.Range.Offset
	w.Header().Set(constants.HeaderContentRange, pagination.ContentRange(offset, len(result.Rows), result.Total))

	status := http.StatusOK
	if req.HasRangeHeader {
		if result.Total == nil || int64(offset+len(result.Rows)) < *result.Total {
			status = http.StatusPartialContent
		}
	}

	if s, ok := overrideStatus(result.ResponseGUC, status); ok {
		status = s
	}

	if mediaType == apirequest.MediaPgrstObject {
		switch len(result.Rows) {
		case 0:
			return apperr.Singularity(0)
		case 1:
			return writeBody(w, status, mediaType, headersOnly, result.Rows[0])
		default:
			return apperr.Singularity(len(result.Rows))
		}
	}

	return writeBody(w, status, mediaType, headersOnly, rowsOrEmpty(result.Rows))
}

func (e *Engine) writeMutateResult(w http.ResponseWriter, req *apirequest.ApiRequest, actionPlan *plan.DbActionPlan, result *txexec.Result, mediaType string, headersOnly bool) error {
	mp := actionPlan.Mutate

	if (req.Db.Mutation == apirequest.MutationCreate || req.Db.Mutation == apirequest.MutationSingleUpsert) && len(result.Rows) > 0 {
		if loc := buildLocation(mp.Target.Name, mp.PKCols, result.Rows[0]); loc != "" {
			w.Header().Set(constants.HeaderLocation, loc)
		}
	}

	status := defaultMutateStatus(req.Db.Mutation)
	if req.Preferences.Return != apirequest.ReturnRepresentation {
		if s, ok := overrideStatus(result.ResponseGUC, status); ok {
			status = s
		}
		w.WriteHeader(status)
		return nil
	}

	if s, ok := overrideStatus(result.ResponseGUC, http.StatusOK); ok {
		status = s
	} else {
		status = http.StatusOK
	}

	if mediaType == apirequest.MediaPgrstObject {
		switch len(result.Rows) {
		case 0:
			return apperr.Singularity(0)
		case 1:
			return writeBody(w, status, mediaType, headersOnly, result.Rows[0])
		default:
			return apperr.Singularity(len(result.Rows))
		}
	}
	return writeBody(w, status, mediaType, headersOnly, rowsOrEmpty(result.Rows))
}

func (e *Engine) writeCallResult(w http.ResponseWriter, req *apirequest.ApiRequest, actionPlan *plan.DbActionPlan, result *txexec.Result, mediaType string, headersOnly bool) error {
	status := http.StatusOK
	if s, ok := overrideStatus(result.ResponseGUC, status); ok {
		status = s
	}

	cp := actionPlan.Call
	if cp.ReturnsScalar && actionPlan.CallRead == nil {
		if len(result.Rows) == 0 {
			return writeBody(w, status, mediaType, headersOnly, nil)
		}
		return writeBody(w, status, mediaType, headersOnly, result.Rows[0][cp.Routine.Name])
	}

	if mediaType == apirequest.MediaPgrstObject {
		switch len(result.Rows) {
		case 0:
			return apperr.Singularity(0)
		case 1:
			return writeBody(w, status, mediaType, headersOnly, result.Rows[0])
		default:
			return apperr.Singularity(len(result.Rows))
		}
	}
	return writeBody(w, status, mediaType, headersOnly, rowsOrEmpty(result.Rows))
}

// writeBody renders payload according to mediaType. CSV rendering only
// applies to a slice of row maps; any other payload shape (a singular
// object, a scalar RPC return) always renders as JSON regardless of the
// negotiated media type, since a scalar or single object has no tabular
// shape to flatten into columns.
func writeBody(w http.ResponseWriter, status int, mediaType string, headersOnly bool, payload any) error {
	if headersOnly {
		w.WriteHeader(status)
		return nil
	}

	if mediaType == apirequest.MediaCSV {
		if rows, ok := payload.([]map[string]any); ok {
			return writeCSV(w, status, rows)
		}
	}

	if mediaType == apirequest.MediaPgrstArray {
		if rows, ok := payload.([]map[string]any); ok {
			payload = stripNulls(rows)
		}
	}

	if payload == nil {
		respond.NoContent(w)
		return nil
	}

	w.Header().Set(constants.HeaderContentType, resolveContentType(mediaType))
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

func resolveContentType(mediaType string) string {
	switch mediaType {
	case apirequest.MediaPgrstObject, apirequest.MediaPgrstArray:
		return apirequest.MediaJSON + "; charset=utf-8"
	case "":
		return apirequest.MediaJSON + "; charset=utf-8"
	default:
		return mediaType + "; charset=utf-8"
	}
}

// writeCSV renders rows as RFC 4180 CSV. The columns are the first row's
// keys in map iteration order, so the column order is not fixed from one
// response to the next; a key missing from a later row is rendered empty,
// and a key that only later rows carry is not written.
func writeCSV(w http.ResponseWriter, status int, rows []map[string]any) error {
	w.Header().Set(constants.HeaderContentType, apirequest.MediaCSV+"; charset=utf-8")
	w.WriteHeader(status)

	if len(rows) == 0 {
		return nil
	}

	cols := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		cols = append(cols, k)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return nil
	}
	for _, row := range rows {
		record := make([]string, len(cols))
		for i, c := range cols {
			record[i] = csvCell(row[c])
		}
		if err := cw.Write(record); err != nil {
			return nil
		}
	}
	cw.Flush()
	return nil
}

func csvCell(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// stripNulls drops null-valued keys from every row, per
// `application/vnd.pgrst.array+json`'s media-type contract.
func stripNulls(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		clean := make(map[string]any, len(row))
		for k, v := range row {
			if v != nil {
				clean[k] = v
			}
		}
		out[i] = clean
	}
	return out
}

func rowsOrEmpty(rows []map[string]any) []map[string]any {
	if rows == nil {
		return []map[string]any{}
	}
	return rows
}

// buildLocation renders the `Location` header for an insert/upsert, naming
// the created row by an `eq.` filter over its primary key column(s).
func buildLocation(table string, pkCols []string, row map[string]any) string {
	if len(pkCols) == 0 {
		return ""
	}
	var parts []string
	for _, pk := range pkCols {
		v, ok := row[pk]
		if !ok {
			return ""
		}
		parts = append(parts, pk+"=eq."+url.QueryEscape(formatScalar(v)))
	}
	return "/" + table + "?" + strings.Join(parts, "&")
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	}
}

func defaultMutateStatus(m apirequest.Mutation) int {
	switch m {
	case apirequest.MutationCreate, apirequest.MutationSingleUpsert:
		return http.StatusCreated
	default:
		return http.StatusNoContent
	}
}

// overrideStatus applies the `response.status` GUC a pre-request hook or
// routine may have set via set_config, per §4.6's response override step.
func overrideStatus(guc map[string]string, fallback int) (int, bool) {
	raw, ok := guc["status"]
	if !ok {
		return fallback, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback, false
	}
	return n, true
}

// applyResponseGUCHeaders copies the `response.headers` GUC (a JSON array
// of {name, value} objects, matching PostgREST's own convention) onto the
// response writer.
func applyResponseGUCHeaders(w http.ResponseWriter, guc map[string]string) {
	raw, ok := guc["headers"]
	if !ok || raw == "" {
		return
	}
	var pairs []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return
	}
	for _, p := range pairs {
		if p.Name != "" {
			w.Header().Set(p.Name, p.Value)
		}
	}
}
