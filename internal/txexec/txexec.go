// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package txexec runs one planned, built statement inside the per-request
transaction envelope: role switch, claim propagation, the optional
pre-request hook, the statement itself, and a commit/rollback decision
driven by Prefer: tx= and the max-affected guard.

Because internal/build already fuses a mutation or routine call together
with its read projection into one CTE-wrapped statement, this package only
ever issues one query for the main action plus, optionally, a second query
to satisfy Prefer: count=.
*/
package txexec

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaybase/pgrestcore/internal/apirequest"
	"github.com/relaybase/pgrestcore/internal/build"
	"github.com/relaybase/pgrestcore/internal/ident"
	"github.com/relaybase/pgrestcore/internal/plan"
	"github.com/relaybase/pgrestcore/internal/platform/apperr"
	"github.com/relaybase/pgrestcore/internal/platform/dberr"
	"github.com/relaybase/pgrestcore/internal/platform/sec"
)

// Executor dispatches built statements against a pool, one transaction per
// request.
type Executor struct {
	Pool       *pgxpool.Pool
	AnonRole   string // role assumed when no JWT (or no role claim) is present
	PreRequest string // schema-qualified routine invoked at the start of every transaction; empty disables the hook
}

// NewExecutor constructs an Executor.
func NewExecutor(pool *pgxpool.Pool, anonRole, preRequest string) *Executor {
	return &Executor{Pool: pool, AnonRole: anonRole, PreRequest: preRequest}
}

// Result is what the API layer needs to render a response.
type Result struct {
	Rows         []map[string]any
	RowsAffected int64
	Total        *int64            // exact/planned/estimated row count, nil unless Prefer: count= was honored
	ResponseGUC  map[string]string // "status"/"headers", as set by a routine or the pre-request hook
}

// Execute runs sql/params for actionPlan inside one transaction.
func (e *Executor) Execute(
	ctx context.Context,
	req *apirequest.ApiRequest,
	actionPlan *plan.DbActionPlan,
	claims *sec.AuthClaims,
	validTimezones map[string]struct{},
	sql string,
	params []ident.SqlParam,
) (*Result, error) {
	conn, err := e.Pool.Acquire(ctx)
	if err != nil {
		return nil, apperr.ConnectionPool()
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	defer tx.Rollback(ctx)

	if err := e.setRole(ctx, tx, claims); err != nil {
		return nil, err
	}
	if err := e.propagateClaims(ctx, tx, claims); err != nil {
		return nil, err
	}
	if err := e.propagateRequestContext(ctx, tx, req); err != nil {
		return nil, err
	}

	if tz := req.Preferences.Timezone; tz != "" {
		if _, ok := validTimezones[tz]; !ok {
			return nil, apperr.InvalidHeader("unknown timezone: " + tz)
		}
		if _, err := tx.Exec(ctx, "SET LOCAL TIMEZONE TO "+quoteLiteral(tz)); err != nil {
			return nil, dberr.Wrap(err)
		}
	}

	if e.PreRequest != "" {
		if _, err := tx.Exec(ctx, "SELECT "+e.PreRequest+"()"); err != nil {
			return nil, dberr.Wrap(err)
		}
	}

	rows, err := tx.Query(ctx, sql, bindArgs(params)...)
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	mapped, err := collectRows(rows)
	if err != nil {
		return nil, dberr.Wrap(err)
	}

	result := &Result{Rows: mapped, RowsAffected: int64(len(mapped))}

	if max := req.Preferences.MaxAffected; max != nil && actionPlan.Kind != plan.PlanRead && result.RowsAffected > *max {
		return nil, apperr.MaxAffectedExceeded(*max, result.RowsAffected)
	}

	guc, err := readResponseGUCs(ctx, tx)
	if err != nil {
		return nil, err
	}
	result.ResponseGUC = guc

	if actionPlan.Kind == plan.PlanRead && req.Preferences.Count != apirequest.CountNone {
		total, err := e.count(ctx, tx, actionPlan, req.Preferences.Count)
		if err != nil {
			return nil, err
		}
		result.Total = total
	}

	if req.Preferences.Tx == apirequest.TxRollback {
		if err := tx.Rollback(ctx); err != nil {
			return nil, dberr.Wrap(err)
		}
		return result, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, dberr.Wrap(err)
	}
	return result, nil
}

// Explain renders sql's `EXPLAIN (FORMAT JSON)` plan instead of running it,
// for `Accept: application/vnd.pgrst.plan+json`. The role and claims are
// still assumed so the plan reflects the policies an actual execution would
// see, but the transaction is always rolled back.
func (e *Executor) Explain(ctx context.Context, claims *sec.AuthClaims, sql string, params []ident.SqlParam) ([]byte, error) {
	conn, err := e.Pool.Acquire(ctx)
	if err != nil {
		return nil, apperr.ConnectionPool()
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	defer tx.Rollback(ctx)

	if err := e.setRole(ctx, tx, claims); err != nil {
		return nil, err
	}
	if err := e.propagateClaims(ctx, tx, claims); err != nil {
		return nil, err
	}

	var planJSON []byte
	if err := tx.QueryRow(ctx, "EXPLAIN (FORMAT JSON) "+sql, bindArgs(params)...).Scan(&planJSON); err != nil {
		return nil, dberr.Wrap(err)
	}
	return planJSON, nil
}

// setRole assumes the resolved claim role, falling back to the anonymous
// role when the request carries no JWT or the JWT has no role claim.
func (e *Executor) setRole(ctx context.Context, tx pgx.Tx, claims *sec.AuthClaims) error {
	role := e.AnonRole
	if claims != nil && claims.Role != "" {
		role = claims.Role
	}
	if _, err := tx.Exec(ctx, "SET LOCAL ROLE "+ident.EscapeIdent(role)); err != nil {
		return dberr.Wrap(err)
	}
	return nil
}

// propagateClaims exposes every verified JWT claim to row-level security
// policies as `request.jwt.claims.<key>`, set for this transaction only.
func (e *Executor) propagateClaims(ctx context.Context, tx pgx.Tx, claims *sec.AuthClaims) error {
	if claims == nil {
		return nil
	}
	flat := claims.FlattenClaims()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.Exec(ctx, "SELECT set_config($1, $2, true)", "request.jwt.claims."+k, flat[k]); err != nil {
			return dberr.Wrap(err)
		}
	}
	return nil
}

// propagateRequestContext exposes the request's headers and cookies as
// GUCs so a routine invoked within the transaction can inspect them.
func (e *Executor) propagateRequestContext(ctx context.Context, tx pgx.Tx, req *apirequest.ApiRequest) error {
	if len(req.Headers) > 0 {
		flat := make(map[string]string, len(req.Headers))
		for k, v := range req.Headers {
			if len(v) > 0 {
				flat[k] = v[0]
			}
		}
		b, err := json.Marshal(flat)
		if err == nil {
			if _, err := tx.Exec(ctx, "SELECT set_config('request.headers', $1, true)", string(b)); err != nil {
				return dberr.Wrap(err)
			}
		}
	}
	if len(req.Cookies) > 0 {
		b, err := json.Marshal(req.Cookies)
		if err == nil {
			if _, err := tx.Exec(ctx, "SELECT set_config('request.cookies', $1, true)", string(b)); err != nil {
				return dberr.Wrap(err)
			}
		}
	}
	return nil
}

// readResponseGUCs reads response.status/response.headers, the GUCs a
// pre-request hook or the main routine may set to override the default
// response.
func readResponseGUCs(ctx context.Context, tx pgx.Tx) (map[string]string, error) {
	var status, headers *string
	err := tx.QueryRow(ctx, "SELECT current_setting('response.status', true), current_setting('response.headers', true)").
		Scan(&status, &headers)
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	out := make(map[string]string, 2)
	if status != nil && *status != "" {
		out["status"] = *status
	}
	if headers != nil && *headers != "" {
		out["headers"] = *headers
	}
	return out, nil
}

// count satisfies Prefer: count=. Exact materializes the filtered count;
// planned/estimated ask the query planner for its row estimate via EXPLAIN
// instead, trading precision for a statement that never scans the result.
func (e *Executor) count(ctx context.Context, tx pgx.Tx, p *plan.DbActionPlan, pref apirequest.CountPref) (*int64, error) {
	sql, params, err := build.BuildCount(p)
	if err != nil {
		return nil, err
	}
	args := bindArgs(params)

	if pref == apirequest.CountExact {
		var total int64
		if err := tx.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
			return nil, dberr.Wrap(err)
		}
		return &total, nil
	}

	var planJSON []byte
	if err := tx.QueryRow(ctx, "EXPLAIN (FORMAT JSON) "+sql, args...).Scan(&planJSON); err != nil {
		return nil, dberr.Wrap(err)
	}
	estimate, err := parsePlanRows(planJSON)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &estimate, nil
}

// parsePlanRows extracts the top node's "Plan Rows" estimate from an
// EXPLAIN (FORMAT JSON) result.
func parsePlanRows(raw []byte) (int64, error) {
	var nodes []struct {
		Plan struct {
			PlanRows float64 `json:"Plan Rows"`
		} `json:"Plan"`
	}
	if err := json.Unmarshal(raw, &nodes); err != nil || len(nodes) == 0 {
		return 0, fmt.Errorf("txexec: could not parse query plan: %w", err)
	}
	return int64(nodes[0].Plan.PlanRows), nil
}

func quoteLiteral(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	out = append(out, '\'')
	return string(out)
}
