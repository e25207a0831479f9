// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package build_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybase/pgrestcore/internal/apirequest"
	"github.com/relaybase/pgrestcore/internal/build"
	"github.com/relaybase/pgrestcore/internal/catalog"
	"github.com/relaybase/pgrestcore/internal/plan"
)

type fakeConfig struct{}

func (fakeConfig) DefaultSchema() string            { return "public" }
func (fakeConfig) SchemaExposed(schema string) bool { return schema == "public" }

func usersOrdersCache() *catalog.SchemaCache {
	users := catalog.Table{
		Schema: "public", Name: "users", Insertable: true, Updatable: true, Deletable: true,
		PKCols: []string{"id"},
		Columns: []catalog.Column{
			{Name: "id", DataType: "integer", IsPK: true},
			{Name: "name", DataType: "text"},
			{Name: "age", DataType: "integer"},
			{Name: "deleted_at", DataType: "timestamp with time zone", Nullable: true},
		},
	}
	orders := catalog.Table{
		Schema: "public", Name: "orders", Insertable: true, Updatable: true, Deletable: true,
		PKCols: []string{"id"},
		Columns: []catalog.Column{
			{Name: "id", DataType: "integer", IsPK: true},
			{Name: "user_id", DataType: "integer"},
			{Name: "total", DataType: "numeric"},
		},
	}
	rel := catalog.Relationship{
		Table:        users.QI(),
		ForeignTable: orders.QI(),
		Cardinality:  catalog.CardO2M,
		SrcCols:      []string{"id"},
		TgtCols:      []string{"user_id"},
	}
	return catalog.NewSchemaCache([]string{"public"}, []catalog.Table{users, orders}, nil, []catalog.Relationship{rel}, nil)
}

func buildFromRequest(t *testing.T, method, target string, body []byte, prefer string) (string, int) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	var payload []byte
	if body != nil {
		payload = body
	}
	parsed, err := apirequest.Parse(req, payload, fakeConfig{})
	require.NoError(t, err)

	p := plan.NewPlanner(usersOrdersCache(), 0, 0)
	dbPlan, err := p.Build(parsed)
	require.NoError(t, err)

	sql, params, err := build.Build(dbPlan)
	require.NoError(t, err)
	return sql, len(params)
}

func TestBuildSimpleSelect(t *testing.T) {
	sql, _ := buildFromRequest(t, http.MethodGet, "/users?select=id,name&age=gt.18", nil, "")
	assert.Contains(t, sql, `SELECT "users"."id", "users"."name"`)
	assert.Contains(t, sql, `FROM "public"."users" AS "users"`)
	assert.Contains(t, sql, `WHERE "users"."age" > $1::integer`)
}

func TestBuildEmbeddedSelect(t *testing.T) {
	sql, n := buildFromRequest(t, http.MethodGet, "/users?select=id,orders(id,total)", nil, "")
	assert.Contains(t, sql, `COALESCE(json_agg(row_to_json(_sub)), '[]'::json)`)
	assert.Contains(t, sql, `"orders"."user_id" = "users"."id"`)
	assert.Equal(t, 0, n)
}

func TestBuildInsertUsesJSONPopulateRecordset(t *testing.T) {
	sql, n := buildFromRequest(t, http.MethodPost, "/users", []byte(`{"name":"ann","age":30}`), "return=representation")
	assert.Contains(t, sql, "json_populate_recordset(NULL::")
	assert.Contains(t, sql, `INSERT INTO "public"."users"`)
	assert.Contains(t, sql, "RETURNING")
	assert.Equal(t, 1, n)
}

func TestBuildUpdateExtractsFromSingleJSONParam(t *testing.T) {
	sql, n := buildFromRequest(t, http.MethodPatch, "/users?id=eq.1", []byte(`{"name":"bob"}`), "")
	assert.Contains(t, sql, `"name" = ($1::json->>'name')::text`)
	assert.Contains(t, sql, `WHERE "id" = $2::integer`)
	assert.Equal(t, 2, n)
}

func TestBuildDeleteRendersWhere(t *testing.T) {
	sql, _ := buildFromRequest(t, http.MethodDelete, "/users?id=eq.1", nil, "")
	assert.Contains(t, sql, `DELETE FROM "public"."users"`)
	assert.Contains(t, sql, `WHERE "id" = $1::integer`)
}

func TestBuildInFilterCastsEveryElement(t *testing.T) {
	sql, n := buildFromRequest(t, http.MethodGet, "/users?id=in.(1,2,3)", nil, "")
	assert.Contains(t, sql, `"users"."id" IN ($1::integer, $2::integer, $3::integer)`)
	assert.Equal(t, 3, n)
}
