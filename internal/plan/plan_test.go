// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package plan_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybase/pgrestcore/internal/apirequest"
	"github.com/relaybase/pgrestcore/internal/catalog"
	"github.com/relaybase/pgrestcore/internal/plan"
)

type fakeConfig struct{}

func (fakeConfig) DefaultSchema() string              { return "public" }
func (fakeConfig) SchemaExposed(schema string) bool    { return schema == "public" }

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
		Schema: "public", Name: "orders", Insertable: true,
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

func parseAndPlan(t *testing.T, method, target string, p *plan.Planner) *plan.DbActionPlan {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	parsed, err := apirequest.Parse(req, nil, fakeConfig{})
	require.NoError(t, err)
	out, err := p.Build(parsed)
	require.NoError(t, err)
	return out
}

func TestBuildReadPlan_S1(t *testing.T) {
	p := plan.NewPlanner(usersOrdersCache(), 0, 0)
	out := parseAndPlan(t, http.MethodGet, "/users?select=id,name&age=gte.18&order=id.asc&limit=2", p)
	require.Equal(t, plan.PlanRead, out.Kind)
	root := out.Read.Root
	require.Len(t, root.Select, 2)
	require.Len(t, root.Where, 1)
	assert.Equal(t, "age", root.Where[0].Leaf.Field)
	assert.Equal(t, apirequest.OpGte, root.Where[0].Leaf.Op)
	require.Len(t, root.Order, 1)
	assert.Equal(t, "id", root.Order[0].Field)
	require.NotNil(t, root.Range.Limit)
	assert.Equal(t, 2, *root.Range.Limit)
}

func TestBuildReadPlan_S6Embedding(t *testing.T) {
	p := plan.NewPlanner(usersOrdersCache(), 0, 0)
	out := parseAndPlan(t, http.MethodGet, "/users?select=id,orders(total)", p)
	require.Equal(t, plan.PlanRead, out.Kind)
	require.Len(t, out.Read.Children, 1)
	child := out.Read.Children[0]
	assert.Equal(t, "orders", child.Root.RelName)
	assert.True(t, child.Root.From.Name == "orders")
	assert.False(t, child.Root.RelToParent) // O2M renders as array
	require.Len(t, child.Root.Select, 1)
	assert.Equal(t, "total", child.Root.Select[0].Name)
}

func TestBuildReadPlan_UnknownColumn(t *testing.T) {
	p := plan.NewPlanner(usersOrdersCache(), 0, 0)
	req := httptest.NewRequest(http.MethodGet, "/users?select=nope", nil)
	parsed, err := apirequest.Parse(req, nil, fakeConfig{})
	require.NoError(t, err)
	_, err = p.Build(parsed)
	require.Error(t, err)
}

func TestBuildMutatePlan_Insert(t *testing.T) {
	p := plan.NewPlanner(usersOrdersCache(), 0, 0)
	req := httptest.NewRequest(http.MethodPost, "/users", nil)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")
	parsed, err := apirequest.Parse(req, []byte(`{"name":"Alice","age":30}`), fakeConfig{})
	require.NoError(t, err)
	out, err := p.Build(parsed)
	require.NoError(t, err)
	require.Equal(t, plan.PlanMutateRead, out.Kind)
	assert.ElementsMatch(t, []string{"name", "age"}, out.Mutate.Columns)
	require.NotNil(t, out.Read)
}

func TestBuildCallPlan_SingleJSONParamBindsWholeBody(t *testing.T) {
	routine := catalog.Routine{
		Schema: "public", Name: "import_order", IsProcedure: true,
		Params:     []catalog.RoutineParam{{Name: "payload", DataType: "jsonb"}},
		ReturnKind: catalog.ReturnVoid,
	}
	cache := catalog.NewSchemaCache([]string{"public"}, nil, []catalog.Routine{routine}, nil, nil)
	p := plan.NewPlanner(cache, 0, 0)

	req := httptest.NewRequest(http.MethodPost, "/rpc/import_order", nil)
	req.Header.Set("Content-Type", "application/json")
	parsed, err := apirequest.Parse(req, []byte(`{"id":1,"total":30}`), fakeConfig{})
	require.NoError(t, err)

	out, err := p.Build(parsed)
	require.NoError(t, err)
	require.Equal(t, plan.PlanCall, out.Kind)
	assert.Equal(t, plan.CallParamsSingleObject, out.Call.ParamMode)
	assert.Equal(t, `{"id":1,"total":30}`, out.Call.NamedArgs["payload"])
}

func TestBuildMutatePlan_DeleteWithFilter(t *testing.T) {
	p := plan.NewPlanner(usersOrdersCache(), 0, 0)
	req := httptest.NewRequest(http.MethodDelete, "/users?id=eq.7", nil)
	parsed, err := apirequest.Parse(req, nil, fakeConfig{})
	require.NoError(t, err)
	out, err := p.Build(parsed)
	require.NoError(t, err)
	require.Equal(t, plan.MutateDelete, out.Mutate.Kind)
	require.Len(t, out.Mutate.Where, 1)
	assert.Equal(t, "id", out.Mutate.Where[0].Leaf.Field)
}
