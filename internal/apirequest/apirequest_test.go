// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apirequest_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybase/pgrestcore/internal/apirequest"
)

type fakeSchemaConfig struct {
	def     string
	exposed map[string]bool
}

func (c fakeSchemaConfig) DefaultSchema() string { return c.def }
func (c fakeSchemaConfig) SchemaExposed(schema string) bool { return c.exposed[schema] }

func newFakeConfig() fakeSchemaConfig {
	return fakeSchemaConfig{def: "public", exposed: map[string]bool{"public": true, "alt": true}}
}

func TestParse_SimpleRead(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/users?select=id,name&age=gte.18&order=id.asc&limit=2", nil)
	parsed, err := apirequest.Parse(req, nil, newFakeConfig())
	require.NoError(t, err)

	assert.Equal(t, apirequest.ActionDb, parsed.Action)
	require.NotNil(t, parsed.Db)
	assert.Equal(t, apirequest.DbRelationRead, parsed.Db.Kind)
	assert.Equal(t, "users", parsed.Db.QI.Name)
	require.Len(t, parsed.Query.Select, 2)
	assert.Equal(t, "id", parsed.Query.Select[0].Name)
	require.Len(t, parsed.Query.Filters, 1)
	assert.Equal(t, apirequest.OpGte, parsed.Query.Filters[0].Op)
	assert.Equal(t, "18", parsed.Query.Filters[0].Operand)
	limit := parsed.Query.Ranges[""].Limit
	require.NotNil(t, limit)
	assert.Equal(t, 2, *limit)
}

func TestParse_InFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/users?id=in.(1,2,3)&deleted_at=is.null", nil)
	parsed, err := apirequest.Parse(req, nil, newFakeConfig())
	require.NoError(t, err)
	require.Len(t, parsed.Query.Filters, 2)

	byField := map[string]apirequest.Filter{}
	for _, f := range parsed.Query.Filters {
		byField[f.Field] = f
	}
	assert.Equal(t, apirequest.OpIn, byField["id"].Op)
	assert.Equal(t, []string{"1", "2", "3"}, byField["id"].List)
	assert.Equal(t, apirequest.OpIs, byField["deleted_at"].Op)
	assert.Equal(t, "null", byField["deleted_at"].Operand)
}

func TestParse_NestedSelectEmbedding(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/users?select=id,orders(total)", nil)
	parsed, err := apirequest.Parse(req, nil, newFakeConfig())
	require.NoError(t, err)
	require.Len(t, parsed.Query.Select, 2)
	rel := parsed.Query.Select[1]
	assert.Equal(t, apirequest.SelectRelation, rel.Kind)
	assert.Equal(t, "orders", rel.Name)
	require.Len(t, rel.Children, 1)
	assert.Equal(t, "total", rel.Children[0].Name)
}

func TestParse_AliasedRelationEmbedding(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/books?select=title,author:writer(name)", nil)
	parsed, err := apirequest.Parse(req, nil, newFakeConfig())
	require.NoError(t, err)
	require.Len(t, parsed.Query.Select, 2)
	rel := parsed.Query.Select[1]
	assert.Equal(t, apirequest.SelectRelation, rel.Kind)
	assert.Equal(t, "author", rel.Name)
	assert.Equal(t, "writer", rel.Alias)
	require.Len(t, rel.Children, 1)
	assert.Equal(t, "name", rel.Children[0].Name)
}

func TestParse_AliasedRelationEmbeddingWithHint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/books?select=author:writer!author_fkey(name)", nil)
	parsed, err := apirequest.Parse(req, nil, newFakeConfig())
	require.NoError(t, err)
	require.Len(t, parsed.Query.Select, 1)
	rel := parsed.Query.Select[0]
	assert.Equal(t, apirequest.SelectRelation, rel.Kind)
	assert.Equal(t, "author", rel.Name)
	assert.Equal(t, "writer", rel.Alias)
	assert.Equal(t, "author_fkey", rel.Hint)
}

func TestParse_MethodResourceMatrix(t *testing.T) {
	cases := []struct {
		method string
		path   string
		action apirequest.Action
	}{
		{http.MethodGet, "/", apirequest.ActionDb},
		{http.MethodOptions, "/", apirequest.ActionSchemaInfo},
		{http.MethodGet, "/rpc/my_fn", apirequest.ActionDb},
		{http.MethodPost, "/rpc/my_fn", apirequest.ActionDb},
		{http.MethodOptions, "/rpc/my_fn", apirequest.ActionRoutineInfo},
		{http.MethodPatch, "/users", apirequest.ActionDb},
		{http.MethodOptions, "/users", apirequest.ActionRelationInfo},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		parsed, err := apirequest.Parse(req, nil, newFakeConfig())
		require.NoError(t, err, "%s %s", tc.method, tc.path)
		assert.Equal(t, tc.action, parsed.Action, "%s %s", tc.method, tc.path)
	}
}

func TestParse_UnsupportedMethod(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/rpc/my_fn", nil)
	_, err := apirequest.Parse(req, nil, newFakeConfig())
	require.Error(t, err)
}

func TestParse_PreferencesRoundTrip(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/users", nil)
	req.Header.Set("Prefer", "return=representation, count=exact, tx=rollback, bogus=xyz")
	parsed, err := apirequest.Parse(req, nil, newFakeConfig())
	require.NoError(t, err)
	assert.Equal(t, apirequest.ReturnRepresentation, parsed.Preferences.Return)
	assert.Equal(t, apirequest.CountExact, parsed.Preferences.Count)
	assert.Equal(t, apirequest.TxRollback, parsed.Preferences.Tx)
	assert.Contains(t, parsed.Preferences.Invalid, "bogus=xyz")
}

func TestParse_UnacceptableSchema(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Accept-Profile", "nope")
	_, err := apirequest.Parse(req, nil, newFakeConfig())
	require.Error(t, err)
}

func TestParse_CanonicalFormIsOrderIndependent(t *testing.T) {
	req1 := httptest.NewRequest(http.MethodGet, "/users?age=gte.18&name=eq.Bob", nil)
	req2 := httptest.NewRequest(http.MethodGet, "/users?name=eq.Bob&age=gte.18", nil)
	p1, err := apirequest.Parse(req1, nil, newFakeConfig())
	require.NoError(t, err)
	p2, err := apirequest.Parse(req2, nil, newFakeConfig())
	require.NoError(t, err)
	assert.Equal(t, p1.Query.Canonical, p2.Query.Canonical)
}

func TestParse_AndOrLogicTree(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/users?or=(age.lt.18,age.gt.65)", nil)
	parsed, err := apirequest.Parse(req, nil, newFakeConfig())
	require.NoError(t, err)
	require.Len(t, parsed.Query.Logic, 1)
	node := parsed.Query.Logic[0]
	assert.Equal(t, apirequest.LogicOr, node.Op)
	require.Len(t, node.Children, 2)
}

func TestParse_InsertBodyKeys(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/users", nil)
	req.Header.Set("Content-Type", "application/json")
	parsed, err := apirequest.Parse(req, []byte(`{"name":"Alice","age":30}`), newFakeConfig())
	require.NoError(t, err)
	require.NotNil(t, parsed.Payload)
	assert.ElementsMatch(t, []string{"name", "age"}, parsed.Payload.Keys)
}
