// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybase/pgrestcore/internal/catalog"
	"github.com/relaybase/pgrestcore/internal/platform/apperr"
)

func usersOrdersShipmentsCache() *catalog.SchemaCache {
	users := catalog.Table{
		Schema: "public", Name: "users", Insertable: true, Updatable: true, Deletable: true,
		PKCols: []string{"id"},
		Columns: []catalog.Column{
			{Name: "id", DataType: "integer", IsPK: true},
			{Name: "name", DataType: "text"},
		},
	}
	orders := catalog.Table{
		Schema: "public", Name: "orders", Insertable: true,
		PKCols: []string{"id"},
		Columns: []catalog.Column{
			{Name: "id", DataType: "integer", IsPK: true},
			{Name: "user_id", DataType: "integer"},
			{Name: "biller_id", DataType: "integer"},
		},
	}

	o2m := catalog.Relationship{
		Table: users.QI(), ForeignTable: orders.QI(), Cardinality: catalog.CardO2M,
		ConstraintName: "orders_user_id_fkey", SrcCols: []string{"id"}, TgtCols: []string{"user_id"},
	}
	// A second relationship to the same foreign table, to exercise ambiguity + !hint.
	o2mBiller := catalog.Relationship{
		Table: users.QI(), ForeignTable: orders.QI(), Cardinality: catalog.CardO2M,
		ConstraintName: "orders_biller_id_fkey", SrcCols: []string{"id"}, TgtCols: []string{"biller_id"},
	}

	return catalog.NewSchemaCache(
		[]string{"public"},
		[]catalog.Table{users, orders},
		nil,
		[]catalog.Relationship{o2m, o2mBiller},
		[]string{"UTC", "America/New_York"},
	)
}

func TestRequireTable_FoundAndNotFound(t *testing.T) {
	c := usersOrdersShipmentsCache()

	tbl, err := c.RequireTable("public", "users")
	require.NoError(t, err)
	assert.Equal(t, "users", tbl.Name)
	assert.ElementsMatch(t, []string{"id"}, tbl.PKCols)

	_, err = c.RequireTable("public", "nope")
	require.Error(t, err)
	var appErr *apperr.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PGRST304", appErr.Code)
}

func TestFindRelationship_AmbiguousRequiresHint(t *testing.T) {
	c := usersOrdersShipmentsCache()

	_, err := c.FindRelationship("public", "users", "orders", "")
	require.Error(t, err)
	var appErr *apperr.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PGRST201", appErr.Code)

	rel, err := c.FindRelationship("public", "users", "orders", "orders_biller_id_fkey")
	require.NoError(t, err)
	assert.Equal(t, []string{"biller_id"}, rel.TgtCols)
}

func TestFindRelationship_NotFound(t *testing.T) {
	c := usersOrdersShipmentsCache()
	_, err := c.FindRelationship("public", "users", "widgets", "")
	require.Error(t, err)
	var appErr *apperr.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PGRST200", appErr.Code)
}

func TestRelationship_ToMany(t *testing.T) {
	assert.True(t, catalog.Relationship{Cardinality: catalog.CardO2M}.ToMany())
	assert.True(t, catalog.Relationship{Cardinality: catalog.CardO2OParent}.ToMany())
	assert.True(t, catalog.Relationship{Cardinality: catalog.CardM2M}.ToMany())
	assert.False(t, catalog.Relationship{Cardinality: catalog.CardM2O}.ToMany())
	assert.False(t, catalog.Relationship{Cardinality: catalog.CardO2OChild}.ToMany())
}

func TestRoutine_Callable(t *testing.T) {
	assert.True(t, catalog.Routine{Volatility: catalog.Immutable}.Callable())
	assert.True(t, catalog.Routine{Volatility: catalog.Stable}.Callable())
	assert.False(t, catalog.Routine{Volatility: catalog.Volatile}.Callable())
}

func TestCache_SwapIsAtomicAndReadable(t *testing.T) {
	var c catalog.Cache
	assert.Nil(t, c.Load())

	snap := usersOrdersShipmentsCache()
	c.Swap(snap)
	assert.Same(t, snap, c.Load())

	next := catalog.NewSchemaCache([]string{"public"}, nil, nil, nil, nil)
	c.Swap(next)
	assert.Same(t, next, c.Load())
}

func TestAllTablesAndRoutines_SortedAndScopedBySchema(t *testing.T) {
	tables := catalog.Table{Schema: "public", Name: "users"}
	routines := []catalog.Routine{
		{Schema: "public", Name: "add", Params: []catalog.RoutineParam{{Name: "a"}, {Name: "b"}}},
		{Schema: "public", Name: "add", Params: []catalog.RoutineParam{{Name: "a"}}},
		{Schema: "public", Name: "archive_user"},
	}
	c := catalog.NewSchemaCache([]string{"public"}, []catalog.Table{tables}, routines, nil, nil)

	all := c.AllTables("public")
	require.Len(t, all, 1)
	assert.Equal(t, "users", all[0].Name)
	assert.Empty(t, c.AllTables("other"))

	allRoutines := c.AllRoutines("public")
	require.Len(t, allRoutines, 3)
	assert.Equal(t, "add", allRoutines[0].Name)
	assert.Len(t, allRoutines[0].Params, 1) // fewer params sorts first within same name
	assert.Equal(t, "add", allRoutines[1].Name)
	assert.Len(t, allRoutines[1].Params, 2)
	assert.Equal(t, "archive_user", allRoutines[2].Name)
}
