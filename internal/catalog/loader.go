// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaybase/pgrestcore/internal/platform/apperr"
)

// # Introspection Queries

// tablesQuery lists base tables and views exposed by the given schemas,
// together with each relation's comment. Per-column detail is loaded
// separately by columnsQuery so the two scans stay simple.
const tablesQuery = `
SELECT
	t.table_schema,
	t.table_name,
	t.table_type = 'VIEW' AS is_view,
	obj_description(
		(quote_ident(t.table_schema) || '.' || quote_ident(t.table_name))::regclass, 'pg_class'
	) AS table_comment
FROM information_schema.tables t
WHERE t.table_schema = ANY($1)
ORDER BY t.table_schema, t.table_name
`

// columnsQuery lists every column of every relation in the given schemas,
// including the enum labels for a user-defined enum column, which are
// stored on Column.EnumValues; request values are not checked against them.
const columnsQuery = `
SELECT
	c.table_schema,
	c.table_name,
	c.column_name,
	c.data_type,
	CASE WHEN c.data_type = 'USER-DEFINED' THEN c.udt_name ELSE c.data_type END AS nominal_type,
	c.is_nullable = 'YES' AS nullable,
	c.column_default,
	c.ordinal_position,
	c.character_maximum_length,
	col_description(
		(quote_ident(c.table_schema) || '.' || quote_ident(c.table_name))::regclass,
		c.ordinal_position
	) AS column_comment,
	COALESCE(
		(SELECT array_agg(e.enumlabel ORDER BY e.enumsortorder)
		 FROM pg_type t
		 JOIN pg_enum e ON e.enumtypid = t.oid
		 WHERE t.typname = c.udt_name),
		ARRAY[]::text[]
	) AS enum_values
FROM information_schema.columns c
WHERE c.table_schema = ANY($1)
ORDER BY c.table_schema, c.table_name, c.ordinal_position
`

// pkQuery lists the primary key columns of every table in the given
// schemas, in their declared key_column_usage order.
const pkQuery = `
SELECT tc.table_schema, tc.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
	ON tc.constraint_name = kcu.constraint_name
	AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY'
	AND tc.table_schema = ANY($1)
ORDER BY tc.table_schema, tc.table_name, kcu.ordinal_position
`

// uniqueQuery lists the column sets backing every UNIQUE or PRIMARY KEY
// constraint, used to recognize a 1:1 foreign key (one whose column set is
// itself covered by a unique constraint on the referencing table).
const uniqueQuery = `
SELECT tc.table_schema, tc.table_name, tc.constraint_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
	ON tc.constraint_name = kcu.constraint_name
	AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type IN ('UNIQUE', 'PRIMARY KEY')
	AND tc.table_schema = ANY($1)
ORDER BY tc.table_schema, tc.table_name, tc.constraint_name, kcu.ordinal_position
`

// fkQuery lists every foreign key constraint whose referencing table lives
// in one of the given schemas, naming both sides' columns in declaration
// order. Grounded on the reverse-FK lookup a PostgREST-style handler uses
// to resolve embeddings, extended here to also carry the forward direction
// so one pass builds both M2O and O2M relationship rows.
const fkQuery = `
SELECT
	tc.constraint_name,
	tc.table_schema,
	tc.table_name,
	kcu.column_name,
	ccu.table_schema AS ref_schema,
	ccu.table_name AS ref_table,
	ccu.column_name AS ref_column,
	kcu.ordinal_position
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
	ON tc.constraint_name = kcu.constraint_name
	AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
	ON ccu.constraint_name = tc.constraint_name
	AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY'
	AND tc.table_schema = ANY($1)
ORDER BY tc.table_schema, tc.table_name, tc.constraint_name, kcu.ordinal_position
`

// routineQuery and routineParamsQuery load callable functions/procedures
// via pg_catalog: information_schema.routines doesn't expose volatility or
// OUT-parameter shape, so RPC dispatch needs pg_proc directly.
const routineQuery = `
SELECT
	n.nspname AS schema,
	p.proname AS name,
	p.oid,
	p.provolatile,
	p.prokind = 'p' AS is_procedure,
	p.proretset,
	pg_catalog.format_type(p.prorettype, NULL) AS return_type,
	p.prorettype = 'record'::regtype AS returns_record
FROM pg_proc p
JOIN pg_namespace n ON n.oid = p.pronamespace
WHERE n.nspname = ANY($1)
	AND p.prokind IN ('f', 'p')
ORDER BY n.nspname, p.proname
`

// routineParamsQuery lists a routine's declared parameters in order,
// distinguishing IN/INOUT/VARIADIC from OUT/TABLE columns by argmode.
const routineParamsQuery = `
SELECT
	p.oid,
	a.name,
	pg_catalog.format_type(a.typ, NULL) AS data_type,
	a.mode,
	a.ordinality
FROM pg_proc p
CROSS JOIN LATERAL unnest(
	COALESCE(p.proallargtypes, p.proargtypes::oid[]),
	COALESCE(p.proargnames, ARRAY[]::text[]),
	COALESCE(p.proargmodes, array_fill('i'::"char", ARRAY[COALESCE(array_length(p.proargtypes, 1), 0)]))
) WITH ORDINALITY AS a(typ, name, mode, ordinality)
JOIN pg_namespace n ON n.oid = p.pronamespace
WHERE n.nspname = ANY($1)
	AND p.prokind IN ('f', 'p')
ORDER BY p.oid, a.ordinality
`

// timezonesQuery lists every timezone name PostgreSQL recognizes, used to
// validate a client-supplied Prefer timezone before it's handed to a
// SET LOCAL statement.
const timezonesQuery = `SELECT name FROM pg_timezone_names`

// Load builds a brand-new SchemaCache by running the introspection queries
// above against pool, scoped to the given schemas. It performs no writes
// and is safe to run repeatedly for live reload (§5's "Reload ... a
// completely new, immutable SchemaCache").
func Load(ctx context.Context, pool *pgxpool.Pool, schemas []string) (*SchemaCache, error) {
	tables, err := loadTables(ctx, pool, schemas)
	if err != nil {
		return nil, apperr.SchemaCacheLoadFailed(err)
	}

	columns, err := loadColumns(ctx, pool, schemas)
	if err != nil {
		return nil, apperr.SchemaCacheLoadFailed(err)
	}
	pkCols, err := loadPKs(ctx, pool, schemas)
	if err != nil {
		return nil, apperr.SchemaCacheLoadFailed(err)
	}
	uniqueSets, err := loadUniqueSets(ctx, pool, schemas)
	if err != nil {
		return nil, apperr.SchemaCacheLoadFailed(err)
	}

	for i := range tables {
		key := tableKey{tables[i].Schema, tables[i].Name}
		tables[i].Columns = columns[key]
		tables[i].PKCols = pkCols[key]
		// A view's DML privileges depend on whether it's simple/updatable;
		// without a writable-views analysis this cache treats every base
		// table as fully writable and every view as read-only, the safe
		// default a client can only widen by a future reload.
		tables[i].Insertable = !tables[i].IsView
		tables[i].Updatable = !tables[i].IsView
		tables[i].Deletable = !tables[i].IsView
	}

	fks, err := loadForeignKeys(ctx, pool, schemas)
	if err != nil {
		return nil, apperr.SchemaCacheLoadFailed(err)
	}
	relationships := buildRelationships(fks, uniqueSets, tables)

	routines, err := loadRoutines(ctx, pool, schemas)
	if err != nil {
		return nil, apperr.SchemaCacheLoadFailed(err)
	}

	timezones, err := loadTimezones(ctx, pool)
	if err != nil {
		return nil, apperr.SchemaCacheLoadFailed(err)
	}

	return NewSchemaCache(schemas, tables, routines, relationships, timezones), nil
}

func loadTables(ctx context.Context, pool *pgxpool.Pool, schemas []string) ([]Table, error) {
	rows, err := pool.Query(ctx, tablesQuery, schemas)
	if err != nil {
		return nil, fmt.Errorf("catalog: list tables: %w", err)
	}
	defer rows.Close()

	var out []Table
	for rows.Next() {
		var t Table
		var comment *string
		if err := rows.Scan(&t.Schema, &t.Name, &t.IsView, &comment); err != nil {
			return nil, fmt.Errorf("catalog: scan table row: %w", err)
		}
		t.Description = comment
		out = append(out, t)
	}
	return out, rows.Err()
}

func loadColumns(ctx context.Context, pool *pgxpool.Pool, schemas []string) (map[tableKey][]Column, error) {
	rows, err := pool.Query(ctx, columnsQuery, schemas)
	if err != nil {
		return nil, fmt.Errorf("catalog: list columns: %w", err)
	}
	defer rows.Close()

	out := map[tableKey][]Column{}
	for rows.Next() {
		var schema, table string
		var col Column
		var maxLen *int
		var comment *string
		var enumValues []string
		if err := rows.Scan(
			&schema, &table, &col.Name, &col.DataType, &col.NominalType,
			&col.Nullable, &col.Default, &col.Position, &maxLen, &comment, &enumValues,
		); err != nil {
			return nil, fmt.Errorf("catalog: scan column row: %w", err)
		}
		col.MaxLen = maxLen
		col.Description = comment
		col.EnumValues = enumValues
		key := tableKey{schema, table}
		out[key] = append(out[key], col)
	}
	return out, rows.Err()
}

func loadPKs(ctx context.Context, pool *pgxpool.Pool, schemas []string) (map[tableKey][]string, error) {
	rows, err := pool.Query(ctx, pkQuery, schemas)
	if err != nil {
		return nil, fmt.Errorf("catalog: list primary keys: %w", err)
	}
	defer rows.Close()

	out := map[tableKey][]string{}
	for rows.Next() {
		var schema, table, col string
		if err := rows.Scan(&schema, &table, &col); err != nil {
			return nil, fmt.Errorf("catalog: scan primary key row: %w", err)
		}
		key := tableKey{schema, table}
		out[key] = append(out[key], col)
	}
	return out, rows.Err()
}

// uniqueSet is one UNIQUE/PRIMARY KEY constraint's column set.
type uniqueSet struct {
	table tableKey
	name  string
	cols  []string
}

func loadUniqueSets(ctx context.Context, pool *pgxpool.Pool, schemas []string) ([]uniqueSet, error) {
	rows, err := pool.Query(ctx, uniqueQuery, schemas)
	if err != nil {
		return nil, fmt.Errorf("catalog: list unique constraints: %w", err)
	}
	defer rows.Close()

	index := map[tableKey]map[string]*uniqueSet{}
	var order []*uniqueSet
	for rows.Next() {
		var schema, table, constraint, col string
		if err := rows.Scan(&schema, &table, &constraint, &col); err != nil {
			return nil, fmt.Errorf("catalog: scan unique constraint row: %w", err)
		}
		key := tableKey{schema, table}
		if index[key] == nil {
			index[key] = map[string]*uniqueSet{}
		}
		set, ok := index[key][constraint]
		if !ok {
			set = &uniqueSet{table: key, name: constraint}
			index[key][constraint] = set
			order = append(order, set)
		}
		set.cols = append(set.cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]uniqueSet, len(order))
	for i, s := range order {
		out[i] = *s
	}
	return out, nil
}

// fkRow is one (referencing column, referenced column) pair of a single
// foreign key constraint.
type fkRow struct {
	constraint string
	schema     string
	table      string
	column     string
	refSchema  string
	refTable   string
	refColumn  string
}

func loadForeignKeys(ctx context.Context, pool *pgxpool.Pool, schemas []string) ([]fkRow, error) {
	rows, err := pool.Query(ctx, fkQuery, schemas)
	if err != nil {
		return nil, fmt.Errorf("catalog: list foreign keys: %w", err)
	}
	defer rows.Close()

	var out []fkRow
	for rows.Next() {
		var r fkRow
		var ordinal int
		if err := rows.Scan(&r.constraint, &r.schema, &r.table, &r.column, &r.refSchema, &r.refTable, &r.refColumn, &ordinal); err != nil {
			return nil, fmt.Errorf("catalog: scan foreign key row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func loadTimezones(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	rows, err := pool.Query(ctx, timezonesQuery)
	if err != nil {
		return nil, fmt.Errorf("catalog: list timezones: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("catalog: scan timezone row: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
