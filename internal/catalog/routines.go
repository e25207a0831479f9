// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// routineParamRow is one row of routineParamsQuery: a single declared
// argument (IN/INOUT/VARIADIC) or a single OUT/TABLE column, distinguished
// by mode.
type routineParamRow struct {
	oid  uint32
	name string
	typ  string
	mode string
}

// loadRoutines builds every callable function/procedure visible in schemas,
// matching routine-level metadata from pg_proc against its per-parameter
// rows. information_schema.routines can't distinguish IN from OUT
// parameters or report volatility, so both queries go straight to
// pg_catalog.
func loadRoutines(ctx context.Context, pool *pgxpool.Pool, schemas []string) ([]Routine, error) {
	paramsByOID, err := loadRoutineParams(ctx, pool, schemas)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, routineQuery, schemas)
	if err != nil {
		return nil, fmt.Errorf("catalog: list routines: %w", err)
	}
	defer rows.Close()

	var out []Routine
	for rows.Next() {
		var r Routine
		var oid uint32
		var provolatile string
		var retsSet, returnsRecord bool
		if err := rows.Scan(&r.Schema, &r.Name, &oid, &provolatile, &r.IsProcedure, &retsSet, &r.ReturnType, &returnsRecord); err != nil {
			return nil, fmt.Errorf("catalog: scan routine row: %w", err)
		}

		switch provolatile {
		case "i":
			r.Volatility = Immutable
		case "s":
			r.Volatility = Stable
		default:
			r.Volatility = Volatile
		}

		var tableCols []Column
		for _, p := range paramsByOID[oid] {
			switch p.mode {
			case "i", "b", "v":
				param := RoutineParam{Name: p.name, DataType: p.typ, Variadic: p.mode == "v"}
				if param.Variadic {
					r.HasVariadic = true
				}
				r.Params = append(r.Params, param)
			case "t":
				tableCols = append(tableCols, Column{Name: p.name, DataType: p.typ, NominalType: p.typ})
			}
		}

		switch {
		case len(tableCols) > 0:
			r.ReturnKind = ReturnTable
			r.ReturnCols = tableCols
		case retsSet:
			r.ReturnKind = ReturnSetOf
		case r.ReturnType == "void":
			r.ReturnKind = ReturnVoid
		default:
			r.ReturnKind = ReturnSingle
		}

		out = append(out, r)
	}
	return out, rows.Err()
}

func loadRoutineParams(ctx context.Context, pool *pgxpool.Pool, schemas []string) (map[uint32][]routineParamRow, error) {
	rows, err := pool.Query(ctx, routineParamsQuery, schemas)
	if err != nil {
		return nil, fmt.Errorf("catalog: list routine params: %w", err)
	}
	defer rows.Close()

	out := map[uint32][]routineParamRow{}
	for rows.Next() {
		var p routineParamRow
		var ordinality int
		if err := rows.Scan(&p.oid, &p.name, &p.typ, &p.mode, &ordinality); err != nil {
			return nil, fmt.Errorf("catalog: scan routine param row: %w", err)
		}
		out[p.oid] = append(out[p.oid], p)
	}
	return out, rows.Err()
}
