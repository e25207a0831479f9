// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"sort"

	"github.com/relaybase/pgrestcore/internal/ident"
)

// groupedFK is one foreign key constraint with its (possibly composite)
// column list assembled from the per-column rows fkQuery returns.
type groupedFK struct {
	constraint string
	schema     string
	table      string
	refSchema  string
	refTable   string
	cols       []string
	refCols    []string
}

func groupFKs(rows []fkRow) []groupedFK {
	type key struct{ constraint, schema, table string }
	index := map[key]*groupedFK{}
	var order []*groupedFK
	for _, r := range rows {
		k := key{r.constraint, r.schema, r.table}
		g, ok := index[k]
		if !ok {
			g = &groupedFK{constraint: r.constraint, schema: r.schema, table: r.table, refSchema: r.refSchema, refTable: r.refTable}
			index[k] = g
			order = append(order, g)
		}
		g.cols = append(g.cols, r.column)
		g.refCols = append(g.refCols, r.refColumn)
	}
	out := make([]groupedFK, len(order))
	for i, g := range order {
		out[i] = *g
	}
	return out
}

// buildRelationships turns the raw foreign keys into the dual-direction
// relationship rows the cache indexes (a referencing table's embed of its
// parent, and the parent's embed of its children), plus the synthesized
// many-to-many relationships a pure junction table implies.
//
// Grounded on the reverse-foreign-key embedding resolution of a
// PostgREST-style handler: every FK is walked once to produce the M2O
// (or O2O-child) side and once more to produce its O2M (or O2O-parent)
// mirror.
func buildRelationships(fkRows []fkRow, uniqueSets []uniqueSet, tables []Table) []Relationship {
	grouped := groupFKs(fkRows)

	uniqueByTable := map[tableKey][][]string{}
	for _, u := range uniqueSets {
		uniqueByTable[u.table] = append(uniqueByTable[u.table], u.cols)
	}

	var rels []Relationship
	for _, g := range grouped {
		tk := tableKey{g.schema, g.table}
		isO2O := columnSetIn(uniqueByTable[tk], g.cols)
		isSelf := g.schema == g.refSchema && g.table == g.refTable

		fwdCard, revCard := CardM2O, CardO2M
		if isO2O {
			fwdCard, revCard = CardO2OChild, CardO2OParent
		}

		rels = append(rels, Relationship{
			Kind:           RelForeignKey,
			Table:          ident.QualifiedIdentifier{Schema: g.schema, Name: g.table},
			ForeignTable:   ident.QualifiedIdentifier{Schema: g.refSchema, Name: g.refTable},
			Cardinality:    fwdCard,
			ConstraintName: g.constraint,
			IsSelf:         isSelf,
			SrcCols:        g.cols,
			TgtCols:        g.refCols,
		})
		rels = append(rels, Relationship{
			Kind:           RelForeignKey,
			Table:          ident.QualifiedIdentifier{Schema: g.refSchema, Name: g.refTable},
			ForeignTable:   ident.QualifiedIdentifier{Schema: g.schema, Name: g.table},
			Cardinality:    revCard,
			ConstraintName: g.constraint,
			IsSelf:         isSelf,
			SrcCols:        g.refCols,
			TgtCols:        g.cols,
		})
	}

	rels = append(rels, findJunctionM2M(grouped, uniqueByTable)...)
	return rels
}

// findJunctionM2M recognizes a "pure" junction table: exactly two foreign
// keys, to two distinct tables, whose combined referencing columns are
// themselves covered by a unique (or primary key) constraint on the
// junction table. Both directions are emitted so a select=... embed from
// either side of the many-to-many resolves directly.
func findJunctionM2M(grouped []groupedFK, uniqueByTable map[tableKey][][]string) []Relationship {
	byTable := map[tableKey][]groupedFK{}
	for _, g := range grouped {
		tk := tableKey{g.schema, g.table}
		byTable[tk] = append(byTable[tk], g)
	}

	var rels []Relationship
	for tk, fks := range byTable {
		if len(fks) != 2 {
			continue
		}
		a, b := fks[0], fks[1]
		if a.refSchema == b.refSchema && a.refTable == b.refTable {
			continue // self-referencing junction; not a plain M2M bridge
		}

		union := append(append([]string{}, a.cols...), b.cols...)
		if !columnSetIn(uniqueByTable[tk], union) {
			continue
		}

		rels = append(rels,
			Relationship{
				Kind:            RelForeignKey,
				Table:           ident.QualifiedIdentifier{Schema: a.refSchema, Name: a.refTable},
				ForeignTable:    ident.QualifiedIdentifier{Schema: b.refSchema, Name: b.refTable},
				Cardinality:     CardM2M,
				ConstraintName:  a.constraint + "," + b.constraint,
				JunctionSchema:  tk.schema,
				JunctionTable:   tk.name,
				JunctionSrcCols: a.cols,
				JunctionTgtCols: b.cols,
			},
			Relationship{
				Kind:            RelForeignKey,
				Table:           ident.QualifiedIdentifier{Schema: b.refSchema, Name: b.refTable},
				ForeignTable:    ident.QualifiedIdentifier{Schema: a.refSchema, Name: a.refTable},
				Cardinality:     CardM2M,
				ConstraintName:  a.constraint + "," + b.constraint,
				JunctionSchema:  tk.schema,
				JunctionTable:   tk.name,
				JunctionSrcCols: b.cols,
				JunctionTgtCols: a.cols,
			},
		)
	}
	return rels
}

func columnSetIn(sets [][]string, cols []string) bool {
	for _, s := range sets {
		if sameColumnSet(s, cols) {
			return true
		}
	}
	return false
}

func sameColumnSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	ac := append([]string{}, a...)
	bc := append([]string{}, b...)
	sort.Strings(ac)
	sort.Strings(bc)
	for i := range ac {
		if ac[i] != bc[i] {
			return false
		}
	}
	return true
}
