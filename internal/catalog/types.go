// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package catalog holds the schema cache: a versioned, immutable-once-built
snapshot of the database's tables, columns, foreign keys, and routines.

The cache is loaded once at startup via a sequence of introspection queries
against information_schema/pg_catalog ([Load]) and is safe for concurrent
reads from any number of goroutines. A reload builds an entirely new
[SchemaCache] and is swapped in atomically ([Cache.Swap]); in-flight
requests keep planning against the snapshot they started with.
*/
package catalog

import "github.com/relaybase/pgrestcore/internal/ident"

// Column describes one column of a Table.
//
// Invariant: within a Table, Name is unique; IsPK implies !Nullable.
type Column struct {
	Name        string
	DataType    string // the PostgreSQL type name, e.g. "integer", "timestamp with time zone"
	NominalType string // the type as the client should coerce it to/from JSON
	Nullable    bool
	Default     *string
	IsPK        bool
	Position    int
	EnumValues  []string
	MaxLen      *int
	Description *string
}

// Table describes one table or view exposed through the API.
//
// Invariant: PKCols is a subset of Columns' names.
type Table struct {
	Schema      string
	Name        string
	IsView      bool
	Insertable  bool
	Updatable   bool
	Deletable   bool
	PKCols      []string
	Columns     []Column
	Description *string
}

// QI returns the table's qualified identifier.
func (t Table) QI() ident.QualifiedIdentifier {
	return ident.QualifiedIdentifier{Schema: t.Schema, Name: t.Name}
}

// Column looks up a column by name, ordered lookup is O(1) via the cache's
// index rather than this linear helper; handlers that already hold a Table
// value use this for convenience on small column counts.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Cardinality is a closed sum over the shapes a [Relationship] can take.
type Cardinality int

const (
	CardO2M Cardinality = iota
	CardM2O
	CardO2OChild
	CardO2OParent
	CardM2M
)

// RelationshipKind distinguishes a foreign-key-backed relationship from one
// synthesized by a computed/volatile function (not populated by the
// introspection loader today, reserved for parity with the spec's
// Computed variant).
type RelationshipKind int

const (
	RelForeignKey RelationshipKind = iota
	RelComputed
)

// Relationship is the tagged union `ForeignKey{...} | Computed{...}` from
// the data model. Both variants are represented by one struct with a Kind
// discriminator to keep the closed-set pattern-match idiom visible at call
// sites (switch on Kind/Cardinality) without an interface hierarchy.
type Relationship struct {
	Kind RelationshipKind

	Table        ident.QualifiedIdentifier
	ForeignTable ident.QualifiedIdentifier
	Cardinality  Cardinality

	// ConstraintName disambiguates multiple relationships to the same
	// foreign table; matched against a client's `!hint`.
	ConstraintName string
	IsSelf         bool

	// SrcCols/TgtCols are the column pairs the join condition equates:
	// Table.SrcCols[i] = ForeignTable.TgtCols[i]. For M2M they are empty;
	// the join columns are carried by the Junction fields below.
	SrcCols []string
	TgtCols []string

	// Junction fields, populated only when Cardinality == CardM2M.
	JunctionSchema  string
	JunctionTable   string
	JunctionSrcCols []string // junction columns referencing Table
	JunctionTgtCols []string // junction columns referencing ForeignTable

	// Computed-function fields, populated only when Kind == RelComputed.
	Function ident.QualifiedIdentifier
	ToOne    bool
}

// ToMany reports whether the child side of this relationship is rendered
// as a JSON array (O2M, O2O-parent, M2M) rather than a single object/null
// (M2O, O2O-child).
func (r Relationship) ToMany() bool {
	switch r.Cardinality {
	case CardO2M, CardO2OParent, CardM2M:
		return true
	default:
		return false
	}
}

// Volatility classifies a routine per pg_proc.provolatile.
type Volatility int

const (
	Immutable Volatility = iota
	Stable
	Volatile
)

// ReturnKind is the closed set of shapes a routine's result can take.
type ReturnKind int

const (
	ReturnSingle ReturnKind = iota
	ReturnSetOf
	ReturnTable
	ReturnVoid
)

// RoutineParam is one declared parameter of a Routine.
type RoutineParam struct {
	Name     string
	DataType string
	HasDefault bool
	Variadic bool
}

// Routine describes a callable stored function or procedure.
//
// Invariant: only Immutable/Stable routines are callable via GET.
type Routine struct {
	Schema       string
	Name         string
	Params       []RoutineParam
	ReturnKind   ReturnKind
	ReturnType   string  // used when ReturnKind == ReturnSingle/ReturnSetOf
	ReturnCols   []Column // used when ReturnKind == ReturnTable
	Volatility   Volatility
	IsProcedure  bool
	HasVariadic  bool
}

// QI returns the routine's qualified identifier.
func (r Routine) QI() ident.QualifiedIdentifier {
	return ident.QualifiedIdentifier{Schema: r.Schema, Name: r.Name}
}

// Callable reports whether r may be invoked via GET (read-only RPC).
func (r Routine) Callable() bool {
	return r.Volatility != Volatile
}
