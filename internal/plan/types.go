// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package plan converts a parsed apirequest.ApiRequest, together with a
catalog.SchemaCache snapshot, into a typed ActionPlan: a validated tree of
read/mutate/call operations with every column reference checked and every
embedding resolved to a concrete relationship. Nothing in this package
emits SQL — that's internal/build's job.
*/
package plan

import (
	"github.com/relaybase/pgrestcore/internal/apirequest"
	"github.com/relaybase/pgrestcore/internal/catalog"
)

// CoercibleField is one resolved output column: a select-list entry
// carrying the schema's declared type so the builder can cast JSON
// extractions correctly.
type CoercibleField struct {
	Name       string
	JSONPath   []string
	LastAsText bool
	DataType   string
	Cast       string
	Alias      string
	Agg        string
	FullRow    bool // "*" select
}

// LogicOp mirrors apirequest.LogicOp for the resolved tree.
type LogicOp = apirequest.LogicOp

// CoercibleFilter is a Filter validated against a table's columns and
// carrying the column's declared type.
type CoercibleFilter struct {
	Field    string
	DataType string
	Negated  bool
	Op       apirequest.FilterOp
	Operand  string
	List     []string
	FtsLang  string
}

// CoercibleLogicTree is the resolved form of apirequest.LogicNode.
type CoercibleLogicTree struct {
	Negated  bool
	Op       LogicOp
	Children []CoercibleLogicTree
	Leaf     *CoercibleFilter
}

// OrderTerm is a validated order-by term.
type OrderTerm struct {
	Field      string
	Desc       bool
	NullsFirst bool
	NullsLast  bool
}

// RangeSpec is a root or per-embed offset/limit pair.
type RangeSpec struct {
	Offset int
	Limit  *int
}

// ReadPlan is one level of a read tree: either the root table or one
// resolved embedding.
type ReadPlan struct {
	Select []CoercibleField
	Where  []CoercibleLogicTree
	Order  []OrderTerm
	Range  RangeSpec

	From      catalog.Table
	FromAlias string

	// Relation linkage, set for every non-root ReadPlan.
	RelName       string
	RelToParent   bool // true when this side is the "one" side of the join (M2O/O2O-child)
	RelJoinConds  [][2]string // (parentCol, childCol) pairs
	RelJoinType   string      // "", "inner", "left"
	RelIsM2M      bool
	RelJunction   catalog.Relationship
	RelSpread     bool // "..." prefix: splice the child's own fields into the parent row instead of nesting

	Depth int
}

// ReadPlanTree is a recursive node: a ReadPlan plus its resolved embedded
// children.
type ReadPlanTree struct {
	Root     ReadPlan
	Children []ReadPlanTree
}

// MutateKind distinguishes the three SQL shapes a MutatePlan can take.
type MutateKind int

const (
	MutateInsert MutateKind = iota
	MutateUpdate
	MutateDelete
)

// MutatePlan is a validated, typed mutation.
type MutatePlan struct {
	Kind    MutateKind
	Target  catalog.Table
	Columns []string // validated against the table; order is stable

	Body []byte // raw JSON payload, bound once as a single SqlParam

	OnConflictCols []string
	Resolution     apirequest.ResolutionPref

	Where []CoercibleLogicTree

	Returning []CoercibleField

	PKCols        []string
	ApplyDefaults bool // Missing == MissingDefault
}

// CallParamMode is how a routine call's arguments are bound.
type CallParamMode int

const (
	CallParamsNamed CallParamMode = iota
	CallParamsPositional
	CallParamsSingleObject
	CallParamsNone
)

// CallPlan is a validated routine invocation.
type CallPlan struct {
	Routine      catalog.Routine
	ParamMode    CallParamMode
	NamedArgs    map[string]string // raw text values, from query params or body object
	PositionalArgs []string
	ReturnsScalar bool
	ReturnsSet    bool
}

// ActionPlanKind distinguishes the three top-level shapes a DbActionPlan
// can take.
type ActionPlanKind int

const (
	PlanRead ActionPlanKind = iota
	PlanMutateRead
	PlanCall
)

// DbActionPlan is the root of a planned database action.
type DbActionPlan struct {
	Kind   ActionPlanKind
	Read   *ReadPlanTree
	Mutate *MutatePlan
	Call   *CallPlan
	// CallRead is the optional sub-select wrapping a routine's result
	// when the caller also passed select/order/range query params.
	CallRead *ReadPlanTree
}
