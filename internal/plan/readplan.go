// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package plan

import (
	"strings"

	"github.com/relaybase/pgrestcore/internal/apirequest"
	"github.com/relaybase/pgrestcore/internal/catalog"
	"github.com/relaybase/pgrestcore/internal/platform/apperr"
	"github.com/relaybase/pgrestcore/pkg/pointer"
)

// DefaultMaxDepth bounds embedding recursion to prevent pathological
// requests from expanding into unbounded SQL (§9's open question).
const DefaultMaxDepth = 5

// Planner builds ActionPlans against one immutable SchemaCache snapshot.
type Planner struct {
	Cache        *catalog.SchemaCache
	MaxDepth     int
	DefaultLimit int // applied when neither Range header nor limit= is present; 0 means unbounded
}

// NewPlanner constructs a Planner with the given schema cache and limits.
func NewPlanner(cache *catalog.SchemaCache, maxDepth, defaultLimit int) *Planner {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Planner{Cache: cache, MaxDepth: maxDepth, DefaultLimit: defaultLimit}
}

// BuildReadPlanTree builds the full read tree for a RelationRead action,
// per §4.4: select-list traversal resolves embeddings via FindRelationship,
// then filters/orders/ranges are attached to the node their embed path
// addresses.
func (p *Planner) BuildReadPlanTree(table catalog.Table, query apirequest.QueryParams) (*ReadPlanTree, error) {
	root, err := p.buildNode(table, query.Select, nil, 0)
	if err != nil {
		return nil, err
	}

	if err := p.attachFilters(root, query.Filters); err != nil {
		return nil, err
	}
	p.attachLogic(root, query.Logic)
	if err := p.attachOrders(root, query.Order); err != nil {
		return nil, err
	}
	p.attachRanges(root, query.Ranges)

	return root, nil
}

// buildNode constructs one ReadPlanTree level: the table's select fields
// plus a recursive child for every relation in the select list.
func (p *Planner) buildNode(table catalog.Table, items []apirequest.SelectItem, rel *catalog.Relationship, depth int) (*ReadPlanTree, error) {
	node := &ReadPlanTree{
		Root: ReadPlan{
			From:      table,
			FromAlias: table.Name,
			Depth:     depth,
		},
	}

	if len(items) == 0 {
		node.Root.Select = append(node.Root.Select, CoercibleField{FullRow: true})
	}

	for _, item := range items {
		switch item.Kind {
		case apirequest.SelectField:
			if item.Name == "*" {
				node.Root.Select = append(node.Root.Select, CoercibleField{FullRow: true})
				continue
			}
			col, ok := table.Column(item.Name)
			if !ok {
				return nil, apperr.UnknownColumn(table.Name, item.Name)
			}
			node.Root.Select = append(node.Root.Select, CoercibleField{
				Name:       col.Name,
				JSONPath:   item.JSONPath,
				LastAsText: item.LastAsText,
				DataType:   col.DataType,
				Cast:       item.Cast,
				Alias:      item.Alias,
				Agg:        item.Agg,
			})

		case apirequest.SelectRelation, apirequest.SelectSpreadRelation:
			if depth+1 > p.MaxDepth {
				return nil, apperr.InvalidQueryParam("embedding depth exceeds the configured maximum")
			}
			childRel, err := p.Cache.FindRelationship(table.Schema, table.Name, item.Name, item.Hint)
			if err != nil {
				return nil, err
			}
			childTable, err := p.Cache.RequireTable(childRel.ForeignTable.Schema, childRel.ForeignTable.Name)
			if err != nil {
				return nil, err
			}
			child, err := p.buildNode(childTable, item.Children, &childRel, depth+1)
			if err != nil {
				return nil, err
			}
			alias := item.Name
			if item.Alias != "" {
				alias = item.Alias
			}
			child.Root.FromAlias = alias
			child.Root.RelName = alias
			child.Root.RelJoinType = item.JoinType
			child.Root.RelSpread = item.Kind == apirequest.SelectSpreadRelation
			applyRelationshipJoin(&child.Root, childRel)
			node.Children = append(node.Children, *child)
		}
	}

	return node, nil
}

// applyRelationshipJoin fills in the join metadata a resolved
// catalog.Relationship implies for the child side of an embedding.
func applyRelationshipJoin(childPlan *ReadPlan, rel catalog.Relationship) {
	childPlan.RelToParent = !rel.ToMany()
	childPlan.RelIsM2M = rel.Cardinality == catalog.CardM2M

	if rel.Cardinality == catalog.CardM2M {
		childPlan.RelJunction = rel
		return
	}

	for i := range rel.SrcCols {
		if i < len(rel.TgtCols) {
			childPlan.RelJoinConds = append(childPlan.RelJoinConds, [2]string{rel.SrcCols[i], rel.TgtCols[i]})
		}
	}
}

// attachFilters locates, for each parsed filter, the tree node its embed
// path addresses and appends a validated CoercibleFilter to it.
func (p *Planner) attachFilters(root *ReadPlanTree, filters []apirequest.Filter) error {
	for _, f := range filters {
		node := findNode(root, f.EmbedPath)
		if node == nil {
			continue // filter targets a relation that was not selected; silently scoped out
		}
		col, ok := node.Root.From.Column(f.Field)
		if !ok {
			return apperr.UnknownColumn(node.Root.From.Name, f.Field)
		}
		node.Root.Where = append(node.Root.Where, CoercibleLogicTree{
			Leaf: &CoercibleFilter{
				Field:    col.Name,
				DataType: col.DataType,
				Negated:  f.Negated,
				Op:       f.Op,
				Operand:  f.Operand,
				List:     f.List,
				FtsLang:  f.FtsLang,
			},
		})
	}
	return nil
}

// attachLogic resolves and/or trees the same way attachFilters resolves
// flat filters, recursively validating every leaf's column.
func (p *Planner) attachLogic(root *ReadPlanTree, nodes []apirequest.LogicNode) {
	for _, n := range nodes {
		target := findNode(root, n.EmbedPath)
		if target == nil {
			continue
		}
		tree, err := p.resolveLogicNode(target.Root.From, n)
		if err != nil {
			continue // ambiguous/invalid embedded logic is scoped out rather than failing the whole plan
		}
		target.Root.Where = append(target.Root.Where, tree)
	}
}

func (p *Planner) resolveLogicNode(table catalog.Table, n apirequest.LogicNode) (CoercibleLogicTree, error) {
	if n.Leaf != nil {
		col, ok := table.Column(n.Leaf.Field)
		if !ok {
			return CoercibleLogicTree{}, apperr.UnknownColumn(table.Name, n.Leaf.Field)
		}
		return CoercibleLogicTree{
			Leaf: &CoercibleFilter{
				Field:    col.Name,
				DataType: col.DataType,
				Negated:  n.Leaf.Negated,
				Op:       n.Leaf.Op,
				Operand:  n.Leaf.Operand,
				List:     n.Leaf.List,
				FtsLang:  n.Leaf.FtsLang,
			},
		}, nil
	}

	out := CoercibleLogicTree{Negated: n.Negated, Op: n.Op}
	for _, child := range n.Children {
		resolved, err := p.resolveLogicNode(table, child)
		if err != nil {
			return CoercibleLogicTree{}, err
		}
		out.Children = append(out.Children, resolved)
	}
	return out, nil
}

// attachOrders locates the node an `order=`/`rel.order=` key addresses and
// validates each term's column.
func (p *Planner) attachOrders(root *ReadPlanTree, orders map[string][]apirequest.OrderTerm) error {
	for key, terms := range orders {
		var embedPath []string
		if key != "" {
			embedPath = strings.Split(key, ".")
		}
		node := findNode(root, embedPath)
		if node == nil {
			continue
		}
		for _, t := range terms {
			if _, ok := node.Root.From.Column(t.Field); !ok {
				return apperr.UnknownColumn(node.Root.From.Name, t.Field)
			}
			node.Root.Order = append(node.Root.Order, OrderTerm{
				Field:      t.Field,
				Desc:       t.Desc,
				NullsFirst: t.NullsFirst,
				NullsLast:  t.NullsLast,
			})
		}
	}
	return nil
}

// attachRanges applies the root and per-embed offset/limit pairs,
// defaulting the root's limit to the planner's configured DefaultLimit
// when the client specified none.
func (p *Planner) attachRanges(root *ReadPlanTree, ranges map[string]apirequest.RangeSpec) {
	if r, ok := ranges[""]; ok {
		root.Root.Range = RangeSpec{Offset: r.Offset, Limit: r.Limit}
	}
	if root.Root.Range.Limit == nil && p.DefaultLimit > 0 {
		root.Root.Range.Limit = pointer.To(p.DefaultLimit)
	}

	for key, r := range ranges {
		if key == "" {
			continue
		}
		embedPath := strings.Split(key, ".")
		node := findNode(root, embedPath)
		if node == nil {
			continue
		}
		node.Root.Range = RangeSpec{Offset: r.Offset, Limit: r.Limit}
	}
}

// findNode walks embedPath (a sequence of relation names/aliases) from
// root, returning the addressed ReadPlanTree or nil if no such path exists
// in the already-built select tree.
func findNode(root *ReadPlanTree, embedPath []string) *ReadPlanTree {
	node := root
	for _, name := range embedPath {
		found := false
		for i := range node.Children {
			if node.Children[i].Root.RelName == name {
				node = &node.Children[i]
				found = true
				break
			}
		}
		if !found {
			return nil
		}
	}
	return node
}
