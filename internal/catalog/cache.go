// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"sort"
	"sync/atomic"

	"github.com/relaybase/pgrestcore/internal/platform/apperr"
)

// tableKey indexes a Table by its qualified name.
type tableKey struct{ schema, name string }

// SchemaCache is a consistent, versioned snapshot of the exposed schemas.
// It is built once by [Load] and is immutable thereafter; all lookups are
// O(1) map reads requiring no locking once the snapshot is published.
type SchemaCache struct {
	Schemas  []string
	Timezones map[string]struct{}

	tables        map[tableKey]Table
	routines      map[tableKey][]Routine // keyed by (schema, name); overloads share a bucket
	relationships map[tableKey][]Relationship
}

// NewSchemaCache indexes raw introspection results into lookup maps.
func NewSchemaCache(schemas []string, tables []Table, routines []Routine, relationships []Relationship, timezones []string) *SchemaCache {
	c := &SchemaCache{
		Schemas:       schemas,
		Timezones:     make(map[string]struct{}, len(timezones)),
		tables:        make(map[tableKey]Table, len(tables)),
		routines:      make(map[tableKey][]Routine, len(routines)),
		relationships: make(map[tableKey][]Relationship, len(relationships)),
	}

	for _, tz := range timezones {
		c.Timezones[tz] = struct{}{}
	}
	for _, t := range tables {
		c.tables[tableKey{t.Schema, t.Name}] = t
	}
	for _, r := range routines {
		k := tableKey{r.Schema, r.Name}
		c.routines[k] = append(c.routines[k], r)
	}
	for _, rel := range relationships {
		k := tableKey{rel.Table.Schema, rel.Table.Name}
		c.relationships[k] = append(c.relationships[k], rel)
	}

	return c
}

// RequireTable looks up a table by qualified name, returning a
// PGRST304-class not-found [*apperr.AppError] if absent.
func (c *SchemaCache) RequireTable(schema, name string) (Table, error) {
	t, ok := c.tables[tableKey{schema, name}]
	if !ok {
		return Table{}, apperr.NotFoundCode("PGRST304", "relation", schema+"."+name)
	}
	return t, nil
}

// AllTables returns every table/view exposed under schema, sorted by name,
// for the root schema-introspection document (§4.3's SchemaRead action).
func (c *SchemaCache) AllTables(schema string) []Table {
	var out []Table
	for k, t := range c.tables {
		if k.schema == schema {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AllRoutines returns every routine overload exposed under schema, sorted
// by name then parameter count, for the same document.
func (c *SchemaCache) AllRoutines(schema string) []Routine {
	var out []Routine
	for k, list := range c.routines {
		if k.schema == schema {
			out = append(out, list...)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return len(out[i].Params) < len(out[j].Params)
	})
	return out
}

// Routines returns every overload registered under (schema, name).
func (c *SchemaCache) Routines(schema, name string) []Routine {
	return c.routines[tableKey{schema, name}]
}

// GetRelationships returns every relationship whose source side is
// (schema, table).
func (c *SchemaCache) GetRelationships(schema, table string) []Relationship {
	return c.relationships[tableKey{schema, table}]
}

// FindRelationship resolves an embedding target by foreign-table name.
// If hint is non-empty, only relationships whose ConstraintName or a
// source/target column equals hint are considered. Multiple surviving
// matches is an ambiguity error instructing the client to disambiguate
// via `!hint`; zero matches is a not-found error.
func (c *SchemaCache) FindRelationship(schema, table, foreignTableName, hint string) (Relationship, error) {
	candidates := c.relationships[tableKey{schema, table}]

	var matches []Relationship
	for _, rel := range candidates {
		if rel.ForeignTable.Name != foreignTableName && rel.JunctionTable != foreignTableName {
			continue
		}
		if hint != "" && !relMatchesHint(rel, hint) {
			continue
		}
		matches = append(matches, rel)
	}

	switch len(matches) {
	case 0:
		return Relationship{}, apperr.NotFoundCode("PGRST200", "relationship", foreignTableName)
	case 1:
		return matches[0], nil
	default:
		return Relationship{}, apperr.AmbiguousEmbed(foreignTableName)
	}
}

func relMatchesHint(rel Relationship, hint string) bool {
	if rel.ConstraintName == hint {
		return true
	}
	for _, c := range rel.SrcCols {
		if c == hint {
			return true
		}
	}
	for _, c := range rel.TgtCols {
		if c == hint {
			return true
		}
	}
	return false
}

// Cache holds an atomically-swappable *SchemaCache for live reload.
// Readers call [Cache.Load] to obtain the current snapshot for the
// duration of planning a single request; a reload calls [Cache.Swap]
// once the new snapshot has finished building, so in-flight readers
// always see a fully-formed cache.
type Cache struct {
	ptr atomic.Pointer[SchemaCache]
}

// Load returns the current snapshot, or nil if no snapshot has loaded yet.
func (c *Cache) Load() *SchemaCache {
	return c.ptr.Load()
}

// Swap atomically replaces the live snapshot.
func (c *Cache) Swap(next *SchemaCache) {
	c.ptr.Store(next)
}
