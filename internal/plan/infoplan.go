// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package plan

import (
	"github.com/relaybase/pgrestcore/internal/catalog"
	"github.com/relaybase/pgrestcore/pkg/pointer"
)

// InfoPlan collects everything the root `GET /` introspection document and
// a per-resource `OPTIONS` response need from one schema's slice of the
// cache. Unlike DbActionPlan, nothing here touches a specific request's
// query string — it describes the schema itself.
type InfoPlan struct {
	Schema   string
	Tables   []catalog.Table
	Routines []catalog.Routine
}

// BuildInfoPlan gathers every table and routine the cache exposes under
// schema, for the root schema document (DbSchemaRead) and the OPTIONS
// handlers (which narrow it to one resource).
func (p *Planner) BuildInfoPlan(schema string) InfoPlan {
	return InfoPlan{
		Schema:   schema,
		Tables:   p.Cache.AllTables(schema),
		Routines: p.Cache.AllRoutines(schema),
	}
}

// OpenApiSpec renders a reduced OpenAPI 2.0-shaped document: one path per
// exposed table (GET/POST/PATCH/DELETE) and one per routine (`/rpc/{name}`,
// GET for callable routines plus POST for all of them), with definitions
// built from the cache's column/parameter metadata. This is a structural
// approximation of PostgREST's own root document, not a general-purpose
// OpenAPI generator.
func (ip InfoPlan) OpenApiSpec(host string) map[string]any {
	paths := map[string]any{}
	definitions := map[string]any{}

	for _, t := range ip.Tables {
		definitions[t.Name] = tableDefinition(t)
		paths["/"+t.Name] = tablePathItem(t)
	}
	for _, r := range ip.Routines {
		key := "/rpc/" + r.Name
		existing, _ := paths[key].(map[string]any)
		if existing == nil {
			existing = map[string]any{}
		}
		methods := routinePathItem(r)
		for k, v := range methods {
			existing[k] = v
		}
		paths[key] = existing
	}

	return map[string]any{
		"swagger": "2.0",
		"info": map[string]any{
			"title":       "PostgREST-compatible API",
			"description": "Auto-generated from the " + ip.Schema + " schema",
			"version":     "0.1.0-dev",
		},
		"host":        host,
		"basePath":    "/",
		"schemes":     []string{"http", "https"},
		"consumes":    []string{"application/json"},
		"produces":    []string{"application/json"},
		"paths":       paths,
		"definitions": definitions,
	}
}

func tableDefinition(t catalog.Table) map[string]any {
	props := map[string]any{}
	var required []string
	for _, c := range t.Columns {
		props[c.Name] = map[string]any{
			"type":        jsonSchemaType(c.DataType),
			"description": pointer.Fallback(c.Description, ""),
		}
		if !c.Nullable && c.Default == nil {
			required = append(required, c.Name)
		}
	}
	def := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		def["required"] = required
	}
	return def
}

func tablePathItem(t catalog.Table) map[string]any {
	item := map[string]any{
		"get": operation("Search "+t.Name, t.Name, nil),
	}
	if t.Insertable {
		item["post"] = operation("Create "+t.Name, t.Name, []string{t.Name})
	}
	if t.Updatable {
		item["patch"] = operation("Update "+t.Name, t.Name, []string{t.Name})
	}
	if t.Deletable {
		item["delete"] = operation("Delete "+t.Name, t.Name, nil)
	}
	return item
}

func routinePathItem(r catalog.Routine) map[string]any {
	methods := map[string]any{
		"post": operation("Invoke "+r.Name, r.Name, []string{r.Name}),
	}
	if r.Callable() {
		methods["get"] = operation("Invoke "+r.Name+" (read-only)", r.Name, nil)
	}
	return methods
}

func operation(summary, tag string, bodyRefs []string) map[string]any {
	op := map[string]any{
		"summary":  summary,
		"tags":     []string{tag},
		"responses": map[string]any{
			"200": map[string]any{"description": "OK"},
		},
	}
	if len(bodyRefs) > 0 {
		op["parameters"] = []map[string]any{
			{"name": "body", "in": "body", "schema": map[string]any{"$ref": "#/definitions/" + bodyRefs[0]}},
		}
	}
	return op
}

// jsonSchemaType maps a PostgreSQL type name to the nearest JSON Schema
// primitive; anything not recognized renders as "string" (PostgREST's own
// fallback for enum/domain/composite types it doesn't special-case).
func jsonSchemaType(pgType string) string {
	switch pgType {
	case "integer", "bigint", "smallint", "int2", "int4", "int8":
		return "integer"
	case "real", "double precision", "numeric", "decimal", "float4", "float8":
		return "number"
	case "boolean", "bool":
		return "boolean"
	case "json", "jsonb":
		return "object"
	default:
		return "string"
	}
}
