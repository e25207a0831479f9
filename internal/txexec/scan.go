// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package txexec

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/relaybase/pgrestcore/internal/ident"
)

// collectRows materializes a result set into JSON-ready records, keyed by
// output column name. pgx's default decoding already produces values
// encoding/json marshals correctly (time.Time, pgtype.Numeric, and
// json/jsonb columns all implement their own correct JSON rendering); the
// one exception is uuid, whose default Go representation ([16]byte) would
// otherwise marshal as a byte array instead of a string.
func collectRows(rows pgx.Rows) ([]map[string]any, error) {
	defer rows.Close()

	fds := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rec := make(map[string]any, len(fds))
		for i, fd := range fds {
			rec[string(fd.Name)] = convertValue(vals[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func convertValue(v any) any {
	if b, ok := v.([16]byte); ok {
		return uuid.UUID(b).String()
	}
	return v
}

// bindArgs converts a built statement's tagged parameters into driver
// arguments, using each SqlParam's Kind as a binding hint rather than
// relying solely on Go's dynamic typing of Value.
func bindArgs(params []ident.SqlParam) []any {
	out := make([]any, len(params))
	for i, p := range params {
		out[i] = paramValue(p)
	}
	return out
}

func paramValue(p ident.SqlParam) any {
	switch p.Kind {
	case ident.KindNull:
		return nil
	case ident.KindUUID:
		s, _ := p.Value.(string)
		if u, err := uuid.Parse(s); err == nil {
			return u
		}
		return s
	case ident.KindArray:
		list, _ := p.Value.([]ident.SqlParam)
		arr := make([]any, len(list))
		for i, v := range list {
			arr[i] = paramValue(v)
		}
		return arr
	default:
		return p.Value
	}
}
