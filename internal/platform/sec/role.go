// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import "encoding/json"

// stringifyClaim renders an arbitrary decoded JWT claim value as the
// string form PostgreSQL's `set_config` expects. Strings pass through
// unchanged; everything else (numbers, booleans, nested objects/arrays)
// is serialized as JSON text, mirroring how `request.jwt.claims` is
// conventionally consumed from SQL (`->>'key'` style access still works
// against a JSON-text GUC value).
func stringifyClaim(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
