// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apirequest

import (
	"encoding/json"
	"sort"

	"github.com/relaybase/pgrestcore/internal/platform/apperr"
)

// parsePayload parses a JSON request body just far enough to extract its
// top-level key set (§3/§4.3): the raw bytes are retained verbatim for the
// eventual `json_populate_recordset($1::json)` call, never re-serialized.
func parsePayload(contentType string, body []byte) (*Payload, error) {
	if len(body) == 0 {
		return nil, nil
	}

	switch contentType {
	case MediaFormURLEncoded, MediaOctetStream:
		return &Payload{Raw: body}, nil
	}

	var generic any
	if err := json.Unmarshal(body, &generic); err != nil {
		return nil, apperr.InvalidBody("request body is not valid JSON: " + err.Error())
	}

	payload := &Payload{Raw: body}

	switch v := generic.(type) {
	case map[string]any:
		payload.Keys = sortedKeys(v)
	case []any:
		payload.IsArray = true
		seen := map[string]struct{}{}
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, apperr.InvalidBody("array body elements must be JSON objects")
			}
			for k := range obj {
				seen[k] = struct{}{}
			}
		}
		for k := range seen {
			payload.Keys = append(payload.Keys, k)
		}
		sort.Strings(payload.Keys)
	default:
		return nil, apperr.InvalidBody("request body must be a JSON object or array of objects")
	}

	return payload, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
