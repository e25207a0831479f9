// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apirequest

import "strings"

// Known media types per §4.3. Unknown strings are preserved opaquely by the
// caller (they are never rejected here — the builder/respond layer falls
// back to JSON for anything it doesn't recognize).
const (
	MediaJSON           = "application/json"
	MediaGeoJSON        = "application/geo+json"
	MediaCSV             = "text/csv"
	MediaXML             = "text/xml"
	MediaOpenAPI         = "application/openapi+json"
	MediaFormURLEncoded  = "application/x-www-form-urlencoded"
	MediaOctetStream     = "application/octet-stream"
	MediaPgrstObject     = "application/vnd.pgrst.object+json"
	MediaPgrstArray      = "application/vnd.pgrst.array+json"
	MediaPgrstPlan       = "application/vnd.pgrst.plan+json"
	MediaAny             = "*/*"
)

// parseAccept splits a comma-separated `Accept` header into its candidate
// media types, stripping q-value parameters (negotiation here is
// presence-based, not weighted).
func parseAccept(header string) []string {
	if header == "" {
		return []string{MediaJSON}
	}
	var types []string
	for _, part := range strings.Split(header, ",") {
		mt, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if mt != "" {
			types = append(types, mt)
		}
	}
	if len(types) == 0 {
		return []string{MediaJSON}
	}
	return types
}

// PreferredMediaType returns the first media type in accepted that this
// package recognizes, defaulting to JSON when none match (or `*/*` is
// present).
func PreferredMediaType(accepted []string) string {
	for _, mt := range accepted {
		switch mt {
		case MediaJSON, MediaGeoJSON, MediaCSV, MediaXML, MediaOpenAPI,
			MediaPgrstObject, MediaPgrstArray, MediaPgrstPlan:
			return mt
		case MediaAny:
			return MediaJSON
		}
	}
	return MediaJSON
}
