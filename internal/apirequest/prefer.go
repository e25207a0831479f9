// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apirequest

import (
	"strconv"
	"strings"
)

// parsePreferences parses the comma-separated `Prefer` request header
// (RFC 7240 tokens), per §4.3's table. Unrecognized tokens accumulate in
// Invalid rather than failing the request.
func parsePreferences(header string) Preferences {
	prefs := Preferences{
		Return:     ReturnMinimal,
		Resolution: ResolutionNone,
		Tx:         TxCommit,
		Missing:    MissingDefault,
		Handling:   HandlingStrict,
	}

	if header == "" {
		return prefs
	}

	for _, tok := range strings.Split(header, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		key, val, found := strings.Cut(tok, "=")
		if !found {
			prefs.Invalid = append(prefs.Invalid, tok)
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		applied := true
		switch key {
		case "return":
			switch val {
			case "representation":
				prefs.Return = ReturnRepresentation
			case "headers-only":
				prefs.Return = ReturnHeadersOnly
			case "minimal":
				prefs.Return = ReturnMinimal
			default:
				applied = false
			}
		case "count":
			switch val {
			case "exact":
				prefs.Count = CountExact
			case "planned":
				prefs.Count = CountPlanned
			case "estimated":
				prefs.Count = CountEstimated
			default:
				applied = false
			}
		case "resolution":
			switch val {
			case "merge-duplicates":
				prefs.Resolution = ResolutionMergeDuplicates
			case "ignore-duplicates":
				prefs.Resolution = ResolutionIgnoreDuplicates
			default:
				applied = false
			}
		case "tx", "transaction":
			switch val {
			case "commit":
				prefs.Tx = TxCommit
			case "rollback":
				prefs.Tx = TxRollback
			default:
				applied = false
			}
		case "missing":
			switch val {
			case "default":
				prefs.Missing = MissingDefault
			case "null":
				prefs.Missing = MissingNull
			default:
				applied = false
			}
		case "handling":
			switch val {
			case "strict":
				prefs.Handling = HandlingStrict
			case "lenient":
				prefs.Handling = HandlingLenient
			default:
				applied = false
			}
		case "timezone":
			prefs.Timezone = val
		case "max-affected":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				applied = false
			} else {
				prefs.MaxAffected = &n
			}
		default:
			applied = false
		}

		if applied {
			prefs.Applied = append(prefs.Applied, tok)
		} else {
			prefs.Invalid = append(prefs.Invalid, tok)
		}
	}

	return prefs
}

// PreferenceApplied renders the `Preference-Applied` response header value.
func (p Preferences) PreferenceApplied() string {
	return strings.Join(p.Applied, ", ")
}
