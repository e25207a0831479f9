// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pagination computes the root range (offset/limit) for a read
request and renders the resulting Content-Range response header.

Usage:

	r := pagination.FromRangeHeader(request.Header.Get("Range"))
	r = r.WithLimitOffset(queryLimit, queryOffset)
	header := pagination.ContentRange(r.Offset, rowsReturned, total)

Architecture:

  - Range: the root `{offset, limit}` pair the planner attaches to a ReadPlan.
  - Response: Content-Range rendering with an open total ("*") when the
    count preference was not requested.
  - Safety: MaxLimit caps unbounded requests regardless of client input.

This mirrors the spec's header contract (`Range: 0-N` populates
`{offset:0, limit:N+1}`) rather than a page-number pagination scheme.
*/
package pagination

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relaybase/pgrestcore/pkg/convert"
)

// MaxLimit bounds a single response regardless of client-requested limit,
// mirroring the `DB_MAX_ROWS` configuration knob.
const MaxLimit = 10000

// Range is the root offset/limit pair of a ReadPlan.
type Range struct {
	Offset int
	Limit  *int // nil means "no LIMIT clause"
}

// FromRangeHeader parses an HTTP Range header of the form "0-9" into a
// Range. An empty or malformed header yields the zero Range (no bound).
func FromRangeHeader(header string) Range {
	header = strings.TrimSpace(header)
	if header == "" {
		return Range{}
	}

	parts := strings.SplitN(header, "-", 2)
	if len(parts) != 2 {
		return Range{}
	}

	start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || start < 0 || end < start {
		return Range{}
	}

	limit := end - start + 1
	return Range{Offset: start, Limit: &limit}
}

// WithLimitOffset overrides the range with explicit `limit`/`offset`
// query parameters, which take precedence over a Range header per the
// query-string grammar (§4.3).
func (r Range) WithLimitOffset(limitParam, offsetParam string) Range {
	if offsetParam != "" {
		r.Offset = convert.ToIntD(offsetParam, r.Offset)
	}
	if limitParam != "" {
		limit := convert.ToIntD(limitParam, 0)
		r.Limit = &limit
	}
	return r
}

// Clamped returns a copy of r with Limit capped to MaxLimit.
func (r Range) Clamped() Range {
	if r.Limit != nil && *r.Limit > MaxLimit {
		capped := MaxLimit
		r.Limit = &capped
	}
	return r
}

// ContentRange renders the `Content-Range: items <start>-<end>/<total>`
// response header. total is nil when the count preference was `none`
// (rendered as the open-ended "*").
func ContentRange(offset, returned int, total *int64) string {
	start := offset
	end := start + returned - 1
	if end < start {
		end = start - 1 // empty result set: "items 0-(-1)/n" per the spec's convention
	}

	totalStr := "*"
	if total != nil {
		totalStr = strconv.FormatInt(*total, 10)
	}

	return fmt.Sprintf("items %d-%d/%s", start, end, totalStr)
}
