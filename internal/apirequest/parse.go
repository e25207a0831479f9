// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apirequest

import (
	"net/http"
	"strings"

	"github.com/relaybase/pgrestcore/internal/platform/apperr"
	"github.com/relaybase/pgrestcore/internal/platform/constants"
	"github.com/relaybase/pgrestcore/pkg/pagination"
)

// SchemaConfig is the subset of the engine configuration schema
// negotiation needs; satisfied by *config.Config.
type SchemaConfig interface {
	DefaultSchema() string
	SchemaExposed(schema string) bool
}

// Parse fuses the request's path, headers, query string, and body into a
// typed ApiRequest (§4.3). body must already be fully read off the
// request (the HTTP layer owns the io.Reader lifecycle).
func Parse(request *http.Request, body []byte, cfg SchemaConfig) (*ApiRequest, error) {
	res, err := parseResource(request.URL.Path)
	if err != nil {
		return nil, err
	}

	action, db, err := dispatchAction(request.Method, res)
	if err != nil {
		return nil, err
	}

	query, err := parseQuery(request.URL.RawQuery)
	if err != nil {
		return nil, err
	}

	schema, negotiated, err := negotiateSchema(request, cfg)
	if err != nil {
		return nil, err
	}
	if db != nil {
		db.Schema = schema
		db.QI.Schema = schema
	}

	prefs := parsePreferences(request.Header.Get("Prefer"))

	contentType, _, _ := strings.Cut(request.Header.Get(constants.HeaderContentType), ";")
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		contentType = MediaJSON
	}

	payload, err := parsePayload(contentType, body)
	if err != nil {
		return nil, err
	}

	rangeHeader := request.Header.Get("Range")
	hasRange := rangeHeader != ""
	if hasRange {
		rootRange := pagination.FromRangeHeader(rangeHeader)
		r := query.Ranges[""]
		r.Offset = rootRange.Offset
		r.Limit = rootRange.Limit
		query.Ranges[""] = r
	}

	headers := map[string][]string{}
	for k, v := range request.Header {
		headers[k] = v
	}

	cookies := map[string]string{}
	for _, c := range request.Cookies() {
		cookies[c.Name] = c.Value
	}

	return &ApiRequest{
		Action:              action,
		Db:                  db,
		Query:               query,
		Preferences:         prefs,
		AcceptMediaTypes:    parseAccept(request.Header.Get("Accept")),
		ContentMediaType:    contentType,
		Payload:             payload,
		Headers:             headers,
		Cookies:             cookies,
		NegotiatedByProfile: negotiated,
		HasRangeHeader:      hasRange,
	}, nil
}

// negotiateSchema resolves the target schema per §4.3: Accept-Profile for
// reads, Content-Profile for writes, else the configured default.
func negotiateSchema(request *http.Request, cfg SchemaConfig) (schema string, negotiatedByProfile bool, err error) {
	isWrite := request.Method == http.MethodPost || request.Method == http.MethodPatch ||
		request.Method == http.MethodPut || request.Method == http.MethodDelete

	header := constants.HeaderAcceptProfile
	if isWrite {
		header = constants.HeaderContentProfile
	}

	if v := request.Header.Get(header); v != "" {
		if !cfg.SchemaExposed(v) {
			return "", false, apperr.UnacceptableSchema(v)
		}
		return v, true, nil
	}

	return cfg.DefaultSchema(), false, nil
}
