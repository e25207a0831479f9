// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package respond provides the response-writing primitives shared by every
HTTP handler: an error envelope matching the spec's `{code, message,
details, hint}` body shape (Error), a plain JSON writer (JSON) and an
empty 204 reply (NoContent). Headers such as Content-Range are set by the
callers, not here.

Architecture:

  - Envelope: error responses follow one predictable JSON structure.
  - JSON: default content-type is 'application/json; charset=utf-8'.
  - Errors: integrates with 'apperr' for consistent error reporting, and
    with 'dberr' upstream for database-error classification.
  - Debug: controlled by [SetDebug]; production responses elide Details/Hint.

This package eliminates the need for manual JSON marshalling of errors in
individual handlers.
*/
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/relaybase/pgrestcore/internal/platform/apperr"
	"github.com/relaybase/pgrestcore/internal/platform/ctxkey"
)

var debug atomic.Bool

// SetDebug toggles whether error responses include Details/Hint. Called
// once at startup from the loaded config.
func SetDebug(on bool) { debug.Store(on) }

// ErrorEnvelope is the JSON envelope for error responses.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(writer http.ResponseWriter, statusCode int, payload interface{}) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(payload)
}

// NoContent writes a 204 No Content response.
func NoContent(writer http.ResponseWriter) {
	writer.WriteHeader(http.StatusNoContent)
}

// Error converts any Go error into a standardized JSON API error response.
func Error(writer http.ResponseWriter, request *http.Request, err error) {
	var appError *apperr.AppError
	if !errors.As(err, &appError) {
		logger := getLoggerFromContext(request)
		logger.ErrorContext(request.Context(), "unhandled_error_swallowed",
			slog.String("error", err.Error()),
			slog.String("request_id", getRequestIDFromContext(request)),
		)
		appError = apperr.Internal(err)
	}

	if appError.HTTPStatus >= 500 {
		logger := getLoggerFromContext(request)
		logger.ErrorContext(request.Context(), "api_server_error",
			slog.String("code", appError.Code),
			slog.String("request_id", getRequestIDFromContext(request)),
			slog.Any("cause", appError.Cause),
		)
	}

	envelope := ErrorEnvelope{Code: appError.Code, Message: appError.Message}
	if debug.Load() {
		envelope.Details = appError.Details
		envelope.Hint = appError.Hint
	}

	JSON(writer, appError.HTTPStatus, envelope)
}

func getLoggerFromContext(request *http.Request) *slog.Logger {
	if logger, ok := request.Context().Value(ctxkey.KeyLogger).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

func getRequestIDFromContext(request *http.Request) string {
	if id, ok := request.Context().Value(ctxkey.KeyRequestID).(string); ok {
		return id
	}
	return ""
}
