// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr bridges low-level PostgreSQL driver errors and the
// engine's [apperr.AppError] taxonomy, classifying by SQLSTATE class per
// the error handling design (constraint violations -> 409, syntax/access
// -> 400, auth -> 403, user RAISE EXCEPTION -> 400 by default).
package dberr

import (
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/relaybase/pgrestcore/internal/platform/apperr"
)

// Wrap inspects a database error and wraps it into a meaningful
// [apperr.AppError], hiding internal database details from the client
// while classifying the error by SQLSTATE class.
func Wrap(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("Resource")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return wrapPgError(pgErr)
	}

	return apperr.Internal(err)
}

// wrapPgError classifies a *pgconn.PgError by its SQLSTATE class (the
// first two digits of the 5-character code).
func wrapPgError(pgErr *pgconn.PgError) error {
	if pgErr.Code == pgerrcode.RaiseException {
		return apperr.RaiseException(pgErr.Message, pgErr).WithDetails(pgErr.Detail).WithHint(pgErr.Hint)
	}

	switch sqlstateClass(pgErr.Code) {
	case "23": // integrity_constraint_violation
		return apperr.DatabaseConstraint(constraintMessage(pgErr), pgErr).
			WithDetails(pgErr.Detail).WithHint(pgErr.Hint)
	case "42": // syntax_error_or_access_rule_violation
		return apperr.DatabaseSyntaxOrAccess(pgErr.Message, pgErr).
			WithDetails(pgErr.Detail).WithHint(pgErr.Hint)
	case "28": // invalid_authorization_specification
		return apperr.DatabaseAuth(pgErr.Message, pgErr).
			WithDetails(pgErr.Detail).WithHint(pgErr.Hint)
	default:
		return apperr.Internal(pgErr).WithDetails(pgErr.Message)
	}
}

func sqlstateClass(code string) string {
	if len(code) < 2 {
		return code
	}
	return code[:2]
}

// constraintMessage gives a slightly more client-legible message for the
// most common constraint-violation subclasses.
func constraintMessage(pgErr *pgconn.PgError) string {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return "Duplicate key value violates a unique constraint"
	case pgerrcode.ForeignKeyViolation:
		return "A foreign key constraint was violated"
	case pgerrcode.NotNullViolation:
		return "A required column was null"
	case pgerrcode.CheckViolation:
		return "A check constraint was violated"
	default:
		if strings.TrimSpace(pgErr.Message) == "" {
			return "A database constraint was violated"
		}
		return pgErr.Message
	}
}
