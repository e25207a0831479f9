// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting header/field
names that are shared between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - HTTP Headers: the request/response headers the spec's external
    interface names explicitly.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "pgrestcore"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle; also
	// used as the per-connection `statement_timeout` GUC.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # HTTP Headers

const (
	HeaderXRequestID        = "X-Request-ID"
	HeaderOrigin            = "Origin"
	HeaderXRealIP           = "X-Real-IP"
	HeaderXForwardedFor     = "X-Forwarded-For"
	HeaderAuthorization     = "Authorization"
	HeaderAccept            = "Accept"
	HeaderAcceptProfile     = "Accept-Profile"
	HeaderContentType       = "Content-Type"
	HeaderContentProfile    = "Content-Profile"
	HeaderPrefer            = "Prefer"
	HeaderRange             = "Range"
	HeaderContentRange      = "Content-Range"
	HeaderPreferenceApplied = "Preference-Applied"
	HeaderLocation          = "Location"
	HeaderWWWAuthenticate   = "WWW-Authenticate"
	HeaderAccessControlRequestMethod = "Access-Control-Request-Method"
)

// # JSON Field Identifiers

const (
	FieldCode    = "code"
	FieldMessage = "message"
	FieldDetails = "details"
	FieldHint    = "hint"
)

// # Database Defaults

const (
	// DefaultSchema is used when no Accept-Profile/Content-Profile header
	// is present and the config doesn't override it.
	DefaultSchema = "public"
)
