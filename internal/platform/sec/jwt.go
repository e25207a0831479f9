// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sec provides the JWT verification boundary between an externally
issued access token and the per-request transaction envelope.

Core Components:

  - AuthClaims: the decoded claim set, kept as a generic map so arbitrary
    claims (not just a fixed application shape) can be propagated into
    PostgreSQL session settings.
  - Verifier: HS256 (default) signature verification of tokens this
    service never issues itself — identity is owned by an external
    provider; this package only validates and extracts claims.

The package enforces a strict boundary between infrastructure-level
security and the executor envelope that consumes its output.
*/
package sec

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the decoded payload of a verified JWT.
//
// Raw holds every claim the token carried, keyed by its JSON name; this is
// exactly the set of session settings the executor propagates as
// `request.jwt.claims.<key>`. Role is extracted separately because it
// drives `SET LOCAL ROLE` and may live under a configurable nested key
// (e.g. "app_metadata.role").
type AuthClaims struct {
	jwt.RegisteredClaims
	Raw  map[string]any
	Role string
}

// Verifier validates JWTs signed with a shared secret (HS256 by default)
// and extracts a role claim from a configurable key path.
type Verifier struct {
	secret      []byte
	audience    string
	roleClaimKey string
}

// NewVerifier constructs a Verifier.
//
// roleClaimKey may be a dotted path (e.g. "app_metadata.role") to reach a
// role claim nested inside another object claim; an empty key defaults to
// the top-level "role" claim.
func NewVerifier(secret []byte, audience, roleClaimKey string) *Verifier {
	if roleClaimKey == "" {
		roleClaimKey = "role"
	}
	return &Verifier{secret: secret, audience: audience, roleClaimKey: roleClaimKey}
}

// VerifyToken checks the signature and validity of a JWT string and
// extracts its claim set.
func (v *Verifier) VerifyToken(tokenStr string) (*AuthClaims, error) {
	claims := jwt.MapClaims{}

	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("sec: invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("sec: invalid token claims")
	}

	role, _ := lookupPath(claims, v.roleClaimKey).(string)

	return &AuthClaims{
		Raw:  map[string]any(claims),
		Role: role,
	}, nil
}

// lookupPath walks a dotted key path through nested map[string]any values.
func lookupPath(claims jwt.MapClaims, path string) any {
	var cur any = map[string]any(claims)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

// FlattenClaims renders Raw into a flat `key -> string value` set suitable
// for GUC propagation (`request.jwt.claims.<key>`), serializing non-string
// values (numbers, nested objects/arrays, booleans) as their JSON text.
func (c *AuthClaims) FlattenClaims() map[string]string {
	out := make(map[string]string, len(c.Raw))
	for k, v := range c.Raw {
		out[k] = stringifyClaim(v)
	}
	return out
}
