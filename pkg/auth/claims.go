// Package auth provides JWT-based identity: validating tokens against a
// JWKS endpoint, extracting claims, and propagating those claims through a
// context.Context so collaborators further down the call chain (notably
// pkg/scope's ClaimsScopeResolver) can read them without re-parsing a token.
package auth

import "context"

type contextKey string

const claimsContextKey contextKey = "adk_auth_claims"

// Claims holds the validated claims from a JWT, covering the fields common
// to most identity providers plus an open bag for anything else the token
// carries.
type Claims struct {
	// Subject is the unique user identifier (sub claim).
	Subject string `json:"sub"`

	// Email is the user's email address, if present.
	Email string `json:"email,omitempty"`

	// Role supports coarse role-based checks (RequireRole-style gating).
	Role string `json:"role,omitempty"`

	// TenantID supports multi-tenant deployments.
	TenantID string `json:"tenant_id,omitempty"`

	// Scopes lists the OAuth-style scopes granted to the user. This is the
	// claim pkg/scope's ClaimsScopeResolver reads.
	Scopes []string `json:"scopes,omitempty"`

	// Custom holds every claim not mapped to one of the fields above.
	Custom map[string]any `json:"-"`
}

// GetClaim retrieves a custom claim by key.
func (c *Claims) GetClaim(key string) (any, bool) {
	if c == nil || c.Custom == nil {
		return nil, false
	}
	val, ok := c.Custom[key]
	return val, ok
}

// GetStringClaim retrieves a custom claim as a string, or "" if absent or
// not a string.
func (c *Claims) GetStringClaim(key string) string {
	if val, ok := c.GetClaim(key); ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// HasRole reports whether the claims carry exactly this role.
func (c *Claims) HasRole(role string) bool {
	return c != nil && c.Role == role
}

// HasAnyRole reports whether the claims carry any of the given roles.
func (c *Claims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

// ContextWithClaims returns a new context carrying claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext extracts claims stored by ContextWithClaims, or nil if
// none are present.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}
