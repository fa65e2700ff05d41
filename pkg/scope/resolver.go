package scope

import (
	"github.com/zavora-ai/adk-go/pkg/auth"
	"github.com/zavora-ai/adk-go/pkg/tool"
)

// Resolver determines which scopes the identity behind a tool invocation
// was granted.
type Resolver interface {
	Resolve(ctx tool.Context) []string
}

// ClaimsScopeResolver reads granted scopes from the auth.Claims stashed on
// the invocation context by auth.ContextWithClaims, the claim
// pkg/auth.JWTValidator populates from a token's "scope"/"scopes" claim. An
// invocation with no claims attached (no authentication configured, or
// authentication disabled) resolves to no granted scopes.
type ClaimsScopeResolver struct{}

func (ClaimsScopeResolver) Resolve(ctx tool.Context) []string {
	claims := auth.ClaimsFromContext(ctx)
	if claims == nil {
		return nil
	}
	return claims.Scopes
}

// StaticScopeResolver grants a fixed set of scopes regardless of the
// invocation, useful for tests and for deployments where every caller of a
// runner shares one trust level.
type StaticScopeResolver struct {
	Scopes []string
}

func (r StaticScopeResolver) Resolve(tool.Context) []string {
	return r.Scopes
}
