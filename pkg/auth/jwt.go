package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator validates a bearer token and returns the claims it carries.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// JWTValidatorConfig configures a JWTValidator.
type JWTValidatorConfig struct {
	// JWKSURL is the provider's JSON Web Key Set endpoint.
	JWKSURL string

	// Issuer is the expected iss claim.
	Issuer string

	// Audience is the expected aud claim.
	Audience string

	// RefreshInterval is the minimum interval between JWKS refreshes.
	// Defaults to 15 minutes.
	RefreshInterval time.Duration
}

// standardClaims are claim names already mapped onto Claims' own fields;
// everything else lands in Claims.Custom.
var standardClaims = map[string]bool{
	"sub": true, "email": true, "role": true, "tenant_id": true,
	"scope": true, "scopes": true,
	"iss": true, "aud": true, "exp": true, "iat": true, "nbf": true,
}

// JWTValidator validates JWTs against a JWKS endpoint, auto-refreshing the
// key set in the background so key rotation on the provider's side never
// requires a restart here.
type JWTValidator struct {
	jwksURL  string
	cache    *jwk.Cache
	issuer   string
	audience string
}

// NewJWTValidator fetches the JWKS once (to fail fast on misconfiguration)
// and registers it for periodic background refresh.
func NewJWTValidator(cfg JWTValidatorConfig) (*JWTValidator, error) {
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = 15 * time.Minute
	}

	ctx := context.Background()
	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(cfg.RefreshInterval)); err != nil {
		return nil, fmt.Errorf("auth: registering JWKS url: %w", err)
	}
	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("auth: fetching JWKS from %s: %w", cfg.JWKSURL, err)
	}

	return &JWTValidator{
		jwksURL:  cfg.JWKSURL,
		cache:    cache,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
	}, nil
}

// ValidateToken verifies tokenString's signature against the cached JWKS,
// its expiry, issuer, and audience, and extracts its claims.
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("auth: fetching cached JWKS: %w", err)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	return claimsFromToken(token), nil
}

func claimsFromToken(token jwt.Token) *Claims {
	claims := &Claims{Subject: token.Subject(), Custom: make(map[string]any)}

	if v, ok := token.Get("email"); ok {
		claims.Email, _ = v.(string)
	}
	if v, ok := token.Get("role"); ok {
		claims.Role, _ = v.(string)
	}
	if v, ok := token.Get("tenant_id"); ok {
		claims.TenantID, _ = v.(string)
	}
	claims.Scopes = extractScopes(token)

	for it := token.Iterate(context.Background()); it.Next(context.Background()); {
		pair := it.Pair()
		key, _ := pair.Key.(string)
		if key == "" || standardClaims[key] {
			continue
		}
		claims.Custom[key] = pair.Value
	}

	return claims
}

// extractScopes supports both the single space-delimited "scope" claim
// (RFC 8693 convention) and a "scopes" array claim.
func extractScopes(token jwt.Token) []string {
	if v, ok := token.Get("scope"); ok {
		if s, ok := v.(string); ok && s != "" {
			return strings.Fields(s)
		}
	}
	if v, ok := token.Get("scopes"); ok {
		switch scopes := v.(type) {
		case []string:
			return scopes
		case []any:
			out := make([]string, 0, len(scopes))
			for _, s := range scopes {
				if str, ok := s.(string); ok {
					out = append(out, str)
				}
			}
			return out
		}
	}
	return nil
}

// Close is a no-op: jwk.Cache has no explicit stop, its refresh goroutine
// exits with the process.
func (v *JWTValidator) Close() {}
