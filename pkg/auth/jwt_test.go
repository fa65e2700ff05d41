package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/zavora-ai/adk-go/pkg/auth"
)

const testKeyID = "test-key-id"

func generateRSAKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey, &privateKey.PublicKey
}

func jwksServer(t *testing.T, publicKey *rsa.PublicKey) *httptest.Server {
	t.Helper()
	key, err := jwk.FromRaw(publicKey)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, testKeyID))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))

	keyset := jwk.NewSet()
	require.NoError(t, keyset.AddKey(key))

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := json.Marshal(keyset)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
}

func signTestJWT(t *testing.T, privateKey *rsa.PrivateKey, issuer, audience, subject string, claims map[string]any) string {
	t.Helper()
	token := jwt.New()
	require.NoError(t, token.Set(jwt.IssuerKey, issuer))
	require.NoError(t, token.Set(jwt.AudienceKey, audience))
	require.NoError(t, token.Set(jwt.SubjectKey, subject))
	require.NoError(t, token.Set(jwt.IssuedAtKey, time.Now()))
	require.NoError(t, token.Set(jwt.ExpirationKey, time.Now().Add(time.Hour)))
	for k, v := range claims {
		require.NoError(t, token.Set(k, v))
	}

	key, err := jwk.FromRaw(privateKey)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, testKeyID))

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, key))
	require.NoError(t, err)
	return string(signed)
}

func TestNewJWTValidator_FailsOnUnreachableJWKS(t *testing.T) {
	_, err := auth.NewJWTValidator(auth.JWTValidatorConfig{
		JWKSURL:  "http://127.0.0.1:1/jwks.json",
		Issuer:   "https://issuer.example.com",
		Audience: "aud",
	})
	require.Error(t, err)
}

func TestJWTValidator_ValidateToken(t *testing.T) {
	privateKey, publicKey := generateRSAKeyPair(t)
	server := jwksServer(t, publicKey)
	defer server.Close()

	const issuer = "https://issuer.example.com"
	const audience = "adk-api"
	const subject = "user-123"

	validator, err := auth.NewJWTValidator(auth.JWTValidatorConfig{
		JWKSURL:  server.URL,
		Issuer:   issuer,
		Audience: audience,
	})
	require.NoError(t, err)

	token := signTestJWT(t, privateKey, issuer, audience, subject, map[string]any{
		"email":     "user@example.com",
		"role":      "admin",
		"tenant_id": "tenant-1",
		"scope":     "finance:write verified",
		"plan":      "enterprise",
	})

	claims, err := validator.ValidateToken(t.Context(), token)
	require.NoError(t, err)
	require.Equal(t, subject, claims.Subject)
	require.Equal(t, "user@example.com", claims.Email)
	require.Equal(t, "admin", claims.Role)
	require.Equal(t, "tenant-1", claims.TenantID)
	require.ElementsMatch(t, []string{"finance:write", "verified"}, claims.Scopes)
	require.Equal(t, "enterprise", claims.GetStringClaim("plan"))
}

func TestJWTValidator_ValidateToken_RejectsWrongAudience(t *testing.T) {
	privateKey, publicKey := generateRSAKeyPair(t)
	server := jwksServer(t, publicKey)
	defer server.Close()

	const issuer = "https://issuer.example.com"

	validator, err := auth.NewJWTValidator(auth.JWTValidatorConfig{
		JWKSURL:  server.URL,
		Issuer:   issuer,
		Audience: "expected-audience",
	})
	require.NoError(t, err)

	token := signTestJWT(t, privateKey, issuer, "wrong-audience", "user-1", nil)
	_, err = validator.ValidateToken(t.Context(), token)
	require.Error(t, err)
}

func TestJWTValidator_ValidateToken_RejectsExpiredToken(t *testing.T) {
	privateKey, publicKey := generateRSAKeyPair(t)
	server := jwksServer(t, publicKey)
	defer server.Close()

	const issuer = "https://issuer.example.com"
	const audience = "adk-api"

	validator, err := auth.NewJWTValidator(auth.JWTValidatorConfig{
		JWKSURL:  server.URL,
		Issuer:   issuer,
		Audience: audience,
	})
	require.NoError(t, err)

	tok := jwt.New()
	require.NoError(t, tok.Set(jwt.IssuerKey, issuer))
	require.NoError(t, tok.Set(jwt.AudienceKey, audience))
	require.NoError(t, tok.Set(jwt.SubjectKey, "user-1"))
	require.NoError(t, tok.Set(jwt.ExpirationKey, time.Now().Add(-time.Hour)))
	key, err := jwk.FromRaw(privateKey)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, testKeyID))
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, key))
	require.NoError(t, err)

	_, err = validator.ValidateToken(t.Context(), string(signed))
	require.Error(t, err)
}

func TestClaims_ContextRoundTrip(t *testing.T) {
	claims := &auth.Claims{Subject: "user-1", Role: "admin"}
	ctx := auth.ContextWithClaims(t.Context(), claims)
	require.Same(t, claims, auth.ClaimsFromContext(ctx))
	require.Nil(t, auth.ClaimsFromContext(t.Context()))
}

func TestClaims_HasAnyRole(t *testing.T) {
	claims := &auth.Claims{Role: "editor"}
	require.True(t, claims.HasAnyRole("viewer", "editor"))
	require.False(t, claims.HasAnyRole("admin"))
}
