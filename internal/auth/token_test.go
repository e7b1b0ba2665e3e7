package auth

import (
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

const testTenantID = "6f1f9f1e-9f9e-4f42-8a84-0f6f9b8a0c11"

func testUser() *User {
	return &User{
		ID:       42,
		TenantID: testTenantID,
		Email:    "ops@example.com",
		IsActive: true,
	}
}

func TestTokensIssueAndVerify(t *testing.T) {
	tokens, err := NewTokens("secret", time.Hour)
	require.NoError(t, err)

	signed, expiresAt, err := tokens.Issue(testUser(), "session-1")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := tokens.Verify(signed)
	require.NoError(t, err)
	require.Equal(t, "42", claims.Subject)
	require.Equal(t, testTenantID, claims.TenantID)
	require.Equal(t, "session-1", claims.ID)

	principal, err := claims.Principal()
	require.NoError(t, err)
	require.Equal(t, int64(42), principal.UserID)
	require.Equal(t, testTenantID, principal.TenantID)
}

func TestTokensVerifyCachesClaims(t *testing.T) {
	tokens, err := NewTokens("secret", time.Hour)
	require.NoError(t, err)

	signed, _, err := tokens.Issue(testUser(), "session-1")
	require.NoError(t, err)

	first, err := tokens.Verify(signed)
	require.NoError(t, err)
	second, err := tokens.Verify(signed)
	require.NoError(t, err)
	require.Same(t, first, second, "second verify must be served from cache")
}

func TestTokensVerifyExpired(t *testing.T) {
	tokens, err := NewTokens("secret", -time.Minute)
	require.NoError(t, err)

	signed, _, err := tokens.Issue(testUser(), "session-1")
	require.NoError(t, err)

	_, err = tokens.Verify(signed)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokensVerifyMalformed(t *testing.T) {
	tokens, err := NewTokens("secret", time.Hour)
	require.NoError(t, err)

	_, err = tokens.Verify("not-a-jwt")
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestTokensVerifyWrongSignature(t *testing.T) {
	issuer, err := NewTokens("secret-a", time.Hour)
	require.NoError(t, err)
	verifier, err := NewTokens("secret-b", time.Hour)
	require.NoError(t, err)

	signed, _, err := issuer.Issue(testUser(), "session-1")
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func signRaw(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestTokensVerifyRejectsMissingClaims(t *testing.T) {
	tokens, err := NewTokens("secret", time.Hour)
	require.NoError(t, err)

	expiry := jwt.NewNumericDate(time.Now().Add(time.Hour))

	// Verifies fine, but carries no tenant: malformed, not public.
	noTenant := signRaw(t, "secret", &Claims{
		Email: "ops@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(42, 10),
			ExpiresAt: expiry,
		},
	})
	_, err = tokens.Verify(noTenant)
	require.ErrorIs(t, err, ErrTokenMalformed)

	// No subject either.
	noSubject := signRaw(t, "secret", &Claims{
		TenantID:         testTenantID,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: expiry},
	})
	_, err = tokens.Verify(noSubject)
	require.ErrorIs(t, err, ErrTokenMalformed)
}
