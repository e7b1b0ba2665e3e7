package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/atlas-crm/atlas-crm/internal/shared"
)

// verifiedTokenCacheSize bounds the in-process cache of verified tokens.
const verifiedTokenCacheSize = 1024

var (
	// ErrTokenExpired indicates a well-formed token past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenMalformed indicates a token that cannot be parsed, or one that
	// verifies but lacks the subject or tenant claim.
	ErrTokenMalformed = errors.New("auth: token malformed")
	// ErrTokenInvalid indicates a signature or claim validation failure.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims carries the identity claims embedded in an access token. The jti
// claim doubles as the login-session identifier.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Principal converts verified claims into a request principal. Claims that
// verify but carry no usable subject or tenant are malformed, never "public".
func (c *Claims) Principal() (*shared.Principal, error) {
	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, ErrTokenMalformed
	}
	if c.TenantID == "" {
		return nil, ErrTokenMalformed
	}
	return &shared.Principal{
		UserID:   userID,
		TenantID: c.TenantID,
		Email:    c.Email,
	}, nil
}

// Tokens issues and verifies HMAC-signed access tokens. Verified claims are
// kept in a small LRU so repeat requests skip the signature check.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	cache  *lru.Cache[string, *Claims]
}

// NewTokens constructs a Tokens helper.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret must be provided")
	}
	cache, err := lru.New[string, *Claims](verifiedTokenCacheSize)
	if err != nil {
		return nil, err
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, cache: cache}, nil
}

// Issue signs a new access token for the user, stamping the login-session id
// into the jti claim.
func (t *Tokens) Issue(user *User, sessionID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(t.ttl)
	claims := &Claims{
		TenantID: user.TenantID,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates the token signature and expiry and returns its claims.
func (t *Tokens) Verify(tokenString string) (*Claims, error) {
	if cached, ok := t.cache.Get(tokenString); ok {
		if cached.ExpiresAt != nil && time.Now().Before(cached.ExpiresAt.Time) {
			return cached, nil
		}
		t.cache.Remove(tokenString)
		return nil, ErrTokenExpired
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		default:
			return nil, ErrTokenInvalid
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrTokenInvalid
	}
	if _, err := claims.Principal(); err != nil {
		return nil, err
	}

	t.cache.Add(tokenString, claims)
	return claims, nil
}
