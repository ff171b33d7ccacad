// Package auth turns bearer tokens into the caller identity that scopes every
// service call.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Caller is the authenticated identity behind a request
type Caller struct {
	UserID  int
	StoreID string
	Role    string
	Email   string
}

// HasRole reports whether the caller holds one of roles
func (c Caller) HasRole(roles ...string) bool {
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}

// Claims is the JWT payload. The subject carries the numeric user id.
type Claims struct {
	StoreID string `json:"storeId,omitempty"`
	Role    string `json:"role,omitempty"`
	Email   string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

// Tokens issues and verifies HS256 tokens for one issuer and audience
type Tokens struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewTokens(key []byte, issuer, audience string, ttl time.Duration) *Tokens {
	return &Tokens{
		key:      key,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue signs a token for caller
func (t *Tokens) Issue(caller Caller) (string, error) {
	now := t.now()
	claims := Claims{
		StoreID: caller.StoreID,
		Role:    caller.Role,
		Email:   caller.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(caller.UserID),
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{t.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, audience and expiry and returns the caller
func (t *Tokens) Verify(raw string) (Caller, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (interface{}, error) { return t.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidToken, claims.Subject)
	}
	return Caller{
		UserID:  userID,
		StoreID: claims.StoreID,
		Role:    claims.Role,
		Email:   claims.Email,
	}, nil
}
