package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var manager = Caller{UserID: 42, StoreID: "store-1", Role: "Manager", Email: "m@example.com"}

func newTokens() *Tokens {
	return NewTokens([]byte("test-signing-key"), "rental-test", "rental-api", time.Hour)
}

func TestIssueAndVerify(t *testing.T) {
	tokens := newTokens()
	raw, err := tokens.Issue(manager)
	require.NoError(t, err)

	caller, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, manager, caller)
}

func TestVerifyRejects(t *testing.T) {
	tokens := newTokens()
	valid, err := tokens.Issue(manager)
	require.NoError(t, err)

	expired := newTokens()
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(manager)
	require.NoError(t, err)

	otherAudience, err := NewTokens([]byte("test-signing-key"), "rental-test", "elsewhere", time.Hour).Issue(manager)
	require.NoError(t, err)

	otherKey, err := NewTokens([]byte("another-key"), "rental-test", "rental-api", time.Hour).Issue(manager)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "rental-test",
			Audience:  jwt.ClaimStrings{"rental-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":        old,
		"wrong audience": otherAudience,
		"wrong key":      otherKey,
		"bad subject":    badSubject,
		"garbage":        "not-a-token",
		"tampered":       valid + "x",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Verify(raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func newRouter(tokens *Tokens, required bool, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{Authenticate(tokens, required)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRole(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, caller.StoreID)
	})
	r.GET("/", handlers...)
	return r
}

func get(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticateMiddleware(t *testing.T) {
	tokens := newTokens()
	raw, err := tokens.Issue(manager)
	require.NoError(t, err)

	required := newRouter(tokens, true)
	w := get(required, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")

	w = get(required, raw)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "store-1", w.Body.String())

	optional := newRouter(tokens, false)
	w = get(optional, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())

	w = get(optional, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "a presented token must be valid")
}

func TestRequireRole(t *testing.T) {
	tokens := newTokens()
	admins := newRouter(tokens, true, "Admin")

	raw, err := tokens.Issue(manager)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get(admins, raw).Code)

	staff := newRouter(tokens, true, "Admin", "Manager")
	assert.Equal(t, http.StatusOK, get(staff, raw).Code)
}
