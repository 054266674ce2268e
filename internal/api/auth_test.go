package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"homeservices/internal/config"
	"homeservices/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	auth := NewAuthenticator(testConfig(), nil)

	t.Run("valid", func(t *testing.T) {
		token, err := IssueToken(testSecret, "homeservices-test", "provider-7", models.RoleProvider, time.Minute)
		require.NoError(t, err)

		actor, err := auth.ParseToken(token)
		require.NoError(t, err)
		assert.Equal(t, "provider-7", actor.UserID)
		assert.Equal(t, models.RoleProvider, actor.Role)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := IssueToken("another-secret", "homeservices-test", "u-1", models.RoleCustomer, time.Minute)
		require.NoError(t, err)
		_, err = auth.ParseToken(token)
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := IssueToken(testSecret, "someone-else", "u-1", models.RoleCustomer, time.Minute)
		require.NoError(t, err)
		_, err = auth.ParseToken(token)
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := IssueToken(testSecret, "homeservices-test", "u-1", models.RoleCustomer, -time.Minute)
		require.NoError(t, err)
		_, err = auth.ParseToken(token)
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("unknown role", func(t *testing.T) {
		token, err := IssueToken(testSecret, "homeservices-test", "u-1", models.Role("root"), time.Minute)
		require.NoError(t, err)
		_, err = auth.ParseToken(token)
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		claims := Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", Issuer: "homeservices-test"}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = auth.ParseToken(token)
		assert.ErrorIs(t, err, errInvalidToken)
	})
}

func TestWrapRateLimitsPerSubject(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 2}
	auth := NewAuthenticator(cfg, func(id string) bool { return id == "banned" })

	handler := auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(actor.UserID))
	}))

	call := func(user string) *httptest.ResponseRecorder {
		token, err := IssueToken(testSecret, "homeservices-test", user, models.RoleCustomer, time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := call("c-1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "c-1", first.Body.String())
	assert.Equal(t, http.StatusOK, call("c-1").Code)
	assert.Equal(t, http.StatusTooManyRequests, call("c-1").Code)

	// Buckets are per subject.
	assert.Equal(t, http.StatusOK, call("c-2").Code)

	blocked := call("banned")
	assert.Equal(t, http.StatusForbidden, blocked.Code)
	assert.Contains(t, blocked.Body.String(), errBlocked.Error())
}

func TestWrapPublicPath(t *testing.T) {
	auth := NewAuthenticator(testConfig(), nil)
	handler := auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := ActorFromContext(r.Context())
		assert.False(t, ok)
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), errMissingToken.Error())
}

func TestRemoteHost(t *testing.T) {
	assert.Equal(t, "10.0.0.5", remoteHost("10.0.0.5:52311"))
	assert.Equal(t, "::1", remoteHost("[::1]:8080"))
	assert.Equal(t, clientKeyUnknown, remoteHost("garbage"))
}
