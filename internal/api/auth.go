package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"homeservices/internal/config"
	"homeservices/internal/domain"
	"homeservices/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
	errBlocked      = errors.New("user is blocked")
	errRateLimited  = errors.New("rate limit exceeded")
)

// Claims is the identity token payload: sub is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies identity tokens and applies the per-subject rate limit.
type Authenticator struct {
	secret  []byte
	issuer  string
	blocked func(userID string) bool
	limiter *rateLimiter
}

func NewAuthenticator(cfg config.APIConfig, blocked func(userID string) bool) *Authenticator {
	if blocked == nil {
		blocked = func(string) bool { return false }
	}
	return &Authenticator{
		secret:  []byte(cfg.Auth.JWTSecret),
		issuer:  cfg.Auth.Issuer,
		blocked: blocked,
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

// ParseToken validates an HS256 token and returns the caller it names.
func (a *Authenticator) ParseToken(raw string) (domain.Actor, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", errInvalidToken, err)
	}

	role, ok := models.ParseRole(claims.Role)
	if !ok || claims.Subject == "" {
		return domain.Actor{}, errInvalidToken
	}
	return domain.Actor{UserID: claims.Subject, Role: role}, nil
}

// IssueToken signs a token for userID. Used by tooling and tests.
func IssueToken(secret, issuer, userID string, role models.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Wrap authenticates every request except the public paths.
func (a *Authenticator) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			if !a.limiter.allow(remoteHost(r.RemoteAddr)) {
				writeError(w, http.StatusTooManyRequests, errRateLimited.Error())
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		actor, err := a.authenticate(r)
		if err != nil {
			code := http.StatusUnauthorized
			if errors.Is(err, errBlocked) {
				code = http.StatusForbidden
			}
			writeError(w, code, rootMessage(err))
			return
		}

		if !a.limiter.allow(actor.UserID) {
			writeError(w, http.StatusTooManyRequests, errRateLimited.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (domain.Actor, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return domain.Actor{}, errMissingToken
	}

	actor, err := a.ParseToken(strings.TrimSpace(token))
	if err != nil {
		return domain.Actor{}, err
	}
	if a.blocked(actor.UserID) {
		return domain.Actor{}, errBlocked
	}
	return actor, nil
}

func isPublicPath(path string) bool {
	return path == "/healthz"
}

func rootMessage(err error) string {
	for _, known := range []error{errMissingToken, errInvalidToken, errBlocked} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

type actorKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the authenticated caller, if any.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(domain.Actor)
	return actor, ok
}
