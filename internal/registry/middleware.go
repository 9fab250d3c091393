package registry

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/config"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/monitoring"
)

type contextKey string

const principalContextKey contextKey = "principal"

// TokenValidator extracts the caller principal from a signed JWT. The
// registry core treats principals as opaque, pre-authenticated identities;
// this is the transport-boundary component that does the authenticating.
type TokenValidator struct {
	jwtSecret []byte
	issuer    string
}

// NewTokenValidator creates a new token validator
func NewTokenValidator(cfg *config.JWTConfig) *TokenValidator {
	return &TokenValidator{
		jwtSecret: []byte(cfg.SecretKey),
		issuer:    cfg.Issuer,
	}
}

// PrincipalFromToken validates the token and returns its subject as the
// caller principal.
func (tv *TokenValidator) PrincipalFromToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return "", fmt.Errorf("token expired")
	}
	if tv.issuer != "" && claims.Issuer != tv.issuer {
		return "", fmt.Errorf("unexpected token issuer: %s", claims.Issuer)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}

	return claims.Subject, nil
}

// IssueToken mints a token for the given principal, used by tests and tooling.
func (tv *TokenValidator) IssueToken(principal string, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   principal,
		Issuer:    tv.issuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tv.jwtSecret)
}

// PrincipalFromContext returns the authenticated caller principal, or empty
// string if the request carried none.
func PrincipalFromContext(ctx context.Context) string {
	if principal, ok := ctx.Value(principalContextKey).(string); ok {
		return principal
	}
	return ""
}

// principalMiddleware authenticates the bearer token and stows the caller
// principal in the request context.
func (s *Server) principalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeErrorResponse(w, http.StatusUnauthorized, "Missing authorization header", nil)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			s.writeErrorResponse(w, http.StatusUnauthorized, "Invalid authorization header", nil)
			return
		}

		principal, err := s.validator.PrincipalFromToken(tokenString)
		if err != nil {
			s.writeErrorResponse(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}

		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// metricsMiddleware records request counts and latencies per route.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		monitoring.RecordHTTPRequest(r.Method, r.URL.Path, recorder.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
