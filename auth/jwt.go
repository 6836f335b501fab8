package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-chi/jwtauth"

	"github.com/jd-116/pushnotifier/env"
	"github.com/jd-116/pushnotifier/util"
)

// JWTManager guards the relay with HS256 bearer tokens
type JWTManager struct {
	Auth       *jwtauth.JWTAuth
	BypassAuth bool
}

// NewJWTManager creates a new JWTManager
// and loads the secret from the environment
func NewJWTManager() (*JWTManager, error) {
	jwtSecretStr, err := env.GetEnv("relay JWT secret key", "RELAY_JWT_SECRET")
	if err != nil {
		return nil, err
	}

	// Try to see if the relay should bypass authentication
	bypassAuth := false
	if value, ok := os.LookupEnv("RELAY_AUTH_BYPASS"); ok {
		if strings.TrimSpace(value) == "1" {
			bypassAuth = true
		}
	}

	// Parse the string into bytes
	encoding := base64.StdEncoding.WithPadding(base64.StdPadding)
	secretBytes, err := encoding.DecodeString(jwtSecretStr)
	if err != nil {
		return nil, err
	}

	return NewJWTManagerWithSecret(secretBytes, bypassAuth), nil
}

// NewJWTManagerWithSecret creates a new JWTManager from raw secret bytes
func NewJWTManagerWithSecret(secret []byte, bypassAuth bool) *JWTManager {
	return &JWTManager{
		Auth:       jwtauth.New("HS256", secret, nil),
		BypassAuth: bypassAuth,
	}
}

// IssueToken creates and signs a new relay token for the given subject.
// A zero ttl issues a token without expiry
func (m *JWTManager) IssueToken(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("cannot issue a token with an empty subject")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}

	_, tokenString, err := m.Auth.Encode(claims)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

type key int

// BypassAuthContextKey is the key to access the BypassAuth boolean field
// on request contexts that are processed by the Authenticated middleware
const BypassAuthContextKey key = iota

// Authenticated handles seeking, verifying, and validating JWT tokens,
// sending appropriate status codes upon failure.
func (m *JWTManager) Authenticated() func(http.Handler) http.Handler {
	// Seek, verify and validate JWT tokens
	verifier := jwtauth.Verify(m.Auth, jwtauth.TokenFromHeader)
	return func(next http.Handler) http.Handler {
		if m.BypassAuth {
			// Skip authentication
			verified := verifier(next)
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := context.WithValue(r.Context(), BypassAuthContextKey, true)
				verified.ServeHTTP(w, r.WithContext(ctx))
			})
		}

		// Compose the verifier and authenticator functions
		return verifier(authenticator(next))
	}
}

// Subject extracts the authenticated caller from the request context,
// or "" if there is none (such as when authentication is bypassed)
func Subject(ctx context.Context) string {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil || claims == nil {
		return ""
	}

	subject, _ := claims["sub"].(string)
	return subject
}

// authenticator sends an error response if token validation failed
func authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())

		if err != nil {
			unauthorized(w)
			return
		}

		if token == nil || !token.Valid {
			unauthorized(w)
			return
		}

		// Token is authenticated, pass it through
		next.ServeHTTP(w, r)
	})
}

// unauthorized sends a response message in the case that validation fails
func unauthorized(w http.ResponseWriter) {
	util.ErrorWithCode(w, errors.New("caller is not authorized to use the relay"),
		http.StatusUnauthorized)
}
