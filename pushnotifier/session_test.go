package pushnotifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

func TestLogin(t *testing.T) {
	m := newMockAPI(t)
	expiresAt := time.Now().Add(200 * time.Hour).Unix()

	var received loginRequest
	var hasAppToken bool
	var authorization string
	m.handle(http.MethodPost, "/v2/user/login", func(w http.ResponseWriter, r *http.Request) {
		_, hasAppToken = r.Header["X-Apptoken"]
		authorization = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&received)
		fmt.Fprintf(w, `{"app_token":"abc","expires_at":%d}`, expiresAt)
	})

	s := newTestSession(t, m)
	token, err := s.Login(context.Background(), "alice", "secret", true)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if received.Username != "alice" || received.Password != "secret" {
		t.Errorf("Unexpected credentials sent: %+v", received)
	}
	if hasAppToken {
		t.Error("Login must not send X-AppToken")
	}
	if authorization != "Basic "+m.config().Authorization() {
		t.Errorf("Unexpected authorization header %s", authorization)
	}
	if token.Token != "abc" || token.ExpiresAt.Unix() != expiresAt {
		t.Errorf("Unexpected token %+v", token)
	}
	if s.Username() != "alice" {
		t.Errorf("Expected username alice, got %s", s.Username())
	}

	// 200h away, so reading the token must not renew it
	value, err := s.AppToken(context.Background())
	if err != nil {
		t.Fatalf("AppToken failed: %v", err)
	}
	if value != "abc" {
		t.Errorf("Expected abc, got %s", value)
	}
	if n := m.count(http.MethodGet, "/v2/user/refresh"); n != 0 {
		t.Errorf("Expected no refresh, got %d", n)
	}
}

func TestLogin_NoApply(t *testing.T) {
	m := newMockAPI(t)
	m.respond(http.MethodPost, "/v2/user/login", http.StatusOK, `{"app_token":"new","expires_at":0}`)

	s := newTestSession(t, m)
	s.SetAppToken("old", time.Time{})

	token, err := s.Login(context.Background(), "alice", "secret", false)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if token.Token != "new" {
		t.Errorf("Expected the new token to be returned, got %s", token.Token)
	}
	if s.CurrentToken().Token != "old" {
		t.Errorf("Session token changed without apply: %s", s.CurrentToken().Token)
	}
	if s.Username() != "" {
		t.Errorf("Session username changed without apply: %s", s.Username())
	}
}

func TestLogin_LogsLoggedInUser(t *testing.T) {
	m := newMockAPI(t)
	m.respond(http.MethodPost, "/v2/user/login", http.StatusOK, `{"app_token":"new","expires_at":0}`)

	var logs bytes.Buffer
	config := m.config()
	s := NewSessionWithToken(connectedTransport(t, config), config, zerolog.New(&logs),
		"bob", "old", time.Time{})

	_, err := s.Login(context.Background(), "alice", "secret", false)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !strings.Contains(logs.String(), `"username":"alice"`) {
		t.Errorf("Expected the login to be logged for alice, got %s", logs.String())
	}
	if s.Username() != "bob" {
		t.Errorf("Session username changed without apply: %s", s.Username())
	}
}

func TestLogin_Rejected(t *testing.T) {
	m := newMockAPI(t)
	m.respond(http.MethodPost, "/v2/user/login", http.StatusOK, `{"status":"error","message":"invalid credentials"}`)

	s := newTestSession(t, m)
	expiresAt := time.Now().Add(100 * time.Hour)
	s.SetAppToken("previous", expiresAt)

	_, err := s.Login(context.Background(), "alice", "wrong", true)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthenticationError, got %T: %v", err, err)
	}
	if authErr.Message != "invalid credentials" {
		t.Errorf("Expected service message, got %q", authErr.Message)
	}

	current := s.CurrentToken()
	if current.Token != "previous" || !current.ExpiresAt.Equal(expiresAt) {
		t.Errorf("Failed login changed the session: %+v", current)
	}
}

func TestLogin_MissingToken(t *testing.T) {
	m := newMockAPI(t)
	m.respond(http.MethodPost, "/v2/user/login", http.StatusOK, `{"expires_at":1}`)

	s := newTestSession(t, m)
	_, err := s.Login(context.Background(), "alice", "secret", true)
	var protocolErr *ProtocolError
	if !errors.As(err, &protocolErr) {
		t.Fatalf("Expected ProtocolError, got %T: %v", err, err)
	}
}

func TestRefreshToken(t *testing.T) {
	m := newMockAPI(t)
	var sentToken string
	m.handle(http.MethodGet, "/v2/user/refresh", func(w http.ResponseWriter, r *http.Request) {
		sentToken = r.Header.Get("X-AppToken")
		w.Write([]byte(`{"app_token":"renewed","expires_at":1900000000}`))
	})

	s := newTestSession(t, m)
	s.SetAppToken("current", time.Time{})

	// Refresh is allowed at any time, even for tokens that never expire
	token, err := s.RefreshToken(context.Background(), false)
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if sentToken != "current" {
		t.Errorf("Expected the current token as credential, got %s", sentToken)
	}
	if token.Token != "renewed" {
		t.Errorf("Unexpected token %+v", token)
	}
	if s.CurrentToken().Token != "current" {
		t.Error("RefreshToken without apply changed the session")
	}

	if _, err := s.RefreshToken(context.Background(), true); err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if current := s.CurrentToken(); current.Token != "renewed" || current.ExpiresAt.Unix() != 1900000000 {
		t.Errorf("RefreshToken with apply did not replace the token: %+v", current)
	}
}

func TestRefreshToken_Rejected(t *testing.T) {
	m := newMockAPI(t)
	m.respond(http.MethodGet, "/v2/user/refresh", http.StatusOK, `{"status":"error","message":"token revoked"}`)

	s := newTestSession(t, m)
	s.SetAppToken("current", time.Time{})

	_, err := s.RefreshToken(context.Background(), true)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthenticationError, got %T: %v", err, err)
	}
	if s.CurrentToken().Token != "current" {
		t.Error("Failed refresh changed the session")
	}
}

func TestAppToken_Renewal(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name            string
		expiresAt       time.Time
		expectedRefresh int
		expectedToken   string
	}{
		{"never expires", time.Time{}, 0, "current"},
		{"well before expiry", now.Add(72 * time.Hour), 0, "current"},
		{"inside renewal window", now.Add(47 * time.Hour), 1, "renewed"},
		{"already expired", now.Add(-time.Minute), 1, "renewed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockAPI(t)
			m.respond(http.MethodGet, "/v2/user/refresh", http.StatusOK,
				fmt.Sprintf(`{"app_token":"renewed","expires_at":%d}`, now.Add(30*24*time.Hour).Unix()))

			s := newTestSession(t, m)
			fixedClock(s, now)
			s.SetAppToken("current", tt.expiresAt)

			value, err := s.AppToken(context.Background())
			if err != nil {
				t.Fatalf("AppToken failed: %v", err)
			}
			if value != tt.expectedToken {
				t.Errorf("Expected %s, got %s", tt.expectedToken, value)
			}
			if n := m.count(http.MethodGet, "/v2/user/refresh"); n != tt.expectedRefresh {
				t.Errorf("Expected %d refresh calls, got %d", tt.expectedRefresh, n)
			}
		})
	}
}

func TestAppToken_RenewalFailure(t *testing.T) {
	m := newMockAPI(t)
	m.respond(http.MethodGet, "/v2/user/refresh", http.StatusUnauthorized, `{}`)

	s := newTestSession(t, m)
	s.SetAppToken("stale", time.Now().Add(time.Hour))

	_, err := s.AppToken(context.Background())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthenticationError, got %T: %v", err, err)
	}
}

func TestSetAppTokenRoundTrip(t *testing.T) {
	m := newMockAPI(t)
	config := m.config()
	s := NewSessionWithToken(connectedTransport(t, config), config, zerolog.Nop(),
		"alice", "preset", time.Now().Add(100*time.Hour))

	value, err := s.AppToken(context.Background())
	if err != nil {
		t.Fatalf("AppToken failed: %v", err)
	}
	if value != "preset" {
		t.Errorf("Expected preset, got %s", value)
	}
	if s.Username() != "alice" {
		t.Errorf("Expected alice, got %s", s.Username())
	}
	if n := m.total(); n != 0 {
		t.Errorf("Expected no network calls, got %d", n)
	}
}

func TestAuthenticatedCallUnauthorized(t *testing.T) {
	m := newMockAPI(t)
	m.respond(http.MethodGet, "/v2/devices", http.StatusUnauthorized, `[{"id":"1"}]`)
	m.respond(http.MethodPut, "/v2/notifications/text", http.StatusUnauthorized, `{"error":[]}`)

	s := newTestSession(t, m)
	s.SetAppToken("expired", time.Time{})

	_, err := s.GetDevices(context.Background())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Errorf("Expected AuthenticationError from GetDevices, got %T: %v", err, err)
	}

	_, err = s.SendMessage(context.Background(), []string{"d1"}, "hi", false)
	if !errors.As(err, &authErr) {
		t.Errorf("Expected AuthenticationError from SendMessage, got %T: %v", err, err)
	}
}
