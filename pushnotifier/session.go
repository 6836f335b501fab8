package pushnotifier

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hako/durafmt"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Session holds the authentication state for one PushNotifier user:
// the username, the current app token and the fixed Basic authorization.
//
// A Session is not safe for concurrent use;
// callers sharing one must serialize access themselves
type Session struct {
	transport     *Transport
	config        *Config
	authorization string
	logger        zerolog.Logger

	username string
	appToken AppToken

	now func() time.Time
}

// NewSession creates an unauthenticated session on top of a shared transport
func NewSession(transport *Transport, config *Config, logger zerolog.Logger) *Session {
	return &Session{
		transport:     transport,
		config:        config,
		authorization: config.Authorization(),
		logger:        logger.With().Str("component", "session").Logger(),
		now:           time.Now,
	}
}

// NewSessionWithToken creates a session that resumes with a previously issued app token
func NewSessionWithToken(transport *Transport, config *Config, logger zerolog.Logger,
	username string, token string, expiresAt time.Time) *Session {
	s := NewSession(transport, config, logger)
	s.username = username
	s.SetAppToken(token, expiresAt)
	return s
}

// Username is the user the current app token was issued for, if known
func (s *Session) Username() string {
	return s.username
}

// CurrentToken returns the held app token without any renewal check
func (s *Session) CurrentToken() AppToken {
	return s.appToken
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges user credentials for a new app token.
// If apply is set the token (and username) replace the session's current ones;
// the new token is returned either way.
// A failed login leaves the session untouched
func (s *Session) Login(ctx context.Context, username string, password string, apply bool) (AppToken, error) {
	res, err := s.call(ctx, http.MethodPost, "/user/login", nil, loginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return AppToken{}, err
	}

	token, err := decodeToken(res)
	if err != nil {
		return AppToken{}, err
	}

	if apply {
		s.username = username
		s.appToken = token
	}
	s.logIssued("logged in to PushNotifier", username, token, apply)

	return token, nil
}

// RefreshToken exchanges the current app token for a new one.
// It can be called at any time, not only when the token is about to expire
func (s *Session) RefreshToken(ctx context.Context, apply bool) (AppToken, error) {
	current := s.appToken.Token
	res, err := s.call(ctx, http.MethodGet, "/user/refresh", &current, nil)
	if err != nil {
		return AppToken{}, err
	}

	token, err := decodeToken(res)
	if err != nil {
		return AppToken{}, err
	}

	if apply {
		s.appToken = token
	}
	s.logIssued("refreshed PushNotifier app token", s.username, token, apply)

	return token, nil
}

// AppToken returns the current app token value,
// first renewing it if it is about to expire
func (s *Session) AppToken(ctx context.Context) (string, error) {
	if s.appToken.IsAboutToExpire(s.now()) {
		_, err := s.RefreshToken(ctx, true)
		if err != nil {
			return "", errors.Wrap(err, "could not renew app token")
		}
	}

	return s.appToken.Token, nil
}

// SetAppToken replaces the held app token verbatim.
// A zero expiresAt disables automatic renewal
func (s *Session) SetAppToken(token string, expiresAt time.Time) {
	s.appToken = AppToken{
		Token:     token,
		ExpiresAt: expiresAt,
	}
}

// requestToken is the app token sent on authenticated calls
func (s *Session) requestToken(ctx context.Context) (*string, error) {
	if s.config.RenewBeforeCalls {
		token, err := s.AppToken(ctx)
		if err != nil {
			return nil, err
		}
		return &token, nil
	}

	token := s.appToken.Token
	return &token, nil
}

func (s *Session) call(ctx context.Context, method string, path string, appToken *string, body interface{}) (*Response, error) {
	return s.transport.Do(ctx, Call{
		Method:        method,
		URL:           s.config.endpoint(path),
		Authorization: s.authorization,
		AppToken:      appToken,
		Body:          body,
	})
}

func (s *Session) logIssued(msg string, username string, token AppToken, applied bool) {
	event := s.logger.Info().Str("username", username).Bool("applied", applied)
	if token.NeverExpires() {
		event.Msg(msg + "; token never expires")
		return
	}

	humanDuration := durafmt.Parse(token.Remaining(s.now())).LimitFirstN(2).String()
	event.Time("expires_at", token.ExpiresAt).Msgf("%s; token expires in %s", msg, humanDuration)
}

// decodeToken parses the login/refresh success shape,
// mapping an error envelope to an AuthenticationError
func decodeToken(res *Response) (AppToken, error) {
	if message, ok := serviceError(res.Body); ok {
		return AppToken{}, NewAuthenticationError(message)
	}

	var payload tokenResponse
	err := json.Unmarshal(res.Body, &payload)
	if err != nil {
		return AppToken{}, NewProtocolError(res.Body, err)
	}
	if payload.AppToken == "" {
		return AppToken{}, NewProtocolError(res.Body, errors.New("response has no app_token"))
	}

	return payload.appToken(), nil
}
