package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jd-116/pushnotifier/env"
	"github.com/jd-116/pushnotifier/pushnotifier"
)

// openSession establishes a session from the environment:
// a pre-issued app token is applied verbatim,
// otherwise the configured user credentials are used to log in
func (a *application) openSession(ctx context.Context) (*pushnotifier.Session, error) {
	username := env.LookupEnv("PUSHNOTIFIER_USERNAME", "")

	if appToken, ok := lookupNonEmpty("PUSHNOTIFIER_APP_TOKEN"); ok {
		expiresAt := time.Time{}
		if env.IsSet("PUSHNOTIFIER_APP_TOKEN_EXPIRES_AT") {
			seconds, err := env.GetIntEnv("app token expiry (Unix seconds)", "PUSHNOTIFIER_APP_TOKEN_EXPIRES_AT")
			if err != nil {
				return nil, err
			}
			if seconds != 0 {
				expiresAt = time.Unix(int64(seconds), 0)
			}
		}

		a.logger.Debug().Str("username", username).Msg("resuming session from a configured app token")
		return pushnotifier.NewSessionWithToken(a.transport, a.config, a.logger,
			username, appToken, expiresAt), nil
	}

	password, err := env.GetEnv("PushNotifier password", "PUSHNOTIFIER_PASSWORD")
	if err != nil || username == "" {
		return nil, errors.New("no PUSHNOTIFIER_APP_TOKEN configured and " +
			"PUSHNOTIFIER_USERNAME/PUSHNOTIFIER_PASSWORD are incomplete")
	}

	session := pushnotifier.NewSession(a.transport, a.config, a.logger)
	_, err = session.Login(ctx, username, password, true)
	if err != nil {
		return nil, err
	}

	return session, nil
}

func lookupNonEmpty(varName string) (string, bool) {
	value := env.LookupEnv(varName, "")
	return value, value != ""
}
