package pushnotifier

import "time"

// RenewalWindow is how long before expiry an app token is considered about to expire
const RenewalWindow = 48 * time.Hour

// AppToken is a bearer credential issued by the login and refresh endpoints.
// A zero ExpiresAt means the token never triggers renewal
type AppToken struct {
	Token     string
	ExpiresAt time.Time
}

// NeverExpires reports whether the token has no expiry set
func (t AppToken) NeverExpires() bool {
	return t.ExpiresAt.IsZero()
}

// IsAboutToExpire reports whether less than RenewalWindow remains before the token expires.
// Tokens without an expiry are never about to expire
func (t AppToken) IsAboutToExpire(now time.Time) bool {
	if t.NeverExpires() {
		return false
	}

	return t.ExpiresAt.Sub(now) < RenewalWindow
}

// Remaining is the lifetime left on the token, or 0 for tokens that never expire
func (t AppToken) Remaining(now time.Time) time.Duration {
	if t.NeverExpires() {
		return 0
	}

	return t.ExpiresAt.Sub(now)
}

// tokenResponse is the success shape of the login and refresh endpoints
type tokenResponse struct {
	AppToken  string `json:"app_token"`
	ExpiresAt int64  `json:"expires_at"`
}

func (r tokenResponse) appToken() AppToken {
	return AppToken{
		Token:     r.AppToken,
		ExpiresAt: fromUnix(r.ExpiresAt),
	}
}

// fromUnix converts wire timestamps (Unix seconds) into times,
// keeping 0 as the zero time
func fromUnix(seconds int64) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0)
}
