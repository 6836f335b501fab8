package pushnotifier

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/jd-116/pushnotifier/env"
)

// DefaultBaseURL is the root of the PushNotifier v2 API
const DefaultBaseURL = "https://api.pushnotifier.de/v2"

// Config holds the deployment-wide settings shared by the transport and every session
type Config struct {
	// Package and APIToken are the fixed application credentials
	Package  string
	APIToken string

	BaseURL string

	// Timeout bounds each HTTP exchange; zero leaves it to the transport
	Timeout time.Duration

	// RenewBeforeCalls makes device listing and sends renew
	// an about-to-expire token first, like AppToken does
	RenewBeforeCalls bool
}

// LoadConfig loads the configuration in from the environment
func LoadConfig() (*Config, error) {
	appPackage, err := env.GetEnv("PushNotifier application package", "PUSHNOTIFIER_PACKAGE")
	if err != nil {
		return nil, err
	}

	apiToken, err := env.GetEnv("PushNotifier API token", "PUSHNOTIFIER_API_TOKEN")
	if err != nil {
		return nil, err
	}

	config := &Config{
		Package:  appPackage,
		APIToken: apiToken,
		BaseURL:  env.LookupEnv("PUSHNOTIFIER_BASE_URL", DefaultBaseURL),
	}

	if env.IsSet("PUSHNOTIFIER_TIMEOUT") {
		config.Timeout, err = env.GetDurationEnv("PushNotifier request timeout", "PUSHNOTIFIER_TIMEOUT")
		if err != nil {
			return nil, err
		}
	}

	if env.IsSet("PUSHNOTIFIER_RENEW_BEFORE_CALLS") {
		config.RenewBeforeCalls, err = env.GetBoolEnv("renew before calls flag", "PUSHNOTIFIER_RENEW_BEFORE_CALLS")
		if err != nil {
			return nil, err
		}
	}

	return config, nil
}

// Authorization is the Basic credential derived from the application credentials
func (c *Config) Authorization() string {
	return base64.StdEncoding.EncodeToString([]byte(c.Package + ":" + c.APIToken))
}

func (c *Config) endpoint(path string) string {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + path
}
