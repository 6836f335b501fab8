package pushnotifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"golang.org/x/net/http2"
)

// Call describes a single exchange with the PushNotifier API
type Call struct {
	Method string
	URL    string

	// Authorization is the Basic credential (without the "Basic " prefix)
	Authorization string

	// AppToken is sent as X-AppToken when non-nil
	AppToken *string

	// Body is serialized as JSON for POST and PUT; GET sends no body
	Body interface{}
}

// Response is a completed exchange whose body is known to be valid JSON
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Transport is the process-wide synchronous JSON-over-HTTPS transport.
// It is connected once at startup and disconnected once at shutdown,
// and can be shared by any number of sessions
type Transport struct {
	sync.Mutex
	timeout time.Duration
	client  *http.Client
	logger  zerolog.Logger
}

// NewTransport creates a new instance of the transport
// (doesn't open any connections)
func NewTransport(config *Config, logger zerolog.Logger) *Transport {
	return &Transport{
		timeout: config.Timeout,
		logger:  logger.With().Str("component", "transport").Logger(),
	}
}

// Connect builds the underlying HTTP client.
// Calling it again while connected is a no-op
func (t *Transport) Connect(ctx context.Context) error {
	t.Lock()
	defer t.Unlock()

	if t.client != nil {
		return nil
	}

	httpTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	err := http2.ConfigureTransport(httpTransport)
	if err != nil {
		return errors.Wrap(err, "could not enable HTTP/2 on the transport")
	}

	t.client = &http.Client{
		Transport: httpTransport,
		Timeout:   t.timeout,
	}
	t.logger.Debug().Dur("timeout", t.timeout).Msg("transport connected")
	return nil
}

// Disconnect releases pooled connections.
// Calling it again while disconnected is a no-op
func (t *Transport) Disconnect(ctx context.Context) error {
	t.Lock()
	defer t.Unlock()

	if t.client == nil {
		return nil
	}

	t.client.CloseIdleConnections()
	t.client = nil
	t.logger.Debug().Msg("transport disconnected")
	return nil
}

// Connected reports whether Connect has been called without a matching Disconnect
func (t *Transport) Connected() bool {
	t.Lock()
	defer t.Unlock()

	return t.client != nil
}

// Do performs the call synchronously and returns the parsed response.
// HTTP 401 fails with an AuthenticationError, HTTP 500 with a ServiceError;
// every other status is handed back to the caller
func (t *Transport) Do(ctx context.Context, call Call) (*Response, error) {
	t.Lock()
	client := t.client
	t.Unlock()

	if client == nil {
		return nil, NewTransportError(errors.New("transport has not been connected"))
	}

	var payload io.Reader
	switch call.Method {
	case http.MethodGet:
	case http.MethodPost, http.MethodPut:
		body := call.Body
		if body == nil {
			body = struct{}{}
		}
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "could not serialize request body")
		}
		payload = bytes.NewReader(data)
	default:
		return nil, errors.Errorf("unsupported method '%s'", call.Method)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, call.URL, payload)
	if err != nil {
		return nil, errors.Wrap(err, "could not create request")
	}

	req.Header.Set("Authorization", "Basic "+call.Authorization)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if call.AppToken != nil {
		req.Header.Set("X-AppToken", *call.AppToken)
	}

	logger := t.logger.With().
		Str("call_id", ksuid.New().String()).
		Str("method", call.Method).
		Str("url", call.URL).
		Logger()
	logger.Debug().Msg("calling PushNotifier API")

	res, err := client.Do(req)
	if err != nil {
		logger.Debug().Err(err).Msg("PushNotifier API unreachable")
		return nil, NewTransportError(err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, NewTransportError(err)
	}
	logger.Debug().Int("status", res.StatusCode).Int("bytes", len(body)).Msg("PushNotifier API responded")

	switch res.StatusCode {
	case http.StatusUnauthorized:
		return nil, NewAuthenticationError(diagnostic(res, body))
	case http.StatusInternalServerError:
		return nil, NewServiceError(res.StatusCode, diagnostic(res, body))
	}

	if !json.Valid(body) {
		return nil, NewProtocolError(body, errors.New("body is not valid JSON"))
	}

	return &Response{
		StatusCode: res.StatusCode,
		Body:       json.RawMessage(body),
	}, nil
}

// diagnostic prefers the service-provided message and falls back to the HTTP status line
func diagnostic(res *http.Response, body []byte) string {
	if message, ok := serviceError(body); ok && message != "" {
		return message
	}
	return res.Status
}
