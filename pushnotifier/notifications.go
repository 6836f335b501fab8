package pushnotifier

import (
	"context"
	"encoding/json"
	"net/http"
)

type sendRequest struct {
	Devices []string `json:"devices"`
	Content string   `json:"content,omitempty"`
	URL     string   `json:"url,omitempty"`
	Silent  bool     `json:"silent"`
}

type sendResponse struct {
	Success json.RawMessage `json:"success"`
	Error   json.RawMessage `json:"error"`
}

// SendMessage sends a text message to the given devices.
// It returns false (without an error) if any device could not be reached
func (s *Session) SendMessage(ctx context.Context, deviceIDs []string, content string, silent bool) (bool, error) {
	if content == "" {
		return false, NewValidationError("content")
	}

	return s.send(ctx, "/notifications/text", sendRequest{
		Devices: deviceIDs,
		Content: content,
		Silent:  silent,
	})
}

// SendMessageTo sends a text message to a single device
func (s *Session) SendMessageTo(ctx context.Context, deviceID string, content string, silent bool) (bool, error) {
	return s.SendMessage(ctx, []string{deviceID}, content, silent)
}

// SendURL sends a URL to the given devices
func (s *Session) SendURL(ctx context.Context, deviceIDs []string, url string, silent bool) (bool, error) {
	if url == "" {
		return false, NewValidationError("url")
	}

	return s.send(ctx, "/notifications/url", sendRequest{
		Devices: deviceIDs,
		URL:     url,
		Silent:  silent,
	})
}

// SendURLTo sends a URL to a single device
func (s *Session) SendURLTo(ctx context.Context, deviceID string, url string, silent bool) (bool, error) {
	return s.SendURL(ctx, []string{deviceID}, url, silent)
}

// SendNotification sends a text message together with a URL to the given devices
func (s *Session) SendNotification(ctx context.Context, deviceIDs []string, content string, url string, silent bool) (bool, error) {
	if content == "" {
		return false, NewValidationError("content")
	}
	if url == "" {
		return false, NewValidationError("url")
	}

	return s.send(ctx, "/notifications/notification", sendRequest{
		Devices: deviceIDs,
		Content: content,
		URL:     url,
		Silent:  silent,
	})
}

// SendNotificationTo sends a text message together with a URL to a single device
func (s *Session) SendNotificationTo(ctx context.Context, deviceID string, content string, url string, silent bool) (bool, error) {
	return s.SendNotification(ctx, []string{deviceID}, content, url, silent)
}

func (s *Session) send(ctx context.Context, path string, request sendRequest) (bool, error) {
	if len(request.Devices) == 0 {
		return false, NewValidationError("devices")
	}

	token, err := s.requestToken(ctx)
	if err != nil {
		return false, err
	}

	res, err := s.call(ctx, http.MethodPut, path, token, request)
	if err != nil {
		return false, err
	}

	if message, ok := serviceError(res.Body); ok {
		return false, NewServiceError(res.StatusCode, message)
	}

	var response sendResponse
	err = json.Unmarshal(res.Body, &response)
	if err != nil {
		return false, NewProtocolError(res.Body, err)
	}

	if !isEmptyCollection(response.Error) {
		s.logger.Warn().
			Str("endpoint", path).
			Strs("devices", request.Devices).
			RawJSON("failed", response.Error).
			Msg("notification not delivered to every device")
		return false, nil
	}

	return true, nil
}
