package pushnotifier

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jd-116/pushnotifier/types"
)

// GetDevices lists the devices registered to the account.
// Unless RenewBeforeCalls is configured, the current token is used as-is
func (s *Session) GetDevices(ctx context.Context) ([]types.Device, error) {
	token, err := s.requestToken(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.call(ctx, http.MethodGet, "/devices", token, nil)
	if err != nil {
		return nil, err
	}

	// Any array is a device list
	if !isArray(res.Body) {
		if message, ok := serviceError(res.Body); ok {
			return nil, NewServiceError(res.StatusCode, message)
		}
	}

	var devices []types.Device
	err = json.Unmarshal(res.Body, &devices)
	if err != nil {
		return nil, NewProtocolError(res.Body, err)
	}
	if devices == nil {
		devices = []types.Device{}
	}

	s.logger.Debug().Int("count", len(devices)).Msg("listed PushNotifier devices")
	return devices, nil
}
