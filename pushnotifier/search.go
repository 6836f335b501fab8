package pushnotifier

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/jd-116/pushnotifier/types"
)

// FilterDevices keeps the devices whose title or model fuzzy-matches the search.
// An empty search keeps every device
func FilterDevices(devices []types.Device, search string) []types.Device {
	search = strings.ToLower(strings.TrimSpace(search))
	matched := []types.Device{}
	for _, device := range devices {
		if search == "" ||
			fuzzy.MatchNormalized(search, strings.ToLower(device.Title)) ||
			fuzzy.MatchNormalized(search, strings.ToLower(device.Model)) {
			matched = append(matched, device)
		}
	}

	return matched
}

// DeviceIDs collects the IDs of the given devices in order
func DeviceIDs(devices []types.Device) []string {
	ids := make([]string, 0, len(devices))
	for _, device := range devices {
		ids = append(ids, device.ID)
	}
	return ids
}
