package types

// NotificationKind selects which PushNotifier notification endpoint a message goes to
type NotificationKind string

const (
	// KindText is a plain text message
	KindText NotificationKind = "text"
	// KindURL is a bare URL
	KindURL NotificationKind = "url"
	// KindNotification combines a text message with a URL
	KindNotification NotificationKind = "notification"
)

// NotificationRequest is the JSON shape accepted by the relay's notification routes
type NotificationRequest struct {
	Devices []string `json:"devices"`
	Content string   `json:"content,omitempty"`
	URL     string   `json:"url,omitempty"`
	Silent  bool     `json:"silent"`
}

// NotificationResult is the JSON shape returned by the relay after a send
type NotificationResult struct {
	Delivered bool `json:"delivered"`
}
