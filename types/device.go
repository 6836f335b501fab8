package types

// Device is a device registered to a PushNotifier account
type Device struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Model string `json:"model"`
	Image string `json:"image"`
}
