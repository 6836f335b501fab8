package types

// ErrorResponse is the generic error JSON shape returned by the relay
type ErrorResponse struct {
	Message string `json:"message"`
}
