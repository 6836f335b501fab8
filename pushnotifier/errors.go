package pushnotifier

import (
	"fmt"
	"unicode/utf8"
)

// ValidationError is an error used to encode when a required field is empty.
// It is always raised before any network call is made
type ValidationError struct {
	Field string
}

// NewValidationError constructs a new ValidationError
func NewValidationError(field string) *ValidationError {
	return &ValidationError{
		Field: field,
	}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s shall not be empty", e.Field)
}

// AuthenticationError is an error used to encode rejected credentials
// or an expired/invalid app token
type AuthenticationError struct {
	Message string
}

// NewAuthenticationError constructs a new AuthenticationError
func NewAuthenticationError(message string) *AuthenticationError {
	return &AuthenticationError{
		Message: message,
	}
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication with the PushNotifier API failed: %s", e.Message)
}

// ServiceError is an error used to encode an HTTP 500 response
// or an explicit error payload returned by the PushNotifier API
type ServiceError struct {
	StatusCode int
	Message    string
}

// NewServiceError constructs a new ServiceError
func NewServiceError(statusCode int, message string) *ServiceError {
	return &ServiceError{
		StatusCode: statusCode,
		Message:    message,
	}
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("PushNotifier API returned an error (status %d): %s", e.StatusCode, e.Message)
}

// TransportError is an error used to encode a connection, DNS or TLS failure
// (anything that kept the exchange from completing)
type TransportError struct {
	Reason string
	Err    error
}

// NewTransportError constructs a new TransportError from the underlying failure
func NewTransportError(err error) *TransportError {
	return &TransportError{
		Reason: err.Error(),
		Err:    err,
	}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("could not reach the PushNotifier API: %s", e.Reason)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is an error used to encode a response body
// that is not valid JSON or does not have the expected shape
type ProtocolError struct {
	Body string
	Err  error
}

const maxExcerpt = 128

// NewProtocolError constructs a new ProtocolError,
// keeping a bounded excerpt of the offending body
func NewProtocolError(body []byte, err error) *ProtocolError {
	excerpt := string(body)
	if len(excerpt) > maxExcerpt {
		// Cut on a rune boundary
		end := maxExcerpt
		for end > 0 && !utf8.RuneStart(excerpt[end]) {
			end--
		}
		excerpt = excerpt[:end] + "..."
	}

	return &ProtocolError{
		Body: excerpt,
		Err:  err,
	}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed response from the PushNotifier API (%v): '%s'", e.Err, e.Body)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
