package pushnotifier

import (
	"bytes"
	"encoding/json"
)

// errorEnvelope is the uniform {status: "error", message: ...} shape
type errorEnvelope struct {
	Status  string          `json:"status"`
	Message json.RawMessage `json:"message"`
}

// serviceError extracts the message of an error envelope.
// Only JSON objects can carry one; arrays are never treated as errors
func serviceError(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return "", false
	}
	if envelope.Status != "error" {
		return "", false
	}

	return messageText(envelope.Message), true
}

// messageText unquotes string messages and keeps any other JSON as its text
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

func isArray(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// isEmptyCollection reports whether the JSON value is absent, null, or an empty array/object/string
func isEmptyCollection(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "[]", "{}", `""`:
		return true
	}

	var values []json.RawMessage
	if err := json.Unmarshal(trimmed, &values); err == nil {
		return len(values) == 0
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err == nil {
		return len(fields) == 0
	}
	return false
}
