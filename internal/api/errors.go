package api

import (
	"errors"
	"fmt"
	"strings"
)

// KeyTokenExpired is the error envelope key reporting an expired identity token.
const KeyTokenExpired = "token_expired"

// ErrAuthExpired matches, via errors.Is, an *APIError carrying KeyTokenExpired.
var ErrAuthExpired = errors.New("identity token expired")

// NetworkError wraps a transport failure; no response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response without a readable error envelope.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("bad status code %d", e.Code) }

// ErrorEntry is one item of the backend error envelope.
type ErrorEntry struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// APIError is a non-2xx response carrying the {errors:[{key,message}]} envelope.
type APIError struct {
	Status int
	Errors []ErrorEntry
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api error (HTTP %d)", e.Status)
	for i, entry := range e.Errors {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %s", entry.Key, entry.Message)
	}
	return b.String()
}

// HasKey reports whether any entry carries key.
func (e *APIError) HasKey(key string) bool {
	for _, entry := range e.Errors {
		if entry.Key == key {
			return true
		}
	}
	return false
}

func (e *APIError) Is(target error) bool {
	return target == ErrAuthExpired && e.HasKey(KeyTokenExpired)
}

// DecodeError is a 2xx response whose body does not decode into the expected type.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode response: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// resultLabel names err's kind for metrics.
func resultLabel(err error) string {
	var (
		network *NetworkError
		status  *StatusError
		apiErr  *APIError
		decode  *DecodeError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.As(err, &status):
		return "status_error"
	case errors.As(err, &decode):
		return "decode_error"
	case errors.As(err, &network):
		return "network_error"
	default:
		return "error"
	}
}
