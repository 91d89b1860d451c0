package provider

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	KindTransport          ErrorKind = "transport error"
	KindInvalidPayload     ErrorKind = "invalid payload"
	KindMissingCredentials ErrorKind = "missing credentials"
)

// ErrNoProviderAvailable means no configured provider was eligible, so no
// network call was made.
var ErrNoProviderAvailable = errors.New("no provider available: no API keys or endpoints configured")

type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Cause    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

func Transport(provider string, cause error) error {
	return &ProviderError{Provider: provider, Kind: KindTransport, Cause: cause}
}

func InvalidPayload(provider string, cause error) error {
	return &ProviderError{Provider: provider, Kind: KindInvalidPayload, Cause: cause}
}

func MissingCredentials(provider string) error {
	return &ProviderError{Provider: provider, Kind: KindMissingCredentials, Cause: errors.New("credentials not configured")}
}

// KindOf reports the error kind, treating unknown errors as transport failures.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransport
}

type Attempt struct {
	Provider string    `json:"provider"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
}

// AllProvidersFailedError lists every attempted provider in attempt order.
type AllProvidersFailedError struct {
	Attempts []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s (%s): %s", a.Provider, a.Kind, a.Message))
	}
	return "analysis failed, all providers failed: " + strings.Join(parts, "; ")
}

func newAttempt(name string, err error) Attempt {
	msg := err.Error()
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Cause != nil {
		msg = pe.Cause.Error()
	}
	return Attempt{Provider: name, Kind: KindOf(err), Message: msg}
}
