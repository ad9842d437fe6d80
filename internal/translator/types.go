package translator

import (
	"context"
	"errors"
	"fmt"
)

// Provider is a translation backend. TranslateBatch must return one
// translation per input text, in input order, or fail with a
// *ProviderError describing how it failed.
type Provider interface {
	ID() string
	TranslateBatch(ctx context.Context, texts []string, targetLang string) ([]string, error)
}

// ErrorKind classifies provider failures; the orchestrator's retry
// and fallback decisions depend only on this classification.
type ErrorKind int

const (
	RateLimited ErrorKind = iota
	Timeout
	AuthFailure
	Unavailable
	MalformedResponse
)

func (k ErrorKind) String() string {
	switch k {
	case RateLimited:
		return "RateLimited"
	case Timeout:
		return "Timeout"
	case AuthFailure:
		return "AuthFailure"
	case Unavailable:
		return "Unavailable"
	case MalformedResponse:
		return "MalformedResponse"
	default:
		return "Unknown"
	}
}

// Retryable reports whether the same provider is worth retrying.
// Anything else is fatal for the provider and triggers fallback.
func (k ErrorKind) Retryable() bool {
	return k == RateLimited || k == Timeout
}

// ProviderError is a provider-local failure.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider %s: [%s] %s: %v", e.Provider, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider %s: [%s] %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

func NewProviderError(provider string, kind ErrorKind, message string) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Message: message}
}

func WrapProviderError(provider string, kind ErrorKind, message string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Message: message, Cause: cause}
}

// AsProviderError unwraps err to a *ProviderError if there is one.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// subtitleLineBreaker separates subtitle lines inside a single
// provider payload; inlineBreakerPlaceholder stands in for newlines
// within one line so the model cannot confuse the two.
const (
	subtitleLineBreaker      = "@@@@"
	inlineBreakerPlaceholder = "[BR]"
)
