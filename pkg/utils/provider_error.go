package utils

import (
	"context"
	"errors"
	"fmt"
)

type ProviderErrorKind int

const (
	// ProviderTransient errors are worth retrying (5xx, timeouts, overload).
	ProviderTransient ProviderErrorKind = iota
	// ProviderRefused means the model answered without an image.
	ProviderRefused
	ProviderPermanent
)

func (k ProviderErrorKind) String() string {
	switch k {
	case ProviderTransient:
		return "transient"
	case ProviderRefused:
		return "refused"
	default:
		return "permanent"
	}
}

// ProviderError is the classified failure every ImageProvider returns.
type ProviderError struct {
	Provider string
	Kind     ProviderErrorKind
	// Text holds the model's text answer for refusals, if any.
	Text string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s provider error: %s", e.Provider, e.Kind, e.Text)
	}
	return fmt.Sprintf("%s: %s provider error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ProviderErrorKindOf reports the kind of err. Unclassified errors are
// permanent, except context deadline expiry of a single call.
func ProviderErrorKindOf(err error) ProviderErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ProviderTransient
	}
	return ProviderPermanent
}

type ProviderImage struct {
	Data     []byte
	MIMEType string
}

// ImageProvider edits an input image according to a text prompt.
type ImageProvider interface {
	Name() string
	Generate(ctx context.Context, image []byte, mimeType, prompt string) (ProviderImage, error)
	Close() error
}
