// Package ai adapts hosted LLM providers to a single JSON-in, JSON-out call.
package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/myrjola/noir/internal/errors"
)

// Request is a single stateless exchange with the model.
type Request struct {
	// SystemInstruction sets the role and response format of the model.
	SystemInstruction string
	// Message is the user content, i.e. the transcript followed by the new input.
	Message string
}

// Model generates a JSON document for req.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, req Request) (string, error)

func (f ModelFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// StatusError is a provider failure with the HTTP status code of the upstream response.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err signals that the provider is rate limiting or temporarily unavailable.
func IsTransient(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode == http.StatusServiceUnavailable
}
