package session

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMode     = errors.New("invalid interaction mode")
	ErrSessionNotFound = errors.New("session not found")
)

// ErrorKind classifies why a generation call failed.
type ErrorKind string

const (
	KindNetwork       ErrorKind = "network"
	KindAuth          ErrorKind = "auth"
	KindEmptyResponse ErrorKind = "empty_response"
	KindTimeout       ErrorKind = "timeout"
	KindUnknown       ErrorKind = "unknown"
)

// GenerationError is the only failure a Generator reports to a session.
type GenerationError struct {
	Kind ErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generation failed (%s)", e.Kind)
	}
	return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError wraps err with the given kind.
func NewGenerationError(kind ErrorKind, err error) *GenerationError {
	return &GenerationError{Kind: kind, Err: err}
}

// AsGenerationError returns err as a *GenerationError, wrapping it as
// KindUnknown when the generator did not classify it.
func AsGenerationError(err error) *GenerationError {
	if err == nil {
		return nil
	}
	var gerr *GenerationError
	if errors.As(err, &gerr) {
		return gerr
	}
	return &GenerationError{Kind: KindUnknown, Err: err}
}
