package model

import (
	"context"
	"errors"
	"fmt"

	ctxpkg "github.com/stupiduntilnot/meditalk/internal/context"
)

// FallbackReply replaces an empty or missing backend reply so the
// conversation can continue.
const FallbackReply = "I apologize, I could not generate a response."

// Completion is the common response model for completion backends.
type Completion struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Completer is the completion backend abstraction used by the analysis service.
type Completer interface {
	Complete(ctx context.Context, messages []ctxpkg.Turn) (Completion, error)
}

// CredentialChecker is implemented by backends that need a credential. It
// must not perform network I/O.
type CredentialChecker interface {
	CheckCredential() error
}

var (
	ErrMissingCredential = errors.New("backend credential not configured")
	ErrUnauthorized      = errors.New("backend rejected credential")
	ErrTimeout           = errors.New("backend request timed out")
	ErrBackend           = errors.New("backend failure")
)

// BackendError is a failed backend call. Message is the backend's own
// description when it sent one.
type BackendError struct {
	Status  int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("backend error status=%d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error: %s", e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is makes every BackendError match ErrBackend.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}
