package analysis

import (
	"errors"
	"strings"

	"github.com/stupiduntilnot/meditalk/internal/model"
)

// Kind classifies a failed analysis for the caller.
type Kind string

const (
	KindConfiguration  Kind = "configuration"
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindBackend        Kind = "backend"
)

// Caller-facing messages.
const (
	MsgMissingCredential = "API key not configured"
	MsgEmptyPrompt       = "Please provide a message"
	MsgInvalidCredential = "Invalid API key"
	MsgAnalysisFailed    = "Analysis failed"
)

// Error is the only error type Analyze returns. Message is safe to show to
// the end user verbatim.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func validationError(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

// classify converts a backend failure into an *Error.
func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, model.ErrMissingCredential):
		return &Error{Kind: KindConfiguration, Message: MsgMissingCredential, Err: err}
	case errors.Is(err, model.ErrUnauthorized):
		return &Error{Kind: KindAuthentication, Message: MsgInvalidCredential, Err: err}
	}

	message := MsgAnalysisFailed
	var be *model.BackendError
	if errors.As(err, &be) && strings.TrimSpace(be.Message) != "" {
		message = be.Message
	}
	return &Error{Kind: KindBackend, Message: message, Err: err}
}
