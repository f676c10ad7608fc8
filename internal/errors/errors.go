package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// InvalidPromptMessage is the body returned for rejected prompts.
const InvalidPromptMessage = "Invalid prompt"

var (
	// ErrInvalidInput matches every InvalidInputError.
	ErrInvalidInput = stderrors.New("invalid input")
	// ErrUpstream matches every UpstreamError.
	ErrUpstream = stderrors.New("upstream failure")
	// ErrOperationTimeout is returned when an operation exceeds its execution budget.
	ErrOperationTimeout = stderrors.New("operation timed out")
)

// InvalidInputError is returned when a prompt is missing or too short.
// The operation never starts.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return InvalidPromptMessage
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// UpstreamError wraps a failure of the search, crawl or synthesis stage.
// The whole operation aborts; Error() is the underlying message so it can be surfaced verbatim.
type UpstreamError struct {
	Stage string
	Err   error
}

// NewUpstream wraps err as a failure of stage. Errors that already are upstream failures are returned as is.
func NewUpstream(stage string, err error) error {
	if err == nil {
		return nil
	}
	var up *UpstreamError
	if stderrors.As(err, &up) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		err = ErrOperationTimeout
	}
	return &UpstreamError{Stage: stage, Err: err}
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return "Internal error"
	}
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// DocumentFetchError is an isolated per-document failure during archival.
// It is recorded in the manifest and never escalated.
type DocumentFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DocumentFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *DocumentFetchError) Unwrap() error {
	return e.Err
}

// StatusFor maps an operation error to the HTTP status it is reported with.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the plain-text body for err.
func Message(err error) string {
	if err == nil || err.Error() == "" {
		return "Internal error"
	}
	return err.Error()
}
