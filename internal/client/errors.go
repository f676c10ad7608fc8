package client

import "errors"

var (
	// ErrAlreadyRunning is returned when a run is started while another is in flight.
	ErrAlreadyRunning = errors.New("a research run is already in progress")
	// ErrPromptTooShort is returned before contacting the server when the prompt is too short.
	ErrPromptTooShort = errors.New("prompt must be at least 4 characters")
	// ErrCancelled is the session error after Cancel.
	ErrCancelled = errors.New("request cancelled")
)

// TransportError is a network or abort failure while talking to the server.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil || e.Err.Error() == "" {
		return "Something went wrong"
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError is a non-success response. Message is the response body, or a generic text when empty.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// IsClientError reports whether the server rejected the input.
func (e *ServerError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func newServerError(status int, body []byte, fallback string) *ServerError {
	msg := string(body)
	if msg == "" {
		msg = fallback
	}
	return &ServerError{StatusCode: status, Message: msg}
}
