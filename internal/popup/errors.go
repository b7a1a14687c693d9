package popup

import "errors"

var (
	// ErrEmptyCredential is a validation error for a blank API key
	ErrEmptyCredential = errors.New("please enter a valid API key")
	// ErrEmptyMessage is a validation error for a blank message
	ErrEmptyMessage = errors.New("please enter a message")
	// ErrMissingCredential means a send was attempted before a key was saved
	ErrMissingCredential = errors.New("please set your API key first")
	// ErrBusy means a request is already in flight
	ErrBusy = errors.New("a request is already in progress")
)

// RequestError wraps a failed completion request
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return "Error communicating with Perplexity AI: " + e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
