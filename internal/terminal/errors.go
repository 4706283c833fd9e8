package terminal

import "errors"

var (
	// ErrClosed is returned by operations on a buffer after teardown.
	ErrClosed = errors.New("terminal: buffer closed")
	// ErrNotFound is returned by Manager lookups for unknown buffers.
	ErrNotFound = errors.New("terminal: buffer not found")
	// ErrUnknownCommand is returned by Run for names outside Commands().
	ErrUnknownCommand = errors.New("terminal: unknown command")
	// ErrNoPrompt is returned when input arrives for a tag with no
	// pending prompt.
	ErrNoPrompt = errors.New("terminal: no pending prompt")
	// ErrInvalidArgument is returned for malformed command arguments.
	ErrInvalidArgument = errors.New("terminal: invalid argument")
	// ErrManagerClosed is returned by Manager.Create after CloseAll.
	ErrManagerClosed = errors.New("terminal: manager closed")
)

// StartError reports which stage of buffer creation failed.
type StartError struct {
	Stage string // port, template, spawn, ready, surface, load
	Err   error
}

func (e *StartError) Error() string {
	return "terminal: start buffer: " + e.Stage + ": " + e.Err.Error()
}

func (e *StartError) Unwrap() error { return e.Err }
