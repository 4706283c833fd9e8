// Package surface defines the embedded page a terminal buffer drives.
//
// A Surface hosts the terminal front-end page. The buffer talks to it only
// through typed Commands, a title query, a focus click and a stream of
// page-originated Events. Two drivers exist: sandbox (a headless
// JavaScript runtime) and chrome (a real browser over CDP).
package surface

import (
	"context"
	"errors"
)

// ErrClosed is returned by surface operations after Close.
var ErrClosed = errors.New("surface: closed")

// ErrNoDispatcher is returned when the loaded page never installed the
// command entry point.
var ErrNoDispatcher = errors.New("surface: page has no command dispatcher")

// DispatchFunc is the global the page installs to receive command
// envelopes. It takes one JSON string and may return a string result.
const DispatchFunc = "__webterm_dispatch"

// Page is a rendered page ready to load.
type Page struct {
	HTML string
	// BaseURL resolves relative resource references in HTML.
	BaseURL string
}

// EventKind names a page-originated event.
type EventKind string

const (
	// EventDirectory carries the shell's new working directory.
	EventDirectory EventKind = "directory"
)

// Event is posted by the page through host.post(kind, data).
type Event struct {
	Kind EventKind
	Data string
}

// Surface is an embedded page. Implementations are not required to be
// safe for concurrent use; a buffer drives its surface from one goroutine.
type Surface interface {
	// Load replaces the current document with page.
	Load(ctx context.Context, page Page) error
	// Title returns the current document title.
	Title(ctx context.Context) (string, error)
	// Dispatch delivers cmd to the page and returns its string result.
	Dispatch(ctx context.Context, cmd Command) (string, error)
	// Focus synthesizes a primary click at the page origin.
	Focus(ctx context.Context) error
	// Events yields page events. It is closed by Close.
	Events() <-chan Event
	Close() error
}

// Factory creates a fresh Surface for one buffer.
type Factory func(ctx context.Context) (Surface, error)
