// Package clipboard provides access to the system clipboard.
package clipboard

import (
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
)

// Clipboard reads and writes plain text.
type Clipboard interface {
	ReadText() (string, error)
	WriteText(text string) error
}

// System is the desktop clipboard (pbcopy, xclip/xsel/wl-copy, or the
// Windows API).
type System struct{}

// Supported reports whether a clipboard utility was found.
func Supported() bool {
	return !clipboard.Unsupported
}

// ReadText returns the clipboard contents.
func (System) ReadText() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("clipboard: read: %w", err)
	}
	return text, nil
}

// WriteText replaces the clipboard contents.
func (System) WriteText(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard: write: %w", err)
	}
	return nil
}

// Memory is a process-local clipboard. It backs headless servers with no
// clipboard utility and tests.
type Memory struct {
	mu     sync.Mutex
	text   string
	writes int
}

// NewMemory returns a Memory holding text.
func NewMemory(text string) *Memory {
	return &Memory{text: text}
}

func (m *Memory) ReadText() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, nil
}

func (m *Memory) WriteText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.writes++
	return nil
}

// Writes reports how many times WriteText was called.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Default returns System when a clipboard utility is available and a
// fresh Memory otherwise.
func Default() Clipboard {
	if Supported() {
		return System{}
	}
	return NewMemory("")
}
