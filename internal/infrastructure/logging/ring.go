package logging

import (
	"bytes"
	"sync"
)

// DefaultRingSize is the capacity used when NewRing is given a size <= 0.
const DefaultRingSize = 64 * 1024

// Ring is a thread-safe circular byte buffer. It keeps the most recent
// bytes written to it and silently drops the oldest ones once full.
// It is used to retain child process output for diagnostics and replay.
type Ring struct {
	data []byte
	head int
	full bool
	mu   sync.RWMutex
}

// NewRing creates a ring holding at most size bytes.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{data: make([]byte, size)}
}

// Write appends p, overwriting the oldest data when the ring is full.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(p)
	size := len(r.data)
	if n >= size {
		copy(r.data, p[n-size:])
		r.head = 0
		r.full = true
		return n, nil
	}

	written := copy(r.data[r.head:], p)
	if written < n {
		copy(r.data, p[written:])
	}
	next := (r.head + n) % size
	if !r.full && (r.head+n >= size) {
		r.full = true
	}
	r.head = next
	return n, nil
}

// Len reports how many bytes are currently retained.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.data)
	}
	return r.head
}

// Bytes returns a copy of the retained data, oldest first.
func (r *Ring) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full {
		out := make([]byte, r.head)
		copy(out, r.data[:r.head])
		return out
	}
	out := make([]byte, len(r.data))
	n := copy(out, r.data[r.head:])
	copy(out[n:], r.data[:r.head])
	return out
}

// Tail returns the last n lines of retained data.
func (r *Ring) Tail(n int) string {
	data := bytes.TrimRight(r.Bytes(), "\n")
	if n <= 0 || len(data) == 0 {
		return ""
	}
	idx := len(data)
	for i := 0; i < n; i++ {
		j := bytes.LastIndexByte(data[:idx], '\n')
		if j < 0 {
			return string(data)
		}
		idx = j
	}
	return string(data[idx+1:])
}

// Reset discards all retained data.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.full = false
}
