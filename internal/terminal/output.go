package terminal

import (
	"io"
	"sync"

	"github.com/GriffinCanCode/AgentOS/webterm/internal/infrastructure/logging"
)

// outputSink receives the child's merged stdout and stderr. Bytes go to
// the ring for later inspection and, until Close, to the logger.
type outputSink struct {
	mu     sync.Mutex
	ring   *logging.Ring
	log    io.WriteCloser
	closed bool
}

func newOutputSink(ring *logging.Ring, log io.WriteCloser) *outputSink {
	return &outputSink{ring: ring, log: log}
}

func (s *outputSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.ring.Write(p)
	if !s.closed {
		_, _ = s.log.Write(p)
	}
	return len(p), nil
}

func (s *outputSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.log.Close()
}
