// Package portutil provides TCP port utilities.
package portutil

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// FreePort returns a free local TCP port by briefly binding to port 0.
func FreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("allocate port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// WaitListening dials 127.0.0.1:port until it accepts a connection, ctx is
// done, or stop returns true. stop may be nil.
func WaitListening(ctx context.Context, port int, interval time.Duration, stop func() bool) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	for {
		conn, err := net.DialTimeout("tcp", addr, interval)
		if err == nil {
			conn.Close()
			return nil
		}
		if stop != nil && stop() {
			return fmt.Errorf("port %d: gave up waiting: %w", port, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("port %d not listening: %w", port, ctx.Err())
		case <-time.After(interval):
		}
	}
}
