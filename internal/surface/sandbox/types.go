package sandbox

import "time"

// Config defines sandbox configuration
type Config struct {
	Timeout       time.Duration // Per-call execution timeout
	MaxCallStack  int           // Maximum JavaScript call stack depth
	EnableConsole bool          // Route console.* to the logger
	EventBuffer   int           // Capacity of the page event channel
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, info, warn, error
	Message string    // Log message
	Time    time.Time // Timestamp
}

// DefaultConfig returns the configuration used by the server.
func DefaultConfig() Config {
	return Config{
		Timeout:       2 * time.Second,
		MaxCallStack:  1024,
		EnableConsole: true,
		EventBuffer:   16,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxCallStack <= 0 {
		c.MaxCallStack = d.MaxCallStack
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
	return c
}
