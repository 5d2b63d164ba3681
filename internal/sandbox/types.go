package sandbox

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrTimeout    = errors.New("sandbox acquisition timeout")
	ErrDetached   = errors.New("frame is detached")
	ErrClosed     = errors.New("runtime is closed")
)

// Config defines sandbox configuration
type Config struct {
	Timeout          time.Duration // Per-call execution timeout
	MaxCallStackSize int           // Maximum JS call stack depth
	EnableConsole    bool          // Allow console.log/warn/error
	MaxConsole       int           // Console entries kept per runtime
	Logger           *zap.Logger   // Receives console output at debug level
}

// Result holds execution result
type Result struct {
	Value    interface{}   // Return value
	Console  []LogEntry    // Console output produced by this call
	Duration time.Duration // Execution time
	Error    error         // Execution error
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, info, warn, error
	Message string    // Log message
	Time    time.Time // Timestamp
}

// DefaultConfig returns the configuration used for rempl environment frames
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MaxCallStackSize: 1024,
		EnableConsole:    true,
		MaxConsole:       500,
	}
}
