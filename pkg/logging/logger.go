package logging

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
)

// NewLogger creates a new hclog logger with standard settings.
func NewLogger(name string, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}

	jsonFormat := os.Getenv("XBIN_JSON_LOG") == "1"

	if !jsonFormat {
		output = NewPrefixWriter("xbin: ", output)
	}

	opts := &hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z", // UTC ISO format
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	}

	return hclog.New(opts)
}

// GetLogLevel returns the configured log level from the environment,
// defaulting to warn so a library consumer isn't flooded with per-record
// Trace/Debug output unless it opts in.
func GetLogLevel() string {
	level := os.Getenv("XBIN_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	return level
}

// NullLogger returns a logger that discards everything, for callers that
// don't want logging at all.
func NullLogger() hclog.Logger {
	return hclog.NewNullLogger()
}
