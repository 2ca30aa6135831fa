package configprocessor

// Logger defines the interface for processor logging.
// The processor uses structured logging with key-value pairs so that
// directive walks, catalog builds and method selection can be traced in the
// log output of the host application.
//
// The Logger interface uses variadic arguments in key-value pairs:
//
//	logger.Debug("Method resolved", "path", "Services:SimpleString", "stage", "named")
//
// A *slog.Logger satisfies this interface directly.
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	// Used for events like a processing pass completing or a configuration reload.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	// Used for failures reported to observers or during reload.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	// Used for configuration entries that were handled without a matching method.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	// Used for candidate gathering, selection stages and skipped libraries.
	Debug(msg string, args ...any)
}

// NoopLogger discards everything. It is the default logger of a Processor.
type NoopLogger struct{}

func (NoopLogger) Info(string, ...any)  {}
func (NoopLogger) Error(string, ...any) {}
func (NoopLogger) Warn(string, ...any)  {}
func (NoopLogger) Debug(string, ...any) {}
