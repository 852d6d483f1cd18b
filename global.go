package ringlog

import "sync"

//nolint:gochecknoglobals // global sink, protected by globalMu.
var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// Init installs the global sink, per spec.md section 6. It is idempotent:
// a second call while a sink is already installed is a no-op that returns
// nil, rather than an error — spec.md never lists "already initialized" in
// its error taxonomy, and treating a repeat call as a hard error would
// make Init unsafe to call from library init paths that can't tell if
// some other package already called it first.
func Init(cfg Config) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger != nil {
		return nil
	}

	logger, err := New(cfg)
	if err != nil {
		return err
	}

	globalLogger = logger

	return nil
}

// Get returns the global sink installed by Init, or ErrNotInitialized if
// Init has not been called (or the global sink has since been shut down).
func Get() (*Logger, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger == nil {
		return nil, ErrNotInitialized
	}

	return globalLogger, nil
}

// Shutdown closes the global sink and clears it, so a later Init can
// install a fresh one. Calling Shutdown when no sink is installed is a
// no-op.
func Shutdown() error {
	globalMu.Lock()
	logger := globalLogger
	globalLogger = nil
	globalMu.Unlock()

	if logger == nil {
		return nil
	}

	return logger.Close()
}

// Info logs through the global sink. It is a no-op if Init has not been
// called.
func Info(format string, args ...any) { globalLog(InfoLevel, format, args...) }

// Warn logs through the global sink.
func Warn(format string, args ...any) { globalLog(WarnLevel, format, args...) }

// Error logs through the global sink.
func Error(format string, args ...any) { globalLog(ErrorLevel, format, args...) }

func globalLog(level Level, format string, args ...any) {
	logger, err := Get()
	if err != nil {
		return
	}

	logger.log(level, format, args...)
}

// Flush flushes the global sink. It is a no-op if Init has not been
// called.
func Flush() {
	logger, err := Get()
	if err != nil {
		return
	}

	logger.Flush()
}
