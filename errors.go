package ringlog

import "github.com/hyp3rd/ewrap"

// Sentinel errors surfaced by the public API, per spec.md section 7's
// error taxonomy: configuration errors, the not-initialized state and a
// flush timeout are the only ones a caller of Init/New/Get/FlushTimeout
// ever sees directly. Everything else (backpressure, transient write
// failures, fatal ring failure, shutdown timeout, logging after Close) is
// routed through the configured InternalErrorHandler instead of being
// returned.
var (
	// ErrNotInitialized is returned by Get when Init has not yet
	// installed the global sink.
	ErrNotInitialized = ewrap.New("ringlog: not initialized, call Init first")
	// ErrInvalidConfig is returned by Init/New when MergeConfig finds a
	// hard configuration error (spec.md section 4.8).
	ErrInvalidConfig = ewrap.New("ringlog: invalid configuration")
	// ErrShutdown is passed to the InternalErrorHandler when a record is
	// logged after the Logger has been closed; the record is discarded.
	ErrShutdown = ewrap.New("ringlog: logger is shut down")
	// ErrFlushTimeout is returned by FlushTimeout when the worker does not
	// drain within the given deadline.
	ErrFlushTimeout = ewrap.New("ringlog: flush timed out")
)
