package ringlog

import (
	"math"

	"github.com/hyp3rd/ewrap"

	"github.com/ringlog/ringlog/internal/queue"
)

// Size-class and timing defaults, spec.md section 6's config table.
const (
	// DefaultLogFileName is the active log file's path when Config.LogFileName
	// is unset.
	DefaultLogFileName = "output.log"
	// DefaultMaxLogSizeBytes is the rotation threshold when
	// Config.MaxLogSizeBytes is unset: 5 MiB.
	DefaultMaxLogSizeBytes = 5 * 1024 * 1024
	// DefaultBatchSize is the number of submissions batched per ring
	// submit when Config.BatchSize is unset.
	DefaultBatchSize = 32
	// DefaultQueueDepthFactor multiplies BatchSize to derive QueueDepth
	// when the caller set BatchSize but not QueueDepth.
	DefaultQueueDepthFactor = 16
	// DefaultQueueDepth is the ring depth used when neither BatchSize nor
	// QueueDepth was set: 512, matching 16 * DefaultBatchSize.
	DefaultQueueDepth = DefaultQueueDepthFactor * DefaultBatchSize
	// DefaultShutdownTimeoutSeconds bounds Shutdown's wait for the worker
	// goroutine to exit.
	DefaultShutdownTimeoutSeconds = 3
	// DefaultFileMode is the permission bits used when creating the log
	// file.
	DefaultFileMode = 0o644
)

// Config holds the options spec.md section 6 names. Every field's zero
// value means "unset"; MergeConfig fills unset fields with defaults and
// derives the dependent parameters spec.md section 4.8 describes.
type Config struct {
	// LogFileName is the path of the active log file.
	LogFileName string
	// MaxLogSizeBytes is the rotation threshold. Like every other field,
	// 0 means unset: MergeConfig replaces it with DefaultMaxLogSizeBytes.
	MaxLogSizeBytes int64
	// BatchSize is the number of submissions accumulated before a ring
	// submit.
	BatchSize int
	// QueueDepth is the async I/O ring's depth; must be >= BatchSize.
	QueueDepth int
	// CoalesceSize is the maximum number of records packed into one
	// write buffer; a non-zero value of 1 or less disables coalescing.
	// 0 means unset and inherits BatchSize.
	CoalesceSize int
	// SmallBufferPoolSize, MediumBufferPoolSize and LargeBufferPoolSize
	// set the slot counts for each buffer size class.
	SmallBufferPoolSize, MediumBufferPoolSize, LargeBufferPoolSize int
	// SmallBufferSize, MediumBufferSize and LargeBufferSize set the byte
	// capacity of each size class.
	SmallBufferSize, MediumBufferSize, LargeBufferSize int
	// ShutdownTimeoutSeconds bounds how long Shutdown waits for the
	// worker goroutine to join.
	ShutdownTimeoutSeconds int
	// Queue, if set, replaces the stock unbounded ThreadSafeQueue with a
	// caller-supplied implementation (spec.md section 9's "Config._queue
	// escape hatch").
	Queue queue.Queue
	// InternalErrorHandler receives diagnostic strings and errors the
	// sink cannot report through itself: backpressure, transient write
	// failures, ring failure, shutdown timeout. Defaults to
	// defaultErrorHandler.
	InternalErrorHandler func(error)
	// SequenceTagging assigns a monotone Record.Sequence on every push,
	// for order-preservation tests (spec.md section 4.2).
	SequenceTagging bool
	// FileMode sets the permission bits used when creating the log file.
	FileMode uint32
}

// DefaultConfig returns spec.md section 6's defaults.
func DefaultConfig() Config {
	return Config{
		LogFileName:            DefaultLogFileName,
		MaxLogSizeBytes:        DefaultMaxLogSizeBytes,
		BatchSize:              DefaultBatchSize,
		QueueDepth:             DefaultQueueDepth,
		CoalesceSize:           DefaultBatchSize,
		SmallBufferPoolSize:    64,
		MediumBufferPoolSize:   64,
		LargeBufferPoolSize:    64,
		SmallBufferSize:        1 * 1024,
		MediumBufferSize:       4 * 1024,
		LargeBufferSize:        16 * 1024,
		ShutdownTimeoutSeconds: DefaultShutdownTimeoutSeconds,
		FileMode:               DefaultFileMode,
	}
}

// mergedConfig is the outcome of MergeConfig: a fully-populated Config
// plus the warnings accumulated along the way, so Init can route them
// through InternalErrorHandler exactly once.
type mergedConfig struct {
	Config
	maxLogsPerIteration int
	warnings            []string
}

// MergeConfig implements spec.md section 4.8: it fills every unset field
// with its default, derives QueueDepth/CoalesceSize when the caller only
// set BatchSize, computes MaxLogsPerIteration, and runs the hard-error /
// warning validation the section lists. A non-nil error means a hard
// configuration error; warnings are returned alongside a valid, usable
// configuration so the caller can route them through its error handler.
func MergeConfig(user Config) (mergedConfig, error) {
	defaults := DefaultConfig()
	merged := user

	batchWasSet := user.BatchSize != 0
	queueDepthWasSet := user.QueueDepth != 0
	coalesceWasSet := user.CoalesceSize != 0

	if merged.LogFileName == "" {
		merged.LogFileName = defaults.LogFileName
	}

	if merged.BatchSize == 0 {
		merged.BatchSize = defaults.BatchSize
	}

	if batchWasSet && !queueDepthWasSet {
		merged.QueueDepth = DefaultQueueDepthFactor * merged.BatchSize
	} else if merged.QueueDepth == 0 {
		merged.QueueDepth = defaults.QueueDepth
	}

	switch {
	case coalesceWasSet:
		// keep the caller's explicit value, including CoalesceSize <= 1
		// to disable coalescing.
	case batchWasSet:
		merged.CoalesceSize = merged.BatchSize
	default:
		merged.CoalesceSize = defaults.CoalesceSize
	}

	// A literal 0 here is treated like every other unset field: the
	// public Config follows section 4.8's general rule and inherits the
	// 5 MiB default. The "0 always rotates" edge case section 4.3/4.6
	// documents is still exact and reachable one layer down, through
	// internal/rotator.Config.MaxSize.
	if merged.MaxLogSizeBytes == 0 {
		merged.MaxLogSizeBytes = defaults.MaxLogSizeBytes
	}

	if merged.SmallBufferPoolSize == 0 {
		merged.SmallBufferPoolSize = defaults.SmallBufferPoolSize
	}

	if merged.MediumBufferPoolSize == 0 {
		merged.MediumBufferPoolSize = defaults.MediumBufferPoolSize
	}

	if merged.LargeBufferPoolSize == 0 {
		merged.LargeBufferPoolSize = defaults.LargeBufferPoolSize
	}

	if merged.SmallBufferSize == 0 {
		merged.SmallBufferSize = defaults.SmallBufferSize
	}

	if merged.MediumBufferSize == 0 {
		merged.MediumBufferSize = defaults.MediumBufferSize
	}

	if merged.LargeBufferSize == 0 {
		merged.LargeBufferSize = defaults.LargeBufferSize
	}

	if merged.ShutdownTimeoutSeconds == 0 {
		merged.ShutdownTimeoutSeconds = defaults.ShutdownTimeoutSeconds
	}

	if merged.FileMode == 0 {
		merged.FileMode = defaults.FileMode
	}

	out := mergedConfig{Config: merged}

	if merged.BatchSize > merged.QueueDepth {
		return out, ewrap.New("ringlog: batch_size must not exceed queue_depth").
			WithMetadata("batch_size", merged.BatchSize).
			WithMetadata("queue_depth", merged.QueueDepth)
	}

	if merged.BatchSize > merged.QueueDepth/2 {
		out.warnings = append(out.warnings, "batch_size is more than half of queue_depth; submits will rarely batch efficiently")
	}

	if merged.QueueDepth < 8*merged.BatchSize {
		out.warnings = append(out.warnings, "queue_depth is shallow relative to batch_size; the pipeline may stall on backpressure")
	}

	if merged.CoalesceSize > 0 {
		ratio := float64(merged.CoalesceSize) / float64(merged.BatchSize)
		if ratio < 0.5 || ratio > 2.0 {
			out.warnings = append(out.warnings, "coalesce_size/batch_size ratio is outside [0.5, 2.0]; coalescing and batching are poorly matched")
		}
	}

	out.maxLogsPerIteration = maxLogsPerIteration(merged.BatchSize, merged.QueueDepth)
	if out.maxLogsPerIteration < 2*merged.BatchSize {
		out.warnings = append(out.warnings, "computed max_logs_per_iteration is less than 2*batch_size; completion reaping may starve under load")
	}

	return out, nil
}

// maxLogsPerIteration implements spec.md section 4.7's derivation:
// min(D/2, max(2B, B*sqrt(D/B))), keeping the inner drain loop from
// starving completion reaping on a deep queue.
func maxLogsPerIteration(batchSize, queueDepth int) int {
	if batchSize <= 0 {
		batchSize = 1
	}

	ratio := math.Sqrt(float64(queueDepth) / float64(batchSize))
	scaled := int(float64(batchSize) * ratio)

	candidate := 2 * batchSize
	if scaled > candidate {
		candidate = scaled
	}

	half := queueDepth / 2
	if candidate > half {
		candidate = half
	}

	if candidate < 1 {
		candidate = 1
	}

	return candidate
}
