package ringlog

import "github.com/ringlog/ringlog/internal/queue"

// ConfigBuilder provides a fluent API for constructing a Config. It is
// a convenience over building a Config literal; Build runs no validation
// itself — that happens once, inside MergeConfig, when the result is
// passed to New or Init.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder creates a builder seeded with a zero-value Config, so
// that Build returns only the fields a With* call actually set and leaves
// every other field at its zero value for MergeConfig to default and
// derive — including the batch_size-driven auto-scaling spec.md section
// 4.8 describes. Seeding with DefaultConfig here would pre-populate
// QueueDepth/CoalesceSize and defeat that derivation.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: Config{}}
}

// WithLogFileName sets the active log file's path.
func (b *ConfigBuilder) WithLogFileName(path string) *ConfigBuilder {
	b.config.LogFileName = path

	return b
}

// WithMaxLogSizeBytes sets the rotation threshold.
func (b *ConfigBuilder) WithMaxLogSizeBytes(bytes int64) *ConfigBuilder {
	b.config.MaxLogSizeBytes = bytes

	return b
}

// WithBatchSize sets the number of submissions accumulated per ring
// submit. If QueueDepth and CoalesceSize haven't been set on this
// builder yet, MergeConfig will derive them from batchSize the same way
// spec.md section 4.8 derives them from a hand-built Config.
func (b *ConfigBuilder) WithBatchSize(batchSize int) *ConfigBuilder {
	b.config.BatchSize = batchSize

	return b
}

// WithQueueDepth sets the async I/O ring's depth.
func (b *ConfigBuilder) WithQueueDepth(depth int) *ConfigBuilder {
	b.config.QueueDepth = depth

	return b
}

// WithCoalesceSize sets the maximum records packed into one coalesced
// write buffer. A non-zero size of 1 or less disables coalescing; zero
// leaves the field unset, so MergeConfig derives it from BatchSize.
func (b *ConfigBuilder) WithCoalesceSize(size int) *ConfigBuilder {
	b.config.CoalesceSize = size

	return b
}

// WithBufferPools sets the slot counts for the small/medium/large buffer
// size classes.
func (b *ConfigBuilder) WithBufferPools(small, medium, large int) *ConfigBuilder {
	b.config.SmallBufferPoolSize = small
	b.config.MediumBufferPoolSize = medium
	b.config.LargeBufferPoolSize = large

	return b
}

// WithBufferSizes sets the byte capacity of the small/medium/large size
// classes.
func (b *ConfigBuilder) WithBufferSizes(small, medium, large int) *ConfigBuilder {
	b.config.SmallBufferSize = small
	b.config.MediumBufferSize = medium
	b.config.LargeBufferSize = large

	return b
}

// WithShutdownTimeoutSeconds bounds how long Close waits for the worker
// goroutine to join.
func (b *ConfigBuilder) WithShutdownTimeoutSeconds(seconds int) *ConfigBuilder {
	b.config.ShutdownTimeoutSeconds = seconds

	return b
}

// WithQueue replaces the stock unbounded queue with a caller-supplied
// implementation (spec.md section 9's "Config._queue escape hatch").
func (b *ConfigBuilder) WithQueue(q queue.Queue) *ConfigBuilder {
	b.config.Queue = q

	return b
}

// WithInternalErrorHandler sets the callback that receives diagnostic
// errors the sink cannot report through itself.
func (b *ConfigBuilder) WithInternalErrorHandler(handler func(error)) *ConfigBuilder {
	b.config.InternalErrorHandler = handler

	return b
}

// WithSequenceTagging enables the monotone Record.Sequence assigned on
// every push, spec.md section 4.2's test-only ordering aid.
func (b *ConfigBuilder) WithSequenceTagging(enabled bool) *ConfigBuilder {
	b.config.SequenceTagging = enabled

	return b
}

// WithFileMode sets the permission bits used when creating the log file.
func (b *ConfigBuilder) WithFileMode(mode uint32) *ConfigBuilder {
	b.config.FileMode = mode

	return b
}

// Build returns the constructed Config.
func (b *ConfigBuilder) Build() Config {
	return b.config
}
