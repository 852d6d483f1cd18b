package ringlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigBuilderSetsEveryField(t *testing.T) {
	cfg := NewConfigBuilder().
		WithLogFileName("service.log").
		WithBatchSize(64).
		WithQueueDepth(2048).
		WithCoalesceSize(32).
		WithBufferPools(128, 128, 32).
		WithBufferSizes(2048, 8192, 32768).
		WithShutdownTimeoutSeconds(10).
		WithSequenceTagging(true).
		WithFileMode(0o640).
		Build()

	assert.Equal(t, "service.log", cfg.LogFileName)
	assert.Equal(t, 64, cfg.BatchSize)
	assert.Equal(t, 2048, cfg.QueueDepth)
	assert.Equal(t, 32, cfg.CoalesceSize)
	assert.Equal(t, 128, cfg.SmallBufferPoolSize)
	assert.Equal(t, 32, cfg.LargeBufferPoolSize)
	assert.Equal(t, 2048, cfg.SmallBufferSize)
	assert.Equal(t, 10, cfg.ShutdownTimeoutSeconds)
	assert.True(t, cfg.SequenceTagging)
	assert.Equal(t, uint32(0o640), cfg.FileMode)
}

// TestConfigBuilderLeavesUnsetFieldsForMergeConfigToDerive guards against
// NewConfigBuilder seeding DefaultConfig: calling WithBatchSize alone must
// leave QueueDepth/CoalesceSize at zero so MergeConfig derives them from
// batch_size, exactly as it would for a hand-built Config.
func TestConfigBuilderLeavesUnsetFieldsForMergeConfigToDerive(t *testing.T) {
	cfg := NewConfigBuilder().WithBatchSize(64).Build()

	assert.Zero(t, cfg.QueueDepth)
	assert.Zero(t, cfg.CoalesceSize)

	merged, err := MergeConfig(cfg)
	assert.NoError(t, err)
	assert.Equal(t, 64*DefaultQueueDepthFactor, merged.QueueDepth)
	assert.Equal(t, 64, merged.CoalesceSize)
}

func TestConfigBuilderWithInternalErrorHandler(t *testing.T) {
	var called bool

	cfg := NewConfigBuilder().
		WithInternalErrorHandler(func(error) { called = true }).
		Build()

	require := assert.New(t)
	require.NotNil(cfg.InternalErrorHandler)

	cfg.InternalErrorHandler(nil)
	require.True(called)
}
