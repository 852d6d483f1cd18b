package configloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ringlog/ringlog"
)

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_LOG_FILE_NAME", "logs/app.log")
	t.Setenv("APP_MAX_LOG_SIZE_BYTES", "40960")
	t.Setenv("APP_BATCH_SIZE", "64")
	t.Setenv("APP_QUEUE_DEPTH", "2048")
	t.Setenv("APP_COALESCE_SIZE", "16")
	t.Setenv("APP_SEQUENCE_TAGGING", "true")

	cfg, err := FromEnv("app")
	require.NoError(t, err)

	require.Equal(t, "logs/app.log", cfg.LogFileName)
	require.Equal(t, int64(40960), cfg.MaxLogSizeBytes)
	require.Equal(t, 64, cfg.BatchSize)
	require.Equal(t, 2048, cfg.QueueDepth)
	require.Equal(t, 16, cfg.CoalesceSize)
	require.True(t, cfg.SequenceTagging)
}

func TestFromFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.yaml")
	configData := []byte(`
log_file_name: service.log
max_log_size_bytes: 1048576
batch_size: 48
queue_depth: 1024
coalesce_size: 24
small_buffer_pool_size: 128
medium_buffer_pool_size: 128
large_buffer_pool_size: 32
shutdown_timeout_seconds: 5
sequence_tagging: false
`)

	err := os.WriteFile(configPath, configData, 0o600)
	require.NoError(t, err)

	t.Setenv("RINGLOG_BATCH_SIZE", "96")
	t.Setenv("RINGLOG_SEQUENCE_TAGGING", "true")

	cfg, err := FromFile(configPath)
	require.NoError(t, err)

	require.Equal(t, "service.log", cfg.LogFileName)
	require.Equal(t, int64(1048576), cfg.MaxLogSizeBytes)
	require.Equal(t, 96, cfg.BatchSize)
	require.Equal(t, 1024, cfg.QueueDepth)
	require.Equal(t, 24, cfg.CoalesceSize)
	require.Equal(t, 128, cfg.SmallBufferPoolSize)
	require.Equal(t, 128, cfg.MediumBufferPoolSize)
	require.Equal(t, 32, cfg.LargeBufferPoolSize)
	require.Equal(t, 5, cfg.ShutdownTimeoutSeconds)
	require.True(t, cfg.SequenceTagging)
}

func TestFromYAMLAppliesOverrides(t *testing.T) {
	data := []byte(`
log_file_name: /var/log/service.log
batch_size: 8
`)

	cfg, err := FromYAML(data)
	require.NoError(t, err)
	require.Equal(t, "/var/log/service.log", cfg.LogFileName)
	require.Equal(t, 8, cfg.BatchSize)
}

// TestFromYAMLLeavesUnsetFieldsForMergeConfigToDerive guards against
// applyRaw pre-populating QueueDepth/CoalesceSize with ringlog.DefaultConfig
// values: a document that sets batch_size but not queue_depth must come out
// of FromYAML with QueueDepth still zero, so that ringlog.MergeConfig — run
// once by ringlog.New/ringlog.Init — is the one that derives 16*batch_size,
// exactly as it would for a hand-built Config.
func TestFromYAMLLeavesUnsetFieldsForMergeConfigToDerive(t *testing.T) {
	data := []byte(`batch_size: 8`)

	cfg, err := FromYAML(data)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.BatchSize)
	require.Zero(t, cfg.QueueDepth)
	require.Zero(t, cfg.CoalesceSize)

	merged, err := ringlog.MergeConfig(*cfg)
	require.NoError(t, err)
	require.Equal(t, 8*ringlog.DefaultQueueDepthFactor, merged.QueueDepth)
	require.Equal(t, 8, merged.CoalesceSize)
}
