package configloader

import "github.com/ringlog/ringlog"

type rawConfig struct {
	LogFileName            string `mapstructure:"log_file_name"             yaml:"log_file_name"`
	MaxLogSizeBytes        *int64 `mapstructure:"max_log_size_bytes"        yaml:"max_log_size_bytes"`
	BatchSize              *int   `mapstructure:"batch_size"                yaml:"batch_size"`
	QueueDepth             *int   `mapstructure:"queue_depth"               yaml:"queue_depth"`
	CoalesceSize           *int   `mapstructure:"coalesce_size"             yaml:"coalesce_size"`
	SmallBufferPoolSize    *int   `mapstructure:"small_buffer_pool_size"    yaml:"small_buffer_pool_size"`
	MediumBufferPoolSize   *int   `mapstructure:"medium_buffer_pool_size"   yaml:"medium_buffer_pool_size"`
	LargeBufferPoolSize    *int   `mapstructure:"large_buffer_pool_size"    yaml:"large_buffer_pool_size"`
	SmallBufferSize        *int   `mapstructure:"small_buffer_size"         yaml:"small_buffer_size"`
	MediumBufferSize       *int   `mapstructure:"medium_buffer_size"        yaml:"medium_buffer_size"`
	LargeBufferSize        *int   `mapstructure:"large_buffer_size"         yaml:"large_buffer_size"`
	ShutdownTimeoutSeconds *int   `mapstructure:"shutdown_timeout_seconds"  yaml:"shutdown_timeout_seconds"`
	SequenceTagging        *bool  `mapstructure:"sequence_tagging"          yaml:"sequence_tagging"`
	FileMode               *int   `mapstructure:"file_mode"                 yaml:"file_mode"`
}

// applyRaw overlays raw's set fields on top of a zero-value ringlog.Config
// and leaves everything else unset, so ringlog.MergeConfig — run once, by
// ringlog.New/ringlog.Init, against the Config this returns — sees the
// same zero values a hand-built Config would and performs the identical
// defaulting, batch_size-driven derivation, and validation regardless of
// where the Config came from. Seeding with ringlog.DefaultConfig here
// would pre-populate QueueDepth/CoalesceSize and silently skip that
// derivation for a document that sets batch_size but not queue_depth.
func applyRaw(raw rawConfig) (*ringlog.Config, error) {
	var cfg ringlog.Config

	if raw.LogFileName != "" {
		cfg.LogFileName = raw.LogFileName
	}

	if raw.MaxLogSizeBytes != nil {
		cfg.MaxLogSizeBytes = *raw.MaxLogSizeBytes
	}

	if raw.BatchSize != nil {
		cfg.BatchSize = *raw.BatchSize
	}

	if raw.QueueDepth != nil {
		cfg.QueueDepth = *raw.QueueDepth
	}

	if raw.CoalesceSize != nil {
		cfg.CoalesceSize = *raw.CoalesceSize
	}

	if raw.SmallBufferPoolSize != nil {
		cfg.SmallBufferPoolSize = *raw.SmallBufferPoolSize
	}

	if raw.MediumBufferPoolSize != nil {
		cfg.MediumBufferPoolSize = *raw.MediumBufferPoolSize
	}

	if raw.LargeBufferPoolSize != nil {
		cfg.LargeBufferPoolSize = *raw.LargeBufferPoolSize
	}

	if raw.SmallBufferSize != nil {
		cfg.SmallBufferSize = *raw.SmallBufferSize
	}

	if raw.MediumBufferSize != nil {
		cfg.MediumBufferSize = *raw.MediumBufferSize
	}

	if raw.LargeBufferSize != nil {
		cfg.LargeBufferSize = *raw.LargeBufferSize
	}

	if raw.ShutdownTimeoutSeconds != nil {
		cfg.ShutdownTimeoutSeconds = *raw.ShutdownTimeoutSeconds
	}

	if raw.SequenceTagging != nil {
		cfg.SequenceTagging = *raw.SequenceTagging
	}

	if raw.FileMode != nil {
		cfg.FileMode = uint32(*raw.FileMode) //nolint:gosec // file mode values fit comfortably in uint32.
	}

	return &cfg, nil
}

func allKeys() []string {
	return []string{
		"log_file_name",
		"max_log_size_bytes",
		"batch_size",
		"queue_depth",
		"coalesce_size",
		"small_buffer_pool_size",
		"medium_buffer_pool_size",
		"large_buffer_pool_size",
		"small_buffer_size",
		"medium_buffer_size",
		"large_buffer_size",
		"shutdown_timeout_seconds",
		"sequence_tagging",
		"file_mode",
	}
}
