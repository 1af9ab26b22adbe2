// Package options provides data structures and functions for configuring chunkfs.
package options

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iamBelugaa/chunkfs/pkg/errors"
)

// Defines how file content is split into chunks and how chunks are removed.
type ChunkOptions struct {
	// Maximum number of bytes stored in a single chunk object.
	//
	//  - Default: 16KB
	//  - Maximum: 64MB
	//  - Minimum: 1KB
	Size uint32 `json:"size" yaml:"size"`

	// Number of chunk deletes issued in parallel when a file is removed.
	//
	// Default: 8
	DeleteConcurrency int `json:"deleteConcurrency" yaml:"delete_concurrency"`
}

// Configures the segment read-lock manager.
type LockOptions struct {
	// Selects the read-lock implementation: "counting" tracks readers and defers
	// deletion, "none" deletes immediately and never blocks on readers.
	//
	// Default: "counting"
	Strategy string `json:"strategy" yaml:"strategy"`

	// Number of independently locked registry shards.
	//
	// Default: 64
	Shards int `json:"shards" yaml:"shards"`
}

// Defines the configuration parameters for chunkfs.
type Options struct {
	// Bucket holding chunks and metadata, as a gocloud.dev URL
	// (mem://, file:///path, s3://bucket, gs://bucket, azblob://container).
	//
	// Default: "mem://"
	BucketURL string `json:"bucketUrl" yaml:"bucket_url"`

	// Key prefix under which every file is stored.
	//
	// Default: "chunkfs"
	Prefix string `json:"prefix" yaml:"prefix"`

	// Minimum log level: debug, info, warn or error.
	//
	// Default: "info"
	LogLevel string `json:"logLevel" yaml:"log_level"`

	ChunkOptions *ChunkOptions `json:"chunkOptions" yaml:"chunk"`
	LockOptions  *LockOptions  `json:"lockOptions" yaml:"lock"`
}

type OptionFunc func(*Options)

// Applies a predefined set of default configuration values to the Options struct.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		*o = DefaultOptions()
	}
}

// Sets the bucket URL.
func WithBucketURL(url string) OptionFunc {
	return func(o *Options) {
		url = strings.TrimSpace(url)
		if url != "" {
			o.BucketURL = url
		}
	}
}

// Sets the key prefix for every stored object.
func WithPrefix(prefix string) OptionFunc {
	return func(o *Options) {
		prefix = strings.Trim(strings.TrimSpace(prefix), "/")
		if prefix != "" {
			o.Prefix = prefix
		}
	}
}

// Sets the chunk size. Values outside [MinChunkSize, MaxChunkSize] are ignored.
func WithChunkSize(size uint32) OptionFunc {
	return func(o *Options) {
		if size >= MinChunkSize && size <= MaxChunkSize {
			o.ChunkOptions.Size = size
		}
	}
}

// Sets how many chunk deletes run in parallel.
func WithDeleteConcurrency(n int) OptionFunc {
	return func(o *Options) {
		if n >= MinDeleteConcurrency && n <= MaxDeleteConcurrency {
			o.ChunkOptions.DeleteConcurrency = n
		}
	}
}

// Selects the read-lock strategy.
func WithLockStrategy(strategy string) OptionFunc {
	return func(o *Options) {
		strategy = strings.ToLower(strings.TrimSpace(strategy))
		if strategy != "" {
			o.LockOptions.Strategy = strategy
		}
	}
}

// Sets the number of registry shards.
func WithLockShards(n int) OptionFunc {
	return func(o *Options) {
		if n >= MinLockShards && n <= MaxLockShards {
			o.LockOptions.Shards = n
		}
	}
}

// Sets the log level.
func WithLogLevel(level string) OptionFunc {
	return func(o *Options) {
		level = strings.TrimSpace(level)
		if level != "" {
			o.LogLevel = level
		}
	}
}

// fileConfig mirrors Options for YAML decoding. Pointers tell a value that
// is absent from one explicitly set to zero.
type fileConfig struct {
	BucketURL *string `yaml:"bucket_url"`
	Prefix    *string `yaml:"prefix"`
	LogLevel  *string `yaml:"log_level"`
	Chunk     *struct {
		Size              *uint32 `yaml:"size"`
		DeleteConcurrency *int    `yaml:"delete_concurrency"`
	} `yaml:"chunk"`
	Lock *struct {
		Strategy *string `yaml:"strategy"`
		Shards   *int    `yaml:"shards"`
	} `yaml:"lock"`
}

// LoadFile reads a YAML configuration file. Fields absent from the file keep
// their defaults; fields present with an out-of-range value, and unknown
// fields, are errors.
func LoadFile(path string) (Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read config file: %w", err)
	}

	var parsed fileConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&parsed); err != nil && !stdErrors.Is(err, io.EOF) {
		return opts, fmt.Errorf("parse config file: %w", err)
	}

	if parsed.BucketURL != nil {
		opts.BucketURL = strings.TrimSpace(*parsed.BucketURL)
	}
	if parsed.Prefix != nil {
		opts.Prefix = strings.Trim(strings.TrimSpace(*parsed.Prefix), "/")
	}
	if parsed.LogLevel != nil {
		opts.LogLevel = strings.TrimSpace(*parsed.LogLevel)
	}
	if c := parsed.Chunk; c != nil {
		if c.Size != nil {
			opts.ChunkOptions.Size = *c.Size
		}
		if c.DeleteConcurrency != nil {
			opts.ChunkOptions.DeleteConcurrency = *c.DeleteConcurrency
		}
	}
	if l := parsed.Lock; l != nil {
		if l.Strategy != nil {
			opts.LockOptions.Strategy = strings.ToLower(strings.TrimSpace(*l.Strategy))
		}
		if l.Shards != nil {
			opts.LockOptions.Shards = *l.Shards
		}
	}

	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return opts, nil
}

// Validate checks the options for values the option functions cannot reject on their own.
func (o *Options) Validate() error {
	if o.BucketURL == "" {
		return errors.NewRequiredFieldError("bucketUrl")
	}
	if o.ChunkOptions == nil {
		return errors.NewRequiredFieldError("chunkOptions")
	}
	if o.LockOptions == nil {
		return errors.NewRequiredFieldError("lockOptions")
	}
	if o.ChunkOptions.Size < MinChunkSize || o.ChunkOptions.Size > MaxChunkSize {
		return errors.NewFieldRangeError(
			"chunk.size", o.ChunkOptions.Size, FormatBytes(uint64(MinChunkSize)), FormatBytes(uint64(MaxChunkSize)),
		)
	}
	if o.ChunkOptions.DeleteConcurrency < MinDeleteConcurrency || o.ChunkOptions.DeleteConcurrency > MaxDeleteConcurrency {
		return errors.NewFieldRangeError(
			"chunk.delete_concurrency", o.ChunkOptions.DeleteConcurrency, MinDeleteConcurrency, MaxDeleteConcurrency,
		)
	}
	if o.LockOptions.Shards < MinLockShards || o.LockOptions.Shards > MaxLockShards {
		return errors.NewFieldRangeError("lock.shards", o.LockOptions.Shards, MinLockShards, MaxLockShards)
	}
	switch o.LockOptions.Strategy {
	case LockStrategyCounting, LockStrategyNone:
	default:
		return errors.NewValidationError(
			nil, errors.ErrLockUnknownStrategy, fmt.Sprintf("unknown lock strategy %q", o.LockOptions.Strategy),
		).
			WithField("lock.strategy").
			WithProvided(o.LockOptions.Strategy).
			WithExpected([]string{LockStrategyCounting, LockStrategyNone})
	}
	return nil
}

// FormatBytes converts byte count to human-readable format for error messages.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	var units = []string{"B", "KB", "MB", "GB", "TB"}

	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	exp := 0
	value := float64(bytes)

	for value >= unit && exp < len(units)-1 {
		value /= unit
		exp++
	}

	if math.Abs(value-math.Round(value)) < 0.01 {
		return fmt.Sprintf("%.0f %s", math.Round(value), units[exp])
	}
	return fmt.Sprintf("%.2f %s", value, units[exp])
}
