package options

const (
	DefaultBucketURL string = "mem://"
	DefaultPrefix    string = "chunkfs"
	DefaultLogLevel  string = "info"

	MinChunkSize     uint32 = 1024
	MaxChunkSize     uint32 = 64 * 1024 * 1024
	DefaultChunkSize uint32 = 16 * 1024

	LockStrategyCounting string = "counting"
	LockStrategyNone     string = "none"
	DefaultLockStrategy  string = LockStrategyCounting

	MinLockShards     int = 1
	MaxLockShards     int = 4096
	DefaultLockShards int = 64

	MinDeleteConcurrency     int = 1
	MaxDeleteConcurrency     int = 256
	DefaultDeleteConcurrency int = 8

	MaxFileNameSize int    = 255
	MaxFileSize     uint64 = 4 * 1024 * 1024 * 1024
)

func DefaultOptions() Options {
	return Options{
		BucketURL: DefaultBucketURL,
		Prefix:    DefaultPrefix,
		LogLevel:  DefaultLogLevel,
		ChunkOptions: &ChunkOptions{
			Size:              DefaultChunkSize,
			DeleteConcurrency: DefaultDeleteConcurrency,
		},
		LockOptions: &LockOptions{
			Strategy: DefaultLockStrategy,
			Shards:   DefaultLockShards,
		},
	}
}
