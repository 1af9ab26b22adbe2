package readlock

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/iamBelugaa/chunkfs/internal/metrics"
)

// ChunkStore is the part of the chunk store the lock manager depends on.
type ChunkStore interface {
	// Exists reports whether the file is present and can be read.
	Exists(ctx context.Context, fileName string) (bool, error)
	// DeleteAll removes every chunk and the metadata record of the file. It
	// must tolerate keys that are already gone.
	DeleteAll(ctx context.Context, fileName string) error
}

// Locker keeps segment files from being deleted while readers use them.
type Locker interface {
	// AcquireReadLock registers a reader of fileName. It returns false when the
	// file does not exist or is pending deletion; that is not an error.
	AcquireReadLock(ctx context.Context, fileName string) (bool, error)
	// ReleaseReadLock drops one reader of fileName and deletes the file if it
	// was the last reader of a file marked for deletion.
	ReleaseReadLock(ctx context.Context, fileName string) error
	// MarkForDeletion deletes fileName now if nobody reads it, or as soon as
	// the last reader releases it.
	MarkForDeletion(ctx context.Context, fileName string) error
	// InUse reports whether fileName has readers or a deletion that has not
	// completed. Such a name must not be written: the new content would be
	// mixed with chunks still being read, or removed by the pending deletion.
	InUse(fileName string) bool
}

// Stats is a point-in-time view of a CountingLocker registry.
type Stats struct {
	TrackedFiles     int   // Files with readers or a pending deletion.
	OutstandingLocks int64 // Sum of reference counts.
	PendingDeletions int   // Files marked for deletion and not yet deleted.
	Deleting         int   // Files whose chunks are being removed right now.
}

// fileState is the per-name state. A name without an entry is ACTIVE with no
// readers; a removed entry after a successful delete is DELETED.
type fileState struct {
	refCount int64
	pending  bool // PENDING_DELETION; new readers are rejected.
	deleting bool // DeleteAll in flight, shard mutex not held.
}

type shard struct {
	mu    sync.Mutex
	files map[string]*fileState
}

// CountingLocker is the reference-counting Locker.
type CountingLocker struct {
	shards  []*shard
	store   ChunkStore
	log     *zap.SugaredLogger
	metrics *metrics.LockMetrics
}

// NoopLocker never tracks readers.
type NoopLocker struct {
	store   ChunkStore
	log     *zap.SugaredLogger
	metrics *metrics.LockMetrics
}
