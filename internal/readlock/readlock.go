// Package readlock coordinates deletion of chunked files with the readers that
// still have them open.
//
// A read lock is a plain reference count per file name. Locks carry no owner:
// any caller may release a lock another caller acquired, the manager only
// checks that releases never outnumber acquisitions.
//
// Every operation on a name runs in that name's shard critical section, so
// the existence check and the increment in AcquireReadLock cannot interleave
// with MarkForDeletion. The physical delete itself runs outside the critical
// section; while it is in flight the name rejects new readers exactly like a
// pending deletion.
package readlock

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/iamBelugaa/chunkfs/internal/metrics"
	"github.com/iamBelugaa/chunkfs/pkg/errors"
	"github.com/iamBelugaa/chunkfs/pkg/options"
)

// New returns the Locker selected by opts.Strategy.
func New(opts *options.LockOptions, store ChunkStore, log *zap.SugaredLogger, m *metrics.LockMetrics) (Locker, error) {
	switch opts.Strategy {
	case options.LockStrategyCounting, "":
		return NewCounting(opts.Shards, store, log, m), nil
	case options.LockStrategyNone:
		return NewNoop(store, log, m), nil
	default:
		return nil, errors.NewValidationError(
			nil, errors.ErrLockUnknownStrategy, fmt.Sprintf("unknown lock strategy %q", opts.Strategy),
		).
			WithField("lock.strategy").
			WithProvided(opts.Strategy)
	}
}

// NewCounting creates a reference-counting locker with the given number of registry shards.
func NewCounting(shards int, store ChunkStore, log *zap.SugaredLogger, m *metrics.LockMetrics) *CountingLocker {
	if shards < options.MinLockShards {
		shards = options.DefaultLockShards
	}

	l := &CountingLocker{
		store:   store,
		log:     log,
		metrics: m,
		shards:  make([]*shard, shards),
	}
	for i := range l.shards {
		l.shards[i] = &shard{files: make(map[string]*fileState)}
	}

	log.Infow("Initializing segment read-lock manager", "strategy", options.LockStrategyCounting, "shards", shards)
	return l
}

func (l *CountingLocker) shardFor(fileName string) *shard {
	return l.shards[xxhash.Sum64String(fileName)%uint64(len(l.shards))]
}

// AcquireReadLock registers one more reader of fileName.
//
// When the name has no readers yet, the chunk store is asked whether the file
// exists while the shard is still locked; a deletion cannot start or finish
// between that answer and the increment.
func (l *CountingLocker) AcquireReadLock(ctx context.Context, fileName string) (bool, error) {
	sh := l.shardFor(fileName)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	state, tracked := sh.files[fileName]
	if tracked && state.pending {
		l.metrics.ObserveAcquire(metrics.AcquirePending)
		l.log.Debugw("Read lock rejected, file pending deletion", "fileName", fileName, "deleting", state.deleting)
		return false, nil
	}

	if !tracked || state.refCount == 0 {
		exists, err := l.store.Exists(ctx, fileName)
		if err != nil {
			l.metrics.ObserveAcquire(metrics.AcquireErrored)
			return false, err
		}
		if !exists {
			l.metrics.ObserveAcquire(metrics.AcquireMissing)
			l.log.Debugw("Read lock rejected, file does not exist", "fileName", fileName)
			return false, nil
		}
		if !tracked {
			state = &fileState{}
			sh.files[fileName] = state
			l.metrics.AddTracked(1)
		}
	}

	state.refCount++
	l.metrics.ObserveAcquire(metrics.AcquireGranted)
	l.log.Debugw("Read lock acquired", "fileName", fileName, "refCount", state.refCount)
	return true, nil
}

// ReleaseReadLock drops one reader of fileName. The release that brings a
// pending file to zero readers deletes it and returns the deletion error, if any.
func (l *CountingLocker) ReleaseReadLock(ctx context.Context, fileName string) error {
	sh := l.shardFor(fileName)
	sh.mu.Lock()

	state, tracked := sh.files[fileName]
	if !tracked || state.refCount <= 0 {
		var refCount int64
		if tracked {
			refCount = state.refCount
		}
		sh.mu.Unlock()
		return l.violation(fileName, "release", refCount, tracked)
	}

	state.refCount--
	l.metrics.ObserveRelease()

	if state.refCount > 0 {
		l.log.Debugw("Read lock released", "fileName", fileName, "refCount", state.refCount)
		sh.mu.Unlock()
		return nil
	}

	if !state.pending {
		delete(sh.files, fileName)
		l.metrics.AddTracked(-1)
		l.log.Debugw("Last read lock released", "fileName", fileName)
		sh.mu.Unlock()
		return nil
	}

	state.deleting = true
	sh.mu.Unlock()

	l.log.Infow("Last reader released file pending deletion", "fileName", fileName)
	return l.deleteFile(ctx, sh, fileName, state, metrics.DeleteDeferred)
}

// MarkForDeletion flags fileName for deletion. Without readers the file is
// deleted before MarkForDeletion returns; otherwise the last ReleaseReadLock
// deletes it. Marking a file that is already pending, being deleted, or no
// longer exists does nothing. A pending file whose earlier deletion failed is
// deleted again.
//
// A name without a metadata record is left alone even if chunks remain under
// it: they may belong to a write that has not stored its metadata yet.
// Chunks orphaned by a crashed delete are reclaimed when the name is written
// again: the write replaces or trims them, and the next deletion of that file
// removes the rest through DeleteAll.
func (l *CountingLocker) MarkForDeletion(ctx context.Context, fileName string) error {
	sh := l.shardFor(fileName)
	sh.mu.Lock()

	state, tracked := sh.files[fileName]
	if tracked && (state.deleting || (state.pending && state.refCount > 0)) {
		sh.mu.Unlock()
		l.log.Debugw("File already marked for deletion", "fileName", fileName, "refCount", state.refCount)
		return nil
	}

	if !tracked {
		exists, err := l.store.Exists(ctx, fileName)
		if err != nil {
			sh.mu.Unlock()
			return err
		}
		if !exists {
			sh.mu.Unlock()
			l.log.Debugw("Mark for deletion ignored, file does not exist", "fileName", fileName)
			return nil
		}
		state = &fileState{}
		sh.files[fileName] = state
		l.metrics.AddTracked(1)
	}

	l.metrics.ObserveMark()
	state.pending = true

	if state.refCount > 0 {
		sh.mu.Unlock()
		l.log.Infow("File marked for deletion, waiting for readers", "fileName", fileName, "refCount", state.refCount)
		return nil
	}

	state.deleting = true
	sh.mu.Unlock()

	return l.deleteFile(ctx, sh, fileName, state, metrics.DeleteImmediate)
}

// deleteFile runs DeleteAll for a state already flagged as deleting. On success
// the name leaves the registry; on failure it stays pending with no readers so
// a later MarkForDeletion can retry.
func (l *CountingLocker) deleteFile(ctx context.Context, sh *shard, fileName string, state *fileState, trigger string) error {
	start := time.Now()
	err := l.store.DeleteAll(ctx, fileName)
	elapsed := time.Since(start)
	l.metrics.ObserveDeletion(trigger, elapsed.Seconds(), err)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	state.deleting = false
	if err != nil {
		l.log.Errorw(
			"Failed to delete file, deletion stays pending",
			"fileName", fileName,
			"trigger", trigger,
			"error", err,
		)
		return err
	}

	if sh.files[fileName] == state {
		delete(sh.files, fileName)
		l.metrics.AddTracked(-1)
	}

	l.log.Infow("File deleted", "fileName", fileName, "trigger", trigger, "duration", elapsed)
	return nil
}

func (l *CountingLocker) violation(fileName, operation string, refCount int64, tracked bool) error {
	l.metrics.ObserveViolation()

	err := errors.NewLockError(
		nil, errors.ErrLockAccountingViolation,
		fmt.Sprintf("read lock on %s released more times than it was acquired", fileName),
	).
		WithFileName(fileName).
		WithOperation(operation).
		WithRefCount(refCount).
		WithDetail("tracked", tracked)

	l.log.DPanicw(
		"Read lock accounting violation",
		"fileName", fileName,
		"operation", operation,
		"refCount", refCount,
		"tracked", tracked,
	)
	return err
}

// InUse reports whether fileName is tracked, that is, it has readers or a
// deletion that has not completed.
func (l *CountingLocker) InUse(fileName string) bool {
	sh := l.shardFor(fileName)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	_, tracked := sh.files[fileName]
	return tracked
}

// Stats returns a snapshot of the registry. Shards are visited one at a time,
// so the totals are not an atomic view across shards.
func (l *CountingLocker) Stats() Stats {
	var stats Stats
	for _, sh := range l.shards {
		sh.mu.Lock()
		for _, state := range sh.files {
			stats.TrackedFiles++
			stats.OutstandingLocks += state.refCount
			if state.pending {
				stats.PendingDeletions++
			}
			if state.deleting {
				stats.Deleting++
			}
		}
		sh.mu.Unlock()
	}
	return stats
}

// RefCount returns the current number of readers of fileName.
func (l *CountingLocker) RefCount(fileName string) int64 {
	sh := l.shardFor(fileName)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if state, ok := sh.files[fileName]; ok {
		return state.refCount
	}
	return 0
}
