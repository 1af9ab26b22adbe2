package readlock

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iamBelugaa/chunkfs/internal/metrics"
	"github.com/iamBelugaa/chunkfs/pkg/options"
)

// NewNoop creates a Locker that does not track readers. It fits stores whose
// files always fit in a single chunk, where a reader fetches the whole file in
// one request and a concurrent delete cannot leave it half read.
func NewNoop(store ChunkStore, log *zap.SugaredLogger, m *metrics.LockMetrics) *NoopLocker {
	log.Infow("Initializing segment read-lock manager", "strategy", options.LockStrategyNone)
	return &NoopLocker{store: store, log: log, metrics: m}
}

// AcquireReadLock reports whether the file exists.
func (l *NoopLocker) AcquireReadLock(ctx context.Context, fileName string) (bool, error) {
	exists, err := l.store.Exists(ctx, fileName)
	switch {
	case err != nil:
		l.metrics.ObserveAcquire(metrics.AcquireErrored)
		return false, err
	case !exists:
		l.metrics.ObserveAcquire(metrics.AcquireMissing)
	default:
		l.metrics.ObserveAcquire(metrics.AcquireGranted)
	}
	return exists, nil
}

func (l *NoopLocker) ReleaseReadLock(ctx context.Context, fileName string) error {
	l.metrics.ObserveRelease()
	return nil
}

// MarkForDeletion deletes the file immediately when it exists.
func (l *NoopLocker) MarkForDeletion(ctx context.Context, fileName string) error {
	exists, err := l.store.Exists(ctx, fileName)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	l.metrics.ObserveMark()

	start := time.Now()
	err = l.store.DeleteAll(ctx, fileName)
	l.metrics.ObserveDeletion(metrics.DeleteImmediate, time.Since(start).Seconds(), err)
	if err != nil {
		l.log.Errorw("Failed to delete file", "fileName", fileName, "error", err)
		return err
	}

	l.log.Infow("File deleted", "fileName", fileName, "trigger", metrics.DeleteImmediate)
	return nil
}

// InUse is always false; readers are not tracked.
func (l *NoopLocker) InUse(fileName string) bool {
	return false
}
