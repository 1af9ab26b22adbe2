package readlock

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iamBelugaa/chunkfs/internal/metrics"
	"github.com/iamBelugaa/chunkfs/pkg/errors"
	"github.com/iamBelugaa/chunkfs/pkg/options"
)

var errBucketDown = stdErrors.New("bucket unavailable")

type fakeStore struct {
	mu          sync.Mutex
	files       map[string]bool
	deletes     map[string]int
	attempts    map[string]int
	failDeletes int
	existsErr   error
	onDelete    func(fileName string)
}

func newFakeStore(files ...string) *fakeStore {
	s := &fakeStore{
		files:    make(map[string]bool),
		deletes:  make(map[string]int),
		attempts: make(map[string]int),
	}
	for _, f := range files {
		s.files[f] = true
	}
	return s
}

func (s *fakeStore) Exists(ctx context.Context, fileName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.files[fileName], nil
}

func (s *fakeStore) DeleteAll(ctx context.Context, fileName string) error {
	if s.onDelete != nil {
		s.onDelete(fileName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[fileName]++
	if s.failDeletes > 0 {
		s.failDeletes--
		return errBucketDown
	}
	delete(s.files, fileName)
	s.deletes[fileName]++
	return nil
}

func (s *fakeStore) put(fileName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[fileName] = true
}

func (s *fakeStore) exists(fileName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[fileName]
}

func (s *fakeStore) deleteCount(fileName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes[fileName]
}

func newTestLocker(store ChunkStore) *CountingLocker {
	return NewCounting(8, store, zap.NewNop().Sugar(), nil)
}

func TestDeferredDeletionOnLastRelease(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("seg1")
	locker := newTestLocker(store)

	ok, err := locker.AcquireReadLock(ctx, "seg1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = locker.AcquireReadLock(ctx, "seg1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), locker.RefCount("seg1"))

	require.NoError(t, locker.MarkForDeletion(ctx, "seg1"))
	assert.Equal(t, 0, store.deleteCount("seg1"))

	require.NoError(t, locker.ReleaseReadLock(ctx, "seg1"))
	assert.Equal(t, 0, store.deleteCount("seg1"))
	assert.Equal(t, int64(1), locker.RefCount("seg1"))

	require.NoError(t, locker.ReleaseReadLock(ctx, "seg1"))
	assert.Equal(t, 1, store.deleteCount("seg1"))

	ok, err = locker.AcquireReadLock(ctx, "seg1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Stats{}, locker.Stats())
}

func TestImmediateDeletionWithoutReaders(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("seg2")
	locker := newTestLocker(store)

	require.NoError(t, locker.MarkForDeletion(ctx, "seg2"))
	assert.Equal(t, 1, store.deleteCount("seg2"))

	ok, err := locker.AcquireReadLock(ctx, "seg2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAcquireMissingFile(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	locker := newTestLocker(store)

	ok, err := locker.AcquireReadLock(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, locker.Stats().TrackedFiles)

	require.NoError(t, locker.MarkForDeletion(ctx, "missing"))
	assert.Zero(t, store.attempts["missing"])
}

func TestMarkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("seg3", "seg4")
	locker := newTestLocker(store)

	ok, err := locker.AcquireReadLock(ctx, "seg3")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, locker.MarkForDeletion(ctx, "seg3"))
	require.NoError(t, locker.MarkForDeletion(ctx, "seg3"))
	assert.Equal(t, 1, locker.Stats().PendingDeletions)

	require.NoError(t, locker.ReleaseReadLock(ctx, "seg3"))
	require.NoError(t, locker.MarkForDeletion(ctx, "seg3"))
	assert.Equal(t, 1, store.deleteCount("seg3"))

	require.NoError(t, locker.MarkForDeletion(ctx, "seg4"))
	require.NoError(t, locker.MarkForDeletion(ctx, "seg4"))
	assert.Equal(t, 1, store.deleteCount("seg4"))
}

func TestNewReadersRejectedWhilePending(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("seg5")
	locker := newTestLocker(store)

	ok, err := locker.AcquireReadLock(ctx, "seg5")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, locker.MarkForDeletion(ctx, "seg5"))

	ok, err = locker.AcquireReadLock(ctx, "seg5")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), locker.RefCount("seg5"))
	assert.True(t, store.exists("seg5"))

	require.NoError(t, locker.ReleaseReadLock(ctx, "seg5"))
	assert.False(t, store.exists("seg5"))
}

func TestReleaseWithoutAcquireIsViolation(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("seg6")
	core, logs := observer.New(zapcore.InfoLevel)
	m := metrics.NewLockMetrics(prometheus.NewRegistry())
	locker := NewCounting(4, store, zap.New(core).Sugar(), m)

	err := locker.ReleaseReadLock(ctx, "seg6")
	require.Error(t, err)
	le, ok := errors.AsLockError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrLockAccountingViolation, le.Code())
	assert.Equal(t, "seg6", le.FileName())

	ok, err = locker.AcquireReadLock(ctx, "seg6")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, locker.ReleaseReadLock(ctx, "seg6"))

	err = locker.ReleaseReadLock(ctx, "seg6")
	assert.True(t, errors.HasCode(err, errors.ErrLockAccountingViolation))

	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.DPanicLevel).Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AccountingViolation))
	assert.Equal(t, 0, store.deleteCount("seg6"))
}

func TestViolationPanicsWithDevelopmentLogger(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	locker := NewCounting(1, newFakeStore(), zap.New(core, zap.Development()).Sugar(), nil)

	assert.Panics(t, func() {
		_ = locker.ReleaseReadLock(context.Background(), "never-acquired")
	})
}

func TestDeletionFailureStaysPendingAndRetries(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("seg7")
	store.failDeletes = 1
	locker := newTestLocker(store)

	err := locker.MarkForDeletion(ctx, "seg7")
	require.ErrorIs(t, err, errBucketDown)

	stats := locker.Stats()
	assert.Equal(t, 1, stats.PendingDeletions)
	assert.Equal(t, int64(0), stats.OutstandingLocks)
	assert.Equal(t, 0, stats.Deleting)

	ok, err := locker.AcquireReadLock(ctx, "seg7")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.MarkForDeletion(ctx, "seg7"))
	assert.Equal(t, 1, store.deleteCount("seg7"))
	assert.Equal(t, 2, store.attempts["seg7"])
	assert.Equal(t, Stats{}, locker.Stats())
}

func TestDeferredDeletionFailurePropagatesToReleaser(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("seg8")
	locker := newTestLocker(store)

	ok, err := locker.AcquireReadLock(ctx, "seg8")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, locker.MarkForDeletion(ctx, "seg8"))

	store.mu.Lock()
	store.failDeletes = 1
	store.mu.Unlock()

	err = locker.ReleaseReadLock(ctx, "seg8")
	require.ErrorIs(t, err, errBucketDown)
	assert.Equal(t, 1, locker.Stats().PendingDeletions)

	require.NoError(t, locker.MarkForDeletion(ctx, "seg8"))
	assert.Equal(t, 1, store.deleteCount("seg8"))
}

func TestExistsErrorIsReturned(t *testing.T) {
	store := newFakeStore("seg9")
	store.existsErr = errBucketDown
	locker := newTestLocker(store)

	ok, err := locker.AcquireReadLock(context.Background(), "seg9")
	require.ErrorIs(t, err, errBucketDown)
	assert.False(t, ok)
	assert.Equal(t, 0, locker.Stats().TrackedFiles)
}

func TestRecreatedFileCanBeLockedAgain(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("segments.gen")
	locker := newTestLocker(store)

	require.NoError(t, locker.MarkForDeletion(ctx, "segments.gen"))
	store.put("segments.gen")

	ok, err := locker.AcquireReadLock(ctx, "segments.gen")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, locker.ReleaseReadLock(ctx, "segments.gen"))
	assert.True(t, store.exists("segments.gen"))
}

func TestPendingFileDoesNotBlockOtherNames(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("a", "b")
	locker := NewCounting(1, store, zap.NewNop().Sugar(), nil)

	ok, err := locker.AcquireReadLock(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, locker.MarkForDeletion(ctx, "a"))

	ok, err = locker.AcquireReadLock(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)

	stats := locker.Stats()
	assert.Equal(t, 2, stats.TrackedFiles)
	assert.Equal(t, int64(2), stats.OutstandingLocks)
	assert.Equal(t, 1, stats.PendingDeletions)
}

func TestConcurrentReadersNeverSeeDeletedChunks(t *testing.T) {
	ctx := context.Background()
	const (
		files   = 4
		readers = 16
		rounds  = 200
	)

	store := newFakeStore()
	for i := range files {
		store.put(fmt.Sprintf("_%d.cfs", i))
	}

	holders := make([]atomic.Int64, files)
	var premature atomic.Int64
	store.onDelete = func(fileName string) {
		var idx int
		_, _ = fmt.Sscanf(fileName, "_%d.cfs", &idx)
		if holders[idx].Load() != 0 {
			premature.Add(1)
		}
	}

	locker := NewCounting(2, store, zap.NewNop().Sugar(), nil)

	var wg sync.WaitGroup
	for r := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rounds {
				idx := (r + i) % files
				name := fmt.Sprintf("_%d.cfs", idx)

				ok, err := locker.AcquireReadLock(ctx, name)
				if err != nil {
					t.Errorf("acquire %s: %v", name, err)
					return
				}
				if !ok {
					continue
				}

				holders[idx].Add(1)
				if !store.exists(name) {
					premature.Add(1)
				}
				holders[idx].Add(-1)

				if err := locker.ReleaseReadLock(ctx, name); err != nil {
					t.Errorf("release %s: %v", name, err)
					return
				}
			}
		}()
	}

	for i := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("_%d.cfs", i)
			for range 3 {
				if err := locker.MarkForDeletion(ctx, name); err != nil {
					t.Errorf("mark %s: %v", name, err)
				}
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, premature.Load())
	for i := range files {
		name := fmt.Sprintf("_%d.cfs", i)
		assert.Equal(t, 1, store.deleteCount(name), name)

		ok, err := locker.AcquireReadLock(ctx, name)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, Stats{}, locker.Stats())
}

func TestNewSelectsStrategy(t *testing.T) {
	log := zap.NewNop().Sugar()
	store := newFakeStore()

	l, err := New(&options.LockOptions{Strategy: options.LockStrategyCounting, Shards: 4}, store, log, nil)
	require.NoError(t, err)
	assert.IsType(t, &CountingLocker{}, l)

	l, err = New(&options.LockOptions{Strategy: options.LockStrategyNone}, store, log, nil)
	require.NoError(t, err)
	assert.IsType(t, &NoopLocker{}, l)

	_, err = New(&options.LockOptions{Strategy: "exclusive"}, store, log, nil)
	assert.True(t, errors.HasCode(err, errors.ErrLockUnknownStrategy))
}

func TestNoopLockerDeletesImmediately(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("_0.si")
	locker := NewNoop(store, zap.NewNop().Sugar(), nil)

	ok, err := locker.AcquireReadLock(ctx, "_0.si")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, locker.MarkForDeletion(ctx, "_0.si"))
	assert.Equal(t, 1, store.deleteCount("_0.si"))
	require.NoError(t, locker.ReleaseReadLock(ctx, "_0.si"))

	ok, err = locker.AcquireReadLock(ctx, "_0.si")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.MarkForDeletion(ctx, "_0.si"))
	assert.Equal(t, 1, store.deleteCount("_0.si"))
}

func TestInUseTracksReadersAndPendingDeletion(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("_6.fnm")
	store.failDeletes = 1
	locker := newTestLocker(store)

	assert.False(t, locker.InUse("_6.fnm"))

	ok, err := locker.AcquireReadLock(ctx, "_6.fnm")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, locker.InUse("_6.fnm"))

	require.NoError(t, locker.MarkForDeletion(ctx, "_6.fnm"))
	assert.True(t, locker.InUse("_6.fnm"))

	require.ErrorIs(t, locker.ReleaseReadLock(ctx, "_6.fnm"), errBucketDown)
	assert.True(t, locker.InUse("_6.fnm"), "failed deletion keeps the name reserved")

	require.NoError(t, locker.MarkForDeletion(ctx, "_6.fnm"))
	assert.False(t, locker.InUse("_6.fnm"))

	noop := NewNoop(newFakeStore("_6.fnm"), zap.NewNop().Sugar(), nil)
	assert.False(t, noop.InUse("_6.fnm"))
}

func TestMarkLeavesNameWithoutMetadataAlone(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	locker := newTestLocker(store)

	// Chunks of a write in progress exist before its metadata does.
	require.NoError(t, locker.MarkForDeletion(ctx, "_7.tmp"))
	assert.Zero(t, store.attempts["_7.tmp"])
	assert.False(t, locker.InUse("_7.tmp"))

	store.put("_7.tmp")
	require.NoError(t, locker.MarkForDeletion(ctx, "_7.tmp"))
	assert.Equal(t, 1, store.deleteCount("_7.tmp"))
}
