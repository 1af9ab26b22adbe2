// Package engine ties the chunk store, the table of open inputs and the
// segment read-lock manager together behind file-level operations.
//
// The bucket may be shared with other processes, so metadata is always read
// from the store. Read locks only protect against deletions issued through
// the same engine.
package engine

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/iamBelugaa/chunkfs/internal/index"
	"github.com/iamBelugaa/chunkfs/internal/metrics"
	"github.com/iamBelugaa/chunkfs/internal/readlock"
	"github.com/iamBelugaa/chunkfs/internal/storage"
	"github.com/iamBelugaa/chunkfs/pkg/errors"
	"github.com/iamBelugaa/chunkfs/pkg/options"
)

var (
	ErrEngineClosed = stdErrors.New("operation failed: cannot access closed engine")
	ErrInputClosed  = stdErrors.New("operation failed: input already closed")
	ErrFileInUse    = stdErrors.New("operation failed: file is open or pending deletion")
)

// Engine coordinates all subsystems.
type Engine struct {
	closed  atomic.Bool
	index   *index.Index
	store   *storage.Store
	locker  readlock.Locker
	options *options.Options
	log     *zap.SugaredLogger
}

// New opens the chunk store and builds the configured read-lock strategy.
// Metrics are registered on reg when it is not nil.
func New(ctx context.Context, log *zap.SugaredLogger, opts *options.Options, reg prometheus.Registerer) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	log.Infow("Initializing engine", "bucketURL", opts.BucketURL, "lockStrategy", opts.LockOptions.Strategy)

	store, err := storage.Open(ctx, log, opts)
	if err != nil {
		return nil, err
	}

	locker, err := readlock.New(opts.LockOptions, store, log, metrics.NewLockMetrics(reg))
	if err != nil {
		return nil, multierr.Append(err, store.Close())
	}

	return &Engine{
		log:     log,
		store:   store,
		locker:  locker,
		options: opts,
		index:   index.New(log),
	}, nil
}

// WriteFile stores data under name. A name with open inputs or a deletion
// that has not completed is rejected with FILE_IN_USE.
func (e *Engine) WriteFile(ctx context.Context, name string, data []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	if e.locker.InUse(name) {
		return errors.NewStorageError(ErrFileInUse, errors.ErrFileInUse, "File is open or pending deletion").
			WithFileName(name)
	}

	_, err := e.store.WriteFile(ctx, name, data)
	return err
}

// OpenFile takes a read lock on name and returns an Input over its chunks.
// The lock is held until the Input is closed.
func (e *Engine) OpenFile(ctx context.Context, name string) (*Input, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	ok, err := e.locker.AcquireReadLock(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewStorageError(storage.ErrNotFound, errors.ErrFileNotFound, "File not found or pending deletion").
			WithFileName(name)
	}

	meta, err := e.store.Metadata(ctx, name)
	if err != nil {
		if releaseErr := e.locker.ReleaseReadLock(ctx, name); releaseErr != nil {
			e.log.Errorw("Failed to release read lock after metadata error", "fileName", name, "error", releaseErr)
			err = multierr.Append(err, releaseErr)
		}
		return nil, err
	}

	in := &Input{engine: e, meta: meta}
	e.index.Add(name, in)

	e.log.Debugw("File opened", "fileName", name, "size", meta.Size, "chunkCount", meta.ChunkCount)
	return in, nil
}

// DeleteFile marks name for deletion. The chunks are removed now when no
// Input is open on the file, or when the last one closes.
func (e *Engine) DeleteFile(ctx context.Context, name string) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	if err := e.locker.MarkForDeletion(ctx, name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// FileExists reports whether name is present in the chunk store.
func (e *Engine) FileExists(ctx context.Context, name string) (bool, error) {
	if e.closed.Load() {
		return false, ErrEngineClosed
	}
	return e.store.Exists(ctx, name)
}

// FileLength returns the content length of name.
func (e *Engine) FileLength(ctx context.Context, name string) (uint64, error) {
	if e.closed.Load() {
		return 0, ErrEngineClosed
	}

	meta, err := e.store.Metadata(ctx, name)
	if err != nil {
		return 0, err
	}
	return meta.Size, nil
}

// ListFiles returns the names of all complete files.
func (e *Engine) ListFiles(ctx context.Context) ([]string, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	return e.store.List(ctx)
}

// LockStats returns the read-lock registry snapshot when the counting strategy is in use.
func (e *Engine) LockStats() (readlock.Stats, bool) {
	if counting, ok := e.locker.(*readlock.CountingLocker); ok {
		return counting.Stats(), true
	}
	return readlock.Stats{}, false
}

// Close shuts the engine down. Inputs still open are closed first, so the
// deletions deferred to them run while the bucket is still available.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	e.log.Infow("Closing engine")
	if open := e.index.Len(); open > 0 {
		e.log.Warnw("Closing engine with open inputs", "openInputs", open)
	}

	var err error
	if closeErr := e.index.Close(context.Background()); closeErr != nil {
		e.log.Errorw("Failed to close open inputs", "error", closeErr)
		err = multierr.Append(err, fmt.Errorf("failed to close inputs: %w", closeErr))
	}

	if closeErr := e.store.Close(); closeErr != nil {
		e.log.Errorw("Failed to close chunk store", "error", closeErr)
		err = multierr.Append(err, fmt.Errorf("failed to close store: %w", closeErr))
	}

	if err != nil {
		return err
	}

	e.log.Infow("Engine closed successfully")
	return nil
}
