package engine

import (
	"context"
	"sync/atomic"

	"github.com/iamBelugaa/chunkfs/internal/storage"
	"github.com/iamBelugaa/chunkfs/pkg/errors"
)

// Input is an open file. It holds one read lock until Close.
type Input struct {
	engine *Engine
	meta   *storage.Metadata
	closed atomic.Bool
}

func (in *Input) Name() string {
	return in.meta.Name
}

// Length returns the file size in bytes.
func (in *Input) Length() uint64 {
	return in.meta.Size
}

func (in *Input) ChunkCount() int {
	return int(in.meta.ChunkCount)
}

// ReadChunk returns the chunk at index.
func (in *Input) ReadChunk(ctx context.Context, index int) ([]byte, error) {
	if in.closed.Load() {
		return nil, ErrInputClosed
	}
	if index < 0 || index >= int(in.meta.ChunkCount) {
		return nil, errors.NewFieldRangeError("chunk", index, 0, int(in.meta.ChunkCount)-1).
			WithDetail("fileName", in.meta.Name)
	}
	return in.engine.store.ReadChunk(ctx, in.meta.Name, index)
}

// ReadAll returns the whole file content after verifying its checksum.
func (in *Input) ReadAll(ctx context.Context) ([]byte, error) {
	if in.closed.Load() {
		return nil, ErrInputClosed
	}
	return in.engine.store.ReadFile(ctx, in.meta)
}

// Close releases the read lock with a background context.
func (in *Input) Close() error {
	return in.CloseContext(context.Background())
}

// CloseContext releases the read lock. If the file was deleted while open,
// this is where its chunks are removed, and the deletion error is returned.
// Closing twice is a no-op.
func (in *Input) CloseContext(ctx context.Context) error {
	if !in.closed.CompareAndSwap(false, true) {
		return nil
	}
	in.engine.index.Remove(in.meta.Name, in)
	return in.engine.locker.ReleaseReadLock(ctx, in.meta.Name)
}
