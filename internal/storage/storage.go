// Package storage implements the chunk store: logical files split into
// fixed-size chunk objects plus one metadata record, kept in a gocloud.dev
// bucket shared by every process that reads or writes the same prefix.
package storage

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
	"golang.org/x/sync/errgroup"

	"github.com/iamBelugaa/chunkfs/pkg/checksum"
	"github.com/iamBelugaa/chunkfs/pkg/chunkinfo"
	"github.com/iamBelugaa/chunkfs/pkg/errors"
	"github.com/iamBelugaa/chunkfs/pkg/filesys"
	"github.com/iamBelugaa/chunkfs/pkg/options"
)

// Open opens the bucket named by options.BucketURL and returns a Store that
// closes it on Close.
func Open(ctx context.Context, log *zap.SugaredLogger, opts *options.Options) (*Store, error) {
	log.Infow(
		"Opening chunk store",
		"bucketURL", opts.BucketURL,
		"prefix", opts.Prefix,
		"chunkSize", options.FormatBytes(uint64(opts.ChunkOptions.Size)),
	)

	dir, err := filesys.EnsureBucketDir(opts.BucketURL)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrStoreOpenFailed, "Failed to prepare bucket directory").
			WithDetail("bucketURL", opts.BucketURL)
	}
	if dir != "" {
		log.Infow("Bucket directory ready", "path", dir)
	}

	bucket, err := blob.OpenBucket(ctx, opts.BucketURL)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrStoreOpenFailed, "Failed to open bucket").
			WithDetail("bucketURL", opts.BucketURL)
	}

	store := New(bucket, log, opts)
	store.owns = true
	return store, nil
}

// New wraps an already opened bucket. The caller keeps ownership of bucket.
func New(bucket *blob.Bucket, log *zap.SugaredLogger, opts *options.Options) *Store {
	concurrency := opts.ChunkOptions.DeleteConcurrency
	if concurrency < options.MinDeleteConcurrency {
		concurrency = options.DefaultDeleteConcurrency
	}

	return &Store{
		log:               log,
		bucket:            bucket,
		prefix:            strings.Trim(opts.Prefix, "/"),
		chunkSize:         opts.ChunkOptions.Size,
		deleteConcurrency: concurrency,
		checksummer:       checksum.NewCRC32IEEE(),
	}
}

// WriteFile stores data as a new file. Chunks are written first and the
// metadata record last, so readers never observe a partially written file.
// Chunks left over from a longer earlier version of the file are removed
// once the new metadata is in place.
func (s *Store) WriteFile(ctx context.Context, name string, data []byte) (*Metadata, error) {
	count := chunkinfo.ChunkCount(uint64(len(data)), s.chunkSize)
	s.log.Debugw("Writing file", "fileName", name, "size", len(data), "chunkCount", count)

	for i := range count {
		start := i * int(s.chunkSize)
		end := min(start+int(s.chunkSize), len(data))
		key := chunkinfo.ChunkKey(s.prefix, name, i)

		if err := s.bucket.WriteAll(ctx, key, data[start:end], nil); err != nil {
			return nil, errors.NewStorageError(err, errors.ErrChunkWriteFailed, "Failed to write chunk").
				WithFileName(name).
				WithKey(key).
				WithChunk(i)
		}
	}

	meta := &Metadata{
		Name:       name,
		Size:       uint64(len(data)),
		ChunkSize:  s.chunkSize,
		ChunkCount: uint32(count),
		Checksum:   s.checksummer.Calculate(data),
		ModifiedAt: time.Now().UnixNano(),
		Version:    MetadataVersion,
	}

	encoded, err := meta.MarshalProto()
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrMetadataWriteFailed, "Failed to encode metadata").
			WithFileName(name)
	}

	key := chunkinfo.MetadataKey(s.prefix, name)
	if err := s.bucket.WriteAll(ctx, key, encoded, &blob.WriterOptions{ContentType: "application/x-protobuf"}); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrMetadataWriteFailed, "Failed to write metadata").
			WithFileName(name).
			WithKey(key)
	}

	s.trimChunks(ctx, name, count)

	s.log.Infow(
		"File written",
		"fileName", name,
		"size", options.FormatBytes(meta.Size),
		"chunkCount", meta.ChunkCount,
		"checksum", meta.Checksum,
	)
	return meta, nil
}

// Exists reports whether name has a metadata record.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	key := chunkinfo.MetadataKey(s.prefix, name)
	exists, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, errors.NewStorageError(err, errors.ErrStoreExistsFailed, "Failed to check file existence").
			WithFileName(name).
			WithKey(key)
	}
	return exists, nil
}

// Metadata reads and decodes the metadata record of name. A missing record
// yields an error matching ErrNotFound.
func (s *Store) Metadata(ctx context.Context, name string) (*Metadata, error) {
	key := chunkinfo.MetadataKey(s.prefix, name)

	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, errors.NewStorageError(ErrNotFound, errors.ErrFileNotFound, "File not found").
				WithFileName(name).
				WithKey(key)
		}
		return nil, errors.NewStorageError(err, errors.ErrMetadataReadFailed, "Failed to read metadata").
			WithFileName(name).
			WithKey(key)
	}

	var meta Metadata
	if err := meta.UnmarshalProto(data); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrMetadataCorrupt, "Failed to decode metadata").
			WithFileName(name).
			WithKey(key).
			WithDetail("length", len(data))
	}
	return &meta, nil
}

// ReadChunk returns the content of one chunk.
func (s *Store) ReadChunk(ctx context.Context, name string, index int) ([]byte, error) {
	key := chunkinfo.ChunkKey(s.prefix, name, index)

	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		code := errors.ErrChunkReadFailed
		if gcerrors.Code(err) == gcerrors.NotFound {
			code = errors.ErrChunkMissing
		}
		return nil, errors.NewStorageError(err, code, "Failed to read chunk").
			WithFileName(name).
			WithKey(key).
			WithChunk(index)
	}
	return data, nil
}

// ReadFile reads every chunk described by meta and verifies the content checksum.
func (s *Store) ReadFile(ctx context.Context, meta *Metadata) ([]byte, error) {
	if meta == nil {
		return nil, ErrNilMetadata
	}

	buf := make([]byte, 0, meta.Size)
	digest := s.checksummer.Digest()
	for i := range int(meta.ChunkCount) {
		chunk, err := s.ReadChunk(ctx, meta.Name, i)
		if err != nil {
			return nil, err
		}
		_, _ = digest.Write(chunk)
		buf = append(buf, chunk...)
	}

	if uint64(len(buf)) != meta.Size || digest.Sum32() != meta.Checksum {
		return nil, errors.NewStorageError(ErrInvalidChecksum, errors.ErrChecksumMismatch, "File content does not match metadata").
			WithFileName(meta.Name).
			WithDetail("expectedSize", meta.Size).
			WithDetail("actualSize", len(buf)).
			WithDetail("expectedChecksum", meta.Checksum)
	}
	return buf, nil
}

// DeleteAll removes the metadata record and every chunk of name. The metadata
// goes first so the file stops existing before its chunks disappear. Keys that
// are already gone are not errors, so DeleteAll may be repeated after a partial
// failure.
func (s *Store) DeleteAll(ctx context.Context, name string) error {
	metaKey := chunkinfo.MetadataKey(s.prefix, name)
	if err := s.deleteKey(ctx, metaKey); err != nil {
		return errors.NewStorageError(err, errors.ErrStoreDeleteFailed, "Failed to delete metadata").
			WithFileName(name).
			WithKey(metaKey)
	}

	keys, err := s.listKeys(ctx, chunkinfo.ChunksPrefix(s.prefix, name))
	if err != nil {
		return errors.NewStorageError(err, errors.ErrStoreDeleteFailed, "Failed to list chunks for deletion").
			WithFileName(name)
	}

	failed, deleteErr := s.deleteKeys(ctx, keys)
	if deleteErr != nil {
		s.log.Errorw("Failed to delete chunks", "fileName", name, "failed", failed, "total", len(keys), "error", deleteErr)
		return errors.NewStorageError(deleteErr, errors.ErrStoreDeleteFailed, "Failed to delete chunks").
			WithFileName(name).
			WithDetail("failed", failed).
			WithDetail("total", len(keys))
	}

	s.log.Infow("File deleted from chunk store", "fileName", name, "chunks", len(keys))
	return nil
}

// List returns the names of every complete file under the prefix, in one
// listing of the prefix. Chunks without a metadata record are skipped.
func (s *Store) List(ctx context.Context) ([]string, error) {
	listPrefix := ""
	if s.prefix != "" {
		listPrefix = s.prefix + "/"
	}

	keys, err := s.listKeys(ctx, listPrefix)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrStoreListFailed, "Failed to list files")
	}

	var names []string
	for _, key := range keys {
		if name, ok := chunkinfo.FileNameFromMetadataKey(key, s.prefix); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// Close releases the bucket when the store opened it.
func (s *Store) Close() error {
	if s.owns && s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

// trimChunks deletes the chunks of name at index count and above. Failures
// only leave garbage behind, so they are logged and not returned.
func (s *Store) trimChunks(ctx context.Context, name string, count int) {
	keys, err := s.listKeys(ctx, chunkinfo.ChunksPrefix(s.prefix, name))
	if err != nil {
		s.log.Warnw("Failed to list chunks for trimming", "fileName", name, "error", err)
		return
	}

	var stale []string
	for _, key := range keys {
		index, err := chunkinfo.ParseChunkIndex(key, s.prefix, name)
		if err != nil {
			s.log.Warnw("Skipping unexpected key under chunks prefix", "fileName", name, "key", key, "error", err)
			continue
		}
		if index >= count {
			stale = append(stale, key)
		}
	}
	if len(stale) == 0 {
		return
	}

	if failed, err := s.deleteKeys(ctx, stale); err != nil {
		s.log.Warnw("Failed to remove stale chunks", "fileName", name, "failed", failed, "total", len(stale), "error", err)
		return
	}
	s.log.Debugw("Stale chunks removed", "fileName", name, "chunks", len(stale))
}

// deleteKeys deletes keys with at most deleteConcurrency requests in flight.
// Every key is attempted; the failures are combined into one error.
func (s *Store) deleteKeys(ctx context.Context, keys []string) (int, error) {
	var (
		mu        sync.Mutex
		deleteErr error
		failed    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.deleteConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			if err := s.deleteKey(gctx, key); err != nil {
				mu.Lock()
				failed++
				deleteErr = multierr.Append(deleteErr, fmt.Errorf("delete %s: %w", key, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return failed, deleteErr
}

func (s *Store) deleteKey(ctx context.Context, key string) error {
	err := s.bucket.Delete(ctx, key)
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

func (s *Store) listKeys(ctx context.Context, prefix string) ([]string, error) {
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})

	var keys []string
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			return keys, nil
		}
		if err != nil {
			return nil, err
		}
		if !obj.IsDir {
			keys = append(keys, obj.Key)
		}
	}
}

// IsNotFound reports whether err means the file does not exist.
func IsNotFound(err error) bool {
	return stdErrors.Is(err, ErrNotFound)
}
