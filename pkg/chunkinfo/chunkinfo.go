// Package chunkinfo defines how logical files map onto bucket keys.
//
// A file named "_0.cfs" stored under prefix "idx" occupies:
//
//	idx/_0.cfs/metadata
//	idx/_0.cfs/chunks/00000000
//	idx/_0.cfs/chunks/00000001
//	...
//
// The metadata record is what makes a file visible; chunks without metadata
// are leftovers of an interrupted write or delete.
package chunkinfo

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

const (
	MetadataObject = "metadata"
	ChunksDir      = "chunks"

	chunkIndexWidth = 8
)

// FileDir returns the key prefix shared by every object of a file, with a trailing slash.
func FileDir(prefix, fileName string) string {
	return join(prefix, fileName) + "/"
}

// MetadataKey returns the key of a file's metadata record.
func MetadataKey(prefix, fileName string) string {
	return join(prefix, fileName, MetadataObject)
}

// ChunksPrefix returns the key prefix under which a file's chunks live, with a trailing slash.
func ChunksPrefix(prefix, fileName string) string {
	return join(prefix, fileName, ChunksDir) + "/"
}

// ChunkKey returns the key of the chunk at index.
// Example: ChunkKey("idx", "_0.cfs", 3) -> "idx/_0.cfs/chunks/00000003".
func ChunkKey(prefix, fileName string, index int) string {
	return ChunksPrefix(prefix, fileName) + fmt.Sprintf("%0*d", chunkIndexWidth, index)
}

// ParseChunkIndex extracts the chunk index from a chunk key of fileName.
func ParseChunkIndex(key, prefix, fileName string) (int, error) {
	chunksPrefix := ChunksPrefix(prefix, fileName)
	if !strings.HasPrefix(key, chunksPrefix) {
		return 0, fmt.Errorf("key %s is not a chunk of %s", key, fileName)
	}

	raw := strings.TrimPrefix(key, chunksPrefix)
	if raw == "" || strings.Contains(raw, "/") {
		return 0, fmt.Errorf("key %s has unexpected format, expected %sNNNNNNNN", key, chunksPrefix)
	}

	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("failed to parse chunk index '%s': %w", raw, err)
	}
	return index, nil
}

// FileNameFromMetadataKey returns the file name a metadata key belongs to, or
// false when key is not a metadata key under prefix.
func FileNameFromMetadataKey(key, prefix string) (string, bool) {
	rest := key
	if prefix != "" {
		if !strings.HasPrefix(key, prefix+"/") {
			return "", false
		}
		rest = strings.TrimPrefix(key, prefix+"/")
	}

	name, object := path.Split(rest)
	if object != MetadataObject || name == "" {
		return "", false
	}
	name = strings.TrimSuffix(name, "/")
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// ChunkCount returns how many chunks of chunkSize bytes hold size bytes. An
// empty file still owns one empty chunk.
func ChunkCount(size uint64, chunkSize uint32) int {
	if size == 0 || chunkSize == 0 {
		return 1
	}
	return int((size + uint64(chunkSize) - 1) / uint64(chunkSize))
}

func join(prefix string, parts ...string) string {
	if prefix == "" {
		return path.Join(parts...)
	}
	return path.Join(append([]string{prefix}, parts...)...)
}
