package storage

import (
	stdErrors "errors"
	"fmt"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/iamBelugaa/chunkfs/pkg/checksum"
)

var (
	ErrNotFound        = stdErrors.New("file not found")   // The file has no metadata record.
	ErrNilMetadata     = stdErrors.New("nil metadata")     // Encoding was asked for a nil record.
	ErrInvalidChecksum = stdErrors.New("invalid checksum") // Content does not match the stored checksum.
)

// MetadataVersion is the current metadata record format.
const MetadataVersion uint32 = 1

// Store is the chunked key-value store holding file chunks and metadata
// records in a gocloud.dev bucket.
type Store struct {
	bucket            *blob.Bucket
	owns              bool
	prefix            string
	chunkSize         uint32
	deleteConcurrency int
	log               *zap.SugaredLogger
	checksummer       *checksum.CRC32IEEE
}

// Metadata describes a logical file. It is written after all chunks, so its
// presence means the file is complete.
type Metadata struct {
	Name       string // Name is the logical file name.
	Size       uint64 // Size is the total content length in bytes.
	ChunkSize  uint32 // ChunkSize is the chunk size the file was written with.
	ChunkCount uint32 // ChunkCount is the number of chunk objects.
	Checksum   uint32 // Checksum is the CRC32 (IEEE) of the whole content.
	ModifiedAt int64  // ModifiedAt is the write time in unix nanoseconds.
	Version    uint32 // Version of the record format.
}

const (
	fieldName       protowire.Number = 1
	fieldSize       protowire.Number = 2
	fieldChunkSize  protowire.Number = 3
	fieldChunkCount protowire.Number = 4
	fieldChecksum   protowire.Number = 5
	fieldModifiedAt protowire.Number = 6
	fieldVersion    protowire.Number = 7
)

// MarshalProto serializes the record in protobuf wire format with a fixed field order.
func (m *Metadata) MarshalProto() ([]byte, error) {
	if m == nil {
		return nil, ErrNilMetadata
	}

	b := make([]byte, 0, 32+len(m.Name))
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, m.Name)
	b = protowire.AppendTag(b, fieldSize, protowire.VarintType)
	b = protowire.AppendVarint(b, m.Size)
	b = protowire.AppendTag(b, fieldChunkSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ChunkSize))
	b = protowire.AppendTag(b, fieldChunkCount, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ChunkCount))
	b = protowire.AppendTag(b, fieldChecksum, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, m.Checksum)
	b = protowire.AppendTag(b, fieldModifiedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ModifiedAt))
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Version))
	return b, nil
}

// UnmarshalProto decodes a record produced by MarshalProto. Unknown fields are skipped.
func (m *Metadata) UnmarshalProto(data []byte) error {
	var decoded Metadata

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			decoded.Name = v
			data = data[n:]
		case num == fieldChecksum && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			decoded.Checksum = v
			data = data[n:]
		case typ == protowire.VarintType && num >= fieldSize && num <= fieldVersion:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			switch num {
			case fieldSize:
				decoded.Size = v
			case fieldChunkSize:
				decoded.ChunkSize = uint32(v)
			case fieldChunkCount:
				decoded.ChunkCount = uint32(v)
			case fieldModifiedAt:
				decoded.ModifiedAt = int64(v)
			case fieldVersion:
				decoded.Version = uint32(v)
			}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}

	if decoded.Name == "" {
		return fmt.Errorf("metadata record has no file name")
	}
	if decoded.ChunkCount == 0 {
		return fmt.Errorf("metadata record for %s has no chunks", decoded.Name)
	}

	*m = decoded
	return nil
}
