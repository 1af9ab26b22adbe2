// Package checksum computes the CRC32 digests stored in file metadata.
package checksum

import (
	"hash"
	"hash/crc32"
)

type CRC32IEEE struct {
	table *crc32.Table
}

func NewCRC32IEEE() *CRC32IEEE {
	return &CRC32IEEE{table: crc32.MakeTable(crc32.IEEE)}
}

func (c *CRC32IEEE) Calculate(data []byte) uint32 {
	return crc32.Checksum(data, c.table)
}

// Digest returns a streaming hash using the same table, for content read
// piece by piece.
func (c *CRC32IEEE) Digest() hash.Hash32 {
	return crc32.New(c.table)
}
