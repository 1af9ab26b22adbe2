package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigestMatchesWholeContent(t *testing.T) {
	c := NewCRC32IEEE()
	data := []byte("segments_1 holds the commit point of the index")

	h := c.Digest()
	for _, piece := range [][]byte{data[:7], data[7:20], data[20:]} {
		_, _ = h.Write(piece)
	}

	assert.Equal(t, c.Calculate(data), h.Sum32())
	assert.NotEqual(t, c.Calculate(data[1:]), h.Sum32())
}
