package stream

import (
	"sync"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"

	"github.com/TheusHen/mage/mage/protocol"
)

// CompressionLevel controls the speed/ratio tradeoff.
type CompressionLevel int

const (
	CompressionNone CompressionLevel = iota // Segments are sent as is
	CompressionFast                         // lz4 block, fastest
	CompressionBest                         // lz4 HC level 9, better ratio, slower
)

// compressorPool reuses lz4 compressors, they carry a sizeable hash table.
var compressorPool = sync.Pool{
	New: func() interface{} {
		return new(lz4.Compressor)
	},
}

// compressSegment compresses a segment if beneficial.
// Returns ok=false when compression doesn't help.
func compressSegment(segment []byte, level CompressionLevel) ([]byte, bool) {
	if len(segment) == 0 {
		return segment, false
	}
	dst := make([]byte, lz4.CompressBlockBound(len(segment)))

	var n int
	var err error
	switch level {
	case CompressionBest:
		hc := lz4.CompressorHC{Level: lz4.Level9}
		n, err = hc.CompressBlock(segment, dst)
	default:
		c := compressorPool.Get().(*lz4.Compressor)
		n, err = c.CompressBlock(segment, dst)
		compressorPool.Put(c)
	}
	// n == 0 means the block is incompressible
	if err != nil || n == 0 || n >= len(segment) {
		return segment, false
	}
	return dst[:n], true
}

// decompressSegment reverses compressSegment. A segment never decompresses
// to more than MaxSegmentSize bytes.
func decompressSegment(packed []byte) ([]byte, error) {
	dst := make([]byte, MaxSegmentSize)
	n, err := lz4.UncompressBlock(packed, dst)
	if err != nil {
		return nil, errors.Wrapf(protocol.ErrFrame, "lz4 segment: %v", err)
	}
	return dst[:n], nil
}
