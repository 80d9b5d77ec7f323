package store

import (
	"encoding/binary"
	"math"

	"github.com/visage-project/visage/internal/inference"
)

// vectorToBytes serializes a 512-D float32 vector to its 2048 raw
// little-endian bytes.
func vectorToBytes(vec [inference.EmbeddingSize]float32) []byte {
	buf := make([]byte, rawEmbeddingSize)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// bytesToVector deserializes 2048 raw little-endian bytes back into a
// 512-D float32 vector.
func bytesToVector(buf []byte) [inference.EmbeddingSize]float32 {
	var vec [inference.EmbeddingSize]float32
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
