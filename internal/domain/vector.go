package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// DefaultDimensions is the corpus-wide embedding dimensionality when the
// config does not override it.
const DefaultDimensions = 1024

// FallbackVector produces a deterministic unit vector from the text
// content hash. It stands in for a real embedding when the provider times
// out or errors on an item, so a batch never fails as a whole. The vector
// is stable across processes for identical content.
func FallbackVector(text string, dim int) []float32 {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	seed := sha256.Sum256([]byte(text))

	vec := make([]float32, dim)
	var norm float64
	// Stretch the 32-byte digest over dim components by re-hashing with a
	// block counter; each uint32 window maps to [-1, 1).
	block := seed
	for i := 0; i < dim; i++ {
		off := (i * 4) % (len(block) - 4)
		if i > 0 && off == 0 {
			block = sha256.Sum256(block[:])
		}
		u := binary.LittleEndian.Uint32(block[off : off+4])
		v := float64(u)/float64(math.MaxUint32)*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
