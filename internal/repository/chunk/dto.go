package chunk

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/groundkit/groundkit/internal/domain"
)

// buildFields converts a Chunk into a flat map[string]string for HSET.
// The source title is denormalized onto every row so retrieval can cite
// without a second lookup.
func buildFields(title string, c *domain.Chunk) map[string]string {
	fields := map[string]string{
		"source":   c.SourceID,
		"title":    title,
		"gen":      strconv.FormatInt(c.Generation, 10),
		"idx":      strconv.Itoa(c.Index),
		"content":  c.Content,
		"start":    strconv.Itoa(c.Start),
		"end":      strconv.Itoa(c.End),
		"live":     "0",
		"fallback": "0",
	}
	if c.Fallback {
		fields["fallback"] = "1"
	}
	if len(c.Vector) > 0 {
		fields["vector"] = vectorToBytes(c.Vector)
	}
	return fields
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	if len(s) == 0 || len(s)%4 != 0 {
		return nil
	}
	b := []byte(s)
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec
}
