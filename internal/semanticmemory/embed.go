package semanticmemory

import (
	"crypto/md5"
	"encoding/binary"
	"math"
	"strings"
)

// Embedder turns text into a fixed-dimension float32 vector.
type Embedder interface {
	Dim() int
	Embed(text string) []float32
}

// HashEmbedder is a deterministic, dependency-free embedding scheme: it
// hashes character 2-grams and 3-grams of the lowercased text into
// buckets of a fixed-width vector and L2-normalizes the result. Ported
// directly from semantic_memory.py's _simple_embedding, which exists
// there for the same reason it exists here — no model weights are
// available, but semantically similar text should still land close
// together in the vector space.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder builds a HashEmbedder with the given vector width.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Dim() int { return h.dim }

// Embed produces an L2-normalized vector from overlapping 2-gram and
// 3-gram character windows of the lowercased input.
func (h *HashEmbedder) Embed(text string) []float32 {
	vec := make([]float32, h.dim)
	lower := strings.ToLower(text)
	runes := []rune(lower)

	addGram := func(gram string) {
		sum := md5.Sum([]byte(gram))
		idx := int(binary.BigEndian.Uint32(sum[:4])) % h.dim
		if idx < 0 {
			idx += h.dim
		}
		vec[idx] += 1.0
	}

	for n := 2; n <= 3; n++ {
		for i := 0; i+n <= len(runes); i++ {
			addGram(string(runes[i : i+n]))
		}
	}

	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / magnitude)
		}
	}
	return vec
}

// encodeVector serializes a float32 vector as little-endian bytes for
// BLOB storage.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector reverses encodeVector.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		v[i] = math.Float32frombits(bits)
	}
	return v
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
