// Package local provides a deterministic embedding service that
// derives vectors from a SHA-256 stream of the input text. It needs
// no network or model files, making it the default provider and the
// standard test embedder. The vectors carry no semantics beyond
// "identical text embeds identically", which is enough for the
// keyword-dominant blend and for exercising the vector path.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/helixbi/querypilot/internal/adapters/driven/embedding"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultDimensions is the vector size when none is configured.
const DefaultDimensions = 384

// Config holds configuration for the local embedding service.
type Config struct {
	// Dimensions is the embedding vector size (default 384).
	Dimensions int

	// MaxInputChars truncates longer inputs on a rune boundary.
	MaxInputChars int
}

// EmbeddingService generates hash-derived unit vectors.
type EmbeddingService struct {
	dimensions    int
	maxInputChars int
}

// NewEmbeddingService creates a new local embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{
		dimensions:    cfg.Dimensions,
		maxInputChars: cfg.MaxInputChars,
	}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	text = embedding.Truncate(text, s.maxInputChars)

	// Stretch the digest into enough bytes by chaining hashes, then
	// map consecutive uint32 windows onto [-1, 1].
	vec := make([]float32, s.dimensions)
	digest := sha256.Sum256([]byte(text))
	buf := digest[:]

	for i := 0; i < s.dimensions; i++ {
		off := (i * 4) % len(buf)
		if off == 0 && i > 0 {
			next := sha256.Sum256(buf)
			buf = next[:]
		}
		u := binary.BigEndian.Uint32(buf[off : off+4])
		vec[i] = float32(u)/float32(1<<31) - 1.0
	}

	return embedding.Normalize(vec), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return "local-sha256"
}

// Ping validates the service is reachable.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
