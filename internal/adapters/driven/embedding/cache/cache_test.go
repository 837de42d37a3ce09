package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixbi/querypilot/internal/adapters/driven/embedding/local"
)

// countingEmbedder counts provider invocations.
type countingEmbedder struct {
	*local.EmbeddingService
	embedCalls int
	batchCalls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedCalls++
	return c.EmbeddingService.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchCalls++
	return c.EmbeddingService.EmbedBatch(ctx, texts)
}

func newCounting() *countingEmbedder {
	return &countingEmbedder{
		EmbeddingService: local.NewEmbeddingService(local.Config{Dimensions: 16}),
	}
}

func TestEmbedCachesHits(t *testing.T) {
	inner := newCounting()
	svc := Wrap(inner, 10)
	ctx := context.Background()

	a, err := svc.Embed(ctx, "销售额")
	require.NoError(t, err)
	b, err := svc.Embed(ctx, "销售额")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 1, inner.embedCalls, "second call must be a cache hit")
}

func TestEmbedReturnsCopies(t *testing.T) {
	svc := Wrap(newCounting(), 10)
	ctx := context.Background()

	a, err := svc.Embed(ctx, "text")
	require.NoError(t, err)
	a[0] = 42

	b, err := svc.Embed(ctx, "text")
	require.NoError(t, err)
	assert.NotEqual(t, float32(42), b[0], "caller mutation must not reach the cache")
}

func TestEmbedBatchOnlyForwardsMisses(t *testing.T) {
	inner := newCounting()
	svc := Wrap(inner, 10)
	ctx := context.Background()

	_, err := svc.Embed(ctx, "one")
	require.NoError(t, err)

	vecs, err := svc.EmbedBatch(ctx, []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, 1, inner.batchCalls)

	// Everything is cached now; a repeat batch needs no provider call.
	_, err = svc.EmbedBatch(ctx, []string{"one", "two", "three"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.batchCalls)
}

func TestEviction(t *testing.T) {
	inner := newCounting()
	svc := Wrap(inner, 2)
	ctx := context.Background()

	_, err := svc.Embed(ctx, "a")
	require.NoError(t, err)
	_, err = svc.Embed(ctx, "b")
	require.NoError(t, err)
	_, err = svc.Embed(ctx, "c")
	require.NoError(t, err)

	// "a" was evicted; embedding it again hits the provider.
	_, err = svc.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 4, inner.embedCalls)
}

func TestPassThroughMetadata(t *testing.T) {
	svc := Wrap(newCounting(), 10)
	assert.Equal(t, 16, svc.Dimensions())
	assert.Equal(t, "local-sha256", svc.ModelName())
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}
