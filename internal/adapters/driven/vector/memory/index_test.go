package memory

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixbi/querypilot/internal/core/domain"
)

func unit(vals ...float32) []float32 {
	var norm float64
	for _, v := range vals {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func TestSearchOrdersBySimilarity(t *testing.T) {
	ix := New(3)
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, "x", unit(1, 0, 0)))
	require.NoError(t, ix.Add(ctx, "y", unit(0, 1, 0)))
	require.NoError(t, ix.Add(ctx, "xy", unit(1, 1, 0)))

	hits, err := ix.Search(ctx, unit(1, 0, 0), 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "x", hits[0].DocID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, "xy", hits[1].DocID)
	assert.InDelta(t, math.Sqrt2/2, hits[1].Similarity, 1e-6)
	assert.Equal(t, "y", hits[2].DocID)
	assert.InDelta(t, 0.0, hits[2].Similarity, 1e-6)
}

func TestSearchDeterministicTies(t *testing.T) {
	ix := New(2)
	ctx := context.Background()

	// Same vector under different IDs: ties break by ascending ID.
	require.NoError(t, ix.Add(ctx, "b", unit(1, 1)))
	require.NoError(t, ix.Add(ctx, "a", unit(1, 1)))

	hits, err := ix.Search(ctx, unit(1, 1), 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].DocID)
	assert.Equal(t, "b", hits[1].DocID)
}

func TestSearchLimitsToK(t *testing.T) {
	ix := New(2)
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, "a", unit(1, 0)))
	require.NoError(t, ix.Add(ctx, "b", unit(0, 1)))

	hits, err := ix.Search(ctx, unit(1, 0), 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestAddValidatesDimension(t *testing.T) {
	ix := New(3)
	err := ix.Add(context.Background(), "a", unit(1, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAddReplacesVector(t *testing.T) {
	ix := New(2)
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, "a", unit(1, 0)))
	require.NoError(t, ix.Add(ctx, "a", unit(0, 1)))

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hits, err := ix.Search(ctx, unit(0, 1), 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
}

func TestDelete(t *testing.T) {
	ix := New(2)
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, "a", unit(1, 0)))
	require.NoError(t, ix.Delete(ctx, "a"))
	assert.ErrorIs(t, ix.Delete(ctx, "a"), domain.ErrNotFound)

	hits, err := ix.Search(ctx, unit(1, 0), 1)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
