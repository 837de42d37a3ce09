package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	behaviormem "github.com/helixbi/querypilot/internal/adapters/driven/behavior/memory"
	"github.com/helixbi/querypilot/internal/adapters/driven/lexical/memindex"
	"github.com/helixbi/querypilot/internal/core/domain"
)

func TestAddAssignsHashID(t *testing.T) {
	ts := newTestStack()
	ctx := context.Background()

	id, err := ts.ingest.Add(ctx, docInput("销售额"))
	require.NoError(t, err)
	assert.Equal(t, domain.HashID("销售额"), id)

	doc, err := ts.engine.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "销售额", doc.Text)
}

func TestAddRejectsBlankText(t *testing.T) {
	ts := newTestStack()
	_, err := ts.ingest.Add(context.Background(), docInput("   "))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAddIsIdempotent(t *testing.T) {
	ts := newTestStack()
	ctx := context.Background()

	id1, err := ts.ingest.Add(ctx, docInput("销售额", "销售"))
	require.NoError(t, err)
	id2, err := ts.ingest.Add(ctx, docInput("销售额", "销售"))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	count, err := ts.engine.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	vcount, err := ts.vector.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, vcount)
}

func TestAddEmbeddingIsUnitNorm(t *testing.T) {
	ts := newTestStack()
	ctx := context.Background()

	_, err := ts.ingest.Add(ctx, docInput("销售额趋势分析"))
	require.NoError(t, err)

	vec, err := ts.embedder.Embed(ctx, "销售额趋势分析")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
}

func TestBulkAddPartialFailure(t *testing.T) {
	ts := newTestStack()
	ctx := context.Background()

	result, err := ts.ingest.BulkAdd(ctx, []domain.DocumentInput{
		docInput("销售额"),
		docInput(""),
		docInput("市场分析"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, result.Errors, 1)

	// The surviving documents are searchable immediately.
	for _, text := range []string{"销售额", "市场分析"} {
		doc, err := ts.engine.FindByText(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, text, doc.Text)
	}
}

func TestAddVectorFailureRecordsReconcile(t *testing.T) {
	reconcile := behaviormem.NewReconcileLog()
	engine := memindex.New(memindex.Config{})
	embedder := newTestStack().embedder

	ingest := NewIngestService(engine, erroringVector{}, embedder, reconcile, IngestConfig{})
	ctx := context.Background()

	id, err := ingest.Add(ctx, docInput("销售额"))
	require.NoError(t, err, "lexical success with vector failure is a success")

	pending, err := reconcile.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].DocID)
	assert.Equal(t, "vector", pending[0].MissingLeg)
}

func TestIncrementFrequencyByTextMissingIsNoop(t *testing.T) {
	ts := newTestStack()
	err := ts.ingest.IncrementFrequencyByText(context.Background(), "unknown text", 1)
	assert.NoError(t, err)
}

// erroringVector fails every write.
type erroringVector struct {
	failingVector
}

func (erroringVector) Add(_ context.Context, _ string, _ []float32) error {
	return errors.New("vector store down")
}
