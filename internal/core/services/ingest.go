package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driven"
	"github.com/helixbi/querypilot/internal/core/ports/driving"
	"github.com/helixbi/querypilot/internal/logger"
	"github.com/helixbi/querypilot/internal/metrics"
)

// Ensure IngestService implements the interface.
var _ driving.IngestDriver = (*IngestService)(nil)

// bulkWriters bounds concurrent per-document writes during bulk
// ingest.
const bulkWriters = 8

// IngestConfig holds ingest settings.
type IngestConfig struct {
	// EmbedTimeout bounds one embedding call.
	EmbedTimeout time.Duration

	// BatchSize bounds one provider batch call during bulk ingest.
	BatchSize int
}

// IngestService owns the document write path: ID assignment,
// embedding, and the dual write into the lexical and vector indexes.
//
// Half-failure policy: the lexical index is the system of record. A
// document that indexed lexically but missed the vector write is a
// success with a reconcile log entry; a document that missed the
// lexical write is a failure even when its vector landed, and the
// orphan vector is also recorded.
type IngestService struct {
	searchEngine driven.SearchEngine
	vectorIndex  driven.VectorIndex
	embedder     driven.EmbeddingService
	reconcile    driven.ReconcileLog
	cfg          IngestConfig
}

// NewIngestService creates an ingest service. The vector index,
// embedder, and reconcile log are optional.
func NewIngestService(
	searchEngine driven.SearchEngine,
	vectorIndex driven.VectorIndex,
	embedder driven.EmbeddingService,
	reconcile driven.ReconcileLog,
	cfg IngestConfig,
) *IngestService {
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 500 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &IngestService{
		searchEngine: searchEngine,
		vectorIndex:  vectorIndex,
		embedder:     embedder,
		reconcile:    reconcile,
		cfg:          cfg,
	}
}

// Add indexes one document and returns its ID. Adds are idempotent by
// ID: the same input twice converges to the same stored state.
func (s *IngestService) Add(ctx context.Context, input domain.DocumentInput) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}

	doc := s.buildDocument(input)

	if s.vectorIndex != nil && s.embedder != nil {
		embedding, err := s.embedWithRetry(ctx, doc.Text)
		if err != nil {
			logger.Warn("Ingest: embedding failed for %s, indexing lexical-only: %v", doc.ID, err)
			metrics.Inc(metrics.EmbedFailures)
		}
		doc.Embedding = embedding
	}

	return doc.ID, s.writeDocument(ctx, doc)
}

// BulkAdd indexes many documents, accumulating per-document failures
// without aborting the batch. Embeddings are computed in provider
// batches up front; writes fan out across a bounded worker group.
func (s *IngestService) BulkAdd(ctx context.Context, inputs []domain.DocumentInput) (domain.BulkResult, error) {
	result := domain.BulkResult{Errors: make(map[string]string)}
	if len(inputs) == 0 {
		return result, nil
	}

	docs := make([]domain.Document, 0, len(inputs))
	for i, input := range inputs {
		if err := input.Validate(); err != nil {
			result.ErrorCount++
			result.Errors[bulkErrorKey(input, i)] = err.Error()
			continue
		}
		docs = append(docs, s.buildDocument(input))
	}

	s.embedBulk(ctx, docs)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkWriters)

	for i := range docs {
		doc := docs[i]
		g.Go(func() error {
			err := s.writeDocument(gctx, doc)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.ErrorCount++
				result.Errors[doc.ID] = err.Error()
			} else {
				result.SuccessCount++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("bulk add: %w", err)
	}

	logger.Info("Bulk ingest: %d succeeded, %d failed", result.SuccessCount, result.ErrorCount)
	return result, nil
}

// IncrementFrequency adds delta to a document's selection counter.
func (s *IngestService) IncrementFrequency(ctx context.Context, id string, delta int64) error {
	return s.searchEngine.IncrementFrequency(ctx, id, delta)
}

// IncrementFrequencyByText bumps the counter of the document whose
// text matches exactly. Unknown text is a no-op: feedback may name a
// suggestion that was never a corpus document.
func (s *IngestService) IncrementFrequencyByText(ctx context.Context, text string, delta int64) error {
	doc, err := s.searchEngine.FindByText(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find by text: %w", err)
	}
	return s.searchEngine.IncrementFrequency(ctx, doc.ID, delta)
}

// buildDocument assigns the ID and timestamps.
func (s *IngestService) buildDocument(input domain.DocumentInput) domain.Document {
	id := input.ID
	if id == "" {
		id = domain.HashID(input.Text)
	}
	now := time.Now().UTC()
	return domain.Document{
		ID:        id,
		Text:      input.Text,
		Keywords:  input.Keywords,
		Metadata:  input.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// embedWithRetry embeds text, retrying once. Transient provider
// hiccups are common enough that a single retry pays for itself.
func (s *IngestService) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	embedding, err := s.embedder.Embed(ectx, text)
	if err == nil {
		return embedding, nil
	}

	rctx, rcancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer rcancel()
	return s.embedder.Embed(rctx, text)
}

// embedBulk fills embeddings in place using provider batches. A
// failed batch retries once; documents in a batch that still fails
// proceed lexical-only.
func (s *IngestService) embedBulk(ctx context.Context, docs []domain.Document) {
	if s.vectorIndex == nil || s.embedder == nil {
		return
	}

	for start := 0; start < len(docs); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Text
		}

		vectors, err := s.embedBatchWithRetry(ctx, texts)
		if err != nil {
			logger.Warn("Bulk ingest: embedding batch failed, %d documents go lexical-only: %v", len(batch), err)
			metrics.Add(metrics.EmbedFailures, int64(len(batch)))
			continue
		}
		for i := range batch {
			batch[i].Embedding = vectors[i]
		}
	}
}

func (s *IngestService) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	vectors, err := s.embedder.EmbedBatch(ectx, texts)
	if err == nil {
		return vectors, nil
	}

	rctx, rcancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer rcancel()
	return s.embedder.EmbedBatch(rctx, texts)
}

// writeDocument performs the dual write under the half-failure
// policy.
func (s *IngestService) writeDocument(ctx context.Context, doc domain.Document) error {
	lexErr := s.searchEngine.Index(ctx, doc)

	var vecErr error
	wroteVector := false
	if s.vectorIndex != nil && doc.Embedding != nil {
		vecErr = s.vectorIndex.Add(ctx, doc.ID, doc.Embedding)
		wroteVector = vecErr == nil
	}

	switch {
	case lexErr != nil && wroteVector:
		// Orphan vector: record it so a sweep can remove or repair.
		s.recordReconcile(ctx, doc.ID, "lexical", lexErr.Error())
		return fmt.Errorf("lexical index: %w", lexErr)

	case lexErr != nil:
		return fmt.Errorf("lexical index: %w", lexErr)

	case vecErr != nil:
		logger.Warn("Ingest: vector write failed for %s, document searchable lexically: %v", doc.ID, vecErr)
		metrics.Inc(metrics.VectorDegraded)
		s.recordReconcile(ctx, doc.ID, "vector", vecErr.Error())
		return nil

	case s.vectorIndex != nil && doc.Embedding == nil && s.embedder != nil:
		s.recordReconcile(ctx, doc.ID, "vector", "embedding unavailable")
		return nil

	default:
		return nil
	}
}

func (s *IngestService) recordReconcile(ctx context.Context, docID, missingLeg, reason string) {
	if s.reconcile == nil {
		return
	}
	entry := driven.ReconcileEntry{
		DocID:      docID,
		MissingLeg: missingLeg,
		Reason:     reason,
	}
	if err := s.reconcile.Record(ctx, entry); err != nil {
		logger.Warn("Ingest: reconcile record failed for %s: %v", docID, err)
		metrics.Inc(metrics.SwallowedErrors)
		return
	}
	metrics.Inc(metrics.ReconcileRecorded)
}

// bulkErrorKey identifies a failed input by ID when derivable, else
// by ordinal position.
func bulkErrorKey(input domain.DocumentInput, i int) string {
	if input.ID != "" {
		return input.ID
	}
	if input.Text != "" {
		return domain.HashID(input.Text)
	}
	return fmt.Sprintf("#%d", i)
}
