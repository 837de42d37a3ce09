package driving

import (
	"context"

	"github.com/helixbi/querypilot/internal/core/domain"
)

// IngestDriver exposes the document write path to external actors.
type IngestDriver interface {
	// Add indexes one document and returns its ID. Adds are
	// idempotent by ID.
	Add(ctx context.Context, input domain.DocumentInput) (string, error)

	// BulkAdd indexes many documents, accumulating per-document
	// failures without aborting the batch.
	BulkAdd(ctx context.Context, inputs []domain.DocumentInput) (domain.BulkResult, error)
}
