// Package seedfile loads a JSONL corpus file into the index and can
// keep it in sync by watching the file for changes. Each line is one
// document:
//
//	{"text": "销售额趋势分析", "keywords": ["销售额"], "metadata": {"domain": "retail"}}
package seedfile

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/helixbi/querypilot/internal/core/domain"
	"github.com/helixbi/querypilot/internal/core/ports/driving"
	"github.com/helixbi/querypilot/internal/logger"
)

// maxLineBytes bounds one JSONL line. Lines beyond this abort the load
// rather than silently truncate a document.
const maxLineBytes = 1 << 20

type seedLine struct {
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text"`
	Keywords []string       `json:"keywords,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Parse reads JSONL documents from path. Blank lines are skipped; a
// malformed line fails the whole parse with its line number.
func Parse(path string) ([]domain.DocumentInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	var inputs []domain.DocumentInput

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var doc seedLine
		if err := json.Unmarshal(line, &doc); err != nil {
			return nil, fmt.Errorf("seed file line %d: %w", lineNo, err)
		}

		inputs = append(inputs, domain.DocumentInput{
			ID:       doc.ID,
			Text:     doc.Text,
			Keywords: doc.Keywords,
			Metadata: doc.Metadata,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	return inputs, nil
}

// Load parses path and bulk-ingests its documents. Per-document
// failures are logged and counted, not fatal.
func Load(ctx context.Context, ingest driving.IngestDriver, path string) (domain.BulkResult, error) {
	inputs, err := Parse(path)
	if err != nil {
		return domain.BulkResult{}, err
	}

	result, err := ingest.BulkAdd(ctx, inputs)
	if err != nil {
		return result, fmt.Errorf("seeding corpus: %w", err)
	}

	logger.Info("Seed: loaded %d documents from %s (%d failed)",
		result.SuccessCount, path, result.ErrorCount)
	for id, reason := range result.Errors {
		logger.Warn("Seed: document %s: %s", id, reason)
	}

	return result, nil
}
