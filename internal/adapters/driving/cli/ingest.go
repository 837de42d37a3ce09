package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/helixbi/querypilot/internal/connectors/seedfile"
	"github.com/helixbi/querypilot/internal/core/domain"
)

var (
	ingestFile      string
	ingestBatchSize int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Bulk load a JSONL corpus file",
	Long: `Load documents from a JSONL file into the index, one document per
line:

  {"text": "销售额趋势分析", "keywords": ["销售额"], "metadata": {"domain": "retail"}}

Per-document failures are reported at the end without aborting the
load.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "JSONL corpus file (required)")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 100, "documents per indexing batch")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if ingestFile == "" {
		return errors.New("--file is required")
	}
	if ingestBatchSize < 1 {
		return errors.New("--batch-size must be at least 1")
	}

	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	inputs, err := seedfile.Parse(ingestFile)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	bar := progressbar.NewOptions(len(inputs),
		progressbar.OptionSetDescription("Indexing"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			cmd.Println()
		}),
	)

	total := domain.BulkResult{Errors: make(map[string]string)}
	ctx := cmd.Context()

	for start := 0; start < len(inputs); start += ingestBatchSize {
		end := min(start+ingestBatchSize, len(inputs))

		result, err := eng.ingest.BulkAdd(ctx, inputs[start:end])
		if err != nil {
			return fmt.Errorf("ingesting batch: %w", err)
		}

		total.SuccessCount += result.SuccessCount
		total.ErrorCount += result.ErrorCount
		for id, reason := range result.Errors {
			total.Errors[id] = reason
		}
		bar.Set(end) //nolint:errcheck
	}

	cmd.Printf("Indexed %d documents (%d failed) from %s\n",
		total.SuccessCount, total.ErrorCount, ingestFile)

	if total.ErrorCount > 0 {
		ids := make([]string, 0, len(total.Errors))
		for id := range total.Errors {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			cmd.Printf("  %s: %s\n", id, total.Errors[id])
		}
	}

	return nil
}
