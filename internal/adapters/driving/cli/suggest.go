package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/helixbi/querypilot/internal/connectors/seedfile"
	"github.com/helixbi/querypilot/internal/core/domain"
)

var (
	suggestUser    string
	suggestLimit   int
	suggestJSON    bool
	suggestRelated bool
	suggestSimilar bool
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [query]",
	Short: "Query the local engine once",
	Long: `Run one suggestion request against a locally wired engine. The corpus
is seeded from seed.path in the configuration.

Examples:
  querypilot suggest "销售"
  querypilot suggest "销售额" --similar --json
  querypilot suggest "销售分析" --related --user u1`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

func init() {
	suggestCmd.Flags().StringVarP(&suggestUser, "user", "u", "", "user id for personalization")
	suggestCmd.Flags().IntVarP(&suggestLimit, "limit", "n", 10, "maximum number of results")
	suggestCmd.Flags().BoolVar(&suggestJSON, "json", false, "output results as JSON")
	suggestCmd.Flags().BoolVar(&suggestRelated, "related", false, "return related queries instead of completions")
	suggestCmd.Flags().BoolVar(&suggestSimilar, "similar", false, "return similar queries instead of completions")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	query := args[0]

	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	ctx := cmd.Context()

	if eng.cfg.Seed.Path != "" {
		if _, err := seedfile.Load(ctx, eng.ingest, eng.cfg.Seed.Path); err != nil {
			return fmt.Errorf("seeding corpus: %w", err)
		}
	}

	opts := domain.SuggestOptions{
		UserID:   suggestUser,
		Limit:    suggestLimit,
		MinScore: -1,
	}

	var suggestions []domain.Suggestion
	switch {
	case suggestRelated:
		suggestions, err = eng.suggestions.Related(ctx, query, opts)
	case suggestSimilar:
		suggestions, err = eng.suggestions.Similar(ctx, query, opts)
	default:
		suggestions, err = eng.suggestions.Suggest(ctx, query, opts)
	}
	if err != nil {
		return fmt.Errorf("suggest failed: %w", err)
	}

	if suggestJSON {
		data, err := json.MarshalIndent(suggestions, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	return printSuggestions(cmd, suggestions)
}

func printSuggestions(cmd *cobra.Command, suggestions []domain.Suggestion) error {
	if len(suggestions) == 0 {
		cmd.Println("No suggestions.")
		return nil
	}

	// Plain output when piped.
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
	text := color.New(color.FgCyan, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	for i, sug := range suggestions {
		cmd.Printf("  [%d] %s %s\n", i+1, text(sug.Text),
			dim(fmt.Sprintf("(%.2f, %s)", sug.Score, sug.Source)))
	}
	return nil
}
