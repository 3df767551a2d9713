package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
)

var (
	searchKind      string
	searchLimit     int
	searchMinScore  float64
	searchSimilarTo string
	searchCourt     string
	searchCategory  string
	searchFrom      string
	searchTo        string
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Find similar decisions",
	Long: `Performs an exact cosine similarity search over one kind's vector index.

Search either with free text, or with --similar-to and the serial number of
a stored decision to find its neighbours. Results can be narrowed by court,
case category and decision date.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchKind, "kind", "k", string(domain.KindCase), "case, constitutional or interpretation")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0.3, "minimum cosine similarity")
	searchCmd.Flags().StringVar(&searchSimilarTo, "similar-to", "", "serial number of a stored decision")
	searchCmd.Flags().StringVar(&searchCourt, "court", "", "only decisions of this court")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "only decisions of this case category")
	searchCmd.Flags().StringVar(&searchFrom, "from", "", "earliest decision date, YYYY-MM-DD")
	searchCmd.Flags().StringVar(&searchTo, "to", "", "latest decision date, YYYY-MM-DD")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if similarityService == nil {
		return errors.New("search service not configured")
	}

	q, err := buildSimilarityQuery(cmd, args)
	if err != nil {
		return err
	}

	hits, err := similarityService.Search(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, hits)
	}

	return outputSearchTable(cmd, hits)
}

func buildSimilarityQuery(cmd *cobra.Command, args []string) (driving.SimilarityQuery, error) {
	kind, err := domain.ParseDocumentKind(searchKind)
	if err != nil {
		return driving.SimilarityQuery{}, err
	}

	q := driving.SimilarityQuery{
		Kind:      kind,
		SimilarTo: searchSimilarTo,
		TopK:      searchLimit,
		Filter: domain.RecordFilter{
			CourtName:    searchCourt,
			CategoryName: searchCategory,
		},
	}
	if len(args) > 0 {
		q.Text = args[0]
	}

	switch {
	case q.Text == "" && q.SimilarTo == "":
		return driving.SimilarityQuery{}, errors.New("provide search text or --similar-to")
	case q.Text != "" && q.SimilarTo != "":
		return driving.SimilarityQuery{}, errors.New("search text and --similar-to are mutually exclusive")
	}

	if cmd.Flags().Changed("min-score") {
		minScore := searchMinScore
		q.MinScore = &minScore
	}

	if q.Filter.From, err = parseDateFlag("from", searchFrom); err != nil {
		return driving.SimilarityQuery{}, err
	}
	if q.Filter.To, err = parseDateFlag("to", searchTo); err != nil {
		return driving.SimilarityQuery{}, err
	}

	return q, nil
}

func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: use YYYY-MM-DD", name, value)
	}
	return t, nil
}

// searchResultJSON is the --json form of a hit.
type searchResultJSON struct {
	SerialNumber string  `json:"serial_number"`
	Kind         string  `json:"kind"`
	Score        float64 `json:"score"`
	Title        string  `json:"title,omitempty"`
	CaseNumber   string  `json:"case_number,omitempty"`
	DecisionDate string  `json:"decision_date,omitempty"`
	CourtName    string  `json:"court_name,omitempty"`
	Summary      string  `json:"summary,omitempty"`
}

func outputSearchJSON(cmd *cobra.Command, hits []domain.HydratedHit) error {
	results := make([]searchResultJSON, len(hits))
	for i := range hits {
		results[i] = searchResultJSON{
			SerialNumber: hits[i].SerialNumber,
			Kind:         string(hits[i].Kind),
			Score:        hits[i].Score,
		}
		if rec := hits[i].Record; rec != nil {
			results[i].Title = rec.Title
			results[i].CaseNumber = rec.CaseNumber
			results[i].DecisionDate = rec.DecisionDateString()
			results[i].CourtName = rec.CourtName
			results[i].Summary = rec.SummaryText
		}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, hits []domain.HydratedHit) error {
	if len(hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range hits {
		rec := hits[i].Record
		if rec == nil {
			// Indexed but no longer stored
			cmd.Printf("  [%d] %s (%.2f)\n\n", i+1, hits[i].SerialNumber, hits[i].Score)
			continue
		}

		// Format: [N] CaseNumber Title (Score)
		cmd.Printf("  [%d] %s %s (%.2f)\n", i+1, rec.CaseNumber, rec.Title, hits[i].Score)
		meta := rec.DecisionDateString()
		if rec.CourtName != "" {
			meta = rec.CourtName + " " + meta
		}
		cmd.Printf("      %s · serial %s\n", meta, rec.SerialNumber)
		if rec.SummaryText != "" {
			cmd.Printf("      %s\n", truncate(rec.SummaryText, 160))
		}
		cmd.Println()
	}

	return nil
}
