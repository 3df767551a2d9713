package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	runsLimit int
	runsJSON  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent harvesting runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum number of runs (0 = all)")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "output runs as JSON")
	rootCmd.AddCommand(runsCmd)
}

// runJSON is the --json form of a run.
type runJSON struct {
	RunID          string     `json:"run_id"`
	JobName        string     `json:"job_name"`
	Status         string     `json:"status"`
	AbortReason    string     `json:"abort_reason,omitempty"`
	TotalSeen      int        `json:"total_seen"`
	Succeeded      int        `json:"succeeded"`
	Failed         int        `json:"failed"`
	PagesProcessed int        `json:"pages_processed"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

func runRuns(cmd *cobra.Command, _ []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}

	runs, err := recordService.RecentRuns(cmd.Context(), runsLimit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if runsJSON {
		out := make([]runJSON, len(runs))
		for i := range runs {
			r := &runs[i]
			out[i] = runJSON{
				RunID:          r.RunID,
				JobName:        r.JobName,
				Status:         string(r.Status),
				AbortReason:    r.AbortReason,
				TotalSeen:      r.TotalSeen,
				Succeeded:      r.Succeeded,
				Failed:         r.Failed,
				PagesProcessed: r.PagesProcessed,
				StartedAt:      r.StartedAt,
			}
			if !r.FinishedAt.IsZero() {
				finished := r.FinishedAt
				out[i].FinishedAt = &finished
			}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal runs: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	headers := append([]string{"STARTED"}, runHeaders...)
	rows := runRows(runs)
	for i := range rows {
		rows[i] = append([]string{runs[i].StartedAt.Local().Format("2006-01-02 15:04")}, rows[i]...)
	}
	cmd.Println(renderTable(headers, rows))
	return nil
}
