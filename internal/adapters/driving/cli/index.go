package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

var (
	rebuildTarget string
	statusTarget  string
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild vector indexes from stored records",
	Long: `Re-embeds every stored record of each target into a fresh index
generation, swaps it in and retires the old generation. Rebuilding drops
the tombstoned slots left behind by re-synced records.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show record counts, index statistics and sync state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rebuildCmd.Flags().StringVarP(&rebuildTarget, "target", "t", "all", "prec, detc, expc, or all")
	statusCmd.Flags().StringVarP(&statusTarget, "target", "t", "all", "prec, detc, expc, or all")
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(statusCmd)
}

func runRebuild(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	kinds, err := domain.ParseDocumentKinds(rebuildTarget)
	if err != nil {
		return err
	}

	var rows [][]string
	for _, kind := range kinds {
		cmd.Printf("Rebuilding %s index...\n", kind.Target())
		stats, err := indexService.Rebuild(cmd.Context(), kind)
		if err != nil {
			return fmt.Errorf("rebuild %s: %w", kind.Target(), err)
		}
		rows = append(rows, indexRow(stats))
	}

	cmd.Println(renderTable(indexHeaders, rows))
	return nil
}

var indexHeaders = []string{"TARGET", "GENERATION", "VECTORS", "LIVE", "TOMBSTONES", "DIMS", "MODEL"}

func indexRow(s *domain.IndexStats) []string {
	return []string{
		s.Kind.Target(),
		fmt.Sprint(s.Generation),
		fmt.Sprint(s.Vectors),
		fmt.Sprint(s.LiveEntries),
		fmt.Sprint(s.Tombstones),
		fmt.Sprint(s.Dimensions),
		s.Model,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if recordService == nil && indexService == nil {
		return errors.New("status services not configured")
	}

	kinds, err := domain.ParseDocumentKinds(statusTarget)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	var runs []domain.RunStats
	if recordService != nil {
		if runs, err = recordService.RecentRuns(ctx, 0); err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}
	}

	rows := make([][]string, 0, len(kinds))
	for _, kind := range kinds {
		row := []string{kind.Target(), "-", "-", "-", "-", "-", "-"}

		if recordService != nil {
			n, err := recordService.Count(ctx, kind)
			if err != nil {
				return fmt.Errorf("counting %s records: %w", kind.Target(), err)
			}
			row[1] = fmt.Sprint(n)
		}

		if indexService != nil {
			stats, err := indexService.Stats(ctx, kind)
			if err != nil {
				return fmt.Errorf("reading %s index: %w", kind.Target(), err)
			}
			row[2] = fmt.Sprint(stats.Generation)
			row[3] = fmt.Sprint(stats.LiveEntries)
			row[4] = fmt.Sprint(stats.Tombstones)
		}

		if syncOrchestrator != nil {
			row[5] = string(syncOrchestrator.Status(kind).Phase)
		}

		for i := range runs {
			if runs[i].Kind == kind {
				row[6] = styleStatus(runs[i].Status) + " " + runs[i].StartedAt.Local().Format("2006-01-02 15:04")
				break
			}
		}

		rows = append(rows, row)
	}

	cmd.Println(renderTable([]string{"TARGET", "RECORDS", "GENERATION", "LIVE", "TOMBSTONES", "SYNC", "LAST RUN"}, rows))
	return nil
}
