package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
)

var (
	syncTarget  string
	syncMode    string
	syncSince   string
	syncLimit   int
	syncDisplay int
	syncResume  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Harvest decisions from the registry",
	Long: `Walks the registry listings of each target and stores every decision as a
canonical record, embedding it into the target's vector index.

Targets are prec (court decisions), detc (constitutional rulings),
expc (statutory interpretations), a comma-separated list, or all.

Full mode walks every listing page from the first. Incremental mode only
lists decisions dated since --since, or since the last completed run.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVarP(&syncTarget, "target", "t", "all", "prec, detc, expc, or all")
	syncCmd.Flags().StringVarP(&syncMode, "mode", "m", string(domain.SyncModeFull), "full or incremental")
	syncCmd.Flags().StringVar(&syncSince, "since", "", "incremental lower bound, YYYY-MM-DD")
	syncCmd.Flags().IntVarP(&syncLimit, "limit", "l", 0, "maximum listing pages per target (0 = all)")
	syncCmd.Flags().IntVarP(&syncDisplay, "display", "d", 0, "listing page size, 1-100 (0 = configured)")
	syncCmd.Flags().BoolVar(&syncResume, "resume", true, "continue from a saved checkpoint")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if syncOrchestrator == nil {
		return errors.New("sync service not configured (set api.key or LAW_API_KEY)")
	}

	req, err := buildSyncRequest()
	if err != nil {
		return err
	}

	progress := newSyncProgress(cmd.OutOrStdout(), isTerminal(cmd.OutOrStdout()))
	req.Observer = progress

	cmd.Printf("Harvesting %s (%s)...\n", targetList(req.Kinds), req.Mode)
	results, runErr := syncOrchestrator.Run(cmd.Context(), req)
	progress.Finish()

	if len(results) > 0 {
		cmd.Println(renderTable(runHeaders, runRows(results)))
	}

	if runErr != nil {
		return fmt.Errorf("sync failed: %w", runErr)
	}
	return nil
}

func buildSyncRequest() (driving.SyncRequest, error) {
	kinds, err := domain.ParseDocumentKinds(syncTarget)
	if err != nil {
		return driving.SyncRequest{}, err
	}

	mode := domain.SyncMode(strings.ToLower(strings.TrimSpace(syncMode)))
	if mode != domain.SyncModeFull && mode != domain.SyncModeIncremental {
		return driving.SyncRequest{}, fmt.Errorf("invalid mode %q: use full or incremental", syncMode)
	}

	if syncLimit < 0 {
		return driving.SyncRequest{}, errors.New("--limit must not be negative")
	}
	if syncDisplay < 0 || syncDisplay > 100 {
		return driving.SyncRequest{}, errors.New("--display must be between 1 and 100")
	}

	req := driving.SyncRequest{
		Mode:     mode,
		Kinds:    kinds,
		MaxPages: syncLimit,
		Display:  syncDisplay,
		Resume:   syncResume,
	}

	if syncSince != "" {
		if mode != domain.SyncModeIncremental {
			return driving.SyncRequest{}, errors.New("--since requires --mode incremental")
		}
		since, err := time.Parse(domain.DateLayout, syncSince)
		if err != nil {
			return driving.SyncRequest{}, fmt.Errorf("invalid --since %q: use YYYY-MM-DD", syncSince)
		}
		req.Since = since
	}

	return req, nil
}

func targetList(kinds []domain.DocumentKind) string {
	targets := make([]string, len(kinds))
	for i, k := range kinds {
		targets[i] = k.Target()
	}
	return strings.Join(targets, ", ")
}
