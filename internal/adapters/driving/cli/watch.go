package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

var (
	watchTarget   string
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run incremental syncs on a schedule",
	Long: `Registers a recurring incremental sync for each target and runs due syncs
until interrupted. The timetable is stored, so a restarted watch picks up
where the previous one left off.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchTarget, "target", "t", "all", "prec, detc, expc, or all")
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", 0, "time between syncs (0 = configured)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if watchScheduler == nil {
		return errors.New("scheduler not configured (set api.key or LAW_API_KEY)")
	}

	kinds, err := domain.ParseDocumentKinds(watchTarget)
	if err != nil {
		return err
	}

	interval := watchInterval
	if interval == 0 {
		interval = configuredWatchInterval
	}
	if interval == 0 {
		interval = defaultWatchInterval
	}
	if interval < 0 {
		return fmt.Errorf("invalid --interval %s", interval)
	}

	ctx := cmd.Context()
	if err := watchScheduler.Watch(ctx, interval, kinds...); err != nil {
		return fmt.Errorf("registering watch: %w", err)
	}

	cmd.Printf("Watching %s every %s. Press Ctrl+C to stop.\n", targetList(kinds), interval)

	err = watchScheduler.Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
