// Package cli provides the cobra command tree of lexharvest.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
	"github.com/custodia-labs/lexharvest/internal/logger"
)

// version is set at build time.
var version = "dev"

var verbose bool

// defaultWatchInterval is used by watch when neither the flag nor the
// configuration sets one.
const defaultWatchInterval = 6 * time.Hour

// Driving ports used by the commands. Nil ports make their commands
// report that the service is not configured.
var (
	syncOrchestrator  driving.SyncOrchestrator
	similarityService driving.SimilarityService
	indexService      driving.IndexService
	recordService     driving.RecordService
	settingsService   driving.SettingsService
	watchScheduler    driving.Scheduler

	configuredWatchInterval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "lexharvest",
	Short: "Harvest and search Korean court decisions",
	Long: `lexharvest harvests court decisions, constitutional rulings and statutory
interpretations from the law.go.kr open API, stores them as canonical
records and keeps an exact vector index for similarity search.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Services holds the driving ports the commands call.
type Services struct {
	Sync      driving.SyncOrchestrator
	Search    driving.SimilarityService
	Index     driving.IndexService
	Records   driving.RecordService
	Settings  driving.SettingsService
	Scheduler driving.Scheduler

	// WatchInterval is the default interval of the watch command.
	WatchInterval time.Duration
}

// SetServices injects the driving ports.
func SetServices(s *Services) {
	syncOrchestrator = s.Sync
	similarityService = s.Search
	indexService = s.Index
	recordService = s.Records
	settingsService = s.Settings
	watchScheduler = s.Scheduler
	configuredWatchInterval = s.WatchInterval
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the command tree with ctx as every command's context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
