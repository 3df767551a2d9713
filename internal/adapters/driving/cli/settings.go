package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	Aliases: []string{"config"},
	Short:   "Manage application settings",
	Long: `View and change the settings stored in ~/.lexharvest/config.toml.

LAW_API_KEY, OPENAI_API_KEY, LEXHARVEST_POSTGRES_URL and LEXHARVEST_REDIS_ADDR
in the environment or ~/.lexharvest/.env override the stored values.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Change a setting",
	Long: `Validates and stores one setting. Run "lexharvest settings keys" for the
list of keys. Secret keys prompt for their value when it is omitted.

Examples:
  lexharvest settings set embedding.provider openai
  lexharvest settings set api.key`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	rootCmd.AddCommand(settingsCmd)
}

// secretKeys are masked on display and prompted for without echo.
var secretKeys = map[string]bool{
	"api.key":           true,
	"embedding.api_key": true,
	"redis.password":    true,
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[API]")
	cmd.Printf("  Base URL: %s\n", settings.API.BaseURL)
	cmd.Printf("  API Key: %s\n", displaySecret(settings.API.APIKey))
	cmd.Printf("  Rate: %.1f req/s, %d calls/day\n", settings.API.RequestsPerSecond, settings.API.DailyLimit)
	cmd.Printf("  Timeout: %s (%d retries, %s delay)\n", settings.API.Timeout, settings.API.MaxRetries, settings.API.RetryDelay)
	cmd.Println()

	cmd.Println("[Sync]")
	cmd.Printf("  Page Size: %d\n", settings.Sync.Display)
	cmd.Printf("  Embed Workers: %d\n", settings.Sync.EmbedWorkers)
	cmd.Printf("  Lock TTL: %s\n", settings.Sync.LockTTL)
	cmd.Printf("  Watch Interval: %s\n", settings.Watch.Interval)
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider)
	cmd.Printf("  Model: %s (%d dims)\n", settings.Embedding.Model, settings.Embedding.Dimensions)
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", displaySecret(settings.Embedding.APIKey))
	}
	cmd.Printf("  Batch Size: %d, Max Chars: %d\n", settings.Embedding.BatchSize, settings.Embedding.MaxChars)
	cmd.Println()

	cmd.Println("[Search]")
	cmd.Printf("  Min Score: %.2f\n", settings.Search.MinScore)
	cmd.Printf("  Limit: %d (max %d)\n", settings.Search.DefaultLimit, settings.Search.MaxLimit)
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Driver: %s\n", settings.Storage.Driver)
	if settings.Storage.DataDir != "" {
		cmd.Printf("  Data Dir: %s\n", settings.Storage.DataDir)
	} else {
		cmd.Println("  Data Dir: ~/.lexharvest/data")
	}
	if settings.Storage.PostgresURL != "" {
		cmd.Printf("  Postgres: %s\n", maskURL(settings.Storage.PostgresURL))
	}
	cmd.Printf("  Vector Backend: %s\n", settings.Vector.Backend)
	if settings.Redis.Addr != "" {
		cmd.Printf("  Redis: %s (db %d)\n", settings.Redis.Addr, settings.Redis.DB)
	} else {
		cmd.Println("  Redis: (disabled)")
	}

	if errs := settings.Validate(); len(errs) > 0 {
		cmd.Println()
		cmd.Println("Problems:")
		for _, e := range errs {
			cmd.Printf("  %s\n", errorStyle.Render(e.Error()))
		}
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := args[0]
	var value string
	switch {
	case len(args) == 2:
		value = args[1]
	case secretKeys[key]:
		cmd.Printf("Enter %s: ", key)
		value = readPassword(cmd.InOrStdin())
		cmd.Println()
	default:
		return fmt.Errorf("a value is required for %s", key)
	}

	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	if secretKeys[key] {
		value = maskAPIKey(value)
	}
	cmd.Printf("%s = %s\n", key, value)
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	for _, k := range settingsService.Keys() {
		cmd.Println(k)
	}
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword(in io.Reader) string {
	// Try to read password without echo
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(in)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func displaySecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	return maskAPIKey(s)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// maskURL hides the password of a connection URL.
func maskURL(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return raw
	}
	if user, _, hasPass := strings.Cut(userinfo, ":"); hasPass {
		return scheme + "://" + user + ":****@" + host
	}
	return raw
}
