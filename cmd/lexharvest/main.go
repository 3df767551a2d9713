// Command lexharvest harvests Korean court decisions and serves similarity
// search over them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/lexharvest/internal/adapters/driven/config/file"
	"github.com/custodia-labs/lexharvest/internal/adapters/driving/cli"
	"github.com/custodia-labs/lexharvest/internal/core/services"
	"github.com/custodia-labs/lexharvest/internal/logger"
)

var version = "dev"

func main() {
	// Handle shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	cli.SetVersion(version)

	// Wiring logs before cobra parses --verbose.
	logger.SetVerbose(hasVerboseFlag(args))

	configStore, err := file.NewConfigStore("")
	if err != nil {
		logger.Error("Failed to open config: %v", err)
		return 1
	}
	settingsService := services.NewSettingsService(configStore)

	svc := &cli.Services{Settings: settingsService}

	settings, err := settingsService.Get()
	if err != nil {
		logger.Error("Failed to read settings: %v", err)
		return 1
	}

	if problems := settings.Validate(); len(problems) > 0 {
		for _, p := range problems {
			logger.Warn("Invalid setting %s", p)
		}
		logger.Warn("Only settings commands are available until the configuration is fixed")
	} else {
		a, err := wire(ctx, settings)
		if err != nil {
			logger.Error("%v", err)
		} else {
			defer a.Close()
			a.fill(svc)
		}
	}

	cli.SetServices(svc)

	if err := cli.Execute(ctx); err != nil {
		logger.Error("%v", err)
		return 1
	}
	return 0
}

func hasVerboseFlag(args []string) bool {
	for _, a := range args {
		if a == "--" {
			return false
		}
		if a == "-v" || a == "--verbose" || a == "--verbose=true" {
			return true
		}
	}
	return false
}
