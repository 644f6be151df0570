// Command sizhen runs the multimodal diagnosis core.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/sizhen/internal/adapters/driven/ai"
	"github.com/custodia-labs/sizhen/internal/adapters/driven/backend"
	"github.com/custodia-labs/sizhen/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sizhen/internal/adapters/driving/cli"
	"github.com/custodia-labs/sizhen/internal/core/services"
	"github.com/custodia-labs/sizhen/internal/logger"
	"github.com/custodia-labs/sizhen/internal/resilience"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// A missing .env is fine; anything else is worth a warning.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("loading .env: %v", err)
	}

	configDir, err := file.DefaultDir()
	if err != nil {
		return fmt.Errorf("resolving config directory: %w", err)
	}
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}

	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	kb, err := file.NewKnowledgeStore(settings.Knowledge.Path).Load()
	if err != nil {
		return fmt.Errorf("loading knowledge base: %w", err)
	}

	analyzers, err := backend.CreateAnalyzers(&settings.Backends)
	if err != nil {
		return fmt.Errorf("creating analyzers: %w", err)
	}

	stores, err := openStores(ctx, configDir, settings)
	if err != nil {
		return err
	}
	defer stores.Close()

	// Breakers log their own transitions.
	breakers := resilience.NewRegistry(resilience.BreakerConfig{
		FailureThreshold: settings.Coordinator.Breaker.FailureThreshold,
		CoolDown:         settings.Coordinator.Breaker.CoolDown,
	})

	fusion := services.NewFusionEngine(kb, settings.Fusion)
	reasoning := services.NewReasoningEngine(kb, settings.Reasoning)

	var opts []services.CoordinatorOption
	llm, err := ai.CreateLLMService(&settings.Narrator)
	if err != nil {
		logger.Warn("narrator disabled: %v", err)
	} else if llm != nil {
		defer llm.Close()
		logger.Debug("narrator: %s via %s", llm.ModelName(), settings.Narrator.Provider)
		opts = append(opts, services.WithNarrator(services.NewNarrator(llm, settings.Narrator)))
	}

	coordinator := services.NewCoordinator(
		analyzers,
		fusion,
		reasoning,
		stores.progress,
		stores.reports,
		breakers,
		settings.Coordinator,
		opts...,
	)

	cli.SetServices(cli.Services{
		Diagnosis: coordinator,
		Fusion:    fusion,
		Reasoning: reasoning,
		Settings:  settingsService,
		Knowledge: kb,
		Breakers:  breakers,
	})
	cli.SetVersion(version)

	return cli.Execute(ctx)
}
