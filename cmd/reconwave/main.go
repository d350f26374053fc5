// cmd/reconwave/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"reconwave/internal/adapters/launcher"
	"reconwave/internal/adapters/notify"
	"reconwave/internal/adapters/status"
	"reconwave/internal/adapters/store"
	"reconwave/internal/core/domain"
	"reconwave/internal/core/ports"
	"reconwave/internal/core/usecases"
	"reconwave/internal/platform/config"
	"reconwave/internal/platform/keypool"
	"reconwave/internal/platform/logx"
	"reconwave/internal/platform/registry"
	"reconwave/internal/platform/stream"
	"reconwave/internal/platform/ui"
)

var (
	// Set with -ldflags at build time.
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Configuration
	cfg := config.DefaultConfig()
	fs := pflag.NewFlagSet("reconwave", pflag.ContinueOnError)
	cfg.RegisterFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if cfg.PrintVersion {
		fmt.Printf("reconwave %s (%s)\n", version, commit)
		return 0
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Try: reconwave -h for help")
		return 2
	}

	// 2. Shared logger
	logger := logx.New()
	logger.Info("reconwave starting",
		"version", version,
		"target", cfg.Target,
		"modules", len(cfg.Modules),
	)

	// 3. Module catalog
	profiles := config.DefaultProfiles()
	apiKeys := cfg.APIKeys
	if cfg.RegistryPath != "" {
		var err error
		profiles, apiKeys, err = config.LoadRegistry(cfg.RegistryPath)
		if err != nil {
			logger.Err(err, "phase", "registry-load")
			return 2
		}
	}

	reg := registry.NewModuleRegistry(logger)
	if err := reg.RegisterAll(profiles); err != nil {
		logger.Err(err, "phase", "registry-validate")
		return 2
	}

	// 4. Credential pools for rate-limited modules
	keys := keypool.NewManager(logger)
	for _, profile := range profiles {
		if !profile.IsRateLimited() {
			continue
		}
		secrets := apiKeys[profile.Name]
		if len(secrets) == 0 {
			logger.Warn("rate-limited module has no API keys configured", "module", profile.Name)
			continue
		}
		creds := make([]ports.Credential, 0, len(secrets))
		for i, secret := range secrets {
			creds = append(creds, ports.Credential{
				ID:     fmt.Sprintf("%s-%d", profile.Name, i),
				Secret: secret,
			})
		}
		keys.Configure(profile.Name, creds, *profile.RateLimit)
	}

	// 5. Storage
	db, err := store.Open(cfg.DatabasePath, logger)
	if err != nil {
		logger.Err(err, "phase", "store-open")
		return 1
	}
	defer db.Close()

	// 6. Stream coordinator
	bus := stream.NewBus(stream.Options{
		SpillDir:   cfg.SpillDir,
		BufferSize: cfg.StreamBuffer,
		Logger:     logger,
	})

	// 7. Notifiers and presenter
	var notifiers []ports.Notifier
	var presenter ui.Presenter = ui.NoopPresenter{}
	if !cfg.Quiet {
		p := ui.NewPTermPresenter()
		presenter = p
		notifiers = append(notifiers, p)
	}
	if cfg.SlackToken != "" && cfg.SlackChannel != "" {
		notifiers = append(notifiers, notify.NewSlack(cfg.SlackToken, cfg.SlackChannel, logger))
	}

	// 8. Engine
	dispatcher := usecases.NewDispatcher(usecases.DispatcherOptions{
		Launcher:          launcher.New(launcher.Options{BinPrefix: cfg.BinPrefix, Logger: logger}),
		Keys:              keys,
		Logger:            logger,
		MaxLaunchRetries:  cfg.LaunchRetries,
		BackoffBase:       cfg.BackoffBase,
		BackoffMultiplier: cfg.BackoffMultiplier,
		SafetyFactor:      cfg.SafetyFactor,
	})
	engine := usecases.NewEngine(usecases.EngineOptions{
		Registry:     reg,
		Planner:      usecases.NewPlanner(reg, logger),
		Dispatcher:   dispatcher,
		Bus:          bus,
		Assets:       db,
		JobStore:     db,
		Notifiers:    notifiers,
		Logger:       logger,
		JobBudget:    cfg.JobBudget,
		AllowPartial: cfg.AllowPartial,
	})

	// 9. Status API (optional)
	if cfg.StatusAddr != "" {
		srv := status.New(cfg.StatusAddr, engine, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Err(err, "phase", "status-api")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	// 10. Signals for clean shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	presenter.Start(ui.ScanInfo{
		Target:  cfg.Target,
		Modules: cfg.Modules,
	})

	// 11. Execute
	snap, err := engine.Execute(ctx, usecases.ScanRequest{
		Target:  cfg.Target,
		Modules: cfg.Modules,
	})
	if err != nil {
		logger.Err(err, "phase", "execute")
		return 1
	}

	presenter.Finish(snap)

	switch snap.State {
	case domain.JobStateCompleted:
		return 0
	case domain.JobStatePartiallyFailed:
		return 3
	default:
		return 1
	}
}
