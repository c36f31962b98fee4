package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "net/http/pprof"

	"github.com/iamed/homologos-api/config"
	"github.com/iamed/homologos-api/data"
	"github.com/iamed/homologos-api/homologation"
	"github.com/iamed/homologos-api/logging"
	"github.com/iamed/homologos-api/registryparser"
	"github.com/iamed/homologos-api/registryparser/entities"
	"github.com/iamed/homologos-api/scheduler"
	"github.com/iamed/homologos-api/server"
	"github.com/iamed/homologos-api/trainer"
	"github.com/iamed/homologos-api/validation"
)

func init() {
	// Get the working directory and read the env variables
	if err := godotenv.Load(); err != nil {
		// If failed, try loading from executable directory
		ex, err := os.Executable()
		if err != nil {
			logging.Error("Failed to get executable path", "error", err)
			os.Exit(1)
		}

		if err := os.Chdir(filepath.Dir(ex)); err != nil {
			logging.Error("Failed to change directory", "error", err)
			os.Exit(1)
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logging.InitLogger("logs", cfg.LogRetentionWeeks, cfg.MaxLogFileSize, logging.ParseLevel(cfg.LogLevel))

	dataContainer := data.NewDataContainer()
	validator := validation.NewDataValidator()
	parser := registryparser.NewRegistryParser()

	modelTrainer := trainer.New(trainer.Config{
		Fit: homologation.FitConfig{
			K:             cfg.ClusterCount,
			Seed:          cfg.Seed,
			MaxIterations: cfg.MaxIterations,
			Tolerance:     cfg.Tolerance,
			NRestarts:     cfg.NRestarts,
		},
		Weights: homologation.Weights{
			Critical:  cfg.CriticalWeight,
			Important: cfg.ImportantWeight,
		},
		BinBreakpoints: cfg.BinBreakpoints,
		Rules: homologation.EligibilityRules{
			AcceptedRegistrationStatuses: cfg.AcceptedRegistrationStatuses,
			ActiveCUMStatus:              entities.CUMStatusActivo,
		},
		DefaultTopK: cfg.TopKDefault,
	})

	sched := scheduler.NewScheduler(dataContainer, parser, modelTrainer, cfg.RegistryFile)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	srv := server.NewServer(cfg, dataContainer, validator)

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start the server in a goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Block until a signal is received
	<-quit

	// Create a context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown error", "error", err)
	}
}
