// Package scheduler provides automated retraining scheduling and health
// monitoring for the homologos API. It handles the cron-based daily
// retraining run and coordinates snapshot publication with the data
// container using dependency injection.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/iamed/homologos-api/interfaces"
	"github.com/iamed/homologos-api/logging"
	"github.com/iamed/homologos-api/metrics"
	"github.com/iamed/homologos-api/validation"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler handles model retraining and health monitoring using
// dependency injection.
type Scheduler struct {
	dataStore    interfaces.DataStore
	parser       interfaces.Parser
	trainer      interfaces.Trainer
	registryFile string
	scheduler    *gocron.Scheduler
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(dataStore interfaces.DataStore, parser interfaces.Parser, trainer interfaces.Trainer, registryFile string) *Scheduler {
	return &Scheduler{
		dataStore:    dataStore,
		parser:       parser,
		trainer:      trainer,
		registryFile: registryFile,
		scheduler:    gocron.NewScheduler(time.Local),
	}
}

// Start performs the initial training run and schedules daily retraining
func (s *Scheduler) Start() error {
	// Initial training
	if err := s.retrain(); err != nil {
		logging.Error("Failed to perform initial training run", "error", err)
		return fmt.Errorf("initial training run failed: %w", err)
	}

	// Retrain daily at 06:00, after the ingestion stage refreshes the table
	_, err := s.scheduler.Every(1).Days().At("06:00").Do(func() {
		if err := s.retrain(); err != nil {
			logging.Error("Failed to retrain model", "error", err)
		}
	})

	if err != nil {
		logging.Error("Failed to schedule retraining", "error", err)
		return fmt.Errorf("failed to schedule retraining: %w", err)
	}

	s.scheduler.StartAsync()

	s.startHealthMonitoring()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// retrain loads the cleaned registry table, trains a new model and
// publishes the snapshot atomically.
func (s *Scheduler) retrain() error {
	// Training is serialized per container
	if !s.dataStore.BeginTraining() {
		logging.Info("Training already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndTraining()

	logging.Info("Starting training run", "registry_file", s.registryFile)
	start := time.Now()

	records, err := s.parser.ParseRegistryFile(s.registryFile)
	if err != nil {
		logging.Error("Failed to load registry table", "error", err)
		return fmt.Errorf("failed to load registry table: %w", err)
	}

	validator := validation.NewDataValidator()
	if err := validator.ValidateDataIntegrity(records); err != nil {
		logging.Error("Registry integrity check failed", "error", err)
		return fmt.Errorf("registry integrity check failed: %w", err)
	}

	quality := validator.ReportDataQuality(records)
	if quality.NonPositiveQuantities > 0 || quality.ZeroReferenceQuantity > 0 {
		logging.Warn("Registry batch contains records that will fail numeric transforms",
			"non_positive_quantities", quality.NonPositiveQuantities,
			"zero_reference_quantities", quality.ZeroReferenceQuantity,
		)
	}

	result, err := s.trainer.Train(records)
	if err != nil {
		logging.Error("Training run failed", "error", err)
		return fmt.Errorf("training run failed: %w", err)
	}

	// Atomic snapshot publication
	s.dataStore.PublishTrainingResult(records, result)

	elapsed := time.Since(start)
	metrics.TrainingDuration.Observe(elapsed.Seconds())
	metrics.TrainingRecordsTotal.Set(float64(result.Report.TotalRecords))
	metrics.TrainingExcludedTotal.Set(float64(len(result.Report.Excluded)))
	metrics.ModelClusters.Set(float64(result.Snapshot.K))

	logging.Info("Training run completed",
		"duration", elapsed.String(),
		"records", len(records),
		"excluded", len(result.Report.Excluded),
		"snapshot", result.Snapshot.ID,
	)

	return nil
}

// CalculateNextUpdate returns the next scheduled retraining time
func CalculateNextUpdate() time.Time {
	now := time.Now()

	sixAM := time.Date(now.Year(), now.Month(), now.Day(), 6, 0, 0, 0, now.Location())
	if now.Before(sixAM) {
		return sixAM
	}

	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 6, 0, 0, 0, tomorrow.Location())
}

// startHealthMonitoring warns when the published snapshot goes stale
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			lastTrained := s.dataStore.GetLastTrained()
			if time.Since(lastTrained) > 25*time.Hour {
				logging.Warn("Model hasn't been retrained in over 25 hours")
			}
		}
	}()
}
