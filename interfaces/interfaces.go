// Package interfaces defines core abstractions for the homologos API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"time"

	"github.com/iamed/homologos-api/homologation"
	"github.com/iamed/homologos-api/registryparser/entities"
	"github.com/iamed/homologos-api/trainer"
)

// RegistryQualityReport provides a summary of data quality issues found in
// a loaded registry batch.
type RegistryQualityReport struct {
	DuplicateCUMs         []string
	RecordsWithoutATC     int
	RecordsWithoutRoute   int
	RecordsWithoutForm    int
	NonPositiveQuantities int
	ZeroReferenceQuantity int
	MedicalSamples        int
}

// DataStore defines the contract for snapshot storage. It provides
// thread-safe access to the registry records and the published model with
// atomic operations: readers never observe a mix of old and new cluster
// assignments within one query.
type DataStore interface {
	// Data retrieval methods
	GetRecords() []entities.MedicationRecord
	GetRecordsMap() map[string]entities.MedicationRecord
	GetSnapshot() *homologation.Snapshot
	GetResolver() *homologation.Resolver
	GetVectors() []*homologation.FeatureVector
	GetReport() *homologation.BatchReport
	GetLastTrained() time.Time
	IsTraining() bool
	GetServerStartTime() time.Time

	// Data update methods
	PublishTrainingResult(records []entities.MedicationRecord, result *trainer.Result)
	BeginTraining() bool
	EndTraining()
}

// Parser defines the contract for loading the cleaned registry table
// handed over by the external ingestion stage.
type Parser interface {
	ParseRegistryFile(filePath string) ([]entities.MedicationRecord, error)
}

// Trainer defines the contract for one offline batch training run.
type Trainer interface {
	Train(records []entities.MedicationRecord) (*trainer.Result, error)
}

// Scheduler defines the contract for retraining scheduling and health
// monitoring.
type Scheduler interface {
	Start() error
	Stop()
}

// DataValidator defines the contract for input and registry validation.
type DataValidator interface {
	// ValidateRecord checks one registry record for schema conformance
	ValidateRecord(rec *entities.MedicationRecord) error

	// ValidateDataIntegrity performs batch-level validation
	ValidateDataIntegrity(records []entities.MedicationRecord) error

	// ReportDataQuality generates a quality report for a loaded batch
	ReportDataQuality(records []entities.MedicationRecord) *RegistryQualityReport

	// ValidateInput validates user input strings
	ValidateInput(input string) error

	// ValidateCUM validates CUM codes supplied by callers
	ValidateCUM(input string) (string, error)
}
