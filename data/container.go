// Package data provides thread-safe storage for the homologos API. The
// DataContainer holds the registry records and the published model
// snapshot behind atomic pointers so a newly trained model replaces the
// old one with zero downtime and no locking on the read path.
package data

import (
	"sync/atomic"
	"time"

	"github.com/iamed/homologos-api/homologation"
	"github.com/iamed/homologos-api/interfaces"
	"github.com/iamed/homologos-api/logging"
	"github.com/iamed/homologos-api/registryparser/entities"
	"github.com/iamed/homologos-api/trainer"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// DataContainer holds all the data with atomic pointers for zero-downtime
// snapshot replacement. Training is serialized per container through the
// training flag; reads are safe for unbounded concurrent callers.
type DataContainer struct {
	records         atomic.Value // []entities.MedicationRecord
	recordsMap      atomic.Value // map[string]entities.MedicationRecord
	snapshot        atomic.Value // *homologation.Snapshot
	resolver        atomic.Value // *homologation.Resolver
	vectors         atomic.Value // []*homologation.FeatureVector
	report          atomic.Value // *homologation.BatchReport
	lastTrained     atomic.Value // time.Time
	training        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with empty data
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.records.Store(make([]entities.MedicationRecord, 0))
	dc.recordsMap.Store(make(map[string]entities.MedicationRecord))
	dc.vectors.Store(make([]*homologation.FeatureVector, 0))
	dc.lastTrained.Store(time.Time{})
	dc.serverStartTime.Store(time.Now())
	return dc
}

// Thread-safe getters with type check

// GetRecords returns the current registry batch.
func (dc *DataContainer) GetRecords() []entities.MedicationRecord {
	if v := dc.records.Load(); v != nil {
		if records, ok := v.([]entities.MedicationRecord); ok {
			return records
		}
	}

	logging.Warn("Records list is empty or invalid")
	return []entities.MedicationRecord{}
}

// GetRecordsMap returns the registry keyed by CUM.
func (dc *DataContainer) GetRecordsMap() map[string]entities.MedicationRecord {
	if v := dc.recordsMap.Load(); v != nil {
		if m, ok := v.(map[string]entities.MedicationRecord); ok {
			return m
		}
	}

	logging.Warn("Records map is empty or invalid")
	return make(map[string]entities.MedicationRecord)
}

// GetSnapshot returns the published model snapshot, nil before the first
// training run completes.
func (dc *DataContainer) GetSnapshot() *homologation.Snapshot {
	if v := dc.snapshot.Load(); v != nil {
		if s, ok := v.(*homologation.Snapshot); ok {
			return s
		}
	}
	return nil
}

// GetResolver returns the resolver bound to the published snapshot, nil
// before the first training run completes.
func (dc *DataContainer) GetResolver() *homologation.Resolver {
	if v := dc.resolver.Load(); v != nil {
		if r, ok := v.(*homologation.Resolver); ok {
			return r
		}
	}
	return nil
}

// GetVectors returns the feature vector table of the published snapshot.
func (dc *DataContainer) GetVectors() []*homologation.FeatureVector {
	if v := dc.vectors.Load(); v != nil {
		if vectors, ok := v.([]*homologation.FeatureVector); ok {
			return vectors
		}
	}

	logging.Warn("Vector table is empty or invalid")
	return []*homologation.FeatureVector{}
}

// GetReport returns the exclusion report of the last training run.
func (dc *DataContainer) GetReport() *homologation.BatchReport {
	if v := dc.report.Load(); v != nil {
		if r, ok := v.(*homologation.BatchReport); ok {
			return r
		}
	}
	return nil
}

// GetLastTrained returns when the published snapshot was trained.
func (dc *DataContainer) GetLastTrained() time.Time {
	if v := dc.lastTrained.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}

	logging.Warn("Could not get the last trained value")
	return time.Time{}
}

// IsTraining reports whether a training run is in progress.
func (dc *DataContainer) IsTraining() bool {
	return dc.training.Load()
}

// GetServerStartTime returns when this container was created.
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

// PublishTrainingResult atomically swaps in a freshly trained model.
// Each field swap is atomic and the resolver carries its own snapshot, so
// a reader holding a resolver keeps a consistent view even across a swap.
func (dc *DataContainer) PublishTrainingResult(records []entities.MedicationRecord, result *trainer.Result) {
	recordsMap := make(map[string]entities.MedicationRecord, len(records))
	for i := range records {
		recordsMap[records[i].CUM] = records[i]
	}

	dc.records.Store(records)
	dc.recordsMap.Store(recordsMap)
	dc.snapshot.Store(result.Snapshot)
	dc.resolver.Store(result.Resolver)
	dc.vectors.Store(result.Vectors)
	dc.report.Store(result.Report)
	dc.lastTrained.Store(time.Now())

	logging.Info("Model snapshot published",
		"snapshot", result.Snapshot.ID,
		"records", len(records),
		"clusters", result.Snapshot.K)
}

// BeginTraining attempts to start a training run; it returns false when
// another run already holds the container.
func (dc *DataContainer) BeginTraining() bool {
	return dc.training.CompareAndSwap(false, true)
}

// EndTraining marks the training run as finished.
func (dc *DataContainer) EndTraining() {
	dc.training.Store(false)
}
