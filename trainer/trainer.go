// Package trainer runs the offline batch training pipeline: eligibility
// classification, concurrent per-attribute encoder fits, vector assembly
// with exclusion reporting, and cluster model fitting. One training run
// owns its frequency tables and model state, so independent runs over
// different batches may proceed in parallel; fits over the same container
// are serialized by the data layer.
package trainer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/iamed/homologos-api/homologation"
	"github.com/iamed/homologos-api/logging"
	"github.com/iamed/homologos-api/registryparser/entities"
)

// Config is the full training configuration handed in from the
// environment.
type Config struct {
	Fit            homologation.FitConfig
	Weights        homologation.Weights
	BinBreakpoints []float64
	Rules          homologation.EligibilityRules
	DefaultTopK    int
}

// DefaultConfig returns the standard training setup.
func DefaultConfig() Config {
	return Config{
		Fit:            homologation.DefaultFitConfig(),
		Weights:        homologation.DefaultWeights(),
		BinBreakpoints: homologation.DefaultBinBreakpoints(),
		Rules:          homologation.DefaultEligibilityRules(),
		DefaultTopK:    10,
	}
}

// Result is the atomically publishable outcome of one training run.
type Result struct {
	Snapshot *homologation.Snapshot
	Resolver *homologation.Resolver
	Vectors  []*homologation.FeatureVector
	Tables   homologation.AttributeTables
	Report   *homologation.BatchReport
}

// Trainer trains models over cleaned registry batches.
type Trainer struct {
	cfg Config
}

// New creates a trainer with the given configuration.
func New(cfg Config) *Trainer {
	return &Trainer{cfg: cfg}
}

// Train runs the whole pipeline over one immutable record batch. Records
// failing a numeric transform are excluded from fitting but flagged in the
// report; fitting with fewer eligible vectors than the cluster count fails
// with homologation.ErrInsufficientData.
func (t *Trainer) Train(records []entities.MedicationRecord) (*Result, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty training batch", homologation.ErrInsufficientData)
	}

	eligible := make([]bool, len(records))
	eligibleCount := 0
	for i := range records {
		eligible[i] = t.cfg.Rules.Classify(&records[i])
		if eligible[i] {
			eligibleCount++
		}
	}

	tables, err := t.fitTables(records, eligible)
	if err != nil {
		return nil, err
	}

	assembler, err := homologation.NewAssembler(tables, t.cfg.Weights, t.cfg.BinBreakpoints)
	if err != nil {
		return nil, fmt.Errorf("failed to build assembler: %w", err)
	}

	report := &homologation.BatchReport{
		TotalRecords:    len(records),
		EligibleRecords: eligibleCount,
	}

	vectors := make([]*homologation.FeatureVector, 0, len(records))
	for i := range records {
		vec, err := assembler.Assemble(&records[i], eligible[i])
		if err != nil {
			if errors.Is(err, homologation.ErrInvalidQuantity) {
				report.AddExclusion(records[i].CUM, err.Error())
				continue
			}
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	report.VectorizedRecords = len(vectors)
	report.Sort()

	if len(report.Excluded) > 0 {
		logging.Warn("Records excluded from training run",
			"excluded", len(report.Excluded), "total", len(records))
	}

	snapshot, err := homologation.Fit(vectors, t.cfg.Fit)
	if err != nil {
		return nil, err
	}

	recordsMap := make(map[string]entities.MedicationRecord, len(records))
	for i := range records {
		recordsMap[records[i].CUM] = records[i]
	}

	resolver, err := homologation.NewResolver(snapshot, recordsMap, t.cfg.DefaultTopK)
	if err != nil {
		return nil, err
	}

	logging.Info("Training run completed",
		"snapshot", snapshot.ID,
		"records", len(records),
		"eligible", eligibleCount,
		"vectors", len(vectors),
		"clusters", snapshot.K,
		"inertia", snapshot.Inertia)

	return &Result{
		Snapshot: snapshot,
		Resolver: resolver,
		Vectors:  vectors,
		Tables:   tables,
		Report:   report,
	}, nil
}

// fitTables builds the five frequency tables concurrently, one goroutine
// per attribute.
func (t *Trainer) fitTables(records []entities.MedicationRecord, eligible []bool) (homologation.AttributeTables, error) {
	columns := []struct {
		name   string
		values []string
	}{
		{"atc", column(records, func(r *entities.MedicationRecord) string { return r.ATC })},
		{"via_administracion", column(records, func(r *entities.MedicationRecord) string { return r.Route })},
		{"principio_activo", column(records, func(r *entities.MedicationRecord) string { return r.ActiveIngredient })},
		{"forma_farmaceutica", column(records, func(r *entities.MedicationRecord) string { return r.PharmaceuticalForm })},
		{"unidad_medida", column(records, func(r *entities.MedicationRecord) string { return r.Unit })},
	}

	fitted := make([]*homologation.FrequencyTable, len(columns))
	errs := make([]error, len(columns))

	var wg sync.WaitGroup
	wg.Add(len(columns))
	for i := range columns {
		go func(i int) {
			defer wg.Done()
			fitted[i], errs[i] = homologation.FitFrequencyTable(columns[i].name, columns[i].values, eligible)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return homologation.AttributeTables{}, fmt.Errorf("failed to fit %s table: %w", columns[i].name, err)
		}
	}

	return homologation.AttributeTables{
		ATC:              fitted[0],
		Route:            fitted[1],
		ActiveIngredient: fitted[2],
		Form:             fitted[3],
		Unit:             fitted[4],
	}, nil
}

func column(records []entities.MedicationRecord, get func(*entities.MedicationRecord) string) []string {
	out := make([]string, len(records))
	for i := range records {
		out[i] = get(&records[i])
	}
	return out
}
