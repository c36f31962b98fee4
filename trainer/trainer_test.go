package trainer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/iamed/homologos-api/homologation"
	"github.com/iamed/homologos-api/registryparser/entities"
)

// testBatch builds a registry batch with two clearly distinct medication
// families so k=2 training always converges.
func testBatch(perFamily int) []entities.MedicationRecord {
	records := make([]entities.MedicationRecord, 0, 2*perFamily)
	for i := 0; i < perFamily; i++ {
		records = append(records, entities.MedicationRecord{
			CUM:                fmt.Sprintf("1000%04d-1", i),
			Product:            "ACETAMINOFEN 500MG TABLETA",
			ActiveIngredient:   "ACETAMINOFEN",
			ATC:                "N02BE01",
			PharmaceuticalForm: "TABLETA",
			Route:              "ORAL",
			Unit:               "MG",
			Quantity:           500,
			ReferenceQuantity:  500,
			RegistrationStatus: entities.StatusVigente,
			CUMStatus:          entities.CUMStatusActivo,
		})
		records = append(records, entities.MedicationRecord{
			CUM:                fmt.Sprintf("2000%04d-1", i),
			Product:            "AMOXICILINA 250MG/5ML SUSPENSION",
			ActiveIngredient:   "AMOXICILINA",
			ATC:                "J01CA04",
			PharmaceuticalForm: "SUSPENSION",
			Route:              "ORAL",
			Unit:               "ML",
			Quantity:           5,
			ReferenceQuantity:  100,
			RegistrationStatus: entities.StatusVigente,
			CUMStatus:          entities.CUMStatusActivo,
		})
	}
	return records
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Fit.K = 2
	cfg.Fit.NRestarts = 3
	return cfg
}

func TestTrain(t *testing.T) {
	records := testBatch(10)
	result, err := New(testConfig()).Train(records)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	if result.Snapshot == nil || result.Resolver == nil {
		t.Fatal("training produced no snapshot or resolver")
	}
	if result.Report.TotalRecords != len(records) {
		t.Errorf("report total = %d, want %d", result.Report.TotalRecords, len(records))
	}
	if result.Report.EligibleRecords != len(records) {
		t.Errorf("report eligible = %d, want %d", result.Report.EligibleRecords, len(records))
	}
	if result.Report.VectorizedRecords != len(records) {
		t.Errorf("report vectorized = %d, want %d", result.Report.VectorizedRecords, len(records))
	}
	if len(result.Vectors) != len(records) {
		t.Errorf("got %d vectors, want %d", len(result.Vectors), len(records))
	}

	// A trained resolver answers queries within the batch
	candidates, err := result.Resolver.Query(records[0].CUM, 3, nil)
	if err != nil {
		t.Fatalf("resolver query failed: %v", err)
	}
	if len(candidates) == 0 {
		t.Fatal("no candidates for an in-batch record")
	}
	for _, c := range candidates {
		if c.CUM == records[0].CUM {
			t.Error("query record returned as its own substitute")
		}
	}
}

func TestTrainExclusionIsNotFatal(t *testing.T) {
	records := testBatch(10)
	records[0].Quantity = 0 // fails the log transform

	result, err := New(testConfig()).Train(records)
	if err != nil {
		t.Fatalf("Train failed on an excludable record: %v", err)
	}

	if len(result.Report.Excluded) != 1 {
		t.Fatalf("got %d exclusions, want 1", len(result.Report.Excluded))
	}
	if result.Report.Excluded[0].CUM != records[0].CUM {
		t.Errorf("excluded CUM = %s, want %s", result.Report.Excluded[0].CUM, records[0].CUM)
	}
	if result.Report.Excluded[0].Reason == "" {
		t.Error("exclusion carries no reason")
	}
	if result.Report.VectorizedRecords != len(records)-1 {
		t.Errorf("vectorized = %d, want %d", result.Report.VectorizedRecords, len(records)-1)
	}

	// The excluded record has no assignment and cannot be queried
	if _, err := result.Resolver.Query(records[0].CUM, 0, nil); !errors.Is(err, homologation.ErrUnresolvableQuery) {
		t.Errorf("query for excluded record error = %v, want ErrUnresolvableQuery", err)
	}
}

func TestTrainIneligibleRecordsRemainQueryable(t *testing.T) {
	records := testBatch(10)
	records[0].RegistrationStatus = entities.StatusVencido

	result, err := New(testConfig()).Train(records)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	if result.Report.EligibleRecords != len(records)-1 {
		t.Errorf("eligible = %d, want %d", result.Report.EligibleRecords, len(records)-1)
	}

	// Queryable as a query record
	candidates, err := result.Resolver.Query(records[0].CUM, 0, nil)
	if err != nil {
		t.Fatalf("query for ineligible record failed: %v", err)
	}

	// But never offered as a candidate
	for _, c := range candidates {
		if c.CUM == records[0].CUM {
			t.Error("ineligible record offered as a substitute")
		}
	}
	other, err := result.Resolver.Query(records[2].CUM, 100, nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	for _, c := range other {
		if c.CUM == records[0].CUM {
			t.Error("ineligible record offered as a substitute")
		}
	}
}

func TestTrainInsufficientData(t *testing.T) {
	t.Run("empty batch", func(t *testing.T) {
		_, err := New(testConfig()).Train(nil)
		if !errors.Is(err, homologation.ErrInsufficientData) {
			t.Errorf("error = %v, want ErrInsufficientData", err)
		}
	})

	t.Run("fewer eligible vectors than k", func(t *testing.T) {
		cfg := testConfig()
		cfg.Fit.K = 50
		_, err := New(cfg).Train(testBatch(10))
		if !errors.Is(err, homologation.ErrInsufficientData) {
			t.Errorf("error = %v, want ErrInsufficientData", err)
		}
	})
}

func TestTrainDeterministic(t *testing.T) {
	records := testBatch(10)

	first, err := New(testConfig()).Train(records)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := New(testConfig()).Train(records)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.Snapshot.Inertia != second.Snapshot.Inertia {
		t.Errorf("inertia differs between identical runs: %v vs %v",
			first.Snapshot.Inertia, second.Snapshot.Inertia)
	}
	for cum, label := range first.Snapshot.Assignments {
		if second.Snapshot.Assignments[cum] != label {
			t.Errorf("assignment for %s differs between identical runs", cum)
			break
		}
	}
}
