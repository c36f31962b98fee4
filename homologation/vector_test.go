package homologation

import (
	"errors"
	"math"
	"testing"

	"github.com/iamed/homologos-api/registryparser/entities"
)

func testRecord(cum string) entities.MedicationRecord {
	return entities.MedicationRecord{
		CUM:                cum,
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
	}
}

func testTables(t *testing.T) AttributeTables {
	t.Helper()
	fit := func(attribute string, values []string) *FrequencyTable {
		table, err := FitFrequencyTable(attribute, values, allTrue(len(values)))
		if err != nil {
			t.Fatalf("fit %s: %v", attribute, err)
		}
		return table
	}
	return AttributeTables{
		ATC:              fit("atc", []string{"N02BE01", "N02BE01", "J01CA04"}),
		Route:            fit("via_administracion", []string{"ORAL", "ORAL", "TOPICA"}),
		ActiveIngredient: fit("principio_activo", []string{"ACETAMINOFEN", "ACETAMINOFEN", "AMOXICILINA"}),
		Form:             fit("forma_farmaceutica", []string{"TABLETA", "TABLETA", "CREMA"}),
		Unit:             fit("unidad_medida", []string{"MG", "MG", "G"}),
	}
}

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{"default split", DefaultWeights(), false},
		{"even split", Weights{Critical: 0.5, Important: 0.5}, false},
		{"does not sum to one", Weights{Critical: 0.8, Important: 0.1}, true},
		{"negative weight", Weights{Critical: -0.2, Important: 1.2}, true},
		{"above one", Weights{Critical: 1.5, Important: -0.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNumericTransforms(t *testing.T) {
	t.Run("log of positive quantity", func(t *testing.T) {
		got, err := LogFeature(500)
		if err != nil {
			t.Fatalf("LogFeature(500) error: %v", err)
		}
		if math.Abs(got-math.Log(500)) > 1e-12 {
			t.Errorf("LogFeature(500) = %v, want %v", got, math.Log(500))
		}
	})

	t.Run("log rejects non-positive", func(t *testing.T) {
		for _, q := range []float64{0, -5} {
			if _, err := LogFeature(q); !errors.Is(err, ErrInvalidQuantity) {
				t.Errorf("LogFeature(%v) error = %v, want ErrInvalidQuantity", q, err)
			}
		}
	})

	t.Run("ratio rejects zero reference", func(t *testing.T) {
		if _, err := RatioFeature(10, 0); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("RatioFeature(10, 0) error = %v, want ErrInvalidQuantity", err)
		}
	})

	t.Run("ratio of valid pair", func(t *testing.T) {
		got, err := RatioFeature(250, 500)
		if err != nil {
			t.Fatalf("RatioFeature error: %v", err)
		}
		if got != 0.5 {
			t.Errorf("RatioFeature(250, 500) = %v, want 0.5", got)
		}
	})
}

func TestBinFeature(t *testing.T) {
	breakpoints := DefaultBinBreakpoints()

	tests := []struct {
		q    float64
		want int
	}{
		{5, 0},
		{10, 0},
		{10.5, 1},
		{100, 1},
		{250, 2},
		{500, 2},
		{501, 3},
		{100000, 3},
	}

	for _, tt := range tests {
		if got := BinFeature(tt.q, breakpoints); got != tt.want {
			t.Errorf("BinFeature(%v) = %d, want %d", tt.q, got, tt.want)
		}
	}
}

func TestNewAssemblerValidation(t *testing.T) {
	tables := testTables(t)

	t.Run("rejects bad weights", func(t *testing.T) {
		if _, err := NewAssembler(tables, Weights{Critical: 0.9, Important: 0.9}, nil); err == nil {
			t.Error("expected weight validation error")
		}
	})

	t.Run("rejects missing table", func(t *testing.T) {
		incomplete := tables
		incomplete.Unit = nil
		if _, err := NewAssembler(incomplete, DefaultWeights(), nil); err == nil {
			t.Error("expected missing table error")
		}
	})

	t.Run("defaults breakpoints", func(t *testing.T) {
		a, err := NewAssembler(tables, DefaultWeights(), nil)
		if err != nil {
			t.Fatalf("NewAssembler failed: %v", err)
		}
		if a == nil {
			t.Fatal("nil assembler")
		}
	})
}

func TestAssemble(t *testing.T) {
	assembler, err := NewAssembler(testTables(t), DefaultWeights(), nil)
	if err != nil {
		t.Fatalf("NewAssembler failed: %v", err)
	}

	rec := testRecord("19900001-1")
	vec, err := assembler.Assemble(&rec, true)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if len(vec.Values) != VectorLen {
		t.Fatalf("vector length = %d, want %d", len(vec.Values), VectorLen)
	}
	if vec.CUM != rec.CUM {
		t.Errorf("vector CUM = %s, want %s", vec.CUM, rec.CUM)
	}
	if !vec.Meta.Eligible {
		t.Error("eligible flag lost in assembly")
	}
	if vec.Meta.Product != rec.Product {
		t.Errorf("meta product = %s, want %s", vec.Meta.Product, rec.Product)
	}
}

func TestAssembleInformativeFieldsCarryNoWeight(t *testing.T) {
	assembler, err := NewAssembler(testTables(t), DefaultWeights(), nil)
	if err != nil {
		t.Fatalf("NewAssembler failed: %v", err)
	}

	a := testRecord("19900001-1")
	b := testRecord("19900002-1")
	b.Product = "OTRO NOMBRE COMERCIAL"
	b.Expediente = "99999"
	b.ATCDescription = "otra descripcion"

	va, err := assembler.Assemble(&a, true)
	if err != nil {
		t.Fatalf("Assemble a: %v", err)
	}
	vb, err := assembler.Assemble(&b, true)
	if err != nil {
		t.Fatalf("Assemble b: %v", err)
	}

	if d := euclidean(va.Values, vb.Values); d != 0 {
		t.Errorf("informative-only difference moved the vector, distance = %v", d)
	}
}

func TestAssembleInvalidQuantity(t *testing.T) {
	assembler, err := NewAssembler(testTables(t), DefaultWeights(), nil)
	if err != nil {
		t.Fatalf("NewAssembler failed: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*entities.MedicationRecord)
	}{
		{"zero quantity", func(r *entities.MedicationRecord) { r.Quantity = 0 }},
		{"negative quantity", func(r *entities.MedicationRecord) { r.Quantity = -5 }},
		{"zero reference quantity", func(r *entities.MedicationRecord) { r.ReferenceQuantity = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecord("19900001-1")
			tt.mutate(&rec)
			if _, err := assembler.Assemble(&rec, true); !errors.Is(err, ErrInvalidQuantity) {
				t.Errorf("Assemble error = %v, want ErrInvalidQuantity", err)
			}
		})
	}
}

func TestAssembleBlockWeighting(t *testing.T) {
	// With an all-critical weighting the important block must vanish
	assembler, err := NewAssembler(testTables(t), Weights{Critical: 1, Important: 0}, nil)
	if err != nil {
		t.Fatalf("NewAssembler failed: %v", err)
	}

	rec := testRecord("19900001-1")
	vec, err := assembler.Assemble(&rec, true)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	for i := criticalComponents; i < VectorLen; i++ {
		if vec.Values[i] != 0 {
			t.Errorf("important component %d = %v with zero important weight", i, vec.Values[i])
		}
	}
}
