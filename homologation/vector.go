package homologation

import (
	"fmt"
	"math"

	"github.com/iamed/homologos-api/registryparser/entities"
)

// Block sizes of the assembled vector. Critical: {ATC, route, active
// ingredient} x {score, valid indicator, prob among valid}. Important:
// {form, unit} x {score, prob} plus the four numeric transforms.
const (
	criticalComponents  = 9
	importantComponents = 8
	// VectorLen is the length of every assembled feature vector.
	VectorLen = criticalComponents + importantComponents
)

// Weights holds the configured aggregate influence of the two distance
// blocks. Informative fields carry weight zero and never enter the vector.
type Weights struct {
	Critical  float64
	Important float64
}

// DefaultWeights returns the standard 85/15 critical/important split.
func DefaultWeights() Weights {
	return Weights{Critical: 0.85, Important: 0.15}
}

// Validate checks that both weights are in [0,1] and sum to 1.
func (w Weights) Validate() error {
	if w.Critical < 0 || w.Critical > 1 {
		return fmt.Errorf("critical weight must be in [0,1], got %v", w.Critical)
	}
	if w.Important < 0 || w.Important > 1 {
		return fmt.Errorf("important weight must be in [0,1], got %v", w.Important)
	}
	if diff := math.Abs(w.Critical + w.Important - 1); diff > 1e-9 {
		return fmt.Errorf("critical and important weights must sum to 1, got %v", w.Critical+w.Important)
	}
	return nil
}

// DefaultBinBreakpoints are the quantity buckets of the reference
// implementation: (..,10], (10,100], (100,500], (500,..).
func DefaultBinBreakpoints() []float64 {
	return []float64{10, 100, 500}
}

// LogFeature is the natural logarithm of a positive quantity. Non-positive
// quantities fail with ErrInvalidQuantity; the record is excluded from
// training but retained for manual review.
func LogFeature(q float64) (float64, error) {
	if q <= 0 {
		return 0, invalidQuantity("quantity", q)
	}
	return math.Log(q), nil
}

// RatioFeature is quantity over reference quantity; a zero reference fails
// with ErrInvalidQuantity.
func RatioFeature(q, qref float64) (float64, error) {
	if qref == 0 {
		return 0, invalidQuantity("reference quantity", qref)
	}
	return q / qref, nil
}

// BinFeature returns the index of the half-open bucket (b[i-1], b[i]] that
// q falls into; quantities above the last breakpoint land in the overflow
// bucket len(breakpoints). Breakpoints must be sorted ascending.
func BinFeature(q float64, breakpoints []float64) int {
	for i, b := range breakpoints {
		if q <= b {
			return i
		}
	}
	return len(breakpoints)
}

// VectorMeta carries the informative fields of a record alongside its
// vector. They are metadata only and never contribute to distance.
type VectorMeta struct {
	Product          string `json:"producto"`
	ATC              string `json:"atc"`
	Route            string `json:"viaAdministracion"`
	ActiveIngredient string `json:"principioActivo"`
	Form             string `json:"formaFarmaceutica"`
	Unit             string `json:"unidadMedida"`
	Eligible         bool   `json:"valido"`
}

// FeatureVector is the weighted numeric encoding of one record, keyed by
// its CUM.
type FeatureVector struct {
	CUM    string     `json:"cum"`
	Values []float64  `json:"values"`
	Meta   VectorMeta `json:"meta"`
}

// AttributeTables groups the five per-attribute frequency tables of one
// training batch.
type AttributeTables struct {
	ATC              *FrequencyTable
	Route            *FrequencyTable
	ActiveIngredient *FrequencyTable
	Form             *FrequencyTable
	Unit             *FrequencyTable
}

// Assembler combines encoded categorical scores, validity indicators,
// category-validity ratios and the numeric transforms into one weighted
// vector per record. It is immutable and safe for concurrent use.
type Assembler struct {
	tables      AttributeTables
	weights     Weights
	breakpoints []float64
}

// NewAssembler builds an assembler over fitted frequency tables. The
// weights and bin breakpoints are configuration, validated here once.
func NewAssembler(tables AttributeTables, weights Weights, breakpoints []float64) (*Assembler, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if tables.ATC == nil || tables.Route == nil || tables.ActiveIngredient == nil ||
		tables.Form == nil || tables.Unit == nil {
		return nil, fmt.Errorf("assembler requires all five attribute tables")
	}
	if len(breakpoints) == 0 {
		breakpoints = DefaultBinBreakpoints()
	}
	return &Assembler{tables: tables, weights: weights, breakpoints: breakpoints}, nil
}

// Weights returns the configured block weights.
func (a *Assembler) Weights() Weights { return a.weights }

// Assemble encodes one record into its weighted feature vector. The
// critical block is scaled so its combined component weight equals the
// configured critical weight, the important block likewise; informative
// fields go to Meta untouched. A failed numeric transform returns an
// ErrInvalidQuantity and no vector.
func (a *Assembler) Assemble(rec *entities.MedicationRecord, eligible bool) (*FeatureVector, error) {
	logQty, err := LogFeature(rec.Quantity)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.CUM, err)
	}
	logRef, err := LogFeature(rec.ReferenceQuantity)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.CUM, err)
	}
	ratio, err := RatioFeature(rec.Quantity, rec.ReferenceQuantity)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.CUM, err)
	}
	bin := BinFeature(rec.Quantity, a.breakpoints)

	atc := a.tables.ATC.Encode(rec.ATC)
	route := a.tables.Route.Encode(rec.Route)
	ingredient := a.tables.ActiveIngredient.Encode(rec.ActiveIngredient)
	form := a.tables.Form.Encode(rec.PharmaceuticalForm)
	unit := a.tables.Unit.Encode(rec.Unit)

	values := make([]float64, 0, VectorLen)

	// Critical block
	cw := a.weights.Critical / criticalComponents
	for _, f := range []EncodedFeature{atc, route, ingredient} {
		values = append(values,
			f.Score*cw,
			validIndicator(f)*cw,
			f.ProbAmongValid*cw,
		)
	}

	// Important block
	iw := a.weights.Important / importantComponents
	values = append(values,
		form.Score*iw,
		form.ProbAmongValid*iw,
		unit.Score*iw,
		unit.ProbAmongValid*iw,
		logQty*iw,
		logRef*iw,
		ratio*iw,
		float64(bin)*iw,
	)

	return &FeatureVector{
		CUM:    rec.CUM,
		Values: values,
		Meta: VectorMeta{
			Product:          rec.Product,
			ATC:              rec.ATC,
			Route:            rec.Route,
			ActiveIngredient: rec.ActiveIngredient,
			Form:             rec.PharmaceuticalForm,
			Unit:             rec.Unit,
			Eligible:         eligible,
		},
	}, nil
}

// validIndicator is 1 when the category was observed among eligible
// records of the batch.
func validIndicator(f EncodedFeature) float64 {
	if f.ProbAmongValid > 0 {
		return 1
	}
	return 0
}

// euclidean returns the distance between two equal-length vectors in the
// weighted feature space.
func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
