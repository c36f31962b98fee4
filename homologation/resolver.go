package homologation

import (
	"fmt"
	"sort"

	"github.com/iamed/homologos-api/registryparser/entities"
)

// Filter is a hard post-hoc eligibility predicate applied to candidates
// after cluster lookup, independent of the clustering itself.
type Filter string

// The recognized candidate filters.
const (
	FilterRegistrationActive Filter = "registration_active"
	FilterNotMedicalSample   Filter = "not_medical_sample"
	FilterATCExactMatch      Filter = "atc_exact_match"
	FilterCoveragePBS        Filter = "coverage_in_pbs"
)

// ParseFilter validates a caller-supplied filter name.
func ParseFilter(name string) (Filter, error) {
	switch Filter(name) {
	case FilterRegistrationActive, FilterNotMedicalSample, FilterATCExactMatch, FilterCoveragePBS:
		return Filter(name), nil
	}
	return "", fmt.Errorf("unrecognized filter: %q", name)
}

// Candidate is one ranked substitute suggestion.
type Candidate struct {
	CUM              string  `json:"cum"`
	Product          string  `json:"producto"`
	ATC              string  `json:"atc"`
	Route            string  `json:"viaAdministracion"`
	ActiveIngredient string  `json:"principioActivo"`
	Form             string  `json:"formaFarmaceutica"`
	Distance         float64 `json:"distance"`
}

// Resolver serves ranked substitute queries against one published model
// snapshot. It holds no mutable state: all methods are read-only and safe
// for unbounded concurrent callers. Re-issuing a query with a larger topK
// against the same resolver reuses the precomputed cluster membership.
type Resolver struct {
	snapshot    *Snapshot
	records     map[string]entities.MedicationRecord
	defaultTopK int
}

// NewResolver binds a snapshot to the record set it was trained on.
func NewResolver(snapshot *Snapshot, records map[string]entities.MedicationRecord, defaultTopK int) (*Resolver, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("resolver requires a snapshot")
	}
	if defaultTopK <= 0 {
		defaultTopK = 10
	}
	return &Resolver{snapshot: snapshot, records: records, defaultTopK: defaultTopK}, nil
}

// Snapshot returns the snapshot this resolver serves.
func (r *Resolver) Snapshot() *Snapshot { return r.snapshot }

// Query returns up to topK candidate substitutes for a registry record,
// ordered by ascending distance in the weighted feature space, distance
// ties broken lexicographically by CUM. A query record that was excluded
// from training (failed numeric transform, or unknown CUM) fails with
// ErrUnresolvableQuery. A cluster with no other members yields an empty
// result, not an error.
func (r *Resolver) Query(cum string, topK int, filters []Filter) ([]Candidate, error) {
	label, ok := r.snapshot.Assignment(cum)
	if !ok {
		return nil, fmt.Errorf("%w: record %s has no cluster assignment", ErrUnresolvableQuery, cum)
	}
	queryVec, ok := r.snapshot.Vectors[cum]
	if !ok {
		return nil, fmt.Errorf("%w: record %s has no vector", ErrUnresolvableQuery, cum)
	}

	queryRec, hasRec := r.records[cum]
	if !hasRec {
		return nil, fmt.Errorf("%w: record %s not in registry", ErrUnresolvableQuery, cum)
	}

	return r.rank(label, queryVec, cum, queryRec.ATC, topK, filters)
}

// QueryVector resolves an ad-hoc vector by predicting its cluster first.
// The atc_exact_match filter needs a query record and is rejected here.
func (r *Resolver) QueryVector(values []float64, topK int, filters []Filter) ([]Candidate, error) {
	for _, f := range filters {
		if f == FilterATCExactMatch {
			return nil, fmt.Errorf("filter %s requires a record query, not an ad-hoc vector", f)
		}
	}
	if len(values) != VectorLen {
		return nil, fmt.Errorf("%w: ad-hoc vector has %d components, want %d", ErrUnresolvableQuery, len(values), VectorLen)
	}
	label := r.snapshot.Predict(values)
	return r.rank(label, values, "", "", topK, filters)
}

func (r *Resolver) rank(label int, queryVec []float64, excludeCUM, queryATC string, topK int, filters []Filter) ([]Candidate, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	candidates := make([]Candidate, 0)
	for _, cum := range r.snapshot.Members[label] {
		if cum == excludeCUM {
			continue
		}
		rec, ok := r.records[cum]
		if !ok {
			continue
		}
		if !r.passes(&rec, queryATC, filters) {
			continue
		}
		candidates = append(candidates, Candidate{
			CUM:              rec.CUM,
			Product:          rec.Product,
			ATC:              rec.ATC,
			Route:            rec.Route,
			ActiveIngredient: rec.ActiveIngredient,
			Form:             rec.PharmaceuticalForm,
			Distance:         euclidean(queryVec, r.snapshot.Vectors[cum]),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].CUM < candidates[j].CUM
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// passes evaluates the hard filters over a candidate's raw attributes.
func (r *Resolver) passes(rec *entities.MedicationRecord, queryATC string, filters []Filter) bool {
	for _, f := range filters {
		switch f {
		case FilterRegistrationActive:
			if rec.RegistrationStatus != entities.StatusVigente {
				return false
			}
		case FilterNotMedicalSample:
			if rec.MedicalSample {
				return false
			}
		case FilterATCExactMatch:
			if rec.ATC != queryATC {
				return false
			}
		case FilterCoveragePBS:
			if !rec.CoveredPBS {
				return false
			}
		}
	}
	return true
}
