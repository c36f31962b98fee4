package homologation

import "sort"

// Exclusion flags one record dropped from a training run, retained for
// manual review.
type Exclusion struct {
	CUM    string `json:"cum"`
	Reason string `json:"reason"`
}

// BatchReport aggregates the per-record transform failures of one training
// run. Exclusions never abort the batch; they are recovered locally and
// reported here.
type BatchReport struct {
	TotalRecords      int         `json:"totalRecords"`
	EligibleRecords   int         `json:"eligibleRecords"`
	VectorizedRecords int         `json:"vectorizedRecords"`
	Excluded          []Exclusion `json:"excluded"`
}

// AddExclusion records one excluded record.
func (r *BatchReport) AddExclusion(cum, reason string) {
	r.Excluded = append(r.Excluded, Exclusion{CUM: cum, Reason: reason})
}

// Sort orders the exclusions lexicographically by CUM for stable output.
func (r *BatchReport) Sort() {
	sort.Slice(r.Excluded, func(i, j int) bool {
		return r.Excluded[i].CUM < r.Excluded[j].CUM
	})
}
