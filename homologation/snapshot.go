package homologation

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// Snapshot is the reusable, immutable result of one training run: the
// fitted centroids, the per-record assignments, and every assembled
// vector. Queries read it without locking; retraining replaces it
// wholesale, never in place. The JSON form is the auditable artifact
// consumed by validators.
type Snapshot struct {
	ID          string             `json:"id"`
	CreatedAt   time.Time          `json:"createdAt"`
	K           int                `json:"k"`
	Config      FitConfig          `json:"config"`
	Inertia     float64            `json:"inertia"`
	Centroids   [][]float64        `json:"centroids"`
	Assignments map[string]int     `json:"assignments"`
	Members     map[int][]string   `json:"members"`
	Vectors     map[string][]float64 `json:"vectors"`
}

// Predict returns the cluster label of an ad-hoc vector: the nearest
// centroid, ties to the lowest label. Pure and safe for unbounded
// concurrent readers.
func (s *Snapshot) Predict(values []float64) int {
	return nearestCentroid(values, s.Centroids)
}

// Assignment returns the precomputed label of a record, if it produced a
// valid vector in this training run.
func (s *Snapshot) Assignment(cum string) (int, bool) {
	label, ok := s.Assignments[cum]
	return label, ok
}

// sortMembers fixes the iteration order of cluster membership so exports
// and candidate scans are deterministic; ties anywhere downstream resolve
// lexicographically by CUM.
func (s *Snapshot) sortMembers() {
	for _, cums := range s.Members {
		sort.Strings(cums)
	}
}

// ExportJSON writes the full snapshot for external audit.
func (s *Snapshot) ExportJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to export snapshot %s: %w", s.ID, err)
	}
	return nil
}

// ParseSnapshot reads a previously exported snapshot.
func ParseSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if s.K <= 0 || len(s.Centroids) != s.K {
		return nil, fmt.Errorf("snapshot %s is inconsistent: k=%d with %d centroids", s.ID, s.K, len(s.Centroids))
	}
	return &s, nil
}

// Metadata is the lightweight description of a snapshot served on the
// model endpoint.
type Metadata struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	K           int       `json:"k"`
	Inertia     float64   `json:"inertia"`
	RecordCount int       `json:"recordCount"`
	Config      FitConfig `json:"config"`
}

// Metadata summarizes the snapshot without the per-record payload.
func (s *Snapshot) Metadata() Metadata {
	return Metadata{
		ID:          s.ID,
		CreatedAt:   s.CreatedAt,
		K:           s.K,
		Inertia:     s.Inertia,
		RecordCount: len(s.Assignments),
		Config:      s.Config,
	}
}
