package homologation

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestSnapshotExportParseRoundTrip(t *testing.T) {
	vectors := clusteredVectors(5)
	snap, err := Fit(vectors, FitConfig{K: 2, Seed: 42, MaxIterations: 100, Tolerance: 1e-4, NRestarts: 2})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	var buf bytes.Buffer
	if err := snap.ExportJSON(&buf); err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	parsed, err := ParseSnapshot(&buf)
	if err != nil {
		t.Fatalf("ParseSnapshot failed: %v", err)
	}

	if parsed.ID != snap.ID {
		t.Errorf("parsed ID = %s, want %s", parsed.ID, snap.ID)
	}
	if parsed.K != snap.K || parsed.Inertia != snap.Inertia {
		t.Errorf("parsed k/inertia = %d/%v, want %d/%v", parsed.K, parsed.Inertia, snap.K, snap.Inertia)
	}
	if !reflect.DeepEqual(parsed.Assignments, snap.Assignments) {
		t.Error("assignments lost in export round trip")
	}
	if !reflect.DeepEqual(parsed.Centroids, snap.Centroids) {
		t.Error("centroids lost in export round trip")
	}

	// A parsed snapshot must answer queries like the original
	for cum, want := range snap.Assignments {
		if got := parsed.Predict(snap.Vectors[cum]); got != want {
			t.Errorf("parsed Predict(%s) = %d, want %d", cum, got, want)
			break
		}
	}
}

func TestParseSnapshotRejectsInconsistent(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero k", `{"id":"x","k":0,"centroids":[]}`},
		{"centroid count mismatch", `{"id":"x","k":3,"centroids":[[1],[2]]}`},
		{"not json", `not a snapshot`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSnapshot(strings.NewReader(tt.body)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestSnapshotMetadata(t *testing.T) {
	vectors := clusteredVectors(5)
	snap, err := Fit(vectors, FitConfig{K: 2, Seed: 42, MaxIterations: 100, Tolerance: 1e-4, NRestarts: 2})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	meta := snap.Metadata()
	if meta.ID != snap.ID || meta.K != snap.K || meta.Inertia != snap.Inertia {
		t.Error("metadata does not match its snapshot")
	}
	if meta.RecordCount != len(snap.Assignments) {
		t.Errorf("metadata record count = %d, want %d", meta.RecordCount, len(snap.Assignments))
	}
}

func TestSnapshotMembersSorted(t *testing.T) {
	vectors := clusteredVectors(10)
	snap, err := Fit(vectors, FitConfig{K: 2, Seed: 42, MaxIterations: 100, Tolerance: 1e-4, NRestarts: 2})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	for label, members := range snap.Members {
		for i := 1; i < len(members); i++ {
			if members[i-1] > members[i] {
				t.Errorf("cluster %d members not sorted: %s > %s", label, members[i-1], members[i])
			}
		}
	}
}
