package homologation

import (
	"fmt"

	"github.com/iamed/homologos-api/logging"
)

// maxCountPerValue is the documented precondition of the adjusted frequency
// ranking: the fractional tie-break term count/10000 only preserves rank
// ordering while no single value occurs 10000 times or more in a batch.
const maxCountPerValue = 9999

// EncodedFeature is the per-attribute encoding of one record.
type EncodedFeature struct {
	Score           float64
	IsKnownCategory bool
	ProbAmongValid  float64
}

type categoryStat struct {
	rank      int
	count     int
	probValid float64
}

// FrequencyTable holds the adjusted frequency ranking of one categorical
// attribute for one training batch. It is immutable after fit and must be
// threaded explicitly into every Encode call; scores are meaningless
// outside the batch that produced the table.
type FrequencyTable struct {
	attribute string
	stats     map[string]categoryStat
	maxRank   int
}

// FitFrequencyTable counts the distinct values of one attribute over a
// training batch and assigns each a rank in descending occurrence order:
// rank(x) = 1 + number of distinct values with strictly more occurrences.
// Equally frequent values share a rank (and therefore a score); ordering
// ties downstream are broken lexicographically by CUM, never here.
//
// eligible must be aligned index-for-index with values and marks the
// records that count toward the prob-among-valid denominator.
func FitFrequencyTable(attribute string, values []string, eligible []bool) (*FrequencyTable, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no values for attribute %q", ErrInsufficientData, attribute)
	}
	if len(values) != len(eligible) {
		return nil, fmt.Errorf("attribute %q: %d values but %d eligibility flags", attribute, len(values), len(eligible))
	}

	counts := make(map[string]int)
	validCounts := make(map[string]int)
	totalValid := 0
	for i, v := range values {
		counts[v]++
		if eligible[i] {
			validCounts[v]++
			totalValid++
		}
	}

	stats := make(map[string]categoryStat, len(counts))
	maxRank := 0
	for v, c := range counts {
		if c > maxCountPerValue {
			logging.Warn("Category count exceeds ranking precondition, caller must re-scale",
				"attribute", attribute, "value", v, "count", c)
		}

		rank := 1
		for _, other := range counts {
			if other > c {
				rank++
			}
		}

		prob := 0.0
		if totalValid > 0 {
			prob = float64(validCounts[v]) / float64(totalValid)
		}

		stats[v] = categoryStat{rank: rank, count: c, probValid: prob}
		if rank > maxRank {
			maxRank = rank
		}
	}

	return &FrequencyTable{attribute: attribute, stats: stats, maxRank: maxRank}, nil
}

// Encode maps a category value to its adjusted frequency score:
// score(x) = rank(x) + count(x)/10000. A value never seen in the training
// batch degrades to the reserved sentinel score maxRank+1 and is flagged
// unknown; it is not an error.
func (t *FrequencyTable) Encode(value string) EncodedFeature {
	if s, ok := t.stats[value]; ok {
		return EncodedFeature{
			Score:           float64(s.rank) + float64(s.count)/10000,
			IsKnownCategory: true,
			ProbAmongValid:  s.probValid,
		}
	}

	logging.Debug("Unknown category encoded as sentinel",
		"attribute", t.attribute, "value", value, "sentinel", t.maxRank+1)

	return EncodedFeature{
		Score:           float64(t.maxRank + 1),
		IsKnownCategory: false,
		ProbAmongValid:  0,
	}
}

// Attribute returns the name of the attribute this table was fit on.
func (t *FrequencyTable) Attribute() string { return t.attribute }

// MaxRank returns the highest rank assigned in the training batch. The
// unknown-category sentinel is MaxRank+1.
func (t *FrequencyTable) MaxRank() int { return t.maxRank }

// Size returns the number of distinct values observed in the batch.
func (t *FrequencyTable) Size() int { return len(t.stats) }
