package homologation

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/iamed/homologos-api/logging"
)

// maxReseedAttempts bounds how often a run may rescue degenerate clusters
// before its result is scored failed and the next-best restart is used.
const maxReseedAttempts = 3

// FitConfig is the clustering configuration surface. All fitting is
// deterministic given the same vectors and config.
type FitConfig struct {
	K             int     `json:"k"`
	Seed          int64   `json:"seed"`
	MaxIterations int     `json:"maxIterations"`
	Tolerance     float64 `json:"tolerance"`
	NRestarts     int     `json:"nRestarts"`
}

// DefaultFitConfig mirrors the reference training setup: fixed seed,
// bounded iterations, ten independent restarts.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		K:             8,
		Seed:          42,
		MaxIterations: 300,
		Tolerance:     1e-4,
		NRestarts:     10,
	}
}

// Validate rejects configurations that cannot produce a model.
func (c FitConfig) Validate() error {
	if c.K <= 0 {
		return fmt.Errorf("cluster count must be positive, got %d", c.K)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", c.MaxIterations)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("tolerance must be non-negative, got %v", c.Tolerance)
	}
	if c.NRestarts <= 0 {
		return fmt.Errorf("restart count must be positive, got %d", c.NRestarts)
	}
	return nil
}

// Fit partitions the eligible vectors into K clusters with k-means++
// seeding and Lloyd iterations, keeping the restart with the lowest
// within-cluster squared distance. Eligible records receive their fitted
// label; ineligible records with a valid vector receive a predicted label
// so they remain addressable as queries. The returned snapshot is
// immutable; retraining produces a new, independently numbered snapshot.
//
// Fitting with fewer eligible vectors than K fails with
// ErrInsufficientData. If every restart degenerates the fit fails with
// ErrDegenerateCluster instead of hanging or silently shrinking K.
func Fit(vectors []*FeatureVector, cfg FitConfig) (*Snapshot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cluster configuration: %w", err)
	}

	var training []*FeatureVector
	for _, v := range vectors {
		if v.Meta.Eligible {
			training = append(training, v)
		}
	}
	if len(training) < cfg.K {
		return nil, fmt.Errorf("%w: %d eligible vectors for k=%d", ErrInsufficientData, len(training), cfg.K)
	}

	points := make([][]float64, len(training))
	for i, v := range training {
		points[i] = v.Values
	}

	root := rand.New(rand.NewSource(cfg.Seed))
	best := runResult{inertia: math.Inf(1)}
	for restart := 0; restart < cfg.NRestarts; restart++ {
		run := lloyd(points, cfg, rand.New(rand.NewSource(root.Int63())))
		if run.failed {
			logging.Warn("Clustering restart degenerated, using next-best restart",
				"restart", restart, "k", cfg.K)
			continue
		}
		if run.inertia < best.inertia {
			best = run
		}
	}
	if math.IsInf(best.inertia, 1) {
		return nil, fmt.Errorf("%w: all %d restarts failed for k=%d", ErrDegenerateCluster, cfg.NRestarts, cfg.K)
	}

	snap := &Snapshot{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		K:           cfg.K,
		Config:      cfg,
		Inertia:     best.inertia,
		Centroids:   best.centroids,
		Assignments: make(map[string]int, len(vectors)),
		Vectors:     make(map[string][]float64, len(vectors)),
		Members:     make(map[int][]string, cfg.K),
	}

	for i, v := range training {
		label := best.labels[i]
		snap.Assignments[v.CUM] = label
		snap.Members[label] = append(snap.Members[label], v.CUM)
	}
	for _, v := range vectors {
		snap.Vectors[v.CUM] = v.Values
		if !v.Meta.Eligible {
			snap.Assignments[v.CUM] = snap.Predict(v.Values)
		}
	}
	snap.sortMembers()

	return snap, nil
}

type runResult struct {
	labels    []int
	centroids [][]float64
	inertia   float64
	failed    bool
}

// lloyd runs one seeded k-means restart to convergence or the iteration
// cap. Assignment ties go to the lowest cluster label.
func lloyd(points [][]float64, cfg FitConfig, rng *rand.Rand) runResult {
	centroids := seedPlusPlus(points, cfg.K, rng)
	labels := make([]int, len(points))
	reseeds := 0

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		for i, p := range points {
			labels[i] = nearestCentroid(p, centroids)
		}

		next, counts := recompute(points, labels, cfg.K)
		for label, n := range counts {
			if n > 0 {
				continue
			}
			if reseeds >= maxReseedAttempts {
				return runResult{failed: true}
			}
			reseeds++
			next[label] = farthestPoint(points, next, label)
		}

		movement := 0.0
		for j := range centroids {
			if d := euclidean(centroids[j], next[j]); d > movement {
				movement = d
			}
		}
		centroids = next
		if movement < cfg.Tolerance {
			break
		}
	}

	for i, p := range points {
		labels[i] = nearestCentroid(p, centroids)
	}

	inertia := 0.0
	for i, p := range points {
		d := euclidean(p, centroids[labels[i]])
		inertia += d * d
	}

	return runResult{labels: labels, centroids: centroids, inertia: inertia}
}

// seedPlusPlus picks k initial centroids: the first uniformly at random,
// each subsequent one with probability proportional to its squared
// distance to the nearest already-chosen centroid.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, cloneVector(points[rng.Intn(len(points))]))

	dist2 := make([]float64, len(points))
	for len(centroids) < k {
		total := 0.0
		for i, p := range points {
			d := math.Inf(1)
			for _, c := range centroids {
				if cd := euclidean(p, c); cd < d {
					d = cd
				}
			}
			dist2[i] = d * d
			total += dist2[i]
		}

		if total == 0 {
			// All remaining points coincide with a centroid.
			centroids = append(centroids, cloneVector(points[rng.Intn(len(points))]))
			continue
		}

		target := rng.Float64() * total
		cumulative := 0.0
		chosen := len(points) - 1
		for i, d := range dist2 {
			cumulative += d
			if cumulative >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, cloneVector(points[chosen]))
	}
	return centroids
}

// nearestCentroid returns the lowest-index centroid at minimal distance.
func nearestCentroid(p []float64, centroids [][]float64) int {
	bestLabel := 0
	bestDist := math.Inf(1)
	for j, c := range centroids {
		if d := euclidean(p, c); d < bestDist {
			bestDist = d
			bestLabel = j
		}
	}
	return bestLabel
}

// recompute returns the mean of each cluster's assigned points and the
// per-cluster point counts.
func recompute(points [][]float64, labels []int, k int) ([][]float64, []int) {
	dim := len(points[0])
	next := make([][]float64, k)
	counts := make([]int, k)
	for j := range next {
		next[j] = make([]float64, dim)
	}
	for i, p := range points {
		counts[labels[i]]++
		for d, v := range p {
			next[labels[i]][d] += v
		}
	}
	for j := range next {
		if counts[j] == 0 {
			continue
		}
		for d := range next[j] {
			next[j][d] /= float64(counts[j])
		}
	}
	return next, counts
}

// farthestPoint reseeds a degenerate cluster at the point farthest from
// its nearest surviving centroid.
func farthestPoint(points [][]float64, centroids [][]float64, degenerate int) []float64 {
	bestDist := -1.0
	var best []float64
	for _, p := range points {
		nearest := math.Inf(1)
		for j, c := range centroids {
			if j == degenerate {
				continue
			}
			if d := euclidean(p, c); d < nearest {
				nearest = d
			}
		}
		if nearest > bestDist {
			bestDist = nearest
			best = p
		}
	}
	return cloneVector(best)
}

func cloneVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
