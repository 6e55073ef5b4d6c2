package multivar

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepflow/core/parallel"
	"github.com/YuminosukeSato/prepflow/pkg/errors"
	"github.com/YuminosukeSato/prepflow/preprocessing"
	"github.com/YuminosukeSato/prepflow/table"
)

const (
	kmeansSeed     = 42
	kmeansRestarts = 10
	kmeansMaxIter  = 300
	kmeansTol      = 1e-6
)

// KMeansResult holds the clustering of the complete numeric rows of a
// table. Centroids are reported in the original feature space even when
// clustering ran on standardized values.
type KMeansResult struct {
	K          int         `json:"k"`
	Columns    []string    `json:"columns"`
	RowsUsed   int         `json:"rows_used"`
	Labels     []int       `json:"labels"`
	Sizes      []int       `json:"sizes"`
	Centroids  [][]float64 `json:"centroids"`
	Inertia    float64     `json:"inertia"`
	Silhouette float64     `json:"silhouette"`
}

// KMeans clusters the complete numeric rows of t into k groups with
// k-means++ seeding and multiple restarts, keeping the lowest-inertia
// solution.
func KMeans(t *table.Table, k int, scale bool) (*KMeansResult, error) {
	X, names, err := numericMatrix(t)
	if err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if k < 2 || k > n {
		return nil, errors.NewValidationError("k", "must be at least 2 and at most the row count", k)
	}

	var scaler *preprocessing.StandardScaler
	work := X
	if scale {
		scaler = preprocessing.NewStandardScaler()
		scaled, err := scaler.FitTransform(X)
		if err != nil {
			return nil, err
		}
		work = mat.DenseCopyOf(scaled)
	}

	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = mat.Row(nil, i, work)
	}

	rnd := rand.New(rand.NewSource(kmeansSeed))
	bestInertia := math.Inf(1)
	var bestLabels []int
	var bestCentroids [][]float64
	for restart := 0; restart < kmeansRestarts; restart++ {
		labels, centroids, inertia := lloyd(rows, k, rnd)
		if inertia < bestInertia {
			bestInertia = inertia
			bestLabels = labels
			bestCentroids = centroids
		}
	}

	sizes := make([]int, k)
	for _, l := range bestLabels {
		sizes[l]++
	}

	centroids := bestCentroids
	if scale {
		cm := mat.NewDense(k, p, nil)
		for i, c := range bestCentroids {
			cm.SetRow(i, c)
		}
		orig, err := scaler.InverseTransform(cm)
		if err != nil {
			return nil, err
		}
		centroids = make([][]float64, k)
		for i := 0; i < k; i++ {
			centroids[i] = make([]float64, p)
			for j := 0; j < p; j++ {
				centroids[i][j] = orig.At(i, j)
			}
		}
	}

	return &KMeansResult{
		K:          k,
		Columns:    names,
		RowsUsed:   n,
		Labels:     bestLabels,
		Sizes:      sizes,
		Centroids:  centroids,
		Inertia:    bestInertia,
		Silhouette: silhouette(rows, bestLabels, k),
	}, nil
}

// lloyd runs one k-means++ seeded Lloyd iteration to convergence.
func lloyd(rows [][]float64, k int, rnd *rand.Rand) ([]int, [][]float64, float64) {
	centroids := seedPlusPlus(rows, k, rnd)
	n := len(rows)
	labels := make([]int, n)
	for iter := 0; iter < kmeansMaxIter; iter++ {
		for i, row := range rows {
			labels[i] = nearest(row, centroids)
		}
		moved := 0.0
		for c := range centroids {
			next := meanOf(rows, labels, c)
			if next == nil {
				continue // empty cluster keeps its centroid
			}
			moved += squaredDistance(centroids[c], next)
			centroids[c] = next
		}
		if moved < kmeansTol {
			break
		}
	}
	inertia := 0.0
	for i, row := range rows {
		inertia += squaredDistance(row, centroids[labels[i]])
	}
	return labels, centroids, inertia
}

// seedPlusPlus picks initial centroids with probability proportional to
// squared distance from the nearest chosen centroid.
func seedPlusPlus(rows [][]float64, k int, rnd *rand.Rand) [][]float64 {
	n := len(rows)
	centroids := make([][]float64, 0, k)
	first := append([]float64(nil), rows[rnd.Intn(n)]...)
	centroids = append(centroids, first)
	dist := make([]float64, n)
	for len(centroids) < k {
		total := 0.0
		for i, row := range rows {
			dist[i] = squaredDistance(row, centroids[nearest(row, centroids)])
			total += dist[i]
		}
		if total == 0 {
			centroids = append(centroids, append([]float64(nil), rows[rnd.Intn(n)]...))
			continue
		}
		target := rnd.Float64() * total
		running := 0.0
		pick := n - 1
		for i, d := range dist {
			running += d
			if running >= target {
				pick = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), rows[pick]...))
	}
	return centroids
}

func nearest(row []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := squaredDistance(row, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func meanOf(rows [][]float64, labels []int, cluster int) []float64 {
	var sum []float64
	count := 0
	for i, row := range rows {
		if labels[i] != cluster {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(row))
		}
		for j, v := range row {
			sum[j] += v
		}
		count++
	}
	if count == 0 {
		return nil
	}
	for j := range sum {
		sum[j] /= float64(count)
	}
	return sum
}

func squaredDistance(a, b []float64) float64 {
	d := 0.0
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}

// silhouette is the mean silhouette coefficient over all rows, in
// [-1, 1]. Rows in singleton clusters score zero.
func silhouette(rows [][]float64, labels []int, k int) float64 {
	n := len(rows)
	if k < 2 || n < 2 {
		return 0
	}
	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}

	scores := make([]float64, n)
	parallel.ParallelizeWithThreshold(n, 64, func(start, end int) {
		for i := start; i < end; i++ {
			row := rows[i]
			sumByCluster := make([]float64, k)
			for j, other := range rows {
				if i == j {
					continue
				}
				sumByCluster[labels[j]] += math.Sqrt(squaredDistance(row, other))
			}
			own := labels[i]
			if sizes[own] < 2 {
				continue // silhouette of a singleton is defined as zero
			}
			a := sumByCluster[own] / float64(sizes[own]-1)
			b := math.Inf(1)
			for c := 0; c < k; c++ {
				if c == own || sizes[c] == 0 {
					continue
				}
				if mean := sumByCluster[c] / float64(sizes[c]); mean < b {
					b = mean
				}
			}
			if math.IsInf(b, 1) {
				continue
			}
			if denom := math.Max(a, b); denom > 0 {
				scores[i] = (b - a) / denom
			}
		}
	})

	total := 0.0
	for _, s := range scores {
		total += s
	}
	return total / float64(n)
}
