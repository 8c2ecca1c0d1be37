package distance

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/blas/gonum"
)

var blas gonum.Implementation

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return blas.Sdot(len(a), a, 1, b, 1)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	return blas.Snrm2(len(v), v, 1)
}

// ScaleInPlace multiplies every component of v by alpha.
func ScaleInPlace(v []float32, alpha float32) {
	if len(v) == 0 {
		return
	}
	blas.Sscal(len(v), alpha, v, 1)
}

// AxpyInPlace computes y += alpha*x.
func AxpyInPlace(alpha float32, x, y []float32) {
	if len(x) == 0 {
		return
	}
	blas.Saxpy(len(x), alpha, x, 1, y, 1)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// L1 calculates the Manhattan distance between two vectors.
func L1(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += float32(math.Abs(float64(a[i] - b[i])))
	}
	return sum
}

// Hamming counts the components whose binarized values differ.
// A component is set when it is non-zero.
func Hamming(a, b []float32) float32 {
	var n float32
	for i := range a {
		if (a[i] != 0) != (b[i] != 0) {
			n++
		}
	}
	return n
}

// CosineDistance returns 2 - 2·cos(a, b), clamped at zero.
// Zero vectors are at distance 2 from everything.
func CosineDistance(a, b []float32) float32 {
	pp := Dot(a, a)
	qq := Dot(b, b)
	pq := Dot(a, b)
	ppqq := pp * qq
	if ppqq <= 0 {
		return 2
	}
	d := 2 - 2*pq/float32(math.Sqrt(float64(ppqq)))
	return max(d, 0)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	n := Norm(v)
	if n == 0 {
		return false
	}
	ScaleInPlace(v, 1/n)
	return true
}

// Metric represents the distance metric used for vector comparison.
type Metric uint8

const (
	MetricAngular Metric = iota
	MetricEuclidean
	MetricManhattan
	MetricDot
	MetricHamming
)

func (m Metric) String() string {
	switch m {
	case MetricAngular:
		return "angular"
	case MetricEuclidean:
		return "euclidean"
	case MetricManhattan:
		return "manhattan"
	case MetricDot:
		return "dot"
	case MetricHamming:
		return "hamming"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	return m <= MetricHamming
}

// ParseMetric resolves a metric by name. Matching is case-insensitive.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "angular", "cosine":
		return MetricAngular, nil
	case "euclidean", "l2":
		return MetricEuclidean, nil
	case "manhattan", "l1":
		return MetricManhattan, nil
	case "dot", "inner":
		return MetricDot, nil
	case "hamming":
		return MetricHamming, nil
	default:
		return 0, fmt.Errorf("distance: unknown metric %q", name)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32
