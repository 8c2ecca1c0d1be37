// Package space implements the per-metric capability used by the forest:
// ranking distance, hyperplane generation, margins and queue priorities.
//
// Every Space ranks with "smaller is closer". Metrics whose natural
// ordering is the opposite (dot product) are negated internally and
// converted back by Normalize.
package space

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/internal/kmeans"
)

// ErrUnsupportedMetric is returned by New for unknown metrics.
var ErrUnsupportedMetric = errors.New("space: unsupported metric")

// Random is the random source consumed while splitting.
// *rand.Rand from math/rand/v2 satisfies it.
type Random interface {
	IntN(n int) int
}

// Plane is a splitting rule stored on internal forest nodes.
// Axis is only meaningful for Hamming; the other spaces use Normal and Bias.
type Plane struct {
	Normal []float32
	Bias   float32
	Axis   int32
}

// RandomPlane returns the plane that sends every point to a random side.
// It is the last resort when Split keeps producing lopsided partitions.
func RandomPlane() Plane {
	return Plane{Axis: -1}
}

// Space is the capability interface implemented once per metric.
type Space interface {
	// Metric reports the metric this space implements.
	Metric() distance.Metric

	// Dim is the item dimension.
	Dim() int

	// PlaneWidth is len(Plane.Normal) for planes produced by Split.
	PlaneWidth() int

	// Distance is the ranking distance between two item vectors.
	Distance(a, b []float32) float32

	// Normalize converts a ranking distance into the value reported to callers.
	Normalize(d float32) float32

	// Prepare returns the vectors the forest splits on, indexed like vectors.
	// Implementations may return the input unchanged.
	Prepare(vectors [][]float32) [][]float32

	// Split derives a plane separating pts into two roughly balanced halves.
	Split(pts kmeans.Points, rng Random) Plane

	// Margin is the signed position of v relative to p.
	// v is either a prepared vector or a raw query vector.
	Margin(p Plane, v []float32) float32

	// Side reports whether v belongs to the right child of p.
	// Points on the plane go to a random side.
	Side(p Plane, v []float32, rng Random) bool

	// InitialPriority is the queue priority of a root node.
	InitialPriority() float32

	// Priority is the queue priority of a child given the parent's priority
	// and the query margin at the parent.
	Priority(parent, margin float32, right bool) float32
}

// New returns the space for metric m over dim-dimensional vectors.
func New(m distance.Metric, dim int) (Space, error) {
	switch m {
	case distance.MetricAngular:
		return &angular{dim: dim}, nil
	case distance.MetricEuclidean:
		return &minkowski{dim: dim, metric: m, dist: distance.SquaredL2, sqrt: true}, nil
	case distance.MetricManhattan:
		return &minkowski{dim: dim, metric: m, dist: distance.L1}, nil
	case distance.MetricDot:
		return &dot{dim: dim}, nil
	case distance.MetricHamming:
		return &hamming{dim: dim}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMetric, m)
	}
}

var inf = float32(math.Inf(1))

// hyperplanePriority is the margin heuristic shared by the real-valued
// spaces: the near side keeps the parent priority, the far side is capped
// by the (negative) distance to the plane.
func hyperplanePriority(parent, margin float32, right bool) float32 {
	if !right {
		margin = -margin
	}
	return min(parent, margin)
}

func flip(margin float32, rng Random) bool {
	if margin != 0 {
		return margin > 0
	}
	return rng.IntN(2) == 1
}

func sqrt32(d float32) float32 {
	return float32(math.Sqrt(float64(max(d, 0))))
}

// difference returns normalize(p - q). The result is zero when p == q.
func difference(p, q []float32) []float32 {
	n := make([]float32, len(p))
	copy(n, p)
	distance.AxpyInPlace(-1, q, n)
	distance.NormalizeL2InPlace(n)
	return n
}

type angular struct {
	dim int
}

func (s *angular) Metric() distance.Metric { return distance.MetricAngular }
func (s *angular) Dim() int                { return s.dim }
func (s *angular) PlaneWidth() int         { return s.dim }

func (s *angular) Distance(a, b []float32) float32 { return distance.CosineDistance(a, b) }
func (s *angular) Normalize(d float32) float32     { return sqrt32(d) }

func (s *angular) Prepare(vectors [][]float32) [][]float32 { return vectors }

func (s *angular) Split(pts kmeans.Points, rng Random) Plane {
	p, q := kmeans.TwoMeans(pts, rng, distance.CosineDistance, true, kmeans.DefaultIterations)
	return Plane{Normal: difference(p, q)}
}

func (s *angular) Margin(p Plane, v []float32) float32 {
	return distance.Dot(p.Normal, v[:s.dim])
}

func (s *angular) Side(p Plane, v []float32, rng Random) bool {
	return flip(s.Margin(p, v), rng)
}

func (s *angular) InitialPriority() float32 { return inf }

func (s *angular) Priority(parent, margin float32, right bool) float32 {
	return hyperplanePriority(parent, margin, right)
}

// minkowski covers the euclidean and manhattan spaces, which split the
// same way and only differ in the distance kernel.
type minkowski struct {
	dim    int
	metric distance.Metric
	dist   distance.Func
	sqrt   bool
}

func (s *minkowski) Metric() distance.Metric { return s.metric }
func (s *minkowski) Dim() int                { return s.dim }
func (s *minkowski) PlaneWidth() int         { return s.dim }

func (s *minkowski) Distance(a, b []float32) float32 { return s.dist(a, b) }

func (s *minkowski) Normalize(d float32) float32 {
	if s.sqrt {
		return sqrt32(d)
	}
	return max(d, 0)
}

func (s *minkowski) Prepare(vectors [][]float32) [][]float32 { return vectors }

func (s *minkowski) Split(pts kmeans.Points, rng Random) Plane {
	p, q := kmeans.TwoMeans(pts, rng, s.dist, false, kmeans.DefaultIterations)
	n := difference(p, q)

	var bias float32
	for z := range n {
		bias -= n[z] * (p[z] + q[z]) / 2
	}
	return Plane{Normal: n, Bias: bias}
}

func (s *minkowski) Margin(p Plane, v []float32) float32 {
	return p.Bias + distance.Dot(p.Normal, v[:s.dim])
}

func (s *minkowski) Side(p Plane, v []float32, rng Random) bool {
	return flip(s.Margin(p, v), rng)
}

func (s *minkowski) InitialPriority() float32 { return inf }

func (s *minkowski) Priority(parent, margin float32, right bool) float32 {
	return hyperplanePriority(parent, margin, right)
}

// dot reduces maximum inner product search to angular search by lifting
// every item onto a sphere with one extra component:
// x' = [x, sqrt(M² - |x|²)] where M is the largest item norm.
// Queries are lifted with a zero component, so the margin ignores it.
type dot struct {
	dim int
}

func (s *dot) Metric() distance.Metric { return distance.MetricDot }
func (s *dot) Dim() int                { return s.dim }
func (s *dot) PlaneWidth() int         { return s.dim + 1 }

func (s *dot) Distance(a, b []float32) float32 { return -distance.Dot(a[:s.dim], b[:s.dim]) }
func (s *dot) Normalize(d float32) float32     { return -d }

func (s *dot) Prepare(vectors [][]float32) [][]float32 {
	norms := make([]float32, len(vectors))
	var maxNorm float32
	for i, v := range vectors {
		norms[i] = distance.Norm(v)
		maxNorm = max(maxNorm, norms[i])
	}

	out := make([][]float32, len(vectors))
	buf := make([]float32, len(vectors)*(s.dim+1))
	for i, v := range vectors {
		lifted := buf[i*(s.dim+1) : (i+1)*(s.dim+1)]
		copy(lifted, v)
		lifted[s.dim] = sqrt32(maxNorm*maxNorm - norms[i]*norms[i])
		out[i] = lifted
	}
	return out
}

func (s *dot) Split(pts kmeans.Points, rng Random) Plane {
	p, q := kmeans.TwoMeans(pts, rng, distance.CosineDistance, true, kmeans.DefaultIterations)
	return Plane{Normal: difference(p, q)}
}

func (s *dot) Margin(p Plane, v []float32) float32 {
	if len(p.Normal) == 0 {
		return 0
	}
	m := distance.Dot(p.Normal[:s.dim], v[:s.dim])
	if len(v) > s.dim {
		m += p.Normal[s.dim] * v[s.dim]
	}
	return m
}

func (s *dot) Side(p Plane, v []float32, rng Random) bool {
	return flip(s.Margin(p, v), rng)
}

func (s *dot) InitialPriority() float32 { return inf }

func (s *dot) Priority(parent, margin float32, right bool) float32 {
	return hyperplanePriority(parent, margin, right)
}

// hamming splits on a single component: items whose component is set go
// right. Priorities count the disagreements along the path.
type hamming struct {
	dim int
}

const hammingSplitAttempts = 20

func (s *hamming) Metric() distance.Metric { return distance.MetricHamming }
func (s *hamming) Dim() int                { return s.dim }
func (s *hamming) PlaneWidth() int         { return 0 }

func (s *hamming) Distance(a, b []float32) float32 { return distance.Hamming(a, b) }
func (s *hamming) Normalize(d float32) float32     { return d }

func (s *hamming) Prepare(vectors [][]float32) [][]float32 { return vectors }

func (s *hamming) Split(pts kmeans.Points, rng Random) Plane {
	n := pts.Len()
	splits := func(axis int) bool {
		set := 0
		for i := range n {
			if pts.At(i)[axis] != 0 {
				set++
			}
		}
		return set > 0 && set < n
	}

	for range hammingSplitAttempts {
		axis := rng.IntN(s.dim)
		if splits(axis) {
			return Plane{Axis: int32(axis)}
		}
	}
	for axis := range s.dim {
		if splits(axis) {
			return Plane{Axis: int32(axis)}
		}
	}
	return Plane{Axis: -1}
}

// Margin is 1 when the tested component is set, 0 when clear and 0.5 for
// the random plane.
func (s *hamming) Margin(p Plane, v []float32) float32 {
	if p.Axis < 0 {
		return 0.5
	}
	if v[p.Axis] != 0 {
		return 1
	}
	return 0
}

func (s *hamming) Side(p Plane, v []float32, rng Random) bool {
	switch m := s.Margin(p, v); {
	case m > 0.5:
		return true
	case m < 0.5:
		return false
	default:
		return rng.IntN(2) == 1
	}
}

func (s *hamming) InitialPriority() float32 { return float32(s.dim) }

func (s *hamming) Priority(parent, margin float32, right bool) float32 {
	child := float32(0)
	if right {
		child = 1
	}
	return parent - float32(math.Abs(float64(margin-child)))
}
