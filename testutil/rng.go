package testutil

import (
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/vecforest/distance"
)

// RNG is a seeded, goroutine-safe source for synthetic datasets. The same
// seed always yields the same vectors.
type RNG struct {
	mu   sync.Mutex
	src  *rand.Rand
	seed int64
}

func NewRNG(seed int64) *RNG {
	return &RNG{src: rand.New(rand.NewSource(seed)), seed: seed}
}

func (r *RNG) Seed() int64 { return r.seed }

// Reset rewinds r to its seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.src.Seed(r.seed)
}

func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Intn(n)
}

func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float32()
}

// matrix allocates num rows of dim floats on one backing array and lets
// fill populate each row under the lock.
func (r *RNG) matrix(num, dim int, fill func(row int, vec []float32)) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	backing := make([]float32, num*dim)
	rows := make([][]float32, num)
	for i := range rows {
		rows[i] = backing[i*dim : (i+1)*dim : (i+1)*dim]
		fill(i, rows[i])
	}
	return rows
}

// UniformRangeVectors draws every component from [-1, 1).
func (r *RNG) UniformRangeVectors(num, dim int) [][]float32 {
	return r.matrix(num, dim, func(_ int, vec []float32) {
		for j := range vec {
			vec[j] = 2*r.src.Float32() - 1
		}
	})
}

// BinaryVectors draws every component from {0, 1}.
func (r *RNG) BinaryVectors(num, dim int) [][]float32 {
	return r.matrix(num, dim, func(_ int, vec []float32) {
		for j := range vec {
			vec[j] = float32(r.src.Intn(2))
		}
	})
}

// UnitVectors draws directions uniformly from the unit hypersphere.
func (r *RNG) UnitVectors(num, dim int) [][]float32 {
	return r.matrix(num, dim, func(_ int, vec []float32) {
		for j := range vec {
			vec[j] = float32(r.src.NormFloat64())
		}
		distance.NormalizeL2InPlace(vec)
	})
}

// ClusteredVectors scatters num points with Gaussian noise of the given
// spread around clusters random unit centroids. Point i belongs to
// cluster i%clusters.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	centroids := r.UnitVectors(clusters, dim)
	return r.matrix(num, dim, func(i int, vec []float32) {
		for j, c := range centroids[i%clusters] {
			vec[j] = c + spread*float32(r.src.NormFloat64())
		}
	})
}

// TagSets gives each of num items between one and perItem distinct tags
// below nTags, sorted ascending.
func (r *RNG) TagSets(num, nTags, perItem int) [][]uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	sets := make([][]uint32, num)
	for i := range sets {
		set := make([]uint32, perItem)
		for j := range set {
			set[j] = uint32(r.src.Intn(nTags))
		}
		slices.Sort(set)
		sets[i] = slices.Compact(set)
	}
	return sets
}
