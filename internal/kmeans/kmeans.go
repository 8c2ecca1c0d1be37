package kmeans

import (
	"slices"

	"github.com/hupe1980/vecforest/distance"
)

// DefaultIterations is the number of refinement steps run by TwoMeans.
const DefaultIterations = 200

// Source is the random source consumed by TwoMeans.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

// Points gives indexed access to the vectors being clustered.
type Points interface {
	Len() int
	At(i int) []float32
}

// Slice adapts a [][]float32 to Points.
type Slice [][]float32

func (s Slice) Len() int            { return len(s) }
func (s Slice) At(i int) []float32 { return s[i] }

// TwoMeans picks two distinct seed points and refines them by sequential
// (online) 2-means over iterations random draws. When cosine is set the
// centroids are kept on the unit sphere and draws are normalized before
// being folded in. The returned centroids are fresh slices.
//
// Points must hold at least two vectors.
func TwoMeans(pts Points, rng Source, dist distance.Func, cosine bool, iterations int) (p, q []float32) {
	n := pts.Len()
	i := rng.IntN(n)
	j := rng.IntN(n - 1)
	if j >= i {
		j++
	}

	p = slices.Clone(pts.At(i))
	q = slices.Clone(pts.At(j))
	if cosine {
		distance.NormalizeL2InPlace(p)
		distance.NormalizeL2InPlace(q)
	}

	ic, jc := float32(1), float32(1)
	for range iterations {
		v := pts.At(rng.IntN(n))
		di := ic * dist(p, v)
		dj := jc * dist(q, v)

		norm := float32(1)
		if cosine {
			norm = distance.Norm(v)
			if norm <= 0 {
				continue
			}
		}

		switch {
		case di < dj:
			fold(p, v, ic, norm)
			ic++
		case dj < di:
			fold(q, v, jc, norm)
			jc++
		}
	}

	return p, q
}

// fold updates the running mean c (weighted by count) with v/norm.
func fold(c, v []float32, count, norm float32) {
	inv := 1 / (count + 1)
	for z := range c {
		c[z] = (c[z]*count + v[z]/norm) * inv
	}
}
