package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniformRangeVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UniformRangeVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.LessOrEqual(t, v[0][0], float32(1.0))
	assert.GreaterOrEqual(t, v[1][0], float32(-1.0))
}

func TestRNG_Reset(t *testing.T) {
	rng := NewRNG(7)
	a := rng.UniformRangeVectors(2, 4)
	rng.Reset()
	b := rng.UniformRangeVectors(2, 4)
	assert.Equal(t, a, b)
	assert.Equal(t, int64(7), rng.Seed())
}

func TestBinaryVectors(t *testing.T) {
	for _, v := range NewRNG(1).BinaryVectors(10, 16) {
		for _, x := range v {
			assert.True(t, x == 0 || x == 1)
		}
	}
}

func TestClusteredVectors(t *testing.T) {
	v := NewRNG(1).ClusteredVectors(30, 8, 3, 0.01)
	require.Len(t, v, 30)
	// same cluster is much closer than another cluster
	d := func(a, b []float32) float32 {
		var s float32
		for i := range a {
			s += (a[i] - b[i]) * (a[i] - b[i])
		}
		return s
	}
	assert.Less(t, d(v[0], v[3]), d(v[0], v[1]))
}

func TestTagSets(t *testing.T) {
	sets := NewRNG(3).TagSets(50, 10, 4)
	require.Len(t, sets, 50)
	for _, s := range sets {
		assert.NotEmpty(t, s)
		assert.LessOrEqual(t, len(s), 4)
		for i := 1; i < len(s); i++ {
			assert.Less(t, s[i-1], s[i])
		}
		for _, tag := range s {
			assert.Less(t, tag, uint32(10))
		}
	}
}

func TestExactTopK(t *testing.T) {
	ids := []uint32{10, 11, 12, 13}
	vecs := [][]float32{{0}, {2}, {-2}, {5}}
	dist := func(a, b []float32) float32 {
		d := a[0] - b[0]
		return d * d
	}

	got := ExactTopK([]float32{0}, ids, vecs, 3, dist, nil)
	// 11 and 12 tie; lower id first
	assert.Equal(t, []uint32{10, 11, 12}, IDs(got))

	odd := ExactTopK([]float32{0}, ids, vecs, 3, dist, func(i int) bool { return ids[i]%2 == 1 })
	assert.Equal(t, []uint32{11, 13}, IDs(odd))
}

func TestComputeRecall(t *testing.T) {
	truth := []SearchResult{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	assert.InDelta(t, 0.5, ComputeRecall(truth, []uint32{1, 3, 9}), 1e-9)
	assert.InDelta(t, 1.0, ComputeRecall(nil, nil), 1e-9)
	assert.InDelta(t, 0.0, ComputeRecall(truth, nil), 1e-9)
}
