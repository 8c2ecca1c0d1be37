package space

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/internal/kmeans"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allMetrics() []distance.Metric {
	return []distance.Metric{
		distance.MetricAngular,
		distance.MetricEuclidean,
		distance.MetricManhattan,
		distance.MetricDot,
		distance.MetricHamming,
	}
}

func TestNew(t *testing.T) {
	for _, m := range allMetrics() {
		s, err := New(m, 4)
		require.NoError(t, err)
		assert.Equal(t, m, s.Metric())
		assert.Equal(t, 4, s.Dim())
	}

	_, err := New(distance.Metric(77), 4)
	assert.ErrorIs(t, err, ErrUnsupportedMetric)
}

func TestDistanceOrdering(t *testing.T) {
	q := []float32{1, 1}
	near := []float32{1, 0.9}
	far := []float32{-1, 0}

	for _, m := range []distance.Metric{distance.MetricAngular, distance.MetricEuclidean, distance.MetricManhattan} {
		s, err := New(m, 2)
		require.NoError(t, err)
		assert.Less(t, s.Distance(q, near), s.Distance(q, far), m.String())
	}

	s, err := New(distance.MetricDot, 2)
	require.NoError(t, err)
	big := []float32{3, 3}
	small := []float32{2, 2}
	assert.Less(t, s.Distance(q, big), s.Distance(q, small))
	assert.InDelta(t, 6, s.Normalize(s.Distance(q, big)), 1e-6)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		metric distance.Metric
		a, b   []float32
		want   float32
	}{
		{distance.MetricEuclidean, []float32{0, 0}, []float32{3, 4}, 5},
		{distance.MetricManhattan, []float32{0, 0}, []float32{3, 4}, 7},
		{distance.MetricAngular, []float32{1, 0}, []float32{0, 1}, float32(math.Sqrt2)},
		{distance.MetricDot, []float32{2, 2}, []float32{3, 2}, 10},
		{distance.MetricHamming, []float32{1, 0, 1}, []float32{0, 0, 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.metric.String(), func(t *testing.T) {
			s, err := New(tt.metric, len(tt.a))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, s.Normalize(s.Distance(tt.a, tt.b)), 1e-5)
		})
	}
}

func TestSplitSeparatesClusters(t *testing.T) {
	pts := kmeans.Slice{
		{0, 0.1}, {0.1, 0}, {0.2, 0.2}, {0.1, 0.1},
		{10, 10.1}, {10.1, 10}, {10.2, 10.2}, {10, 10},
	}

	for _, m := range []distance.Metric{distance.MetricEuclidean, distance.MetricManhattan} {
		t.Run(m.String(), func(t *testing.T) {
			s, err := New(m, 2)
			require.NoError(t, err)
			rng := rand.New(rand.NewPCG(42, 0))

			p := s.Split(pts, rng)
			require.Len(t, p.Normal, s.PlaneWidth())

			left := s.Side(p, pts[0], rng)
			for i := 1; i < 4; i++ {
				assert.Equal(t, left, s.Side(p, pts[i], rng))
			}
			for i := 4; i < 8; i++ {
				assert.NotEqual(t, left, s.Side(p, pts[i], rng))
			}
		})
	}
}

func TestAngularSplit(t *testing.T) {
	pts := kmeans.Slice{{1, 0.01}, {2, 0.02}, {3, -0.01}, {0.01, 1}, {-0.02, 2}, {0.01, 5}}
	s, err := New(distance.MetricAngular, 2)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(9, 9))

	p := s.Split(pts, rng)
	assert.InDelta(t, 1, distance.Norm(p.Normal), 1e-4)
	assert.Zero(t, p.Bias)
	assert.NotEqual(t, s.Side(p, pts[0], rng), s.Side(p, pts[3], rng))
}

func TestDotPrepareLiftsToSphere(t *testing.T) {
	s, err := New(distance.MetricDot, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, s.PlaneWidth())

	vecs := [][]float32{{2, 2}, {3, 2}, {3, 3}}
	lifted := s.Prepare(vecs)
	require.Len(t, lifted, 3)

	want := distance.Norm(vecs[2])
	for i, v := range lifted {
		require.Len(t, v, 3)
		assert.Equal(t, vecs[i], v[:2])
		assert.InDelta(t, want, distance.Norm(v), 1e-5)
	}
	assert.InDelta(t, 0, lifted[2][2], 1e-6)

	p := Plane{Normal: []float32{1, 0, 1}}
	assert.InDelta(t, 2, s.Margin(p, []float32{2, 5}), 1e-6)
	assert.InDelta(t, 2+lifted[0][2], s.Margin(p, lifted[0]), 1e-6)
}

func TestHammingSplit(t *testing.T) {
	s, err := New(distance.MetricHamming, 3)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(1, 1))

	pts := kmeans.Slice{{1, 1, 0}, {1, 0, 0}, {1, 1, 0}}
	p := s.Split(pts, rng)
	assert.Equal(t, int32(1), p.Axis)
	assert.True(t, s.Side(p, pts[0], rng))
	assert.False(t, s.Side(p, pts[1], rng))

	same := kmeans.Slice{{1, 0, 1}, {1, 0, 1}}
	assert.Equal(t, int32(-1), s.Split(same, rng).Axis)
}

func TestPriorities(t *testing.T) {
	s, err := New(distance.MetricEuclidean, 2)
	require.NoError(t, err)
	root := s.InitialPriority()
	assert.True(t, math.IsInf(float64(root), 1))

	// query on the right side at distance 2 from the plane
	assert.Equal(t, float32(2), s.Priority(root, 2, true))
	assert.Equal(t, float32(-2), s.Priority(root, 2, false))
	assert.Equal(t, float32(1), s.Priority(1, 2, true))

	h, err := New(distance.MetricHamming, 8)
	require.NoError(t, err)
	hr := h.InitialPriority()
	assert.Equal(t, float32(8), hr)
	assert.Equal(t, float32(8), h.Priority(hr, 1, true))
	assert.Equal(t, float32(7), h.Priority(hr, 1, false))
	assert.Equal(t, h.Priority(hr, 0.5, true), h.Priority(hr, 0.5, false))
}

func TestRandomPlane(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	for _, m := range allMetrics() {
		s, err := New(m, 2)
		require.NoError(t, err)
		p := RandomPlane()

		rights := 0
		for range 200 {
			if s.Side(p, []float32{1, 1}, rng) {
				rights++
			}
		}
		assert.Greater(t, rights, 50, m.String())
		assert.Less(t, rights, 150, m.String())
		assert.Equal(t, s.Priority(1, s.Margin(p, []float32{1, 1}), true),
			s.Priority(1, s.Margin(p, []float32{1, 1}), false), m.String())
	}
}
