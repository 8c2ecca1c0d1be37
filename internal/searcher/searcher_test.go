package searcher

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/internal/forest"
	"github.com/hupe1980/vecforest/internal/space"
	"github.com/hupe1980/vecforest/internal/vectorstore"
	"github.com/hupe1980/vecforest/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	sp    space.Space
	store *vectorstore.Store
	f     *forest.Forest
	vecs  [][]float32
	ids   []uint32
}

func newFixture(t *testing.T, m distance.Metric, n, dim, trees int) *fixture {
	t.Helper()
	rng := testutil.NewRNG(42)
	vecs := rng.ClusteredVectors(n, dim, 10, 0.05)
	tags := rng.TagSets(n, 8, 2)

	st := vectorstore.New(dim, 8)
	ids := make([]uint32, n)
	for i, v := range vecs {
		ids[i] = uint32(i*2 + 1)
		require.NoError(t, st.Add(ids[i], v, tags[i]))
	}

	sp, err := space.New(m, dim)
	require.NoError(t, err)
	f, err := forest.Build(context.Background(), sp, st.Vectors(), st.IDs(), forest.Config{Trees: trees, LeafSize: 2 * dim, Seed: 1})
	require.NoError(t, err)

	return &fixture{sp: sp, store: st, f: f, vecs: vecs, ids: ids}
}

func ids(c []Candidate) []uint32 {
	out := make([]uint32, len(c))
	for i := range c {
		out[i] = c[i].ID
	}
	return out
}

func TestSearch_FullBudgetIsExact(t *testing.T) {
	for _, m := range []distance.Metric{distance.MetricAngular, distance.MetricEuclidean, distance.MetricManhattan, distance.MetricDot} {
		t.Run(m.String(), func(t *testing.T) {
			fx := newFixture(t, m, 400, 8, 5)
			s := Get(fx.store.Count())
			defer Put(s)

			for _, qi := range []int{0, 17, 399} {
				q := fx.vecs[qi]
				got, stats := s.Search(fx.f, fx.sp, fx.store, Request{Query: q, K: 10, Budget: fx.store.Count()})
				want := testutil.ExactTopK(q, fx.ids, fx.vecs, 10, fx.sp.Distance, nil)
				assert.Equal(t, testutil.IDs(want), ids(got))
				assert.Equal(t, fx.store.Count(), stats.Scored)
			}
		})
	}
}

func TestSearch_Recall(t *testing.T) {
	fx := newFixture(t, distance.MetricEuclidean, 2000, 16, 10)
	rng := testutil.NewRNG(5)

	var total float64
	const queries = 20
	for range queries {
		q := fx.vecs[rng.Intn(len(fx.vecs))]
		s := Get(fx.store.Count())
		got, _ := s.Search(fx.f, fx.sp, fx.store, Request{Query: q, K: 10, Budget: 10 * 10 * 4})
		Put(s)

		want := testutil.ExactTopK(q, fx.ids, fx.vecs, 10, fx.sp.Distance, nil)
		total += testutil.ComputeRecall(want, ids(got))
	}
	assert.Greater(t, total/queries, 0.8)
}

func TestSearch_Allowed(t *testing.T) {
	fx := newFixture(t, distance.MetricEuclidean, 300, 4, 4)

	allowed := roaring.New()
	for i, id := range fx.ids {
		if i%7 == 0 {
			allowed.Add(id)
		}
	}

	s := Get(fx.store.Count())
	defer Put(s)
	q := fx.vecs[3]
	got, stats := s.Search(fx.f, fx.sp, fx.store, Request{Query: q, K: 5, Budget: 1 << 30, Allowed: allowed})
	require.Len(t, got, 5)
	for _, c := range got {
		assert.True(t, allowed.Contains(c.ID))
	}
	assert.True(t, stats.Exhausted)
	assert.Positive(t, stats.Rejected)

	want := testutil.ExactTopK(q, fx.ids, fx.vecs, 5, fx.sp.Distance, func(i int) bool { return i%7 == 0 })
	assert.Equal(t, testutil.IDs(want), ids(got))
}

func TestSearch_EmptyAllowed(t *testing.T) {
	fx := newFixture(t, distance.MetricAngular, 100, 4, 2)
	s := Get(fx.store.Count())
	defer Put(s)

	got, stats := s.Search(fx.f, fx.sp, fx.store, Request{Query: fx.vecs[0], K: 5, Budget: 50, Allowed: roaring.New()})
	assert.Empty(t, got)
	assert.True(t, stats.Exhausted)
}

func TestSearch_ZeroK(t *testing.T) {
	fx := newFixture(t, distance.MetricAngular, 50, 4, 2)
	s := Get(fx.store.Count())
	defer Put(s)

	got, _ := s.Search(fx.f, fx.sp, fx.store, Request{Query: fx.vecs[0], K: 0, Budget: 50})
	assert.Empty(t, got)
}

func TestScan(t *testing.T) {
	fx := newFixture(t, distance.MetricManhattan, 200, 4, 2)
	allowed := roaring.BitmapOf(fx.ids[5], fx.ids[50], fx.ids[150], 999999)

	s := Get(fx.store.Count())
	defer Put(s)
	q := fx.vecs[50]
	got, stats := s.Scan(fx.sp, fx.store, q, 2, allowed)
	require.Len(t, got, 2)
	assert.Equal(t, fx.ids[50], got[0].ID)
	assert.Equal(t, 3, stats.Scored)
}

func TestGet_ResizesSeen(t *testing.T) {
	s := Get(10)
	s.Seen.Set(3)
	Put(s)

	s = Get(5000)
	defer Put(s)
	assert.GreaterOrEqual(t, s.Seen.Len(), uint(5000))
	assert.False(t, s.Seen.Test(3))
}
