package vecforest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/vecforest/internal/searcher"
	"github.com/hupe1980/vecforest/internal/tags"
	"github.com/hupe1980/vecforest/internal/vectorstore"
)

// NNsByItem returns the ids of the k nearest neighbors of a stored item,
// closest first. The item itself is part of the result.
func (idx *Index) NNsByItem(ctx context.Context, id uint32, k int, opts ...SearchOption) ([]uint32, error) {
	return ids(idx.NNsByItemWithDistances(ctx, id, k, opts...))
}

// NNsByVector returns the ids of the k nearest neighbors of vec, closest first.
func (idx *Index) NNsByVector(ctx context.Context, vec []float32, k int, opts ...SearchOption) ([]uint32, error) {
	return ids(idx.NNsByVectorWithDistances(ctx, vec, k, opts...))
}

// NNsByItemAndTags is NNsByItem restricted to items matching tags.
// By default an item matches when it carries any of the tags; WithMatchAll
// requires all of them. No match is an empty result, not an error.
func (idx *Index) NNsByItemAndTags(ctx context.Context, id uint32, tags []uint32, k int, opts ...SearchOption) ([]uint32, error) {
	return ids(idx.NNsByItemAndTagsWithDistances(ctx, id, tags, k, opts...))
}

// NNsByVectorAndTags is NNsByVector restricted to items matching tags.
// See NNsByItemAndTags for the match semantics.
func (idx *Index) NNsByVectorAndTags(ctx context.Context, vec []float32, tags []uint32, k int, opts ...SearchOption) ([]uint32, error) {
	return ids(idx.NNsByVectorAndTagsWithDistances(ctx, vec, tags, k, opts...))
}

// NNsByItemWithDistances is NNsByItem with metric-natural distances.
func (idx *Index) NNsByItemWithDistances(ctx context.Context, id uint32, k int, opts ...SearchOption) ([]Neighbor, error) {
	return idx.search(ctx, query{item: id, byItem: true}, k, opts)
}

// NNsByVectorWithDistances is NNsByVector with metric-natural distances.
func (idx *Index) NNsByVectorWithDistances(ctx context.Context, vec []float32, k int, opts ...SearchOption) ([]Neighbor, error) {
	return idx.search(ctx, query{vec: vec}, k, opts)
}

// NNsByItemAndTagsWithDistances is NNsByItemAndTags with metric-natural distances.
func (idx *Index) NNsByItemAndTagsWithDistances(ctx context.Context, id uint32, tags []uint32, k int, opts ...SearchOption) ([]Neighbor, error) {
	return idx.search(ctx, query{item: id, byItem: true, tags: tags, filtered: true}, k, opts)
}

// NNsByVectorAndTagsWithDistances is NNsByVectorAndTags with metric-natural distances.
func (idx *Index) NNsByVectorAndTagsWithDistances(ctx context.Context, vec []float32, tags []uint32, k int, opts ...SearchOption) ([]Neighbor, error) {
	return idx.search(ctx, query{vec: vec, tags: tags, filtered: true}, k, opts)
}

type query struct {
	vec      []float32
	item     uint32
	byItem   bool
	tags     []uint32
	filtered bool
}

func (idx *Index) search(ctx context.Context, q query, k int, optFns []SearchOption) (res []Neighbor, err error) {
	start := time.Now()
	defer func() {
		idx.opts.metricsCollector.RecordSearch(k, q.filtered, time.Since(start), err)
		idx.opts.logger.LogSearch(ctx, k, len(res), q.filtered, err)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if idx.closed.Load() {
		return nil, ErrClosed
	}
	b := idx.state.Load()
	if b == nil {
		return nil, ErrNotBuilt
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}

	vec, err := idx.resolveQuery(b.store, q)
	if err != nil {
		return nil, err
	}

	so := applySearchOptions(optFns)
	budget := so.searchK
	if budget < 1 {
		budget = saturatingMul(k, b.trees, idx.opts.searchMultiplier)
	}

	s := searcher.Get(b.store.Count())
	defer searcher.Put(s)

	if !q.filtered {
		cands, _ := s.Search(b.forest, idx.sp, b.store, searcher.Request{Query: vec, K: k, Budget: budget})
		return idx.neighbors(cands), nil
	}

	filter, err := idx.newFilter(q.tags, so.matchAll)
	if err != nil {
		return nil, err
	}
	allowed := filter.Compile(b.store)
	if allowed.IsEmpty() {
		return []Neighbor{}, nil
	}
	if so.searchK < 1 {
		budget = saturatingMul(budget, idx.opts.filterMultiplier, 1)
	}

	threshold := idx.opts.bruteForceThreshold
	if threshold < 0 {
		threshold = saturatingMul(budget, 2, 1)
	}
	if allowed.GetCardinality() <= uint64(threshold) {
		cands, _ := s.Scan(idx.sp, b.store, vec, k, allowed)
		return idx.neighbors(cands), nil
	}

	cands, _ := s.Search(b.forest, idx.sp, b.store, searcher.Request{Query: vec, K: k, Budget: budget, Allowed: allowed})
	return idx.neighbors(cands), nil
}

func (idx *Index) resolveQuery(st *vectorstore.Store, q query) ([]float32, error) {
	if q.byItem {
		vec, ok := st.Vector(q.item)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, q.item)
		}
		return vec, nil
	}
	if len(q.vec) != idx.dim {
		return nil, &ErrDimensionMismatch{Expected: idx.dim, Actual: len(q.vec)}
	}
	return q.vec, nil
}

func (idx *Index) newFilter(query []uint32, matchAll bool) (*tags.Filter, error) {
	for _, t := range query {
		if int64(t) >= int64(idx.nTags) {
			return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidTag, t, idx.nTags)
		}
	}
	f, err := tags.NewFilter(query, matchAll)
	if err != nil {
		return nil, translateError(err)
	}
	return f, nil
}

func (idx *Index) neighbors(cands []searcher.Candidate) []Neighbor {
	out := make([]Neighbor, len(cands))
	for i, c := range cands {
		out[i] = Neighbor{ID: c.ID, Distance: idx.sp.Normalize(c.Distance)}
	}
	return out
}

func ids(res []Neighbor, err error) ([]uint32, error) {
	if err != nil {
		return nil, err
	}
	out := make([]uint32, len(res))
	for i, n := range res {
		out[i] = n.ID
	}
	return out, nil
}

// saturatingMul multiplies positive factors, clamping at math.MaxInt32.
func saturatingMul(a, b, c int) int {
	p := int64(a)
	for _, f := range []int64{int64(b), int64(c)} {
		if f != 0 && p > math.MaxInt32/f {
			return math.MaxInt32
		}
		p *= f
	}
	return int(p)
}
