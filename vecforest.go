package vecforest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/internal/forest"
	"github.com/hupe1980/vecforest/internal/resource"
	"github.com/hupe1980/vecforest/internal/space"
	"github.com/hupe1980/vecforest/internal/vectorstore"
)

// minLeafSize is the smallest default leaf bucket.
const minLeafSize = 16

// Index is an approximate nearest neighbor index over a forest of random
// projection trees, with per-item tag sets.
//
// An Index starts in the loading state, where items are added. Build turns it
// into the immutable built state, where it answers queries. Queries are safe
// for concurrent use and do not block each other.
type Index struct {
	dim    int
	metric distance.Metric
	nTags  int
	sp     space.Space
	opts   options
	rc     *resource.Controller

	// mu serializes mutations and guards store while loading.
	mu         sync.RWMutex
	store      *vectorstore.Store
	storeBytes int64

	state  atomic.Pointer[built]
	closed atomic.Bool
}

// built is the immutable queryable state.
type built struct {
	forest     *forest.Forest
	store      *vectorstore.Store
	id         uuid.UUID
	trees      int
	leafSize   int
	seed       uint64
	arenaBytes int64
}

// Neighbor is a query result with its metric-natural distance.
// For the dot metric, Distance is the dot product itself.
type Neighbor struct {
	ID       uint32
	Distance float32
}

// Stats describes the current shape of an index.
type Stats struct {
	Items       int
	Tags        int
	Trees       int
	Nodes       int
	Leaves      int
	MaxDepth    int
	LeafSize    int
	ArenaBytes  int64
	StoreBytes  int64
	MemoryBytes int64
	BuildID     string
}

// New creates an empty index for dim-dimensional vectors compared with
// metric, whose items carry tags from [0, nTags).
func New(dim int, metric distance.Metric, nTags int, optFns ...Option) (*Index, error) {
	if dim < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, dim)
	}
	if nTags < 0 {
		return nil, fmt.Errorf("%w: n_tags %d", ErrInvalidOption, nTags)
	}
	opts, err := applyOptions(optFns)
	if err != nil {
		return nil, err
	}
	sp, err := space.New(metric, dim)
	if err != nil {
		return nil, translateError(err)
	}

	return &Index{
		dim:    dim,
		metric: metric,
		nTags:  nTags,
		sp:     sp,
		opts:   opts,
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:   opts.memoryLimit,
			MaxWorkers:         int64(opts.workers),
			IOLimitBytesPerSec: opts.ioRate,
		}),
		store: vectorstore.New(dim, nTags),
	}, nil
}

// AddItem adds an untagged item. See AddItemWithTags.
func (idx *Index) AddItem(ctx context.Context, id uint32, vec []float32) error {
	return idx.AddItemWithTags(ctx, id, vec, nil)
}

// AddItemWithTags adds an item with its tag set. The vector is copied and
// duplicate tags collapse. A failed add leaves the index unchanged.
func (idx *Index) AddItemWithTags(ctx context.Context, id uint32, vec []float32, tags []uint32) (err error) {
	start := time.Now()
	defer func() {
		idx.opts.metricsCollector.RecordAdd(time.Since(start), err)
		idx.opts.logger.LogAdd(ctx, id, len(tags), err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(vec) != idx.dim {
		return &ErrDimensionMismatch{Expected: idx.dim, Actual: len(vec)}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed.Load() {
		return ErrClosed
	}
	if idx.state.Load() != nil {
		return ErrAlreadyBuilt
	}

	bytes := vectorstore.ItemBytes(idx.dim, len(tags))
	if err := idx.rc.AcquireMemory(bytes); err != nil {
		return translateError(err)
	}
	if err := idx.store.Add(id, vec, tags); err != nil {
		idx.rc.ReleaseMemory(bytes)
		return translateError(err)
	}
	idx.storeBytes += bytes
	return nil
}

// Build grows nTrees trees over the added items and makes the index
// queryable. It can run only once; call Unbuild to add more items and
// build again.
func (idx *Index) Build(ctx context.Context, nTrees int) (err error) {
	start := time.Now()
	var (
		items   int
		buildID string
	)
	defer func() {
		idx.opts.metricsCollector.RecordBuild(nTrees, items, time.Since(start), err)
		idx.opts.logger.LogBuild(ctx, buildID, nTrees, items, time.Since(start), err)
	}()

	if nTrees < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidTrees, nTrees)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed.Load() {
		return ErrClosed
	}
	if idx.state.Load() != nil {
		return ErrAlreadyBuilt
	}

	items = idx.store.Count()
	leafSize := idx.leafSize()
	f, err := forest.Build(ctx, idx.sp, idx.store.Vectors(), idx.store.IDs(), forest.Config{
		Trees:    nTrees,
		LeafSize: leafSize,
		Seed:     idx.opts.seed,
		Workers:  idx.opts.workers,
		Gate:     idx.rc,
	})
	if err != nil {
		return translateError(err)
	}

	arena := f.SizeBytes()
	if err := idx.rc.AcquireMemory(arena); err != nil {
		return translateError(err)
	}

	idx.store.Freeze()
	b := &built{
		forest:     f,
		store:      idx.store,
		id:         uuid.New(),
		trees:      nTrees,
		leafSize:   leafSize,
		seed:       idx.opts.seed,
		arenaBytes: arena,
	}
	buildID = b.id.String()
	idx.state.Store(b)
	return nil
}

// Unbuild drops the forest and returns the index to the loading state.
// Items are kept. Queries already running finish against the old forest.
func (idx *Index) Unbuild() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed.Load() {
		return ErrClosed
	}
	b := idx.state.Load()
	if b == nil {
		return nil
	}

	idx.store = b.store.Clone()
	idx.state.Store(nil)
	idx.rc.ReleaseMemory(b.arenaBytes)
	return nil
}

// Built reports whether the index is queryable.
func (idx *Index) Built() bool {
	return idx.state.Load() != nil
}

// Dimension returns the vector dimension.
func (idx *Index) Dimension() int { return idx.dim }

// Metric returns the distance metric.
func (idx *Index) Metric() distance.Metric { return idx.metric }

// NTags returns the size of the tag id space given to New.
func (idx *Index) NTags() int { return idx.nTags }

// NItems returns the number of added items.
func (idx *Index) NItems() int {
	n := 0
	_ = idx.withStore(func(st *vectorstore.Store) error {
		n = st.Count()
		return nil
	})
	return n
}

// NTrees returns the number of trees, or 0 before Build.
func (idx *Index) NTrees() int {
	if b := idx.state.Load(); b != nil {
		return b.forest.NumTrees()
	}
	return 0
}

// BuildID identifies the current build. It is empty before Build and is
// preserved by Save and Load.
func (idx *Index) BuildID() string {
	if b := idx.state.Load(); b != nil {
		return b.id.String()
	}
	return ""
}

// ItemTags returns the deduplicated tags of id in ascending order.
func (idx *Index) ItemTags(id uint32) ([]uint32, error) {
	var tags []uint32
	err := idx.withStore(func(st *vectorstore.Store) error {
		var err error
		tags, err = st.Tags(id)
		return err
	})
	return tags, translateError(err)
}

// ItemVector returns a copy of the vector of id.
func (idx *Index) ItemVector(id uint32) ([]float32, error) {
	var vec []float32
	err := idx.withStore(func(st *vectorstore.Store) error {
		v, ok := st.Vector(id)
		if !ok {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		vec = slices.Clone(v)
		return nil
	})
	return vec, err
}

// Distance returns the metric-natural distance between two stored items.
func (idx *Index) Distance(i, j uint32) (float32, error) {
	var d float32
	err := idx.withStore(func(st *vectorstore.Store) error {
		a, ok := st.Vector(i)
		if !ok {
			return fmt.Errorf("%w: %d", ErrNotFound, i)
		}
		b, ok := st.Vector(j)
		if !ok {
			return fmt.Errorf("%w: %d", ErrNotFound, j)
		}
		d = idx.sp.Normalize(idx.sp.Distance(a, b))
		return nil
	})
	return d, err
}

// Stats reports the shape and memory footprint of the index.
func (idx *Index) Stats() Stats {
	st := Stats{
		Tags:        idx.nTags,
		MemoryBytes: idx.rc.MemoryUsage(),
	}
	_ = idx.withStore(func(s *vectorstore.Store) error {
		st.Items = s.Count()
		st.StoreBytes = s.SizeBytes()
		return nil
	})
	if b := idx.state.Load(); b != nil {
		fs := b.forest.Stats()
		st.Trees = fs.Trees
		st.Nodes = fs.Nodes
		st.Leaves = fs.Leaves
		st.MaxDepth = fs.MaxDepth
		st.ArenaBytes = fs.ArenaBytes
		st.LeafSize = b.leafSize
		st.BuildID = b.id.String()
	} else {
		st.LeafSize = idx.leafSize()
	}
	return st
}

// withStore runs fn against the current store. The built store is read
// without locking; the loading store under the read lock.
func (idx *Index) withStore(fn func(*vectorstore.Store) error) error {
	if idx.closed.Load() {
		return ErrClosed
	}
	if b := idx.state.Load(); b != nil {
		return fn(b.store)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed.Load() {
		return ErrClosed
	}
	if b := idx.state.Load(); b != nil {
		return fn(b.store)
	}
	return fn(idx.store)
}

func (idx *Index) leafSize() int {
	if idx.opts.leafSize > 0 {
		return idx.opts.leafSize
	}
	return max(2*idx.dim, minLeafSize)
}
