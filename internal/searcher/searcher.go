package searcher

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/vecforest/internal/forest"
	"github.com/hupe1980/vecforest/internal/space"
	"github.com/hupe1980/vecforest/internal/vectorstore"
)

const defaultFrontierCapacity = 256

// Searcher is a reusable execution context for forest search.
// It owns the scratch memory of one query.
//
// Searcher is NOT thread-safe. It is intended to be owned by a single goroutine
// during a search operation.
type Searcher struct {
	// Frontier holds nodes waiting to be expanded.
	Frontier *Frontier

	// Heap keeps the best k candidates.
	Heap *CandidateHeap

	// Seen marks store slots that were already scored.
	Seen *bitset.BitSet
}

var pool = sync.Pool{
	New: func() any {
		return &Searcher{
			Frontier: NewFrontier(defaultFrontierCapacity),
			Heap:     NewCandidateHeap(16),
			Seen:     bitset.New(0),
		}
	},
}

// Get returns a pooled Searcher sized for a store of n items.
// The store must not grow while the Searcher is in use.
func Get(n int) *Searcher {
	s := pool.Get().(*Searcher)
	s.Frontier.Reset()
	s.Heap.Reset(0)
	if s.Seen.Len() < uint(n) {
		s.Seen = bitset.New(uint(n))
	} else {
		s.Seen.ClearAll()
	}
	return s
}

// Put returns s to the pool.
func Put(s *Searcher) {
	pool.Put(s)
}

// Request describes one query.
type Request struct {
	// Query has the store dimension.
	Query []float32

	// K is the number of results.
	K int

	// Budget is the number of distinct accepted candidates to score before
	// expansion stops.
	Budget int

	// Allowed restricts candidates to its ids. Nil accepts every item.
	// Rejected items do not count against Budget.
	Allowed *roaring.Bitmap
}

// Stats reports the work done by a query.
type Stats struct {
	Nodes     int
	Scored    int
	Rejected  int
	Exhausted bool
}

// Search runs a best-first traversal of f and returns up to req.K
// candidates ordered best first.
func (s *Searcher) Search(f *forest.Forest, sp space.Space, st *vectorstore.Store, req Request) ([]Candidate, Stats) {
	var stats Stats
	s.Heap.Reset(req.K)
	s.Frontier.Reset()
	if req.K <= 0 {
		return nil, stats
	}
	s.Seen.ClearAll()

	for _, root := range f.Roots() {
		s.Frontier.Push(root, sp.InitialPriority())
	}

	for stats.Scored < req.Budget {
		node, priority, ok := s.Frontier.Pop()
		if !ok {
			stats.Exhausted = true
			break
		}
		stats.Nodes++

		n := f.Node(node)
		if !n.IsLeaf() {
			margin := sp.Margin(f.Plane(n), req.Query)
			s.Frontier.Push(n.Right, sp.Priority(priority, margin, true))
			s.Frontier.Push(n.Left, sp.Priority(priority, margin, false))
			continue
		}

		for _, id := range f.Items(n) {
			slot, ok := st.Slot(id)
			if !ok || s.Seen.Test(uint(slot)) {
				continue
			}
			s.Seen.Set(uint(slot))

			if req.Allowed != nil && !req.Allowed.Contains(id) {
				stats.Rejected++
				continue
			}
			stats.Scored++
			s.Heap.Offer(Candidate{ID: id, Distance: sp.Distance(req.Query, st.VectorAt(slot))})
		}
	}
	if s.Frontier.Len() == 0 {
		stats.Exhausted = true
	}

	return s.Heap.Sorted(), stats
}

// Scan scores every id in allowed exhaustively and returns the best k.
// Ids unknown to the store are skipped.
func (s *Searcher) Scan(sp space.Space, st *vectorstore.Store, query []float32, k int, allowed *roaring.Bitmap) ([]Candidate, Stats) {
	var stats Stats
	s.Heap.Reset(k)
	if k <= 0 {
		return nil, stats
	}

	it := allowed.Iterator()
	for it.HasNext() {
		id := it.Next()
		slot, ok := st.Slot(id)
		if !ok {
			continue
		}
		stats.Scored++
		s.Heap.Offer(Candidate{ID: id, Distance: sp.Distance(query, st.VectorAt(slot))})
	}
	stats.Exhausted = true
	return s.Heap.Sorted(), stats
}
