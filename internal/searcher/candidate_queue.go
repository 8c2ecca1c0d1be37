package searcher

import "slices"

// Candidate is a scored item. Distance is the ranking distance (smaller is closer).
type Candidate struct {
	ID       uint32
	Distance float32
}

// CandidateBetter reports whether a ranks before b.
// Equal distances fall back to ascending id.
func CandidateBetter(a, b Candidate) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

// CandidateHeap keeps the best k candidates seen so far.
// The top is the worst retained candidate, i.e. the next to be evicted.
type CandidateHeap struct {
	Candidates []Candidate
	capacity   int
}

const heapArity = 4

// NewCandidateHeap creates a heap retaining at most capacity candidates.
func NewCandidateHeap(capacity int) *CandidateHeap {
	return &CandidateHeap{
		Candidates: make([]Candidate, 0, capacity),
		capacity:   capacity,
	}
}

// Reset clears the heap and sets a new capacity.
func (h *CandidateHeap) Reset(capacity int) {
	h.Candidates = h.Candidates[:0]
	h.capacity = capacity
}

// Len returns the number of retained candidates.
func (h *CandidateHeap) Len() int { return len(h.Candidates) }

// Full reports whether the heap holds capacity candidates.
func (h *CandidateHeap) Full() bool { return len(h.Candidates) >= h.capacity }

// Offer adds c if the heap has room or c beats the worst retained candidate.
func (h *CandidateHeap) Offer(c Candidate) bool {
	if h.capacity <= 0 {
		return false
	}
	if !h.Full() {
		h.Candidates = append(h.Candidates, c)
		h.up(h.Len() - 1)
		return true
	}
	if !CandidateBetter(c, h.Candidates[0]) {
		return false
	}
	h.Candidates[0] = c
	h.down(0, h.Len())
	return true
}

// Sorted returns the retained candidates best first. The heap is left empty.
func (h *CandidateHeap) Sorted() []Candidate {
	out := slices.Clone(h.Candidates)
	slices.SortFunc(out, func(a, b Candidate) int {
		if CandidateBetter(a, b) {
			return -1
		}
		if CandidateBetter(b, a) {
			return 1
		}
		return 0
	})
	h.Candidates = h.Candidates[:0]
	return out
}

// up moves element at j up the 4-ary heap.
func (h *CandidateHeap) up(j int) {
	item := h.Candidates[j]
	for j > 0 {
		i := (j - 1) / heapArity
		if !CandidateBetter(h.Candidates[i], item) {
			break
		}
		h.Candidates[j] = h.Candidates[i]
		j = i
	}
	h.Candidates[j] = item
}

// down moves element at i0 down the 4-ary heap.
func (h *CandidateHeap) down(i0, n int) {
	i := i0
	item := h.Candidates[i]
	for {
		firstChild := heapArity*i + 1
		if firstChild >= n {
			break
		}

		worst := firstChild
		lastChild := min(firstChild+heapArity, n)
		for c := firstChild + 1; c < lastChild; c++ {
			if CandidateBetter(h.Candidates[worst], h.Candidates[c]) {
				worst = c
			}
		}

		if !CandidateBetter(item, h.Candidates[worst]) {
			break
		}
		h.Candidates[i] = h.Candidates[worst]
		i = worst
	}
	h.Candidates[i] = item
}
