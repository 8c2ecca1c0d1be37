package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontier(t *testing.T) {
	f := NewFrontier(2)
	_, _, ok := f.Pop()
	assert.False(t, ok)

	for i, p := range []float32{0.5, 3, -1, 3, 2, 7, -4} {
		f.Push(int32(i), p)
	}
	require.Equal(t, 7, f.Len())

	node, priority, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, int32(5), node)
	assert.Equal(t, float32(7), priority)

	order := []int32{node}
	for f.Len() > 0 {
		node, _, _ := f.Pop()
		order = append(order, node)
	}
	// equal priorities pop the lower handle first
	assert.Equal(t, []int32{5, 1, 3, 4, 0, 2, 6}, order)

	f.Push(9, 1)
	f.Reset()
	assert.Zero(t, f.Len())
}

func TestCandidateHeap(t *testing.T) {
	h := NewCandidateHeap(3)
	for _, c := range []Candidate{
		{ID: 5, Distance: 4},
		{ID: 1, Distance: 1},
		{ID: 9, Distance: 2},
		{ID: 2, Distance: 2},
		{ID: 7, Distance: 0.5},
		{ID: 8, Distance: 9},
	} {
		h.Offer(c)
	}
	require.True(t, h.Full())

	// the root is the next candidate to be evicted
	assert.Equal(t, uint32(2), h.Candidates[0].ID)

	got := h.Sorted()
	assert.Equal(t, []Candidate{{ID: 7, Distance: 0.5}, {ID: 1, Distance: 1}, {ID: 2, Distance: 2}}, got)
	assert.Zero(t, h.Len())
}

func TestCandidateHeap_TieBreak(t *testing.T) {
	h := NewCandidateHeap(2)
	for _, id := range []uint32{4, 3, 2, 1} {
		h.Offer(Candidate{ID: id, Distance: 1})
	}
	assert.Equal(t, []Candidate{{ID: 1, Distance: 1}, {ID: 2, Distance: 1}}, h.Sorted())
}

func TestCandidateHeap_ZeroCapacity(t *testing.T) {
	h := NewCandidateHeap(0)
	assert.False(t, h.Offer(Candidate{ID: 1}))
	assert.Empty(t, h.Sorted())
}
