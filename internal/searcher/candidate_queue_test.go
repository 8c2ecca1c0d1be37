package searcher

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateHeap_Selection(t *testing.T) {
	t.Run("keeps best k", func(t *testing.T) {
		h := NewCandidateHeap(10)
		rng := rand.New(rand.NewPCG(1, 2))
		all := make([]float32, 0, 100)
		for i := range 100 {
			d := rng.Float32()
			all = append(all, d)
			h.Offer(Candidate{ID: uint32(i), Distance: d})
		}
		require.Equal(t, 10, h.Len())
		assert.True(t, h.Full())

		out := h.Sorted()
		require.Len(t, out, 10)
		assert.Equal(t, 0, h.Len())

		for i := 1; i < len(out); i++ {
			assert.True(t, CandidateBetter(out[i-1], out[i]))
		}
		worst := out[len(out)-1].Distance
		better := 0
		for _, d := range all {
			if d < worst {
				better++
			}
		}
		assert.Equal(t, 9, better)
	})

	t.Run("root is worst", func(t *testing.T) {
		h := NewCandidateHeap(2)
		h.Offer(Candidate{ID: 1, Distance: 0.5})
		h.Offer(Candidate{ID: 2, Distance: 0.1})
		assert.Equal(t, uint32(1), h.Candidates[0].ID)

		assert.False(t, h.Offer(Candidate{ID: 3, Distance: 0.9}))
		assert.True(t, h.Offer(Candidate{ID: 4, Distance: 0.2}))
		assert.Equal(t, uint32(4), h.Candidates[0].ID)
	})
}
