package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixture(t *testing.T) *Store {
	t.Helper()
	s := New(2, 10)
	require.NoError(t, s.Add(0, []float32{2, 2}, []uint32{0, 1, 2}))
	require.NoError(t, s.Add(7, []float32{3, 2}, []uint32{4, 2, 3, 2}))
	require.NoError(t, s.Add(3, []float32{3, 3}, nil))
	return s
}

func TestAdd(t *testing.T) {
	s := newFixture(t)
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, 2, s.Dimension())
	assert.Equal(t, 10, s.NTags())
	assert.Equal(t, []uint32{0, 7, 3}, s.IDs())

	v, ok := s.Vector(7)
	require.True(t, ok)
	assert.Equal(t, []float32{3, 2}, v)

	slot, ok := s.Slot(3)
	require.True(t, ok)
	assert.Equal(t, 2, slot)
	assert.Equal(t, uint32(3), s.IDs()[slot])

	_, ok = s.Vector(1)
	assert.False(t, ok)
	assert.False(t, s.Contains(1))
}

func TestAdd_Errors(t *testing.T) {
	tests := []struct {
		name string
		id   uint32
		vec  []float32
		tags []uint32
		err  error
	}{
		{"short vector", 1, []float32{1}, nil, ErrWrongDimension},
		{"long vector", 1, []float32{1, 2, 3}, nil, ErrWrongDimension},
		{"duplicate", 7, []float32{1, 1}, nil, ErrDuplicateID},
		{"tag out of range", 1, []float32{1, 1}, []uint32{1, 10}, ErrInvalidTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFixture(t)
			before, err := s.Encode()
			require.NoError(t, err)

			err = s.Add(tt.id, tt.vec, tt.tags)
			require.ErrorIs(t, err, tt.err)

			after, err := s.Encode()
			require.NoError(t, err)
			assert.Equal(t, before, after, "failed add must not mutate the store")
		})
	}
}

func TestTags(t *testing.T) {
	s := newFixture(t)

	tags, err := s.Tags(7)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 3, 4}, tags)

	tags, err = s.Tags(3)
	require.NoError(t, err)
	assert.Empty(t, tags)

	_, err = s.Tags(99)
	assert.ErrorIs(t, err, ErrNotFound)

	// returned slices are copies
	tags, _ = s.Tags(0)
	tags[0] = 9
	again, _ := s.Tags(0)
	assert.Equal(t, []uint32{0, 1, 2}, again)
}

func TestPostings(t *testing.T) {
	s := newFixture(t)

	assert.Equal(t, []uint32{0, 7}, s.Posting(2).ToArray())
	assert.Equal(t, []uint32{7}, s.Posting(4).ToArray())
	assert.Nil(t, s.Posting(9))
	assert.Nil(t, s.Posting(1000))
}

func TestEncodeDecode(t *testing.T) {
	s := newFixture(t)
	s.Freeze()

	sec, err := s.Encode()
	require.NoError(t, err)

	got, err := Decode(2, 10, sec)
	require.NoError(t, err)

	assert.Equal(t, s.IDs(), got.IDs())
	assert.Equal(t, s.Vectors(), got.Vectors())
	for _, id := range s.IDs() {
		want, _ := s.Tags(id)
		have, err := got.Tags(id)
		require.NoError(t, err)
		assert.Equal(t, want, have)
	}
	for tag := uint32(0); tag < 10; tag++ {
		if s.Posting(tag) == nil {
			assert.Nil(t, got.Posting(tag))
			continue
		}
		assert.True(t, s.Posting(tag).Equals(got.Posting(tag)), "tag %d", tag)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	s := newFixture(t)
	sec, err := s.Encode()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Sections)
	}{
		{"odd ids", func(sec *Sections) { sec.IDs = sec.IDs[:5] }},
		{"short vectors", func(sec *Sections) { sec.Vectors = sec.Vectors[:8] }},
		{"short tags", func(sec *Sections) { sec.Tags = sec.Tags[:2] }},
		{"truncated postings", func(sec *Sections) { sec.Postings = sec.Postings[:len(sec.Postings)-3] }},
		{"duplicate ids", func(sec *Sections) {
			ids := append([]byte(nil), sec.IDs...)
			copy(ids[4:8], ids[0:4])
			sec.IDs = ids
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sec
			tt.mutate(&c)
			_, err := Decode(2, 10, c)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestSizeBytes(t *testing.T) {
	s := New(4, 2)
	empty := s.SizeBytes()
	require.NoError(t, s.Add(1, []float32{1, 2, 3, 4}, []uint32{1}))
	assert.Greater(t, s.SizeBytes(), empty)
	assert.Positive(t, ItemBytes(4, 1))
}

func TestClone(t *testing.T) {
	s := newFixture(t)
	c := s.Clone()

	require.NoError(t, c.Add(9, []float32{1, 1}, []uint32{2}))
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, 4, c.Count())
	assert.False(t, s.Contains(9))
	assert.False(t, s.Posting(2).Contains(9))
	assert.True(t, c.Posting(2).Contains(9))

	tags, err := c.Tags(7)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 3, 4}, tags)
}
