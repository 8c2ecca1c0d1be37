package vectorstore

import (
	"errors"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

var (
	// ErrWrongDimension is returned when a vector doesn't match the store dimension.
	ErrWrongDimension = errors.New("wrong vector dimension")
	// ErrDuplicateID is returned when an id is added twice.
	ErrDuplicateID = errors.New("duplicate item id")
	// ErrNotFound is returned for unknown ids.
	ErrNotFound = errors.New("item not found")
	// ErrInvalidTag is returned for tag ids outside [0, nTags).
	ErrInvalidTag = errors.New("invalid tag")
)

// Store is an append-only vector and tag store addressed by sparse ids.
type Store struct {
	dim   int
	nTags int

	data  []float32
	ids   []uint32
	slots map[uint32]uint32

	tagOff   []uint32
	tagData  []uint32
	postings []*roaring.Bitmap
}

// New creates an empty store for dim-dimensional vectors and nTags tag ids.
func New(dim, nTags int) *Store {
	return &Store{
		dim:      dim,
		nTags:    nTags,
		slots:    make(map[uint32]uint32),
		tagOff:   []uint32{0},
		postings: make([]*roaring.Bitmap, nTags),
	}
}

// Dimension returns the vector dimension.
func (s *Store) Dimension() int { return s.dim }

// NTags returns the size of the tag id space.
func (s *Store) NTags() int { return s.nTags }

// Count returns the number of stored items.
func (s *Store) Count() int { return len(s.ids) }

// Add stores a vector and its tags under id. Nothing is mutated on error.
// Duplicate tags collapse; the vector is copied.
func (s *Store) Add(id uint32, vec []float32, tags []uint32) error {
	if len(vec) != s.dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrWrongDimension, s.dim, len(vec))
	}
	if _, ok := s.slots[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	for _, tag := range tags {
		if int64(tag) >= int64(s.nTags) {
			return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidTag, tag, s.nTags)
		}
	}

	set := slices.Clone(tags)
	slices.Sort(set)
	set = slices.Compact(set)

	slot := uint32(len(s.ids))
	s.slots[id] = slot
	s.ids = append(s.ids, id)
	s.data = append(s.data, vec...)
	s.tagData = append(s.tagData, set...)
	s.tagOff = append(s.tagOff, uint32(len(s.tagData)))

	for _, tag := range set {
		p := s.postings[tag]
		if p == nil {
			p = roaring.New()
			s.postings[tag] = p
		}
		p.Add(id)
	}
	return nil
}

// Slot returns the dense slot of id.
func (s *Store) Slot(id uint32) (int, bool) {
	slot, ok := s.slots[id]
	return int(slot), ok
}

// Contains reports whether id was added.
func (s *Store) Contains(id uint32) bool {
	_, ok := s.slots[id]
	return ok
}

// IDs returns the item ids in slot order. The slice aliases the store.
func (s *Store) IDs() []uint32 { return s.ids }

// VectorAt returns the vector stored at slot. The slice aliases the store.
func (s *Store) VectorAt(slot int) []float32 {
	return s.data[slot*s.dim : (slot+1)*s.dim : (slot+1)*s.dim]
}

// Vector returns the vector of id. The slice aliases the store.
func (s *Store) Vector(id uint32) ([]float32, bool) {
	slot, ok := s.slots[id]
	if !ok {
		return nil, false
	}
	return s.VectorAt(int(slot)), true
}

// Vectors returns one aliasing slice per slot.
func (s *Store) Vectors() [][]float32 {
	out := make([][]float32, len(s.ids))
	for i := range out {
		out[i] = s.VectorAt(i)
	}
	return out
}

// TagsAt returns the tag set stored at slot. The slice aliases the store.
func (s *Store) TagsAt(slot int) []uint32 {
	return s.tagData[s.tagOff[slot]:s.tagOff[slot+1]:s.tagOff[slot+1]]
}

// Tags returns a copy of the tag set of id in ascending order.
func (s *Store) Tags(id uint32) ([]uint32, error) {
	slot, ok := s.slots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return slices.Clone(s.TagsAt(int(slot))), nil
}

// Posting returns the ids carrying tag, or nil when no item has it.
// The bitmap must not be modified.
func (s *Store) Posting(tag uint32) *roaring.Bitmap {
	if int64(tag) >= int64(len(s.postings)) {
		return nil
	}
	return s.postings[tag]
}

// ItemBytes estimates the heap footprint of one item.
func ItemBytes(dim, tags int) int64 {
	return int64(dim)*4 + int64(tags)*4 + 16
}

// SizeBytes estimates the heap footprint of the store.
func (s *Store) SizeBytes() int64 {
	n := int64(len(s.data))*4 + int64(len(s.ids))*16 + int64(len(s.tagData)+len(s.tagOff))*4
	for _, p := range s.postings {
		if p != nil {
			n += int64(p.GetSizeInBytes())
		}
	}
	return n
}

// Freeze compacts the posting lists. Call once the store stops accepting adds.
func (s *Store) Freeze() {
	for _, p := range s.postings {
		if p != nil {
			p.RunOptimize()
		}
	}
}

// Clone returns a deep copy that can accept adds while s keeps serving reads.
func (s *Store) Clone() *Store {
	c := &Store{
		dim:      s.dim,
		nTags:    s.nTags,
		data:     slices.Clone(s.data),
		ids:      slices.Clone(s.ids),
		slots:    make(map[uint32]uint32, len(s.slots)),
		tagOff:   slices.Clone(s.tagOff),
		tagData:  slices.Clone(s.tagData),
		postings: make([]*roaring.Bitmap, len(s.postings)),
	}
	for id, slot := range s.slots {
		c.slots[id] = slot
	}
	for i, p := range s.postings {
		if p != nil {
			c.postings[i] = p.Clone()
		}
	}
	return c
}
