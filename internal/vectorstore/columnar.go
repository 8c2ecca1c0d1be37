package vectorstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrCorrupt is returned when decoded sections are inconsistent.
var ErrCorrupt = errors.New("vectorstore: corrupt data")

// Sections is the serialized form of a Store.
type Sections struct {
	IDs      []byte
	Vectors  []byte
	Tags     []byte
	Postings []byte
}

// Encode serializes the store into little-endian sections.
func (s *Store) Encode() (Sections, error) {
	ids := make([]byte, 0, len(s.ids)*4)
	for _, id := range s.ids {
		ids = binary.LittleEndian.AppendUint32(ids, id)
	}

	vecs := make([]byte, 0, len(s.data)*4)
	for _, f := range s.data {
		vecs = binary.LittleEndian.AppendUint32(vecs, math.Float32bits(f))
	}

	tags := make([]byte, 0, (len(s.tagOff)+len(s.tagData)+1)*4)
	tags = binary.LittleEndian.AppendUint32(tags, uint32(len(s.tagData)))
	for _, off := range s.tagOff {
		tags = binary.LittleEndian.AppendUint32(tags, off)
	}
	for _, tag := range s.tagData {
		tags = binary.LittleEndian.AppendUint32(tags, tag)
	}

	var buf bytes.Buffer
	for _, p := range s.postings {
		if p == nil || p.IsEmpty() {
			_ = binary.Write(&buf, binary.LittleEndian, uint32(0))
			continue
		}
		_ = binary.Write(&buf, binary.LittleEndian, uint32(p.GetSerializedSizeInBytes()))
		if _, err := p.WriteTo(&buf); err != nil {
			return Sections{}, err
		}
	}

	return Sections{IDs: ids, Vectors: vecs, Tags: tags, Postings: buf.Bytes()}, nil
}

// Decode rebuilds a store from sections written by Encode.
func Decode(dim, nTags int, sec Sections) (*Store, error) {
	if len(sec.IDs)%4 != 0 {
		return nil, fmt.Errorf("%w: id section length %d", ErrCorrupt, len(sec.IDs))
	}
	n := len(sec.IDs) / 4
	if len(sec.Vectors) != n*dim*4 {
		return nil, fmt.Errorf("%w: vector section length %d for %d items", ErrCorrupt, len(sec.Vectors), n)
	}

	s := New(dim, nTags)
	s.ids = make([]uint32, n)
	s.slots = make(map[uint32]uint32, n)
	for i := range n {
		id := binary.LittleEndian.Uint32(sec.IDs[i*4:])
		if _, dup := s.slots[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrCorrupt, id)
		}
		s.ids[i] = id
		s.slots[id] = uint32(i)
	}

	s.data = make([]float32, n*dim)
	for i := range s.data {
		s.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(sec.Vectors[i*4:]))
	}

	if err := s.decodeTags(n, sec.Tags); err != nil {
		return nil, err
	}
	if err := s.decodePostings(sec.Postings); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) decodeTags(n int, b []byte) error {
	if len(b) < 4 {
		return fmt.Errorf("%w: tag section too short", ErrCorrupt)
	}
	total := int(binary.LittleEndian.Uint32(b))
	if len(b) != 4+(n+1)*4+total*4 {
		return fmt.Errorf("%w: tag section length %d", ErrCorrupt, len(b))
	}
	b = b[4:]

	s.tagOff = make([]uint32, n+1)
	for i := range s.tagOff {
		s.tagOff[i] = binary.LittleEndian.Uint32(b[i*4:])
		if i > 0 && s.tagOff[i] < s.tagOff[i-1] {
			return fmt.Errorf("%w: tag offsets not monotonic", ErrCorrupt)
		}
	}
	if int(s.tagOff[n]) != total || s.tagOff[0] != 0 {
		return fmt.Errorf("%w: tag offsets out of range", ErrCorrupt)
	}
	b = b[(n+1)*4:]

	s.tagData = make([]uint32, total)
	for i := range s.tagData {
		tag := binary.LittleEndian.Uint32(b[i*4:])
		if int64(tag) >= int64(s.nTags) {
			return fmt.Errorf("%w: tag %d out of range", ErrCorrupt, tag)
		}
		s.tagData[i] = tag
	}
	return nil
}

func (s *Store) decodePostings(b []byte) error {
	var total uint64
	for tag := range s.postings {
		if len(b) < 4 {
			return fmt.Errorf("%w: posting %d truncated", ErrCorrupt, tag)
		}
		size := int64(binary.LittleEndian.Uint32(b))
		b = b[4:]
		if size == 0 {
			continue
		}
		if size > int64(len(b)) {
			return fmt.Errorf("%w: posting %d truncated", ErrCorrupt, tag)
		}
		bm := roaring.New()
		if err := bm.UnmarshalBinary(b[:size]); err != nil {
			return fmt.Errorf("%w: posting %d: %v", ErrCorrupt, tag, err)
		}
		b = b[size:]
		s.postings[tag] = bm
		total += bm.GetCardinality()
	}
	if len(b) != 0 || total != uint64(len(s.tagData)) {
		return fmt.Errorf("%w: postings disagree with tag sets", ErrCorrupt)
	}
	return nil
}
