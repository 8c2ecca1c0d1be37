package forest

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/vecforest/internal/space"
)

const headerSize = 6 * 4

// MarshalBinary encodes the arena in little-endian order:
// width, trees, nodes, planes, items, depth, then the arrays.
func (f *Forest) MarshalBinary() ([]byte, error) {
	size := headerSize + len(f.roots)*4 + len(f.nodes)*nodeSize + len(f.planes)*4 + len(f.items)*4
	b := make([]byte, 0, size)

	le := binary.LittleEndian
	b = le.AppendUint32(b, uint32(f.width))
	b = le.AppendUint32(b, uint32(len(f.roots)))
	b = le.AppendUint32(b, uint32(len(f.nodes)))
	b = le.AppendUint32(b, uint32(len(f.planes)))
	b = le.AppendUint32(b, uint32(len(f.items)))
	b = le.AppendUint32(b, uint32(f.depth))

	for _, r := range f.roots {
		b = le.AppendUint32(b, uint32(r))
	}
	for i := range f.nodes {
		n := &f.nodes[i]
		b = le.AppendUint32(b, uint32(n.Left))
		b = le.AppendUint32(b, uint32(n.Right))
		b = le.AppendUint32(b, n.Start)
		b = le.AppendUint32(b, n.Count)
		b = le.AppendUint32(b, n.PlaneOff)
		b = le.AppendUint32(b, math.Float32bits(n.Bias))
		b = le.AppendUint32(b, uint32(n.Axis))
	}
	for _, v := range f.planes {
		b = le.AppendUint32(b, math.Float32bits(v))
	}
	for _, id := range f.items {
		b = le.AppendUint32(b, id)
	}
	return b, nil
}

// Unmarshal decodes an arena written by MarshalBinary and validates every
// handle, offset and split axis against sp, the space the forest was built with.
func Unmarshal(b []byte, sp space.Space) (*Forest, error) {
	width := sp.PlaneWidth()
	if len(b) < headerSize {
		return nil, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	le := binary.LittleEndian
	hdr := func(i int) int { return int(le.Uint32(b[i*4:])) }

	if hdr(0) != width {
		return nil, fmt.Errorf("%w: plane width %d, expected %d", ErrCorrupt, hdr(0), width)
	}
	nRoots, nNodes, nPlanes, nItems := hdr(1), hdr(2), hdr(3), hdr(4)
	want := headerSize + nRoots*4 + nNodes*nodeSize + nPlanes*4 + nItems*4
	if len(b) != want {
		return nil, fmt.Errorf("%w: arena length %d, expected %d", ErrCorrupt, len(b), want)
	}

	f := &Forest{
		width:  width,
		depth:  hdr(5),
		roots:  make([]int32, nRoots),
		nodes:  make([]Node, nNodes),
		planes: make([]float32, nPlanes),
		items:  make([]uint32, nItems),
	}

	off := headerSize
	next := func() uint32 {
		v := le.Uint32(b[off:])
		off += 4
		return v
	}

	for i := range f.roots {
		f.roots[i] = int32(next())
	}
	for i := range f.nodes {
		f.nodes[i] = Node{
			Left:     int32(next()),
			Right:    int32(next()),
			Start:    next(),
			Count:    next(),
			PlaneOff: next(),
			Bias:     math.Float32frombits(next()),
			Axis:     int32(next()),
		}
	}
	for i := range f.planes {
		f.planes[i] = math.Float32frombits(next())
	}
	for i := range f.items {
		f.items[i] = next()
	}

	if err := f.validate(sp.Dim()); err != nil {
		return nil, err
	}
	return f, nil
}

// validate checks that every handle is in range, that each node hangs off
// exactly one parent or root, and that axes index a dim-wide vector.
func (f *Forest) validate(dim int) error {
	inNodes := func(h int32) bool { return h >= 0 && int(h) < len(f.nodes) }
	referenced := bitset.New(uint(len(f.nodes)))
	claim := func(h int32) bool {
		if referenced.Test(uint(h)) {
			return false
		}
		referenced.Set(uint(h))
		return true
	}

	for i, r := range f.roots {
		if !inNodes(r) || !claim(r) {
			return fmt.Errorf("%w: root %d handle %d", ErrCorrupt, i, r)
		}
	}
	for i := range f.nodes {
		n := &f.nodes[i]
		if n.IsLeaf() {
			if n.Right != Nil || uint64(n.Start)+uint64(n.Count) > uint64(len(f.items)) {
				return fmt.Errorf("%w: leaf %d", ErrCorrupt, i)
			}
			continue
		}
		// children are always created after their parent
		if !inNodes(n.Left) || !inNodes(n.Right) || int(n.Left) <= i || int(n.Right) <= i {
			return fmt.Errorf("%w: node %d children", ErrCorrupt, i)
		}
		if !claim(n.Left) || !claim(n.Right) {
			return fmt.Errorf("%w: node %d shares a child", ErrCorrupt, i)
		}
		if int(n.PlaneOff)+f.width > len(f.planes) {
			return fmt.Errorf("%w: node %d plane", ErrCorrupt, i)
		}
		if n.Axis < -1 || int(n.Axis) >= dim {
			return fmt.Errorf("%w: node %d axis %d", ErrCorrupt, i, n.Axis)
		}
	}
	return nil
}

// ForEachItem calls fn for every item id referenced by a leaf.
func (f *Forest) ForEachItem(fn func(id uint32) bool) {
	for _, id := range f.items {
		if !fn(id) {
			return
		}
	}
}
