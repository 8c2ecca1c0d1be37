package forest

import (
	"errors"

	"github.com/hupe1980/vecforest/internal/space"
)

// Nil is the handle of a missing child.
const Nil int32 = -1

var (
	// ErrInvalidConfig is returned for non-positive tree counts or leaf sizes.
	ErrInvalidConfig = errors.New("forest: invalid config")
	// ErrCorrupt is returned when decoding an inconsistent arena.
	ErrCorrupt = errors.New("forest: corrupt arena")
)

// Node is either a leaf (Left == Nil) holding items[Start:Start+Count],
// or an internal node with two children and a splitting plane.
type Node struct {
	Left, Right int32
	Start       uint32
	Count       uint32
	PlaneOff    uint32
	Bias        float32
	Axis        int32
}

// IsLeaf reports whether n is a leaf.
func (n *Node) IsLeaf() bool { return n.Left == Nil }

// Forest is an immutable arena of trees.
type Forest struct {
	width  int
	nodes  []Node
	planes []float32
	items  []uint32
	roots  []int32
	depth  int
}

// NumTrees returns the number of trees.
func (f *Forest) NumTrees() int { return len(f.roots) }

// Roots returns the root handle of every tree in build order.
func (f *Forest) Roots() []int32 { return f.roots }

// Node returns the node behind handle h.
func (f *Forest) Node(h int32) *Node { return &f.nodes[h] }

// Items returns the item ids of leaf n. The slice aliases the arena.
func (f *Forest) Items(n *Node) []uint32 {
	return f.items[n.Start : n.Start+n.Count : n.Start+n.Count]
}

// Plane returns the splitting plane of internal node n.
func (f *Forest) Plane(n *Node) space.Plane {
	return space.Plane{
		Normal: f.planes[n.PlaneOff : int(n.PlaneOff)+f.width : int(n.PlaneOff)+f.width],
		Bias:   n.Bias,
		Axis:   n.Axis,
	}
}

// Stats describes the shape of a forest.
type Stats struct {
	Trees      int
	Nodes      int
	Leaves     int
	LeafItems  int
	MaxDepth   int
	ArenaBytes int64
}

// Stats computes shape statistics.
func (f *Forest) Stats() Stats {
	st := Stats{
		Trees:      len(f.roots),
		Nodes:      len(f.nodes),
		LeafItems:  len(f.items),
		MaxDepth:   f.depth,
		ArenaBytes: f.SizeBytes(),
	}
	for i := range f.nodes {
		if f.nodes[i].IsLeaf() {
			st.Leaves++
		}
	}
	return st
}

// SizeBytes is the heap footprint of the arena.
func (f *Forest) SizeBytes() int64 {
	return int64(len(f.nodes))*nodeSize + int64(len(f.planes))*4 + int64(len(f.items))*4 + int64(len(f.roots))*4
}

// nodeSize is the encoded (and approximate in-memory) size of a Node.
const nodeSize = 28
