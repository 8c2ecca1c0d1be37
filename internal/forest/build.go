package forest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecforest/internal/space"
)

const (
	splitAttempts     = 3
	maxSplitImbalance = 0.95
	maxRandImbalance  = 0.99
)

// Gate bounds concurrent tree builds across forests sharing it.
type Gate interface {
	AcquireWorker(ctx context.Context) error
	ReleaseWorker()
}

// Config controls forest construction.
type Config struct {
	Trees    int
	LeafSize int
	Seed     uint64
	Workers  int
	Gate     Gate
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.Trees < 1 {
		return fmt.Errorf("%w: trees must be >= 1, got %d", ErrInvalidConfig, c.Trees)
	}
	if c.LeafSize < 1 {
		return fmt.Errorf("%w: leaf size must be >= 1, got %d", ErrInvalidConfig, c.LeafSize)
	}
	return nil
}

// NewRand returns the random source of tree i for seed.
func NewRand(seed uint64, tree int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(tree)))
}

// Build constructs cfg.Trees trees over vectors, whose ids[i] is the item
// id of vectors[i]. Vectors are passed through sp.Prepare once and shared
// read-only by every tree.
func Build(ctx context.Context, sp space.Space, vectors [][]float32, ids []uint32, cfg Config) (*Forest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(vectors) != len(ids) {
		return nil, fmt.Errorf("%w: %d vectors for %d ids", ErrInvalidConfig, len(vectors), len(ids))
	}

	prepared := sp.Prepare(vectors)
	trees := make([]*tree, cfg.Trees)

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			if cfg.Gate != nil {
				if err := cfg.Gate.AcquireWorker(gctx); err != nil {
					return err
				}
				defer cfg.Gate.ReleaseWorker()
			}

			b := &builder{
				sp:       sp,
				vecs:     prepared,
				ids:      ids,
				rng:      NewRand(cfg.Seed, i),
				leafSize: cfg.LeafSize,
				width:    sp.PlaneWidth(),
			}
			t, err := b.build(gctx)
			if err != nil {
				return err
			}
			trees[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return merge(sp.PlaneWidth(), trees), nil
}

// tree is a private arena; handles and offsets are local.
type tree struct {
	nodes  []Node
	planes []float32
	items  []uint32
	depth  int
}

type work struct {
	lo, hi int
	parent int32
	right  bool
	depth  int
}

type builder struct {
	sp       space.Space
	vecs     [][]float32
	ids      []uint32
	rng      *rand.Rand
	leafSize int
	width    int

	perm    []int32
	scratch []int32
	sides   []bool
}

// subset exposes perm[lo:hi] as kmeans.Points.
type subset struct {
	vecs  [][]float32
	slots []int32
}

func (s subset) Len() int            { return len(s.slots) }
func (s subset) At(i int) []float32 { return s.vecs[s.slots[i]] }

func (b *builder) build(ctx context.Context) (*tree, error) {
	n := len(b.vecs)
	b.perm = make([]int32, n)
	for i := range b.perm {
		b.perm[i] = int32(i)
	}
	b.scratch = make([]int32, n)
	b.sides = make([]bool, n)

	t := &tree{}
	stack := []work{{lo: 0, hi: n, parent: Nil}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		h := int32(len(t.nodes))
		if w.parent != Nil {
			if w.right {
				t.nodes[w.parent].Right = h
			} else {
				t.nodes[w.parent].Left = h
			}
		}
		t.depth = max(t.depth, w.depth)

		slots := b.perm[w.lo:w.hi]
		if len(slots) <= b.leafSize {
			start := uint32(len(t.items))
			for _, s := range slots {
				t.items = append(t.items, b.ids[s])
			}
			t.nodes = append(t.nodes, Node{Left: Nil, Right: Nil, Start: start, Count: uint32(len(slots))})
			continue
		}

		plane, nRight := b.split(slots)
		mid := w.lo + b.partition(slots, nRight)

		node := Node{
			Left:     Nil,
			Right:    Nil,
			PlaneOff: uint32(len(t.planes)),
			Bias:     plane.Bias,
			Axis:     plane.Axis,
		}
		t.planes = append(t.planes, plane.Normal...)
		// Random planes carry no normal; pad so every internal node owns width floats.
		for range b.width - len(plane.Normal) {
			t.planes = append(t.planes, 0)
		}
		t.nodes = append(t.nodes, node)

		stack = append(stack,
			work{lo: mid, hi: w.hi, parent: h, right: true, depth: w.depth + 1},
			work{lo: w.lo, hi: mid, parent: h, right: false, depth: w.depth + 1},
		)
	}
	return t, nil
}

// split fills b.sides for slots and returns the chosen plane and the
// number of right-hand items.
func (b *builder) split(slots []int32) (space.Plane, int) {
	pts := subset{vecs: b.vecs, slots: slots}
	sides := b.sides[:len(slots)]

	var plane space.Plane
	nRight := 0
	for range splitAttempts {
		plane = b.sp.Split(pts, b.rng)
		nRight = 0
		for i, s := range slots {
			sides[i] = b.sp.Side(plane, b.vecs[s], b.rng)
			if sides[i] {
				nRight++
			}
		}
		if imbalance(nRight, len(slots)) < maxSplitImbalance {
			return plane, nRight
		}
	}

	for imbalance(nRight, len(slots)) > maxRandImbalance {
		plane = space.RandomPlane()
		nRight = 0
		for i := range slots {
			sides[i] = b.rng.IntN(2) == 1
			if sides[i] {
				nRight++
			}
		}
	}
	return plane, nRight
}

// partition stably moves left items before right items according to
// b.sides and returns the number of left items.
func (b *builder) partition(slots []int32, nRight int) int {
	nLeft := len(slots) - nRight
	l, r := 0, nLeft
	tmp := b.scratch[:len(slots)]
	for i, s := range slots {
		if b.sides[i] {
			tmp[r] = s
			r++
		} else {
			tmp[l] = s
			l++
		}
	}
	copy(slots, tmp)
	return nLeft
}

func imbalance(right, n int) float64 {
	left := n - right
	return float64(max(left, right)) / float64(n)
}

func merge(width int, trees []*tree) *Forest {
	f := &Forest{width: width, roots: make([]int32, len(trees))}

	var nNodes, nPlanes, nItems int
	for _, t := range trees {
		nNodes += len(t.nodes)
		nPlanes += len(t.planes)
		nItems += len(t.items)
	}
	f.nodes = make([]Node, 0, nNodes)
	f.planes = make([]float32, 0, nPlanes)
	f.items = make([]uint32, 0, nItems)

	for i, t := range trees {
		nodeOff := int32(len(f.nodes))
		planeOff := uint32(len(f.planes))
		itemOff := uint32(len(f.items))

		f.roots[i] = nodeOff
		for _, n := range t.nodes {
			if n.IsLeaf() {
				n.Start += itemOff
			} else {
				n.Left += nodeOff
				n.Right += nodeOff
				n.PlaneOff += planeOff
			}
			f.nodes = append(f.nodes, n)
		}
		f.planes = append(f.planes, t.planes...)
		f.items = append(f.items, t.items...)
		f.depth = max(f.depth, t.depth)
	}
	return f
}
