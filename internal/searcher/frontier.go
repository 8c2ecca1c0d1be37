package searcher

// frontierEntry is a forest node waiting to be expanded.
type frontierEntry struct {
	node     int32
	priority float32
}

// before orders the max-heap: higher priority first, then lower handle, so
// traversal order does not depend on push order.
func (a frontierEntry) before(b frontierEntry) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.node < b.node
}

// Frontier is the best-first expansion queue of a forest walk. Sifting
// moves a hole instead of swapping, which halves the writes per level.
type Frontier struct {
	heap []frontierEntry
}

func NewFrontier(capacity int) *Frontier {
	return &Frontier{heap: make([]frontierEntry, 0, capacity)}
}

func (f *Frontier) Len() int { return len(f.heap) }

// Reset empties f and keeps its backing array.
func (f *Frontier) Reset() { f.heap = f.heap[:0] }

func (f *Frontier) Push(node int32, priority float32) {
	e := frontierEntry{node: node, priority: priority}
	f.heap = append(f.heap, e)

	i := len(f.heap) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if !e.before(f.heap[parent]) {
			break
		}
		f.heap[i] = f.heap[parent]
		i = parent
	}
	f.heap[i] = e
}

func (f *Frontier) Pop() (node int32, priority float32, ok bool) {
	n := len(f.heap) - 1
	if n < 0 {
		return 0, 0, false
	}
	top := f.heap[0]
	last := f.heap[n]
	f.heap = f.heap[:n]

	if n > 0 {
		i := 0
		for {
			child := 2*i + 1
			if child >= n {
				break
			}
			if r := child + 1; r < n && f.heap[r].before(f.heap[child]) {
				child = r
			}
			if !f.heap[child].before(last) {
				break
			}
			f.heap[i] = f.heap[child]
			i = child
		}
		f.heap[i] = last
	}
	return top.node, top.priority, true
}
