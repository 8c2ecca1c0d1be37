// Package forest builds and stores the randomized partition trees.
//
// All trees live in one arena: nodes are addressed by int32 handles,
// hyperplane normals are packed into a flat []float32 and leaf buckets into
// a flat []uint32 of item ids. Trees are built independently (one goroutine
// per tree, bounded by Config.Workers) into private arenas that are merged
// in tree order, so the result only depends on Config.Seed.
//
// Construction is iterative with an explicit work stack; tree depth is not
// bounded by the goroutine stack.
package forest
