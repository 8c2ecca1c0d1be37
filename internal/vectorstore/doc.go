// Package vectorstore holds item vectors and tag sets for the forest.
//
// # Layout
//
// Vectors are stored contiguously in a single []float32 slice (slot-major),
// so the vector of slot s is data[s*dim : (s+1)*dim]. Item ids are sparse:
// an id -> slot map resolves lookups and ids[s] maps back. Tag sets are kept
// in CSR form (offsets + flat values), deduplicated and sorted ascending.
// Each tag additionally owns a roaring posting list of the item ids carrying
// it, which the tag filter compiles into allowed-id bitmaps.
//
// # Concurrency
//
// The store is safe for concurrent read access. Add requires external
// synchronization and must not run concurrently with readers.
package vectorstore
