// Package vecforest provides an embedded approximate nearest neighbor index
// built from a forest of random projection trees, with tag filtering.
//
// Every item has a sparse uint32 id, a dense float32 vector and a small set
// of tag ids from [0, nTags). Queries return the k nearest items, optionally
// restricted to items carrying any (default) or all (WithMatchAll) of a set
// of query tags.
//
// # Quick Start
//
//	ctx := context.Background()
//	idx, _ := vecforest.New(128, distance.MetricAngular, 64)
//	_ = idx.AddItemWithTags(ctx, 7, vector, []uint32{3, 12})
//	_ = idx.Build(ctx, 10)
//
//	ids, _ := idx.NNsByVector(ctx, query, 10)
//	ids, _ = idx.NNsByVectorAndTags(ctx, query, []uint32{3}, 10)
//	ids, _ = idx.NNsByVectorAndTags(ctx, query, []uint32{3, 12}, 10, vecforest.WithMatchAll())
//
// # Lifecycle
//
// An index accepts AddItem and AddItemWithTags until Build. Build grows the
// trees in parallel and freezes the items; afterwards adds fail with
// ErrAlreadyBuilt and queries may run from any number of goroutines.
// Unbuild drops the forest so more items can be added and the index built
// again.
//
// # Metrics
//
// Five metrics are supported: angular, euclidean, manhattan, dot and hamming.
// The *WithDistances queries report metric-natural distances. For dot that is
// the dot product itself, so larger values are closer.
//
// # Candidate Budget
//
// A query scores at most k*trees distinct items by default (WithSearchK
// overrides it). Tag-filtered queries multiply the budget by the filter
// multiplier and count only matching items against it. Filters matching few
// items are answered exactly by scoring the matches directly.
//
// # Persistence
//
// A built index is saved as a single checksummed file:
//
//	_ = idx.Save(ctx, "./index.vfst")
//	idx, _ = vecforest.Load(ctx, "./index.vfst")
//
// SaveTo and LoadFrom write to any blobstore.BlobStore (local, memory, S3,
// MinIO); WriteTo and ReadIndex work on plain streams.
package vecforest
