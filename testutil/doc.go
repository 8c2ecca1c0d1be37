// Package testutil generates reproducible datasets and brute-force ground
// truth for tests and benchmarks.
//
//	rng := testutil.NewRNG(42)
//	vecs := rng.ClusteredVectors(1000, 16, 8, 0.05)
//	truth := testutil.ExactTopK(vecs[0], ids, vecs, 10, distance.SquaredL2, nil)
//	recall := testutil.ComputeRecall(truth, got)
package testutil
