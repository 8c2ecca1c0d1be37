// Package distance defines the Metric an index is built with and the
// float32 kernels behind it.
//
// Reported distances follow the usual conventions: angular is
// sqrt(2-2cos), euclidean is L2, manhattan is L1, hamming counts
// differing binarized components, and dot reports the raw inner product
// where larger means closer. Dot, Norm and the in-place scaling helpers
// run on gonum's pure Go BLAS; the element-wise kernels are plain loops
// the compiler vectorizes well enough.
//
//	m, err := distance.ParseMetric("euclidean")
package distance
