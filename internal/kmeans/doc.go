// Package kmeans implements the two-centroid clustering used to derive
// splitting hyperplanes while building the partition forest.
package kmeans
