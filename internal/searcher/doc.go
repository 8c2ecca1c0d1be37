// Package searcher implements best-first forest traversal and exact top-k
// re-ranking.
//
// A search seeds a max-priority queue with every tree root, repeatedly pops
// the most promising node, descends into both children of internal nodes
// (the far side with a penalized priority) and scores leaf items until the
// candidate budget is spent or the queue runs dry. Items reachable through
// several trees are scored once. Results are ordered by ascending distance,
// ties by ascending id.
package searcher
