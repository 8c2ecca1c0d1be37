// Package resource enforces index-wide limits.
//
// A Controller accounts item storage and forest arenas against a memory
// ceiling, hands out tree-build slots (it satisfies forest.Gate), and
// throttles save and load streams with a token bucket. Memory reservations
// fail fast; worker and IO acquisition wait on a context.
//
//	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 30})
//	if err := rc.AcquireMemory(n); err != nil {
//		return err
//	}
//	defer rc.ReleaseMemory(n)
package resource
