package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned by AcquireMemory when the reservation
// would push accounted memory past the limit.
var ErrMemoryLimitExceeded = errors.New("resource: memory limit exceeded")

// Config holds index-wide limits. Zero disables a limit.
type Config struct {
	MemoryLimitBytes   int64 // hard cap on accounted memory
	MaxWorkers         int64 // concurrent tree builds
	IOLimitBytesPerSec int64 // save and load throughput
}

// Controller enforces a Config. A nil *Controller enforces nothing, so
// callers never need to check for one.
type Controller struct {
	mem     budget
	workers *semaphore.Weighted
	io      *rate.Limiter
}

func NewController(cfg Config) *Controller {
	c := &Controller{mem: budget{limit: cfg.MemoryLimitBytes}}
	if cfg.MaxWorkers > 0 {
		c.workers = semaphore.NewWeighted(cfg.MaxWorkers)
	}
	if bps := cfg.IOLimitBytesPerSec; bps > 0 {
		// One second of traffic fits in the bucket.
		c.io = rate.NewLimiter(rate.Limit(bps), int(bps))
	}
	return c
}

// budget is a lock-free byte counter with an optional ceiling.
type budget struct {
	limit int64
	used  atomic.Int64
}

func (b *budget) reserve(n int64) bool {
	for {
		cur := b.used.Load()
		if b.limit > 0 && cur+n > b.limit {
			return false
		}
		if b.used.CompareAndSwap(cur, cur+n) {
			return true
		}
	}
}

// AcquireMemory reserves n bytes. It never blocks; on
// ErrMemoryLimitExceeded nothing is reserved.
func (c *Controller) AcquireMemory(n int64) error {
	if c == nil || n <= 0 {
		return nil
	}
	if !c.mem.reserve(n) {
		return ErrMemoryLimitExceeded
	}
	return nil
}

// ReleaseMemory returns n bytes obtained from AcquireMemory.
func (c *Controller) ReleaseMemory(n int64) {
	if c != nil && n > 0 {
		c.mem.used.Add(-n)
	}
}

// MemoryUsage is the number of bytes currently reserved.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.mem.used.Load()
}

// MemoryLimit is the configured ceiling, 0 when unlimited.
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.mem.limit
}

// AcquireWorker blocks until a build slot frees up or ctx ends.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil || c.workers == nil {
		return nil
	}
	return c.workers.Acquire(ctx, 1)
}

func (c *Controller) ReleaseWorker() {
	if c != nil && c.workers != nil {
		c.workers.Release(1)
	}
}

// AcquireIO waits until n bytes of throughput are available. Requests
// above the bucket size are paid for in bucket-sized installments.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.io == nil {
		return nil
	}
	for step := c.io.Burst(); n > 0; n -= step {
		if err := c.io.WaitN(ctx, min(n, step)); err != nil {
			return err
		}
	}
	return nil
}
