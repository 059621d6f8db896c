package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

// DiskChain represents disk_io_chain: the tail of a linearizable queue of
// outstanding disk operations. Enqueue appends a new tail that depends on
// (but does not block) the previous one; Drain implements the §4.4
// fixed-point wait.
type DiskChain struct {
	mu   sync.Mutex
	tail chan struct{}
}

// NewDiskChain creates an already-quiescent disk chain.
func NewDiskChain() *DiskChain {
	ch := make(chan struct{})
	close(ch)
	return &DiskChain{tail: ch}
}

// Enqueue appends op to the chain without blocking: op starts once every
// operation queued before it has finished, and the chain's new tail closes
// when op completes. Enqueue returns nothing; Drain is what waits on the
// tail.
func (c *DiskChain) Enqueue(op func(ctx context.Context) error) {
	c.mu.Lock()
	prev := c.tail
	next := make(chan struct{})
	c.tail = next
	c.mu.Unlock()

	go func() {
		<-prev
		_ = op(context.Background())
		close(next)
	}()
}

func (c *DiskChain) currentTail() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tail
}

// Drain implements the IO worker's §4.4 fixed-point wait: observe the
// current tail, await it, then re-read the chain. If it grew while
// awaiting (new disk operations were enqueued), await the new tail too,
// repeating until the chain is unchanged across one full await.
func (c *DiskChain) Drain(ctx context.Context) error {
	for {
		tail := c.currentTail()
		select {
		case <-tail:
		case <-ctx.Done():
			return ctx.Err()
		}
		if c.currentTail() == tail {
			return nil
		}
	}
}

// USBProxyGate models "set USB proxy completion-ring dispatch paused flag"
// from §4.4 step 2: a simple pausable gate blocking completions that touch
// guest memory.
type USBProxyGate struct {
	paused atomic.Bool
}

// SetPaused sets or clears the USB proxy completion-ring dispatch pause.
func (g *USBProxyGate) SetPaused(v bool) {
	g.paused.Store(v)
}

// Paused reports the current pause state.
func (g *USBProxyGate) Paused() bool {
	return g.paused.Load()
}
