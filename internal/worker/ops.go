package worker

import "context"

// Chain is the per-worker snapshot-op chain: a single-threaded cooperative
// serial queue ensuring at most one save/restore operation runs at a time.
// Each submission runs to completion (success or error) before the next
// begins; errors are reported per-request and do not poison the chain for
// subsequent submissions. Implemented as a bounded channel acting as a
// lock-free mutex, per DESIGN NOTES ("do not use locks").
type Chain struct {
	slot chan struct{}
}

// NewChain creates an empty, idle chain.
func NewChain() *Chain {
	c := &Chain{slot: make(chan struct{}, 1)}
	c.slot <- struct{}{}
	return c
}

// Run enqueues fn, waiting for any operation ahead of it to finish, then
// runs fn to completion and releases the chain.
func (c *Chain) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case <-c.slot:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { c.slot <- struct{}{} }()
	return fn(ctx)
}

// Busy reports whether an operation is currently running on the chain,
// without blocking.
func (c *Chain) Busy() bool {
	select {
	case <-c.slot:
		c.slot <- struct{}{}
		return false
	default:
		return true
	}
}
