package worker

import (
	"context"
	"sync/atomic"
)

// IOPauseController drives the IO worker's §4.4 pause sequence: block new
// IO, pause USB proxy completion dispatch, then fixed-point drain the
// disk-I/O chain. It is wired as both a DrainFunc (for Coordinator.Pause)
// and a GlobalsGate (the USB proxy dispatch flag is the IO worker's
// shared-state global, per DESIGN NOTES).
type IOPauseController struct {
	snapshotPaused atomic.Bool
	usbProxy       USBProxyGate
	disk           *DiskChain
}

// NewIOPauseController creates a pause controller bound to a disk chain.
func NewIOPauseController(disk *DiskChain) *IOPauseController {
	return &IOPauseController{disk: disk}
}

// SnapshotPaused reports whether new IO is currently blocked.
func (c *IOPauseController) SnapshotPaused() bool {
	return c.snapshotPaused.Load()
}

// Drain implements DrainFunc: sets the snapshot-paused flag (blocking new
// IO), then awaits the disk-I/O chain's fixed point.
func (c *IOPauseController) Drain(ctx context.Context) error {
	c.snapshotPaused.Store(true)
	return c.disk.Drain(ctx)
}

// Withdraw implements GlobalsGate: pauses USB proxy completion-ring
// dispatch, rechecking the pause flag first per the recheck discipline.
func (c *IOPauseController) Withdraw(ctx context.Context, stillPausing func() bool) error {
	if stillPausing() {
		c.usbProxy.SetPaused(true)
	}
	return nil
}

// Publish implements GlobalsGate: resumes USB proxy completion-ring
// dispatch and clears the snapshot-paused flag.
func (c *IOPauseController) Publish(ctx context.Context) error {
	c.usbProxy.SetPaused(false)
	c.snapshotPaused.Store(false)
	return nil
}
