package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestDiskChainDrainsSingleOp(t *testing.T) {
	chain := NewDiskChain()
	var ran atomic.Bool
	chain.Enqueue(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := chain.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if !ran.Load() {
		t.Fatalf("expected enqueued op to have run before Drain returned")
	}
}

// TestDiskChainDrainFixedPoint exercises the §4.4 requirement that Drain
// keeps waiting if new operations are enqueued while it awaits the current
// tail, only returning once the chain is unchanged across a full await.
func TestDiskChainDrainFixedPoint(t *testing.T) {
	chain := NewDiskChain()
	var count atomic.Int32

	chain.Enqueue(func(ctx context.Context) error {
		count.Add(1)
		// Enqueue a second op while the first is still running, simulating
		// a new disk operation arriving mid-drain.
		chain.Enqueue(func(ctx context.Context) error {
			count.Add(1)
			return nil
		})
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := chain.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if count.Load() != 2 {
		t.Fatalf("expected both ops to have completed, got count=%d", count.Load())
	}
}

func TestDiskChainDrainRespectsContext(t *testing.T) {
	chain := NewDiskChain()
	block := make(chan struct{})
	chain.Enqueue(func(ctx context.Context) error {
		<-block
		return nil
	})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := chain.Drain(ctx); err == nil {
		t.Fatalf("expected context deadline error")
	}
}

func TestUSBProxyGate(t *testing.T) {
	var g USBProxyGate
	if g.Paused() {
		t.Fatalf("expected gate to start unpaused")
	}
	g.SetPaused(true)
	if !g.Paused() {
		t.Fatalf("expected gate to report paused")
	}
	g.SetPaused(false)
	if g.Paused() {
		t.Fatalf("expected gate to report unpaused after clearing")
	}
}

func TestIOPauseControllerSequence(t *testing.T) {
	disk := NewDiskChain()
	ctrl := NewIOPauseController(disk)

	ctx := context.Background()
	if err := ctrl.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if !ctrl.SnapshotPaused() {
		t.Fatalf("expected snapshot-paused flag set after Drain")
	}

	if err := ctrl.Withdraw(ctx, func() bool { return true }); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if !ctrl.usbProxy.Paused() {
		t.Fatalf("expected usb proxy dispatch paused after Withdraw")
	}

	if err := ctrl.Publish(ctx); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if ctrl.usbProxy.Paused() {
		t.Fatalf("expected usb proxy dispatch resumed after Publish")
	}
	if ctrl.SnapshotPaused() {
		t.Fatalf("expected snapshot-paused flag cleared after Publish")
	}
}

// TestIOPauseControllerWithdrawRechecksPauseFlag ensures a racing resume
// (stillPausing returning false) prevents Withdraw from pausing the USB
// proxy gate, matching the recheck discipline in gpu_gate.go/state.go.
func TestIOPauseControllerWithdrawRechecksPauseFlag(t *testing.T) {
	disk := NewDiskChain()
	ctrl := NewIOPauseController(disk)

	if err := ctrl.Withdraw(context.Background(), func() bool { return false }); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if ctrl.usbProxy.Paused() {
		t.Fatalf("expected a racing resume to prevent the USB proxy from pausing")
	}
}
