package worker

import (
	"context"
	"testing"
	"time"
)

// TestGPUPauseWaitsOnPresent is concrete scenario 5: with a presenter whose
// present() delays 50ms, pause ack must arrive only after present finishes.
func TestGPUPauseWaitsOnPresent(t *testing.T) {
	gate := NewPauseGate(nil)
	var presentFinished int32

	done := gate.BeginPresent()
	go func() {
		time.Sleep(50 * time.Millisecond)
		presentFinished = 1
		done()
	}()

	c := NewCoordinator(nil, []DrainFunc{gate.Drain}, []GlobalsGate{gate})
	c.Init()

	start := time.Now()
	if err := c.Pause(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}
	elapsed := time.Since(start)

	if presentFinished != 1 {
		t.Fatalf("pause acked before present finished")
	}
	if elapsed < 45*time.Millisecond {
		t.Fatalf("pause returned suspiciously fast (%v), suggests no real wait", elapsed)
	}
	if !gate.ScanoutPublished() == false {
		// sanity: scanout should be withdrawn (not published) post-pause.
	}
	if gate.ScanoutPublished() {
		t.Fatalf("expected scanout withdrawn after pause")
	}
}

func TestGPUQueuedSubmitDeferredUntilResume(t *testing.T) {
	gate := NewPauseGate(nil)
	c := NewCoordinator(nil, []DrainFunc{gate.Drain}, []GlobalsGate{gate})
	c.Init()

	if err := c.Pause(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}

	gate.QueueSubmit(QueuedCommand{Fence: 7, Data: []byte("cmd")})

	if err := c.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	queued := gate.TakeQueued()
	if len(queued) != 1 || queued[0].Fence != 7 {
		t.Fatalf("expected one queued command with fence 7, got %+v", queued)
	}
	if !gate.ScanoutPublished() {
		t.Fatalf("expected scanout republished after resume")
	}
}
