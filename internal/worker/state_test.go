package worker

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingGate struct {
	mu        sync.Mutex
	withdrawn bool
	published bool
}

func (g *recordingGate) Withdraw(ctx context.Context, stillPausing func() bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if stillPausing() {
		g.withdrawn = true
	}
	return nil
}

func (g *recordingGate) Publish(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.published = true
	return nil
}

func (g *recordingGate) Withdrawn() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.withdrawn
}

func (g *recordingGate) Published() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.published
}

func TestPauseWaitsForDrain(t *testing.T) {
	started := make(chan struct{})
	finish := make(chan struct{})
	var sideEffect int32

	drain := func(ctx context.Context) error {
		close(started)
		<-finish
		sideEffect = 1
		return nil
	}

	gate := &recordingGate{}
	c := NewCoordinator(nil, []DrainFunc{drain}, []GlobalsGate{gate})
	c.Init()

	done := make(chan error, 1)
	go func() {
		done <- c.Pause(context.Background())
	}()

	<-started
	if sideEffect != 0 {
		t.Fatalf("drain side effect observed before pause ack")
	}
	close(finish)

	if err := <-done; err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
	if sideEffect != 1 {
		t.Fatalf("pause acked before drain completed")
	}
	if c.State() != StatePaused {
		t.Fatalf("expected paused, got %s", c.State())
	}
	if !gate.Withdrawn() {
		t.Fatalf("expected globals withdrawn on pause")
	}
}

func TestPauseResumeRaceAlwaysEndsPublished(t *testing.T) {
	for i := 0; i < 50; i++ {
		release := make(chan struct{})
		drain := func(ctx context.Context) error {
			<-release
			return nil
		}
		gate := &recordingGate{}
		c := NewCoordinator(nil, []DrainFunc{drain}, []GlobalsGate{gate})
		c.Init()

		pauseDone := make(chan error, 1)
		go func() {
			pauseDone <- c.Pause(context.Background())
		}()

		time.Sleep(time.Millisecond)
		resumeDone := make(chan error, 1)
		go func() {
			resumeDone <- c.Resume(context.Background())
		}()

		time.Sleep(time.Millisecond)
		close(release)

		if err := <-pauseDone; err != nil {
			t.Fatalf("pause error: %v", err)
		}
		if err := <-resumeDone; err != nil {
			t.Fatalf("resume error: %v", err)
		}

		if !gate.Published() {
			t.Fatalf("iteration %d: expected globals published after racing resume", i)
		}
	}
}

func TestPauseBeforeInit(t *testing.T) {
	gate := &recordingGate{}
	c := NewCoordinator(nil, nil, []GlobalsGate{gate})

	if err := c.Pause(context.Background()); err != nil {
		t.Fatalf("pause before init: %v", err)
	}
	if c.State() != StatePaused {
		t.Fatalf("expected paused immediately, got %s", c.State())
	}
	if gate.Withdrawn() {
		t.Fatalf("no globals should be withdrawn before init")
	}

	c.Init()
	if c.PauseRequested() == false {
		t.Fatalf("pause flag should remain set across init")
	}

	if err := c.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if c.State() != StateRunning {
		t.Fatalf("expected running after resume, got %s", c.State())
	}
}

func TestChainSerializesOperations(t *testing.T) {
	chain := NewChain()
	var order []int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = chain.Run(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				return nil
			})
		}()
	}
	wg.Wait()

	if len(order) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(order))
	}
}
