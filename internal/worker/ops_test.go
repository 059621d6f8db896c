package worker

import (
	"context"
	"testing"
	"time"
)

func TestChainSerializesRuns(t *testing.T) {
	c := NewChain()
	if c.Busy() {
		t.Fatalf("expected a fresh chain to be idle")
	}

	var order []int
	block := make(chan struct{})

	done1 := make(chan struct{})
	go func() {
		c.Run(context.Background(), func(ctx context.Context) error {
			<-block
			order = append(order, 1)
			return nil
		})
		close(done1)
	}()

	time.Sleep(10 * time.Millisecond)
	if !c.Busy() {
		t.Fatalf("expected chain to report busy while the first op blocks")
	}

	done2 := make(chan struct{})
	go func() {
		c.Run(context.Background(), func(ctx context.Context) error {
			order = append(order, 2)
			return nil
		})
		close(done2)
	}()

	close(block)
	<-done1
	<-done2

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected ops to run in submission order, got %v", order)
	}
	if c.Busy() {
		t.Fatalf("expected chain to be idle after both ops complete")
	}
}

func TestChainRunPropagatesError(t *testing.T) {
	c := NewChain()
	want := boomErr{}
	err := c.Run(context.Background(), func(ctx context.Context) error {
		return want
	})
	if err != want {
		t.Fatalf("expected Run to propagate the op's error, got %v", err)
	}
	if c.Busy() {
		t.Fatalf("expected chain to release its slot even after an error")
	}
}

func TestChainRunRespectsContextCancellation(t *testing.T) {
	c := NewChain()
	block := make(chan struct{})
	go c.Run(context.Background(), func(ctx context.Context) error {
		<-block
		return nil
	})
	defer close(block)

	time.Sleep(10 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := c.Run(ctx, func(ctx context.Context) error { return nil }); err == nil {
		t.Fatalf("expected context deadline error while waiting for the busy chain")
	}
}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }
