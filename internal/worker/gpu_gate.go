package worker

import (
	"context"
	"sync"
)

// FenceValue identifies a queued submit_aerogpu command for the
// submit_complete acknowledgment it will eventually receive.
type FenceValue uint64

// QueuedCommand is one submit_aerogpu command queued while the GPU worker
// is pausing, to be dispatched to the presenter only after resume.
type QueuedCommand struct {
	Fence FenceValue
	Data  []byte
}

// Presenter is the pluggable GPU backend external collaborator (§1): the
// present/screenshot/telemetry hooks the GPU worker's pause gate must drain
// before acknowledging a pause.
type Presenter interface {
	Present(ctx context.Context) error
	Screenshot(ctx context.Context) error
}

// PauseGate implements the GPU worker's pause discipline (§4.3): queued
// submit_aerogpu dispatch, gated tick/present/screenshot/telemetry
// completion, and globally-published scanout/cursor handle withdrawal.
type PauseGate struct {
	mu sync.Mutex

	presenter Presenter

	queued []QueuedCommand

	scanoutPublished bool
	cursorPublished  bool

	inFlightPresent    chan struct{}
	inFlightScreenshot chan struct{}
	inFlightTelemetry  chan struct{}
}

// NewPauseGate creates a GPU pause gate bound to a presenter.
func NewPauseGate(presenter Presenter) *PauseGate {
	return &PauseGate{presenter: presenter}
}

// QueueSubmit records a submit_aerogpu command while pausing instead of
// dispatching it to the presenter; Drain/resume later flushes the queue.
func (g *PauseGate) QueueSubmit(cmd QueuedCommand) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queued = append(g.queued, cmd)
}

// TakeQueued returns and clears the queued commands, along with their fence
// values for emitting deferred submit_complete acknowledgments after resume.
func (g *PauseGate) TakeQueued() []QueuedCommand {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.queued
	g.queued = nil
	return out
}

// BeginPresent marks a present() call in flight; the returned done func
// must be called when it resolves. Drain blocks on this channel.
func (g *PauseGate) BeginPresent() (done func()) {
	g.mu.Lock()
	ch := make(chan struct{})
	g.inFlightPresent = ch
	g.mu.Unlock()
	return func() { close(ch) }
}

// BeginScreenshot mirrors BeginPresent for screenshot().
func (g *PauseGate) BeginScreenshot() (done func()) {
	g.mu.Lock()
	ch := make(chan struct{})
	g.inFlightScreenshot = ch
	g.mu.Unlock()
	return func() { close(ch) }
}

// BeginTelemetry mirrors BeginPresent for an in-flight telemetry tick.
func (g *PauseGate) BeginTelemetry() (done func()) {
	g.mu.Lock()
	ch := make(chan struct{})
	g.inFlightTelemetry = ch
	g.mu.Unlock()
	return func() { close(ch) }
}

// Drain implements DrainFunc for the GPU worker: an in-flight present(),
// screenshot(), or mid-call telemetry hook must finish before pause can be
// acknowledged (§4.3).
func (g *PauseGate) Drain(ctx context.Context) error {
	g.mu.Lock()
	present, screenshot, telemetry := g.inFlightPresent, g.inFlightScreenshot, g.inFlightTelemetry
	g.mu.Unlock()

	for _, ch := range []chan struct{}{present, screenshot, telemetry} {
		if ch == nil {
			continue
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Withdraw implements GlobalsGate: clears the published scanout/cursor
// handles, rechecking the pause flag before each withdrawal step so a
// racing resume cannot be overwritten by a stale clear.
func (g *PauseGate) Withdraw(ctx context.Context, stillPausing func() bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if stillPausing() {
		g.scanoutPublished = false
	}
	if stillPausing() {
		g.cursorPublished = false
	}
	return nil
}

// Publish implements GlobalsGate: re-publishes the scanout/cursor handles
// on resume.
func (g *PauseGate) Publish(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scanoutPublished = true
	g.cursorPublished = true
	return nil
}

// ScanoutPublished reports whether the scanout buffer handle is currently
// published, for tests and for gating guest-observable scanout writes.
func (g *PauseGate) ScanoutPublished() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scanoutPublished
}

// CursorPublished mirrors ScanoutPublished for the cursor buffer handle.
func (g *PauseGate) CursorPublished() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cursorPublished
}
