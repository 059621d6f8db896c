// Package worker implements the per-worker snapshot pause/resume state
// machine, the GPU pause gate, the IO disk-I/O chain drain, and the
// shared-memory ring wake discipline that the CPU/GPU/IO/NET workers use to
// coordinate snapshot pause/resume/save/restore with the coordinator.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// SnapshotState is one of the four states in the per-worker snapshot state
// machine (§4.1).
type SnapshotState int32

const (
	StateRunning SnapshotState = iota
	StatePausing
	StatePaused
	StateResuming
)

func (s SnapshotState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePausing:
		return "pausing"
	case StatePaused:
		return "paused"
	case StateResuming:
		return "resuming"
	default:
		return fmt.Sprintf("SnapshotState(%d)", int32(s))
	}
}

// DrainFunc blocks until one class of in-flight work (GPU present/screenshot
// /telemetry, the IO disk-I/O chain, the CPU snapshot-op chain) is
// quiescent. It is called while the pause flag is already set, so any work
// that starts after DrainFunc begins observes the pause flag and declines to
// start new guest-observable work.
type DrainFunc func(ctx context.Context) error

// GlobalsGate is the worker-scoped registry of shared-state globals that
// must be withdrawn on pause and republished on resume (scanout/cursor
// buffers in the GPU worker, the USB proxy completion-ring dispatch flag in
// the IO worker). Modeled per DESIGN NOTES as explicit publish()/withdraw()
// calls rather than bare module-level variable assignment.
type GlobalsGate interface {
	// Withdraw clears published globals. It must recheck the pause flag
	// immediately before each withdrawal step so a resume racing in after
	// Withdraw began cannot be clobbered by a stale withdrawal (§4.1).
	Withdraw(ctx context.Context, stillPausing func() bool) error
	// Publish re-publishes globals cleared by Withdraw.
	Publish(ctx context.Context) error
}

// Coordinator drives one worker's snapshot pause/resume state machine.
//
// Pause and Resume are NOT serialized against each other. §4.1 only
// requires save/restore RPCs to share a serial chain (see Chain in
// ops.go). Pause/resume race safety instead comes from the pause flag plus
// the recheck-before-each-step discipline below, the goroutine-based
// equivalent of a single-threaded event loop's run-to-completion steps.
type Coordinator struct {
	logger *slog.Logger

	state atomic.Int32 // SnapshotState

	// pauseFlag is read by producers of guest-observable work to decide
	// whether to start new work; it is set synchronously by Pause before
	// any draining begins, satisfying "entering pausing is synchronous".
	pauseFlag atomic.Bool

	// pauseBeforeInit records a pause requested before Init was observed,
	// per §4.1 "Pause RPCs received before init are honored".
	pauseBeforeInit atomic.Bool
	initialized     atomic.Bool

	drains []DrainFunc
	gates  []GlobalsGate
}

// NewCoordinator creates a snapshot coordinator in the initial running
// state. drains are run, in order, whenever a pause is requested; gates are
// withdrawn on pause and republished on resume, in registration order.
func NewCoordinator(logger *slog.Logger, drains []DrainFunc, gates []GlobalsGate) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		logger: logger,
		drains: drains,
		gates:  gates,
	}
}

// State returns the current snapshot state.
func (c *Coordinator) State() SnapshotState {
	return SnapshotState(c.state.Load())
}

// PauseRequested reports whether the pause flag is currently set. This is
// the signal producers of guest-observable work must consult before
// starting new work.
func (c *Coordinator) PauseRequested() bool {
	return c.pauseFlag.Load()
}

// Init marks the worker initialized. If a pause was requested before Init
// was observed, the worker must not re-publish globals until a matching
// resume arrives; Init does not itself call Publish.
func (c *Coordinator) Init() {
	c.initialized.Store(true)
}

// Pause runs the pause transition: set the pause flag synchronously, then
// await every drain function, then withdraw globals, then settle into
// paused. Per §4.1 the acknowledgment (this call returning nil) is deferred
// until every class of in-flight work is quiescent.
//
// If Pause is called before Init, the pause flag is set and Pause returns
// immediately with the state left in paused; there is no in-flight work to
// drain yet, and pauseBeforeInit is recorded so the eventual Init does not
// republish the globals Resume would otherwise need to re-enable.
func (c *Coordinator) Pause(ctx context.Context) error {
	if !c.initialized.Load() {
		c.pauseFlag.Store(true)
		c.pauseBeforeInit.Store(true)
		c.state.Store(int32(StatePaused))
		return nil
	}

	c.pauseFlag.Store(true)
	c.state.Store(int32(StatePausing))

	for _, drain := range c.drains {
		if err := drain(ctx); err != nil {
			return fmt.Errorf("worker: pause drain failed: %w", err)
		}
		// Recheck between drains: if a resume raced in and already
		// cleared the pause flag, stop driving withdrawal and let
		// Resume's own publish stand (§4.1 resume-race safety).
		if !c.pauseFlag.Load() {
			return nil
		}
	}

	for _, gate := range c.gates {
		if err := gate.Withdraw(ctx, c.PauseRequested); err != nil {
			return fmt.Errorf("worker: pause withdraw failed: %w", err)
		}
	}

	// Only settle into paused if nothing resumed us while draining; a
	// racing Resume already moved the state to running/resuming and owns
	// the transition from here.
	if c.pauseFlag.Load() {
		c.state.Store(int32(StatePaused))
	}
	return nil
}

// Resume runs the resume transition: clear the pause flag, republish
// globals, and settle into running. Resume is safe to call while a pause is
// still draining (the coordinator-timeout race in §4.1): clearing the flag
// first means any drain loop still in flight will notice on its next
// recheck and skip withdrawing, so Resume's own Publish is never clobbered
// by a late Withdraw.
func (c *Coordinator) Resume(ctx context.Context) error {
	wasPausedBeforeInit := c.pauseBeforeInit.Load()
	c.pauseFlag.Store(false)
	c.state.Store(int32(StateResuming))
	c.pauseBeforeInit.Store(false)

	if wasPausedBeforeInit && !c.initialized.Load() {
		// A resume arrived before init ever completed; there is nothing
		// to republish yet. Init, once it runs, will find the pause flag
		// clear and proceed normally.
		c.state.Store(int32(StateRunning))
		return nil
	}

	for _, gate := range c.gates {
		if err := gate.Publish(ctx); err != nil {
			return fmt.Errorf("worker: resume publish failed: %w", err)
		}
	}

	c.state.Store(int32(StateRunning))
	return nil
}
