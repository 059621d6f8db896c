package worker

import (
	"context"
	"time"
)

// ParkInterval is the suggested bounded-wait duration workers use when
// parking on their command ring (§4.5).
const ParkInterval = 250 * time.Millisecond

// Ring models a worker's command ring: a head-index-driven wake signal plus
// a bounded park fallback. The concrete ring buffer (backed by a
// control-region SharedRegion) is an external-collaborator detail; Ring
// only captures the wake/park discipline workers layer on top of it.
type Ring struct {
	wake chan struct{}
}

// NewRing creates a ring with an empty wake channel.
func NewRing() *Ring {
	return &Ring{wake: make(chan struct{}, 1)}
}

// Wake signals that new work may be available, derived from the ring's head
// index advancing. Non-blocking: a pending signal is coalesced.
func (r *Ring) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Park blocks until Wake is called, the bounded interval elapses, or ctx is
// done, whichever comes first. It returns true if woken by a signal (as
// opposed to the bounded-wait timeout).
func (r *Ring) Park(ctx context.Context) (woken bool) {
	timer := time.NewTimer(ParkInterval)
	defer timer.Stop()
	select {
	case <-r.wake:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// StopSignal is the shutdown control flag: once set, a worker must observe
// it within one wake cycle (§6 "a worker exits when StopRequested == 1 is
// observed").
type StopSignal struct {
	status *StatusFlags
	wake   chan struct{}
}

// NewStopSignal wires a stop signal to the shared status flags.
func NewStopSignal(status *StatusFlags) *StopSignal {
	return &StopSignal{status: status, wake: make(chan struct{}, 1)}
}

// Request sets StopRequested and wakes any parked waiter immediately.
func (s *StopSignal) Request() {
	s.status.SetStopRequested()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// WaitChan exposes the wake channel for select-based wait loops.
func (s *StopSignal) WaitChan() <-chan struct{} {
	return s.wake
}

// NetWorkerLoop models the NET worker's §4.5 requirement: it must park on
// both the command ring and a pending-RX condition so a shutdown arriving
// while RX is blocked still wakes within much less than the pending-RX
// timeout. RunOnce selects across all three sources and returns which woke
// it (or that the context was canceled).
type NetWorkerLoop struct {
	commandRing *Ring
	pendingRX   *Ring
	stop        *StopSignal
}

// NewNetWorkerLoop creates a NET worker wake loop over the given ring
// sources.
func NewNetWorkerLoop(commandRing, pendingRX *Ring, stop *StopSignal) *NetWorkerLoop {
	return &NetWorkerLoop{commandRing: commandRing, pendingRX: pendingRX, stop: stop}
}

// WakeReason identifies which source woke a NetWorkerLoop.RunOnce call.
type WakeReason int

const (
	WakeNone WakeReason = iota
	WakeCommand
	WakePendingRX
	WakeShutdown
	WakeTimeout
)

// RunOnce blocks until one of: a command-ring wake, a pending-RX wake, a
// shutdown request, the bounded park interval, or ctx cancellation.
func (l *NetWorkerLoop) RunOnce(ctx context.Context) WakeReason {
	timer := time.NewTimer(ParkInterval)
	defer timer.Stop()

	select {
	case <-l.stop.WaitChan():
		return WakeShutdown
	case <-l.commandRing.wake:
		return WakeCommand
	case <-l.pendingRX.wake:
		return WakePendingRX
	case <-timer.C:
		return WakeTimeout
	case <-ctx.Done():
		return WakeNone
	}
}
