// Package usb implements the three USB host-controller models the IO
// worker's device registry aggregates into a single AUSB container blob
// (UHCI, EHCI, xHCI): each controller owns its own port/frame state and
// exposes it through the same SaveState/LoadState shape the pci and virtio
// packages use, so the registry can register them directly as
// snapshot.ControllerHook entries keyed by their AUSB tag.
package usb

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
)

// PortState captures one root-hub port's connect/enable/reset bits.
type PortState struct {
	Connected bool
	Enabled   bool
	LowSpeed  bool
	Suspended bool
}

// UHCI models a Universal Host Controller (USB 1.1), AUSB tag 1.
type UHCI struct {
	mu sync.Mutex

	FrameNumber uint16
	FrameListBase uint32
	Ports       [2]PortState
}

// NewUHCI creates a UHCI controller with its two root-hub ports disconnected.
func NewUHCI() *UHCI { return &UHCI{} }

type uhciSnapshot struct {
	FrameNumber   uint16
	FrameListBase uint32
	Ports         [2]PortState
}

// SaveState is the "save_state" hook variant named in the device registry
// (§4.2 table); it is registered per controller, not via the AUSB container
// directly; the registry's ausb.go encoder aggregates whichever
// controllers' SaveState return ok=true.
func (u *UHCI) SaveState() ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	snap := uhciSnapshot{FrameNumber: u.FrameNumber, FrameListBase: u.FrameListBase, Ports: u.Ports}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// LoadState restores a UHCI controller's frame/port state.
func (u *UHCI) LoadState(data []byte) error {
	var snap uhciSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("uhci: decode state: %w", err)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.FrameNumber, u.FrameListBase, u.Ports = snap.FrameNumber, snap.FrameListBase, snap.Ports
	return nil
}

// EHCI models an Enhanced Host Controller (USB 2.0), AUSB tag 2.
type EHCI struct {
	mu sync.Mutex

	FrameIndex    uint32
	PeriodicBase  uint32
	AsyncListAddr uint32
	Ports         [6]PortState
}

// NewEHCI creates an EHCI controller with its root-hub ports disconnected.
func NewEHCI() *EHCI { return &EHCI{} }

type ehciSnapshot struct {
	FrameIndex    uint32
	PeriodicBase  uint32
	AsyncListAddr uint32
	Ports         [6]PortState
}

// SaveState is the "save_state" hook variant for EHCI.
func (e *EHCI) SaveState() ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := ehciSnapshot{FrameIndex: e.FrameIndex, PeriodicBase: e.PeriodicBase, AsyncListAddr: e.AsyncListAddr, Ports: e.Ports}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// LoadState restores an EHCI controller's state.
func (e *EHCI) LoadState(data []byte) error {
	var snap ehciSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("ehci: decode state: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.FrameIndex, e.PeriodicBase, e.AsyncListAddr, e.Ports = snap.FrameIndex, snap.PeriodicBase, snap.AsyncListAddr, snap.Ports
	return nil
}

// XHCISlot tracks one device slot's address and endpoint-context state.
type XHCISlot struct {
	Address uint8
	Enabled bool
}

// XHCI models an eXtensible Host Controller (USB 3.x), AUSB tag 3.
type XHCI struct {
	mu sync.Mutex

	CommandRingPtr uint64
	EventRingPtr   uint64
	DCBAAPtr       uint64
	Slots          []XHCISlot
	Ports          []PortState
}

// NewXHCI creates an xHCI controller with numPorts root-hub ports.
func NewXHCI(numPorts int) *XHCI {
	return &XHCI{Ports: make([]PortState, numPorts)}
}

type xhciSnapshot struct {
	CommandRingPtr uint64
	EventRingPtr   uint64
	DCBAAPtr       uint64
	Slots          []XHCISlot
	Ports          []PortState
}

// SaveState is the "save_state" hook variant for xHCI.
func (x *XHCI) SaveState() ([]byte, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	snap := xhciSnapshot{
		CommandRingPtr: x.CommandRingPtr,
		EventRingPtr:   x.EventRingPtr,
		DCBAAPtr:       x.DCBAAPtr,
		Slots:          append([]XHCISlot(nil), x.Slots...),
		Ports:          append([]PortState(nil), x.Ports...),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// LoadState restores an xHCI controller's state.
func (x *XHCI) LoadState(data []byte) error {
	var snap xhciSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("xhci: decode state: %w", err)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.CommandRingPtr, x.EventRingPtr, x.DCBAAPtr = snap.CommandRingPtr, snap.EventRingPtr, snap.DCBAAPtr
	x.Slots, x.Ports = snap.Slots, snap.Ports
	return nil
}
