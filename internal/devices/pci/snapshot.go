package pci

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// slotSnapshot captures one registered device's BAR programming state.
type slotSnapshot struct {
	Bus, Dev, Fn uint8
	BARValue     [type0BARCount]uint32
	BARSize      [type0BARCount]uint32
}

// hostBridgeSnapshot is the gob-encoded payload produced by SaveState and
// consumed by LoadState.
type hostBridgeSnapshot struct {
	Slots []slotSnapshot
}

// SaveState captures BAR programming for every registered device slot. This
// is the "saveState" hook variant named in the device registry (§4.2); the
// host bridge does not own the per-endpoint config-space bytes themselves
// (those belong to the endpoint's ConfigSpace implementation), only the
// BAR-window allocation state it tracks on their behalf.
func (h *HostBridge) SaveState() ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.devices) == 0 {
		return nil, false
	}

	snap := hostBridgeSnapshot{Slots: make([]slotSnapshot, 0, len(h.devices))}
	for key, slot := range h.devices {
		snap.Slots = append(snap.Slots, slotSnapshot{
			Bus: key.bus, Dev: key.dev, Fn: key.fn,
			BARValue: slot.barValue,
			BARSize:  slot.barSize,
		})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// LoadState restores BAR programming for every registered device slot that
// is still present; slots named in the blob but no longer registered are
// skipped (the owning endpoint was not reattached this session).
func (h *HostBridge) LoadState(data []byte) error {
	var snap hostBridgeSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("pci host bridge: decode state: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range snap.Slots {
		key := deviceKey{bus: s.Bus, dev: s.Dev, fn: s.Fn}
		slot, ok := h.devices[key]
		if !ok {
			continue
		}
		slot.barValue = s.BARValue
		slot.barSize = s.BARSize
	}
	return nil
}
