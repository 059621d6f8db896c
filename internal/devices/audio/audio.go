// Package audio implements the two audio controller models the device
// registry saves/restores independently (no shared container, unlike USB
// and virtio-input): the Intel HD Audio codec (kind audio.hda, numeric id
// 3) and the virtio-sound device (kind audio.virtio_snd, numeric id 4).
// Both follow the gob-snapshot idiom the pci and virtio packages use.
package audio

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
)

// HDA models an Intel HD Audio codec's stream descriptor state.
type HDA struct {
	mu sync.Mutex

	GlobalCtl    uint32
	StreamFormat uint16
	BDLBase      uint64
	LPIB         uint32
}

// NewHDA creates an idle HDA controller.
func NewHDA() *HDA { return &HDA{} }

type hdaSnapshot struct {
	GlobalCtl    uint32
	StreamFormat uint16
	BDLBase      uint64
	LPIB         uint32
}

// SaveState is the "save_state" hook variant named for audio.hda in the
// device registry (§4.2 table).
func (h *HDA) SaveState() ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := hdaSnapshot{GlobalCtl: h.GlobalCtl, StreamFormat: h.StreamFormat, BDLBase: h.BDLBase, LPIB: h.LPIB}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// LoadState restores HDA stream state.
func (h *HDA) LoadState(data []byte) error {
	var snap hdaSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("hda: decode state: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.GlobalCtl, h.StreamFormat, h.BDLBase, h.LPIB = snap.GlobalCtl, snap.StreamFormat, snap.BDLBase, snap.LPIB
	return nil
}

// VirtioSound models a virtio-sound device's jack/stream configuration.
type VirtioSound struct {
	mu sync.Mutex

	JackCount   uint32
	StreamCount uint32
	ConfigVer   uint32
}

// NewVirtioSound creates an unconfigured virtio-sound device.
func NewVirtioSound() *VirtioSound { return &VirtioSound{} }

type virtioSoundSnapshot struct {
	JackCount   uint32
	StreamCount uint32
	ConfigVer   uint32
}

// SaveState is the "saveState" hook variant named for audio.virtio_snd in
// the device registry (§4.2 table), a camelCase name resolved once at
// registration time rather than probed at runtime.
func (v *VirtioSound) SaveState() ([]byte, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap := virtioSoundSnapshot{JackCount: v.JackCount, StreamCount: v.StreamCount, ConfigVer: v.ConfigVer}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// LoadState restores virtio-sound configuration state.
func (v *VirtioSound) LoadState(data []byte) error {
	var snap virtioSoundSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("virtio-snd: decode state: %w", err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.JackCount, v.StreamCount, v.ConfigVer = snap.JackCount, snap.StreamCount, snap.ConfigVer
	return nil
}
