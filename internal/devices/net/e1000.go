// Package net implements the two network device models the IO worker's
// registry saves/restores for the guest's network path: the emulated
// e1000 NIC (kind net.e1000, numeric id 6) and the in-VM TCP/IP stack
// (kind net.stack, numeric id 7, §4.2's "apply TCP restore policy" entry).
package net

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
)

// E1000 models an emulated Intel 82540EM NIC's register file relevant to
// snapshotting: the receive/transmit descriptor ring pointers and the
// interrupt-mask state a guest driver has programmed.
type E1000 struct {
	mu sync.Mutex

	RDBAL, RDBAH uint32
	RDLEN, RDH, RDT uint32
	TDBAL, TDBAH uint32
	TDLEN, TDH, TDT uint32
	IMS          uint32
	MAC          [6]byte
}

// NewE1000 creates an e1000 NIC with the given MAC address.
func NewE1000(mac [6]byte) *E1000 {
	return &E1000{MAC: mac}
}

type e1000Snapshot struct {
	RDBAL, RDBAH, RDLEN, RDH, RDT uint32
	TDBAL, TDBAH, TDLEN, TDH, TDT uint32
	IMS uint32
	MAC [6]byte
}

// SaveState is the "save_state" hook variant named for net.e1000 in the
// device registry (§4.2 table).
func (e *E1000) SaveState() ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e1000Snapshot{
		RDBAL: e.RDBAL, RDBAH: e.RDBAH, RDLEN: e.RDLEN, RDH: e.RDH, RDT: e.RDT,
		TDBAL: e.TDBAL, TDBAH: e.TDBAH, TDLEN: e.TDLEN, TDH: e.TDH, TDT: e.TDT,
		IMS: e.IMS, MAC: e.MAC,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// LoadState restores e1000 register state.
func (e *E1000) LoadState(data []byte) error {
	var snap e1000Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("e1000: decode state: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.RDBAL, e.RDBAH, e.RDLEN, e.RDH, e.RDT = snap.RDBAL, snap.RDBAH, snap.RDLEN, snap.RDH, snap.RDT
	e.TDBAL, e.TDBAH, e.TDLEN, e.TDH, e.TDT = snap.TDBAL, snap.TDBAH, snap.TDLEN, snap.TDH, snap.TDT
	e.IMS, e.MAC = snap.IMS, snap.MAC
	return nil
}
