// Package ipc is the coordinator-facing RPC transport: a length-prefixed
// JSON framing over a Unix domain socket carrying the worker init/config/
// snapshot messages defined in internal/worker. It is the concrete
// realization of §6's "coordinator-facing RPC surface", the outermost
// layer in the leaves-first dependency order (shared memory -> codecs ->
// per-worker coordinators -> this).
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Message types carried over the wire. Each maps directly to one of the
// worker-facing RPCs in §4.1/§6, plus the init and config-update messages.
const (
	MsgInit uint16 = iota + 1
	MsgReady
	MsgConfigUpdate
	MsgConfigAck
	MsgSnapshotPause
	MsgSnapshotPaused
	MsgSnapshotResume
	MsgSnapshotResumed
	MsgSnapshotSave
	MsgSnapshotSaved
	MsgSnapshotRestore
	MsgSnapshotRestored
	MsgError
)

// headerSize is the fixed wire size of a Header: type(2) + length(4).
const headerSize = 6

// Header is the fixed-size frame header preceding every message payload.
type Header struct {
	Type   uint16
	Length uint32
}

// WriteHeader writes a Header to w in the wire's little-endian encoding.
func WriteHeader(w io.Writer, h Header) error {
	var buf [headerSize]byte
	binary.LittleEndian.PutUint16(buf[0:2], h.Type)
	binary.LittleEndian.PutUint32(buf[2:6], h.Length)
	_, err := w.Write(buf[:])
	return err
}

// ReadHeader reads a Header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	return Header{
		Type:   binary.LittleEndian.Uint16(buf[0:2]),
		Length: binary.LittleEndian.Uint32(buf[2:6]),
	}, nil
}

// WireError is the wire-level error envelope for a failed call, distinct
// from worker.RPCError (which is the snapshot-RPC-specific payload field):
// this one carries transport/dispatch failures such as "unknown message
// type" that occur before a handler ever runs.
type WireError struct {
	Message string `json:"message"`
}

func (e *WireError) Error() string { return e.Message }

// writeFrame marshals payload as JSON and writes it as a length-prefixed
// frame of the given message type.
func writeFrame(w io.Writer, msgType uint16, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ipc: encode frame: %w", err)
	}
	if err := WriteHeader(w, Header{Type: msgType, Length: uint32(len(data))}); err != nil {
		return fmt.Errorf("ipc: write header: %w", err)
	}
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("ipc: write payload: %w", err)
		}
	}
	return nil
}

// readFrame reads one length-prefixed frame and returns its header and raw
// JSON payload bytes.
func readFrame(r io.Reader) (Header, []byte, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Header{}, nil, err
	}
	payload := make([]byte, h.Length)
	if h.Length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Header{}, nil, fmt.Errorf("ipc: read payload: %w", err)
		}
	}
	return h, payload, nil
}
