package net

import (
	"net"
	"testing"
)

func TestE1000RoundTrip(t *testing.T) {
	e := NewE1000([6]byte{0x52, 0x54, 0x00, 0x12, 0x34, 0x56})
	e.RDBAL, e.RDBAH, e.RDLEN, e.RDH, e.RDT = 1, 2, 3, 4, 5
	e.TDBAL, e.TDBAH, e.TDLEN, e.TDH, e.TDT = 6, 7, 8, 9, 10
	e.IMS = 0xff

	data, ok := e.SaveState()
	if !ok {
		t.Fatalf("SaveState reported ok=false")
	}

	restored := NewE1000([6]byte{})
	if err := restored.LoadState(data); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if restored.RDBAL != e.RDBAL || restored.RDT != e.RDT || restored.TDT != e.TDT || restored.IMS != e.IMS {
		t.Fatalf("register state mismatch: got %+v want %+v", restored, e)
	}
	if restored.MAC != e.MAC {
		t.Fatalf("MAC mismatch: got %x want %x", restored.MAC, e.MAC)
	}
}

func TestStackRoundTripAndTCPRestorePolicy(t *testing.T) {
	s := NewStack()
	if err := s.AddHost("guest.local", net.IPv4(10, 0, 2, 15)); err != nil {
		t.Fatalf("AddHost: %v", err)
	}
	s.TrackConn(TCPConn{LocalAddr: "10.0.2.15:1234", RemoteAddr: "93.184.216.34:80", State: TCPStateEstablished})

	data, ok := s.SaveState()
	if !ok {
		t.Fatalf("SaveState reported ok=false")
	}

	restored := NewStack()
	if err := restored.LoadState(data); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if len(restored.Conns()) != 1 {
		t.Fatalf("expected 1 restored connection, got %d", len(restored.Conns()))
	}

	if err := restored.ApplyTCPRestorePolicy("drop"); err != nil {
		t.Fatalf("ApplyTCPRestorePolicy: %v", err)
	}
	if len(restored.Conns()) != 0 {
		t.Fatalf("expected connections dropped after restore policy, got %d", len(restored.Conns()))
	}
}

func TestStackLoadStateSkipsMalformedHostRecord(t *testing.T) {
	s := NewStack()
	s.hosts = []hostRecord{{rr: "not a valid RR"}, {rr: "guest.local. 300 IN A 10.0.2.15"}}
	data, ok := s.SaveState()
	if !ok {
		t.Fatalf("SaveState reported ok=false")
	}

	restored := NewStack()
	if err := restored.LoadState(data); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if len(restored.hosts) != 1 {
		t.Fatalf("expected malformed RR to be dropped, got %d host records", len(restored.hosts))
	}
}

func TestEmptyStackHasNothingToSave(t *testing.T) {
	s := NewStack()
	if _, ok := s.SaveState(); ok {
		t.Fatalf("expected SaveState to report ok=false for an empty stack")
	}
}
