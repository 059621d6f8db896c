package net

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"net"
	"sync"

	"github.com/miekg/dns"
)

// TCPState is the lifecycle of one guest-originated TCP connection tracked
// by the in-VM stack: SYN/ACK/FIN only, no retransmit or window-scaling
// detail worth snapshotting.
type TCPState int

const (
	TCPStateClosed TCPState = iota
	TCPStateSynSent
	TCPStateEstablished
	TCPStateFinWait
	TCPStateClosing
)

// TCPConn is one tracked connection's sequence-space position, saved so a
// restored guest can resynchronize with its peer or (per the net.stack
// restore policy) be dropped outright.
type TCPConn struct {
	LocalAddr, RemoteAddr string
	SeqNum, AckNum        uint32
	State                 TCPState
}

// hostRecord is a single static hostname->address mapping the embedded DNS
// resolver answers from, serialized as a real DNS resource record (A) via
// miekg/dns so the saved blob round-trips through the same RR parser the
// resolver uses.
type hostRecord struct {
	rr string // textual RR, e.g. "guest.local. 300 IN A 10.0.2.15"
}

// Stack models the IO worker's in-VM TCP/IP stack (kind net.stack, numeric
// id 7): a small connection table plus a static DNS host table, collapsed
// to just the fields a snapshot needs to reproduce.
type Stack struct {
	mu sync.Mutex

	conns []TCPConn
	hosts []hostRecord
}

// NewStack creates an empty TCP/IP stack with no tracked connections.
func NewStack() *Stack {
	return &Stack{}
}

// AddHost registers a static hostname->IPv4 mapping the embedded DNS
// resolver will answer A queries for, validating it through miekg/dns the
// same way the live resolver builds its replies.
func (s *Stack) AddHost(name string, ip net.IP) error {
	rr, err := dns.NewRR(fmt.Sprintf("%s 300 IN A %s", dns.Fqdn(name), ip.String()))
	if err != nil {
		return fmt.Errorf("netstack: build host record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosts = append(s.hosts, hostRecord{rr: rr.String()})
	return nil
}

// TrackConn records a guest connection's current sequence-space state.
func (s *Stack) TrackConn(c TCPConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns = append(s.conns, c)
}

// Conns returns a snapshot of currently tracked connections.
func (s *Stack) Conns() []TCPConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TCPConn(nil), s.conns...)
}

type stackSnapshot struct {
	Conns []TCPConn
	Hosts []string
}

// SaveState is one of the "save_state | snapshot_state" hook variants named
// for net.stack in the device registry (§4.2 table).
func (s *Stack) SaveState() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.conns) == 0 && len(s.hosts) == 0 {
		return nil, false
	}

	snap := stackSnapshot{Conns: append([]TCPConn(nil), s.conns...)}
	for _, h := range s.hosts {
		snap.Hosts = append(snap.Hosts, h.rr)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// LoadState restores the connection table and re-parses each saved host
// record through miekg/dns. There is no hard failure here: a malformed
// individual RR is simply skipped rather than failing the whole restore.
func (s *Stack) LoadState(data []byte) error {
	var snap stackSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("netstack: decode state: %w", err)
	}

	hosts := make([]hostRecord, 0, len(snap.Hosts))
	for _, raw := range snap.Hosts {
		if _, err := dns.NewRR(raw); err != nil {
			continue
		}
		hosts = append(hosts, hostRecord{rr: raw})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns = snap.Conns
	s.hosts = hosts
	return nil
}

// ApplyTCPRestorePolicy implements §4.2's net.stack restore-only extra
// policy: "drop" discards every in-flight TCP connection restored from the
// snapshot, since the guest's peers cannot resume mid-handshake against a
// freshly restored stack. Registered via
// snapshot.Registry.SetNetStackPostLoadPolicy, run once immediately after
// LoadState during restore.
func (s *Stack) ApplyTCPRestorePolicy(policy string) error {
	if policy != "drop" {
		return fmt.Errorf("netstack: unsupported TCP restore policy %q", policy)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns = nil
	return nil
}
