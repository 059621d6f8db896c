package ipc

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

type pingReq struct {
	Value int `json:"value"`
}

type pingResp struct {
	Doubled int `json:"doubled"`
}

func newTestServer(t *testing.T) (*Server, *Mux, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.sock")
	mux := NewMux()
	srv, err := NewServer(path, mux.Handler())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })
	return srv, mux, path
}

func TestClientServerRoundTrip(t *testing.T) {
	_, mux, path := newTestServer(t)
	mux.Handle(MsgInit, func(payload []byte) (any, error) {
		var req pingReq
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return pingResp{Doubled: req.Value * 2}, nil
	})

	client, err := DialTimeout(path, time.Second)
	if err != nil {
		t.Fatalf("DialTimeout: %v", err)
	}
	defer client.Close()

	var resp pingResp
	if err := client.Call(MsgInit, pingReq{Value: 21}, &resp); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Doubled != 42 {
		t.Fatalf("got %d, want 42", resp.Doubled)
	}
}

func TestServerPropagatesHandlerError(t *testing.T) {
	_, mux, path := newTestServer(t)
	mux.Handle(MsgInit, func(payload []byte) (any, error) {
		return nil, errBoom
	})

	client, err := Dial(path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var resp pingResp
	err = client.Call(MsgInit, pingReq{}, &resp)
	if err == nil {
		t.Fatalf("expected error from handler")
	}
	if _, ok := err.(*WireError); !ok {
		t.Fatalf("expected *WireError, got %T: %v", err, err)
	}
}

func TestUnroutedMessageTypeErrors(t *testing.T) {
	_, _, path := newTestServer(t)

	client, err := Dial(path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var resp pingResp
	if err := client.Call(MsgConfigUpdate, pingReq{}, &resp); err == nil {
		t.Fatalf("expected error for unrouted message type")
	}
}

func TestDialTimeoutFailsWhenNothingListens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nobody-home.sock")
	if _, err := DialTimeout(path, 50*time.Millisecond); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestSocketPathUnique(t *testing.T) {
	a := SocketPath()
	b := SocketPath()
	if a == b {
		t.Fatalf("expected distinct socket paths, got %s twice", a)
	}
}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }

var errBoom = boomErr{}
