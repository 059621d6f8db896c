//go:build linux

package ipc

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// VerifyPeerCredential rejects a connection whose SO_PEERCRED uid does not
// match the worker process's own uid. The worker's socket path is only ever
// handed to the one coordinator process that spawned it, but the socket
// file itself lives in a shared temp directory (§6); this closes the race
// where another local user's process connects first.
func VerifyPeerCredential(conn net.Conn) error {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return fmt.Errorf("ipc: peer credential: %w", err)
	}

	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return fmt.Errorf("ipc: peer credential: %w", err)
	}
	if credErr != nil {
		return fmt.Errorf("ipc: peer credential: %w", credErr)
	}

	if int(cred.Uid) != os.Getuid() {
		return fmt.Errorf("ipc: rejecting connection from uid %d, expected %d", cred.Uid, os.Getuid())
	}
	return nil
}
