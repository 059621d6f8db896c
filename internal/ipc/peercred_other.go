//go:build !linux

package ipc

import "net"

// VerifyPeerCredential is a no-op outside Linux: SO_PEERCRED has no portable
// equivalent, and non-Linux workers rely on the socket path's placement in a
// per-user temp directory instead.
func VerifyPeerCredential(conn net.Conn) error {
	return nil
}
