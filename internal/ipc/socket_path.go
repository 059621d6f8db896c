package ipc

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// socketCounter provides unique socket paths when multiple workers are
// spawned concurrently on the same host.
var socketCounter atomic.Uint64

// SocketPath returns a fresh, platform-appropriate Unix domain socket path
// for one worker's IPC server.
func SocketPath() string {
	return socketPath()
}

// defaultSocketPath generates a socket path using the standard scheme,
// used on platforms where os.TempDir() paths are short enough to stay
// under the sun_path length limit.
func defaultSocketPath() string {
	tmpDir := os.TempDir()
	return filepath.Join(tmpDir, fmt.Sprintf("workerplane-%d-%d-%d.sock",
		os.Getpid(), time.Now().UnixNano(), socketCounter.Add(1)))
}
