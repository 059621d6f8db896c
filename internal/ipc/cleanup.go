package ipc

// removeSocket removes a Unix domain socket file, accounting for the
// platform-specific retry behavior needed after a connection closes.
func removeSocket(path string) {
	removeSocketPlatform(path)
}
