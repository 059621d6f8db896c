package snapshot

import "errors"

// Sentinel errors for the error kinds named in §7 that are reported as RPC
// failures rather than logged-and-skipped.
var (
	// ErrMissingRuntime is returned when a save/restore is attempted with no
	// VM runtime module available.
	ErrMissingRuntime = errors.New("snapshot: VM runtime module not available")
	// ErrMissingExport is returned when the VM runtime exposes neither the
	// free-function nor the builder export form.
	ErrMissingExport = errors.New("snapshot: VM runtime exposes no save/restore export")
)
