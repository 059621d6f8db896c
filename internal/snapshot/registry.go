package snapshot

import (
	"fmt"
	"log/slog"
)

// SaveHook captures a device's state as an opaque byte blob. Returning
// (nil, false) means the device has nothing to save (missing save hook);
// the caller skips it silently.
type SaveHook func() ([]byte, bool)

// LoadHook restores a device's state from an opaque byte blob.
type LoadHook func(data []byte) error

// DeviceDescriptor is the explicit, registration-time function-pointer
// binding for one device kind. The dynamic capability probe some hosts use
// (trying save_state/saveState/snapshot_state by name) is resolved once, at
// registration, into these two fields; there is no runtime method-name
// probing here.
type DeviceDescriptor struct {
	Kind Kind
	ID   uint32
	Save SaveHook
	Load LoadHook
}

// Registry is the IO worker's device registry: canonical kind -> descriptor.
// Save/restore orchestration (Save/Restore below) walks it in a fixed,
// deterministic order (registration order) per §5's "device-save ordering
// within a snapshot is deterministic" requirement.
type Registry struct {
	order []Kind
	byKind map[Kind]DeviceDescriptor

	logger *slog.Logger

	// StrictDecoding gates the §9 open question: by default a corrupt AUSB
	// or VINP container is logged and skipped; setting this makes it a hard
	// restore failure instead.
	StrictDecoding bool

	// cached holds blobs carried over from a prior restore (forward
	// compatibility for kinds this build doesn't recognize, and a source
	// for the "cached" tier of the save-side merge).
	cached []Blob

	usbControllers []ControllerHook
	vinpDevices    []ControllerHook

	// netStackPostLoad, when set, is invoked after net.stack's load hook
	// runs during restore (apply_tcp_restore_policy("drop"), §4.2).
	netStackPostLoad func() error
}

// SetNetStackPostLoadPolicy registers the callback run immediately after the
// net.stack load hook during restore.
func (r *Registry) SetNetStackPostLoadPolicy(fn func() error) {
	r.netStackPostLoad = fn
}

// NewRegistry creates an empty device registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byKind: make(map[Kind]DeviceDescriptor),
		logger: logger,
	}
}

// Register binds explicit save/load function pointers to a canonical kind.
// Re-registering a kind replaces its descriptor but preserves its original
// position in the deterministic save order.
func (r *Registry) Register(d DeviceDescriptor) {
	if _, exists := r.byKind[d.Kind]; !exists {
		r.order = append(r.order, d.Kind)
	}
	r.byKind[d.Kind] = d
}

// SetCached seeds the registry with blobs restored in a previous cycle,
// used as the lowest-precedence tier of the save-side merge (§4.2 step 5).
func (r *Registry) SetCached(blobs []Blob) {
	r.cached = append([]Blob(nil), blobs...)
}

// Descriptor returns the descriptor registered for a kind, if any.
func (r *Registry) Descriptor(k Kind) (DeviceDescriptor, bool) {
	d, ok := r.byKind[k]
	return d, ok
}

func (r *Registry) warnMalformed(kind Kind, err error) error {
	r.logger.Warn("snapshot: malformed device blob, skipping", "kind", kind, "error", err)
	if r.StrictDecoding {
		return fmt.Errorf("snapshot: malformed %s blob: %w", kind, err)
	}
	return nil
}
