package snapshot

import (
	"fmt"
)

// CPUMMUCapture holds the byte ranges captured from the VM runtime at the
// start of a save, and returned at the end of a restore.
type CPUMMUCapture struct {
	CPU []byte
	MMU []byte
}

// ExportedDevice is one device entry in the VM runtime's free-function
// export/import form: {kind: "device.<id>", bytes}.
type ExportedDevice struct {
	Kind  string
	Bytes []byte
}

// FreeFunctionExporter is the free-function VM-runtime export contract:
// save(path, cpu, mmu, devices) / restore(path) -> frame.
type FreeFunctionExporter interface {
	Save(path string, cpu, mmu []byte, devices []ExportedDevice) error
	Restore(path string) (CPUMMUCapture, []ExportedDevice, error)
}

// BuilderDevice is one device entry in the builder export form, addressed
// by numeric id rather than textual kind.
type BuilderDevice struct {
	ID      uint32
	Version uint32
	Flags   uint32
	Data    []byte
}

// SnapshotBuilder is the builder-style VM-runtime export contract:
// set_cpu_state_v2 + repeated add_device_state + snapshot_full_to_opfs.
type SnapshotBuilder interface {
	SetCPUStateV2(cpu, mmu []byte) error
	AddDeviceState(id, version, flags uint32, data []byte) error
	SnapshotFullToOpfs(path string) error
}

// SnapshotRestorer is the builder-style VM-runtime import contract,
// returning devices by numeric id/version/flags rather than kind/bytes.
type SnapshotRestorer interface {
	RestoreFromOpfs(path string) (CPUMMUCapture, []BuilderDevice, error)
}

const (
	cpuInternalDeviceID      = 9
	cpuInternalDeviceVersion = 2
)

// SaveInput carries the VM-runtime byte ranges and any coordinator-supplied
// blobs (highest precedence tier) into a Save call.
type SaveInput struct {
	CPU, MMU           []byte
	CoordinatorBlobs   []Blob
	CachedUSBBlob      []byte // prior restore's raw "usb" bytes, may fail decode
}

// Save runs the §4.2 save algorithm: invoke each registered device's save
// hook, aggregate USB/virtio-input sub-blobs into their containers, and
// merge cached -> fresh -> coordinator blob tiers into a single
// deterministic, canonical-kind blob list.
func (r *Registry) Save(in SaveInput) ([]Blob, error) {
	var fresh []Blob

	for _, kind := range r.order {
		d := r.byKind[kind]
		if d.Save == nil {
			continue // missing save hook: skip silently, per §7
		}
		data, ok := d.Save()
		if !ok {
			continue // device not provided this cycle
		}
		fresh = append(fresh, Blob{Kind: kind, Bytes: data})
	}

	if usbBlob, ok := r.saveUSB(); ok {
		fresh = append(fresh, Blob{Kind: KindUSB, Bytes: usbBlob})
	}
	if vinpBlob, ok := r.saveVINP(); ok {
		fresh = append(fresh, Blob{Kind: KindInputVirtio, Bytes: vinpBlob})
	}

	var cachedTier []Blob
	cachedTier = append(cachedTier, r.cached...)
	if len(in.CachedUSBBlob) > 0 {
		if _, err := DecodeAUSB(in.CachedUSBBlob); err == nil {
			cachedTier = append(cachedTier, Blob{Kind: KindUSB, Bytes: in.CachedUSBBlob})
		}
		// A cached USB blob that fails to decode is ignored per §4.2 step 3;
		// only the freshly captured container is emitted.
	}

	merged := MergeBlobs(cachedTier, fresh, in.CoordinatorBlobs)
	return merged, nil
}

func (r *Registry) saveUSB() ([]byte, bool) {
	var records []USBRecord
	for _, h := range r.usbControllers {
		if h.Save == nil {
			continue
		}
		data, ok := h.Save()
		if !ok {
			continue
		}
		records = append(records, USBRecord{Tag: h.Tag, Bytes: data})
	}
	if len(records) == 0 {
		return nil, false
	}
	blob, err := EncodeAUSB(records)
	if err != nil {
		r.logger.Warn("snapshot: failed to encode AUSB container", "error", err)
		return nil, false
	}
	return blob, true
}

func (r *Registry) saveVINP() ([]byte, bool) {
	var records []VINPRecord
	for _, h := range r.vinpDevices {
		if h.Save == nil {
			continue
		}
		data, ok := h.Save()
		if !ok {
			continue
		}
		records = append(records, VINPRecord{Tag: h.Tag, Bytes: data})
	}
	if len(records) == 0 {
		return nil, false
	}
	blob, err := EncodeVINP(records)
	if err != nil {
		r.logger.Warn("snapshot: failed to encode VINP container", "error", err)
		return nil, false
	}
	return blob, true
}

// ExportFreeFunction drives the free-function VM-runtime export form.
func (r *Registry) ExportFreeFunction(exp FreeFunctionExporter, path string, in SaveInput) error {
	if exp == nil {
		return ErrMissingRuntime
	}
	blobs, err := r.Save(in)
	if err != nil {
		return err
	}
	devices := make([]ExportedDevice, 0, len(blobs))
	for _, b := range blobs {
		kindStr := string(b.Kind)
		if id, ok := NumericID(b.Kind); ok {
			kindStr = string(NumericKindName(id))
		}
		devices = append(devices, ExportedDevice{Kind: kindStr, Bytes: b.Bytes})
	}
	return exp.Save(path, in.CPU, in.MMU, devices)
}

// ExportBuilder drives the builder-style VM-runtime export form, tagging
// the CPU-internal device (id=9) with version=2 when present among the
// saved blobs.
func (r *Registry) ExportBuilder(b SnapshotBuilder, path string, in SaveInput) error {
	if b == nil {
		return ErrMissingRuntime
	}
	if err := b.SetCPUStateV2(in.CPU, in.MMU); err != nil {
		return fmt.Errorf("snapshot: set cpu state: %w", err)
	}

	blobs, err := r.Save(in)
	if err != nil {
		return err
	}
	for _, blob := range blobs {
		id, ok := NumericID(blob.Kind)
		if !ok {
			// Opaque device.<id> entries carry their id in the kind text.
			id, ok = ParseNumericKindName(blob.Kind)
		}
		if !ok {
			continue // no numeric id to address the builder with
		}
		version := uint32(1)
		if id == cpuInternalDeviceID {
			version = cpuInternalDeviceVersion
		}
		if err := b.AddDeviceState(id, version, 0, blob.Bytes); err != nil {
			return fmt.Errorf("snapshot: add device state (kind=%s): %w", blob.Kind, err)
		}
	}
	return b.SnapshotFullToOpfs(path)
}
