package snapshot

import "fmt"

// RestoreResult is the outcome of a restore: the captured CPU/MMU ranges
// from the VM runtime, plus the canonical-form device blob list used both
// to seed the next save's cached tier and for forward-compatibility
// round-tripping of unrecognized device kinds.
type RestoreResult struct {
	CPU, MMU        []byte
	RestoredDevices []Blob
}

// RestoreFreeFunction drives the free-function VM-runtime import form.
func (r *Registry) RestoreFreeFunction(exp FreeFunctionExporter, path string) (RestoreResult, error) {
	if exp == nil {
		return RestoreResult{}, ErrMissingRuntime
	}
	capture, devices, err := exp.Restore(path)
	if err != nil {
		return RestoreResult{}, fmt.Errorf("snapshot: runtime restore: %w", err)
	}

	raw := make([]Blob, 0, len(devices))
	for _, d := range devices {
		raw = append(raw, Blob{Kind: Kind(d.Kind), Bytes: d.Bytes})
	}
	return r.finishRestore(capture, raw)
}

// RestoreBuilder drives the builder-style VM-runtime import form, mapping
// numeric ids back to canonical kinds (or opaque device.<id> kinds for ids
// this build doesn't recognize).
func (r *Registry) RestoreBuilder(restorer SnapshotRestorer, path string) (RestoreResult, error) {
	if restorer == nil {
		return RestoreResult{}, ErrMissingRuntime
	}
	capture, devices, err := restorer.RestoreFromOpfs(path)
	if err != nil {
		return RestoreResult{}, fmt.Errorf("snapshot: runtime restore: %w", err)
	}

	raw := make([]Blob, 0, len(devices))
	for _, d := range devices {
		kind, ok := KindForNumericID(d.ID)
		if !ok {
			kind = NumericKindName(d.ID)
		}
		raw = append(raw, Blob{Kind: kind, Bytes: d.Data})
	}
	return r.finishRestore(capture, raw)
}

func (r *Registry) finishRestore(capture CPUMMUCapture, raw []Blob) (RestoreResult, error) {
	normalized := NormalizeAll(raw)

	restored := make([]Blob, 0, len(normalized))
	for _, blob := range normalized {
		switch blob.Kind {
		case KindUSB:
			ok, err := r.restoreUSB(blob.Bytes)
			if err != nil {
				return RestoreResult{}, err
			}
			if ok {
				restored = append(restored, blob)
			}
		case KindInputVirtio:
			ok, err := r.restoreVINP(blob.Bytes)
			if err != nil {
				return RestoreResult{}, err
			}
			if ok {
				restored = append(restored, blob)
			}
		default:
			restored = append(restored, blob)
			r.restoreSimple(blob)
		}
	}

	return RestoreResult{CPU: capture.CPU, MMU: capture.MMU, RestoredDevices: restored}, nil
}

// restoreSimple dispatches a single-hook device kind (i8042, audio.*,
// pci.cfg, net.e1000, net.stack) to its registered load hook, warning and
// skipping if the kind has no descriptor or no load hook wired.
func (r *Registry) restoreSimple(blob Blob) {
	d, ok := r.byKind[blob.Kind]
	if !ok || d.Load == nil {
		r.logger.Warn("snapshot: no load hook registered for device kind, skipping", "kind", blob.Kind)
		return
	}
	if err := d.Load(blob.Bytes); err != nil {
		r.logger.Warn("snapshot: load hook returned error", "kind", blob.Kind, "error", err)
		return
	}
	if blob.Kind == KindNetStack && r.netStackPostLoad != nil {
		if err := r.netStackPostLoad(); err != nil {
			r.logger.Warn("snapshot: apply_tcp_restore_policy failed", "error", err)
		}
	}
}

// restoreUSB decodes an AUSB container (or a legacy single-controller AERO
// header) and dispatches sub-blobs to the matching controller load hooks.
// Returns false if the container was malformed (already warned) so the
// caller can drop it from the round-trip list; with StrictDecoding set, a
// malformed container also returns a non-nil error.
func (r *Registry) restoreUSB(data []byte) (bool, error) {
	if IsAUSB(data) {
		records, err := DecodeAUSB(data)
		if err != nil {
			return false, r.warnMalformed(KindUSB, err)
		}
		for _, rec := range records {
			r.dispatchUSBTag(rec.Tag, rec.Bytes)
		}
		return true, nil
	}

	header, err := ParseLegacyAeroHeader(data)
	if err != nil {
		return false, r.warnMalformed(KindUSB, err)
	}
	tag, ok := LegacyDeviceIDToUSBTag(string(header.DeviceID[:]))
	if !ok {
		r.logger.Warn("snapshot: legacy USB blob has unrecognized controller id, skipping", "device_id", string(header.DeviceID[:]))
		return false, nil
	}
	r.dispatchUSBTag(tag, data)
	return true, nil
}

func (r *Registry) dispatchUSBTag(tag uint16, data []byte) {
	for _, h := range r.usbControllers {
		if h.Tag == tag {
			if h.Load != nil {
				if err := h.Load(data); err != nil {
					r.logger.Warn("snapshot: USB controller load hook failed", "tag", tag, "error", err)
				}
			}
			return
		}
	}
	r.logger.Warn("snapshot: USB blob targets unavailable controller, skipping", "tag", tag)
}

// restoreVINP decodes a VINP container and dispatches sub-blobs to the
// matching keyboard/mouse load hooks. Malformed containers are handled as in
// restoreUSB.
func (r *Registry) restoreVINP(data []byte) (bool, error) {
	records, err := DecodeVINP(data)
	if err != nil {
		return false, r.warnMalformed(KindInputVirtio, err)
	}
	for _, rec := range records {
		found := false
		for _, h := range r.vinpDevices {
			if h.Tag == rec.Tag {
				found = true
				if h.Load != nil {
					if err := h.Load(rec.Bytes); err != nil {
						r.logger.Warn("snapshot: virtio-input device load hook failed", "tag", rec.Tag, "error", err)
					}
				}
				break
			}
		}
		if !found {
			r.logger.Warn("snapshot: VINP blob targets unavailable device, skipping", "tag", rec.Tag)
		}
	}
	return true, nil
}
