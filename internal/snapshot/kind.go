// Package snapshot implements the device-state codec and save/restore
// orchestration for worker snapshots: canonical/legacy/numeric device kind
// normalization, the AUSB and VINP tagged containers, the legacy per-device
// AERO header, and the registry that drives save and restore.
package snapshot

import (
	"fmt"
	"sort"
)

// Kind is the canonical textual identifier for a device blob.
type Kind string

const (
	KindUSB           Kind = "usb"
	KindInputI8042    Kind = "input.i8042"
	KindInputVirtio   Kind = "input.virtio"
	KindAudioHDA      Kind = "audio.hda"
	KindAudioVirtio   Kind = "audio.virtio_snd"
	KindPCIConfig     Kind = "pci.cfg"
	KindNetE1000      Kind = "net.e1000"
	KindNetStack      Kind = "net.stack"
	KindCPUInternal   Kind = "cpu.internal"
)

// numericID maps canonical kinds to the small integer device-class
// identifiers used by the "device.<id>" numeric encoding.
var numericID = map[Kind]uint32{
	KindUSB:         1,
	KindInputI8042:  2,
	KindAudioHDA:    3,
	KindAudioVirtio: 4,
	// 5 is PCI legacy, handled specially (see NormalizePCI in aero.go): it normalizes to
	// KindPCIConfig only when the blob's legacy AERO header carries a
	// "PCIB" device-id; otherwise id 5 has no canonical mapping here.
	KindNetE1000:    6,
	KindNetStack:    7,
	KindPCIConfig:   14,
	KindInputVirtio: 24,
	KindCPUInternal: 9,
}

var idToKind = func() map[uint32]Kind {
	m := make(map[uint32]Kind, len(numericID))
	for k, id := range numericID {
		m[id] = k
	}
	return m
}()

// legacyAlias maps legacy textual aliases to their canonical kind.
var legacyAlias = map[Kind]Kind{
	"usb.uhci": KindUSB,
	"usb.ehci": KindUSB,
	"usb.xhci": KindUSB,
}

// NumericID returns the numeric device-class id for a canonical kind, and
// whether one is registered.
func NumericID(k Kind) (uint32, bool) {
	id, ok := numericID[k]
	return id, ok
}

// KindForNumericID returns the canonical kind for a numeric device-class id.
// Unknown ids return ("", false); callers should fall back to the opaque
// "device.<id>" form.
func KindForNumericID(id uint32) (Kind, bool) {
	k, ok := idToKind[id]
	return k, ok
}

// NumericKindName formats the "device.<id>" textual form for an id.
func NumericKindName(id uint32) Kind {
	return Kind(fmt.Sprintf("device.%d", id))
}

// ParseNumericKindName parses a "device.<id>" textual kind, returning the id
// and whether the string matched the numeric form.
func ParseNumericKindName(k Kind) (uint32, bool) {
	var id uint32
	n, err := fmt.Sscanf(string(k), "device.%d", &id)
	if err != nil || n != 1 {
		return 0, false
	}
	// Round-trip check to reject trailing garbage like "device.5x".
	if NumericKindName(id) != k {
		return 0, false
	}
	return id, true
}

// Blob is a device-state entry: a canonical-or-not kind tag paired with its
// opaque encoded bytes.
type Blob struct {
	Kind  Kind
	Bytes []byte
}

// Normalize resolves a blob's kind to canonical form:
//   - a numeric "device.<id>" form maps to its canonical kind if known,
//     otherwise it is left untouched (unknown ids pass through);
//   - a known legacy alias maps to its canonical kind;
//   - a kind that is already canonical is unchanged.
//
// PCI legacy detection (numeric id 5 with a "PCIB" legacy AERO header) is
// handled by NormalizePCI, since it requires inspecting the payload, not
// just the kind string.
func Normalize(b Blob) Blob {
	if canon, ok := legacyAlias[b.Kind]; ok {
		return Blob{Kind: canon, Bytes: b.Bytes}
	}
	if id, ok := ParseNumericKindName(b.Kind); ok {
		if canon, ok := KindForNumericID(id); ok {
			return Blob{Kind: canon, Bytes: b.Bytes}
		}
	}
	return b
}

// isAliasKind reports whether the raw (pre-normalization) kind string is a
// legacy alias or numeric form rather than already-canonical text.
func isAliasKind(raw Kind) bool {
	if _, ok := legacyAlias[raw]; ok {
		return true
	}
	if id, ok := ParseNumericKindName(raw); ok {
		if _, ok := KindForNumericID(id); ok {
			return true
		}
	}
	return false
}

// NormalizeAll normalizes a list of blobs and resolves canonical-vs-legacy
// collisions: if both a canonical kind and a legacy/numeric alias for the
// same semantic device are present, the canonical entry wins regardless of
// list order and the alias entry is dropped. Unknown device.<id> kinds with
// no canonical mapping are preserved additively. Later entries still
// override earlier ones within the same source tier (both canonical, or
// both alias), matching the save-side merge precedence of §4.2.
func NormalizeAll(blobs []Blob) []Blob {
	type slot struct {
		blob      Blob
		canonical bool
	}

	order := make([]Kind, 0, len(blobs))
	slots := make(map[Kind]slot, len(blobs))
	for _, raw := range blobs {
		pci := NormalizePCI(raw)
		norm := Normalize(pci)
		fromAlias := isAliasKind(raw.Kind) || pci.Kind != raw.Kind

		existing, ok := slots[norm.Kind]
		if !ok {
			order = append(order, norm.Kind)
			slots[norm.Kind] = slot{blob: norm, canonical: !fromAlias}
			continue
		}
		switch {
		case existing.canonical && fromAlias:
			// Canonical already present: the alias entry is ignored.
		case !existing.canonical && !fromAlias:
			// Alias being superseded by a canonical entry.
			slots[norm.Kind] = slot{blob: norm, canonical: true}
		default:
			// Same tier: later entry wins.
			slots[norm.Kind] = slot{blob: norm, canonical: existing.canonical}
		}
	}

	out := make([]Blob, 0, len(order))
	for _, k := range order {
		out = append(out, slots[k].blob)
	}
	return out
}

// SortByKind returns a new slice sorted by kind, for deterministic emission.
func SortByKind(blobs []Blob) []Blob {
	out := make([]Blob, len(blobs))
	copy(out, blobs)
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
