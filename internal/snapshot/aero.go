package snapshot

import (
	"encoding/binary"
	"fmt"
)

// AeroMagic is the 4-byte ASCII magic shared by the legacy per-device AERO
// header and the VINP container header.
const AeroMagic = "AERO"

// legacyAeroHeaderSize is the fixed size of the legacy per-device header:
// magic(4) + format_version(4) + device_id(4) + device_version(4).
const legacyAeroHeaderSize = 16

// LegacyAeroHeader is the legacy per-device snapshot header: magic "AERO",
// a format version, a 4-ASCII-byte device id (e.g. "UHRT", "XHCB", "PCIB"),
// and a device version.
type LegacyAeroHeader struct {
	FormatVersion uint32
	DeviceID      [4]byte
	DeviceVersion uint32
}

func isASCIIPrintable(b [4]byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// ParseLegacyAeroHeader parses the 16-byte legacy AERO header from the start
// of data. Per §6, if bytes[8:12] are not ASCII, the parser falls back to
// treating bytes[4:8] as the format version and leaves the device id empty
// (the header predates the device-id field).
func ParseLegacyAeroHeader(data []byte) (LegacyAeroHeader, error) {
	if len(data) < legacyAeroHeaderSize {
		return LegacyAeroHeader{}, fmt.Errorf("snapshot: legacy AERO header truncated: need %d bytes, got %d", legacyAeroHeaderSize, len(data))
	}
	if string(data[0:4]) != AeroMagic {
		return LegacyAeroHeader{}, fmt.Errorf("snapshot: legacy AERO header missing %q magic", AeroMagic)
	}

	var deviceID [4]byte
	copy(deviceID[:], data[8:12])

	if !isASCIIPrintable(deviceID) {
		return LegacyAeroHeader{
			FormatVersion: binary.LittleEndian.Uint32(data[4:8]),
		}, nil
	}

	return LegacyAeroHeader{
		FormatVersion: binary.LittleEndian.Uint32(data[4:8]),
		DeviceID:      deviceID,
		DeviceVersion: binary.LittleEndian.Uint32(data[12:16]),
	}, nil
}

// EncodeLegacyAeroHeader writes a 16-byte legacy AERO header.
func EncodeLegacyAeroHeader(h LegacyAeroHeader) []byte {
	buf := make([]byte, legacyAeroHeaderSize)
	copy(buf[0:4], AeroMagic)
	binary.LittleEndian.PutUint32(buf[4:8], h.FormatVersion)
	copy(buf[8:12], h.DeviceID[:])
	binary.LittleEndian.PutUint32(buf[12:16], h.DeviceVersion)
	return buf
}

// pciLegacyDeviceID is the legacy per-device id marking a PCI config-space
// blob encoded with the old per-device AERO header instead of the canonical
// pci.cfg kind.
const pciLegacyDeviceID = "PCIB"

// NormalizePCI detects a legacy numeric "device.5" blob carrying a "PCIB"
// legacy AERO header and rewrites it to the canonical pci.cfg kind. Blobs
// that don't match (malformed header, wrong device id, or a different kind
// entirely) are returned unchanged.
func NormalizePCI(b Blob) Blob {
	id, ok := ParseNumericKindName(b.Kind)
	if !ok || id != 5 {
		return b
	}
	header, err := ParseLegacyAeroHeader(b.Bytes)
	if err != nil {
		return b
	}
	if string(header.DeviceID[:]) != pciLegacyDeviceID {
		return b
	}
	return Blob{Kind: KindPCIConfig, Bytes: b.Bytes}
}
