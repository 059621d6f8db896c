package snapshot

import (
	"encoding/binary"
	"fmt"
)

// AUSBMagic is the 4-byte ASCII magic for the USB container.
const AUSBMagic = "AUSB"

const (
	ausbVersionMajor = 1
	ausbVersionMinor = 0
	ausbHeaderSize   = 8 // magic(4) + version_major(2) + version_minor(2)
	tlvTagSize       = 2
	tlvLenSize       = 4
)

// USB controller tags within an AUSB container.
const (
	USBTagUHCI uint16 = 1
	USBTagEHCI uint16 = 2
	USBTagXHCI uint16 = 3
)

// USBRecord is one controller sub-blob within an AUSB container.
type USBRecord struct {
	Tag   uint16
	Bytes []byte
}

// EncodeAUSB builds an AUSB container aggregating the given per-controller
// records. At most one record per tag is permitted; callers should supply
// records in a fixed, deterministic tag order (UHCI, EHCI, xHCI).
func EncodeAUSB(records []USBRecord) ([]byte, error) {
	seen := make(map[uint16]bool, len(records))
	for _, r := range records {
		if seen[r.Tag] {
			return nil, fmt.Errorf("snapshot: duplicate AUSB tag %d", r.Tag)
		}
		seen[r.Tag] = true
	}

	size := ausbHeaderSize
	for _, r := range records {
		size += tlvTagSize + tlvLenSize + len(r.Bytes)
	}

	buf := make([]byte, ausbHeaderSize, size)
	copy(buf[0:4], AUSBMagic)
	binary.LittleEndian.PutUint16(buf[4:6], ausbVersionMajor)
	binary.LittleEndian.PutUint16(buf[6:8], ausbVersionMinor)

	for _, r := range records {
		var hdr [tlvTagSize + tlvLenSize]byte
		binary.LittleEndian.PutUint16(hdr[0:2], r.Tag)
		binary.LittleEndian.PutUint32(hdr[2:6], uint32(len(r.Bytes)))
		buf = append(buf, hdr[:]...)
		buf = append(buf, r.Bytes...)
	}

	return buf, nil
}

// IsAUSB reports whether data begins with the AUSB magic.
func IsAUSB(data []byte) bool {
	return len(data) >= 4 && string(data[0:4]) == AUSBMagic
}

// DecodeAUSB parses an AUSB container into its tagged sub-records. A
// malformed container (bad magic, truncated header, or a record whose
// length exceeds the remaining buffer) returns an error; callers are
// expected to log-and-skip per §7's malformed-blob policy rather than fail
// the whole restore.
func DecodeAUSB(data []byte) ([]USBRecord, error) {
	if len(data) < ausbHeaderSize {
		return nil, fmt.Errorf("snapshot: AUSB container truncated")
	}
	if string(data[0:4]) != AUSBMagic {
		return nil, fmt.Errorf("snapshot: AUSB container missing magic")
	}

	off := ausbHeaderSize
	end := len(data)
	seen := make(map[uint16]bool)
	var records []USBRecord

	for off != end {
		if end-off < tlvTagSize+tlvLenSize {
			return nil, fmt.Errorf("snapshot: AUSB record header truncated at offset %d", off)
		}
		tag := binary.LittleEndian.Uint16(data[off : off+tlvTagSize])
		off += tlvTagSize
		length := binary.LittleEndian.Uint32(data[off : off+tlvLenSize])
		off += tlvLenSize

		if off+int(length) > end {
			return nil, fmt.Errorf("snapshot: AUSB record length %d exceeds remaining buffer at offset %d", length, off)
		}
		if seen[tag] {
			return nil, fmt.Errorf("snapshot: AUSB container has duplicate tag %d", tag)
		}
		seen[tag] = true

		bytes := make([]byte, length)
		copy(bytes, data[off:off+int(length)])
		off += int(length)

		records = append(records, USBRecord{Tag: tag, Bytes: bytes})
	}

	return records, nil
}

// USBTagToLegacyDeviceID maps a USB controller tag to its legacy 4-byte
// AERO device-id, used when dispatching a single-controller legacy blob.
func USBTagToLegacyDeviceID(tag uint16) (string, bool) {
	switch tag {
	case USBTagUHCI:
		return "UHRT", true
	case USBTagEHCI:
		return "EHCI", true
	case USBTagXHCI:
		return "XHCB", true
	default:
		return "", false
	}
}

// LegacyDeviceIDToUSBTag is the inverse of USBTagToLegacyDeviceID.
func LegacyDeviceIDToUSBTag(deviceID string) (uint16, bool) {
	switch deviceID {
	case "UHRT":
		return USBTagUHCI, true
	case "EHCI":
		return USBTagEHCI, true
	case "XHCB":
		return USBTagXHCI, true
	default:
		return 0, false
	}
}
