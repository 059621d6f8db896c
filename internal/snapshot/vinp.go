package snapshot

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// VINPDeviceID is the 4-byte ASCII device-id carried in the VINP container
// header.
const VINPDeviceID = "VINP"

const (
	vinpFormatVersion = 1
	vinpDeviceVersion = 1
	// header: magic(4) + format_version(4) + device_id(4) + device_version(4)
	vinpHeaderSize = 16
)

// Virtio-input sub-device tags within a VINP container.
const (
	VINPTagKeyboard uint16 = 1
	VINPTagMouse    uint16 = 2
)

// VINPRecord is one sub-device blob within a VINP container.
type VINPRecord struct {
	Tag   uint16
	Bytes []byte
}

// EncodeVINP builds a VINP container from keyboard/mouse sub-records. Tags
// must be unique; records are emitted sorted ascending by tag regardless of
// input order, per §3.
func EncodeVINP(records []VINPRecord) ([]byte, error) {
	seen := make(map[uint16]bool, len(records))
	for _, r := range records {
		if seen[r.Tag] {
			return nil, fmt.Errorf("snapshot: duplicate VINP tag %d", r.Tag)
		}
		seen[r.Tag] = true
	}

	sorted := make([]VINPRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Tag < sorted[j].Tag })

	size := vinpHeaderSize
	for _, r := range sorted {
		size += tlvTagSize + tlvLenSize + len(r.Bytes)
	}

	buf := make([]byte, vinpHeaderSize, size)
	copy(buf[0:4], AeroMagic)
	binary.LittleEndian.PutUint32(buf[4:8], vinpFormatVersion)
	copy(buf[8:12], VINPDeviceID)
	binary.LittleEndian.PutUint32(buf[12:16], vinpDeviceVersion)

	for _, r := range sorted {
		var hdr [tlvTagSize + tlvLenSize]byte
		binary.LittleEndian.PutUint16(hdr[0:2], r.Tag)
		binary.LittleEndian.PutUint32(hdr[2:6], uint32(len(r.Bytes)))
		buf = append(buf, hdr[:]...)
		buf = append(buf, r.Bytes...)
	}

	return buf, nil
}

// IsVINP reports whether data is a VINP container: AERO magic with device-id
// "VINP" in the legacy-header position.
func IsVINP(data []byte) bool {
	if len(data) < vinpHeaderSize {
		return false
	}
	if string(data[0:4]) != AeroMagic {
		return false
	}
	return string(data[8:12]) == VINPDeviceID
}

// DecodeVINP parses a VINP container into its tagged sub-records.
func DecodeVINP(data []byte) ([]VINPRecord, error) {
	if len(data) < vinpHeaderSize {
		return nil, fmt.Errorf("snapshot: VINP container truncated")
	}
	if string(data[0:4]) != AeroMagic {
		return nil, fmt.Errorf("snapshot: VINP container missing %q magic", AeroMagic)
	}
	if string(data[8:12]) != VINPDeviceID {
		return nil, fmt.Errorf("snapshot: VINP container device id mismatch")
	}

	off := vinpHeaderSize
	end := len(data)
	var records []VINPRecord
	seen := make(map[uint16]bool)
	lastTag := int32(-1)

	for off != end {
		if end-off < tlvTagSize+tlvLenSize {
			return nil, fmt.Errorf("snapshot: VINP record header truncated at offset %d", off)
		}
		tag := binary.LittleEndian.Uint16(data[off : off+tlvTagSize])
		off += tlvTagSize
		length := binary.LittleEndian.Uint32(data[off : off+tlvLenSize])
		off += tlvLenSize

		if off+int(length) > end {
			return nil, fmt.Errorf("snapshot: VINP record length %d exceeds remaining buffer at offset %d", length, off)
		}
		if seen[tag] {
			return nil, fmt.Errorf("snapshot: VINP container has duplicate tag %d", tag)
		}
		if int32(tag) < lastTag {
			return nil, fmt.Errorf("snapshot: VINP records not sorted ascending by tag")
		}
		seen[tag] = true
		lastTag = int32(tag)

		bytes := make([]byte, length)
		copy(bytes, data[off:off+int(length)])
		off += int(length)

		records = append(records, VINPRecord{Tag: tag, Bytes: bytes})
	}

	return records, nil
}
