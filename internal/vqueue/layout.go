// Package vqueue computes the byte layout of a split virtqueue ring: the
// descriptor table, available ring, and used ring that together back a
// virtio queue's shared memory region.
package vqueue

import (
	"errors"
	"fmt"
)

// descriptor entries are 16 bytes: addr(8) + len(4) + flags(2) + next(2).
const descEntrySize = 16

const (
	availRingAlign = 2
	descAlign      = 16

	// DefaultRingAlignment is preferred when the host allocator can satisfy
	// a page-sized alignment for the used ring.
	DefaultRingAlignment = 0x1000
	// FallbackRingAlignment is used when the host allocator rejects a
	// page-sized allocation for the used ring.
	FallbackRingAlignment = 16
)

// ErrInvalidQueueSize is returned when queue_size is zero or exceeds the
// maximum representable virtqueue size.
var ErrInvalidQueueSize = errors.New("vqueue: queue_size out of range")

// ErrInvalidAlignment is returned when ring_alignment is not a power of two
// of at least 4.
var ErrInvalidAlignment = errors.New("vqueue: ring_alignment must be a power of two >= 4")

// ErrOverflow is returned when the computed layout would overflow a 64-bit
// byte offset.
var ErrOverflow = errors.New("vqueue: layout size overflows")

// Layout describes the byte offsets and sizes of the three regions that make
// up a split virtqueue.
type Layout struct {
	DescOff  uint64
	DescSize uint64

	AvailOff  uint64
	AvailSize uint64

	UsedOff  uint64
	UsedSize uint64

	Total uint64
}

// availRingSize returns the size of the available ring: flags(2) + idx(2) +
// ring[queue_size](2 each) + optional used_event(2) when event_idx is on.
func availRingSize(queueSize uint32, eventIdxEnabled bool) uint64 {
	size := uint64(4) + uint64(queueSize)*2
	if eventIdxEnabled {
		size += 2
	}
	return size
}

// usedRingSize returns the size of the used ring: flags(2) + idx(2) +
// ring[queue_size](8 each: id u32 + len u32) + optional avail_event(2).
func usedRingSize(queueSize uint32, eventIdxEnabled bool) uint64 {
	size := uint64(4) + uint64(queueSize)*8
	if eventIdxEnabled {
		size += 2
	}
	return size
}

func isPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

func alignUp(value, align uint64) (uint64, error) {
	if align == 0 {
		return 0, ErrInvalidAlignment
	}
	mask := align - 1
	out := value + mask
	if out < value {
		return 0, ErrOverflow
	}
	return out &^ mask, nil
}

// ComputeLayout computes the offsets of the descriptor table, available
// ring, and used ring for a split virtqueue of the given size.
//
// ring_alignment must be a power of two >= 4; the descriptor table is always
// 16-byte aligned and the available ring is always 2-byte aligned regardless
// of ring_alignment, per the virtio spec. Only the used ring's start offset
// honors ring_alignment.
func ComputeLayout(queueSize uint32, eventIdxEnabled bool, ringAlignment uint32) (Layout, error) {
	if queueSize == 0 || queueSize > 32768 {
		return Layout{}, fmt.Errorf("%w: %d", ErrInvalidQueueSize, queueSize)
	}
	if ringAlignment < 4 || !isPowerOfTwo(ringAlignment) {
		return Layout{}, fmt.Errorf("%w: %d", ErrInvalidAlignment, ringAlignment)
	}

	descSize := uint64(queueSize) * descEntrySize
	descOff, err := alignUp(0, descAlign)
	if err != nil {
		return Layout{}, err
	}

	descEnd := descOff + descSize
	if descEnd < descOff {
		return Layout{}, ErrOverflow
	}

	availOff, err := alignUp(descEnd, availRingAlign)
	if err != nil {
		return Layout{}, err
	}
	availSize := availRingSize(queueSize, eventIdxEnabled)
	availEnd := availOff + availSize
	if availEnd < availOff {
		return Layout{}, ErrOverflow
	}

	usedOff, err := alignUp(availEnd, uint64(ringAlignment))
	if err != nil {
		return Layout{}, err
	}
	usedSize := usedRingSize(queueSize, eventIdxEnabled)
	usedEnd := usedOff + usedSize
	if usedEnd < usedOff {
		return Layout{}, ErrOverflow
	}

	layout := Layout{
		DescOff:   descOff,
		DescSize:  descSize,
		AvailOff:  availOff,
		AvailSize: availSize,
		UsedOff:   usedOff,
		UsedSize:  usedSize,
		Total:     usedEnd,
	}

	if layout.DescOff+layout.DescSize > layout.AvailOff {
		return Layout{}, fmt.Errorf("vqueue: desc region overlaps avail region")
	}
	if layout.AvailOff+layout.AvailSize > layout.UsedOff {
		return Layout{}, fmt.Errorf("vqueue: avail region overlaps used region")
	}
	if layout.UsedOff+layout.UsedSize != layout.Total {
		return Layout{}, fmt.Errorf("vqueue: used region does not terminate total size")
	}
	if layout.DescOff%descAlign != 0 {
		return Layout{}, fmt.Errorf("vqueue: desc offset not 16-aligned")
	}
	if layout.AvailOff%availRingAlign != 0 {
		return Layout{}, fmt.Errorf("vqueue: avail offset not 2-aligned")
	}
	if layout.UsedOff%uint64(ringAlignment) != 0 {
		return Layout{}, fmt.Errorf("vqueue: used offset not ring-aligned")
	}

	return layout, nil
}

// PreferredAlignment returns the ring alignment allocation should attempt
// first (page-sized), falling back to FallbackRingAlignment if the host
// allocator rejects it.
func PreferredAlignment() uint32 {
	return DefaultRingAlignment
}
