// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package obd2

// SupportMap holds the vehicle's PID support bitmaps for PIDs 0x01-0x20,
// 0x21-0x40 and 0x41-0x60. Within a block, PID (base+32-k) is supported
// when bit k is set, so the first PID of a block is the most significant bit.
type SupportMap struct {
	masks [supportBlocks]uint32
}

// supportPIDs are the PIDs whose payload is a support bitmap, in query order
var supportPIDs = [supportBlocks]PID{PIDSupport00, PIDSupport20, PIDSupport40}

// IsSupported reports whether pid is marked supported. PID 0 is always
// supported; PIDs above 0x60 never are.
func (s SupportMap) IsSupported(pid PID) bool {
	if pid == PIDSupport00 {
		return true
	}
	if pid > lastSupported {
		return false
	}

	block := (int(pid) - 1) / supportSpan
	upper := PID((block + 1) * supportSpan)
	return s.masks[block]&(1<<uint32(upper-pid)) != 0
}

// Mask returns the cached bitmap for a block (0, 1 or 2)
func (s SupportMap) Mask(block int) uint32 {
	if block < 0 || block >= supportBlocks {
		return 0
	}
	return s.masks[block]
}

// SetMask stores the bitmap answered by a support PID
func (s *SupportMap) SetMask(block int, mask uint32) {
	if block < 0 || block >= supportBlocks {
		return
	}
	s.masks[block] = mask
}

// Reset clears every bitmap
func (s *SupportMap) Reset() {
	s.masks = [supportBlocks]uint32{}
}

// Supported lists every supported PID from 0x01 to 0x60 in ascending order
func (s SupportMap) Supported() []PID {
	var pids []PID
	for pid := PID(1); pid <= lastSupported; pid++ {
		if s.IsSupported(pid) {
			pids = append(pids, pid)
		}
	}
	return pids
}
