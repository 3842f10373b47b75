package vmm

import "unsafe"

// physOffset is the virtual address at which the boot loader mapped the whole
// physical address space. It is set once during boot by SetPhysOffset.
var physOffset uintptr

// SetPhysOffset records the virtual base of the physical memory window.
func SetPhysOffset(offset uintptr) {
	physOffset = offset
}

// PhysToVirt returns the virtual address through which physAddr can be
// accessed inside the physical memory window.
func PhysToVirt(physAddr uintptr) uintptr {
	return physOffset + physAddr
}

// MappedRegion attests that the virtual range [Start, Start+Size) is backed
// by present mappings. Code that needs to dereference memory obtained from
// the mapper goes through a MappedRegion instead of casting raw addresses.
type MappedRegion struct {
	// Start is the virtual address of the first byte in the region.
	Start uintptr

	// Size is the region length in bytes.
	Size uintptr

	// Flags are the page table flags the region was mapped with.
	Flags PageTableEntryFlag
}

// PhysRegion returns a MappedRegion that covers size bytes of physical memory
// starting at physAddr, accessed through the physical memory window. No
// mappings are installed; the boot loader pre-maps the whole window.
func PhysRegion(physAddr, size uintptr) MappedRegion {
	return MappedRegion{
		Start: PhysToVirt(physAddr),
		Size:  size,
		Flags: FlagPresent | FlagRW,
	}
}

// End returns the address one past the last byte of the region.
func (r MappedRegion) End() uintptr {
	return r.Start + r.Size
}

// Contains returns true if addr falls inside the region.
func (r MappedRegion) Contains(addr uintptr) bool {
	return addr >= r.Start && addr-r.Start < r.Size
}

// Bytes overlays a byte slice on top of the region.
func (r MappedRegion) Bytes() []byte {
	if r.Size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(r.Start)), r.Size)
}
