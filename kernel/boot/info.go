// Package boot describes the information handed to the kernel by the boot
// loader: the physical memory map and the virtual offset at which all of
// physical memory has been mapped.
package boot

// MemoryRegionKind defines the type of a MemoryRegion.
type MemoryRegionKind uint32

const (
	// Usable indicates unused memory that the kernel may hand out.
	Usable MemoryRegionKind = iota

	// Bootloader indicates memory used by the boot loader, the loaded kernel
	// image, its page tables or the boot info itself.
	Bootloader

	// UnknownUefi indicates a region with a UEFI memory type the boot
	// loader did not classify.
	UnknownUefi

	// UnknownBios indicates a region with a BIOS E820 type the boot loader
	// did not classify.
	UnknownBios
)

// String implements fmt.Stringer for MemoryRegionKind.
func (k MemoryRegionKind) String() string {
	switch k {
	case Usable:
		return "usable"
	case Bootloader:
		return "bootloader"
	case UnknownUefi:
		return "UEFI (unknown)"
	case UnknownBios:
		return "BIOS (unknown)"
	default:
		return "unknown"
	}
}

// MemoryRegion describes a physical memory range [Start, End) and its kind.
// Regions are read-only inputs owned by the boot loader.
type MemoryRegion struct {
	Start uint64
	End   uint64
	Kind  MemoryRegionKind
}

// Size returns the region length in bytes.
func (r *MemoryRegion) Size() uint64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// MemRegionVisitor is invoked by VisitMemRegions for each memory region. The
// visitor must return true to continue or false to abort the scan.
type MemRegionVisitor func(region *MemoryRegion) bool

// Info is the boot information passed to the kernel entrypoint.
type Info struct {
	// PhysMemOffset is the virtual address at which the boot loader mapped
	// the complete physical address space.
	PhysMemOffset uintptr

	// MemoryRegions lists the physical memory map in boot loader order.
	MemoryRegions []MemoryRegion
}

// VisitMemRegions invokes visitor for each memory region in order.
func (info *Info) VisitMemRegions(visitor MemRegionVisitor) {
	for i := range info.MemoryRegions {
		if !visitor(&info.MemoryRegions[i]) {
			return
		}
	}
}

// UsableMemory returns the total size in bytes of all Usable regions.
func (info *Info) UsableMemory() uint64 {
	var total uint64
	info.VisitMemRegions(func(region *MemoryRegion) bool {
		if region.Kind == Usable {
			total += region.Size()
		}
		return true
	})
	return total
}
