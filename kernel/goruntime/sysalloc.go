package goruntime

import (
	"unsafe"

	"github.com/YXL76/Ingram/kernel"
	"github.com/YXL76/Ingram/kernel/mm"
	"github.com/YXL76/Ingram/kernel/mm/heap"
)

var (
	// The hooks report failures to the runtime by returning nil and must
	// not invoke the heap's out-of-memory handler.
	reserveFn = heap.TryAlloc
	allocFn   = heap.TryAlloc
	freeFn    = heap.Free
	memsetFn  = kernel.Memset
)

// sysReserve reserves a page-aligned region large enough to hold size bytes
// from the kernel heap and returns a pointer to its start, or nil if the
// request cannot be satisfied. The address hint is ignored.
//
// The kernel heap arena is already backed by physical frames, so reserved
// regions can be used as soon as the runtime calls sysMap on them.
//
// This function replaces runtime.sysReserve and is required for initializing
// the Go allocator.
//
//go:redirect-from runtime.sysReserve
//go:nosplit
func sysReserve(_ unsafe.Pointer, size uintptr) unsafe.Pointer {
	if !enabled {
		return nil
	}

	regionSize := (size + mm.PageSize - 1) & ^(mm.PageSize - 1)
	regionStartAddr := reserveFn(regionSize, mm.PageSize)
	if regionStartAddr == 0 {
		return nil
	}

	return unsafe.Pointer(regionStartAddr)
}

// sysMap commits a region previously obtained via sysReserve. As reserved
// regions are already mapped, sysMap only zeroes the region and updates the
// runtime's memory stats.
//
// This function replaces runtime.sysMap and is required for initializing
// the Go allocator.
//
//go:redirect-from runtime.sysMap
//go:nosplit
func sysMap(virtAddr unsafe.Pointer, size uintptr, sysStat *uint64) {
	if !enabled || virtAddr == nil {
		return
	}

	regionSize := (size + mm.PageSize - 1) & ^(mm.PageSize - 1)
	memsetFn(uintptr(virtAddr), 0, regionSize)
	if sysStat != nil {
		*sysStat += uint64(regionSize)
	}
}

// sysAlloc obtains a zeroed, page-aligned region large enough to hold size
// bytes from the kernel heap and returns a pointer to its start, or nil if
// the request cannot be satisfied.
//
// This function replaces runtime.sysAlloc and is required for initializing
// the Go allocator.
//
//go:redirect-from runtime.sysAlloc
//go:nosplit
func sysAlloc(size uintptr, sysStat *uint64) unsafe.Pointer {
	if !enabled {
		return nil
	}

	regionSize := (size + mm.PageSize - 1) & ^(mm.PageSize - 1)
	regionStartAddr := allocFn(regionSize, mm.PageSize)
	if regionStartAddr == 0 {
		return nil
	}

	memsetFn(regionStartAddr, 0, regionSize)
	if sysStat != nil {
		*sysStat += uint64(regionSize)
	}
	return unsafe.Pointer(regionStartAddr)
}

// sysFree returns a region obtained via sysAlloc to the kernel heap.
//
// This function replaces runtime.sysFree.
//
//go:redirect-from runtime.sysFree
//go:nosplit
func sysFree(v unsafe.Pointer, size uintptr, sysStat *uint64) {
	if !enabled || v == nil {
		return
	}

	regionSize := (size + mm.PageSize - 1) & ^(mm.PageSize - 1)
	freeFn(uintptr(v), regionSize, mm.PageSize)
	if sysStat != nil {
		*sysStat -= uint64(regionSize)
	}
}
