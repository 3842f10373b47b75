// Package heap implements the kernel heap: a first-fit allocator that keeps
// its free list inside the free memory of a fixed virtual arena.
package heap

import (
	"github.com/YXL76/Ingram/kernel"
	"github.com/YXL76/Ingram/kernel/mm/vmm"
)

var (
	errArenaTooSmall = &kernel.Error{Module: "heap", Message: "arena too small to hold a free block header"}
)

// Heap tracks the usage of a fixed-size arena managed by a hole list.
//
// The zero value is an empty heap on which every allocation fails. Init must
// be invoked at most once, before any allocation.
type Heap struct {
	bottom uintptr
	size   uintptr
	used   uintptr
	holes  holeList
}

// Init hands the memory of region over to the heap. The region must be
// mapped, writable and not used by anything else for as long as the heap
// exists.
//
// Init returns an error if the region cannot hold a single free block. The
// heap then stays empty.
func (h *Heap) Init(region vmm.MappedRegion) *kernel.Error {
	return h.init(region.Start, region.Bytes())
}

// init manages the word-aligned part of mem, whose first byte lives at the
// virtual address base.
func (h *Heap) init(base uintptr, mem []byte) *kernel.Error {
	*h = Heap{}

	bottom := alignUp(base, wordSize)
	top := alignDown(base+uintptr(len(mem)), wordSize)
	if top <= bottom {
		return errArenaTooSmall
	}

	holes, ok := newHoleList(bottom, mem[bottom-base:top-base])
	if !ok {
		return errArenaTooSmall
	}

	h.bottom, h.size, h.holes = bottom, top-bottom, holes
	return nil
}

// AllocateFirstFit reserves size bytes aligned to align, which must be a
// power of two, from the first free block that can fit them. It returns
// false if the alignment is invalid or no free block is large enough.
//
// Zero-size requests succeed without consuming memory and return align, an
// address that is never dereferenced but is aligned and never 0.
func (h *Heap) AllocateFirstFit(size, align uintptr) (uintptr, bool) {
	if align == 0 || align&(align-1) != 0 {
		return 0, false
	}

	if size == 0 {
		return align, true
	}

	addr, blockSize, ok := h.holes.allocateFirstFit(size, align)
	if !ok {
		return 0, false
	}

	h.used += blockSize
	return addr, true
}

// Deallocate releases a block obtained from AllocateFirstFit. size and align
// must match the values used for the allocation; freeing a block twice or
// with a different layout corrupts the heap.
func (h *Heap) Deallocate(ptr, size, align uintptr) {
	if size == 0 {
		return
	}

	h.used -= h.holes.deallocate(ptr)
}

// Bottom returns the address of the first byte managed by the heap.
func (h *Heap) Bottom() uintptr { return h.bottom }

// Size returns the number of bytes managed by the heap.
func (h *Heap) Size() uintptr { return h.size }

// Top returns the address one past the last byte managed by the heap.
func (h *Heap) Top() uintptr { return h.bottom + h.size }

// Used returns the number of bytes consumed by live allocations, headers
// and folded slack included.
func (h *Heap) Used() uintptr { return h.used }

// Free returns the number of bytes available for allocation.
func (h *Heap) Free() uintptr { return h.size - h.used }
