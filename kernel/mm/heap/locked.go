package heap

import (
	"github.com/YXL76/Ingram/kernel"
	"github.com/YXL76/Ingram/kernel/mm/vmm"
	"github.com/YXL76/Ingram/kernel/sync"
)

// LockedHeap serializes access to a Heap with a spinlock. The lock does not
// mask interrupts: code that allocates from an interrupt handler must keep
// interrupts disabled while it uses the heap elsewhere.
type LockedHeap struct {
	lock sync.Spinlock
	heap Heap
}

// Init hands the memory of region over to the heap.
func (l *LockedHeap) Init(region vmm.MappedRegion) *kernel.Error {
	l.lock.Acquire()
	err := l.heap.Init(region)
	l.lock.Release()
	return err
}

// Alloc reserves size bytes aligned to align and returns their address or 0
// if the request cannot be satisfied.
func (l *LockedHeap) Alloc(size, align uintptr) uintptr {
	l.lock.Acquire()
	addr, ok := l.heap.AllocateFirstFit(size, align)
	l.lock.Release()

	if !ok {
		return 0
	}
	return addr
}

// Free releases a block returned by Alloc with the same size and align.
func (l *LockedHeap) Free(ptr, size, align uintptr) {
	l.lock.Acquire()
	l.heap.Deallocate(ptr, size, align)
	l.lock.Release()
}

// Stats returns the number of used and free bytes.
func (l *LockedHeap) Stats() (used, free uintptr) {
	l.lock.Acquire()
	used, free = l.heap.Used(), l.heap.Free()
	l.lock.Release()
	return used, free
}
