package heap

import (
	"github.com/YXL76/Ingram/kernel"
	"github.com/YXL76/Ingram/kernel/kfmt"
	"github.com/YXL76/Ingram/kernel/mm/vmm"
)

var (
	// ErrOutOfMemory is reported by the default out-of-memory handler.
	ErrOutOfMemory = &kernel.Error{Module: "heap", Message: "out of memory"}

	// kernelHeap serves every dynamic allocation made by the kernel.
	kernelHeap LockedHeap

	// oomHandler is invoked by Alloc when a request cannot be satisfied.
	oomHandler OutOfMemoryHandler = defaultOutOfMemoryHandler

	// allocVirtFn and panicFn are mocked by tests and are automatically
	// inlined by the compiler.
	allocVirtFn = vmm.AllocVirt
	panicFn     = kfmt.Panic
)

// Init maps the heap arena using m and hands it to the kernel heap.
func Init(m *vmm.Mapper) *kernel.Error {
	region := allocVirtFn(m, ArenaStart, ArenaEnd, vmm.FlagRW|vmm.FlagNoExecute)
	if err := kernelHeap.Init(region); err != nil {
		return err
	}

	kfmt.Printf("[heap] arena mapped at [0x%16x - 0x%16x], size: %dKb\n", region.Start, region.End()-1, region.Size/1024)
	return nil
}

// Alloc reserves size bytes aligned to align from the kernel heap. If the
// request cannot be satisfied, the out-of-memory handler is invoked and Alloc
// returns 0 should the handler return.
func Alloc(size, align uintptr) uintptr {
	addr := kernelHeap.Alloc(size, align)
	if addr == 0 {
		oomHandler(size, align)
	}
	return addr
}

// TryAlloc behaves like Alloc but returns 0 on failure without invoking the
// out-of-memory handler.
func TryAlloc(size, align uintptr) uintptr {
	return kernelHeap.Alloc(size, align)
}

// Free releases a block returned by Alloc with the same size and align.
func Free(ptr, size, align uintptr) {
	kernelHeap.Free(ptr, size, align)
}

// Stats returns the number of used and free bytes in the kernel heap.
func Stats() (used, free uintptr) {
	return kernelHeap.Stats()
}

// OutOfMemoryHandler is invoked with the layout of a failed allocation.
type OutOfMemoryHandler func(size, align uintptr)

// SetOutOfMemoryHandler replaces the function invoked when Alloc fails.
// Passing nil restores the default handler, which reports the failed
// request and halts the kernel.
func SetOutOfMemoryHandler(handler OutOfMemoryHandler) {
	if handler == nil {
		handler = defaultOutOfMemoryHandler
	}
	oomHandler = handler
}

func defaultOutOfMemoryHandler(size, _ uintptr) {
	kfmt.Printf("[heap] memory allocation of %d bytes failed\n", size)
	panicFn(ErrOutOfMemory)
}
