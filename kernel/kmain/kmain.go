// Package kmain contains the kernel entrypoint that brings up the memory
// subsystem.
package kmain

import (
	"github.com/YXL76/Ingram/kernel"
	"github.com/YXL76/Ingram/kernel/boot"
	"github.com/YXL76/Ingram/kernel/goruntime"
	"github.com/YXL76/Ingram/kernel/kfmt"
	"github.com/YXL76/Ingram/kernel/mm/heap"
	"github.com/YXL76/Ingram/kernel/mm/pmm"
	"github.com/YXL76/Ingram/kernel/mm/vmm"
)

// PhysMemOffset is the virtual address at which the boot loader is
// configured to map the complete physical address space.
const PhysMemOffset = uintptr(0x0000_4000_0000_0000)

var (
	errKmainReturned      = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
	errPhysOffsetMismatch = &kernel.Error{Module: "kmain", Message: "boot loader mapped physical memory at an unexpected offset"}

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	pmmInitFn       = pmm.Init
	activeMapperFn  = vmm.ActiveMapper
	heapInitFn      = heap.Init
	goruntimeInitFn = goruntime.Init
	panicFn         = kfmt.Panic
)

// Kmain is invoked by the boot loader entry code with the boot information
// describing the physical memory map. It initializes the frame allocator,
// maps the kernel heap arena and enables the Go runtime allocation hooks.
//
// Kmain is not expected to return. If it does, the entry code will halt the
// CPU.
//
//go:noinline
func Kmain(info *boot.Info) {
	if info.PhysMemOffset != PhysMemOffset {
		kfmt.Printf("[kmain] expected physical memory at 0x%16x; got 0x%16x\n", PhysMemOffset, info.PhysMemOffset)
		panicFn(errPhysOffsetMismatch)
		return
	}

	vmm.SetPhysOffset(info.PhysMemOffset)
	pmmInitFn(info)

	mapper := activeMapperFn(info.PhysMemOffset)
	if err := heapInitFn(&mapper); err != nil {
		panicFn(err)
		return
	}
	if err := goruntimeInitFn(); err != nil {
		panicFn(err)
		return
	}

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	panicFn(errKmainReturned)
}
