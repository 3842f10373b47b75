// Package pmm implements the physical memory manager.
package pmm

import (
	"github.com/YXL76/Ingram/kernel"
	"github.com/YXL76/Ingram/kernel/boot"
	"github.com/YXL76/Ingram/kernel/mm"
)

var (
	// frameAllocator is the allocator used by the kernel for all frame
	// allocations once Init returns.
	frameAllocator FrameAllocator
)

// Init seeds the kernel frame allocator with the boot memory map and
// registers it as the active allocator for the mm package.
func Init(info *boot.Info) {
	frameAllocator.Init(info.MemoryRegions)
	frameAllocator.PrintMemoryMap()
	mm.SetFrameAllocator(allocFrame, freeFrame)
}

func allocFrame() (mm.Frame, *kernel.Error) {
	return frameAllocator.AllocFrame()
}

func freeFrame(frame mm.Frame) *kernel.Error {
	return frameAllocator.FreeFrame(frame)
}
