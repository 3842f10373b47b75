// Package mm defines the frame and page types shared by the physical and
// virtual memory managers, and the registration point for the active
// physical frame allocator.
package mm

import (
	"math"

	"github.com/YXL76/Ingram/kernel"
)

// Frame describes a physical memory frame index.
type Frame uintptr

const (
	// InvalidFrame is returned by frame allocators when they fail to
	// reserve a frame.
	InvalidFrame = Frame(math.MaxUint64)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of the first byte in this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f << PageShift)
}

// FrameFromAddress returns the Frame that contains the given physical
// address. Unaligned addresses are rounded down.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr & ^(PageSize - 1)) >> PageShift)
}

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual address of the first byte in this Page.
func (p Page) Address() uintptr {
	return uintptr(p << PageShift)
}

// PageFromAddress returns the Page that contains the given virtual address.
// Unaligned addresses are rounded down.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr & ^(PageSize - 1)) >> PageShift)
}

var (
	// frameAllocator and frameDeallocator point to the functions registered
	// using SetFrameAllocator.
	frameAllocator   FrameAllocatorFn
	frameDeallocator FrameDeallocatorFn

	// ErrNoFrameAllocator is returned by AllocFrame and FreeFrame when no
	// frame allocator has been registered.
	ErrNoFrameAllocator = &kernel.Error{Module: "mm", Message: "no frame allocator registered"}
)

// FrameAllocatorFn is a function that can allocate physical frames.
type FrameAllocatorFn func() (Frame, *kernel.Error)

// FrameDeallocatorFn is a function that returns a physical frame to the
// allocator it was obtained from.
type FrameDeallocatorFn func(Frame) *kernel.Error

// SetFrameAllocator registers the functions used whenever the kernel needs
// to reserve or release physical frames (e.g. for new page tables).
func SetFrameAllocator(allocFn FrameAllocatorFn, freeFn FrameDeallocatorFn) {
	frameAllocator, frameDeallocator = allocFn, freeFn
}

// AllocFrame allocates a new physical frame using the currently active
// physical frame allocator.
func AllocFrame() (Frame, *kernel.Error) {
	if frameAllocator == nil {
		return InvalidFrame, ErrNoFrameAllocator
	}
	return frameAllocator()
}

// FreeFrame releases a frame previously obtained via AllocFrame. The caller
// must guarantee that no mapping references the frame anymore.
func FreeFrame(f Frame) *kernel.Error {
	if frameDeallocator == nil {
		return ErrNoFrameAllocator
	}
	return frameDeallocator(f)
}
