package pmm

import (
	"encoding/binary"

	"github.com/YXL76/Ingram/kernel"
	"github.com/YXL76/Ingram/kernel/boot"
	"github.com/YXL76/Ingram/kernel/kfmt"
	"github.com/YXL76/Ingram/kernel/mm"
	"github.com/YXL76/Ingram/kernel/mm/vmm"
)

var (
	// ErrOutOfMemory is returned by AllocFrame when both the reclaim queue
	// and the usable regions are exhausted.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}

	errInvalidFrame = &kernel.Error{Module: "pmm", Message: "attempted to free an invalid frame"}

	// logWriter tags every line of the memory map dump.
	logWriter = kfmt.PrefixWriter{Prefix: []byte("[pmm] ")}

	// frameLinkFn returns the word inside a freed frame that links it to
	// the next frame in the reclaim queue. Tests override it to keep links
	// in host memory.
	frameLinkFn = func(frame mm.Frame) []byte {
		return vmm.PhysRegion(frame.Address(), linkSize).Bytes()
	}
)

const linkSize = uintptr(8)

// FrameAllocator hands out physical frames from the Usable regions of the
// boot memory map.
//
// Fresh frames are produced by a cursor that visits the usable regions in
// the order reported by the boot loader; region bounds are rounded inward to
// frame boundaries so partially usable frames are never returned. Freed
// frames are kept in a FIFO reclaim queue and reused before the cursor
// advances. The queue is threaded through the first word of the freed frames
// themselves so it never needs to allocate.
//
// FrameAllocator is not safe for concurrent use.
type FrameAllocator struct {
	regions []boot.MemoryRegion

	// cursor state: the index of the next region to examine and the
	// remaining frames [nextFrame, endFrame) of the current region.
	regionIndex int
	nextFrame   mm.Frame
	endFrame    mm.Frame

	// reclaim queue
	reclaimHead  mm.Frame
	reclaimTail  mm.Frame
	reclaimCount uint64

	totalFrames uint64
	allocCount  uint64
}

// Init resets the allocator state and seeds it with the supplied memory
// map. Callers must guarantee that every Usable region is really unused.
func (alloc *FrameAllocator) Init(regions []boot.MemoryRegion) {
	*alloc = FrameAllocator{
		regions:     regions,
		reclaimHead: mm.InvalidFrame,
		reclaimTail: mm.InvalidFrame,
	}

	for i := range regions {
		if regions[i].Kind != boot.Usable {
			continue
		}
		start, end := usableFrames(&regions[i])
		alloc.totalFrames += uint64(end - start)
	}
}

// usableFrames returns the frame range [start, end) that lies completely
// inside region.
func usableFrames(region *boot.MemoryRegion) (mm.Frame, mm.Frame) {
	pageSizeMinus1 := uint64(mm.PageSize - 1)
	start := mm.Frame(((region.Start + pageSizeMinus1) & ^pageSizeMinus1) >> mm.PageShift)
	end := mm.Frame((region.End & ^pageSizeMinus1) >> mm.PageShift)
	if region.End < region.Start || end < start {
		return start, start
	}
	return start, end
}

// AllocFrame reserves a physical frame. Frames in the reclaim queue are
// returned in the order they were freed; once the queue is empty the next
// never-used frame is returned. Every returned frame is either never handed
// out before or was freed since it was last handed out.
//
// AllocFrame returns ErrOutOfMemory if no more frames are available.
func (alloc *FrameAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	if alloc.reclaimCount != 0 {
		frame := alloc.reclaimHead
		alloc.reclaimCount--
		if alloc.reclaimCount == 0 {
			alloc.reclaimHead, alloc.reclaimTail = mm.InvalidFrame, mm.InvalidFrame
		} else {
			alloc.reclaimHead = readLink(frame)
		}

		alloc.allocCount++
		return frame, nil
	}

	for alloc.nextFrame >= alloc.endFrame {
		if alloc.regionIndex >= len(alloc.regions) {
			return mm.InvalidFrame, ErrOutOfMemory
		}

		region := &alloc.regions[alloc.regionIndex]
		alloc.regionIndex++
		if region.Kind != boot.Usable {
			continue
		}
		alloc.nextFrame, alloc.endFrame = usableFrames(region)
	}

	frame := alloc.nextFrame
	alloc.nextFrame++
	alloc.allocCount++
	return frame, nil
}

// FreeFrame appends frame to the reclaim queue so a later AllocFrame call
// can reuse it. The caller must own frame and must not access it after the
// call returns. Freeing a frame twice corrupts the queue.
func (alloc *FrameAllocator) FreeFrame(frame mm.Frame) *kernel.Error {
	if !frame.Valid() {
		return errInvalidFrame
	}

	writeLink(frame, mm.InvalidFrame)
	if alloc.reclaimCount == 0 {
		alloc.reclaimHead = frame
	} else {
		writeLink(alloc.reclaimTail, frame)
	}
	alloc.reclaimTail = frame
	alloc.reclaimCount++

	if alloc.allocCount != 0 {
		alloc.allocCount--
	}
	return nil
}

func readLink(frame mm.Frame) mm.Frame {
	return mm.Frame(binary.LittleEndian.Uint64(frameLinkFn(frame)))
}

func writeLink(frame, next mm.Frame) {
	binary.LittleEndian.PutUint64(frameLinkFn(frame), uint64(next))
}

// TotalFrames returns the number of frames covered by the usable regions.
func (alloc *FrameAllocator) TotalFrames() uint64 {
	return alloc.totalFrames
}

// AllocatedFrames returns the number of frames currently handed out.
func (alloc *FrameAllocator) AllocatedFrames() uint64 {
	return alloc.allocCount
}

// ReclaimedFrames returns the number of freed frames waiting for reuse.
func (alloc *FrameAllocator) ReclaimedFrames() uint64 {
	return alloc.reclaimCount
}

// PrintMemoryMap logs the memory map the allocator was seeded with.
func (alloc *FrameAllocator) PrintMemoryMap() {
	kfmt.Fprintf(&logWriter, "system memory map:\n")
	var totalFree uint64
	for i := range alloc.regions {
		region := &alloc.regions[i]
		kfmt.Fprintf(&logWriter, "  [0x%10x - 0x%10x], size: %10d, type: %s\n", region.Start, region.End, region.Size(), region.Kind.String())

		if region.Kind == boot.Usable {
			totalFree += region.Size()
		}
	}
	kfmt.Fprintf(&logWriter, "available memory: %dKb (%d frames)\n", totalFree/1024, alloc.totalFrames)
}
