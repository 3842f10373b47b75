package vmm

import (
	"unsafe"

	"github.com/YXL76/Ingram/kernel"
	"github.com/YXL76/Ingram/kernel/mm"
)

const testPhysOffset = uintptr(0x0000_4000_0000_0000)

// fakePhysMem emulates physical memory as a list of page tables indexed by
// frame number. Frame 0 always holds the root table.
type fakePhysMem struct {
	tables      []*[entriesPerTable]pageTableEntry
	allocCalls  int
	flushCalls  []uintptr
	failAllocAt int
}

// setupFakePhysMem redirects page table accesses, frame allocations and TLB
// flushes to a fakePhysMem. The returned func restores the original hooks.
func setupFakePhysMem() (*fakePhysMem, func()) {
	origPtePtr, origFlush, origActivePDT := ptePtrFn, flushTLBEntryFn, activePDTFn

	mem := &fakePhysMem{
		tables:      []*[entriesPerTable]pageTableEntry{new([entriesPerTable]pageTableEntry)},
		failAllocAt: -1,
	}

	ptePtrFn = func(entryAddr uintptr) unsafe.Pointer {
		physAddr := entryAddr - testPhysOffset
		frame := physAddr >> mm.PageShift
		index := (physAddr & (mm.PageSize - 1)) >> mm.PointerShift
		return unsafe.Pointer(&mem.tables[frame][index])
	}
	flushTLBEntryFn = func(virtAddr uintptr) {
		mem.flushCalls = append(mem.flushCalls, virtAddr)
	}
	activePDTFn = func() uintptr { return 0 }

	mm.SetFrameAllocator(func() (mm.Frame, *kernel.Error) {
		mem.allocCalls++
		if mem.failAllocAt == mem.allocCalls {
			return mm.InvalidFrame, &kernel.Error{Module: "test", Message: "out of frames"}
		}

		// Hand out garbage-filled tables to make sure callers clear them.
		table := new([entriesPerTable]pageTableEntry)
		for i := range table {
			table[i] = 0xbadf00e
		}
		mem.tables = append(mem.tables, table)
		return mm.Frame(len(mem.tables) - 1), nil
	}, nil)

	return mem, func() {
		ptePtrFn, flushTLBEntryFn, activePDTFn = origPtePtr, origFlush, origActivePDT
		mm.SetFrameAllocator(nil, nil)
	}
}

// entry returns the entry at the given level for virtAddr, or nil if an
// upper level is not present.
func (mem *fakePhysMem) entry(virtAddr uintptr, wantLevel uint8) *pageTableEntry {
	table := 0
	for level := uint8(0); level < pageLevels; level++ {
		index := (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
		pte := &mem.tables[table][index]
		if level == wantLevel {
			return pte
		}
		if !pte.HasFlags(FlagPresent) {
			return nil
		}
		table = int(pte.Frame())
	}
	return nil
}
