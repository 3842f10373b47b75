// Package vmm manages virtual memory mappings through the page tables of
// the active address space.
package vmm

import (
	"unsafe"

	"github.com/YXL76/Ingram/kernel"
	"github.com/YXL76/Ingram/kernel/cpu"
	"github.com/YXL76/Ingram/kernel/mm"
)

var (
	// ptePtrFn returns a pointer to the page table entry at the supplied
	// virtual address. It is used by tests to redirect page table accesses
	// to fake tables. When compiling the kernel this function will be
	// automatically inlined.
	ptePtrFn = func(entryAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(entryAddr)
	}

	// flushTLBEntryFn is used by tests to override calls to flushTLBEntry
	// which will cause a fault if called in user-mode.
	flushTLBEntryFn = cpu.FlushTLBEntry

	// activePDTFn is used by tests to override calls to activePDT which
	// will cause a fault if called in user-mode.
	activePDTFn = cpu.ActivePDT

	errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
)

// Mapper installs mappings into a 4-level page table hierarchy. Every table
// is reached through the physical memory window at offset, so the mapper
// works on any hierarchy whose frames are known, active or not.
type Mapper struct {
	root   mm.Frame
	offset uintptr
}

// NewMapper returns a Mapper for the page table hierarchy rooted at root.
// The caller must guarantee that all physical memory is mapped at offset and
// that no other Mapper for the same hierarchy is used concurrently.
func NewMapper(root mm.Frame, offset uintptr) Mapper {
	return Mapper{root: root, offset: offset}
}

// ActiveMapper returns a Mapper for the page table hierarchy currently
// loaded in CR3.
func ActiveMapper(offset uintptr) Mapper {
	return NewMapper(mm.FrameFromAddress(activePDTFn()), offset)
}

// Root returns the frame holding the top-level page table.
func (m *Mapper) Root() mm.Frame {
	return m.root
}

// pageTableWalker is a function that can be passed to the walk method. The
// function receives the current page level and page table entry as its
// arguments. If the function returns false, then the page walk is aborted.
type pageTableWalker func(pteLevel uint8, pte *pageTableEntry) bool

// walk performs a page table walk for the given virtual address, calling
// walkFn with the entry that corresponds to each level. After walkFn returns
// true, the walk descends into the table referenced by the (possibly updated)
// entry.
func (m *Mapper) walk(virtAddr uintptr, walkFn pageTableWalker) {
	table := m.root
	for level := uint8(0); level < pageLevels; level++ {
		entryIndex := (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
		entryAddr := m.offset + table.Address() + (entryIndex << mm.PointerShift)

		pte := (*pageTableEntry)(ptePtrFn(entryAddr))
		if !walkFn(level, pte) {
			return
		}

		table = pte.Frame()
	}
}

// clearTable zeroes all entries of the page table stored in frame.
func (m *Mapper) clearTable(frame mm.Frame) {
	tableAddr := m.offset + frame.Address()
	for index := uintptr(0); index < entriesPerTable; index++ {
		*(*pageTableEntry)(ptePtrFn(tableAddr + (index << mm.PointerShift))) = 0
	}
}

// MapTo establishes a present mapping between a virtual page and a physical
// frame. Missing intermediate tables are allocated with mm.AllocFrame and
// cleared. The TLB entry for page is flushed before MapTo returns, so a
// successful mapping is immediately visible.
//
// MapTo fails with ErrPageAlreadyMapped if page is already mapped.
func (m *Mapper) MapTo(page mm.Page, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	var err *kernel.Error

	m.walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		if pteLevel == pageLevels-1 {
			if pte.HasFlags(FlagPresent) {
				err = ErrPageAlreadyMapped
				return false
			}

			*pte = 0
			pte.SetFrame(frame)
			pte.SetFlags(flags | FlagPresent)
			flushTLBEntryFn(page.Address())
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		// Next table does not yet exist; we need to allocate a
		// physical frame for it and clear its contents.
		if !pte.HasFlags(FlagPresent) {
			var tableFrame mm.Frame
			if tableFrame, err = mm.AllocFrame(); err != nil {
				return false
			}

			m.clearTable(tableFrame)
			*pte = 0
			pte.SetFrame(tableFrame)
			pte.SetFlags(FlagPresent | FlagRW)
		}

		// Upper levels must not be more restrictive than the leaf.
		if flags&FlagUserAccessible != 0 {
			pte.SetFlags(FlagUserAccessible)
		}

		return true
	})

	return err
}

// IdentityMap maps frame to the page with the same address.
func (m *Mapper) IdentityMap(frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	return m.MapTo(mm.Page(frame), frame, flags)
}

// Unmap removes the mapping for page and returns the frame it pointed to so
// the caller can release it.
func (m *Mapper) Unmap(page mm.Page) (mm.Frame, *kernel.Error) {
	pte, err := m.leafEntry(page.Address())
	if err != nil {
		return mm.InvalidFrame, err
	}

	frame := pte.Frame()
	*pte = 0
	flushTLBEntryFn(page.Address())
	return frame, nil
}

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if the virtual address does not
// correspond to a mapped physical address.
func (m *Mapper) Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	pte, err := m.leafEntry(virtAddr)
	if err != nil {
		return 0, err
	}

	return pte.Frame().Address() + PageOffset(virtAddr), nil
}

// leafEntry walks the tables for virtAddr and returns its last-level entry,
// or ErrInvalidMapping if any level is not present.
func (m *Mapper) leafEntry(virtAddr uintptr) (*pageTableEntry, *kernel.Error) {
	var (
		err   *kernel.Error
		entry *pageTableEntry
	)

	m.walk(virtAddr, func(pteLevel uint8, pte *pageTableEntry) bool {
		switch {
		case !pte.HasFlags(FlagPresent):
			err = ErrInvalidMapping
		case pteLevel != pageLevels-1 && pte.HasFlags(FlagHugePage):
			err = errNoHugePageSupport
		case pteLevel == pageLevels-1:
			entry = pte
		default:
			return true
		}
		return false
	})

	return entry, err
}

// PageOffset returns the offset within the page specified by a virtual
// address.
func PageOffset(virtAddr uintptr) uintptr {
	return (virtAddr & ((1 << pageLevelShifts[pageLevels-1]) - 1))
}
