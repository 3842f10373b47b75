package vmm

import (
	"github.com/YXL76/Ingram/kernel/kfmt"
	"github.com/YXL76/Ingram/kernel/mm"
)

var (
	// panicFn is mocked by tests and is automatically inlined by the compiler.
	panicFn = kfmt.Panic
)

// AllocVirt backs every page in the inclusive virtual range [start, end] with
// a newly allocated frame. FlagPresent is always added to flags; a zero flags
// value means FlagRW.
//
// The caller depends on these mappings to continue booting, so running out
// of frames or finding an existing mapping is fatal.
func AllocVirt(m *Mapper, start, end uintptr, flags PageTableEntryFlag) MappedRegion {
	if flags == 0 {
		flags = FlagRW
	}
	flags |= FlagPresent

	startPage, endPage := mm.PageFromAddress(start), mm.PageFromAddress(end)
	for page := startPage; page <= endPage; page++ {
		frame, err := mm.AllocFrame()
		if err != nil {
			panicFn(err)
			return MappedRegion{}
		}

		if err = m.MapTo(page, frame, flags); err != nil {
			panicFn(err)
			return MappedRegion{}
		}
	}

	return MappedRegion{
		Start: startPage.Address(),
		Size:  uintptr(endPage-startPage+1) << mm.PageShift,
		Flags: flags,
	}
}

// AllocPhys identity-maps every frame in the inclusive physical range
// [start, end]. It is used for device registers and firmware tables. A zero
// flags value means FlagRW|FlagDoNotCache; FlagPresent is always added.
//
// Failing to establish a mapping is fatal.
func AllocPhys(m *Mapper, start, end uintptr, flags PageTableEntryFlag) MappedRegion {
	if flags == 0 {
		flags = FlagRW | FlagDoNotCache
	}
	flags |= FlagPresent

	startFrame, endFrame := mm.FrameFromAddress(start), mm.FrameFromAddress(end)
	for frame := startFrame; frame <= endFrame; frame++ {
		if err := m.IdentityMap(frame, flags); err != nil {
			panicFn(err)
			return MappedRegion{}
		}
	}

	return MappedRegion{
		Start: startFrame.Address(),
		Size:  uintptr(endFrame-startFrame+1) << mm.PageShift,
		Flags: flags,
	}
}
