package vmm

import (
	"testing"

	"github.com/YXL76/Ingram/kernel/mm"
)

func TestPtePtrFn(t *testing.T) {
	// Dummy test to keep coverage happy
	if exp, got := uintptr(123), uintptr(ptePtrFn(uintptr(123))); exp != got {
		t.Fatalf("expected ptePtrFn to return %v; got %v", exp, got)
	}
}

func TestActiveMapper(t *testing.T) {
	defer func(orig func() uintptr) {
		activePDTFn = orig
	}(activePDTFn)

	activePDTFn = func() uintptr { return 0x1234000 }

	m := ActiveMapper(testPhysOffset)
	if exp, got := mm.Frame(0x1234), m.Root(); got != exp {
		t.Fatalf("expected root frame to be %d; got %d", exp, got)
	}
}

func TestMapToAndTranslate(t *testing.T) {
	mem, restore := setupFakePhysMem()
	defer restore()

	m := NewMapper(mm.Frame(0), testPhysOffset)

	specs := []struct {
		virtAddr uintptr
		frame    mm.Frame
		flags    PageTableEntryFlag
	}{
		{0x4444_4440_0000, mm.Frame(0x10), FlagRW},
		{0x4444_4440_1000, mm.Frame(0x11), FlagRW | FlagNoExecute},
		{0xdead_b000, mm.Frame(0xabc), FlagUserAccessible},
	}

	for specIndex, spec := range specs {
		page := mm.PageFromAddress(spec.virtAddr)
		if err := m.MapTo(page, spec.frame, spec.flags); err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", specIndex, err)
		}

		leaf := mem.entry(spec.virtAddr, pageLevels-1)
		if leaf == nil {
			t.Fatalf("[spec %d] expected leaf entry to be reachable", specIndex)
		}
		if !leaf.HasFlags(spec.flags | FlagPresent) {
			t.Errorf("[spec %d] expected leaf entry to have flags %x; got %x", specIndex, spec.flags|FlagPresent, uintptr(*leaf))
		}
		if got := leaf.Frame(); got != spec.frame {
			t.Errorf("[spec %d] expected leaf entry to point to frame %d; got %d", specIndex, spec.frame, got)
		}

		for level := uint8(0); level < pageLevels-1; level++ {
			pte := mem.entry(spec.virtAddr, level)
			if !pte.HasFlags(FlagPresent | FlagRW) {
				t.Errorf("[spec %d] expected level %d entry to be present and writable", specIndex, level)
			}
			if exp, got := spec.flags&FlagUserAccessible != 0, pte.HasFlags(FlagUserAccessible); exp != got {
				t.Errorf("[spec %d] expected level %d user flag to be %t; got %t", specIndex, level, exp, got)
			}
		}

		if got := mem.flushCalls[len(mem.flushCalls)-1]; got != page.Address() {
			t.Errorf("[spec %d] expected TLB flush for %x; got %x", specIndex, page.Address(), got)
		}

		physAddr, err := m.Translate(spec.virtAddr + 0x123)
		if err != nil {
			t.Errorf("[spec %d] unexpected translate error: %v", specIndex, err)
			continue
		}
		if exp := spec.frame.Address() + 0x123; physAddr != exp {
			t.Errorf("[spec %d] expected translated address %x; got %x", specIndex, exp, physAddr)
		}
	}

	// The first two pages share all intermediate tables: 3 tables for them
	// plus 3 for the third page.
	if exp := 6; mem.allocCalls != exp {
		t.Errorf("expected %d table allocations; got %d", exp, mem.allocCalls)
	}

	// Freshly allocated tables must have been cleared.
	for frame := 1; frame < len(mem.tables); frame++ {
		for index, pte := range mem.tables[frame] {
			if pte != 0 && !pte.HasFlags(FlagPresent) {
				t.Fatalf("expected entry %d of table %d to be cleared; got %x", index, frame, uintptr(pte))
			}
		}
	}
}

func TestMapToErrors(t *testing.T) {
	t.Run("already mapped", func(t *testing.T) {
		mem, restore := setupFakePhysMem()
		defer restore()

		m := NewMapper(mm.Frame(0), testPhysOffset)
		page := mm.PageFromAddress(0x7000)
		if err := m.MapTo(page, mm.Frame(1), FlagRW); err != nil {
			t.Fatal(err)
		}

		if err := m.MapTo(page, mm.Frame(2), FlagRW); err != ErrPageAlreadyMapped {
			t.Fatalf("expected ErrPageAlreadyMapped; got %v", err)
		}

		if got := mem.entry(page.Address(), pageLevels-1).Frame(); got != mm.Frame(1) {
			t.Fatalf("expected existing mapping to be preserved; got frame %d", got)
		}
	})

	t.Run("huge page", func(t *testing.T) {
		mem, restore := setupFakePhysMem()
		defer restore()

		m := NewMapper(mm.Frame(0), testPhysOffset)
		mem.tables[0][0].SetFlags(FlagPresent | FlagHugePage)

		if err := m.MapTo(mm.Page(0), mm.Frame(1), FlagRW); err != errNoHugePageSupport {
			t.Fatalf("expected errNoHugePageSupport; got %v", err)
		}
		if _, err := m.Translate(0); err != errNoHugePageSupport {
			t.Fatalf("expected errNoHugePageSupport; got %v", err)
		}
	})

	t.Run("frame allocation fails", func(t *testing.T) {
		mem, restore := setupFakePhysMem()
		defer restore()

		mem.failAllocAt = 2
		m := NewMapper(mm.Frame(0), testPhysOffset)

		err := m.MapTo(mm.Page(0), mm.Frame(1), FlagRW)
		if err == nil || err.Module != "test" {
			t.Fatalf("expected allocator error; got %v", err)
		}
		if len(mem.flushCalls) != 0 {
			t.Fatal("expected no TLB flush when mapping fails")
		}
	})

	t.Run("no frame allocator", func(t *testing.T) {
		_, restore := setupFakePhysMem()
		defer restore()

		mm.SetFrameAllocator(nil, nil)
		m := NewMapper(mm.Frame(0), testPhysOffset)
		if err := m.MapTo(mm.Page(0), mm.Frame(1), FlagRW); err != mm.ErrNoFrameAllocator {
			t.Fatalf("expected ErrNoFrameAllocator; got %v", err)
		}
	})
}

func TestIdentityMap(t *testing.T) {
	_, restore := setupFakePhysMem()
	defer restore()

	m := NewMapper(mm.Frame(0), testPhysOffset)
	frame := mm.Frame(0xfee00)
	if err := m.IdentityMap(frame, FlagRW|FlagDoNotCache); err != nil {
		t.Fatal(err)
	}

	physAddr, err := m.Translate(frame.Address())
	if err != nil {
		t.Fatal(err)
	}
	if physAddr != frame.Address() {
		t.Fatalf("expected identity translation for %x; got %x", frame.Address(), physAddr)
	}
}

func TestUnmap(t *testing.T) {
	mem, restore := setupFakePhysMem()
	defer restore()

	m := NewMapper(mm.Frame(0), testPhysOffset)
	page := mm.PageFromAddress(0x4000_0000)

	if _, err := m.Unmap(page); err != ErrInvalidMapping {
		t.Fatalf("expected ErrInvalidMapping when unmapping an unmapped page; got %v", err)
	}

	if err := m.MapTo(page, mm.Frame(42), FlagRW); err != nil {
		t.Fatal(err)
	}

	frame, err := m.Unmap(page)
	if err != nil {
		t.Fatal(err)
	}
	if frame != mm.Frame(42) {
		t.Fatalf("expected Unmap to return frame 42; got %d", frame)
	}

	if got := len(mem.flushCalls); got != 2 {
		t.Fatalf("expected 2 TLB flushes; got %d", got)
	}

	if _, err := m.Translate(page.Address()); err != ErrInvalidMapping {
		t.Fatalf("expected ErrInvalidMapping after Unmap; got %v", err)
	}

	// The page can now be mapped again.
	if err := m.MapTo(page, mm.Frame(43), FlagRW); err != nil {
		t.Fatalf("expected remap to succeed; got %v", err)
	}
}

func TestTranslateUnmapped(t *testing.T) {
	_, restore := setupFakePhysMem()
	defer restore()

	m := NewMapper(mm.Frame(0), testPhysOffset)
	if _, err := m.Translate(0xcafe_b000); err != ErrInvalidMapping {
		t.Fatalf("expected ErrInvalidMapping; got %v", err)
	}
}

func TestPageOffset(t *testing.T) {
	specs := []struct {
		virtAddr uintptr
		exp      uintptr
	}{
		{0x0, 0x0},
		{0x1fff, 0xfff},
		{0xdead_beef, 0xeef},
	}

	for specIndex, spec := range specs {
		if got := PageOffset(spec.virtAddr); got != spec.exp {
			t.Errorf("[spec %d] expected offset %x; got %x", specIndex, spec.exp, got)
		}
	}
}
