package mm

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). The pointer
	// size for this architecture is defined as (1 << PointerShift).
	PointerShift = uintptr(3)

	// PageShift is equal to log2(PageSize). It converts between addresses
	// and frame/page numbers.
	PageShift = uintptr(12)

	// PageSize defines the size in bytes of a frame and of a page.
	PageSize = uintptr(1 << PageShift)
)
