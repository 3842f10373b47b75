package heap

import "github.com/YXL76/Ingram/kernel/mm"

const (
	// wordSize is the size of a single header field. All hole addresses
	// and sizes are multiples of wordSize.
	wordSize = uintptr(8)

	// holeHeaderSize is the size of the {next, size} header stored at the
	// start of every hole. No hole can be smaller than its header.
	holeHeaderSize = 2 * wordSize

	// blockHeaderSize is the size of the word preceding every allocated
	// block that records how many bytes the block occupies.
	blockHeaderSize = wordSize

	// ArenaStart is the virtual address of the kernel heap arena.
	ArenaStart = uintptr(0x0004_4444_4440) << mm.PageShift

	// ArenaSize is the size of the kernel heap arena (512 MiB).
	ArenaSize = 128 * 1024 * mm.PageSize

	// ArenaEnd is the address of the last byte of the kernel heap arena.
	ArenaEnd = ArenaStart + ArenaSize - 1
)
