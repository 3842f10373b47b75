package heap

import "encoding/binary"

// arena provides word access to the bytes backing the heap. Addresses are
// virtual addresses in [base, base+len(mem)).
type arena struct {
	base uintptr
	mem  []byte
}

func (a *arena) readWord(addr uintptr) uintptr {
	return uintptr(binary.LittleEndian.Uint64(a.mem[addr-a.base:]))
}

func (a *arena) writeWord(addr, value uintptr) {
	binary.LittleEndian.PutUint64(a.mem[addr-a.base:], uint64(value))
}

// holeList is an address-sorted singly linked list of free ranges (holes)
// whose headers live inside the free bytes themselves. Each hole starts with
// a {next, size} header; a next value of 0 terminates the list.
//
// The following invariants hold after every operation:
//   - holes do not overlap and are sorted by ascending address.
//   - no two holes are byte-adjacent.
//   - every hole is at least holeHeaderSize bytes long.
//
// Every allocated block is preceded by a single word recording the number of
// bytes the block occupies (header included). deallocate uses it to return
// the exact number of bytes, slack included, to the list.
type holeList struct {
	arena arena

	// first is the address of the lowest hole or 0 if the list is empty.
	// It plays the role of the sentinel's next link.
	first uintptr
}

// newHoleList creates a list containing a single hole that spans mem. The
// caller must pass a word-aligned, non-zero base and a length that is a
// multiple of wordSize. newHoleList returns false if the arena is too small
// to hold a single hole header; the returned list is then permanently empty.
func newHoleList(base uintptr, mem []byte) (holeList, bool) {
	list := holeList{arena: arena{base: base, mem: mem}}
	if base == 0 || uintptr(len(mem)) < holeHeaderSize {
		return list, false
	}

	list.first = base
	list.writeHole(base, uintptr(len(mem)), 0)
	return list, true
}

func (l *holeList) next(hole uintptr) uintptr { return l.arena.readWord(hole) }
func (l *holeList) size(hole uintptr) uintptr { return l.arena.readWord(hole + wordSize) }

func (l *holeList) writeHole(hole, size, next uintptr) {
	l.arena.writeWord(hole, next)
	l.arena.writeWord(hole+wordSize, size)
}

// link updates the next pointer of prev, where prev == 0 stands for the
// head of the list.
func (l *holeList) link(prev, next uintptr) {
	if prev == 0 {
		l.first = next
		return
	}
	l.arena.writeWord(prev, next)
}

// allocateFirstFit carves a block out of the first hole that can fit size
// bytes at an address aligned to align, which must be a power of two. It
// returns the block address and the number of bytes the block consumes
// from the arena. size must be non-zero.
//
// The block consumes a header word, the size rounded up to wordSize and any
// trailing space too small to form a hole of its own. Front padding is
// returned to the list as a hole at the position of the original one; if
// the padding would be too small to hold a hole, the block is moved further
// into the hole until it is.
func (l *holeList) allocateFirstFit(size, align uintptr) (uintptr, uintptr, bool) {
	if align < wordSize {
		align = wordSize
	}

	for prev, hole := uintptr(0), l.first; hole != 0; prev, hole = hole, l.next(hole) {
		holeSize := l.size(hole)
		if size > holeSize {
			continue
		}

		addr := alignUp(hole+blockHeaderSize, align)
		front := addr - blockHeaderSize - hole
		if front != 0 && front < holeHeaderSize {
			addr = alignUp(hole+holeHeaderSize+blockHeaderSize, align)
			front = addr - blockHeaderSize - hole
		}

		blockSize := blockHeaderSize + alignUp(size, wordSize)
		if front >= holeSize || blockSize > holeSize-front {
			continue
		}

		back := holeSize - front - blockSize
		if back < holeHeaderSize {
			blockSize += back
			back = 0
		}

		// Replace the hole with the padding holes (if any) around the block.
		blockStart := hole + front
		replacement := l.next(hole)
		if back != 0 {
			backHole := blockStart + blockSize
			l.writeHole(backHole, back, replacement)
			replacement = backHole
		}
		if front != 0 {
			l.writeHole(hole, front, replacement)
			replacement = hole
		}
		l.link(prev, replacement)

		l.arena.writeWord(blockStart, blockSize)
		return addr, blockSize, true
	}

	return 0, 0, false
}

// deallocate returns the block at addr to the list, merging it with the
// holes immediately before and after it, and reports the number of bytes
// released. addr must have been returned by allocateFirstFit and not freed
// since.
func (l *holeList) deallocate(addr uintptr) uintptr {
	blockStart := addr - blockHeaderSize
	blockSize := l.arena.readWord(blockStart)

	prev, hole := uintptr(0), l.first
	for hole != 0 && hole < blockStart {
		prev, hole = hole, l.next(hole)
	}

	start, size, next := blockStart, blockSize, hole
	if hole != 0 && start+size == hole {
		size += l.size(hole)
		next = l.next(hole)
	}

	if prev != 0 && prev+l.size(prev) == start {
		l.writeHole(prev, l.size(prev)+size, next)
		return blockSize
	}

	l.writeHole(start, size, next)
	l.link(prev, start)
	return blockSize
}

// visit invokes visitor with the address and size of each hole in address
// order until visitor returns false.
func (l *holeList) visit(visitor func(addr, size uintptr) bool) {
	for hole := l.first; hole != 0; hole = l.next(hole) {
		if !visitor(hole, l.size(hole)) {
			return
		}
	}
}

// freeBytes returns the total size of all holes.
func (l *holeList) freeBytes() uintptr {
	var total uintptr
	l.visit(func(_, size uintptr) bool {
		total += size
		return true
	})
	return total
}

// alignUp rounds addr up to a multiple of align, which must be a power of
// two.
func alignUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}

// alignDown rounds addr down to a multiple of align, which must be a power
// of two.
func alignDown(addr, align uintptr) uintptr {
	return addr &^ (align - 1)
}
