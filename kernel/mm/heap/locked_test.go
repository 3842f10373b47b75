package heap

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/YXL76/Ingram/kernel/mm/vmm"
)

func testRegion(size int) vmm.MappedRegion {
	buf := make([]byte, size)
	return vmm.MappedRegion{
		Start: uintptr(unsafe.Pointer(&buf[0])),
		Size:  uintptr(size),
		Flags: vmm.FlagPresent | vmm.FlagRW,
	}
}

func TestLockedHeap(t *testing.T) {
	var l LockedHeap
	if err := l.Init(testRegion(4096)); err != nil {
		t.Fatal(err)
	}

	addr := l.Alloc(100, 16)
	if addr == 0 || addr%16 != 0 {
		t.Fatalf("expected a 16-byte aligned address; got 0x%x", addr)
	}

	if used, free := l.Stats(); used != 112 || used+free != l.heap.Size() {
		t.Fatalf("expected 112 used bytes; got used %d, free %d", used, free)
	}

	if got := l.Alloc(8192, 8); got != 0 {
		t.Fatalf("expected an oversized request to return 0; got 0x%x", got)
	}

	l.Free(addr, 100, 16)
	if used, _ := l.Stats(); used != 0 {
		t.Fatalf("expected the heap to be empty; used %d", used)
	}
}

func TestLockedHeapConcurrentAccess(t *testing.T) {
	const (
		workers          = 8
		allocsPerWorker  = 500
		blocksPerRequest = 4
	)

	var l LockedHeap
	if err := l.Init(testRegion(64 * 1024)); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()

			var blocks [blocksPerRequest]uintptr
			for i := 0; i < allocsPerWorker; i++ {
				size := uintptr(8 * (1 + (w+i)%16))
				for j := range blocks {
					if blocks[j] = l.Alloc(size, 8); blocks[j] == 0 {
						t.Errorf("[worker %d] allocation %d failed", w, i)
						return
					}
				}
				for j := range blocks {
					l.Free(blocks[j], size, 8)
				}
			}
		}(w)
	}
	wg.Wait()

	if used, free := l.Stats(); used != 0 || free != l.heap.Size() {
		t.Fatalf("expected the heap to be empty; used %d, free %d", used, free)
	}
	checkHeapInvariants(t, &l.heap)
}
