// Package goruntime connects the memory allocation hooks of the Go runtime
// to the kernel heap and bootstraps the runtime allocator.
package goruntime

import (
	"github.com/YXL76/Ingram/kernel"
)

var (
	mallocInitFn    = mallocInit
	algInitFn       = algInit
	modulesInitFn   = modulesInit
	typeLinksInitFn = typeLinksInit
	itabsInitFn     = itabsInit

	// A seed for the pseudo-random number generator used by getRandomData
	prngSeed = 0xdeadc0de

	// enabled is set by Init once the kernel heap can serve requests.
	enabled bool
)

// nanotime returns a monotonically increasing clock value. This is a dummy
// implementation until a proper clock source is available.
//
// This function replaces runtime.nanotime and is invoked by the Go allocator
// when a span allocation is performed.
//
//go:redirect-from runtime.nanotime
//go:nosplit
func nanotime() int64 {
	// Use a dummy loop to prevent the compiler from inlining this function.
	for i := 0; i < 100; i++ {
	}
	return 1
}

// getRandomData populates the given slice with random data. The
// implementation is the runtime package's reference pseudo-random generator.
//
// This function replaces runtime.getRandomData and is invoked by the runtime
// hash functions.
//
//go:redirect-from runtime.getRandomData
func getRandomData(r []byte) {
	for i := 0; i < len(r); i++ {
		prngSeed = (prngSeed * 58321) + 11113
		r[i] = byte((prngSeed >> 16) & 255)
	}
}

// Init enables the runtime memory hooks and runs the parts of the Go runtime
// bootstrap sequence that the rt0 code skips. It must be called after the
// kernel heap has been initialized.
func Init() *kernel.Error {
	enabled = true

	mallocInitFn()
	algInitFn()       // setup hash implementation for map keys
	modulesInitFn()   // provides activeModules
	typeLinksInitFn() // uses maps, activeModules
	itabsInitFn()     // uses activeModules

	return nil
}

func init() {
	// Dummy calls so the compiler does not optimize away the functions in
	// this file.
	var (
		stat    uint64
		zeroPtr = sysReserve(nil, 0)
	)

	sysMap(zeroPtr, 0, &stat)
	sysFree(sysAlloc(0, &stat), 0, &stat)
	getRandomData(nil)
	stat = uint64(nanotime())
}
