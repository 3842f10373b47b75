package main

import (
	"github.com/YXL76/Ingram/kernel/boot"
	"github.com/YXL76/Ingram/kernel/kmain"
)

var bootInfo *boot.Info

// main makes a dummy call to the actual kernel main entrypoint function. It
// is intentionally defined to prevent the Go compiler from optimizing away the
// real kernel code.
//
// A global variable is passed as an argument to Kmain to prevent the compiler
// from inlining the actual call and removing Kmain from the generated .o file.
func main() {
	kmain.Kmain(bootInfo)
}
