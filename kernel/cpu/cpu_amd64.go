// Package cpu exposes the privileged x86_64 instructions used by the memory
// subsystem. The function bodies live in cpu_amd64.s; callers reach them
// through package-level function variables so they can be mocked by tests
// running in user-mode.
package cpu

// Halt disables interrupts and stops instruction execution. It never returns.
func Halt()

// FlushTLBEntry flushes the TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr)

// ActivePDT returns the physical address of the currently active top-level
// page table (the contents of CR3).
func ActivePDT() uintptr
