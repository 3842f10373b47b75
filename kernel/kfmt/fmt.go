// Package kfmt implements allocation-free formatted output for the kernel.
// The memory subsystem logs through it while the heap it is setting up (or
// holding the lock of) cannot be used.
package kfmt

import (
	"io"
	"unsafe"
)

// numBufSize is large enough for a 64-bit value in base 8 plus a sign.
const numBufSize = 24

var (
	msgMissingArg = []byte("%!(MISSING)")
	msgBadType    = []byte("%!(BADTYPE)")
	msgNoVerb     = []byte("%!(NOVERB)")
	msgExtraArg   = []byte("%!(EXTRA)")
	msgTrue       = []byte("true")
	msgFalse      = []byte("false")
	hexDigits     = "0123456789abcdef"

	numBuf [numBufSize]byte

	// oneByte is a shared buffer for writing single characters without
	// allocating a slice per call.
	oneByte = []byte{0}

	// earlyBuf captures output produced before an output sink is attached.
	earlyBuf ringBuffer

	// outputSink receives the output of Printf. While nil, output is stored
	// in earlyBuf.
	outputSink io.Writer
)

// SetOutputSink redirects Printf output to w and replays any output captured
// before a sink was available.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		_, _ = io.Copy(w, &earlyBuf)
	}
}

// Printf formats according to a format specifier and writes to the active
// output sink. The supported verbs are:
//
//	%s  string or []byte
//	%d  base 10 integer
//	%x  base 16 integer, lower-case, zero padded
//	%o  base 8 integer, zero padded
//	%t  bool
//	%%  a literal percent sign
//
// An optional decimal width may precede the verb. Strings and base-10 values
// are padded with spaces; base-8 and base-16 values with zeroes.
//
// Printf never allocates, which makes it safe to call from inside the heap
// allocator and before the heap exists.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves like Printf but writes to w.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		width    int
	)

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			writeByte(w, format[i])
			continue
		}

		width = 0
		for i++; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}

		if i == len(format) {
			write(w, msgNoVerb)
			break
		}

		verb := format[i]
		if verb == '%' {
			writeByte(w, '%')
			continue
		}

		if argIndex >= len(args) {
			write(w, msgMissingArg)
			continue
		}

		arg := args[argIndex]
		argIndex++

		switch verb {
		case 'd':
			fmtInt(w, arg, 10, width)
		case 'x':
			fmtInt(w, arg, 16, width)
		case 'o':
			fmtInt(w, arg, 8, width)
		case 's':
			fmtString(w, arg, width)
		case 't':
			fmtBool(w, arg)
		default:
			write(w, msgNoVerb)
		}
	}

	for ; argIndex < len(args); argIndex++ {
		write(w, msgExtraArg)
	}
}

func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	switch {
	case !ok:
		write(w, msgBadType)
	case b:
		write(w, msgTrue)
	default:
		write(w, msgFalse)
	}
}

func fmtString(w io.Writer, v interface{}, width int) {
	switch s := v.(type) {
	case string:
		pad(w, ' ', width-len(s))
		for i := 0; i < len(s); i++ {
			writeByte(w, s[i])
		}
	case []byte:
		pad(w, ' ', width-len(s))
		write(w, s)
	default:
		write(w, msgBadType)
	}
}

// fmtInt writes v in the requested base. All built-in integer types are
// supported.
func fmtInt(w io.Writer, v interface{}, base uint64, width int) {
	var (
		val uint64
		neg bool
	)

	switch n := v.(type) {
	case uint8:
		val = uint64(n)
	case uint16:
		val = uint64(n)
	case uint32:
		val = uint64(n)
	case uint64:
		val = n
	case uint:
		val = uint64(n)
	case uintptr:
		val = uint64(n)
	case int8:
		val, neg = abs(int64(n))
	case int16:
		val, neg = abs(int64(n))
	case int32:
		val, neg = abs(int64(n))
	case int64:
		val, neg = abs(n)
	case int:
		val, neg = abs(int64(n))
	default:
		write(w, msgBadType)
		return
	}

	// Digits are produced right to left.
	pos := numBufSize
	for {
		pos--
		numBuf[pos] = hexDigits[val%base]
		val /= base
		if val == 0 {
			break
		}
	}

	digits := numBufSize - pos
	if neg {
		digits++
	}

	if base == 10 {
		pad(w, ' ', width-digits)
		if neg {
			writeByte(w, '-')
		}
	} else {
		if neg {
			writeByte(w, '-')
		}
		pad(w, '0', width-digits)
	}

	write(w, numBuf[pos:])
}

func abs(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

func pad(w io.Writer, ch byte, count int) {
	for ; count > 0; count-- {
		writeByte(w, ch)
	}
}

func writeByte(w io.Writer, b byte) {
	oneByte[0] = b
	write(w, oneByte)
}

// write hides p from escape analysis. The sink is an interface value the
// compiler cannot see through, so without this every caller would move its
// buffer to the heap.
func write(w io.Writer, p []byte) {
	realWrite(w, noEscape(unsafe.Pointer(&p)))
}

func realWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		_, _ = w.Write(p)
		return
	}

	_, _ = earlyBuf.Write(p)
}

// noEscape hides a pointer from escape analysis. Copied from runtime/stubs.go.
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
