package kfmt

import "io"

// PrefixWriter is an io.Writer that injects Prefix at the start of every line
// written to Sink. Memory subsystem components wrap the output sink with one
// to tag their lines (e.g. "[pmm] "). A nil Sink sends the output wherever
// Printf output currently goes.
type PrefixWriter struct {
	Sink   io.Writer
	Prefix []byte

	midLine bool
}

// Write writes p to the sink, inserting the prefix after every newline. The
// returned count excludes the injected prefix bytes.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	if w.Sink == nil {
		return w.writeTo(activeOutput{}, p)
	}
	return w.writeTo(w.Sink, p)
}

func (w *PrefixWriter) writeTo(sink io.Writer, p []byte) (int, error) {
	var written, start int

	for i := 0; i < len(p); i++ {
		if !w.midLine {
			if _, err := sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		if p[i] != '\n' {
			continue
		}

		n, err := sink.Write(p[start : i+1])
		written += n
		if err != nil {
			return written, err
		}
		start = i + 1
		w.midLine = false
	}

	if start < len(p) {
		n, err := sink.Write(p[start:])
		written += n
		if err != nil {
			return written, err
		}
	}

	return written, nil
}

// activeOutput forwards writes to the output sink or, while none is
// attached, to the early output buffer.
type activeOutput struct{}

func (activeOutput) Write(p []byte) (int, error) {
	write(outputSink, p)
	return len(p), nil
}
