package tiktok

import (
	"fmt"
	"io"
)

// Notifier is the sink for human-readable diagnostics: invalid inputs,
// dropped config records, failed scrapes. Notices never affect control flow.
type Notifier interface {
	Notice(format string, args ...any)
}

// StreamNotifier writes notices to a stream, one per line, with the
// tool's prefix.
type StreamNotifier struct {
	W io.Writer
}

func NewStreamNotifier(w io.Writer) *StreamNotifier { return &StreamNotifier{W: w} }

func (n *StreamNotifier) Notice(format string, args ...any) {
	fmt.Fprintf(n.W, "[TIKTOK-DL] "+format+"\n", args...)
}

// NopNotifier discards all notices. Use in tests and quiet worker threads.
type NopNotifier struct{}

func NewNopNotifier() *NopNotifier { return &NopNotifier{} }

func (*NopNotifier) Notice(string, ...any) {}
