package relayctl

import (
	"context"
	"fmt"
)

// ErrAdapterBusy signals that the USB interface is already claimed by another
// handle. The FT245 keeps driving its outputs in that state, so callers may
// treat it as non-fatal when they still got a usable handle.
var ErrAdapterBusy = fmt.Errorf("adapter interface already claimed")

// ErrNotConfigured is returned by session I/O before a successful Configure.
var ErrNotConfigured = fmt.Errorf("session is not configured")

// ErrClosed is returned by session operations after Close.
var ErrClosed = fmt.Errorf("session is closed")

// ErrInvalidChannel is returned for channel indices outside [1,8] before any
// I/O takes place.
var ErrInvalidChannel = fmt.Errorf("channel out of range [1,8]")

// Mode holds the FT245R bitmode opcode. In ModeSync every byte accepted by a
// write enqueues one echo byte that must be read back before the next write,
// or the adapter transfer queue stalls.
type Mode byte

const (
	ModeOff   Mode = 0x00
	ModeAsync Mode = 0x01
	ModeSync  Mode = 0x04
)

func (m Mode) String() string {
	switch m {
	case ModeAsync:
		return "async"
	case ModeSync:
		return "sync"
	case ModeOff:
		return "off"
	default:
		return fmt.Sprintf("unknown(%#02x)", byte(m))
	}
}

// WriteOutcome reports how a single register write went: how many bytes the
// adapter accepted and, in sync mode, how many echo bytes were drained.
type WriteOutcome struct {
	Requested int
	Accepted  int
	Echoed    int
}

// Short reports whether the adapter accepted fewer bytes than requested.
func (o WriteOutcome) Short() bool {
	return o.Accepted < o.Requested
}

// Session is a configured device session: raw byte I/O against the adapter
// plus the dedicated pin-level read.
type Session interface {
	Write(ctx context.Context, buffer []byte) (int, error)
	Read(ctx context.Context, buffer []byte) (int, error)
	ReadPins(ctx context.Context) (byte, error)
	Mode() Mode
}

// Transport latches a full relay register and reports the levels the hardware
// currently holds.
type Transport interface {
	Write(ctx context.Context, reg Register) (WriteOutcome, error)
	ReadPins(ctx context.Context) (Register, error)
}
