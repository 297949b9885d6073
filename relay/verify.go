package relay

import (
	"fmt"
	"time"

	"github.com/mklimuk/relayctl"
)

// Outcome classifies a written-vs-observed register comparison.
type Outcome int

const (
	Match Outcome = iota
	Mismatch
	Inconclusive
)

func (o Outcome) String() string {
	switch o {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return "inconclusive"
	}
}

// Readback is the result of a post-write verification.
type Readback struct {
	Outcome  Outcome
	Written  relayctl.Register
	Observed relayctl.Register
	Elapsed  time.Duration
	Reason   string
}

func (r Readback) String() string {
	switch r.Outcome {
	case Match:
		return fmt.Sprintf("match %s", r.Written)
	case Mismatch:
		return fmt.Sprintf("mismatch: wrote %s, read %s", r.Written, r.Observed)
	default:
		return fmt.Sprintf("inconclusive: %s", r.Reason)
	}
}

// DefaultSettleWindow bounds the relay coil engage/release time. Pin reads
// taken inside the window are not authoritative.
const DefaultSettleWindow = 100 * time.Millisecond

// Verifier classifies readback values against the settle window.
type Verifier struct {
	Window time.Duration
}

// Verify compares a written register against an observed pin read taken
// elapsed after the write. A mismatch inside the settle window is reported as
// inconclusive since the coils may still be moving.
func (v Verifier) Verify(written, observed relayctl.Register, elapsed time.Duration) Readback {
	window := v.Window
	if window <= 0 {
		window = DefaultSettleWindow
	}
	rb := Readback{Written: written, Observed: observed, Elapsed: elapsed}
	switch {
	case written == observed:
		rb.Outcome = Match
	case elapsed < window:
		rb.Outcome = Inconclusive
		rb.Reason = fmt.Sprintf("read %v after write, inside %v settle window", elapsed, window)
	default:
		rb.Outcome = Mismatch
	}
	return rb
}

// Unverified builds an inconclusive readback for cases where no pin value
// could be obtained at all.
func Unverified(written relayctl.Register, reason string) Readback {
	return Readback{Outcome: Inconclusive, Written: written, Reason: reason}
}
