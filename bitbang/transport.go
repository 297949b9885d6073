// Package bitbang performs mode-aware register transfers against an open
// adapter session.
package bitbang

import (
	"context"
	"fmt"

	"github.com/mklimuk/relayctl"
)

// Transport writes relay registers through a configured session and honors
// the sync-mode pairing contract: every byte the adapter accepts enqueues one
// echo byte that has to be drained before the next write.
type Transport struct {
	s relayctl.Session
}

var _ relayctl.Transport = (*Transport)(nil)

func New(s relayctl.Session) *Transport {
	return &Transport{s: s}
}

// Write latches the register on the adapter. In sync mode it immediately
// drains exactly one echo byte per accepted byte and discards it; the echo
// mirrors the written value, not the pin levels. A short write is reported in
// the outcome, never swallowed.
func (t *Transport) Write(ctx context.Context, reg relayctl.Register) (relayctl.WriteOutcome, error) {
	out := relayctl.WriteOutcome{Requested: 1}
	n, err := t.s.Write(ctx, []byte{byte(reg)})
	out.Accepted = n
	if err != nil {
		return out, fmt.Errorf("register write %s failed: %w", reg, err)
	}
	if t.s.Mode() == relayctl.ModeSync && n > 0 {
		echo := make([]byte, n)
		m, err := t.s.Read(ctx, echo)
		out.Echoed = m
		if err != nil {
			return out, fmt.Errorf("echo drain after %s failed: %w", reg, err)
		}
		if m < n {
			return out, fmt.Errorf("short echo drain after %s: got %d of %d", reg, m, n)
		}
	}
	return out, nil
}

// ReadPins probes the levels currently latched on the data lines. This is the
// only call that yields a trustworthy snapshot of relay state; failures are
// surfaced as errors, never as an assumed-zero register.
func (t *Transport) ReadPins(ctx context.Context) (relayctl.Register, error) {
	pins, err := t.s.ReadPins(ctx)
	if err != nil {
		return 0, fmt.Errorf("pin read failed: %w", err)
	}
	return relayctl.Register(pins), nil
}
