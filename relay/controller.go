// Package relay maps channel semantics onto register writes with the timing
// margins mechanical relays need.
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/mklimuk/relayctl"
)

const (
	// DefaultSettle is the delay between a write and its verification read.
	// It must cover the verifier's settle window: a read taken earlier can
	// never report a mismatch, only an inconclusive result.
	DefaultSettle = DefaultSettleWindow
	DefaultHold   = 2 * time.Second
	DefaultPause  = 500 * time.Millisecond
)

type Opts struct {
	Settle   time.Duration
	Verifier Verifier
}

type Opt func(*Opts)

func WithSettle(settle time.Duration) Opt {
	return func(o *Opts) {
		o.Settle = settle
	}
}

func WithVerifier(v Verifier) Opt {
	return func(o *Opts) {
		o.Verifier = v
	}
}

// Controller drives relay channels through a transport. State is threaded
// explicitly: Set takes the current register and returns the next one, the
// controller never assumes the other channels are off.
type Controller struct {
	tr       relayctl.Transport
	settle   time.Duration
	verifier Verifier
}

func NewController(tr relayctl.Transport, opts ...Opt) *Controller {
	o := Opts{Settle: DefaultSettle}
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller{tr: tr, settle: o.Settle, verifier: o.Verifier}
}

// Set turns the given channel on or off, leaving all other bits of cur
// untouched, and returns the register that was written. Invalid channels are
// rejected before any I/O. On write failure the current register is returned
// unchanged since the operation did not necessarily apply.
func (c *Controller) Set(ctx context.Context, ch relayctl.Channel, on bool, cur relayctl.Register) (relayctl.Register, relayctl.WriteOutcome, error) {
	if !ch.Valid() {
		return cur, relayctl.WriteOutcome{}, fmt.Errorf("channel %d: %w", ch, relayctl.ErrInvalidChannel)
	}
	return c.apply(ctx, cur, cur.With(ch, on))
}

// Toggle inverts the given channel.
func (c *Controller) Toggle(ctx context.Context, ch relayctl.Channel, cur relayctl.Register) (relayctl.Register, relayctl.WriteOutcome, error) {
	if !ch.Valid() {
		return cur, relayctl.WriteOutcome{}, fmt.Errorf("channel %d: %w", ch, relayctl.ErrInvalidChannel)
	}
	return c.apply(ctx, cur, cur.Toggle(ch))
}

// SetAll energizes or releases every channel.
func (c *Controller) SetAll(ctx context.Context, on bool) (relayctl.Register, relayctl.WriteOutcome, error) {
	next := relayctl.AllOff
	if on {
		next = relayctl.AllOn
	}
	return c.apply(ctx, relayctl.AllOff, next)
}

func (c *Controller) apply(ctx context.Context, cur, next relayctl.Register) (relayctl.Register, relayctl.WriteOutcome, error) {
	out, err := c.tr.Write(ctx, next)
	if err != nil {
		return cur, out, err
	}
	return next, out, nil
}

// Verify waits out the settle delay, reads the pins and classifies the
// comparison. A failed pin read yields an inconclusive result rather than an
// error: readback support is best-effort on this hardware.
func (c *Controller) Verify(ctx context.Context, written relayctl.Register) Readback {
	start := time.Now()
	if err := sleep(ctx, c.settle); err != nil {
		return Unverified(written, err.Error())
	}
	observed, err := c.tr.ReadPins(ctx)
	if err != nil {
		return Unverified(written, err.Error())
	}
	return c.verifier.Verify(written, observed, time.Since(start))
}

// Step reports one sweep operation to the caller.
type Step struct {
	Channel  relayctl.Channel
	Register relayctl.Register
	Outcome  relayctl.WriteOutcome
	Readback *Readback
	Err      error
}

type SweepOpts struct {
	Hold     time.Duration
	Pause    time.Duration
	Readback bool
	OnStep   func(Step)
}

// Sweep runs channels 1..8 in order: energize, hold, release, pause. A
// failed transfer on one channel is recoverable - it is reported through
// OnStep and the sweep moves on. Cancellation aborts between operations; on
// every exit path, including abort, the final write releases all channels.
func (c *Controller) Sweep(ctx context.Context, opts SweepOpts) error {
	if opts.Hold <= 0 {
		opts.Hold = DefaultHold
	}
	if opts.Pause <= 0 {
		opts.Pause = DefaultPause
	}
	defer func() {
		// the board must never be left with a coil latched, even when the
		// sweep context is already cancelled
		_, _ = c.tr.Write(context.WithoutCancel(ctx), relayctl.AllOff)
	}()
	for ch := relayctl.Channel(1); ch <= relayctl.Channels; ch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.sweepChannel(ctx, ch, opts); err != nil {
			return err
		}
	}
	return nil
}

// sweepChannel returns an error only on cancellation; transfer failures are
// reported through the step callback.
func (c *Controller) sweepChannel(ctx context.Context, ch relayctl.Channel, opts SweepOpts) error {
	reg := relayctl.Single(ch)
	st := Step{Channel: ch, Register: reg}
	st.Outcome, st.Err = c.tr.Write(ctx, reg)
	if st.Err == nil && opts.Readback {
		rb := c.Verify(ctx, reg)
		st.Readback = &rb
	}
	emit(opts.OnStep, st)
	if st.Err == nil {
		if err := sleep(ctx, opts.Hold); err != nil {
			return err
		}
	}
	off := Step{Channel: ch, Register: relayctl.AllOff}
	off.Outcome, off.Err = c.tr.Write(ctx, relayctl.AllOff)
	if off.Err != nil {
		emit(opts.OnStep, off)
	}
	return sleep(ctx, opts.Pause)
}

func emit(f func(Step), st Step) {
	if f != nil {
		f(st)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
