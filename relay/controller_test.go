package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mklimuk/relayctl"
)

// recordingTransport captures written registers and scripts failures.
type recordingTransport struct {
	mx       sync.Mutex
	writes   []relayctl.Register
	pins     relayctl.Register
	pinsErr  error
	failOn   map[relayctl.Register]error
	onWrite  func(reg relayctl.Register)
	pinReads int
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{failOn: map[relayctl.Register]error{}}
}

func (r *recordingTransport) Write(ctx context.Context, reg relayctl.Register) (relayctl.WriteOutcome, error) {
	r.mx.Lock()
	r.writes = append(r.writes, reg)
	hook := r.onWrite
	err := r.failOn[reg]
	r.mx.Unlock()
	if hook != nil {
		hook(reg)
	}
	out := relayctl.WriteOutcome{Requested: 1, Accepted: 1, Echoed: 1}
	if err != nil {
		return relayctl.WriteOutcome{Requested: 1}, err
	}
	r.pins = reg
	return out, nil
}

func (r *recordingTransport) ReadPins(ctx context.Context) (relayctl.Register, error) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.pinReads++
	if r.pinsErr != nil {
		return 0, r.pinsErr
	}
	return r.pins, nil
}

func (r *recordingTransport) written() []relayctl.Register {
	r.mx.Lock()
	defer r.mx.Unlock()
	return append([]relayctl.Register(nil), r.writes...)
}

func TestSet(t *testing.T) {
	tr := newRecordingTransport()
	c := NewController(tr, WithSettle(time.Millisecond))
	ctx := context.Background()

	next, out, err := c.Set(ctx, 3, true, 0x00)
	assert.NoError(t, err)
	assert.Equal(t, relayctl.Register(0x04), next)
	assert.Equal(t, 1, out.Accepted)

	next, _, err = c.Set(ctx, 1, true, next)
	assert.NoError(t, err)
	assert.Equal(t, relayctl.Register(0x05), next)

	next, _, err = c.Set(ctx, 3, false, next)
	assert.NoError(t, err)
	assert.Equal(t, relayctl.Register(0x01), next)

	assert.Equal(t, []relayctl.Register{0x04, 0x05, 0x01}, tr.written())
}

func TestSetInvalidChannel(t *testing.T) {
	tr := newRecordingTransport()
	c := NewController(tr)
	ctx := context.Background()

	for _, ch := range []relayctl.Channel{0, 9, -3} {
		cur, _, err := c.Set(ctx, ch, true, 0x10)
		assert.ErrorIs(t, err, relayctl.ErrInvalidChannel)
		assert.Equal(t, relayctl.Register(0x10), cur)
	}
	// rejected before any I/O
	assert.Empty(t, tr.written())
}

func TestSetWriteFailureKeepsState(t *testing.T) {
	tr := newRecordingTransport()
	tr.failOn[0x06] = errors.New("usb transfer failed")
	c := NewController(tr)

	cur, _, err := c.Set(context.Background(), 2, true, 0x04)
	assert.Error(t, err)
	// operation did not necessarily apply, caller keeps the old register
	assert.Equal(t, relayctl.Register(0x04), cur)
}

func TestSetAll(t *testing.T) {
	tr := newRecordingTransport()
	c := NewController(tr)
	ctx := context.Background()

	reg, _, err := c.SetAll(ctx, true)
	assert.NoError(t, err)
	assert.Equal(t, relayctl.AllOn, reg)

	reg, _, err = c.SetAll(ctx, false)
	assert.NoError(t, err)
	assert.Equal(t, relayctl.AllOff, reg)
}

func TestToggle(t *testing.T) {
	tr := newRecordingTransport()
	c := NewController(tr)
	ctx := context.Background()

	next, _, err := c.Toggle(ctx, 5, 0x02)
	assert.NoError(t, err)
	assert.Equal(t, relayctl.Register(0x12), next)

	next, _, err = c.Toggle(ctx, 5, next)
	assert.NoError(t, err)
	assert.Equal(t, relayctl.Register(0x02), next)
}

func TestVerifyMatch(t *testing.T) {
	tr := newRecordingTransport()
	c := NewController(tr, WithSettle(time.Millisecond))
	ctx := context.Background()

	reg, _, err := c.Set(ctx, 4, true, 0x00)
	assert.NoError(t, err)

	rb := c.Verify(ctx, reg)
	assert.Equal(t, Match, rb.Outcome)
	assert.Equal(t, 1, tr.pinReads)
}

func TestVerifyMismatch(t *testing.T) {
	tr := newRecordingTransport()
	c := NewController(tr, WithSettle(5*time.Millisecond), WithVerifier(Verifier{Window: 2 * time.Millisecond}))
	ctx := context.Background()

	reg, _, err := c.Set(ctx, 4, true, 0x00)
	assert.NoError(t, err)

	// a stuck relay: the latch never picked up the write
	tr.pins = 0x00
	rb := c.Verify(ctx, reg)
	assert.Equal(t, Mismatch, rb.Outcome)
	assert.Equal(t, reg, rb.Written)
	assert.Equal(t, relayctl.Register(0x00), rb.Observed)
}

func TestVerifyDefaultsCoverSettleWindow(t *testing.T) {
	// with the default settle shorter than the window every mismatch would
	// come back inconclusive
	assert.GreaterOrEqual(t, DefaultSettle, DefaultSettleWindow)

	tr := newRecordingTransport()
	c := NewController(tr)
	ctx := context.Background()

	reg, _, err := c.Set(ctx, 1, true, 0x00)
	assert.NoError(t, err)

	tr.pins = 0x00
	rb := c.Verify(ctx, reg)
	assert.Equal(t, Mismatch, rb.Outcome)
}

func TestVerifyPinReadFailure(t *testing.T) {
	tr := newRecordingTransport()
	tr.pinsErr = errors.New("usb transfer failed")
	c := NewController(tr, WithSettle(time.Millisecond))

	rb := c.Verify(context.Background(), 0x01)
	assert.Equal(t, Inconclusive, rb.Outcome)
	assert.NotEmpty(t, rb.Reason)
}

func TestSweepSequence(t *testing.T) {
	tr := newRecordingTransport()
	c := NewController(tr, WithSettle(time.Millisecond))

	var steps []Step
	err := c.Sweep(context.Background(), SweepOpts{
		Hold:  time.Millisecond,
		Pause: time.Millisecond,
		OnStep: func(st Step) {
			steps = append(steps, st)
		},
	})
	assert.NoError(t, err)

	expected := []relayctl.Register{
		0x01, 0x00, 0x02, 0x00, 0x04, 0x00, 0x08, 0x00,
		0x10, 0x00, 0x20, 0x00, 0x40, 0x00, 0x80, 0x00,
		// final safety write
		0x00,
	}
	assert.Equal(t, expected, tr.written())
	assert.Len(t, steps, 8)
	for i, st := range steps {
		assert.Equal(t, relayctl.Channel(i+1), st.Channel)
		assert.Equal(t, relayctl.Single(st.Channel), st.Register)
		assert.NoError(t, st.Err)
	}
}

func TestSweepRecoverableFailure(t *testing.T) {
	tr := newRecordingTransport()
	tr.failOn[0x04] = errors.New("usb transfer failed")
	c := NewController(tr)

	var failed []relayctl.Channel
	err := c.Sweep(context.Background(), SweepOpts{
		Hold:  time.Millisecond,
		Pause: time.Millisecond,
		OnStep: func(st Step) {
			if st.Err != nil {
				failed = append(failed, st.Channel)
			}
		},
	})
	// a single bad transfer must not void the sweep
	assert.NoError(t, err)
	assert.Equal(t, []relayctl.Channel{3}, failed)
	writes := tr.written()
	assert.Equal(t, relayctl.Register(0x80), writes[len(writes)-3])
}

func TestSweepAbortSafety(t *testing.T) {
	for cancelAt := relayctl.Register(0x01); cancelAt != 0; cancelAt <<= 1 {
		tr := newRecordingTransport()
		ctx, cancel := context.WithCancel(context.Background())
		target := cancelAt
		tr.onWrite = func(reg relayctl.Register) {
			if reg == target {
				cancel()
			}
		}
		c := NewController(tr)
		err := c.Sweep(ctx, SweepOpts{Hold: 10 * time.Millisecond, Pause: 10 * time.Millisecond})
		assert.ErrorIs(t, err, context.Canceled)

		writes := tr.written()
		// whatever the abort point, the board ends up fully released
		assert.Equal(t, relayctl.AllOff, writes[len(writes)-1])
		assert.Equal(t, relayctl.AllOff, tr.pins)
		cancel()
	}
}

func TestSweepReadback(t *testing.T) {
	tr := newRecordingTransport()
	c := NewController(tr, WithSettle(time.Millisecond))

	var readbacks int
	err := c.Sweep(context.Background(), SweepOpts{
		Hold:     time.Millisecond,
		Pause:    time.Millisecond,
		Readback: true,
		OnStep: func(st Step) {
			if st.Readback != nil {
				assert.Equal(t, Match, st.Readback.Outcome)
				readbacks++
			}
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, 8, readbacks)
}
