package bitbang

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mklimuk/relayctl"
)

// fakeSession scripts session behavior and counts write/read pairing.
type fakeSession struct {
	mode     relayctl.Mode
	writes   []byte
	reads    int
	pins     byte
	writeN   int
	writeErr error
	readN    int
	readErr  error
	pinsErr  error

	// pending tracks bytes written but not yet drained; sync mode must
	// never let it exceed the size of a single transfer
	pending    int
	maxPending int
}

func newFakeSession(mode relayctl.Mode) *fakeSession {
	return &fakeSession{mode: mode, writeN: 1, readN: 1}
}

func (f *fakeSession) Write(ctx context.Context, buffer []byte) (int, error) {
	if f.writeErr != nil {
		return f.writeN, f.writeErr
	}
	f.writes = append(f.writes, buffer...)
	if f.mode == relayctl.ModeSync {
		f.pending += f.writeN
		if f.pending > f.maxPending {
			f.maxPending = f.pending
		}
	}
	return f.writeN, nil
}

func (f *fakeSession) Read(ctx context.Context, buffer []byte) (int, error) {
	f.reads++
	if f.readErr != nil {
		return 0, f.readErr
	}
	f.pending -= f.readN
	return f.readN, nil
}

func (f *fakeSession) ReadPins(ctx context.Context) (byte, error) {
	if f.pinsErr != nil {
		return 0, f.pinsErr
	}
	return f.pins, nil
}

func (f *fakeSession) Mode() relayctl.Mode {
	return f.mode
}

func TestWriteSyncDrainsEchoPerWrite(t *testing.T) {
	s := newFakeSession(relayctl.ModeSync)
	tr := New(s)
	ctx := context.Background()

	for ch := relayctl.Channel(1); ch <= relayctl.Channels; ch++ {
		out, err := tr.Write(ctx, relayctl.Single(ch))
		assert.NoError(t, err)
		assert.Equal(t, 1, out.Accepted)
		assert.Equal(t, 1, out.Echoed)
	}
	// exactly one compensating read per write, issued before the next write
	assert.Equal(t, 8, s.reads)
	assert.Equal(t, 0, s.pending)
	assert.Equal(t, 1, s.maxPending)
}

func TestWriteAsyncSkipsEcho(t *testing.T) {
	s := newFakeSession(relayctl.ModeAsync)
	tr := New(s)

	out, err := tr.Write(context.Background(), relayctl.AllOn)
	assert.NoError(t, err)
	assert.Equal(t, relayctl.WriteOutcome{Requested: 1, Accepted: 1}, out)
	assert.Equal(t, 0, s.reads)
	assert.Equal(t, []byte{0xFF}, s.writes)
}

func TestWriteShort(t *testing.T) {
	s := newFakeSession(relayctl.ModeSync)
	s.writeN = 0
	tr := New(s)

	out, err := tr.Write(context.Background(), relayctl.Single(3))
	assert.NoError(t, err)
	assert.True(t, out.Short())
	// nothing accepted means nothing echoed, no drain must be attempted
	assert.Equal(t, 0, s.reads)
}

func TestWriteFailure(t *testing.T) {
	s := newFakeSession(relayctl.ModeSync)
	s.writeErr = errors.New("usb transfer failed")
	tr := New(s)

	out, err := tr.Write(context.Background(), relayctl.Single(1))
	assert.Error(t, err)
	assert.Equal(t, 1, out.Requested)
	assert.Equal(t, 0, s.reads)
}

func TestEchoDrainFailure(t *testing.T) {
	s := newFakeSession(relayctl.ModeSync)
	s.readErr = errors.New("read timeout")
	tr := New(s)

	out, err := tr.Write(context.Background(), relayctl.Single(1))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "echo drain")
	assert.Equal(t, 1, out.Accepted)
	assert.Equal(t, 0, out.Echoed)
}

func TestReadPins(t *testing.T) {
	s := newFakeSession(relayctl.ModeSync)
	s.pins = 0x12
	tr := New(s)

	reg, err := tr.ReadPins(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, relayctl.Register(0x12), reg)
}

func TestReadPinsFailure(t *testing.T) {
	s := newFakeSession(relayctl.ModeSync)
	s.pinsErr = errors.New("usb transfer failed")
	tr := New(s)

	_, err := tr.ReadPins(context.Background())
	assert.Error(t, err)
}
