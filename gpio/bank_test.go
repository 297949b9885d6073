package gpio

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/mklimuk/relayctl"
)

func testBank() (*Bank, [relayctl.Channels]*gpiotest.Pin) {
	var pins [relayctl.Channels]*gpiotest.Pin
	var ios [relayctl.Channels]gpio.PinIO
	for i := range pins {
		pins[i] = &gpiotest.Pin{N: fmt.Sprintf("GPIO%d", i), Num: i}
		ios[i] = pins[i]
	}
	return NewBankFromPins(ios), pins
}

func TestBankWrite(t *testing.T) {
	b, pins := testBank()
	ctx := context.Background()

	out, err := b.Write(ctx, 0x12)
	assert.NoError(t, err)
	assert.Equal(t, 1, out.Accepted)
	for i, p := range pins {
		expected := gpio.Level(i == 1 || i == 4)
		assert.Equal(t, expected, p.L, "pin %d", i)
	}
}

func TestBankRoundTrip(t *testing.T) {
	b, _ := testBank()
	ctx := context.Background()

	for _, reg := range []relayctl.Register{0x00, 0x01, 0x80, 0xA5, 0xFF} {
		_, err := b.Write(ctx, reg)
		assert.NoError(t, err)
		got, err := b.ReadPins(ctx)
		assert.NoError(t, err)
		assert.Equal(t, reg, got)
	}
}

func TestBankClose(t *testing.T) {
	b, pins := testBank()
	_, err := b.Write(context.Background(), 0xFF)
	assert.NoError(t, err)
	assert.NoError(t, b.Close())
	for i, p := range pins {
		assert.Equal(t, gpio.Low, p.L, "pin %d", i)
	}
}

func TestBankCancelledContext(t *testing.T) {
	b, _ := testBank()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Write(ctx, 0x01)
	assert.ErrorIs(t, err, context.Canceled)
}
