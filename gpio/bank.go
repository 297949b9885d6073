// Package gpio drives an 8-relay board wired straight to host header pins,
// as an alternative to the USB adapter transport.
package gpio

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/relayctl"
)

// Bank is a relay transport over eight host GPIO lines, lowest register bit
// first. There is no adapter in the path, so writes latch immediately and no
// echo handling applies.
type Bank struct {
	pins [relayctl.Channels]gpio.PinIO
}

var _ relayctl.Transport = (*Bank)(nil)

// NewBank initializes the host and resolves the named lines. All lines are
// driven low on success so the board starts fully released.
func NewBank(names [relayctl.Channels]string) (*Bank, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	var pins [relayctl.Channels]gpio.PinIO
	for i, name := range names {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("no gpio pin named %q", name)
		}
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("could not drive %q low: %w", name, err)
		}
		pins[i] = p
	}
	return &Bank{pins: pins}, nil
}

// NewBankFromPins wraps already resolved lines.
func NewBankFromPins(pins [relayctl.Channels]gpio.PinIO) *Bank {
	return &Bank{pins: pins}
}

func (b *Bank) Write(ctx context.Context, reg relayctl.Register) (relayctl.WriteOutcome, error) {
	out := relayctl.WriteOutcome{Requested: 1}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	for i, p := range b.pins {
		level := gpio.Low
		if reg&(1<<i) != 0 {
			level = gpio.High
		}
		if err := p.Out(level); err != nil {
			return out, fmt.Errorf("pin %s: %w", p.Name(), err)
		}
	}
	out.Accepted = 1
	return out, nil
}

func (b *Bank) ReadPins(ctx context.Context) (relayctl.Register, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var reg relayctl.Register
	for i, p := range b.pins {
		if p.Read() == gpio.High {
			reg |= 1 << i
		}
	}
	return reg, nil
}

// Close releases every channel.
func (b *Bank) Close() error {
	var first error
	for _, p := range b.pins {
		if err := p.Out(gpio.Low); err != nil && first == nil {
			first = fmt.Errorf("pin %s: %w", p.Name(), err)
		}
	}
	return first
}
