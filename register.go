package relayctl

import (
	"fmt"
	"strings"
)

// Channels is the number of relay channels on the board, one per FT245 data
// line.
const Channels = 8

// Channel identifies a relay, counted from 1.
type Channel int

func (c Channel) Valid() bool {
	return c >= 1 && c <= Channels
}

// Register is the 8-channel relay state as latched by the adapter: bit i
// drives channel i+1. It is a value type; operations return a new register
// and callers thread the current state explicitly.
type Register byte

const (
	AllOff Register = 0x00
	AllOn  Register = 0xFF
)

// Single returns a register with only the given channel energized. The
// channel must be valid.
func Single(ch Channel) Register {
	return 1 << (ch - 1)
}

// With returns the register with the given channel set or cleared, all other
// bits untouched.
func (r Register) With(ch Channel, on bool) Register {
	bit := Register(1) << (ch - 1)
	if on {
		return r | bit
	}
	return r &^ bit
}

// Toggle returns the register with the given channel inverted.
func (r Register) Toggle(ch Channel) Register {
	return r ^ Register(1)<<(ch-1)
}

// On reports whether the given channel is energized.
func (r Register) On(ch Channel) bool {
	return r&(Register(1)<<(ch-1)) != 0
}

func (r Register) String() string {
	return fmt.Sprintf("%#02x", byte(r))
}

// Describe renders the per-relay state, e.g. "R1:ON | R2:OFF | ...".
func (r Register) Describe() string {
	parts := make([]string, 0, Channels)
	for ch := Channel(1); ch <= Channels; ch++ {
		state := "OFF"
		if r.On(ch) {
			state = "ON "
		}
		parts = append(parts, fmt.Sprintf("R%d:%s", ch, state))
	}
	return strings.Join(parts, " | ")
}
