package relayctl

import (
	"fmt"
	"testing"
)

func TestSingle(t *testing.T) {
	for ch := Channel(1); ch <= Channels; ch++ {
		t.Run(fmt.Sprintf("channel_%d", ch), func(t *testing.T) {
			expected := Register(1) << (ch - 1)
			if got := Single(ch); got != expected {
				t.Errorf("expected %s, got %s", expected, got)
			}
			if got := AllOff.With(ch, true); got != expected {
				t.Errorf("With on empty register: expected %s, got %s", expected, got)
			}
		})
	}
}

func TestWithIdempotent(t *testing.T) {
	for _, base := range []Register{0x00, 0x12, 0xFF} {
		once := base.With(3, true)
		twice := once.With(3, true)
		if once != twice {
			t.Errorf("setting channel 3 twice on %s: %s != %s", base, once, twice)
		}
		off := base.With(3, false).With(3, false)
		if off != base.With(3, false) {
			t.Errorf("clearing channel 3 twice on %s changed the result", base)
		}
	}
}

func TestWithCommutative(t *testing.T) {
	a := AllOff.With(2, true).With(5, true)
	b := AllOff.With(5, true).With(2, true)
	if a != b {
		t.Errorf("channel order changed the register: %s != %s", a, b)
	}
	if a != 0x12 {
		t.Errorf("channels 2 and 5: expected 0x12, got %s", a)
	}
}

func TestWithPreservesOtherChannels(t *testing.T) {
	reg := Register(0xA5)
	got := reg.With(2, true)
	if got != 0xA7 {
		t.Errorf("expected 0xa7, got %s", got)
	}
	got = got.With(1, false)
	if got != 0xA6 {
		t.Errorf("expected 0xa6, got %s", got)
	}
}

func TestToggle(t *testing.T) {
	reg := AllOff.Toggle(4)
	if !reg.On(4) {
		t.Error("channel 4 should be on after toggle")
	}
	if reg.Toggle(4) != AllOff {
		t.Error("double toggle should restore the register")
	}
}

func TestChannelValid(t *testing.T) {
	for _, ch := range []Channel{-1, 0, 9, 100} {
		if ch.Valid() {
			t.Errorf("channel %d should be invalid", ch)
		}
	}
	for ch := Channel(1); ch <= Channels; ch++ {
		if !ch.Valid() {
			t.Errorf("channel %d should be valid", ch)
		}
	}
}

func TestDescribe(t *testing.T) {
	got := Register(0x05).Describe()
	expected := "R1:ON  | R2:OFF | R3:ON  | R4:OFF | R5:OFF | R6:OFF | R7:OFF | R8:OFF"
	if got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}
