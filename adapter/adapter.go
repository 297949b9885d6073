package adapter

import "github.com/mklimuk/relayctl"

// Device is the low-level adapter handle the session drives. It mirrors the
// libftdi surface the FT245R needs: reset, buffer purge, baud and latency
// configuration, bitmode selection, byte transfers and the dedicated pin
// probe. Implemented by the ftdi backend and by mocks in tests.
type Device interface {
	Reset() error
	PurgeBuffers() error
	SetBaudrate(rate int) error
	SetLatencyTimer(ms int) error
	SetBitmode(iomask byte, mode relayctl.Mode) error
	Write(buffer []byte) (int, error)
	Read(buffer []byte) (int, error)
	Pins() (byte, error)
	Close() error
}
