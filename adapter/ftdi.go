package adapter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ziutek/ftdi"

	"github.com/mklimuk/relayctl"
)

// ftdiDevice adapts the libftdi handle to the Device interface.
type ftdiDevice struct {
	d *ftdi.Device
}

func openFTDI(vendor, product int) (Device, error) {
	dev, err := openOnce(vendor, product)
	if err == nil {
		return dev, nil
	}
	if !errors.Is(err, relayctl.ErrAdapterBusy) {
		return nil, err
	}
	// the chip keeps driving its outputs while the interface is claimed
	// elsewhere, and the conflict usually clears once the previous owner
	// winds down; hand back a handle that retries the open on first use so
	// the session can proceed
	lazy := &lazyDevice{
		open: func() (Device, error) {
			return openOnce(vendor, product)
		},
	}
	return lazy, err
}

func openOnce(vendor, product int) (Device, error) {
	d, err := ftdi.OpenFirst(vendor, product, ftdi.ChannelAny)
	if err != nil {
		return nil, classifyOpenErr(err)
	}
	return ftdiDevice{d: d}, nil
}

// classifyOpenErr maps libftdi's claim conflict onto the adapter-busy
// sentinel so callers depend on it instead of library strings.
func classifyOpenErr(err error) error {
	if strings.Contains(err.Error(), "claim") {
		return fmt.Errorf("%w: %s", relayctl.ErrAdapterBusy, err)
	}
	return err
}

// lazyDevice defers the libftdi open until the first operation. It backs
// busy-opened sessions: the claim conflict at open time was tolerated, the
// retry happens when the session actually touches the hardware.
type lazyDevice struct {
	open func() (Device, error)
	dev  Device
}

func (l *lazyDevice) ensure() (Device, error) {
	if l.dev != nil {
		return l.dev, nil
	}
	dev, err := l.open()
	if err != nil {
		return nil, err
	}
	l.dev = dev
	return dev, nil
}

func (l *lazyDevice) Reset() error {
	dev, err := l.ensure()
	if err != nil {
		return err
	}
	return dev.Reset()
}

func (l *lazyDevice) PurgeBuffers() error {
	dev, err := l.ensure()
	if err != nil {
		return err
	}
	return dev.PurgeBuffers()
}

func (l *lazyDevice) SetBaudrate(rate int) error {
	dev, err := l.ensure()
	if err != nil {
		return err
	}
	return dev.SetBaudrate(rate)
}

func (l *lazyDevice) SetLatencyTimer(ms int) error {
	dev, err := l.ensure()
	if err != nil {
		return err
	}
	return dev.SetLatencyTimer(ms)
}

func (l *lazyDevice) SetBitmode(iomask byte, mode relayctl.Mode) error {
	dev, err := l.ensure()
	if err != nil {
		return err
	}
	return dev.SetBitmode(iomask, mode)
}

func (l *lazyDevice) Write(buffer []byte) (int, error) {
	dev, err := l.ensure()
	if err != nil {
		return 0, err
	}
	return dev.Write(buffer)
}

func (l *lazyDevice) Read(buffer []byte) (int, error) {
	dev, err := l.ensure()
	if err != nil {
		return 0, err
	}
	return dev.Read(buffer)
}

func (l *lazyDevice) Pins() (byte, error) {
	dev, err := l.ensure()
	if err != nil {
		return 0, err
	}
	return dev.Pins()
}

func (l *lazyDevice) Close() error {
	if l.dev == nil {
		return nil
	}
	return l.dev.Close()
}

func (f ftdiDevice) Reset() error {
	return f.d.Reset()
}

func (f ftdiDevice) PurgeBuffers() error {
	return f.d.PurgeBuffers()
}

func (f ftdiDevice) SetBaudrate(rate int) error {
	return f.d.SetBaudrate(rate)
}

func (f ftdiDevice) SetLatencyTimer(ms int) error {
	return f.d.SetLatencyTimer(ms)
}

func (f ftdiDevice) SetBitmode(iomask byte, mode relayctl.Mode) error {
	return f.d.SetBitmode(iomask, ftdiMode(mode))
}

func (f ftdiDevice) Write(buffer []byte) (int, error) {
	return f.d.Write(buffer)
}

func (f ftdiDevice) Read(buffer []byte) (int, error) {
	return f.d.Read(buffer)
}

func (f ftdiDevice) Pins() (byte, error) {
	return f.d.Pins()
}

func (f ftdiDevice) Close() error {
	return f.d.Close()
}

func ftdiMode(m relayctl.Mode) ftdi.Mode {
	switch m {
	case relayctl.ModeAsync:
		return ftdi.ModeBitbang
	case relayctl.ModeSync:
		return ftdi.ModeSyncBB
	default:
		return ftdi.ModeReset
	}
}
