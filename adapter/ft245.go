package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/relayctl"
)

// Denkovi DAE-CB/Ro8-USB ships with a stock FT245RL.
const VendorID = 0x0403
const ProductID = 0x6001

// All eight data lines are outputs; the relay drivers sit behind them.
const outputMask byte = 0xFF

type State int

const (
	StateClosed State = iota
	StateOpened
	StateConfigured
)

func (s State) String() string {
	switch s {
	case StateOpened:
		return "opened"
	case StateConfigured:
		return "configured"
	default:
		return "closed"
	}
}

// Config carries the adapter parameters applied by Configure. The baud rate
// sets the bit-bang clock, the latency timer bounds how long the chip sits on
// partial read buffers (sync mode wants it short).
type Config struct {
	Baud      int           `yaml:"baud"`
	LatencyMs int           `yaml:"latency_ms"`
	Mode      relayctl.Mode `yaml:"-"`
	Purge     bool          `yaml:"purge"`
}

func DefaultConfig() Config {
	return Config{
		Baud:      9600,
		LatencyMs: 2,
		Mode:      relayctl.ModeSync,
		Purge:     true,
	}
}

type Opts struct {
	Vendor  int
	Product int
}

type Opt func(*Opts)

func WithVendorProduct(vendor, product int) Opt {
	return func(o *Opts) {
		o.Vendor = vendor
		o.Product = product
	}
}

// FT245 owns the adapter handle. Lifecycle: Open -> Configure -> I/O ->
// Close. Write, Read and ReadPins require a configured session; Close is
// idempotent and always leaves the chip out of bit-bang mode with all pins
// released.
type FT245 struct {
	mx    sync.Mutex
	dev   Device
	state State
	cfg   Config
	busy  bool
}

// openDevice is swapped in tests.
var openDevice = openFTDI

// Open claims the adapter by vendor/product id. A claim conflict is tolerated
// as long as the backend still hands over a usable handle: the FT245 keeps
// driving its outputs while claimed elsewhere, so the session proceeds in the
// opened state and reports the condition through Busy.
func Open(opts ...Opt) (*FT245, error) {
	o := Opts{Vendor: VendorID, Product: ProductID}
	for _, opt := range opts {
		opt(&o)
	}
	dev, err := openDevice(o.Vendor, o.Product)
	if err != nil {
		if dev == nil || !errors.Is(err, relayctl.ErrAdapterBusy) {
			return nil, fmt.Errorf("could not open adapter %04x:%04x: %w", o.Vendor, o.Product, err)
		}
		return &FT245{dev: dev, state: StateOpened, busy: true}, nil
	}
	return &FT245{dev: dev, state: StateOpened}, nil
}

// NewSession wraps an already opened device handle.
func NewSession(dev Device) *FT245 {
	return &FT245{dev: dev, state: StateOpened}
}

// Busy reports whether the interface was claimed by another handle at open
// time.
func (s *FT245) Busy() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.busy
}

func (s *FT245) State() State {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.state
}

func (s *FT245) Mode() relayctl.Mode {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.state != StateConfigured {
		return relayctl.ModeOff
	}
	return s.cfg.Mode
}

// Reset issues a hardware reset of the adapter. Best-effort: callers may
// ignore the error, the chip is free to swallow the request.
func (s *FT245) Reset(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.state == StateClosed {
		return relayctl.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dev.Reset(); err != nil {
		return fmt.Errorf("adapter reset failed: %w", err)
	}
	return nil
}

// Configure applies the adapter parameters in the order the bit-bang engine
// requires: reset, optional purge, baud rate, latency timer, bitmode last.
// The bitmode call starts the bit-bang clock and must see settled baud and
// latency values. On bitmode failure the session stays opened so Close can
// still run its cleanup.
func (s *FT245) Configure(ctx context.Context, cfg Config) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.state == StateClosed {
		return relayctl.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dev.Reset(); err != nil {
		return fmt.Errorf("adapter reset failed: %w", err)
	}
	if cfg.Purge {
		if err := s.dev.PurgeBuffers(); err != nil {
			return fmt.Errorf("buffer purge failed: %w", err)
		}
	}
	if err := s.dev.SetBaudrate(cfg.Baud); err != nil {
		return fmt.Errorf("could not set baud rate %d: %w", cfg.Baud, err)
	}
	if err := s.dev.SetLatencyTimer(cfg.LatencyMs); err != nil {
		return fmt.Errorf("could not set latency timer %dms: %w", cfg.LatencyMs, err)
	}
	if err := s.dev.SetBitmode(outputMask, cfg.Mode); err != nil {
		return fmt.Errorf("could not enable %s bit-bang mode: %w", cfg.Mode, err)
	}
	s.cfg = cfg
	s.state = StateConfigured
	return nil
}

func (s *FT245) Write(ctx context.Context, buffer []byte) (int, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.state != StateConfigured {
		return 0, relayctl.ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := s.dev.Write(buffer)
	if err != nil {
		return n, fmt.Errorf("adapter write failed: %w", err)
	}
	return n, nil
}

func (s *FT245) Read(ctx context.Context, buffer []byte) (int, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.state != StateConfigured {
		return 0, relayctl.ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := s.dev.Read(buffer)
	if err != nil {
		return n, fmt.Errorf("adapter read failed: %w", err)
	}
	return n, nil
}

// ReadPins probes the levels currently latched on the data lines. Unlike the
// sync-mode echo this reflects true pin state and may be called at any time
// after Configure.
func (s *FT245) ReadPins(ctx context.Context) (byte, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.state != StateConfigured {
		return 0, relayctl.ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	pins, err := s.dev.Pins()
	if err != nil {
		return 0, fmt.Errorf("pin probe failed: %w", err)
	}
	return pins, nil
}

// Close drives the session to a safe state and releases the handle: all pins
// dropped (configured sessions), bitmode reset to neutral, handle closed.
// Idempotent; cleanup runs regardless of prior errors so the next process
// does not inherit latched relays or an active bit-bang clock.
func (s *FT245) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.state == StateClosed {
		return nil
	}
	if s.state == StateConfigured {
		if n, err := s.dev.Write([]byte{byte(relayctl.AllOff)}); err == nil && s.cfg.Mode == relayctl.ModeSync {
			// drain the echo of the final write so the chip does not keep
			// a stale byte queued across sessions
			_, _ = s.dev.Read(make([]byte, n))
		}
	}
	_ = s.dev.SetBitmode(0x00, relayctl.ModeOff)
	err := s.dev.Close()
	s.state = StateClosed
	if err != nil {
		return fmt.Errorf("could not close adapter handle: %w", err)
	}
	return nil
}

// Status is a display snapshot of the session.
type Status struct {
	State     string `yaml:"state"`
	Busy      bool   `yaml:"busy"`
	Mode      string `yaml:"mode"`
	Baud      int    `yaml:"baud"`
	LatencyMs int    `yaml:"latency_ms"`
}

func (s *FT245) Status() Status {
	s.mx.Lock()
	defer s.mx.Unlock()
	st := Status{State: s.state.String(), Busy: s.busy}
	if s.state == StateConfigured {
		st.Mode = s.cfg.Mode.String()
		st.Baud = s.cfg.Baud
		st.LatencyMs = s.cfg.LatencyMs
	}
	return st
}

var _ relayctl.Session = (*FT245)(nil)
