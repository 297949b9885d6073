package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/relayctl"
	"github.com/mklimuk/relayctl/adapter"
	"github.com/mklimuk/relayctl/bitbang"
	"github.com/mklimuk/relayctl/cmd/relayctl/console"
	"github.com/mklimuk/relayctl/relay"
)

func sessionConfig(c *cli.Context) (adapter.Config, error) {
	cfg := adapter.DefaultConfig()
	switch c.String("mode") {
	case "sync":
		cfg.Mode = relayctl.ModeSync
	case "async":
		cfg.Mode = relayctl.ModeAsync
	default:
		return cfg, console.Exit(1, "unknown mode %q, expected sync or async", c.String("mode"))
	}
	cfg.Baud = c.Int("baud")
	cfg.LatencyMs = c.Int("latency")
	cfg.Purge = !c.Bool("no-purge")
	return cfg, nil
}

func openTransport(c *cli.Context) (*adapter.FT245, *bitbang.Transport, error) {
	cfg, err := sessionConfig(c)
	if err != nil {
		return nil, nil, err
	}
	sess, err := adapter.Open()
	if err != nil {
		return nil, nil, console.Exit(1, "could not open adapter: %v", err)
	}
	if sess.Busy() {
		console.Warnf("adapter interface claimed by another handle, continuing")
	}
	if err := sess.Configure(c.Context, cfg); err != nil {
		_ = sess.Close()
		return nil, nil, console.Exit(1, "could not configure adapter: %v", err)
	}
	console.Debugf("session configured: %s bit-bang, %d baud, %dms latency", cfg.Mode, cfg.Baud, cfg.LatencyMs)
	return sess, bitbang.New(sess), nil
}

func parseChannel(arg string) (relayctl.Channel, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, console.Exit(1, "could not parse channel %q: %v", arg, err)
	}
	ch := relayctl.Channel(n)
	if !ch.Valid() {
		return 0, console.Exit(1, "channel %d out of range [1,%d]", n, relayctl.Channels)
	}
	return ch, nil
}

// currentState seeds the register from the hardware latch so single-channel
// operations preserve the other channels across invocations.
func currentState(ctx context.Context, tr *bitbang.Transport) relayctl.Register {
	cur, err := tr.ReadPins(ctx)
	if err != nil {
		console.Warnf("could not read current pin state, assuming all off: %v", err)
		return relayctl.AllOff
	}
	return cur
}

func reportReadback(rb relay.Readback) {
	switch rb.Outcome {
	case relay.Match:
		console.PInfof(console.PictoCheck, "readback %s", console.Green(rb.Written))
	case relay.Mismatch:
		console.Warnf("readback mismatch: wrote %s, read %s", rb.Written, rb.Observed)
	default:
		console.Infof("readback inconclusive: %s", rb.Reason)
	}
}

func setChannel(c *cli.Context, on bool) error {
	if c.NArg() != 1 {
		return console.Exit(1, "expected 1 argument, got %d", c.NArg())
	}
	ch, err := parseChannel(c.Args().Get(0))
	if err != nil {
		return err
	}
	sess, tr, err := openTransport(c)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()
	ctrl := relay.NewController(tr)
	next, out, err := ctrl.Set(c.Context, ch, on, currentState(c.Context, tr))
	if err != nil {
		return console.Exit(1, "could not set channel %d: %v", ch, err)
	}
	if out.Short() {
		console.Warnf("short write: adapter accepted %d of %d bytes", out.Accepted, out.Requested)
	}
	state := "OFF"
	if on {
		state = "ON"
	}
	console.PInfof(console.PictoBolt, "relay %d %s (%s)", ch, state, next)
	if c.Bool("verify") {
		reportReadback(ctrl.Verify(c.Context, next))
	}
	return nil
}

var verifyFlag = &cli.BoolFlag{
	Name:  "verify",
	Usage: "read back pin state after the write",
}

var onCmd = cli.Command{
	Name:      "on",
	Usage:     "turn a relay channel on",
	ArgsUsage: "<channel>",
	Flags:     []cli.Flag{verifyFlag},
	Action: func(c *cli.Context) error {
		return setChannel(c, true)
	},
}

var offCmd = cli.Command{
	Name:      "off",
	Usage:     "turn a relay channel off",
	ArgsUsage: "<channel>",
	Flags:     []cli.Flag{verifyFlag},
	Action: func(c *cli.Context) error {
		return setChannel(c, false)
	},
}

var toggleCmd = cli.Command{
	Name:      "toggle",
	Usage:     "invert a relay channel",
	ArgsUsage: "<channel>",
	Flags:     []cli.Flag{verifyFlag},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		ch, err := parseChannel(c.Args().Get(0))
		if err != nil {
			return err
		}
		sess, tr, err := openTransport(c)
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()
		ctrl := relay.NewController(tr)
		next, _, err := ctrl.Toggle(c.Context, ch, currentState(c.Context, tr))
		if err != nil {
			return console.Exit(1, "could not toggle channel %d: %v", ch, err)
		}
		console.PInfof(console.PictoBolt, "relay %d toggled (%s)", ch, next)
		if c.Bool("verify") {
			reportReadback(ctrl.Verify(c.Context, next))
		}
		return nil
	},
}

var allCmd = cli.Command{
	Name:      "all",
	Usage:     "turn all relay channels on or off",
	ArgsUsage: "<on|off>",
	Flags:     []cli.Flag{verifyFlag},
	Action: func(c *cli.Context) error {
		var on bool
		switch c.Args().Get(0) {
		case "on":
			on = true
		case "off":
		default:
			return console.Exit(1, "expected on or off, got %q", c.Args().Get(0))
		}
		sess, tr, err := openTransport(c)
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()
		ctrl := relay.NewController(tr)
		reg, _, err := ctrl.SetAll(c.Context, on)
		if err != nil {
			return console.Exit(1, "could not set all channels: %v", err)
		}
		console.PInfof(console.PictoBolt, "all relays %s (%s)", c.Args().Get(0), reg)
		if c.Bool("verify") {
			reportReadback(ctrl.Verify(c.Context, reg))
		}
		return nil
	},
}

var statusCmd = cli.Command{
	Name:  "status",
	Usage: "print session configuration and latched relay state",
	Action: func(c *cli.Context) error {
		sess, tr, err := openTransport(c)
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()
		enc := yaml.NewEncoder(os.Stdout)
		if err := enc.Encode(sess.Status()); err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		pins, err := tr.ReadPins(c.Context)
		if err != nil {
			return console.Exit(1, "could not read pins: %v", err)
		}
		console.Printf("pins: %s\n%s\n", pins, pins.Describe())
		return nil
	},
}

var sweepCmd = cli.Command{
	Name:  "sweep",
	Usage: "cycle through all channels in order",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "hold",
			Usage: "how long each relay stays energized",
			Value: relay.DefaultHold,
		},
		&cli.DurationFlag{
			Name:  "pause",
			Usage: "pause between channels",
			Value: relay.DefaultPause,
		},
		verifyFlag,
	},
	Action: func(c *cli.Context) error {
		sess, tr, err := openTransport(c)
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		ctrl := relay.NewController(tr)
		err = ctrl.Sweep(ctx, relay.SweepOpts{
			Hold:     c.Duration("hold"),
			Pause:    c.Duration("pause"),
			Readback: c.Bool("verify"),
			OnStep: func(st relay.Step) {
				if st.Err != nil {
					console.Errorf("relay %d (%s): %v", st.Channel, st.Register, st.Err)
					return
				}
				console.PInfof(console.PictoBolt, "relay %d ON (%s)", st.Channel, st.Register)
				if st.Readback != nil {
					reportReadback(*st.Readback)
				}
			},
		})
		if err != nil {
			console.PInfof(console.PictoStop, "sweep aborted, all relays released")
			return nil
		}
		console.PInfof(console.PictoFinish, "sweep done")
		return nil
	},
}
