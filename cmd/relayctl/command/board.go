// Package command holds cli commands for relay boards wired straight to SBC
// header pins instead of the USB adapter.
package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/drivers/gpio"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/relayctl/cmd/relayctl/console"
)

// BoardCmd drives a single relay hanging off a NanoPi header pin through
// gobot's relay driver.
var BoardCmd = &cli.Command{
	Name:  "board",
	Usage: "drive a relay wired to a NanoPi header pin",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "pin", Usage: "header pin name", Required: true},
		&cli.StringFlag{Name: "state", Usage: "target state (on|off)", Value: "off"},
		&cli.DurationFlag{Name: "pulse", Usage: "energize for the given duration, then release"},
	},
	Action: func(c *cli.Context) error {
		adaptor := nanopi.NewNeoAdaptor()
		err := adaptor.Connect()
		if err != nil {
			return fmt.Errorf("adaptor connect error: %w", err)
		}
		defer func() { _ = adaptor.Finalize() }()

		r := gpio.NewRelayDriver(adaptor, c.String("pin"))
		err = r.Start()
		if err != nil {
			return fmt.Errorf("relay driver start error: %w", err)
		}
		defer func() { _ = r.Halt() }()

		if pulse := c.Duration("pulse"); pulse > 0 {
			if err := r.On(); err != nil {
				return fmt.Errorf("relay on error: %w", err)
			}
			console.PInfof(console.PictoBolt, "pin %s ON for %v", c.String("pin"), pulse)
			time.Sleep(pulse)
			if err := r.Off(); err != nil {
				return fmt.Errorf("relay off error: %w", err)
			}
			console.PInfof(console.PictoBolt, "pin %s OFF", c.String("pin"))
			return nil
		}

		switch c.String("state") {
		case "on":
			err = r.On()
		case "off":
			err = r.Off()
		default:
			return console.Exit(1, "expected state on or off, got %q", c.String("state"))
		}
		if err != nil {
			return fmt.Errorf("relay switch error: %w", err)
		}
		console.PInfof(console.PictoBolt, "pin %s %s", c.String("pin"), c.String("state"))
		return nil
	},
}
