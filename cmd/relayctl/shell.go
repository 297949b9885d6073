package main

import (
	"errors"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/relayctl"
	"github.com/mklimuk/relayctl/cmd/relayctl/console"
	"github.com/mklimuk/relayctl/relay"
)

var shellCmd = cli.Command{
	Name:  "shell",
	Usage: "interactive relay control",
	Action: func(c *cli.Context) error {
		sess, tr, err := openTransport(c)
		if err != nil {
			return err
		}
		// session close drops every coil, so quitting the shell always
		// leaves the board released
		defer func() { _ = sess.Close() }()

		ctrl := relay.NewController(tr)
		cur := currentState(c.Context, tr)
		console.PInfof(console.PictoPlug, "adapter ready, state %s", cur)
		printShellHelp()

		for {
			console.Printf("\n%s\n", cur.Describe())
			line, err := console.Prompt("relay> ")
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return console.Exit(1, "prompt error: %v", err)
			}
			fields := strings.Fields(strings.ToLower(line))
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "q", "quit", "exit":
				return nil
			case "help", "?":
				printShellHelp()
			case "1", "2", "3", "4", "5", "6", "7", "8":
				ch, err := parseChannel(fields[0])
				if err != nil {
					console.Errorf("%v", err)
					continue
				}
				cur = shellApply(c, ctrl, cur, func() (relayctl.Register, relayctl.WriteOutcome, error) {
					return ctrl.Toggle(c.Context, ch, cur)
				})
			case "on", "off":
				if len(fields) != 2 {
					console.Errorf("usage: %s <channel>", fields[0])
					continue
				}
				ch, err := parseChannel(fields[1])
				if err != nil {
					console.Errorf("%v", err)
					continue
				}
				on := fields[0] == "on"
				cur = shellApply(c, ctrl, cur, func() (relayctl.Register, relayctl.WriteOutcome, error) {
					return ctrl.Set(c.Context, ch, on, cur)
				})
			case "all":
				if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
					console.Errorf("usage: all <on|off>")
					continue
				}
				cur = shellApply(c, ctrl, cur, func() (relayctl.Register, relayctl.WriteOutcome, error) {
					return ctrl.SetAll(c.Context, fields[1] == "on")
				})
			case "read":
				pins, err := tr.ReadPins(c.Context)
				if err != nil {
					console.Errorf("could not read pins: %v", err)
					continue
				}
				console.Printf("hardware: %s  software: %s\n", pins, cur)
			default:
				console.Errorf("unknown command %q", fields[0])
			}
		}
	},
}

func shellApply(c *cli.Context, ctrl *relay.Controller, cur relayctl.Register, op func() (relayctl.Register, relayctl.WriteOutcome, error)) relayctl.Register {
	next, out, err := op()
	if err != nil {
		console.Errorf("%v", err)
		return cur
	}
	if out.Short() {
		console.Warnf("short write: adapter accepted %d of %d bytes", out.Accepted, out.Requested)
	}
	return next
}

func printShellHelp() {
	console.Print("commands:")
	console.Print("  1-8       toggle relay 1-8")
	console.Print("  on N      turn relay N on")
	console.Print("  off N     turn relay N off")
	console.Print("  all on    turn all relays on")
	console.Print("  all off   turn all relays off")
	console.Print("  read      read hardware pin state")
	console.Print("  q         quit")
}
