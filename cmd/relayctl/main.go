package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/relayctl/cmd/relayctl/command"
	"github.com/mklimuk/relayctl/cmd/relayctl/console"
)

var version string
var commit string
var date string

func main() {
	os.Exit(run())
}

func run() int {
	app := cli.NewApp()
	app.Name = "relayctl"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.Usage = "8-channel USB relay board cli"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging",
		},
		&cli.StringFlag{
			Name:  "mode",
			Usage: "bit-bang mode (sync|async)",
			Value: "sync",
		},
		&cli.IntFlag{
			Name:  "baud",
			Usage: "bit-bang clock baud rate",
			Value: 9600,
		},
		&cli.IntFlag{
			Name:  "latency",
			Usage: "adapter latency timer in milliseconds",
			Value: 2,
		},
		&cli.BoolFlag{
			Name:  "no-purge",
			Usage: "skip buffer purge during configuration",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stdout, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if ctx.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
			console.Trace = true
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	app.Commands = cli.Commands{
		&onCmd,
		&offCmd,
		&toggleCmd,
		&allCmd,
		&statusCmd,
		&sweepCmd,
		&shellCmd,
		&usbCmd,
		command.BoardCmd,
	}
	err := app.Run(os.Args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			log.Printf("unexpected error: %v", err)
			return exerr.ExitCode()
		}
		return 1
	}
	return 0
}
