// Command msgloop demonstrates the msgloop substrate: worker threads, a
// thread-affine observer broadcaster, and atomic file commits on a dedicated
// file thread.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "msgloop: %s\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var env environment

	app := cli.NewApp()
	app.Name = `msgloop`
	app.HelpName = `msgloop`
	app.Usage = `cooperative task loops, hosted on dedicated threads`
	app.UsageText = `msgloop [global options] <command> [arguments...]`
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  `config, c`,
			Usage: `path to a .toml or .yaml config file`,
		},
		cli.StringFlag{
			Name:  `log-level`,
			Usage: `override the configured log level (trace, debug, info, warning, err, ...)`,
		},
		cli.StringFlag{
			Name:  `metrics-addr`,
			Usage: `override the configured listen address for /metrics`,
		},
	}
	app.Before = func(c *cli.Context) error {
		return env.init(c)
	}
	app.After = func(c *cli.Context) error {
		if env.exit != nil {
			env.exit.Run()
		}
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:  `demo`,
			Usage: `start the configured threads, and broadcast notifications to observers on each`,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  `notifications, n`,
					Value: 3,
					Usage: `number of notifications to broadcast`,
				},
			},
			Action: func(c *cli.Context) error {
				return runDemo(&env, c.Int(`notifications`))
			},
		},
		{
			Name:  `commit`,
			Usage: `apply a series of updates, persisting them through a coalescing file writer`,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  `updates, u`,
					Value: 5,
					Usage: `number of updates to apply`,
				},
				cli.DurationFlag{
					Name:  `interval`,
					Usage: `override the configured commit interval`,
				},
				cli.BoolFlag{
					Name:  `flush`,
					Usage: `flush immediately after the last update, rather than waiting for the commit interval`,
				},
			},
			Action: func(c *cli.Context) error {
				return runCommit(&env, commitArgs{
					updates:  c.Int(`updates`),
					interval: c.Duration(`interval`),
					flush:    c.Bool(`flush`),
				})
			},
		},
	}
	return app
}
