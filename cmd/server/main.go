// The MIT License (MIT)

// Copyright (c) 2017-2020 Uber Technologies Inc.

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli"

	"github.com/uber/weir/cmd/server/weir"
	"github.com/uber/weir/common/config"
)

func main() {
	app := buildCLI()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(config.ExitCode(err))
	}
}

func buildCLI() *cli.App {
	app := cli.NewApp()
	app.Name = "weir"
	app.Usage = "distributed per-user QoS layer"
	app.Commands = []cli.Command{
		{
			Name:  "start",
			Usage: "start weir services",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "services, s",
					Value: weir.ServiceCollector,
					Usage: "comma-separated services to start: collector, polygen, edge",
				},
				cli.StringFlag{
					Name:  "config, c",
					Usage: "path to the service config file",
				},
			},
			Action: startHandler,
		},
	}
	return app
}

func startHandler(c *cli.Context) error {
	configPath := c.String("config")
	if configPath == "" && c.NArg() > 0 {
		configPath = c.Args().First()
	}
	if configPath == "" {
		return fmt.Errorf("%w: no config file given", config.ErrConfigInvalid)
	}

	var daemons []weir.Daemon
	for _, service := range strings.Split(c.String("services"), ",") {
		daemon, err := weir.NewDaemon(strings.TrimSpace(service), configPath)
		if err != nil {
			return err
		}
		daemons = append(daemons, daemon)
	}
	for _, daemon := range daemons {
		if err := daemon.Start(); err != nil {
			return err
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	for _, daemon := range daemons {
		_ = daemon.Stop()
	}
	return nil
}
