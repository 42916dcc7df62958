package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[lnurlcli] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "lnurlcli"
	app.Version = "0.2.0"
	app.Usage = "operator tool for the lnurld server"
	app.Commands = []cli.Command{
		generateAPIKeyCommand,
		generateNewURLCommand,
		encodeCommand,
		decodeCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
