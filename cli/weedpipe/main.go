// Package main is the weedpipe command.
package main

import (
	"os"

	"github.com/weedscan/weedpipe/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		cli.Errorf(app.ErrWriter, "%v", err)
	}
}
