// Command dev-browser-studio is the browser automation studio's single
// binary: a `serve` subcommand running the HTTP control surface (spec
// §6) and a `perceive` subcommand driving one Perception Loop run (spec
// §4.5) against it.
//
// Grounded on the teacher's cmd/main.go (load config, init JWT, init
// chrome/device manager, build the router, graceful-shutdown on
// SIGINT/SIGTERM) but restructured behind spf13/cobra subcommands instead
// of one func main, the way xkilldash9x-scalpel-cli's cmd package splits
// scan/report/evolution behind a root command.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "dev-browser-studio",
		Short: "Remote-controlled Chromium studio: recording engine + perception loop",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (optional)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newPerceiveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
