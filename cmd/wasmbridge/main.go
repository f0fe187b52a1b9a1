// Command wasmbridge loads a guest module, links the env imports and calls
// its exports.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.PathFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "load settings from YAML `file`",
			EnvVars: []string{"WASMBRIDGE_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "loglvl",
			Usage:   "set logging `level` to debug, info, warn or error",
			EnvVars: []string{"WASMBRIDGE_LOGLVL"},
		},
		&cli.StringFlag{
			Name:    "logfmt",
			Usage:   "`format` logs as console or json",
			EnvVars: []string{"WASMBRIDGE_LOGFMT"},
		},
		&cli.UintFlag{
			Name:  "memory-limit",
			Usage: "cap guest memory at `pages` of 64KiB",
		},
		&cli.StringFlag{
			Name:  "start",
			Usage: "start `export` run at instantiation; empty disables",
		},
		&cli.BoolFlag{
			Name:  "wasi",
			Usage: "provide wasi_snapshot_preview1 to the guest",
		},
		&cli.BoolFlag{
			Name:  "interpreter",
			Usage: "use the interpreter instead of the compiler",
		},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "wasmbridge",
		Usage:     "call into a wasm guest over the env host/guest contract",
		UsageText: "wasmbridge [global options] command [command options] GUEST [arguments...]",
		Flags:     globalFlags(),
		Commands: []*cli.Command{
			runCommand(),
			exportsCommand(),
			callCommand(),
			interactiveCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
