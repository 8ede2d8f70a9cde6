// main.go - CLI entrypoint.
//
// Grounded on original_source/main.c's load order (firmware at 0, then
// every positional argument bound as a disk, then the graphics window
// opened) and on the urfave/cli.v2 App pattern from the chr2png example
// (Flags, Name, Usage, Version, Action, app.Run(os.Args)).

package main

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/urfave/cli.v2"
)

const Version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "vx4",
		Usage:   "run firmware on the vx4 virtual machine",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "firmware",
				Usage: "firmware image loaded at address 0",
				Value: "fw.bin",
			},
			&cli.StringFlag{
				Name:  "base-dir",
				Usage: "sandbox directory for the file device",
				Value: ".",
			},
			&cli.BoolFlag{
				Name:  "features",
				Usage: "print compiled-in features and exit",
			},
		},
		ArgsUsage: "[disk image...]",
		Action:    run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func run(c *cli.Context) error {
	if c.Bool("features") {
		printFeatures()
		return nil
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	m, err := NewMachine(log, c.String("base-dir"))
	if err != nil {
		log.Error("machine init failed", "err", err)
		return cli.Exit(err.Error(), exitCodeFor(err))
	}

	if err := m.LoadFirmware(0, c.String("firmware"), os.ReadFile); err != nil {
		log.Error("firmware load failed", "file", c.String("firmware"), "err", err)
		return cli.Exit(err.Error(), exitCodeFor(err))
	}

	for _, disk := range c.Args().Slice() {
		if err := m.LoadDisk(disk); err != nil {
			log.Error("disk load failed", "file", disk, "err", err)
			return cli.Exit(err.Error(), exitCodeFor(err))
		}
	}

	log.Info("starting machine", "firmware", c.String("firmware"), "disks", len(c.Args().Slice()))

	runErr := m.Run()
	m.Shutdown()

	if runErr != nil {
		log.Error("machine run failed", "err", runErr)
		return cli.Exit(runErr.Error(), exitCodeFor(runErr))
	}
	return nil
}

// exitCodeFor turns a machine error into a process exit code: 0 on a clean
// run, the carried Code's numeric value otherwise.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	code := CodeOf(err)
	if code == NoErr {
		return 1
	}
	return int(code)
}
