package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"
	"github.com/whiteroom/multisong/cmd"
	"github.com/whiteroom/multisong/internal/shared"
	"github.com/whiteroom/multisong/version"
	"github.com/whiteroom/multisong/wavinfo"
)

func probeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "Show what the engine reads from WAV files",
		ArgsUsage: "<file.wav> [...]",
		Action:    r.Probe,
	}
}

func midiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "midi",
		Usage: "List the MIDI input ports",
		Action: func(ctx context.Context, c *cli.Command) error {
			ports, err := cmd.MIDIPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				r.printf("%s\n", styles.help.Render("no MIDI inputs found"))
			}
			for _, p := range ports {
				r.printf("%s\n", p)
			}
			return nil
		},
	}
}

func versionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the version",
		Action: func(ctx context.Context, c *cli.Command) error {
			r.printf("%s\n", version.String())
			return nil
		},
	}
}

func (r *Runner) Probe(ctx context.Context, c *cli.Command) error {
	if c.NArg() == 0 {
		return fmt.Errorf("%w: WAV file", shared.ErrMissingArgument)
	}
	t := newTable("file", "duration", "rate", "channels", "bits")
	failed := 0
	for _, path := range c.Args().Slice() {
		info, err := wavinfo.ProbeFile(path)
		if err != nil {
			r.logger.Error("cannot probe", "path", path, "error", err)
			failed++
			continue
		}
		t.Row(path, clockTime(info.DurationSeconds), strconv.Itoa(info.SampleRate), strconv.Itoa(info.Channels), strconv.Itoa(info.BitDepth))
	}
	r.printf("%s\n", t.Render())
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be read", failed, c.NArg())
	}
	return nil
}
