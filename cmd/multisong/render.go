package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/whiteroom/multisong"
	"github.com/whiteroom/multisong/cmd"
	"github.com/whiteroom/multisong/internal/shared"
	"github.com/whiteroom/multisong/oto"
	"github.com/whiteroom/multisong/preset"
	"github.com/whiteroom/multisong/transport"
	"github.com/whiteroom/multisong/wavinfo"
)

func renderCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render the preview mix of a set of songs to a WAV file, without an audio device",
		ArgsUsage: "[song.wav | name:seconds[:tempo] ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "WAV file to write",
				Value:   "mix.wav",
			},
			&cli.FloatFlag{
				Name:  "seconds",
				Usage: "Length of the render",
				Value: 10,
			},
			&cli.StringFlag{
				Name:  "preset",
				Usage: "Start from a saved preset (id or name)",
			},
			&cli.StringFlag{
				Name:  "sync-mode",
				Usage: "independent, locked or ratio",
			},
			&cli.FloatFlag{
				Name:  "master",
				Usage: "Master tempo multiplier",
			},
		},
		Action: r.Render,
	}
}

// Render plays every song from its current position and writes the mix.
func (r *Runner) Render(ctx context.Context, c *cli.Command) error {
	seconds := c.Float("seconds")
	if !(seconds > 0) {
		return fmt.Errorf("%w: --seconds must be positive", shared.ErrInvalidArgument)
	}
	initial, err := r.config.InitialState()
	if err != nil {
		return err
	}
	ctrl := transport.NewController(transport.Options{
		Logger:  shared.WithLogger(r.logger, "component", "controller"),
		Initial: &initial,
		NewID:   shared.GenerateID,
	})
	defer ctrl.Close()

	if key := c.String("preset"); key != "" {
		repo, closer, err := cmd.OpenPresets(r.config)
		if err != nil {
			return fmt.Errorf("failed to open preset store: %w", err)
		}
		p, err := preset.Find(ctx, repo, key)
		closer.Close()
		if err != nil {
			return err
		}
		if err := ctrl.RestorePreset(p); err != nil {
			return err
		}
	}
	for _, arg := range c.Args().Slice() {
		info, err := parseSongArg(arg)
		if err != nil {
			return err
		}
		if _, err := ctrl.AddSong(info); err != nil {
			return err
		}
	}
	if m := c.String("sync-mode"); m != "" {
		mode, err := multisong.ParseSyncMode(m)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		ctrl.SetSyncMode(mode)
	}
	if c.IsSet("master") {
		ctrl.SetMasterTempo(c.Float("master"))
	}
	ctrl.PlayAll()

	sampleRate := r.config.Engine.SampleRate
	clock := transport.NewClock(ctrl, ctrl.Broker(), transport.ClockConfig{
		SampleRate:  sampleRate,
		BlockFrames: r.config.Engine.BlockFrames,
	})
	mixer := oto.NewToneMixer(clock, sampleRate, r.config.Engine.BlockFrames, true)
	buf := make(multisong.AudioBuffer, int(seconds*float64(sampleRate)))
	if err := mixer.Process(buf); err != nil {
		return err
	}

	path := c.String("output")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := wavinfo.WriteWAV(f, buf, sampleRate); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	r.logger.Info("mix rendered", "path", path, "songs", len(ctrl.State().Songs), "seconds", seconds)
	return nil
}

// parseSongArg reads a WAV file, or a song given as name:seconds[:tempo].
func parseSongArg(arg string) (multisong.SongInfo, error) {
	if strings.HasSuffix(strings.ToLower(arg), ".wav") {
		return wavinfo.SongInfo(arg)
	}
	parts := strings.Split(arg, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
		return multisong.SongInfo{}, fmt.Errorf("%w: %q is neither a WAV file nor name:seconds[:tempo]", shared.ErrInvalidArgument, arg)
	}
	info := multisong.SongInfo{Name: parts[0]}
	var err error
	if info.DurationSeconds, err = parseValue(parts[1]); err != nil {
		return info, err
	}
	if len(parts) == 3 {
		if info.Tempo, err = parseValue(parts[2]); err != nil {
			return info, err
		}
	}
	return info, nil
}
