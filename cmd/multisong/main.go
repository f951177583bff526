package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/whiteroom/multisong/internal/shared"
	"github.com/whiteroom/multisong/version"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	configPath, err := shared.DefaultConfigPath()
	if err != nil {
		configPath = "config.toml"
	}

	app := &cli.Command{
		Name:    "multisong",
		Usage:   "Play up to six songs in sync from a console, MIDI controller or preset",
		Version: version.VersionOrHash,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   configPath,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the log level of the config (debug, info, warn, error)",
			},
		},
		Before:   runner.LoadConfig,
		Commands: runner.register(),
		Action:   runner.Console,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrInvalidConfig) {
			logger.Error("invalid configuration", "error", err)
			os.Exit(2)
		}
		logger.Fatalf("application error: %v", err)
	}
}
