package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/whiteroom/multisong/cmd"
	"github.com/whiteroom/multisong/internal/shared"
)

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and prepare the preset store",
		Action: r.Setup,
	}
}

// Setup writes the example config to --config unless a file exists there,
// then opens the configured preset store so that its directory or database
// schema is created.
func (r *Runner) Setup(ctx context.Context, c *cli.Command) error {
	path := c.String("config")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", path)
		if err := shared.CreateConfigFile(path); err != nil {
			return err
		}
	} else {
		r.logger.Info("using existing config file", "path", path)
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}
	r.config = config

	r.logger.Info("preparing preset store", "backend", config.Presets.Backend)
	repo, closer, err := cmd.OpenPresets(config)
	if err != nil {
		return fmt.Errorf("failed to open preset store: %w", err)
	}
	defer closer.Close()
	infos, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list presets: %w", err)
	}
	r.logger.Infof("setup complete, %d presets available", len(infos))
	return nil
}
