package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/whiteroom/multisong"
	"github.com/whiteroom/multisong/cmd"
	"github.com/whiteroom/multisong/internal/shared"
	"github.com/whiteroom/multisong/preset"
)

func presetCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "preset",
		Usage: "Manage saved presets",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List the saved presets",
				Action: r.withPresets(r.PresetList),
			},
			{
				Name:      "show",
				Usage:     "Print a preset as YAML",
				ArgsUsage: "<id or name>",
				Action:    r.withPresets(r.PresetShow),
			},
			{
				Name:      "delete",
				Usage:     "Delete a preset",
				ArgsUsage: "<id or name>",
				Action:    r.withPresets(r.PresetDelete),
			},
			{
				Name:      "import",
				Usage:     "Validate a preset file and add it to the store",
				ArgsUsage: "<file.yml>",
				Action:    r.withPresets(r.PresetImport),
			},
		},
	}
}

type presetAction func(ctx context.Context, c *cli.Command, repo preset.Repository) error

func (r *Runner) withPresets(action presetAction) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		repo, closer, err := cmd.OpenPresets(r.config)
		if err != nil {
			return fmt.Errorf("failed to open preset store: %w", err)
		}
		defer closer.Close()
		return action(ctx, c, repo)
	}
}

func (r *Runner) PresetList(ctx context.Context, c *cli.Command, repo preset.Repository) error {
	infos, err := repo.List(ctx)
	if err != nil {
		return err
	}
	r.printf("%s\n", renderPresets(infos))
	return nil
}

func (r *Runner) PresetShow(ctx context.Context, c *cli.Command, repo preset.Repository) error {
	p, err := findPreset(ctx, c, repo)
	if err != nil {
		return err
	}
	data, err := preset.Marshal(p)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

func (r *Runner) PresetDelete(ctx context.Context, c *cli.Command, repo preset.Repository) error {
	p, err := findPreset(ctx, c, repo)
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, p.ID()); err != nil {
		return err
	}
	r.logger.Info("preset deleted", "id", p.ID(), "name", p.Name())
	return nil
}

// PresetImport reads a preset file written by hand or by another store.
// Presets that would not restore are rejected; one without an id gets a new
// one.
func (r *Runner) PresetImport(ctx context.Context, c *cli.Command, repo preset.Repository) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("%w: preset file", shared.ErrMissingArgument)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	p, err := preset.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if _, err := multisong.Restore(p); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if p.ID() == "" {
		p = multisong.Capture(shared.GenerateID(), p.Name(), p.Timestamp(), p.State())
	}
	if err := repo.Save(ctx, p); err != nil {
		return err
	}
	r.logger.Info("preset imported", "id", p.ID(), "name", p.Name(), "songs", len(p.State().Songs))
	return nil
}

func findPreset(ctx context.Context, c *cli.Command, repo preset.Repository) (multisong.Preset, error) {
	key := c.Args().First()
	if key == "" {
		return multisong.Preset{}, fmt.Errorf("%w: preset id or name", shared.ErrMissingArgument)
	}
	return preset.Find(ctx, repo, key)
}
