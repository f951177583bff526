package cmd

import (
	"fmt"
	"io"

	"github.com/whiteroom/multisong/internal/shared"
	"github.com/whiteroom/multisong/preset"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenPresets opens the preset repository of the configured backend. The
// returned closer releases the database of the sqlite backend.
func OpenPresets(cfg *shared.Config) (preset.Repository, io.Closer, error) {
	switch cfg.Presets.Backend {
	case shared.BackendSQLite:
		db, err := shared.OpenPresetDatabase(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return preset.NewSQLRepository(db), db, nil
	default:
		dir, err := cfg.PresetDir()
		if err != nil {
			return nil, nil, fmt.Errorf("cannot find preset directory: %w", err)
		}
		repo, err := preset.NewFileRepository(dir)
		if err != nil {
			return nil, nil, err
		}
		return repo, nopCloser{}, nil
	}
}
