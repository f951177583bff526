package preset

import (
	"context"
	"fmt"
	"sync"

	"github.com/whiteroom/multisong"
)

// MemRepository keeps presets in memory. Useful for tests and for running
// without any persistence.
type MemRepository struct {
	mu      sync.RWMutex
	presets map[string]multisong.Preset
}

func NewMemRepository() *MemRepository {
	return &MemRepository{presets: make(map[string]multisong.Preset)}
}

func (r *MemRepository) Load(ctx context.Context, id string) (multisong.Preset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presets[id]
	if !ok {
		return multisong.Preset{}, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	return p, nil
}

func (r *MemRepository) Save(ctx context.Context, p multisong.Preset) error {
	if p.ID() == "" {
		return fmt.Errorf("saving preset %q: empty id", p.Name())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[p.ID()] = p
	return nil
}

func (r *MemRepository) List(ctx context.Context) ([]Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Info, 0, len(r.presets))
	for _, p := range r.presets {
		infos = append(infos, infoOf(p))
	}
	sortInfos(infos)
	return infos, nil
}

func (r *MemRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.presets[id]; !ok {
		return fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	delete(r.presets, id)
	return nil
}
