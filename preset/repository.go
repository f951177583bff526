package preset

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/whiteroom/multisong"
)

var ErrNotFound = errors.New("preset not found")

type (
	// Repository stores presets. Implementations must be safe for concurrent
	// use.
	Repository interface {
		Load(ctx context.Context, id string) (multisong.Preset, error)
		Save(ctx context.Context, p multisong.Preset) error
		List(ctx context.Context) ([]Info, error)
		Delete(ctx context.Context, id string) error
	}

	// Info is the summary of a stored preset shown in listings.
	Info struct {
		ID        string
		Name      string
		Timestamp time.Time
		Songs     int
	}
)

func infoOf(p multisong.Preset) Info {
	return Info{ID: p.ID(), Name: p.Name(), Timestamp: p.Timestamp(), Songs: len(p.State().Songs)}
}

func sortInfos(infos []Info) {
	slices.SortFunc(infos, func(a, b Info) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// Find loads the preset whose id equals key, or failing that, the one whose
// name equals key ignoring case. An id prefix of at least four characters is
// also accepted when it is unambiguous.
func Find(ctx context.Context, r Repository, key string) (multisong.Preset, error) {
	p, err := r.Load(ctx, key)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return p, err
	}
	infos, err := r.List(ctx)
	if err != nil {
		return multisong.Preset{}, err
	}
	var match []Info
	for _, info := range infos {
		if strings.EqualFold(info.Name, key) {
			return r.Load(ctx, info.ID)
		}
		if len(key) >= 4 && strings.HasPrefix(info.ID, key) {
			match = append(match, info)
		}
	}
	switch len(match) {
	case 0:
		return multisong.Preset{}, fmt.Errorf("%q: %w", key, ErrNotFound)
	case 1:
		return r.Load(ctx, match[0].ID)
	}
	return multisong.Preset{}, fmt.Errorf("%q matches %d presets", key, len(match))
}
