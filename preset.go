package multisong

import (
	"fmt"
	"time"
)

// Preset is an immutable, named snapshot of a complete MultiSongState. The
// snapshot is deep-copied both when the preset is captured and whenever it is
// read, so a Preset never shares memory with live engine state.
type Preset struct {
	id        string
	name      string
	timestamp time.Time
	state     MultiSongState
}

// Capture deep-copies state into a new Preset.
func Capture(id, name string, timestamp time.Time, state MultiSongState) Preset {
	return Preset{
		id:        id,
		name:      name,
		timestamp: timestamp,
		state:     state.Copy(),
	}
}

// Restore produces a complete replacement state from the preset. A snapshot
// that violates any invariant is rejected with ErrInvalidSnapshot; the caller
// should then keep its current state untouched.
func Restore(p Preset) (MultiSongState, error) {
	s := p.state.Copy()
	if err := s.Validate(); err != nil {
		return MultiSongState{}, fmt.Errorf("restoring preset %q: %w", p.name, err)
	}
	return s, nil
}

func (p Preset) ID() string           { return p.id }
func (p Preset) Name() string         { return p.name }
func (p Preset) Timestamp() time.Time { return p.timestamp }

// State returns a deep copy of the captured state.
func (p Preset) State() MultiSongState { return p.state.Copy() }
