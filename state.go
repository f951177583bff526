package multisong

import (
	"fmt"
	"math"
	"slices"
)

// MaxSongs is the hard cap on the number of songs in a MultiSongState.
const MaxSongs = 6

type (
	// MultiSongState is the complete state of the engine: the songs in slot
	// order, the master tempo and volume, the sync mode and whether the master
	// transport is running. MasterPlaying only tells what the transport was
	// commanded to do; individual songs can be toggled independently.
	//
	// The methods on MultiSongState implement the state transitions without any
	// concurrency control; transport.Controller serializes them and publishes
	// snapshots to the audio thread.
	MultiSongState struct {
		Songs                 []SongPlayer
		MasterTempoMultiplier float64
		MasterVolume          float64
		SyncMode              SyncMode
		MasterPlaying         bool
		SoloPolicy            SoloPolicy
	}

	// SoloPolicy tells what happens to other songs when a song is soloed.
	SoloPolicy int
)

const (
	// SoloAdditive lets any number of songs be soloed at once; all soloed songs
	// are audible.
	SoloAdditive SoloPolicy = iota
	// SoloExclusive clears the solo of every other song when a song is soloed,
	// so the last solo wins.
	SoloExclusive
)

func (p SoloPolicy) String() string {
	switch p {
	case SoloAdditive:
		return "additive"
	case SoloExclusive:
		return "exclusive"
	}
	return fmt.Sprintf("SoloPolicy(%d)", int(p))
}

// NewMultiSongState returns an empty state with unity master tempo and volume
// in Independent sync mode.
func NewMultiSongState() MultiSongState {
	return MultiSongState{
		MasterTempoMultiplier: DefaultTempo,
		MasterVolume:          DefaultVolume,
		SyncMode:              Independent,
	}
}

// Copy makes a deep copy of the state. The copy shares no memory with the
// original.
func (s MultiSongState) Copy() MultiSongState {
	s.Songs = slices.Clone(s.Songs)
	return s
}

// Index returns the slot of the song with the given id, or -1.
func (s *MultiSongState) Index(id string) int {
	return slices.IndexFunc(s.Songs, func(p SongPlayer) bool { return p.ID == id })
}

// Song returns a pointer to the song with the given id, or nil.
func (s *MultiSongState) Song(id string) *SongPlayer {
	if i := s.Index(id); i >= 0 {
		return &s.Songs[i]
	}
	return nil
}

func (s *MultiSongState) AnySoloed() bool {
	return slices.ContainsFunc(s.Songs, func(p SongPlayer) bool { return p.IsSoloed })
}

// Audible reports whether the song in slot i is heard in the mix.
func (s *MultiSongState) Audible(i int) bool {
	if i < 0 || i >= len(s.Songs) {
		return false
	}
	return s.Songs[i].Audible(s.AnySoloed())
}

// AddSong appends a new stopped song to the next free slot. New songs never
// start playing automatically, even if the master transport is running. It
// fails with ErrCapacityExceeded when all slots are taken.
func (s *MultiSongState) AddSong(id string, info SongInfo) error {
	if len(s.Songs) >= MaxSongs {
		return fmt.Errorf("adding song %q: %w", info.Name, ErrCapacityExceeded)
	}
	song := NewSongPlayer(id, info, s.MasterTempoMultiplier)
	s.Songs = append(s.Songs, song)
	s.applySyncAt(len(s.Songs) - 1)
	return nil
}

// RemoveSong removes the song with the given id. Other songs and the master
// transport are not affected. Returns false if there was no such song.
func (s *MultiSongState) RemoveSong(id string) bool {
	i := s.Index(id)
	if i < 0 {
		return false
	}
	s.Songs = slices.Delete(s.Songs, i, i+1)
	return true
}

func (s *MultiSongState) ClearSongs() {
	s.Songs = nil
}

func (s *MultiSongState) PlayAll() {
	for i := range s.Songs {
		s.Songs[i].IsPlaying = true
	}
	s.MasterPlaying = true
}

// PauseAll stops every song but keeps the positions.
func (s *MultiSongState) PauseAll() {
	for i := range s.Songs {
		s.Songs[i].IsPlaying = false
	}
	s.MasterPlaying = false
}

// StopAll stops every song and rewinds it to the beginning.
func (s *MultiSongState) StopAll() {
	for i := range s.Songs {
		s.Songs[i].IsPlaying = false
		s.Songs[i].Position = 0
	}
	s.MasterPlaying = false
}

func (s *MultiSongState) TogglePlayAll() {
	if s.MasterPlaying {
		s.PauseAll()
	} else {
		s.PlayAll()
	}
}

// SetSyncMode switches the sync mode and immediately recomputes every song's
// tempo.
func (s *MultiSongState) SetSyncMode(mode SyncMode) {
	s.SyncMode = mode
	s.ApplySync()
}

// SetMasterTempo clamps and stores the master tempo, then recomputes every
// song's tempo.
func (s *MultiSongState) SetMasterTempo(value float64) {
	s.MasterTempoMultiplier = ClampTempo(value)
	s.ApplySync()
}

// SetMasterVolume clamps and stores the master volume. It is applied at mix
// time and does not change the per-song volumes.
func (s *MultiSongState) SetMasterVolume(value float64) {
	s.MasterVolume = ClampVolume(value)
}

// SetSongTempo sets the tempo of one song and reapplies the current sync mode
// to it, so outside Independent mode the master tempo still wins.
func (s *MultiSongState) SetSongTempo(id string, value float64) bool {
	i := s.Index(id)
	if i < 0 {
		return false
	}
	s.Songs[i].SetTempo(value)
	s.applySyncAt(i)
	return true
}

// ToggleSolo flips the solo of a song. With SoloExclusive, soloing a song
// clears the solo of every other song.
func (s *MultiSongState) ToggleSolo(id string) bool {
	i := s.Index(id)
	if i < 0 {
		return false
	}
	s.Songs[i].ToggleSolo()
	if s.SoloPolicy == SoloExclusive && s.Songs[i].IsSoloed {
		for j := range s.Songs {
			if j != i {
				s.Songs[j].IsSoloed = false
			}
		}
	}
	return true
}

// Validate checks every invariant of the state. Restoring a preset goes
// through Validate so that a malformed snapshot is never applied.
func (s *MultiSongState) Validate() error {
	if len(s.Songs) > MaxSongs {
		return fmt.Errorf("%w: %d songs, at most %d allowed", ErrInvalidSnapshot, len(s.Songs), MaxSongs)
	}
	if !inRange(s.MasterTempoMultiplier, MinTempo, MaxTempo) {
		return fmt.Errorf("%w: master tempo %v out of range", ErrInvalidSnapshot, s.MasterTempoMultiplier)
	}
	if !inRange(s.MasterVolume, MinVolume, MaxVolume) {
		return fmt.Errorf("%w: master volume %v out of range", ErrInvalidSnapshot, s.MasterVolume)
	}
	if !s.SyncMode.Valid() {
		return fmt.Errorf("%w: invalid sync mode %d", ErrInvalidSnapshot, int(s.SyncMode))
	}
	if s.SoloPolicy != SoloAdditive && s.SoloPolicy != SoloExclusive {
		return fmt.Errorf("%w: invalid solo policy %d", ErrInvalidSnapshot, int(s.SoloPolicy))
	}
	seen := make(map[string]bool, len(s.Songs))
	for i, p := range s.Songs {
		switch {
		case p.ID == "":
			return fmt.Errorf("%w: song %d has no id", ErrInvalidSnapshot, i)
		case seen[p.ID]:
			return fmt.Errorf("%w: duplicate song id %q", ErrInvalidSnapshot, p.ID)
		case !inRange(p.TempoMultiplier, MinTempo, MaxTempo):
			return fmt.Errorf("%w: song %q tempo %v out of range", ErrInvalidSnapshot, p.ID, p.TempoMultiplier)
		case !inRange(p.Volume, MinVolume, MaxVolume):
			return fmt.Errorf("%w: song %q volume %v out of range", ErrInvalidSnapshot, p.ID, p.Volume)
		case !(p.Position >= 0 && p.Position < 1):
			return fmt.Errorf("%w: song %q position %v out of range", ErrInvalidSnapshot, p.ID, p.Position)
		case !(0 <= p.LoopStart && p.LoopStart <= p.LoopEnd && p.LoopEnd <= 1):
			return fmt.Errorf("%w: song %q loop [%v, %v] invalid", ErrInvalidSnapshot, p.ID, p.LoopStart, p.LoopEnd)
		case !(p.OriginalTempoRatio > 0) || math.IsInf(p.OriginalTempoRatio, 0):
			return fmt.Errorf("%w: song %q tempo ratio %v invalid", ErrInvalidSnapshot, p.ID, p.OriginalTempoRatio)
		case !(p.DurationSeconds >= 0) || math.IsInf(p.DurationSeconds, 0):
			return fmt.Errorf("%w: song %q duration %v invalid", ErrInvalidSnapshot, p.ID, p.DurationSeconds)
		}
		seen[p.ID] = true
	}
	return nil
}

func inRange(v, lo, hi float64) bool { return v >= lo && v <= hi }
