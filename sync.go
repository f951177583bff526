package multisong

import (
	"fmt"
	"strings"
)

// SyncMode is the policy that couples the tempo of each song to the master
// tempo.
type SyncMode int

const (
	// Independent leaves every song at its own tempo multiplier; the master
	// tempo has no effect.
	Independent SyncMode = iota
	// Locked forces every song to the master tempo.
	Locked
	// Ratio scales every song by its original tempo ratio, preserving the
	// tempo relationships between songs up to clamping.
	Ratio
)

var syncModeNames = [...]string{"independent", "locked", "ratio"}

func (m SyncMode) String() string {
	if m < 0 || int(m) >= len(syncModeNames) {
		return fmt.Sprintf("SyncMode(%d)", int(m))
	}
	return syncModeNames[m]
}

func (m SyncMode) Valid() bool { return m >= Independent && m <= Ratio }

// ParseSyncMode parses the case-insensitive name of a sync mode.
func ParseSyncMode(s string) (SyncMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range syncModeNames {
		if n == s {
			return SyncMode(i), nil
		}
	}
	return Independent, fmt.Errorf("unknown sync mode %q", s)
}

func (m SyncMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid sync mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *SyncMode) UnmarshalText(text []byte) error {
	v, err := ParseSyncMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// EffectiveTempo computes the tempo a song plays at under the given sync mode
// and master tempo. It is a pure function; ApplySync is what persists the
// result into the songs.
func EffectiveTempo(song SongPlayer, masterTempo float64, mode SyncMode) float64 {
	switch mode {
	case Locked:
		return ClampTempo(masterTempo)
	case Ratio:
		return ClampTempo(masterTempo * song.OriginalTempoRatio)
	default:
		return song.TempoMultiplier
	}
}

// ApplySync recomputes the tempo of every song with EffectiveTempo and stores
// it as the song's tempo multiplier. Switching back to Independent keeps the
// last computed tempos as the new baseline.
func (s *MultiSongState) ApplySync() {
	for i := range s.Songs {
		s.applySyncAt(i)
	}
}

func (s *MultiSongState) applySyncAt(i int) {
	s.Songs[i].TempoMultiplier = EffectiveTempo(s.Songs[i], s.MasterTempoMultiplier, s.SyncMode)
}
