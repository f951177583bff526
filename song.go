package multisong

import "math"

const (
	MinTempo     = 0.5
	MaxTempo     = 2.0
	DefaultTempo = 1.0

	MinVolume     = 0.0
	MaxVolume     = 1.0
	DefaultVolume = 1.0
)

type (
	// SongPlayer holds the playback state of a single song: its tempo, volume,
	// position, loop bounds and the mute / solo / playing toggles. The methods
	// never fail; out-of-range input is silently clamped (tempo, volume, loop
	// bounds) or wrapped (position).
	//
	// SongPlayer is a plain value. The engine keeps its own instances and only
	// hands out copies, so mutating a copy obtained from the engine has no
	// effect on the engine. OriginalTempoRatio and DurationSeconds are set when
	// the song is loaded and are not changed by any method.
	SongPlayer struct {
		ID   string
		Name string

		TempoMultiplier    float64 // 0.5 <= TempoMultiplier <= 2.0
		OriginalTempoRatio float64 // tempo relative to master tempo at load time; used by Ratio sync
		Volume             float64 // 0.0 <= Volume <= 1.0

		// Position is the normalized play position in [0, 1). It wraps around
		// when it overflows, so a playing song loops forever.
		Position float64

		// LoopStart and LoopEnd are normalized loop bounds with 0 <= LoopStart
		// <= LoopEnd <= 1. They are only ever set together with SetLoopBounds.
		LoopStart float64
		LoopEnd   float64

		IsPlaying bool
		IsMuted   bool
		IsSoloed  bool

		DurationSeconds float64
	}

	// SongInfo describes a song that is being loaded into a free slot.
	SongInfo struct {
		Name            string
		DurationSeconds float64
		// Tempo is the initial tempo multiplier of the song. Zero means
		// DefaultTempo.
		Tempo float64
	}
)

// NewSongPlayer creates a stopped, unmuted and unsoloed SongPlayer. The
// original tempo ratio is captured relative to the given master tempo and
// stays fixed for the lifetime of the song.
func NewSongPlayer(id string, info SongInfo, masterTempo float64) SongPlayer {
	tempo := info.Tempo
	if tempo == 0 {
		tempo = DefaultTempo
	}
	tempo = ClampTempo(tempo)
	duration := info.DurationSeconds
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		duration = 0
	}
	return SongPlayer{
		ID:                 id,
		Name:               info.Name,
		TempoMultiplier:    tempo,
		OriginalTempoRatio: tempo / ClampTempo(masterTempo),
		Volume:             DefaultVolume,
		LoopStart:          0,
		LoopEnd:            1,
		DurationSeconds:    duration,
	}
}

// SetTempo stores the tempo multiplier clamped to [MinTempo, MaxTempo].
func (s *SongPlayer) SetTempo(value float64) {
	s.TempoMultiplier = ClampTempo(value)
}

// SetVolume stores the volume clamped to [MinVolume, MaxVolume].
func (s *SongPlayer) SetVolume(value float64) {
	s.Volume = ClampVolume(value)
}

// AdvancePosition moves the position forward by delta, wrapping around 1.0.
// Non-finite deltas are ignored.
func (s *SongPlayer) AdvancePosition(delta float64) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return
	}
	s.Position = WrapPosition(s.Position + delta)
}

// SetLoopBounds clamps both values to [0, 1] and stores them in order, so the
// pair invariant LoopStart <= LoopEnd holds for reversed input too.
func (s *SongPlayer) SetLoopBounds(start, end float64) {
	start, end = clamp(start, 0, 1), clamp(end, 0, 1)
	s.LoopStart = min(start, end)
	s.LoopEnd = max(start, end)
}

func (s *SongPlayer) TogglePlaying() { s.IsPlaying = !s.IsPlaying }
func (s *SongPlayer) ToggleMute()    { s.IsMuted = !s.IsMuted }
func (s *SongPlayer) ToggleSolo()    { s.IsSoloed = !s.IsSoloed }

func (s *SongPlayer) SetPlaying(v bool) { s.IsPlaying = v }
func (s *SongPlayer) SetMuted(v bool)   { s.IsMuted = v }
func (s *SongPlayer) SetSoloed(v bool)  { s.IsSoloed = v }

// Audible reports if the song should be heard in the mix, given whether any
// song in the same state is soloed.
func (s *SongPlayer) Audible(anySoloed bool) bool {
	return s.IsPlaying && !s.IsMuted && (!anySoloed || s.IsSoloed)
}

// ClampTempo clamps a tempo multiplier to [MinTempo, MaxTempo]. NaN maps to
// MinTempo.
func ClampTempo(value float64) float64 { return clamp(value, MinTempo, MaxTempo) }

// ClampVolume clamps a volume to [MinVolume, MaxVolume]. NaN maps to
// MinVolume.
func ClampVolume(value float64) float64 { return clamp(value, MinVolume, MaxVolume) }

// WrapPosition wraps a position into [0, 1). Non-finite values map to 0.
func WrapPosition(p float64) float64 {
	p = math.Mod(p, 1)
	if math.IsNaN(p) {
		return 0
	}
	if p < 0 {
		p += 1
	}
	if p >= 1 { // -tiny + 1 rounds to 1
		p = 0
	}
	return p
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return max(lo, min(v, hi))
}
