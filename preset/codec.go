package preset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/whiteroom/multisong"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is written to every encoded preset. Documents with a newer
// version are rejected.
const SchemaVersion = 1

type (
	document struct {
		Version   int            `yaml:"version"`
		ID        string         `yaml:"id"`
		Name      string         `yaml:"name"`
		Timestamp time.Time      `yaml:"timestamp"`
		Master    masterDocument `yaml:"master"`
		Songs     []songDocument `yaml:"songs,omitempty"`
	}

	masterDocument struct {
		Tempo      float64            `yaml:"tempo"`
		Volume     float64            `yaml:"volume"`
		SyncMode   multisong.SyncMode `yaml:"sync_mode"`
		Playing    bool               `yaml:"playing,omitempty"`
		SoloPolicy string             `yaml:"solo_policy,omitempty"`
	}

	songDocument struct {
		ID                 string  `yaml:"id"`
		Name               string  `yaml:"name,omitempty"`
		Tempo              float64 `yaml:"tempo"`
		OriginalTempoRatio float64 `yaml:"original_tempo_ratio"`
		Volume             float64 `yaml:"volume"`
		Position           float64 `yaml:"position"`
		LoopStart          float64 `yaml:"loop_start"`
		LoopEnd            float64 `yaml:"loop_end"`
		Playing            bool    `yaml:"playing,omitempty"`
		Muted              bool    `yaml:"muted,omitempty"`
		Soloed             bool    `yaml:"soloed,omitempty"`
		Duration           float64 `yaml:"duration,omitempty"`
	}
)

// Marshal encodes a preset as YAML.
func Marshal(p multisong.Preset) ([]byte, error) {
	st := p.State()
	doc := document{
		Version:   SchemaVersion,
		ID:        p.ID(),
		Name:      p.Name(),
		Timestamp: p.Timestamp().UTC(),
		Master: masterDocument{
			Tempo:    st.MasterTempoMultiplier,
			Volume:   st.MasterVolume,
			SyncMode: st.SyncMode,
			Playing:  st.MasterPlaying,
		},
	}
	if st.SoloPolicy != multisong.SoloAdditive {
		doc.Master.SoloPolicy = st.SoloPolicy.String()
	}
	for _, s := range st.Songs {
		doc.Songs = append(doc.Songs, songDocument{
			ID:                 s.ID,
			Name:               s.Name,
			Tempo:              s.TempoMultiplier,
			OriginalTempoRatio: s.OriginalTempoRatio,
			Volume:             s.Volume,
			Position:           s.Position,
			LoopStart:          s.LoopStart,
			LoopEnd:            s.LoopEnd,
			Playing:            s.IsPlaying,
			Muted:              s.IsMuted,
			Soloed:             s.IsSoloed,
			Duration:           s.DurationSeconds,
		})
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encoding preset %q: %w", p.Name(), err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a YAML preset. Unknown fields are an error. The decoded
// state is not validated here; multisong.Restore does that when the preset is
// applied.
func Unmarshal(data []byte) (multisong.Preset, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return multisong.Preset{}, fmt.Errorf("decoding preset: empty document")
		}
		return multisong.Preset{}, fmt.Errorf("decoding preset: %w", err)
	}
	if doc.Version > SchemaVersion {
		return multisong.Preset{}, fmt.Errorf("decoding preset %q: schema version %d is newer than %d", doc.Name, doc.Version, SchemaVersion)
	}
	st := multisong.MultiSongState{
		MasterTempoMultiplier: doc.Master.Tempo,
		MasterVolume:          doc.Master.Volume,
		SyncMode:              doc.Master.SyncMode,
		MasterPlaying:         doc.Master.Playing,
	}
	switch doc.Master.SoloPolicy {
	case "", multisong.SoloAdditive.String():
		st.SoloPolicy = multisong.SoloAdditive
	case multisong.SoloExclusive.String():
		st.SoloPolicy = multisong.SoloExclusive
	default:
		return multisong.Preset{}, fmt.Errorf("decoding preset %q: unknown solo policy %q", doc.Name, doc.Master.SoloPolicy)
	}
	for _, s := range doc.Songs {
		st.Songs = append(st.Songs, multisong.SongPlayer{
			ID:                 s.ID,
			Name:               s.Name,
			TempoMultiplier:    s.Tempo,
			OriginalTempoRatio: s.OriginalTempoRatio,
			Volume:             s.Volume,
			Position:           s.Position,
			LoopStart:          s.LoopStart,
			LoopEnd:            s.LoopEnd,
			IsPlaying:          s.Playing,
			IsMuted:            s.Muted,
			IsSoloed:           s.Soloed,
			DurationSeconds:    s.Duration,
		})
	}
	return multisong.Capture(doc.ID, doc.Name, doc.Timestamp, st), nil
}
