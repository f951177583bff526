package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/whiteroom/multisong"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Audio    AudioConfig    `toml:"audio"`
	Presets  PresetsConfig  `toml:"presets"`
	Database DatabaseConfig `toml:"database"`
	MIDI     MIDIConfig     `toml:"midi"`
	Log      LogConfig      `toml:"log"`
}

type EngineConfig struct {
	SampleRate   int     `toml:"sample_rate"`
	BlockFrames  int     `toml:"block_frames"`
	DebounceMS   int     `toml:"debounce_ms"`
	MasterTempo  float64 `toml:"master_tempo"`
	MasterVolume float64 `toml:"master_volume"`
	SyncMode     string  `toml:"sync_mode"`
	SoloPolicy   string  `toml:"solo_policy"`
}

type AudioConfig struct {
	Enabled  bool `toml:"enabled"`
	BufferMS int  `toml:"buffer_ms"`
	Tone     bool `toml:"tone"`
}

type PresetsConfig struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

type MIDIConfig struct {
	Input          string `toml:"input"`
	Channel        int    `toml:"channel"`
	MasterTempoCC  int    `toml:"master_tempo_cc"`
	MasterVolumeCC int    `toml:"master_volume_cc"`
	SongVolumeCC   int    `toml:"song_volume_cc"`
	SongTempoCC    int    `toml:"song_tempo_cc"`
	SongMuteNote   int    `toml:"song_mute_note"`
	SongSoloNote   int    `toml:"song_solo_note"`
	PlayNote       int    `toml:"play_note"`
	PauseNote      int    `toml:"pause_note"`
	StopNote       int    `toml:"stop_note"`
	PanicNote      int    `toml:"panic_note"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// LoadConfig reads a TOML configuration file. Keys missing from the file keep
// their default values; unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	config := DefaultConfig()
	md, err := toml.Decode(string(data), config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalidConfig, strings.Join(keys, ", "))
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config file at the specified path using the
// embedded example config. An existing file is never overwritten.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultConfigPath is <user config dir>/multisong/config.toml.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "multisong", "config.toml"), nil
}

// Validate checks the values that would otherwise fail later, deep inside the
// engine or the audio driver.
func (c *Config) Validate() error {
	switch {
	case c.Engine.SampleRate <= 0:
		return fmt.Errorf("%w: engine.sample_rate must be positive, got %d", ErrInvalidConfig, c.Engine.SampleRate)
	case c.Engine.BlockFrames <= 0:
		return fmt.Errorf("%w: engine.block_frames must be positive, got %d", ErrInvalidConfig, c.Engine.BlockFrames)
	case c.Engine.DebounceMS < 0:
		return fmt.Errorf("%w: engine.debounce_ms must not be negative", ErrInvalidConfig)
	case c.Audio.BufferMS < 0:
		return fmt.Errorf("%w: audio.buffer_ms must not be negative", ErrInvalidConfig)
	case c.MIDI.Channel < 0 || c.MIDI.Channel > 16:
		return fmt.Errorf("%w: midi.channel must be 0-16, got %d", ErrInvalidConfig, c.MIDI.Channel)
	}
	if _, err := multisong.ParseSyncMode(c.Engine.SyncMode); err != nil {
		return fmt.Errorf("%w: engine.sync_mode: %v", ErrInvalidConfig, err)
	}
	if _, err := c.SoloPolicy(); err != nil {
		return err
	}
	if c.Presets.Backend != BackendFile && c.Presets.Backend != BackendSQLite {
		return fmt.Errorf("%w: presets.backend must be %q or %q, got %q", ErrInvalidConfig, BackendFile, BackendSQLite, c.Presets.Backend)
	}
	return nil
}

func (c *Config) SoloPolicy() (multisong.SoloPolicy, error) {
	switch strings.ToLower(c.Engine.SoloPolicy) {
	case "", "additive":
		return multisong.SoloAdditive, nil
	case "exclusive":
		return multisong.SoloExclusive, nil
	}
	return multisong.SoloAdditive, fmt.Errorf("%w: engine.solo_policy must be additive or exclusive, got %q", ErrInvalidConfig, c.Engine.SoloPolicy)
}

// InitialState is the empty engine state described by the [engine] section.
func (c *Config) InitialState() (multisong.MultiSongState, error) {
	st := multisong.NewMultiSongState()
	mode, err := multisong.ParseSyncMode(c.Engine.SyncMode)
	if err != nil {
		return st, fmt.Errorf("%w: engine.sync_mode: %v", ErrInvalidConfig, err)
	}
	policy, err := c.SoloPolicy()
	if err != nil {
		return st, err
	}
	st.SyncMode = mode
	st.SoloPolicy = policy
	st.SetMasterTempo(c.Engine.MasterTempo)
	st.SetMasterVolume(c.Engine.MasterVolume)
	return st, nil
}

// PresetDir is the preset directory of the file backend.
func (c *Config) PresetDir() (string, error) {
	if c.Presets.Dir != "" {
		return c.Presets.Dir, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "multisong", "presets"), nil
}
