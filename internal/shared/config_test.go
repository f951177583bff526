package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/whiteroom/multisong"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Engine.SampleRate != 44100 {
			t.Errorf("expected sample rate 44100, got %d", config.Engine.SampleRate)
		}
		if config.Engine.BlockFrames != 512 {
			t.Errorf("expected block frames 512, got %d", config.Engine.BlockFrames)
		}
		if config.Presets.Backend != BackendFile {
			t.Errorf("expected file backend, got %s", config.Presets.Backend)
		}
		if config.MIDI.MasterVolumeCC != 7 {
			t.Errorf("expected master volume on CC 7, got %d", config.MIDI.MasterVolumeCC)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("default config should be valid: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}
		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}
		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}
		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}
		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig keeps defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		content := "[engine]\nsync_mode = \"locked\"\nmaster_tempo = 1.5\n"
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}
		if config.Engine.SampleRate != 44100 {
			t.Errorf("sample rate should keep its default, got %d", config.Engine.SampleRate)
		}
		st, err := config.InitialState()
		if err != nil {
			t.Fatalf("InitialState: %v", err)
		}
		if st.SyncMode != multisong.Locked || st.MasterTempoMultiplier != 1.5 {
			t.Errorf("initial state = %+v", st)
		}
	})

	t.Run("LoadConfig rejects", func(t *testing.T) {
		tests := []struct {
			name    string
			content string
		}{
			{"unknown key", "[engine]\nsampel_rate = 48000\n"},
			{"sync mode", "[engine]\nsync_mode = \"loose\"\n"},
			{"sample rate", "[engine]\nsample_rate = 0\n"},
			{"backend", "[presets]\nbackend = \"s3\"\n"},
			{"solo policy", "[engine]\nsolo_policy = \"random\"\n"},
			{"midi channel", "[midi]\nchannel = 17\n"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "config.toml")
				if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
					t.Fatal(err)
				}
				if _, err := LoadConfig(configPath); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("PresetDir", func(t *testing.T) {
		config := DefaultConfig()
		config.Presets.Dir = "/tmp/presets"
		if dir, err := config.PresetDir(); err != nil || dir != "/tmp/presets" {
			t.Errorf("PresetDir = %q, %v", dir, err)
		}
	})
}
