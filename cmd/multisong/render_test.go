package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"github.com/whiteroom/multisong/internal/shared"
	"github.com/whiteroom/multisong/wavinfo"
)

func TestParseSongArg(t *testing.T) {
	tests := []struct {
		arg      string
		name     string
		duration float64
		tempo    float64
		wantErr  bool
	}{
		{"drums:120", "drums", 120, 0, false},
		{"bass:60:1.25", "bass", 60, 1.25, false},
		{"pad:30:0.8x", "pad", 30, 0.8, false},
		{"drums", "", 0, 0, true},
		{":10", "", 0, 0, true},
		{"drums:long", "", 0, 0, true},
		{"a:1:2:3", "", 0, 0, true},
		{"missing.wav", "", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			info, err := parseSongArg(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if info.Name != tt.name || info.DurationSeconds != tt.duration || info.Tempo != tt.tempo {
				t.Errorf("got %+v", info)
			}
		})
	}
}

func TestRenderCommand(t *testing.T) {
	out := new(bytes.Buffer)
	r := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: out})
	app := &cli.Command{Name: "multisong", Commands: r.register()}
	path := filepath.Join(t.TempDir(), "mix.wav")
	err := app.Run(context.Background(), []string{"multisong", "render", "-o", path, "--seconds", "0.5", "--sync-mode", "ratio", "--master", "1.5", "drums:2", "bass:4:0.8"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	info, err := wavinfo.ProbeFile(path)
	if err != nil {
		t.Fatalf("ProbeFile: %v", err)
	}
	if math.Abs(info.DurationSeconds-0.5) > 1e-3 {
		t.Errorf("rendered %v seconds, want 0.5", info.DurationSeconds)
	}

	app = &cli.Command{Name: "multisong", Commands: r.register()}
	err = app.Run(context.Background(), []string{"multisong", "render", "-o", path, "--seconds", "0"})
	if !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected invalid argument for zero length, got %v", err)
	}
}
