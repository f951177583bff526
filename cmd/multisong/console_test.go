package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/whiteroom/multisong"
	"github.com/whiteroom/multisong/internal/shared"
	"github.com/whiteroom/multisong/preset"
	"github.com/whiteroom/multisong/transport"
)

func newTestConsole(t *testing.T) (*console, *bytes.Buffer) {
	t.Helper()
	ctrl := transport.NewController(transport.Options{})
	t.Cleanup(ctrl.Close)
	out := new(bytes.Buffer)
	return newConsole(ctrl, preset.NewMemRepository(), out, log.New(io.Discard)), out
}

func run(t *testing.T, c *console, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if err := c.exec(context.Background(), line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}
}

func TestConsoleCommands(t *testing.T) {
	c, _ := newTestConsole(t)
	run(t, c,
		"add drums 120 1.5",
		"add bass 60",
		"# comment",
		"",
		"mode locked",
		"master 1.25x",
		"volume bass 0.5",
		"mute 1",
		"play",
	)
	st := c.ctrl.State()
	if len(st.Songs) != 2 {
		t.Fatalf("expected 2 songs, got %d", len(st.Songs))
	}
	if st.SyncMode != multisong.Locked {
		t.Errorf("expected locked sync mode, got %v", st.SyncMode)
	}
	for _, s := range st.Songs {
		if s.TempoMultiplier != 1.25 {
			t.Errorf("song %s: expected tempo 1.25, got %v", s.Name, s.TempoMultiplier)
		}
		if !s.IsPlaying {
			t.Errorf("song %s is not playing", s.Name)
		}
	}
	if st.Songs[1].Volume != 0.5 {
		t.Errorf("expected bass volume 0.5, got %v", st.Songs[1].Volume)
	}
	if !st.Songs[0].IsMuted || st.Songs[1].IsMuted {
		t.Errorf("expected only slot 1 muted")
	}
	run(t, c, "stop", "remove drums")
	st = c.ctrl.State()
	if len(st.Songs) != 1 || st.Songs[0].Name != "bass" || st.MasterPlaying {
		t.Errorf("unexpected state after stop and remove: %+v", st)
	}
}

func TestConsoleErrors(t *testing.T) {
	c, _ := newTestConsole(t)
	run(t, c, "add drums 120", "add drumloop 30")
	tests := []struct {
		line string
		want error
	}{
		{"frobnicate", shared.ErrInvalidArgument},
		{"tempo 1", shared.ErrMissingArgument},
		{"tempo 3 1.5", shared.ErrInvalidArgument},
		{"tempo drums fast", shared.ErrInvalidArgument},
		{"mode sideways", shared.ErrInvalidArgument},
		{"solo-policy loud", shared.ErrInvalidArgument},
		{"load nothing", preset.ErrNotFound},
		{"quit", errQuit},
		{"EXIT", errQuit},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			err := c.exec(context.Background(), tt.line)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestConsoleResolve(t *testing.T) {
	c, _ := newTestConsole(t)
	run(t, c, "add drums 120", "add Bass 60")
	st := c.ctrl.State()
	tests := []struct{ ref, want string }{
		{"1", st.Songs[0].ID},
		{"2", st.Songs[1].ID},
		{"bass", st.Songs[1].ID},
		{st.Songs[0].ID, st.Songs[0].ID},
		{st.Songs[1].ID[:8], st.Songs[1].ID},
	}
	for _, tt := range tests {
		got, err := c.resolve(tt.ref)
		if err != nil {
			t.Errorf("resolve(%q): %v", tt.ref, err)
			continue
		}
		if got != tt.want {
			t.Errorf("resolve(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
	for _, ref := range []string{"0", "3", "guitar"} {
		if _, err := c.resolve(ref); err == nil {
			t.Errorf("resolve(%q) should fail", ref)
		}
	}
}

func TestConsolePresets(t *testing.T) {
	c, out := newTestConsole(t)
	run(t, c, "add drums 120", "add bass 60", "mode ratio", "save live set", "clear")
	if n := len(c.ctrl.State().Songs); n != 0 {
		t.Fatalf("expected no songs after clear, got %d", n)
	}
	run(t, c, "load LIVE SET")
	st := c.ctrl.State()
	if len(st.Songs) != 2 || st.SyncMode != multisong.Ratio {
		t.Fatalf("preset not restored: %+v", st)
	}
	out.Reset()
	run(t, c, "presets")
	if !strings.Contains(out.String(), "live set") {
		t.Errorf("preset listing does not mention the preset:\n%s", out.String())
	}
	run(t, c, "delete live set")
	if err := c.exec(context.Background(), "load live set"); !errors.Is(err, preset.ErrNotFound) {
		t.Errorf("expected deleted preset to be gone, got %v", err)
	}
}

func TestConsoleStatus(t *testing.T) {
	c, out := newTestConsole(t)
	run(t, c, "add drums 120", "loop drums 0.25 0.75", "seek drums 0.5", "status", "stats", "help")
	s := out.String()
	for _, want := range []string{"drums", "50%", "25%-75%", "latency", "solo-policy"} {
		if !strings.Contains(s, want) {
			t.Errorf("output does not contain %q", want)
		}
	}
}
