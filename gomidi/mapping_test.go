package gomidi_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/whiteroom/multisong"
	"github.com/whiteroom/multisong/gomidi"
	"github.com/whiteroom/multisong/transport"
	"gitlab.com/gomidi/midi/v2"
)

var mapping = gomidi.Mapping{
	Channel:        1,
	MasterTempoCC:  1,
	MasterVolumeCC: 7,
	SongVolumeCC:   20,
	SongTempoCC:    30,
	SongMuteNote:   36,
	SongSoloNote:   48,
	PlayNote:       60,
	PauseNote:      61,
	StopNote:       62,
	PanicNote:      63,
}

func newTarget(t *testing.T, songs int) (*transport.Controller, []string) {
	t.Helper()
	n := 0
	c := transport.NewController(transport.Options{NewID: func() string { n++; return fmt.Sprint("s", n) }})
	t.Cleanup(c.Close)
	var ids []string
	for range songs {
		id, err := c.AddSong(multisong.SongInfo{Name: "x", DurationSeconds: 10})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	return c, ids
}

func TestTempoFromCC(t *testing.T) {
	tests := []struct {
		value uint8
		want  float64
	}{
		{0, 0.5},
		{64, 1},
		{127, 2},
		{32, 0.5 * math.Sqrt2},
	}
	for _, tt := range tests {
		if got := gomidi.TempoFromCC(tt.value); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("TempoFromCC(%d) = %v, want %v", tt.value, got, tt.want)
		}
	}
	for v := range 128 {
		got := gomidi.TempoFromCC(uint8(v))
		if got < multisong.MinTempo || got > multisong.MaxTempo {
			t.Errorf("TempoFromCC(%d) = %v out of range", v, got)
		}
	}
}

func TestMapperTransport(t *testing.T) {
	c, _ := newTarget(t, 2)
	m := gomidi.NewMapper(mapping, c)
	if !m.Handle(midi.NoteOn(0, 60, 100)) {
		t.Fatal("play note not handled")
	}
	if !c.State().MasterPlaying {
		t.Error("play note should start playback")
	}
	m.Handle(midi.NoteOn(0, 63, 100))
	st := c.State()
	if st.MasterPlaying || st.Songs[0].IsPlaying {
		t.Error("panic note should stop everything")
	}
}

func TestMapperSongControls(t *testing.T) {
	c, ids := newTarget(t, 3)
	m := gomidi.NewMapper(mapping, c)
	m.Handle(midi.ControlChange(0, 21, 0))
	m.Handle(midi.NoteOn(0, 38, 90))
	m.Handle(midi.NoteOn(0, 48, 90))
	m.Handle(midi.ControlChange(0, 7, 127))
	s1, _ := c.Song(ids[1])
	s2, _ := c.Song(ids[2])
	s0, _ := c.Song(ids[0])
	if s1.Volume != 0 {
		t.Errorf("song 1 volume = %v, want 0", s1.Volume)
	}
	if !s2.IsMuted {
		t.Error("song 2 should be muted")
	}
	if !s0.IsSoloed {
		t.Error("song 0 should be soloed")
	}
	if c.State().MasterVolume != 1 {
		t.Errorf("master volume = %v, want 1", c.State().MasterVolume)
	}
	m.Handle(midi.ControlChange(0, 1, 127))
	c.Flush()
	if got := c.State().MasterTempoMultiplier; got != 2 {
		t.Errorf("master tempo = %v, want 2", got)
	}
}

func TestMapperIgnores(t *testing.T) {
	c, _ := newTarget(t, 1)
	m := gomidi.NewMapper(mapping, c)
	tests := []struct {
		name string
		msg  midi.Message
	}{
		{"other channel", midi.NoteOn(5, 60, 100)},
		{"note on with zero velocity", midi.NoteOn(0, 60, 0)},
		{"note off", midi.NoteOff(0, 60)},
		{"unmapped controller", midi.ControlChange(0, 99, 10)},
		{"empty slot", midi.NoteOn(0, 40, 100)},
		{"beyond the slots", midi.NoteOn(0, 36+multisong.MaxSongs, 100)},
	}
	for _, tt := range tests {
		if m.Handle(tt.msg) {
			t.Errorf("%s: message should not be handled", tt.name)
		}
	}
	if c.State().MasterPlaying {
		t.Error("ignored messages changed the state")
	}
}

func TestMapperOmni(t *testing.T) {
	c, _ := newTarget(t, 1)
	omni := mapping
	omni.Channel = 0
	m := gomidi.NewMapper(omni, c)
	if !m.Handle(midi.NoteOn(9, 60, 100)) {
		t.Error("omni mapping should accept every channel")
	}
}
