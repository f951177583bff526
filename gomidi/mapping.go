package gomidi

import (
	"math"

	"github.com/whiteroom/multisong"
	"gitlab.com/gomidi/midi/v2"
)

type (
	// Commander is the part of transport.Controller that a MIDI control
	// surface drives.
	Commander interface {
		State() multisong.MultiSongState
		PlayAll()
		PauseAll()
		StopAll()
		EmergencyStop()
		DragMasterTempo(value float64)
		SetMasterVolume(value float64)
		DragTempo(id string, value float64)
		SetVolume(id string, value float64) bool
		ToggleMute(id string) bool
		ToggleSolo(id string) bool
	}

	// Mapping assigns controllers and notes to commands. Channel is 1-16, or
	// 0 to accept every channel. Per-song controls use consecutive numbers:
	// song slot i is controlled by SongVolumeCC+i and so on. A negative
	// number disables the control.
	Mapping struct {
		Channel        int
		MasterTempoCC  int
		MasterVolumeCC int
		SongVolumeCC   int
		SongTempoCC    int
		SongMuteNote   int
		SongSoloNote   int
		PlayNote       int
		PauseNote      int
		StopNote       int
		PanicNote      int
	}

	// Mapper turns MIDI messages into commands.
	Mapper struct {
		mapping Mapping
		target  Commander
	}
)

func NewMapper(mapping Mapping, target Commander) *Mapper {
	return &Mapper{mapping: mapping, target: target}
}

// Handle executes the command mapped to msg. It reports whether msg was
// mapped to anything.
func (m *Mapper) Handle(msg midi.Message) bool {
	var channel, controller, value, key, velocity uint8
	switch {
	case msg.GetControlChange(&channel, &controller, &value):
		if !m.acceptChannel(channel) {
			return false
		}
		return m.controlChange(int(controller), value)
	case msg.GetNoteOn(&channel, &key, &velocity):
		if velocity == 0 || !m.acceptChannel(channel) {
			return false
		}
		return m.note(int(key))
	}
	return false
}

func (m *Mapper) acceptChannel(channel uint8) bool {
	return m.mapping.Channel == 0 || int(channel)+1 == m.mapping.Channel
}

func (m *Mapper) controlChange(controller int, value uint8) bool {
	switch {
	case controller == m.mapping.MasterTempoCC:
		m.target.DragMasterTempo(TempoFromCC(value))
		return true
	case controller == m.mapping.MasterVolumeCC:
		m.target.SetMasterVolume(VolumeFromCC(value))
		return true
	}
	if id, ok := m.song(controller, m.mapping.SongVolumeCC); ok {
		return m.target.SetVolume(id, VolumeFromCC(value))
	}
	if id, ok := m.song(controller, m.mapping.SongTempoCC); ok {
		m.target.DragTempo(id, TempoFromCC(value))
		return true
	}
	return false
}

func (m *Mapper) note(key int) bool {
	switch key {
	case m.mapping.PlayNote:
		m.target.PlayAll()
		return true
	case m.mapping.PauseNote:
		m.target.PauseAll()
		return true
	case m.mapping.StopNote:
		m.target.StopAll()
		return true
	case m.mapping.PanicNote:
		m.target.EmergencyStop()
		return true
	}
	if id, ok := m.song(key, m.mapping.SongMuteNote); ok {
		return m.target.ToggleMute(id)
	}
	if id, ok := m.song(key, m.mapping.SongSoloNote); ok {
		return m.target.ToggleSolo(id)
	}
	return false
}

// song returns the id of the song in slot number-base, if number falls in
// the range of base and that slot is loaded.
func (m *Mapper) song(number, base int) (string, bool) {
	if base < 0 {
		return "", false
	}
	slot := number - base
	if slot < 0 || slot >= multisong.MaxSongs {
		return "", false
	}
	st := m.target.State()
	if slot >= len(st.Songs) {
		return "", false
	}
	return st.Songs[slot].ID, true
}

// TempoFromCC maps a controller value to a tempo multiplier: 0 is the minimum
// tempo, 64 is unity and 127 the maximum, exponentially in between.
func TempoFromCC(value uint8) float64 {
	v := float64(min(value, 127))
	if v <= 64 {
		return multisong.MinTempo * math.Pow(multisong.DefaultTempo/multisong.MinTempo, v/64)
	}
	return multisong.DefaultTempo * math.Pow(multisong.MaxTempo/multisong.DefaultTempo, (v-64)/63)
}

func VolumeFromCC(value uint8) float64 {
	return float64(min(value, 127)) / 127
}
