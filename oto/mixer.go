package oto

import (
	"math"
	"sync/atomic"

	"github.com/viterin/vek/vek32"
	"github.com/whiteroom/multisong"
	"github.com/whiteroom/multisong/transport"
)

// ToneMixer is the AudioProcessor of the engine. It calls Clock.Process once
// every block, whatever the buffer size the device asks for, and renders a
// preview mix in which every audible song is a sine tone. The pitch of a tone
// follows the tempo of its song, so that tempo changes and sync modes can be
// heard without loading real audio.
type ToneMixer struct {
	clock       *transport.Clock
	blockFrames int
	sampleRate  float64
	tone        bool

	frame  int
	phases [multisong.MaxSongs]float64
	mix    []float32
	voice  []float32
	peak   atomic.Uint32
}

const (
	toneBase = 220.0
	toneGain = 0.2
)

func NewToneMixer(clock *transport.Clock, sampleRate, blockFrames int, tone bool) *ToneMixer {
	if blockFrames <= 0 {
		blockFrames = transport.DefaultBlockFrames
	}
	return &ToneMixer{
		clock:       clock,
		blockFrames: blockFrames,
		sampleRate:  float64(sampleRate),
		tone:        tone,
		mix:         make([]float32, blockFrames),
		voice:       make([]float32, blockFrames),
	}
}

// Process implements multisong.AudioProcessor.
func (m *ToneMixer) Process(buf multisong.AudioBuffer) error {
	for len(buf) > 0 {
		if m.frame == 0 {
			m.clock.Process()
		}
		n := min(len(buf), m.blockFrames-m.frame)
		m.render(buf[:n])
		buf = buf[n:]
		m.frame = (m.frame + n) % m.blockFrames
	}
	return nil
}

// Peak is the absolute peak of the last rendered chunk. It is safe to call
// from any goroutine.
func (m *ToneMixer) Peak() float32 { return math.Float32frombits(m.peak.Load()) }

func (m *ToneMixer) render(buf multisong.AudioBuffer) {
	if !m.tone {
		buf.Clear()
		m.peak.Store(0)
		return
	}
	mix := m.mix[:len(buf)]
	clear(mix)
	for i, v := range m.clock.Voices() {
		freq := toneBase * math.Pow(2, float64(i)*4/12) * v.Tempo
		step := 2 * math.Pi * freq / m.sampleRate
		if v.Gain == 0 {
			m.phases[i] = math.Mod(m.phases[i]+step*float64(len(buf)), 2*math.Pi)
			continue
		}
		voice := m.voice[:len(buf)]
		phase := m.phases[i]
		for j := range voice {
			voice[j] = float32(math.Sin(phase))
			phase += step
		}
		m.phases[i] = math.Mod(phase, 2*math.Pi)
		vek32.MulNumber_Inplace(voice, v.Gain*toneGain)
		vek32.Add_Inplace(mix, voice)
	}
	for j, s := range mix {
		buf[j] = [2]float32{s, s}
	}
	voice := m.voice[:len(buf)]
	copy(voice, mix)
	vek32.Abs_Inplace(voice)
	m.peak.Store(math.Float32bits(vek32.Max(voice)))
}
