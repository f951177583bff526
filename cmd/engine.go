// Package cmd holds the wiring shared by the command line programs: starting
// the engine from a configuration and opening the preset store.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/whiteroom/multisong"
	"github.com/whiteroom/multisong/gomidi"
	"github.com/whiteroom/multisong/internal/shared"
	"github.com/whiteroom/multisong/oto"
	"github.com/whiteroom/multisong/transport"
)

// Engine is a running controller together with the clock that drives it.
// With audio enabled the clock runs inside the audio callback; otherwise it
// runs on its own goroutine at the block rate.
type Engine struct {
	Controller *transport.Controller
	Clock      *transport.Clock
	Mixer      *oto.ToneMixer // nil when running without audio

	logger *log.Logger
	audio  *oto.Context
	output multisong.CloserWaiter
	midi   io.Closer
	cancel context.CancelFunc
}

// StartEngine builds the engine described by cfg. A failure to open the
// audio device or the MIDI input is logged and the engine keeps running
// without it.
func StartEngine(ctx context.Context, cfg *shared.Config, logger *log.Logger) (*Engine, error) {
	initial, err := cfg.InitialState()
	if err != nil {
		return nil, err
	}
	broker := transport.NewBroker()
	ctrl := transport.NewController(transport.Options{
		Broker:   broker,
		Logger:   shared.WithLogger(logger, "component", "controller"),
		Debounce: time.Duration(cfg.Engine.DebounceMS) * time.Millisecond,
		Initial:  &initial,
		NewID:    shared.GenerateID,
	})
	clock := transport.NewClock(ctrl, broker, transport.ClockConfig{
		SampleRate:  cfg.Engine.SampleRate,
		BlockFrames: cfg.Engine.BlockFrames,
	})
	e := &Engine{Controller: ctrl, Clock: clock, logger: logger}

	if cfg.Audio.Enabled {
		if err := e.startAudio(cfg); err != nil {
			logger.Warn("audio output unavailable, running headless", "error", err)
		}
	}
	if e.output == nil {
		runCtx, cancel := context.WithCancel(ctx)
		e.cancel = cancel
		go clock.Run(runCtx)
		logger.Info("clock running headless", "block", clock.BlockDuration())
	}

	midiIn, err := OpenMIDI(cfg.MIDI, ctrl, logger)
	if err != nil {
		logger.Warn("MIDI input unavailable", "input", cfg.MIDI.Input, "error", err)
	}
	e.midi = midiIn
	return e, nil
}

func (e *Engine) startAudio(cfg *shared.Config) error {
	audio, err := oto.NewContext(cfg.Engine.SampleRate, time.Duration(cfg.Audio.BufferMS)*time.Millisecond)
	if err != nil {
		return err
	}
	e.audio = audio
	e.Mixer = oto.NewToneMixer(e.Clock, cfg.Engine.SampleRate, cfg.Engine.BlockFrames, cfg.Audio.Tone)
	e.Controller.SetOutputLatency(audio.Latency())
	e.output = audio.Play(e.Mixer.Process)
	e.logger.Info("audio output started", "sample_rate", cfg.Engine.SampleRate, "latency", audio.Latency())
	return nil
}

// Headless reports whether the clock runs without an audio device.
func (e *Engine) Headless() bool { return e.output == nil }

// Close stops the MIDI input, the clock and the audio output, in that order,
// and flushes pending drags.
func (e *Engine) Close() error {
	var errs []error
	if e.midi != nil {
		errs = append(errs, e.midi.Close())
	}
	if e.cancel != nil {
		broker := e.Controller.Broker()
		transport.TrySend(broker.CloseClock, struct{}{})
		select {
		case <-broker.FinishedClock:
		case <-time.After(3 * time.Second):
			errs = append(errs, errors.New("clock did not stop in time"))
		}
		e.cancel()
	}
	if e.output != nil {
		errs = append(errs, e.output.Close())
		errs = append(errs, e.audio.Close())
	}
	e.Controller.Flush()
	e.Controller.Close()
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing engine: %w", err)
	}
	return nil
}

// MIDIMapping converts the [midi] config section.
func MIDIMapping(cfg shared.MIDIConfig) gomidi.Mapping {
	return gomidi.Mapping{
		Channel:        cfg.Channel,
		MasterTempoCC:  cfg.MasterTempoCC,
		MasterVolumeCC: cfg.MasterVolumeCC,
		SongVolumeCC:   cfg.SongVolumeCC,
		SongTempoCC:    cfg.SongTempoCC,
		SongMuteNote:   cfg.SongMuteNote,
		SongSoloNote:   cfg.SongSoloNote,
		PlayNote:       cfg.PlayNote,
		PauseNote:      cfg.PauseNote,
		StopNote:       cfg.StopNote,
		PanicNote:      cfg.PanicNote,
	}
}
