//go:build cgo

package cmd

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/whiteroom/multisong/gomidi"
	"github.com/whiteroom/multisong/internal/shared"
	"gitlab.com/gomidi/midi/v2"
)

// OpenMIDI connects the configured MIDI input to target. With no input
// configured it returns a nil closer and no error.
func OpenMIDI(cfg shared.MIDIConfig, target gomidi.Commander, logger *log.Logger) (io.Closer, error) {
	if cfg.Input == "" {
		return nil, nil
	}
	mapper := gomidi.NewMapper(MIDIMapping(cfg), target)
	in, err := gomidi.Open(cfg.Input, func(msg midi.Message) {
		if !mapper.Handle(msg) {
			logger.Debug("unmapped MIDI message", "msg", msg.String())
		}
	})
	if err != nil {
		return nil, err
	}
	logger.Info("MIDI input connected", "port", in.String())
	return in, nil
}

func MIDIPorts() ([]string, error) {
	return gomidi.Ports()
}
