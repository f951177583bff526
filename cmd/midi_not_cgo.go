//go:build !cgo

package cmd

import (
	"errors"
	"io"

	"github.com/charmbracelet/log"
	"github.com/whiteroom/multisong/gomidi"
	"github.com/whiteroom/multisong/internal/shared"
)

var errNoMIDI = errors.New("MIDI input is not available in builds without cgo")

func OpenMIDI(cfg shared.MIDIConfig, target gomidi.Commander, logger *log.Logger) (io.Closer, error) {
	if cfg.Input == "" {
		return nil, nil
	}
	return nil, errNoMIDI
}

func MIDIPorts() ([]string, error) {
	return nil, errNoMIDI
}
