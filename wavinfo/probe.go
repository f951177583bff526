// Package wavinfo reads the metadata of WAV files needed to load a song: its
// duration and format.
package wavinfo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/whiteroom/multisong"
)

var ErrNotWAV = errors.New("not a valid WAV file")

// Info describes a WAV file.
type Info struct {
	DurationSeconds float64
	SampleRate      int
	Channels        int
	BitDepth        int
}

// Probe reads the WAV header from r and computes the duration from the size of
// the data chunk. The audio data itself is not decoded.
func Probe(r io.ReadSeeker) (Info, error) {
	if !wav.NewDecoder(r).IsValidFile() {
		return Info{}, ErrNotWAV
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Info{}, fmt.Errorf("rewinding WAV file: %w", err)
	}
	dec := wav.NewDecoder(r)
	if err := dec.FwdToPCM(); err != nil {
		return Info{}, fmt.Errorf("reading WAV header: %w", err)
	}
	bytesPerSecond := int(dec.SampleRate) * int(dec.NumChans) * int(dec.BitDepth) / 8
	if bytesPerSecond <= 0 {
		return Info{}, ErrNotWAV
	}
	return Info{
		DurationSeconds: float64(dec.PCMSize) / float64(bytesPerSecond),
		SampleRate:      int(dec.SampleRate),
		Channels:        int(dec.NumChans),
		BitDepth:        int(dec.BitDepth),
	}, nil
}

// ProbeFile probes the file at path.
func ProbeFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	info, err := Probe(f)
	if err != nil {
		return Info{}, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

// SongInfo builds the SongInfo of a WAV file, named after the file.
func SongInfo(path string) (multisong.SongInfo, error) {
	info, err := ProbeFile(path)
	if err != nil {
		return multisong.SongInfo{}, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return multisong.SongInfo{Name: name, DurationSeconds: info.DurationSeconds}, nil
}
