package wavinfo

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/whiteroom/multisong"
)

// WriteWAV encodes a stereo buffer as a 16-bit PCM WAV file. Samples are
// clipped to [-1, 1]; NaNs are written as silence.
func WriteWAV(w io.WriteSeeker, buf multisong.AudioBuffer, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 2, 1)
	ib := &audio.IntBuffer{
		Data:           make([]int, 2*len(buf)),
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	for i, frame := range buf {
		ib.Data[2*i] = pcm16(frame[0])
		ib.Data[2*i+1] = pcm16(frame[1])
	}
	if err := enc.Write(ib); err != nil {
		return fmt.Errorf("encoding WAV failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finishing WAV failed: %w", err)
	}
	return nil
}

func pcm16(v float32) int {
	if v != v {
		return 0
	}
	return int(math.Round(float64(max(-1, min(1, v))) * math.MaxInt16))
}
