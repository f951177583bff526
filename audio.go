package multisong

type (
	// AudioBuffer is a buffer of stereo samples.
	AudioBuffer [][2]float32

	// AudioProcessor fills the given buffer. It is called on the real-time
	// audio thread, so it must not block or allocate.
	AudioProcessor func(buf AudioBuffer) error

	// AudioContext is an audio device that repeatedly calls an AudioProcessor
	// to get more audio.
	AudioContext interface {
		Play(p AudioProcessor) CloserWaiter
		Close() error
	}

	CloserWaiter interface {
		Close() error
		Wait()
	}
)

// Clear zeroes the buffer.
func (b AudioBuffer) Clear() {
	clear(b)
}
