package oto

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/whiteroom/multisong"
)

// Context is the audio device. oto allows only one context per process.
type Context struct {
	ctx        *oto.Context
	sampleRate int
	bufferSize time.Duration
}

// Output is a running player that pulls audio from an AudioProcessor.
type Output struct {
	player *oto.Player
	reader *processReader
	once   sync.Once
	done   chan struct{}
}

const DefaultBufferSize = 40 * time.Millisecond

// NewContext opens the audio device with stereo float32 output and waits
// until it is ready.
func NewContext(sampleRate int, bufferSize time.Duration) (*Context, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	context, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{ctx: context, sampleRate: sampleRate, bufferSize: bufferSize}, nil
}

// Latency is the output buffer latency requested from the device.
func (c *Context) Latency() time.Duration { return c.bufferSize }

// Play starts pulling audio from p. The processor is called from the audio
// goroutine of oto; when it returns an error, playback stops.
func (c *Context) Play(p multisong.AudioProcessor) multisong.CloserWaiter {
	o := &Output{reader: &processReader{process: p}, done: make(chan struct{})}
	o.player = c.ctx.NewPlayer(o.reader)
	o.player.Play()
	return o
}

// Close suspends the device. oto contexts cannot be reopened, so the context
// is kept for the lifetime of the process.
func (c *Context) Close() error {
	if err := c.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

// Close stops the player.
func (o *Output) Close() error {
	var err error
	o.once.Do(func() {
		err = o.player.Close()
		close(o.done)
	})
	if err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

// Wait blocks until Close has been called.
func (o *Output) Wait() { <-o.done }

// Err returns the error that stopped the processor, if any.
func (o *Output) Err() error { return o.reader.error() }

type processReader struct {
	process multisong.AudioProcessor
	buffer  multisong.AudioBuffer

	mu  sync.Mutex
	err error
}

const bytesPerFrame = 8

func (r *processReader) Read(b []byte) (int, error) {
	frames := len(b) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	if cap(r.buffer) < frames {
		r.buffer = make(multisong.AudioBuffer, frames)
	}
	buf := r.buffer[:frames]
	if err := r.process(buf); err != nil {
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
		return 0, io.EOF
	}
	return FloatBufferToFloat32LE(b, buf), nil
}

func (r *processReader) error() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
