package transport

import (
	"context"
	"time"

	"github.com/whiteroom/multisong"
)

type (
	// Clock is the audio-thread side of the engine. Once per block it reads
	// the latest Snapshot, advances the position of every playing song and
	// reports the positions back through the broker. Process never locks,
	// never blocks and never allocates, so it can be called from a real-time
	// audio callback.
	//
	// A Clock is not safe for concurrent use; call Process from one goroutine
	// only.
	Clock struct {
		source SnapshotSource
		broker *Broker

		blockSeconds  float64
		blockDuration time.Duration
		now           func() time.Time

		slots    [multisong.MaxSongs]clockSlot
		voices   [multisong.MaxSongs]Voice
		numSlots int
		gen      uint64
		cpuLoad  float64
	}

	ClockConfig struct {
		SampleRate  int
		BlockFrames int
	}

	// SnapshotSource gives the clock the latest committed state. *Controller
	// implements it.
	SnapshotSource interface {
		Snapshot() *Snapshot
	}

	// Voice is the view of one song for the block that was just processed,
	// used by renderers. Gain is zero for songs that are not audible.
	Voice struct {
		ID       string
		Position float64
		Tempo    float64
		Gain     float32
	}

	clockSlot struct {
		id       string
		position float64
		seek     uint64
	}
)

const (
	DefaultSampleRate  = 44100
	DefaultBlockFrames = 512

	cpuSmoothing = 0.1
)

func NewClock(source SnapshotSource, broker *Broker, cfg ClockConfig) *Clock {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.BlockFrames <= 0 {
		cfg.BlockFrames = DefaultBlockFrames
	}
	blockSeconds := float64(cfg.BlockFrames) / float64(cfg.SampleRate)
	return &Clock{
		source:        source,
		broker:        broker,
		blockSeconds:  blockSeconds,
		blockDuration: time.Duration(blockSeconds * float64(time.Second)),
		now:           time.Now,
	}
}

// BlockDuration is the wall-clock duration of one block.
func (c *Clock) BlockDuration() time.Duration { return c.blockDuration }

// Voices returns the songs as of the last processed block. The returned slice
// is only valid until the next call to Process.
func (c *Clock) Voices() []Voice { return c.voices[:c.numSlots] }

// Process advances one block. A playing song with duration d and tempo t moves
// by blockSeconds / d * t of its length; songs with unknown duration stay put.
func (c *Clock) Process() {
	start := c.now()
	snap := c.source.Snapshot()
	var next [multisong.MaxSongs]clockSlot
	n := 0
	if snap != nil {
		anySoloed := snap.State.AnySoloed()
		for i := range snap.State.Songs {
			if n >= len(next) {
				break
			}
			song := snap.State.Songs[i]
			slot, ok := c.lookup(song.ID)
			if !ok || slot.seek != snap.Seeks[i] {
				slot = clockSlot{id: song.ID, position: song.Position, seek: snap.Seeks[i]}
			}
			song.Position = slot.position
			if song.IsPlaying && song.DurationSeconds > 0 {
				song.AdvancePosition(c.blockSeconds / song.DurationSeconds * song.TempoMultiplier)
				slot.position = song.Position
			}
			next[n] = slot
			c.voices[n] = Voice{
				ID:       song.ID,
				Position: slot.position,
				Tempo:    song.TempoMultiplier,
			}
			if song.Audible(anySoloed) {
				c.voices[n].Gain = float32(song.Volume * snap.State.MasterVolume)
			}
			n++
		}
		c.gen = snap.Generation
	}
	c.slots, c.numSlots = next, n
	if c.blockDuration > 0 {
		load := float64(c.now().Sub(start)) / float64(c.blockDuration)
		c.cpuLoad += cpuSmoothing * (load - c.cpuLoad)
	}
	c.report()
}

// Run processes blocks at the block rate until ctx is done or a value is
// received from the broker's CloseClock. It is meant for running without an
// audio device; with a device, the output calls Process from its callback.
// FinishedClock is closed when Run returns.
func (c *Clock) Run(ctx context.Context) {
	defer close(c.broker.FinishedClock)
	ticker := time.NewTicker(c.blockDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.broker.CloseClock:
			return
		case <-ticker.C:
			c.Process()
		}
	}
}

func (c *Clock) lookup(id string) (clockSlot, bool) {
	for _, s := range c.slots[:c.numSlots] {
		if s.id == id {
			return s, true
		}
	}
	return clockSlot{}, false
}

func (c *Clock) report() {
	r := ClockReport{
		Generation:   c.gen,
		NumSongs:     c.numSlots,
		CPULoad:      c.cpuLoad,
		BlockSeconds: c.blockSeconds,
	}
	for i, s := range c.slots[:c.numSlots] {
		r.Songs[i] = SongReport{ID: s.id, Position: s.position, Seek: s.seek}
	}
	TrySendLatest(c.broker.ToController, r)
}
