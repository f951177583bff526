package transport

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/whiteroom/multisong"
)

type (
	// Controller is the single entry point for every state-changing command.
	// Commands may be issued from any goroutine; they are serialized by a mutex
	// and every committed change is published as an immutable Snapshot that the
	// audio thread reads without locking.
	//
	// Position is owned by the Clock while songs are playing. The controller
	// merges the positions reported by the clock into its own state, but only
	// positions computed after the latest seek of a song (stop, emergency stop,
	// Seek, preset restore) are accepted.
	Controller struct {
		mu       sync.Mutex
		state    multisong.MultiSongState
		seeks    map[string]uint64
		seekSeq  uint64
		gen      uint64
		snapshot atomic.Pointer[Snapshot]

		broker *Broker
		logger *log.Logger
		drags  *debouncer
		stats  sampler

		newID func() string
		now   func() time.Time
	}

	// Snapshot is a fully formed, immutable copy of the state handed to the
	// audio thread. Seeks[i] is the seek generation of State.Songs[i]; when it
	// differs from what the clock last saw, the clock takes the position from
	// the snapshot instead of its own.
	Snapshot struct {
		Generation uint64
		State      multisong.MultiSongState
		Seeks      [multisong.MaxSongs]uint64
	}

	Options struct {
		Broker *Broker
		Logger *log.Logger
		// Debounce is the minimum interval between commits of drag-style
		// commands. Zero commits every drag immediately.
		Debounce time.Duration
		// Initial is the starting state. nil, or a state that does not
		// validate, means multisong.NewMultiSongState().
		Initial *multisong.MultiSongState
		// OutputLatency is added to the block latency in the statistics.
		OutputLatency time.Duration

		NewID func() string
		Now   func() time.Time
	}
)

func NewController(opts Options) *Controller {
	c := &Controller{
		broker: opts.Broker,
		logger: opts.Logger,
		newID:  opts.NewID,
		now:    opts.Now,
		seeks:  make(map[string]uint64),
	}
	if c.broker == nil {
		c.broker = NewBroker()
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	if c.newID == nil {
		c.newID = func() string { return uuid.New().String() }
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.state = multisong.NewMultiSongState()
	if opts.Initial != nil {
		initial := opts.Initial.Copy()
		if err := initial.Validate(); err != nil {
			c.logger.Error("initial state rejected, starting empty", "err", err)
		} else {
			c.state = initial
		}
	}
	c.drags = newDebouncer(opts.Debounce, c.Flush)
	c.stats.outputLatency = opts.OutputLatency
	c.mu.Lock()
	c.reseekAllLocked()
	c.commitLocked(ChangeNone, "")
	c.mu.Unlock()
	return c
}

// Broker returns the broker the controller and its clock communicate with.
func (c *Controller) Broker() *Broker { return c.broker }

// Snapshot returns the latest committed snapshot. It never blocks and is safe
// to call from the audio thread.
func (c *Controller) Snapshot() *Snapshot { return c.snapshot.Load() }

// Changes returns the channel on which change notifications are delivered.
// Delivery is lossy; a slow observer should re-read State after receiving.
func (c *Controller) Changes() <-chan Change { return c.broker.ToObservers }

// State returns a deep copy of the current state, including the latest
// positions reported by the clock.
func (c *Controller) State() multisong.MultiSongState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainLocked()
	return c.state.Copy()
}

// Song returns a copy of the song with the given id.
func (c *Controller) Song(id string) (multisong.SongPlayer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainLocked()
	if s := c.state.Song(id); s != nil {
		return *s, true
	}
	return multisong.SongPlayer{}, false
}

// Close stops the pending drag timer. It does not stop a running clock; use
// the broker's CloseClock for that.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drags.reset()
}

// AddSong loads a song into the next free slot and returns its id.
func (c *Controller) AddSong(info multisong.SongInfo) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	flushed := c.beginLocked()
	id := c.newID()
	if err := c.state.AddSong(id, info); err != nil {
		if flushed {
			c.commitLocked(ChangeMaster, "")
		}
		c.logger.Warn("could not add song", "name", info.Name, "err", err)
		return "", err
	}
	c.seeks[id] = c.nextSeekLocked()
	c.commitLocked(ChangeSongAdded, id)
	c.logger.Info("song added", "id", id, "name", info.Name, "duration", info.DurationSeconds)
	return id, nil
}

func (c *Controller) RemoveSong(id string) bool {
	return c.do(ChangeSongRemoved, id, func() bool {
		if !c.state.RemoveSong(id) {
			return false
		}
		delete(c.seeks, id)
		c.logger.Info("song removed", "id", id)
		return true
	})
}

func (c *Controller) ClearSongs() {
	c.do(ChangeSongRemoved, "", func() bool {
		c.state.ClearSongs()
		clear(c.seeks)
		return true
	})
}

func (c *Controller) PlayAll() {
	c.do(ChangeTransport, "", func() bool { c.state.PlayAll(); return true })
}

func (c *Controller) PauseAll() {
	c.do(ChangeTransport, "", func() bool { c.state.PauseAll(); return true })
}

func (c *Controller) StopAll() {
	c.do(ChangeTransport, "", func() bool {
		c.state.StopAll()
		c.reseekAllLocked()
		return true
	})
}

func (c *Controller) TogglePlayAll() {
	c.do(ChangeTransport, "", func() bool { c.state.TogglePlayAll(); return true })
}

// EmergencyStop halts and rewinds every song immediately. Pending drag
// commands are discarded, not applied.
func (c *Controller) EmergencyStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drags.reset()
	c.drainLocked()
	c.state.StopAll()
	c.reseekAllLocked()
	c.commitLocked(ChangeEmergencyStop, "")
	c.logger.Warn("emergency stop")
}

func (c *Controller) SetSyncMode(mode multisong.SyncMode) {
	c.do(ChangeSyncMode, "", func() bool {
		if !mode.Valid() {
			c.logger.Warn("ignoring invalid sync mode", "mode", int(mode))
			return false
		}
		c.state.SetSyncMode(mode)
		return true
	})
}

func (c *Controller) SetMasterTempo(value float64) {
	c.do(ChangeMaster, "", func() bool { c.state.SetMasterTempo(value); return true })
}

func (c *Controller) SetMasterVolume(value float64) {
	c.do(ChangeMaster, "", func() bool { c.state.SetMasterVolume(value); return true })
}

func (c *Controller) SetSoloPolicy(p multisong.SoloPolicy) {
	c.do(ChangeMaster, "", func() bool {
		if p != multisong.SoloAdditive && p != multisong.SoloExclusive {
			return false
		}
		c.state.SoloPolicy = p
		return true
	})
}

// SetTempo sets the tempo of one song. Outside Independent mode the sync mode
// is reapplied, so the master tempo still decides the effective tempo.
func (c *Controller) SetTempo(id string, value float64) bool {
	return c.do(ChangeSong, id, func() bool { return c.state.SetSongTempo(id, value) })
}

func (c *Controller) SetVolume(id string, value float64) bool {
	return c.doSong(id, func(s *multisong.SongPlayer) { s.SetVolume(value) })
}

func (c *Controller) SetLoopBounds(id string, start, end float64) bool {
	return c.doSong(id, func(s *multisong.SongPlayer) { s.SetLoopBounds(start, end) })
}

func (c *Controller) TogglePlaying(id string) bool {
	return c.doSong(id, (*multisong.SongPlayer).TogglePlaying)
}

func (c *Controller) SetPlaying(id string, playing bool) bool {
	return c.doSong(id, func(s *multisong.SongPlayer) { s.SetPlaying(playing) })
}

func (c *Controller) ToggleMute(id string) bool {
	return c.doSong(id, (*multisong.SongPlayer).ToggleMute)
}

func (c *Controller) ToggleSolo(id string) bool {
	return c.do(ChangeSong, id, func() bool { return c.state.ToggleSolo(id) })
}

// Seek moves a song to a normalized position, wrapped into [0, 1).
func (c *Controller) Seek(id string, position float64) bool {
	return c.do(ChangeSong, id, func() bool {
		s := c.state.Song(id)
		if s == nil {
			return false
		}
		s.Position = multisong.WrapPosition(position)
		c.seeks[id] = c.nextSeekLocked()
		return true
	})
}

// DragMasterTempo is SetMasterTempo for continuous controls. Bursts of calls
// are rate limited; the newest value replaces any pending one and is committed
// at the latest after the debounce interval, or earlier by Flush or by any
// other command.
func (c *Controller) DragMasterTempo(value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drags.setMaster(value)
	c.settleDragLocked()
}

// DragTempo is the debounced form of SetTempo.
func (c *Controller) DragTempo(id string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drags.setSong(id, value)
	c.settleDragLocked()
}

// Flush commits pending drag commands immediately.
func (c *Controller) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainLocked()
	if c.flushLocked() {
		c.commitLocked(ChangeMaster, "")
	}
}

// CapturePreset snapshots the current state into a new preset.
func (c *Controller) CapturePreset(name string) multisong.Preset {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.beginLocked() {
		c.commitLocked(ChangeMaster, "")
	}
	return multisong.Capture(c.newID(), name, c.now(), c.state)
}

// RestorePreset replaces the whole state with the preset's. If the preset
// does not validate, the error is returned and the current state is kept.
func (c *Controller) RestorePreset(p multisong.Preset) error {
	st, err := multisong.Restore(p)
	if err != nil {
		c.logger.Error("preset restore failed", "preset", p.Name(), "err", err)
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drags.reset()
	c.drainLocked()
	c.state = st
	clear(c.seeks)
	c.reseekAllLocked()
	c.commitLocked(ChangeRestore, "")
	c.logger.Info("preset restored", "preset", p.Name(), "songs", len(st.Songs))
	return nil
}

// Statistics returns the current engine statistics.
func (c *Controller) Statistics() multisong.EngineStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainLocked()
	return c.stats.statistics()
}

// MarkFrame is called by the presentation layer once per rendered frame to
// feed the UI frame rate statistic.
func (c *Controller) MarkFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.markFrame(c.now())
}

// SetOutputLatency tells the controller how much latency the audio output
// adds on top of one processing block.
func (c *Controller) SetOutputLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.outputLatency = d
}

func (c *Controller) do(kind ChangeKind, songID string, f func() bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	flushed := c.beginLocked()
	ok := f()
	if ok || flushed {
		c.commitLocked(kind, songID)
	}
	return ok
}

func (c *Controller) doSong(id string, f func(s *multisong.SongPlayer)) bool {
	return c.do(ChangeSong, id, func() bool {
		s := c.state.Song(id)
		if s == nil {
			return false
		}
		f(s)
		return true
	})
}

// beginLocked brings the state up to date before a command: positions from
// the clock are merged and pending drags are applied, so commands keep the
// order in which they were issued.
func (c *Controller) beginLocked() (flushed bool) {
	c.drainLocked()
	return c.flushLocked()
}

func (c *Controller) settleDragLocked() {
	if !c.drags.allow() {
		c.drags.arm()
		return
	}
	c.drainLocked()
	if c.flushLocked() {
		c.commitLocked(ChangeMaster, "")
	}
}

func (c *Controller) flushLocked() bool {
	master, songs, ok := c.drags.take()
	if !ok {
		return false
	}
	if master != nil {
		c.state.SetMasterTempo(*master)
	}
	for id, v := range songs {
		c.state.SetSongTempo(id, v)
	}
	return true
}

func (c *Controller) drainLocked() {
	for {
		select {
		case r := <-c.broker.ToController:
			c.applyReportLocked(&r)
		default:
			return
		}
	}
}

func (c *Controller) applyReportLocked(r *ClockReport) {
	for i := range min(r.NumSongs, len(r.Songs)) {
		sr := &r.Songs[i]
		s := c.state.Song(sr.ID)
		if s == nil || c.seeks[sr.ID] != sr.Seek {
			continue
		}
		s.Position = sr.Position
	}
	if c.stats.observeClock(r.CPULoad, r.BlockSeconds) {
		c.logger.Warn("audio processing overran the block", "load", r.CPULoad)
	}
}

func (c *Controller) nextSeekLocked() uint64 {
	c.seekSeq++
	return c.seekSeq
}

func (c *Controller) reseekAllLocked() {
	for _, s := range c.state.Songs {
		c.seeks[s.ID] = c.nextSeekLocked()
	}
}

func (c *Controller) commitLocked(kind ChangeKind, songID string) {
	c.gen++
	snap := &Snapshot{Generation: c.gen, State: c.state.Copy()}
	for i, s := range snap.State.Songs {
		if i >= len(snap.Seeks) {
			break
		}
		snap.Seeks[i] = c.seeks[s.ID]
	}
	c.snapshot.Store(snap)
	if kind != ChangeNone {
		TrySend(c.broker.ToObservers, Change{Kind: kind, SongID: songID, Generation: c.gen})
	}
}
