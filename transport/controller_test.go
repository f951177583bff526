package transport_test

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/whiteroom/multisong"
	"github.com/whiteroom/multisong/transport"
)

func newController(t *testing.T) *transport.Controller {
	t.Helper()
	n := 0
	c := transport.NewController(transport.Options{
		NewID: func() string { n++; return fmt.Sprintf("id%d", n) },
	})
	t.Cleanup(c.Close)
	return c
}

func addSongs(t *testing.T, c *transport.Controller, count int, duration float64) []string {
	t.Helper()
	ids := make([]string, count)
	for i := range ids {
		id, err := c.AddSong(multisong.SongInfo{Name: fmt.Sprintf("song %d", i), DurationSeconds: duration})
		if err != nil {
			t.Fatalf("AddSong %d: %v", i, err)
		}
		ids[i] = id
	}
	return ids
}

func TestAddSongCapacity(t *testing.T) {
	c := newController(t)
	addSongs(t, c, multisong.MaxSongs, 10)
	if _, err := c.AddSong(multisong.SongInfo{Name: "one too many"}); !errors.Is(err, multisong.ErrCapacityExceeded) {
		t.Fatalf("error = %v, want ErrCapacityExceeded", err)
	}
	if n := len(c.State().Songs); n != multisong.MaxSongs {
		t.Errorf("song count = %d, want %d", n, multisong.MaxSongs)
	}
}

func TestStopAndEmergencyStopRewind(t *testing.T) {
	c := newController(t)
	addSongs(t, c, multisong.MaxSongs, 1)
	clock := transport.NewClock(c, c.Broker(), transport.ClockConfig{SampleRate: 100, BlockFrames: 10})
	c.PlayAll()
	for range 3 {
		clock.Process()
	}
	for _, s := range c.State().Songs {
		if s.Position == 0 {
			t.Fatalf("song %s did not advance", s.ID)
		}
	}
	c.StopAll()
	c.EmergencyStop()
	st := c.State()
	if st.MasterPlaying {
		t.Error("master still playing after emergency stop")
	}
	for _, s := range st.Songs {
		if s.IsPlaying || s.Position != 0 {
			t.Errorf("song %s: playing=%v position=%v, want stopped at 0", s.ID, s.IsPlaying, s.Position)
		}
	}
}

func TestLockedModeScenario(t *testing.T) {
	c := newController(t)
	ids := addSongs(t, c, 3, 10)
	c.SetTempo(ids[0], 0.8)
	c.SetTempo(ids[1], 1.2)
	c.SetSyncMode(multisong.Locked)
	c.SetMasterTempo(1.5)
	for _, s := range c.State().Songs {
		if s.TempoMultiplier != 1.5 {
			t.Errorf("song %s tempo = %v, want 1.5", s.ID, s.TempoMultiplier)
		}
	}
}

func TestSyncModeAndMasterTempoInEitherOrder(t *testing.T) {
	a, b := newController(t), newController(t)
	for _, c := range []*transport.Controller{a, b} {
		ids := addSongs(t, c, 2, 10)
		c.SetTempo(ids[1], 0.6)
	}
	a.SetSyncMode(multisong.Locked)
	a.SetMasterTempo(1.3)
	b.SetMasterTempo(1.3)
	b.SetSyncMode(multisong.Locked)
	sa, sb := a.State(), b.State()
	for i := range sa.Songs {
		if sa.Songs[i].TempoMultiplier != 1.3 || sb.Songs[i].TempoMultiplier != 1.3 {
			t.Errorf("song %d tempos = %v, %v; want 1.3", i, sa.Songs[i].TempoMultiplier, sb.Songs[i].TempoMultiplier)
		}
	}
}

func TestRemoveWhilePlaying(t *testing.T) {
	c := newController(t)
	ids := addSongs(t, c, 3, 10)
	clock := transport.NewClock(c, c.Broker(), transport.ClockConfig{SampleRate: 100, BlockFrames: 10})
	c.PlayAll()
	clock.Process()
	if !c.RemoveSong(ids[1]) {
		t.Fatal("RemoveSong returned false")
	}
	clock.Process()
	st := c.State()
	if len(st.Songs) != 2 || st.Songs[0].ID != ids[0] || st.Songs[1].ID != ids[2] {
		t.Fatalf("unexpected songs after remove: %+v", st.Songs)
	}
	if !st.MasterPlaying {
		t.Error("master transport should keep running")
	}
	for _, s := range st.Songs {
		if !s.IsPlaying || math.Abs(s.Position-0.02) > 1e-9 {
			t.Errorf("song %s: playing=%v position=%v, want playing at 0.02", s.ID, s.IsPlaying, s.Position)
		}
	}
	if c.RemoveSong(ids[1]) {
		t.Error("removing an already removed song should return false")
	}
}

func TestUnknownSongIsNoOp(t *testing.T) {
	c := newController(t)
	addSongs(t, c, 1, 10)
	before := c.State()
	gen := c.Snapshot().Generation
	if c.SetVolume("nope", 0.5) || c.SetTempo("nope", 1.5) || c.ToggleMute("nope") ||
		c.ToggleSolo("nope") || c.Seek("nope", 0.5) || c.SetLoopBounds("nope", 0, 1) || c.TogglePlaying("nope") {
		t.Error("operations on an unknown song should return false")
	}
	if c.Snapshot().Generation != gen {
		t.Error("no-op commands should not publish a new snapshot")
	}
	after := c.State()
	if after.Songs[0] != before.Songs[0] {
		t.Errorf("state changed: %+v -> %+v", before.Songs[0], after.Songs[0])
	}
}

func TestClockAdvancesByTempo(t *testing.T) {
	c := newController(t)
	ids := addSongs(t, c, 2, 4)
	c.SetTempo(ids[1], 2)
	clock := transport.NewClock(c, c.Broker(), transport.ClockConfig{SampleRate: 2, BlockFrames: 1})
	c.TogglePlaying(ids[0])
	c.TogglePlaying(ids[1])
	clock.Process()
	clock.Process()
	a, _ := c.Song(ids[0])
	b, _ := c.Song(ids[1])
	if a.Position != 0.25 || b.Position != 0.5 {
		t.Errorf("positions = %v, %v; want 0.25, 0.5", a.Position, b.Position)
	}
	c.PauseAll()
	clock.Process()
	a, _ = c.Song(ids[0])
	if a.Position != 0.25 {
		t.Errorf("paused song moved to %v", a.Position)
	}
	c.PlayAll()
	clock.Process()
	a, _ = c.Song(ids[0])
	if a.Position != 0.375 {
		t.Errorf("resumed song at %v, want 0.375", a.Position)
	}
}

func TestUnknownDurationDoesNotAdvance(t *testing.T) {
	c := newController(t)
	ids := addSongs(t, c, 1, 0)
	clock := transport.NewClock(c, c.Broker(), transport.ClockConfig{SampleRate: 2, BlockFrames: 1})
	c.PlayAll()
	clock.Process()
	if s, _ := c.Song(ids[0]); s.Position != 0 {
		t.Errorf("song without duration moved to %v", s.Position)
	}
}

func TestSeek(t *testing.T) {
	c := newController(t)
	ids := addSongs(t, c, 1, 4)
	clock := transport.NewClock(c, c.Broker(), transport.ClockConfig{SampleRate: 2, BlockFrames: 1})
	c.PlayAll()
	clock.Process()
	c.Seek(ids[0], 1.5)
	if s, _ := c.Song(ids[0]); s.Position != 0.5 {
		t.Fatalf("position after seek = %v, want 0.5", s.Position)
	}
	clock.Process()
	if s, _ := c.Song(ids[0]); s.Position != 0.625 {
		t.Errorf("position after seek and one block = %v, want 0.625", s.Position)
	}
}

type fixedSource struct{ snap *transport.Snapshot }

func (f fixedSource) Snapshot() *transport.Snapshot { return f.snap }

func TestStaleClockReportIsIgnored(t *testing.T) {
	c := newController(t)
	ids := addSongs(t, c, 1, 4)
	c.PlayAll()
	stale := c.Snapshot()
	c.StopAll()
	// a block computed from the snapshot before the stop arrives late
	clock := transport.NewClock(fixedSource{stale}, c.Broker(), transport.ClockConfig{SampleRate: 2, BlockFrames: 1})
	clock.Process()
	if s, _ := c.Song(ids[0]); s.Position != 0 || s.IsPlaying {
		t.Errorf("stale report leaked into state: playing=%v position=%v", s.IsPlaying, s.Position)
	}
}

func TestInitialState(t *testing.T) {
	valid := multisong.NewMultiSongState()
	valid.SyncMode = multisong.Locked
	valid.SetMasterTempo(1.5)

	tooMany := multisong.NewMultiSongState()
	for i := range multisong.MaxSongs + 1 {
		tooMany.Songs = append(tooMany.Songs, multisong.NewSongPlayer(fmt.Sprintf("id%d", i), multisong.SongInfo{DurationSeconds: 1}, 1))
	}
	outOfRange := multisong.NewMultiSongState()
	outOfRange.Songs = []multisong.SongPlayer{{ID: "x", TempoMultiplier: 9, OriginalTempoRatio: 1, Volume: 1, LoopEnd: 1}}
	badMaster := multisong.NewMultiSongState()
	badMaster.MasterVolume = 3

	tests := []struct {
		name    string
		initial multisong.MultiSongState
		want    multisong.MultiSongState
	}{
		{"valid", valid, valid},
		{"too many songs", tooMany, multisong.NewMultiSongState()},
		{"song tempo out of range", outOfRange, multisong.NewMultiSongState()},
		{"master volume out of range", badMaster, multisong.NewMultiSongState()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := transport.NewController(transport.Options{Initial: &tt.initial})
			defer c.Close()
			st := c.State()
			if err := st.Validate(); err != nil {
				t.Fatalf("controller state does not validate: %v", err)
			}
			if len(st.Songs) != len(tt.want.Songs) || st.SyncMode != tt.want.SyncMode ||
				st.MasterTempoMultiplier != tt.want.MasterTempoMultiplier || st.MasterVolume != tt.want.MasterVolume {
				t.Errorf("state = %+v, want %+v", st, tt.want)
			}
			if snap := c.Snapshot(); len(snap.State.Songs) != len(st.Songs) {
				t.Errorf("snapshot has %d songs, state has %d", len(snap.State.Songs), len(st.Songs))
			}
		})
	}
}

func TestClockBlockDuration(t *testing.T) {
	tests := []struct {
		cfg  transport.ClockConfig
		want time.Duration
	}{
		{transport.ClockConfig{SampleRate: 48000, BlockFrames: 480}, 10 * time.Millisecond},
		{transport.ClockConfig{SampleRate: 100, BlockFrames: 10}, 100 * time.Millisecond},
		{transport.ClockConfig{SampleRate: 44100, BlockFrames: 441}, 10 * time.Millisecond},
	}
	for _, tt := range tests {
		c := newController(t)
		clock := transport.NewClock(c, c.Broker(), tt.cfg)
		if got := clock.BlockDuration(); got != tt.want {
			t.Errorf("%+v: BlockDuration() = %v, want %v", tt.cfg, got, tt.want)
		}
	}
	defaults := transport.NewClock(newController(t), transport.NewBroker(), transport.ClockConfig{})
	blockSeconds := float64(transport.DefaultBlockFrames) / transport.DefaultSampleRate
	want := time.Duration(blockSeconds * float64(time.Second))
	if got := defaults.BlockDuration(); got != want {
		t.Errorf("default BlockDuration() = %v, want %v", got, want)
	}
}

func TestRestorePreset(t *testing.T) {
	c := newController(t)
	ids := addSongs(t, c, 2, 4)
	c.SetVolume(ids[0], 0.3)
	c.SetSyncMode(multisong.Ratio)
	p := c.CapturePreset("set")
	if p.Name() != "set" || p.ID() == "" {
		t.Errorf("preset metadata %q %q", p.ID(), p.Name())
	}
	c.ClearSongs()
	c.SetSyncMode(multisong.Independent)
	if err := c.RestorePreset(p); err != nil {
		t.Fatalf("RestorePreset: %v", err)
	}
	st := c.State()
	if len(st.Songs) != 2 || st.Songs[0].Volume != 0.3 || st.SyncMode != multisong.Ratio {
		t.Errorf("restored state = %+v", st)
	}
}

func TestRestoreFailureKeepsState(t *testing.T) {
	c := newController(t)
	addSongs(t, c, 2, 4)
	c.SetMasterVolume(0.4)
	before := c.State()
	gen := c.Snapshot().Generation
	bad := multisong.NewMultiSongState()
	bad.Songs = []multisong.SongPlayer{{ID: "x", TempoMultiplier: 9, OriginalTempoRatio: 1, Volume: 1, LoopEnd: 1}}
	err := c.RestorePreset(multisong.Capture("bad", "bad", time.Now(), bad))
	if !errors.Is(err, multisong.ErrInvalidSnapshot) {
		t.Fatalf("error = %v, want ErrInvalidSnapshot", err)
	}
	after := c.State()
	if len(after.Songs) != len(before.Songs) || after.MasterVolume != 0.4 {
		t.Errorf("state changed after failed restore: %+v", after)
	}
	if c.Snapshot().Generation != gen {
		t.Error("failed restore published a snapshot")
	}
}

func TestDragIsDebounced(t *testing.T) {
	c := transport.NewController(transport.Options{Debounce: time.Hour})
	defer c.Close()
	c.DragMasterTempo(1.2) // first drag goes through
	c.DragMasterTempo(1.4)
	c.DragMasterTempo(1.6)
	if got := c.State().MasterTempoMultiplier; got != 1.2 {
		t.Errorf("master tempo = %v before flush, want 1.2", got)
	}
	c.Flush()
	if got := c.State().MasterTempoMultiplier; got != 1.6 {
		t.Errorf("master tempo = %v after flush, want newest value 1.6", got)
	}
}

func TestCommandFlushesPendingDrag(t *testing.T) {
	c := transport.NewController(transport.Options{Debounce: time.Hour})
	defer c.Close()
	id, err := c.AddSong(multisong.SongInfo{Name: "a", DurationSeconds: 10})
	if err != nil {
		t.Fatal(err)
	}
	c.DragTempo(id, 0.7) // consumes the burst
	c.DragTempo(id, 0.9)
	c.SetSyncMode(multisong.Independent)
	if s, _ := c.Song(id); s.TempoMultiplier != 0.9 {
		t.Errorf("tempo = %v, want pending drag 0.9 applied before the next command", s.TempoMultiplier)
	}
}

func TestEmergencyStopDiscardsPendingDrag(t *testing.T) {
	c := transport.NewController(transport.Options{Debounce: time.Hour})
	defer c.Close()
	c.DragMasterTempo(1.1)
	c.DragMasterTempo(1.9)
	c.EmergencyStop()
	c.Flush()
	if got := c.State().MasterTempoMultiplier; got != 1.1 {
		t.Errorf("master tempo = %v, want 1.1 (pending drag discarded)", got)
	}
}

func TestDragTrailingFlush(t *testing.T) {
	c := transport.NewController(transport.Options{Debounce: 10 * time.Millisecond})
	defer c.Close()
	c.DragMasterTempo(1.1)
	c.DragMasterTempo(1.7)
	deadline := time.Now().Add(2 * time.Second)
	for c.State().MasterTempoMultiplier != 1.7 {
		if time.Now().After(deadline) {
			t.Fatalf("pending drag was never committed, tempo = %v", c.State().MasterTempoMultiplier)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestChangesAreNotified(t *testing.T) {
	c := newController(t)
	c.PlayAll()
	ch, ok := transport.TimeoutReceive(c.Changes(), time.Second)
	if !ok {
		t.Fatal("no change notification")
	}
	if ch.Kind != transport.ChangeTransport || ch.Generation != c.Snapshot().Generation {
		t.Errorf("change = %+v", ch)
	}
}

func TestSnapshotGenerationIncreases(t *testing.T) {
	c := newController(t)
	prev := c.Snapshot().Generation
	addSongs(t, c, 1, 1)
	c.PlayAll()
	c.SetMasterVolume(0.5)
	if g := c.Snapshot().Generation; g != prev+3 {
		t.Errorf("generation = %d, want %d", g, prev+3)
	}
}

func TestConcurrentCommandsAreNotLost(t *testing.T) {
	c := newController(t)
	ids := addSongs(t, c, multisong.MaxSongs, 2)
	clock := transport.NewClock(c, c.Broker(), transport.ClockConfig{SampleRate: 1000, BlockFrames: 10})
	c.PlayAll()
	done := make(chan struct{})
	var clockWG sync.WaitGroup
	clockWG.Add(1)
	go func() {
		defer clockWG.Done()
		for {
			select {
			case <-done:
				return
			default:
				clock.Process()
			}
		}
	}()
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 200 {
				c.SetVolume(id, float64(j)/199)
				c.SetTempo(id, 0.5+float64(i)*0.25)
				c.State()
			}
		}()
	}
	wg.Wait()
	close(done)
	clockWG.Wait()
	st := c.State()
	for i, s := range st.Songs {
		if s.Volume != 1 {
			t.Errorf("song %d volume = %v, want last written 1", i, s.Volume)
		}
		if want := multisong.ClampTempo(0.5 + float64(i)*0.25); s.TempoMultiplier != want {
			t.Errorf("song %d tempo = %v, want %v", i, s.TempoMultiplier, want)
		}
		if s.Position < 0 || s.Position >= 1 {
			t.Errorf("song %d position %v out of range", i, s.Position)
		}
	}
}

func TestStatistics(t *testing.T) {
	now := time.Unix(0, 0)
	c := transport.NewController(transport.Options{
		OutputLatency: 20 * time.Millisecond,
		Now:           func() time.Time { return now },
	})
	defer c.Close()
	clock := transport.NewClock(c, c.Broker(), transport.ClockConfig{SampleRate: 1000, BlockFrames: 10})
	clock.Process()
	for range 5 {
		c.MarkFrame()
		now = now.Add(time.Second / 50)
	}
	st := c.Statistics()
	if math.Abs(st.AudioLatency-30) > 1e-9 {
		t.Errorf("latency = %v ms, want 30", st.AudioLatency)
	}
	if math.Abs(st.UIFrameRate-50) > 1e-6 {
		t.Errorf("frame rate = %v, want 50", st.UIFrameRate)
	}
	if st.MemoryUsage == 0 {
		t.Error("memory usage should be non-zero")
	}
	if st.CPUUsage < 0 {
		t.Errorf("cpu usage %v negative", st.CPUUsage)
	}
}
