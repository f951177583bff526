package transport

import (
	"time"

	"golang.org/x/time/rate"
)

// debouncer holds drag-style tempo commands until they are committed. A newer
// value for the same target overwrites the pending one. The order of pending
// master and song tempos does not matter: in every sync mode the resulting
// tempos are the same whichever is applied first.
//
// debouncer is not safe for concurrent use; the Controller guards it with its
// mutex. The trailing timer calls flush from its own goroutine, so flush must
// take the lock itself.
type debouncer struct {
	limiter  *rate.Limiter
	interval time.Duration
	flush    func()
	timer    *time.Timer
	armed    bool

	master *float64
	songs  map[string]float64
}

func newDebouncer(interval time.Duration, flush func()) *debouncer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &debouncer{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
		flush:    flush,
		songs:    make(map[string]float64),
	}
}

func (d *debouncer) setMaster(v float64) { d.master = &v }

func (d *debouncer) setSong(id string, v float64) { d.songs[id] = v }

// allow reports whether a drag may be committed right away.
func (d *debouncer) allow() bool { return d.limiter.Allow() }

// arm makes sure a trailing flush happens after the interval.
func (d *debouncer) arm() {
	if d.armed {
		return
	}
	d.armed = true
	if d.timer == nil {
		d.timer = time.AfterFunc(d.interval, d.fire)
		return
	}
	d.timer.Reset(d.interval)
}

func (d *debouncer) fire() { d.flush() }

// take returns and clears the pending values.
func (d *debouncer) take() (master *float64, songs map[string]float64, ok bool) {
	d.disarm()
	if d.master == nil && len(d.songs) == 0 {
		return nil, nil, false
	}
	master, songs = d.master, d.songs
	d.master, d.songs = nil, make(map[string]float64)
	return master, songs, true
}

// reset drops the pending values without applying them.
func (d *debouncer) reset() {
	d.disarm()
	d.master = nil
	clear(d.songs)
}

func (d *debouncer) disarm() {
	if d.armed && d.timer != nil {
		d.timer.Stop()
	}
	d.armed = false
}
