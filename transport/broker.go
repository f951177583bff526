package transport

import (
	"time"

	"github.com/whiteroom/multisong"
)

type (
	// Broker holds the channels used between the control side (Controller),
	// the audio side (Clock) and the observers of the state. All sends are
	// non-blocking, so neither side can dead-lock the other.
	//
	// ToController has a capacity of one and is written with TrySendLatest:
	// the clock overwrites an unread report, so the controller always reads
	// the most recent positions. ToObservers is lossy; an observer that
	// misses a Change just re-reads the state.
	//
	// For stopping the clock goroutine there are CloseClock and
	// FinishedClock. CloseClock has a capacity of 1, so you can always send a
	// struct{}{} to it without blocking. FinishedClock is closed when the
	// clock has returned:
	//    select {
	//      case <-FinishedClock:
	//      case <-time.After(3 * time.Second):
	//    }
	Broker struct {
		ToController chan ClockReport
		ToObservers  chan Change

		CloseClock    chan struct{}
		FinishedClock chan struct{}
	}

	// ClockReport is sent by the clock after every block. It is a plain value
	// with a fixed-size array so that sending it does not allocate.
	ClockReport struct {
		Generation   uint64 // generation of the snapshot the report was computed from
		NumSongs     int
		Songs        [multisong.MaxSongs]SongReport
		CPULoad      float64 // smoothed processing time / block duration
		BlockSeconds float64
	}

	// SongReport carries the position of one song as seen by the clock. Seek
	// is the seek generation the position is based on; the controller drops
	// positions computed before its latest seek of the song.
	SongReport struct {
		ID       string
		Position float64
		Seek     uint64
	}

	// Change notifies observers that the state has changed. Generation grows
	// by one for every committed snapshot.
	Change struct {
		Kind       ChangeKind
		SongID     string // empty for changes not specific to one song
		Generation uint64
	}

	ChangeKind int
)

const (
	ChangeNone ChangeKind = iota
	ChangeSongAdded
	ChangeSongRemoved
	ChangeSong
	ChangeTransport
	ChangeMaster
	ChangeSyncMode
	ChangeEmergencyStop
	ChangeRestore
)

var changeKindNames = [...]string{"none", "song-added", "song-removed", "song", "transport", "master", "sync-mode", "emergency-stop", "restore"}

func (k ChangeKind) String() string {
	if k < 0 || int(k) >= len(changeKindNames) {
		return "unknown"
	}
	return changeKindNames[k]
}

func NewBroker() *Broker {
	return &Broker{
		ToController:  make(chan ClockReport, 1),
		ToObservers:   make(chan Change, 64),
		CloseClock:    make(chan struct{}, 1),
		FinishedClock: make(chan struct{}),
	}
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TrySendLatest sends v to c, discarding an unread value if c is full. It
// never blocks; it returns false only if a concurrent sender kept the channel
// full.
func TrySendLatest[T any](c chan T, v T) bool {
	for range 2 {
		select {
		case c <- v:
			return true
		default:
		}
		select {
		case <-c:
		default:
		}
	}
	return false
}

// TimeoutReceive is a helper function to block until a value is received from a
// channel, or timing out after t. ok will be false if the timeout occurred or
// if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
