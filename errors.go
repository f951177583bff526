package multisong

import "errors"

var (
	// ErrCapacityExceeded is returned when a song is added while all
	// MaxSongs slots are in use. The state is left unchanged.
	ErrCapacityExceeded = errors.New("all song slots are in use")

	// ErrInvalidSnapshot is returned when a state restored from a preset
	// violates an invariant.
	ErrInvalidSnapshot = errors.New("invalid state snapshot")
)
