/*
Package multisong contains the domain model of the multi-song playback engine.

Up to MaxSongs songs play at the same time. Each SongPlayer has its own tempo,
volume, position, loop bounds and mute / solo / playing toggles. A
MultiSongState groups the songs with the master tempo, the master volume and
the SyncMode, which decides how each song's tempo follows the master tempo
(see EffectiveTempo).

Invalid numeric input is never an error: tempos and volumes are clamped, loop
bounds are clamped and ordered, and positions wrap around. The only hard error
of the control surface is ErrCapacityExceeded.

A Preset is an immutable snapshot of a MultiSongState, created with Capture and
turned back into a state with Restore.

The concurrent engine built on these types lives in the transport package.
*/
package multisong
