/*
Package transport runs the multi-song engine: the Controller that serializes
every command and the Clock that advances song positions on the audio thread.

The Controller keeps the authoritative MultiSongState behind a mutex. Every
committed change is published as an immutable Snapshot through an atomic
pointer, so the Clock reads a fully formed state once per block without ever
locking. The Clock sends the resulting positions back through the Broker, and
the Controller merges them into its state the next time it is used.

Drag-style commands (DragMasterTempo, DragTempo) are rate limited: the newest
value wins and is committed after the debounce interval, by Flush, or by the
next non-drag command. EmergencyStop drops pending drags and takes effect
immediately.
*/
package transport
