package multisong

// EngineStatistics is a read-only sample of the engine health, pulled
// periodically by telemetry. The engine never pushes these.
type EngineStatistics struct {
	CPUUsage     float64 // fraction of the audio block duration spent processing
	MemoryUsage  uint64  // bytes of heap in use
	AudioLatency float64 // milliseconds
	UIFrameRate  float64 // Hz, as reported by the presentation layer
}
