package transport

import (
	"runtime"
	"time"

	"github.com/whiteroom/multisong"
)

// sampler turns clock reports and frame marks into EngineStatistics.
type sampler struct {
	cpuLoad       float64
	blockSeconds  float64
	overrun       bool
	outputLatency time.Duration

	lastFrame time.Time
	fps       float64
}

const fpsSmoothing = 0.1

// observeClock records a clock report. It returns true when the clock has
// just started to overrun its blocks.
func (s *sampler) observeClock(load, blockSeconds float64) (startedOverrun bool) {
	s.cpuLoad = load
	if blockSeconds > 0 {
		s.blockSeconds = blockSeconds
	}
	over := load > 1
	startedOverrun = over && !s.overrun
	s.overrun = over
	return startedOverrun
}

func (s *sampler) markFrame(now time.Time) {
	if !s.lastFrame.IsZero() {
		if dt := now.Sub(s.lastFrame).Seconds(); dt > 0 {
			if s.fps == 0 {
				s.fps = 1 / dt
			} else {
				s.fps += fpsSmoothing * (1/dt - s.fps)
			}
		}
	}
	s.lastFrame = now
}

func (s *sampler) statistics() multisong.EngineStatistics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return multisong.EngineStatistics{
		CPUUsage:     s.cpuLoad,
		MemoryUsage:  m.HeapAlloc,
		AudioLatency: s.blockSeconds*1000 + float64(s.outputLatency)/float64(time.Millisecond),
		UIFrameRate:  s.fps,
	}
}
