package metrics

import (
	"runtime"
)

const nanosecondsPerMillisecond = 1e6

// CollectRuntime samples memory, goroutine and GC statistics into the runtime gauges.
func CollectRuntime() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	UpdateSystemMemoryUsage(m.Alloc)
	UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		RecordSystemGCPauseTime(avgPauseMs)
	}
}
