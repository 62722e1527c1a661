// This file is part of Ultragopher.
//
// Ultragopher is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Ultragopher is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Ultragopher.  If not, see <https://www.gnu.org/licenses/>.

package performance

import (
	"math"
	"sync/atomic"
	"time"
)

// number of recent frames in the rolling measurement window. at 60fps this
// is a half second of history, enough to smooth over single-frame spikes.
const windowSize = 30

// Stats is the telemetry aggregator for the async core. It is the only
// structure in the project that is intentionally written to from every
// goroutine. For that reason all counters are atomic and there are no locks
// anywhere in the type, meaning that it can never become a contention point.
//
// The counter fields are exported and are incremented directly by the
// components that own the corresponding events.
type Stats struct {
	// frames handed to the presentation goroutine and presented by it
	FramesQueued    atomic.Int64
	FramesPresented atomic.Int64

	// the number of times the emulation driver was stalled because the
	// frame queue was full. the backpressure mechanism working as intended
	// but worth counting
	GPUSyncWaits atomic.Int64

	// summed time between QueueFrame and the completion of the present, in
	// nanoseconds. divided by FramesPresented for the average
	PresentLatency atomic.Int64

	// sample frames dropped because the audio ring was full on write, and
	// the number of times the host callback found the ring empty
	AudioOverflow atomic.Int64
	AudioStarved  atomic.Int64

	// texture cache
	CacheHits      atomic.Int64
	CacheMisses    atomic.Int64
	CacheEvictions atomic.Int64

	// draw batching
	DrawCalls    atomic.Int64
	StateChanges atomic.Int64
	BatchFlushes atomic.Int64

	// coprocessor tasks by kind
	AudioTasks    atomic.Int64
	GraphicsTasks atomic.Int64

	// worker pool
	TasksQueued    atomic.Int64
	TasksCompleted atomic.Int64

	// frame pacing
	FramesSkipped atomic.Int64

	// published results of the rolling window. float64 values stored as
	// math.Float64bits
	fps          atomic.Uint64
	avgFrameTime atomic.Uint64

	// the window itself is only ever touched by the goroutine calling
	// RecordFrameTime (the emulation driver, via the pacing controller) so
	// it needs no protection
	window    [windowSize]time.Duration
	windowCt  int
	windowIdx int
}

// Snapshot is a plain copy of the counters at a single moment. Returned by
// the Snapshot() function and safe to retain.
type Snapshot struct {
	FramesQueued    int64
	FramesPresented int64
	GPUSyncWaits    int64

	// average time between QueueFrame and the completion of the present
	AvgPresentLatency time.Duration

	AudioOverflow int64
	AudioStarved  int64

	CacheHits      int64
	CacheMisses    int64
	CacheEvictions int64

	DrawCalls    int64
	StateChanges int64
	BatchFlushes int64

	AudioTasks    int64
	GraphicsTasks int64

	TasksQueued    int64
	TasksCompleted int64

	FramesSkipped int64

	// results of the rolling frame-time window
	FPS          float64
	AvgFrameTime time.Duration
}

// NewStats is the preferred method of initialisation for the Stats type.
func NewStats() *Stats {
	return &Stats{}
}

// RecordFrameTime adds a frame work duration (BeginFrame to EndFrame, not
// including any pacing wait) to the rolling window and publishes the new
// rolling average.
//
// Must only be called from one goroutine (in practice, the emulation
// driver's goroutine via the pacing controller).
func (sts *Stats) RecordFrameTime(d time.Duration) {
	sts.window[sts.windowIdx] = d
	sts.windowIdx = (sts.windowIdx + 1) % windowSize
	if sts.windowCt < windowSize {
		sts.windowCt++
	}

	var sum time.Duration
	for i := 0; i < sts.windowCt; i++ {
		sum += sts.window[i]
	}
	sts.avgFrameTime.Store(uint64(sum / time.Duration(sts.windowCt)))
}

// PublishFPS stores a new delivered-FPS measurement. Called by the pacing
// controller, which counts presented frames against the wall clock; the
// value is deliberately not derived from the frame-time window, which
// measures work time rather than delivery cadence.
func (sts *Stats) PublishFPS(fps float64) {
	sts.fps.Store(math.Float64bits(fps))
}

// FPS returns the current rolling frames-per-second measurement.
func (sts *Stats) FPS() float64 {
	return math.Float64frombits(sts.fps.Load())
}

// AvgFrameTime returns the current rolling average frame time.
func (sts *Stats) AvgFrameTime() time.Duration {
	return time.Duration(sts.avgFrameTime.Load())
}

// Snapshot returns a copy of all counters. The copy is not a single atomic
// unit - counters may tick while the copy is being taken - but every
// individual value is coherent.
func (sts *Stats) Snapshot() Snapshot {
	snp := Snapshot{
		FramesQueued:    sts.FramesQueued.Load(),
		FramesPresented: sts.FramesPresented.Load(),
		GPUSyncWaits:    sts.GPUSyncWaits.Load(),
		AudioOverflow:   sts.AudioOverflow.Load(),
		AudioStarved:    sts.AudioStarved.Load(),
		CacheHits:       sts.CacheHits.Load(),
		CacheMisses:     sts.CacheMisses.Load(),
		CacheEvictions:  sts.CacheEvictions.Load(),
		DrawCalls:       sts.DrawCalls.Load(),
		StateChanges:    sts.StateChanges.Load(),
		BatchFlushes:    sts.BatchFlushes.Load(),
		AudioTasks:      sts.AudioTasks.Load(),
		GraphicsTasks:   sts.GraphicsTasks.Load(),
		TasksQueued:     sts.TasksQueued.Load(),
		TasksCompleted:  sts.TasksCompleted.Load(),
		FramesSkipped:   sts.FramesSkipped.Load(),
		FPS:             sts.FPS(),
		AvgFrameTime:    sts.AvgFrameTime(),
	}

	if snp.FramesPresented > 0 {
		snp.AvgPresentLatency = time.Duration(sts.PresentLatency.Load() / snp.FramesPresented)
	}

	return snp
}

// Reset zeroes every counter. The rolling window is left alone - it refers
// to wall-clock history, not to the counting period.
func (sts *Stats) Reset() {
	sts.FramesQueued.Store(0)
	sts.FramesPresented.Store(0)
	sts.GPUSyncWaits.Store(0)
	sts.PresentLatency.Store(0)
	sts.AudioOverflow.Store(0)
	sts.AudioStarved.Store(0)
	sts.CacheHits.Store(0)
	sts.CacheMisses.Store(0)
	sts.CacheEvictions.Store(0)
	sts.DrawCalls.Store(0)
	sts.StateChanges.Store(0)
	sts.BatchFlushes.Store(0)
	sts.AudioTasks.Store(0)
	sts.GraphicsTasks.Store(0)
	sts.TasksQueued.Store(0)
	sts.TasksCompleted.Store(0)
	sts.FramesSkipped.Store(0)
}
