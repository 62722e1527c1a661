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

// Package mixer is the audio bridge between the emulation driver and the
// host audio device. The driver pushes interleaved PCM sample frames into a
// fixed-capacity ring buffer once per audio DMA event; the host audio
// callback drains it at its own pace.
//
// The one inviolable rule is that QueueSamples() never blocks. Audio is
// produced on the emulation driver's goroutine and a stall there
// desynchronises audio and video timing. When the ring is full the newest
// samples are dropped and counted, never the oldest evicted and never the
// producer stalled.
package mixer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jetsetilly/ultragopher/logger"
	"github.com/jetsetilly/ultragopher/performance"
)

// NumChannels is the number of interleaved channels in a sample frame.
const NumChannels = 2

// Ring is a fixed capacity circular buffer of interleaved sample frames.
type Ring struct {
	stats *performance.Stats

	crit ringCrit

	// timestamp of the most recent OnDMAComplete() notification. a pacing
	// hint only, never used for correctness
	lastDMA atomic.Int64
}

// variables accessed in the critical section are encapsulated in their own
// subtype.
type ringCrit struct {
	section sync.Mutex

	// interleaved samples. length is capacity (in frames) * NumChannels
	samples []int16

	// read and write cursors, in samples. the write cursor never overtakes
	// the read cursor by more than the capacity
	readIdx  int
	writeIdx int

	// number of sample frames currently buffered
	depth int

	// the sample rate of the buffered samples. a change of rate flushes the
	// ring - samples at the old rate are useless
	sampleRate int32
}

// NewRing is the preferred method of initialisation for the Ring type.
// Capacity is given in sample frames.
func NewRing(capacity int, stats *performance.Stats) *Ring {
	rng := &Ring{stats: stats}
	rng.crit.samples = make([]int16, capacity*NumChannels)
	return rng
}

// Capacity returns the fixed capacity of the ring in sample frames.
func (rng *Ring) Capacity() int {
	return len(rng.crit.samples) / NumChannels
}

// QueueSamples appends interleaved samples to the ring. Samples that do not
// fit are dropped and counted in the stats aggregator, one count per dropped
// sample frame. The call never blocks beyond the short critical section.
//
// The length of the samples argument must be a multiple of NumChannels.
// Trailing samples of a misaligned chunk are discarded.
func (rng *Ring) QueueSamples(samples []int16, sampleRate int32) {
	frames := len(samples) / NumChannels

	rng.crit.section.Lock()
	defer rng.crit.section.Unlock()

	if sampleRate != rng.crit.sampleRate {
		if rng.crit.sampleRate != 0 {
			logger.Logf("mixer", "sample rate change (%d -> %d). flushing ring", rng.crit.sampleRate, sampleRate)
		}
		rng.crit.sampleRate = sampleRate
		rng.crit.readIdx = 0
		rng.crit.writeIdx = 0
		rng.crit.depth = 0
	}

	free := rng.Capacity() - rng.crit.depth
	accept := frames
	if accept > free {
		accept = free
	}

	for i := 0; i < accept*NumChannels; i++ {
		rng.crit.samples[rng.crit.writeIdx] = samples[i]
		rng.crit.writeIdx = (rng.crit.writeIdx + 1) % len(rng.crit.samples)
	}
	rng.crit.depth += accept

	if dropped := frames - accept; dropped > 0 {
		rng.stats.AudioOverflow.Add(int64(dropped))
	}
}

// Read drains up to len(buf) samples from the ring. It is called by the host
// audio callback. A shortfall is zero-filled (silence) and counted as a
// starvation event.
//
// The return value is the number of samples (not frames) actually drained
// from the ring.
func (rng *Ring) Read(buf []int16) int {
	rng.crit.section.Lock()

	avail := rng.crit.depth * NumChannels
	n := len(buf)
	if n > avail {
		n = avail
	}

	// whole sample frames only. a misaligned read must not leave the read
	// cursor out of step with the frame accounting
	n -= n % NumChannels

	for i := 0; i < n; i++ {
		buf[i] = rng.crit.samples[rng.crit.readIdx]
		rng.crit.readIdx = (rng.crit.readIdx + 1) % len(rng.crit.samples)
	}
	rng.crit.depth -= n / NumChannels

	rng.crit.section.Unlock()

	if n < len(buf) {
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		rng.stats.AudioStarved.Add(1)
	}

	return n
}

// Resize changes the capacity of the ring, given in sample frames. Queued
// samples are preserved, oldest first; whatever does not fit in a smaller
// ring is dropped from the newest end, consistent with the overflow policy.
//
// The quality governor calls this through the audio buffer size preference
// hook, so it can run on any goroutine.
func (rng *Ring) Resize(capacity int) {
	if capacity <= 0 {
		return
	}

	rng.crit.section.Lock()
	defer rng.crit.section.Unlock()

	if capacity*NumChannels == len(rng.crit.samples) {
		return
	}

	samples := make([]int16, capacity*NumChannels)

	keep := rng.crit.depth
	if keep > capacity {
		keep = capacity
	}
	for i := 0; i < keep*NumChannels; i++ {
		samples[i] = rng.crit.samples[(rng.crit.readIdx+i)%len(rng.crit.samples)]
	}

	rng.crit.samples = samples
	rng.crit.readIdx = 0
	rng.crit.writeIdx = (keep * NumChannels) % len(samples)
	rng.crit.depth = keep

	logger.Logf("mixer", "ring resized to %d frames", capacity)
}

// Depth returns the number of sample frames currently buffered. The driver
// can use this to skip queueing when the ring is running dangerously deep,
// trading a dropped audio chunk for bounded latency.
func (rng *Ring) Depth() int {
	rng.crit.section.Lock()
	defer rng.crit.section.Unlock()
	return rng.crit.depth
}

// SampleRate returns the rate tag of the samples currently in the ring.
func (rng *Ring) SampleRate() int32 {
	rng.crit.section.Lock()
	defer rng.crit.section.Unlock()
	return rng.crit.sampleRate
}

// OnDMAComplete is a notification from the emulation driver that an audio
// DMA boundary has passed. It carries no payload and is used purely as a
// pacing hint.
func (rng *Ring) OnDMAComplete() {
	rng.lastDMA.Store(time.Now().UnixNano())
}

// LastDMA returns the time of the most recent OnDMAComplete notification.
func (rng *Ring) LastDMA() time.Time {
	return time.Unix(0, rng.lastDMA.Load())
}
