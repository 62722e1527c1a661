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

// Package limiter paces the emulation driver to a target frame rate.
// BeginFrame() and EndFrame() bracket the driver's per-frame work; EndFrame()
// performs the pacing wait appropriate to the current mode.
//
// The wait itself sleeps for the majority of the remaining budget and
// spin-waits the final slice, because time.Sleep() alone is at the mercy of
// the OS scheduler's granularity. Scheduler jitter that does slip through is
// carried as a running error term and paid back over subsequent frames
// rather than being corrected with a single large adjustment.
package limiter

import (
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/jetsetilly/ultragopher/performance"
	"github.com/jetsetilly/ultragopher/prefs"
)

// Mode is the pacing strategy.
type Mode int

// List of valid Mode values.
//
// ModeOff performs no pacing at all. ModeOn hard-caps to the target
// interval with a blocking wait. ModeAdaptive also waits but forgives an
// overrunning frame rather than forcing the next frame to pay the debt,
// avoiding cascading lateness. ModeHalf targets half the nominal rate, for
// hardware that cannot sustain the full rate.
const (
	ModeOff Mode = iota
	ModeOn
	ModeAdaptive
	ModeHalf
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeOn:
		return "on"
	case ModeAdaptive:
		return "adaptive"
	case ModeHalf:
		return "half"
	}
	return "unknown"
}

// the width of the spin-wait slice at the end of a pacing wait. sleeps are
// rounded down to leave this much budget for the spin
const spinSlice = time.Millisecond

// number of consecutive over-budget frames before ShouldSkipFrame() starts
// agreeing to skips. a single spike is not a reason to skip
const sustainedOverBudget = 10

// fallback refresh rate until OnVIInterrupt() has measured the real one
const defaultRefreshRate = 60.0

// number of VI interrupts between refresh rate measurements
const viMeasureCt = 60

// Limiter is the frame pacing / vsync controller.
//
// BeginFrame, EndFrame and ShouldSkipFrame must only be called from the
// emulation driver's goroutine. The Set functions can be called from any
// goroutine.
type Limiter struct {
	stats *performance.Stats

	// live tuning values, adjusted by the governor and the application
	allowFrameSkip *prefs.Bool
	maxConsecSkips *prefs.Int

	// atomic because they can be set from any goroutine
	mode      atomic.Int32
	requested atomic.Uint64 // float64 bits. <= 0 means match refresh rate

	// refresh rate measured from OnVIInterrupt() notifications
	refreshRate atomic.Uint64 // float64 bits
	viCt        atomic.Int64
	viRefTime   atomic.Int64 // UnixNano

	// driver-goroutine state
	frameStart time.Time

	// running pacing error. positive means we are late and owe time
	err time.Duration

	// delivered FPS measurement. EndFrame() calls against the wall clock
	measureCt   int
	measureTime time.Time

	// frame skip state
	overBudgetCt int
	consecSkips  int
}

// NewLimiter is the preferred method of initialisation for the Limiter type.
func NewLimiter(stats *performance.Stats, allowFrameSkip *prefs.Bool, maxConsecSkips *prefs.Int) *Limiter {
	lmt := &Limiter{
		stats:          stats,
		allowFrameSkip: allowFrameSkip,
		maxConsecSkips: maxConsecSkips,
	}
	lmt.mode.Store(int32(ModeAdaptive))
	lmt.refreshRate.Store(math.Float64bits(defaultRefreshRate))
	lmt.viRefTime.Store(time.Now().UnixNano())
	lmt.measureTime = time.Now()
	return lmt
}

// SetMode changes the pacing strategy.
func (lmt *Limiter) SetMode(m Mode) {
	lmt.mode.Store(int32(m))
}

// GetMode returns the current pacing strategy.
func (lmt *Limiter) GetMode() Mode {
	return Mode(lmt.mode.Load())
}

// SetTargetFPS sets the requested frame rate. A value of zero or below means
// match the refresh rate measured from VI interrupts.
func (lmt *Limiter) SetTargetFPS(fps float64) {
	lmt.requested.Store(math.Float64bits(fps))
}

// GetTargetFPS returns the effective frame rate target.
func (lmt *Limiter) GetTargetFPS() float64 {
	fps := math.Float64frombits(lmt.requested.Load())
	if fps <= 0 {
		fps = math.Float64frombits(lmt.refreshRate.Load())
	}
	return fps
}

// the target frame interval for the current mode.
func (lmt *Limiter) interval() time.Duration {
	fps := lmt.GetTargetFPS()
	if fps <= 0 {
		return 0
	}
	d := time.Duration(float64(time.Second) / fps)
	if lmt.GetMode() == ModeHalf {
		d *= 2
	}
	return d
}

// OnVIInterrupt is a notification from the emulation driver that a vertical
// interrupt has occurred. No payload; used purely to measure the emulated
// refresh rate for pacing.
func (lmt *Limiter) OnVIInterrupt() {
	ct := lmt.viCt.Add(1)
	if ct < viMeasureCt {
		return
	}

	now := time.Now()
	ref := time.Unix(0, lmt.viRefTime.Load())
	if elapsed := now.Sub(ref).Seconds(); elapsed > 0 {
		lmt.refreshRate.Store(math.Float64bits(float64(ct) / elapsed))
	}
	lmt.viCt.Store(0)
	lmt.viRefTime.Store(now.UnixNano())
}

// BeginFrame marks the start of the driver's per-frame work.
func (lmt *Limiter) BeginFrame() {
	lmt.frameStart = time.Now()
}

// EndFrame marks the end of the driver's per-frame work, records the frame
// time and performs the pacing wait for the current mode.
func (lmt *Limiter) EndFrame() {
	work := time.Since(lmt.frameStart)
	lmt.stats.RecordFrameTime(work)
	lmt.measureActual()

	target := lmt.interval()

	// frame skip bookkeeping. sustained over-budget frames, not spikes
	if target > 0 && lmt.stats.AvgFrameTime() > target {
		lmt.overBudgetCt++
	} else {
		lmt.overBudgetCt = 0
		lmt.consecSkips = 0
	}

	mode := lmt.GetMode()
	if mode == ModeOff || target <= 0 {
		lmt.err = 0
		return
	}

	wait := target - work - lmt.err
	if wait <= 0 {
		// the frame overran its budget
		if mode == ModeAdaptive {
			// forgive the overrun. carrying it forward would force the
			// next frame to be short and lateness would cascade
			lmt.err = 0
		} else {
			lmt.err = -wait
		}
		return
	}

	before := time.Now()
	lmt.wait(wait)

	// whatever the sleep/spin missed by is owed by the next frame
	lmt.err = time.Since(before) - wait
}

// sleep for the majority of the duration and spin for the final slice.
func (lmt *Limiter) wait(d time.Duration) {
	deadline := time.Now().Add(d)
	if d > spinSlice {
		time.Sleep(d - spinSlice)
	}
	for time.Now().Before(deadline) {
		runtime.Gosched()
	}
}

// delivered FPS measurement. counts EndFrame() calls against the wall
// clock, re-measuring roughly every second.
func (lmt *Limiter) measureActual() {
	lmt.measureCt++
	if elapsed := time.Since(lmt.measureTime); elapsed >= time.Second {
		lmt.stats.PublishFPS(float64(lmt.measureCt) / elapsed.Seconds())
		lmt.measureCt = 0
		lmt.measureTime = time.Now()
	}
}

// ShouldSkipFrame returns true when the driver would do better to not render
// the next frame. It only ever returns true when frame skipping has been
// allowed, when the rolling average frame time has been over budget for a
// sustained window, and when doing so would not exceed the consecutive-skip
// cap.
func (lmt *Limiter) ShouldSkipFrame() bool {
	if lmt.allowFrameSkip == nil || !lmt.allowFrameSkip.Get() {
		return false
	}

	if lmt.overBudgetCt < sustainedOverBudget {
		return false
	}

	max := lmt.maxConsecSkips.Get()
	if lmt.consecSkips >= max {
		// render this one regardless. runaway skipping is worse than slow
		lmt.consecSkips = 0
		return false
	}

	lmt.consecSkips++
	lmt.stats.FramesSkipped.Add(1)

	return true
}
