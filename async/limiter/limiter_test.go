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

package limiter_test

import (
	"testing"
	"time"

	"github.com/jetsetilly/ultragopher/async/limiter"
	"github.com/jetsetilly/ultragopher/performance"
	"github.com/jetsetilly/ultragopher/prefs"
	"github.com/jetsetilly/ultragopher/test"
)

func newTestLimiter() (*limiter.Limiter, *performance.Stats, *prefs.Bool, *prefs.Int) {
	sts := performance.NewStats()
	allowSkip := &prefs.Bool{}
	maxSkips := &prefs.Int{}
	_ = maxSkips.Set(3)
	return limiter.NewLimiter(sts, allowSkip, maxSkips), sts, allowSkip, maxSkips
}

func TestModes(t *testing.T) {
	lmt, _, _, _ := newTestLimiter()

	// adaptive is the default
	test.ExpectEquality(t, lmt.GetMode(), limiter.ModeAdaptive)

	lmt.SetMode(limiter.ModeHalf)
	test.ExpectEquality(t, lmt.GetMode(), limiter.ModeHalf)

	// until VI interrupts have measured the real refresh rate, the target
	// falls back to the nominal 60
	test.ExpectEquality(t, lmt.GetTargetFPS(), 60.0)

	lmt.SetTargetFPS(30)
	test.ExpectEquality(t, lmt.GetTargetFPS(), 30.0)
}

// with pacing on, a run of empty frames cannot finish faster than the target
// interval allows. the bound is deliberately loose - we are testing that the
// limiter waits at all, not benchmarking the wait.
func TestPacingWaits(t *testing.T) {
	lmt, _, _, _ := newTestLimiter()
	lmt.SetMode(limiter.ModeOn)
	lmt.SetTargetFPS(500)

	const numFrames = 20

	start := time.Now()
	for i := 0; i < numFrames; i++ {
		lmt.BeginFrame()
		lmt.EndFrame()
	}
	elapsed := time.Since(start)

	// 20 frames at 2ms each is 40ms. allow generous scheduler slop below
	if elapsed < 30*time.Millisecond {
		t.Errorf("pacing did not wait: %d frames in %v", numFrames, elapsed)
	}
}

func TestPacingOff(t *testing.T) {
	lmt, _, _, _ := newTestLimiter()
	lmt.SetMode(limiter.ModeOff)
	lmt.SetTargetFPS(10)

	start := time.Now()
	for i := 0; i < 100; i++ {
		lmt.BeginFrame()
		lmt.EndFrame()
	}

	// with pacing off, 100 frames at a nominal 10fps must complete near
	// instantly
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("pacing waited in ModeOff: %v", elapsed)
	}
}

// half mode doubles the frame interval.
func TestHalfMode(t *testing.T) {
	lmt, _, _, _ := newTestLimiter()
	lmt.SetMode(limiter.ModeHalf)
	lmt.SetTargetFPS(500)

	const numFrames = 10

	start := time.Now()
	for i := 0; i < numFrames; i++ {
		lmt.BeginFrame()
		lmt.EndFrame()
	}
	elapsed := time.Since(start)

	// 10 frames at 4ms each is 40ms
	if elapsed < 30*time.Millisecond {
		t.Errorf("half mode did not double the interval: %d frames in %v", numFrames, elapsed)
	}
}

func TestShouldSkipFrame(t *testing.T) {
	lmt, sts, allowSkip, _ := newTestLimiter()
	lmt.SetMode(limiter.ModeOff)

	// an absurd target makes every frame over budget
	lmt.SetTargetFPS(1000000)

	overBudgetFrame := func() {
		lmt.BeginFrame()
		time.Sleep(time.Millisecond)
		lmt.EndFrame()
	}

	// frame skipping starts disallowed
	overBudgetFrame()
	test.ExpectFailure(t, lmt.ShouldSkipFrame())

	_ = allowSkip.Set(true)

	// a sustained run of over-budget frames is required, not a single spike
	test.ExpectFailure(t, lmt.ShouldSkipFrame())
	for i := 0; i < 20; i++ {
		overBudgetFrame()
	}

	// skipping now allowed, but capped at three consecutive skips before a
	// frame is rendered regardless
	test.ExpectSuccess(t, lmt.ShouldSkipFrame())
	test.ExpectSuccess(t, lmt.ShouldSkipFrame())
	test.ExpectSuccess(t, lmt.ShouldSkipFrame())
	test.ExpectFailure(t, lmt.ShouldSkipFrame())
	test.ExpectSuccess(t, lmt.ShouldSkipFrame())

	test.ExpectEquality(t, sts.Snapshot().FramesSkipped, 4)

	// recovery: frames back under budget reset the skip state
	lmt.SetTargetFPS(1)
	lmt.BeginFrame()
	lmt.EndFrame()
	test.ExpectFailure(t, lmt.ShouldSkipFrame())
}
