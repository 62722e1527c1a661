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

package govern_test

import (
	"testing"

	"github.com/jetsetilly/ultragopher/async/govern"
	"github.com/jetsetilly/ultragopher/performance"
	"github.com/jetsetilly/ultragopher/prefs"
	"github.com/jetsetilly/ultragopher/test"
)

type tuningHarness struct {
	tuning govern.Tuning

	// how many times each watched preference has been written
	texSizeWrites int
	postWrites    int
}

func newTuningHarness(t *testing.T) *tuningHarness {
	t.Helper()

	h := &tuningHarness{
		tuning: govern.Tuning{
			MaxTextureSize:  &prefs.Int{},
			Multisample:     &prefs.Bool{},
			PostProcessing:  &prefs.Bool{},
			AllowFrameSkip:  &prefs.Bool{},
			AudioBufferSize: &prefs.Int{},
		},
	}

	test.DemandSuccess(t, h.tuning.MaxTextureSize.Set(1024))
	test.DemandSuccess(t, h.tuning.Multisample.Set(true))
	test.DemandSuccess(t, h.tuning.PostProcessing.Set(true))
	test.DemandSuccess(t, h.tuning.AllowFrameSkip.Set(false))
	test.DemandSuccess(t, h.tuning.AudioBufferSize.Set(1024))

	h.tuning.MaxTextureSize.SetHookPost(func(_ int) error {
		h.texSizeWrites++
		return nil
	})
	h.tuning.PostProcessing.SetHookPost(func(_ bool) error {
		h.postWrites++
		return nil
	})

	return h
}

func step(gov *govern.Governor, n int) {
	for i := 0; i < n; i++ {
		gov.Step()
	}
}

func TestSustainedLowFPSAppliesBundle(t *testing.T) {
	h := newTuningHarness(t)
	stats := performance.NewStats()
	gov := govern.NewGovernor(h.tuning, stats)
	gov.Enable(true)

	stats.PublishFPS(30)

	// one frame short of the sustained window changes nothing
	step(gov, govern.SustainedWindow-1)
	test.ExpectEquality(t, gov.Active(), false)
	test.ExpectEquality(t, h.tuning.MaxTextureSize.Get(), 1024)

	gov.Step()
	test.ExpectEquality(t, gov.Active(), true)
	test.ExpectEquality(t, h.tuning.MaxTextureSize.Get(), 512)
	test.ExpectEquality(t, h.tuning.Multisample.Get(), false)
	test.ExpectEquality(t, h.tuning.PostProcessing.Get(), false)
	test.ExpectEquality(t, h.tuning.AllowFrameSkip.Get(), true)
	test.ExpectEquality(t, h.tuning.AudioBufferSize.Get(), 2048)
}

func TestNoOscillationInHysteresisBand(t *testing.T) {
	h := newTuningHarness(t)
	stats := performance.NewStats()
	gov := govern.NewGovernor(h.tuning, stats)
	gov.Enable(true)

	// drive FPS below the floor until the bundle applies
	stats.PublishFPS(30)
	step(gov, govern.SustainedWindow)
	test.ExpectEquality(t, gov.Active(), true)
	test.ExpectEquality(t, h.texSizeWrites, 1)
	test.ExpectEquality(t, h.postWrites, 1)

	// hold FPS between the floor and the recovery threshold for a long
	// time. nothing in the bundle is written again in either direction
	stats.PublishFPS((govern.DefaultFloor + govern.DefaultRecovery) / 2)
	step(gov, govern.SustainedWindow*10)
	test.ExpectEquality(t, gov.Active(), true)
	test.ExpectEquality(t, h.texSizeWrites, 1)
	test.ExpectEquality(t, h.postWrites, 1)
	test.ExpectEquality(t, h.tuning.MaxTextureSize.Get(), 512)
}

func TestRecoveryRestoresBundle(t *testing.T) {
	h := newTuningHarness(t)
	stats := performance.NewStats()
	gov := govern.NewGovernor(h.tuning, stats)
	gov.Enable(true)

	stats.PublishFPS(30)
	step(gov, govern.SustainedWindow)
	test.ExpectEquality(t, gov.Active(), true)

	// recovery must also be sustained
	stats.PublishFPS(60)
	step(gov, govern.SustainedWindow-1)
	test.ExpectEquality(t, gov.Active(), true)

	gov.Step()
	test.ExpectEquality(t, gov.Active(), false)
	test.ExpectEquality(t, h.tuning.MaxTextureSize.Get(), 1024)
	test.ExpectEquality(t, h.tuning.Multisample.Get(), true)
	test.ExpectEquality(t, h.tuning.PostProcessing.Get(), true)
	test.ExpectEquality(t, h.tuning.AllowFrameSkip.Get(), false)
	test.ExpectEquality(t, h.tuning.AudioBufferSize.Get(), 1024)
}

func TestInterruptedStreakResetsCounter(t *testing.T) {
	h := newTuningHarness(t)
	stats := performance.NewStats()
	gov := govern.NewGovernor(h.tuning, stats)
	gov.Enable(true)

	// a single good frame in the middle of a bad run restarts the count
	stats.PublishFPS(30)
	step(gov, govern.SustainedWindow-1)
	stats.PublishFPS(60)
	gov.Step()
	stats.PublishFPS(30)
	step(gov, govern.SustainedWindow-1)
	test.ExpectEquality(t, gov.Active(), false)

	gov.Step()
	test.ExpectEquality(t, gov.Active(), true)
}

func TestDisableLiftsBundle(t *testing.T) {
	h := newTuningHarness(t)
	stats := performance.NewStats()
	gov := govern.NewGovernor(h.tuning, stats)
	gov.Enable(true)

	stats.PublishFPS(30)
	step(gov, govern.SustainedWindow)
	test.ExpectEquality(t, gov.Active(), true)

	gov.Enable(false)
	test.ExpectEquality(t, gov.Active(), false)
	test.ExpectEquality(t, h.tuning.MaxTextureSize.Get(), 1024)
	test.ExpectEquality(t, h.tuning.PostProcessing.Get(), true)

	// stepping a disabled governor does nothing even at low FPS
	step(gov, govern.SustainedWindow*2)
	test.ExpectEquality(t, gov.Active(), false)
}

func TestNoMeasurementNoAction(t *testing.T) {
	h := newTuningHarness(t)
	stats := performance.NewStats()
	gov := govern.NewGovernor(h.tuning, stats)
	gov.Enable(true)

	// FPS has never been published. the governor must not react
	step(gov, govern.SustainedWindow*2)
	test.ExpectEquality(t, gov.Active(), false)
	test.ExpectEquality(t, h.texSizeWrites, 0)
}
