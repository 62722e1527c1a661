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

// Package govern watches the measured frame rate and trades visual quality
// for speed when the host cannot keep up. When FPS stays below the floor
// for a sustained number of frames the governor applies a bundle of
// mitigations through the prefs system. The bundle is removed once FPS has
// stayed above the recovery threshold for the same sustained period.
//
// The gap between floor and recovery is the hysteresis band. FPS sitting
// inside the band changes nothing in either direction.
package govern

import (
	"sync"

	"github.com/jetsetilly/ultragopher/logger"
	"github.com/jetsetilly/ultragopher/performance"
	"github.com/jetsetilly/ultragopher/prefs"
)

// Default thresholds. Floor and recovery are frames-per-second, the
// sustained window is a frame count.
const (
	DefaultFloor    = 45.0
	DefaultRecovery = 55.0
	SustainedWindow = 60
)

// Tuning is the set of live preference values the governor is allowed to
// adjust. All fields must be non-nil.
type Tuning struct {
	MaxTextureSize  *prefs.Int
	Multisample     *prefs.Bool
	PostProcessing  *prefs.Bool
	AllowFrameSkip  *prefs.Bool
	AudioBufferSize *prefs.Int
}

// saved preference values for when the mitigation bundle is lifted
type savedTuning struct {
	maxTextureSize  int
	multisample     bool
	postProcessing  bool
	allowFrameSkip  bool
	audioBufferSize int
}

// Governor applies and lifts the mitigation bundle. Step() is called once
// per frame from the driver's goroutine. Enable() can be called from any
// goroutine.
type Governor struct {
	crit governorCrit

	stats  *performance.Stats
	tuning Tuning
}

type governorCrit struct {
	section sync.Mutex

	enabled bool
	active  bool
	saved   savedTuning

	floor    float64
	recovery float64

	// consecutive frames below floor (when inactive) or above recovery
	// (when active)
	belowCt int
	aboveCt int
}

// NewGovernor is the preferred method of initialisation for the Governor
// type. The governor is created disabled.
func NewGovernor(tuning Tuning, stats *performance.Stats) *Governor {
	gov := &Governor{
		stats:  stats,
		tuning: tuning,
	}
	gov.crit.floor = DefaultFloor
	gov.crit.recovery = DefaultRecovery
	return gov
}

// SetThresholds changes the floor and recovery FPS values. Values at or
// below zero, or a recovery at or below the floor, are rejected silently
// and the previous thresholds kept.
func (gov *Governor) SetThresholds(floor float64, recovery float64) {
	if floor <= 0 || recovery <= floor {
		return
	}
	gov.crit.section.Lock()
	defer gov.crit.section.Unlock()
	gov.crit.floor = floor
	gov.crit.recovery = recovery
}

// Enable turns the governor on or off. Disabling a governor that has an
// active mitigation bundle lifts the bundle immediately.
func (gov *Governor) Enable(enable bool) {
	gov.crit.section.Lock()
	defer gov.crit.section.Unlock()

	if gov.crit.enabled == enable {
		return
	}
	gov.crit.enabled = enable
	gov.crit.belowCt = 0
	gov.crit.aboveCt = 0

	if !enable && gov.crit.active {
		gov.lift()
	}
}

// Enabled returns whether the governor is watching the frame rate.
func (gov *Governor) Enabled() bool {
	gov.crit.section.Lock()
	defer gov.crit.section.Unlock()
	return gov.crit.enabled
}

// Active returns whether the mitigation bundle is currently applied.
func (gov *Governor) Active() bool {
	gov.crit.section.Lock()
	defer gov.crit.section.Unlock()
	return gov.crit.active
}

// Step samples the current FPS and applies or lifts the mitigation bundle
// as required. Called once per frame. A zero FPS reading means no
// measurement has been published yet and the frame is ignored.
func (gov *Governor) Step() {
	gov.crit.section.Lock()
	defer gov.crit.section.Unlock()

	if !gov.crit.enabled {
		return
	}

	fps := gov.stats.FPS()
	if fps <= 0 {
		return
	}

	if !gov.crit.active {
		if fps < gov.crit.floor {
			gov.crit.belowCt++
			if gov.crit.belowCt >= SustainedWindow {
				gov.apply()
			}
		} else {
			gov.crit.belowCt = 0
		}
		return
	}

	if fps > gov.crit.recovery {
		gov.crit.aboveCt++
		if gov.crit.aboveCt >= SustainedWindow {
			gov.lift()
		}
	} else {
		gov.crit.aboveCt = 0
	}
}

// apply the mitigation bundle, saving the current preference values.
// critical section must be locked.
func (gov *Governor) apply() {
	gov.crit.saved = savedTuning{
		maxTextureSize:  gov.tuning.MaxTextureSize.Get(),
		multisample:     gov.tuning.Multisample.Get(),
		postProcessing:  gov.tuning.PostProcessing.Get(),
		allowFrameSkip:  gov.tuning.AllowFrameSkip.Get(),
		audioBufferSize: gov.tuning.AudioBufferSize.Get(),
	}

	gov.set(gov.tuning.MaxTextureSize, gov.crit.saved.maxTextureSize/2)
	gov.setBool(gov.tuning.Multisample, false)
	gov.setBool(gov.tuning.PostProcessing, false)
	gov.setBool(gov.tuning.AllowFrameSkip, true)
	gov.set(gov.tuning.AudioBufferSize, gov.crit.saved.audioBufferSize*2)

	gov.crit.active = true
	gov.crit.belowCt = 0
	gov.crit.aboveCt = 0

	logger.Log("govern", "frame rate below floor, reducing quality")
}

// lift the mitigation bundle, restoring the saved preference values.
// critical section must be locked.
func (gov *Governor) lift() {
	gov.set(gov.tuning.MaxTextureSize, gov.crit.saved.maxTextureSize)
	gov.setBool(gov.tuning.Multisample, gov.crit.saved.multisample)
	gov.setBool(gov.tuning.PostProcessing, gov.crit.saved.postProcessing)
	gov.setBool(gov.tuning.AllowFrameSkip, gov.crit.saved.allowFrameSkip)
	gov.set(gov.tuning.AudioBufferSize, gov.crit.saved.audioBufferSize)

	gov.crit.active = false
	gov.crit.belowCt = 0
	gov.crit.aboveCt = 0

	logger.Log("govern", "frame rate recovered, restoring quality")
}

func (gov *Governor) set(p *prefs.Int, v int) {
	if err := p.Set(v); err != nil {
		logger.Logf("govern", "%v", err)
	}
}

func (gov *Governor) setBool(p *prefs.Bool, v bool) {
	if err := p.Set(v); err != nil {
		logger.Logf("govern", "%v", err)
	}
}
