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

package async

import (
	"github.com/jetsetilly/ultragopher/curated"
	"github.com/jetsetilly/ultragopher/prefs"
)

// Preferences is the live tuning surface of the async core. Unlike Config
// these values can change at any time after initialisation, from any
// goroutine. The quality governor writes to them while the driver and the
// rendering backend read them.
type Preferences struct {
	// frame pacing
	AllowFrameSkip prefs.Bool
	MaxConsecSkips prefs.Int

	// rendering quality
	TextureBudget  prefs.Int
	MaxTextureSize prefs.Int
	Multisample    prefs.Bool
	Anisotropy     prefs.Int
	PostProcessing prefs.Bool

	// audio. buffer size is in sample frames
	AudioBufferSize prefs.Int
}

// reasonable defaults for a mid-range host
const (
	defTextureBudget   = 64 * 1024 * 1024
	defMaxTextureSize  = 2048
	defAnisotropy      = 4
	defAudioBufferSize = 2048
	defMaxConsecSkips  = 3
)

// NewPreferences is the preferred method of initialisation for the
// Preferences type.
func NewPreferences() (*Preferences, error) {
	p := &Preferences{}
	if err := p.SetDefaults(); err != nil {
		return nil, curated.Errorf("async: %v", err)
	}
	return p, nil
}

// SetDefaults reverts all preferences to their default values.
func (p *Preferences) SetDefaults() error {
	if err := p.AllowFrameSkip.Set(false); err != nil {
		return err
	}
	if err := p.MaxConsecSkips.Set(defMaxConsecSkips); err != nil {
		return err
	}
	if err := p.TextureBudget.Set(defTextureBudget); err != nil {
		return err
	}
	if err := p.MaxTextureSize.Set(defMaxTextureSize); err != nil {
		return err
	}
	if err := p.Multisample.Set(true); err != nil {
		return err
	}
	if err := p.Anisotropy.Set(defAnisotropy); err != nil {
		return err
	}
	if err := p.PostProcessing.Set(true); err != nil {
		return err
	}
	if err := p.AudioBufferSize.Set(defAudioBufferSize); err != nil {
		return err
	}
	return nil
}
