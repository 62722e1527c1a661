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

// Package prefs provides the value types used for the live tuning surface of
// the async core. The settings loaded at startup by the application are
// placed into prefs values and from then on can be read and written from any
// goroutine. In particular, the adaptive quality governor adjusts these
// values while the presentation and driver goroutines are reading them.
//
// The optional post-set hook runs on the goroutine that called Set(). Hook
// functions must therefore be safe to run off the main timeline.
package prefs

import (
	"fmt"
	"sync/atomic"
)

// Bool implements a boolean type in the prefs system.
type Bool struct {
	value    atomic.Bool
	hookPost func(value bool) error
}

func (p *Bool) String() string {
	return fmt.Sprintf("%v", p.value.Load())
}

// Set new value for Bool type.
func (p *Bool) Set(v bool) error {
	p.value.Store(v)
	if p.hookPost != nil {
		return p.hookPost(v)
	}
	return nil
}

// Get returns the current value.
func (p *Bool) Get() bool {
	return p.value.Load()
}

// SetHookPost sets the callback function to be called just after the value
// is updated. Note that the callback is executed even if the value hasn't
// changed.
func (p *Bool) SetHookPost(f func(value bool) error) {
	p.hookPost = f
}

// Int implements an integer type in the prefs system.
type Int struct {
	value    atomic.Int64
	hookPost func(value int) error
}

func (p *Int) String() string {
	return fmt.Sprintf("%d", p.value.Load())
}

// Set new value for Int type.
func (p *Int) Set(v int) error {
	p.value.Store(int64(v))
	if p.hookPost != nil {
		return p.hookPost(v)
	}
	return nil
}

// Get returns the current value.
func (p *Int) Get() int {
	return int(p.value.Load())
}

// SetHookPost sets the callback function to be called just after the value
// is updated.
func (p *Int) SetHookPost(f func(value int) error) {
	p.hookPost = f
}

// Float implements a float type in the prefs system.
type Float struct {
	value    atomic.Value // float64
	hookPost func(value float64) error
}

func (p *Float) String() string {
	return fmt.Sprintf("%f", p.Get())
}

// Set new value for Float type.
func (p *Float) Set(v float64) error {
	p.value.Store(v)
	if p.hookPost != nil {
		return p.hookPost(v)
	}
	return nil
}

// Get returns the current value.
func (p *Float) Get() float64 {
	v := p.value.Load()
	if v == nil {
		return 0
	}
	return v.(float64)
}

// SetHookPost sets the callback function to be called just after the value
// is updated.
func (p *Float) SetHookPost(f func(value float64) error) {
	p.hookPost = f
}
