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

// Package drawbatch accumulates a frame's draw submissions and issues them
// sorted by GPU state so that submissions sharing a texture and blend/raster
// state execute consecutively. The visual result is unaffected - the
// caller's blend modes are state-partition-safe by contract - only the
// number of GPU state changes is reduced.
//
// Like the texture cache this is frame-scoped state, touched only from the
// goroutine that issues GPU calls. No locks.
package drawbatch

import (
	"sort"

	"github.com/jetsetilly/ultragopher/performance"
)

// DefaultCap is the batch size at which AddDrawCall() flushes automatically.
const DefaultCap = 256

// State is the GPU state a draw call requires. It is also the sort key for
// batching: texture first, blend and raster state after. Texture binds are
// the most expensive transition so they take the most significant position.
type State struct {
	Texture uint32
	Blend   uint8
	Raster  uint8
}

func (s State) less(o State) bool {
	if s.Texture != o.Texture {
		return s.Texture < o.Texture
	}
	if s.Blend != o.Blend {
		return s.Blend < o.Blend
	}
	return s.Raster < o.Raster
}

// DrawCall is a single draw submission and the state it requires.
type DrawCall struct {
	State    State
	Vertices []float32
}

// Batcher is the per-frame draw call accumulator.
type Batcher struct {
	stats *performance.Stats

	// the function that actually issues a draw call to the rendering
	// backend. called from Flush(), in sorted order
	issue func(DrawCall)

	cap     int
	pending []DrawCall
}

// NewBatcher is the preferred method of initialisation for the Batcher type.
// A cap of zero or below selects DefaultCap.
func NewBatcher(cap int, issue func(DrawCall), stats *performance.Stats) *Batcher {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Batcher{
		stats:   stats,
		issue:   issue,
		cap:     cap,
		pending: make([]DrawCall, 0, cap),
	}
}

// Begin resets the accumulator for a new frame. Pending draw calls from the
// previous frame are discarded, not issued; the caller is expected to have
// flushed at the end of the frame.
func (bat *Batcher) Begin() {
	bat.pending = bat.pending[:0]
}

// Add appends a draw call to the batch. When the batch reaches its cap it is
// flushed automatically.
func (bat *Batcher) Add(dc DrawCall) {
	bat.pending = append(bat.pending, dc)
	if len(bat.pending) >= bat.cap {
		bat.Flush()
	}
}

// Flush sorts the pending draw calls by state key and issues them in that
// order. The sort is stable: submissions sharing a state key keep their
// submission order.
func (bat *Batcher) Flush() {
	if len(bat.pending) == 0 {
		return
	}

	sort.SliceStable(bat.pending, func(i, j int) bool {
		return bat.pending[i].State.less(bat.pending[j].State)
	})

	var stateChanges int64
	var current State
	for i, dc := range bat.pending {
		if i == 0 || dc.State != current {
			current = dc.State
			stateChanges++
		}
		if bat.issue != nil {
			bat.issue(dc)
		}
	}

	bat.stats.DrawCalls.Add(int64(len(bat.pending)))
	bat.stats.StateChanges.Add(stateChanges)
	bat.stats.BatchFlushes.Add(1)

	bat.pending = bat.pending[:0]
}

// Pending returns the number of draw calls waiting in the batch.
func (bat *Batcher) Pending() int {
	return len(bat.pending)
}
