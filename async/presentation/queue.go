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

// Package presentation decouples the emulation driver from the display. The
// driver queues finished frames and carries on emulating; the GPU upload and
// present happen later on the presentation goroutine.
//
// The queue is the sole backpressure point between the driver and the
// display. It is bounded (one to three entries) and when it is full
// QueueFrame() blocks the driver until the presentation goroutine frees a
// slot. Frames are never dropped and never reordered: if presentation cannot
// keep up the producer stalls, which is always preferable to silently losing
// or shuffling frames.
package presentation

import (
	"sync"
	"time"

	"github.com/jetsetilly/ultragopher/curated"
	"github.com/jetsetilly/ultragopher/logger"
	"github.com/jetsetilly/ultragopher/performance"
)

// sentinel error patterns for the presentation package.
const (
	NotRunning = "presentation: not running"
)

// Frame is a single finished frame as produced by the emulation driver. The
// queue owns the entry exclusively from QueueFrame() until the presenter has
// consumed it.
type Frame struct {
	Pixels []byte
	Width  int
	Height int

	// monotonically increasing index, assigned by the queue
	FrameNum uint64

	// the time the frame was queued. used for the present latency
	// measurement
	queued time.Time
}

// Presenter is the boundary to the rendering backend. Present() is only ever
// called from the presentation goroutine (or, in the synchronous fallback,
// from the driver's goroutine) so implementations do not need to be
// concurrent-safe.
type Presenter interface {
	Present(Frame) error
}

// Queue is a bounded FIFO of finished frames and the goroutine that consumes
// it.
type Queue struct {
	presenter Presenter
	stats     *performance.Stats

	// nil when running synchronously (the degraded/fallback mode)
	frames chan Frame

	// the frame index assigned to the next queued frame. only ever touched
	// from the driver's goroutine
	frameNum uint64

	// pending is the number of frames queued but not yet presented. the
	// condition is signalled on every present so that WaitForPresent() can
	// wake
	crit    sync.Mutex
	cond    *sync.Cond
	pending int
	running bool

	quit chan bool
	done chan bool
}

// NewQueue is the preferred method of initialisation for the Queue type.
//
// Depth is the maximum number of frames held by the queue. A depth of zero
// means no presentation goroutine is created at all: QueueFrame() presents
// inline on the caller's goroutine. This is the synchronous fallback
// required when asynchronous graphics is disabled or unavailable.
func NewQueue(presenter Presenter, depth int, stats *performance.Stats) *Queue {
	qu := &Queue{
		presenter: presenter,
		stats:     stats,
	}
	qu.cond = sync.NewCond(&qu.crit)

	if depth <= 0 {
		logger.Log("presentation", "running synchronously")
		return qu
	}

	qu.frames = make(chan Frame, depth)
	qu.quit = make(chan bool)
	qu.done = make(chan bool)
	qu.running = true

	go qu.service()

	logger.Logf("presentation", "queue depth %d", depth)

	return qu
}

// the presentation goroutine. consumes frames in the exact order queued
// until told to quit, at which point it drains whatever remains and exits.
func (qu *Queue) service() {
	defer close(qu.done)

	for {
		select {
		case frm := <-qu.frames:
			qu.present(frm)
		case <-qu.quit:
			for {
				select {
				case frm := <-qu.frames:
					qu.present(frm)
				default:
					return
				}
			}
		}
	}
}

func (qu *Queue) present(frm Frame) {
	err := qu.presenter.Present(frm)
	if err != nil {
		// a failed present is logged, never propagated across the goroutine
		// boundary
		logger.Logf("presentation", "present: %v", err)
	}

	qu.stats.FramesPresented.Add(1)
	qu.stats.PresentLatency.Add(int64(time.Since(frm.queued)))

	qu.crit.Lock()
	qu.pending--
	qu.cond.Broadcast()
	qu.crit.Unlock()
}

// QueueFrame hands a finished frame to the presentation goroutine. Must only
// be called from the emulation driver's goroutine.
//
// If the queue is full the call blocks until the presentation goroutine
// frees a slot. The stall is counted in the stats aggregator.
//
// The queue owns the pixel buffer from this point. The driver must not touch
// the memory again until WaitForPresent() has returned.
func (qu *Queue) QueueFrame(pixels []byte, width int, height int) error {
	frm := Frame{
		Pixels:   pixels,
		Width:    width,
		Height:   height,
		FrameNum: qu.frameNum,
		queued:   time.Now(),
	}
	qu.frameNum++

	qu.stats.FramesQueued.Add(1)

	// synchronous fallback
	if qu.frames == nil {
		qu.crit.Lock()
		qu.pending++
		qu.crit.Unlock()
		qu.present(frm)
		return nil
	}

	qu.crit.Lock()
	if !qu.running {
		qu.crit.Unlock()
		return curated.Errorf(NotRunning)
	}
	qu.pending++
	qu.crit.Unlock()

	// fast path. queue has a free slot
	select {
	case qu.frames <- frm:
		return nil
	default:
	}

	// ** presentation not keeping up with emulation **
	qu.stats.GPUSyncWaits.Add(1)

	select {
	case qu.frames <- frm:
	case <-qu.quit:
		// a Shutdown() racing the blocking send. the frame is abandoned
		// rather than the driver's goroutine
		qu.crit.Lock()
		qu.pending--
		qu.cond.Broadcast()
		qu.crit.Unlock()
		return curated.Errorf(NotRunning)
	}

	return nil
}

// WaitForPresent blocks the caller until every queued frame has been
// presented. The driver must call this before mutating pixel memory it has
// previously queued.
func (qu *Queue) WaitForPresent() {
	qu.crit.Lock()
	defer qu.crit.Unlock()
	for qu.pending > 0 {
		qu.cond.Wait()
	}
}

// Pending returns the number of frames queued but not yet presented.
func (qu *Queue) Pending() int {
	qu.crit.Lock()
	defer qu.crit.Unlock()
	return qu.pending
}

// Shutdown tells the presentation goroutine to drain the queue and exit, and
// waits for it to do so. It is idempotent and safe to call on a synchronous
// queue.
func (qu *Queue) Shutdown() {
	qu.crit.Lock()
	if !qu.running {
		qu.crit.Unlock()
		return
	}
	qu.running = false
	qu.crit.Unlock()

	close(qu.quit)
	<-qu.done

	// a producer racing the running check can land a frame after the
	// service goroutine has drained and exited. settle the accounting so
	// that WaitForPresent() callers are not stranded
	for {
		select {
		case <-qu.frames:
			qu.crit.Lock()
			qu.pending--
			qu.cond.Broadcast()
			qu.crit.Unlock()
		default:
			logger.Log("presentation", "shutdown")
			return
		}
	}
}
