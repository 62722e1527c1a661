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

// Package rsp schedules the signal-processor tasks emitted by the emulation
// driver once per emulated frame. Tasks are tagged as either Audio (mixing
// microprograms) or Graphics (geometry microprograms).
//
// Audio tasks are accumulated into batches of up to eight and dispatched
// together, amortising the per-task overhead. Whenever both kinds are
// pending, audio is serviced first: an audio underrun is audible while a
// graphics backlog is only a performance statistic.
//
// Graphics tasks are never executed off the driver's goroutine by default.
// The signal processor's graphics microprogram has a true data dependency on
// the rendering step that follows it, so moving it off the main timeline is
// unsafe. The experimental threading mode does exactly that anyway, behind
// an explicit opt-in flag and with no correctness guarantee - see the
// ExperimentalRSPThreading commentary in the async package.
package rsp

import (
	"sync"

	"github.com/jetsetilly/ultragopher/logger"
	"github.com/jetsetilly/ultragopher/performance"
)

// AudioBatchSize is the maximum number of audio tasks dispatched together.
const AudioBatchSize = 8

// Kind distinguishes the two task variants.
type Kind int

// List of valid Kind values.
const (
	KindAudio Kind = iota
	KindGraphics
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindGraphics:
		return "graphics"
	}
	return "unknown"
}

// Task is a single signal-processor job.
type Task struct {
	Kind Kind
	Run  func()

	// sequence number assigned by the scheduler at submission
	Sequence uint64
}

// Scheduler batches and prioritises signal-processor tasks.
//
// Submit() and FrameBoundary() must only be called from the emulation
// driver's goroutine.
type Scheduler struct {
	stats *performance.Stats

	// next sequence number to be assigned
	sequence uint64

	// audio tasks waiting for a full batch. only ever touched from the
	// driver's goroutine
	audioBatch []Task

	// non-nil only in the experimental threading mode
	work chan []Task
	quit chan bool
	done chan bool

	crit    sync.Mutex
	running bool
}

// NewScheduler is the preferred method of initialisation for the Scheduler
// type.
//
// With experimental set, a scheduler goroutine is created and every
// dispatched task executes there instead of on the driver's goroutine. This
// forfeits the guarantee that a graphics task has finished by the time the
// driver reaches the rendering step.
func NewScheduler(experimental bool, stats *performance.Stats) *Scheduler {
	sch := &Scheduler{
		stats:      stats,
		audioBatch: make([]Task, 0, AudioBatchSize),
	}

	if !experimental {
		return sch
	}

	sch.work = make(chan []Task, 2)
	sch.quit = make(chan bool)
	sch.done = make(chan bool)
	sch.running = true

	go sch.service()

	logger.Log("rsp", "experimental coprocessor threading enabled")

	return sch
}

func (sch *Scheduler) service() {
	defer close(sch.done)

	for {
		select {
		case batch := <-sch.work:
			sch.run(batch)
		case <-sch.quit:
			for {
				select {
				case batch := <-sch.work:
					sch.run(batch)
				default:
					return
				}
			}
		}
	}
}

func (sch *Scheduler) run(batch []Task) {
	for _, tsk := range batch {
		tsk.Run()
		switch tsk.Kind {
		case KindAudio:
			sch.stats.AudioTasks.Add(1)
		case KindGraphics:
			sch.stats.GraphicsTasks.Add(1)
		}
	}
}

// dispatch a batch, either inline or to the scheduler goroutine.
func (sch *Scheduler) dispatch(batch []Task) {
	if sch.work == nil {
		sch.run(batch)
		return
	}

	sch.crit.Lock()
	running := sch.running
	sch.crit.Unlock()

	if !running {
		// scheduler has been shut down. "don't start more" means new tasks
		// run inline
		sch.run(batch)
		return
	}

	sch.work <- batch
}

// flush whatever audio batch has accumulated, full or not.
func (sch *Scheduler) flushAudio() {
	if len(sch.audioBatch) == 0 {
		return
	}
	batch := sch.audioBatch
	sch.audioBatch = make([]Task, 0, AudioBatchSize)
	sch.dispatch(batch)
}

// Submit a task to the scheduler.
//
// Audio tasks may be held back until a batch of AudioBatchSize has
// accumulated or until the next graphics task or frame boundary arrives,
// whichever is first. Graphics tasks are dispatched at once, in submission
// order, after any pending audio.
func (sch *Scheduler) Submit(tsk Task) {
	tsk.Sequence = sch.sequence
	sch.sequence++

	switch tsk.Kind {
	case KindAudio:
		sch.audioBatch = append(sch.audioBatch, tsk)
		if len(sch.audioBatch) >= AudioBatchSize {
			sch.flushAudio()
		}

	case KindGraphics:
		// audio before graphics, always
		sch.flushAudio()
		sch.dispatch([]Task{tsk})
	}
}

// FrameBoundary tells the scheduler that the emulated frame has ended. A
// partial audio batch will not survive into the next frame.
func (sch *Scheduler) FrameBoundary() {
	sch.flushAudio()
}

// Pending returns the number of audio tasks waiting in the current batch.
func (sch *Scheduler) Pending() int {
	return len(sch.audioBatch)
}

// Shutdown flushes any partial batch, stops the scheduler goroutine (if
// there is one) and waits for it. Idempotent.
func (sch *Scheduler) Shutdown() {
	sch.flushAudio()

	sch.crit.Lock()
	if !sch.running {
		sch.crit.Unlock()
		return
	}
	sch.running = false
	sch.crit.Unlock()

	close(sch.quit)
	<-sch.done

	logger.Log("rsp", "shutdown")
}
