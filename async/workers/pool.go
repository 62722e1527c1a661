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

// Package workers is a pool of goroutines for background jobs that are
// provably safe to move off the main timeline: asset loads, decompression,
// save-state serialisation and the like.
//
// Tasks are independent and may complete out of order. The only ordering
// guarantee is within a single task's own lifecycle: submitted, executing,
// completed-once. The completion callback runs on the worker goroutine, so
// callback bodies must never mutate emulation state directly - the usual
// pattern is to stash a result somewhere for the driver to pick up next
// frame.
package workers

import (
	"sync"
	"time"

	"github.com/jetsetilly/ultragopher/curated"
	"github.com/jetsetilly/ultragopher/logger"
	"github.com/jetsetilly/ultragopher/performance"
)

// Timeout is the error pattern returned by the Wait functions when the wait
// period expires. Test with curated.Is(). A timeout is a status, not a
// fault: the underlying task carries on regardless.
const Timeout = "workers: timeout"

// length of the task queue. submissions beyond this block the caller until a
// worker frees a slot.
const queueLength = 64

// TaskID identifies a submitted task. IDs are never reused.
type TaskID uint64

// Task is the work itself. The return value is passed to the completion
// callback, if one was given.
type Task func() any

// Completion is called on the worker goroutine when the task has finished.
type Completion func(result any)

type task struct {
	id         TaskID
	run        Task
	onComplete Completion

	// closed when the task has completed and the callback has returned
	done chan bool
}

// Pool is a fixed-size pool of worker goroutines pulling from a shared FIFO
// queue.
type Pool struct {
	stats *performance.Stats

	// nil when the pool was created with no workers. tasks then execute
	// inline on the submitting goroutine (the synchronous fallback)
	tasks chan *task

	quit chan bool
	wg   sync.WaitGroup

	crit    sync.Mutex
	running bool
	nextID  TaskID

	// tasks submitted but not yet completed, by id. entries are removed on
	// completion, meaning that waiting on an unknown id returns immediately
	active map[TaskID]*task

	// closed when the number of active tasks returns to zero. replaced
	// whenever the count leaves zero again
	drained chan bool
}

// NewPool is the preferred method of initialisation for the Pool type.
//
// numWorkers of zero creates a pool with no goroutines at all: tasks run
// inline at submission.
func NewPool(numWorkers int, stats *performance.Stats) *Pool {
	pl := &Pool{
		stats:  stats,
		active: make(map[TaskID]*task),
	}

	if numWorkers <= 0 {
		logger.Log("workers", "running synchronously")
		return pl
	}

	pl.tasks = make(chan *task, queueLength)
	pl.quit = make(chan bool)
	pl.running = true

	for i := 0; i < numWorkers; i++ {
		pl.wg.Add(1)
		go pl.worker()
	}

	logger.Logf("workers", "%d workers", numWorkers)

	return pl
}

func (pl *Pool) worker() {
	defer pl.wg.Done()

	for {
		select {
		case tsk := <-pl.tasks:
			pl.execute(tsk)
		case <-pl.quit:
			// drain the queue before exiting
			for {
				select {
				case tsk := <-pl.tasks:
					pl.execute(tsk)
				default:
					return
				}
			}
		}
	}
}

func (pl *Pool) execute(tsk *task) {
	result := tsk.run()
	if tsk.onComplete != nil {
		tsk.onComplete(result)
	}

	pl.stats.TasksCompleted.Add(1)

	pl.crit.Lock()
	delete(pl.active, tsk.id)
	if len(pl.active) == 0 && pl.drained != nil {
		close(pl.drained)
		pl.drained = nil
	}
	pl.crit.Unlock()

	close(tsk.done)
}

// Queue submits a task to the pool. Any idle worker will pick it up in FIFO
// order. If the queue is saturated the call blocks until a slot frees; this
// is backpressure, not an error.
//
// The returned TaskID can be given to Wait().
func (pl *Pool) Queue(run Task, onComplete Completion) TaskID {
	pl.crit.Lock()
	pl.nextID++
	tsk := &task{
		id:         pl.nextID,
		run:        run,
		onComplete: onComplete,
		done:       make(chan bool),
	}
	pl.active[tsk.id] = tsk
	if pl.drained == nil {
		pl.drained = make(chan bool)
	}
	inline := pl.tasks == nil || !pl.running
	pl.crit.Unlock()

	pl.stats.TasksQueued.Add(1)

	if inline {
		// no workers (or pool already shut down). execute on the caller's
		// goroutine
		pl.execute(tsk)
		return tsk.id
	}

	select {
	case pl.tasks <- tsk:
	case <-pl.quit:
		// a Shutdown() racing the submission. the workers may already have
		// exited so the task cannot be left on the queue
		pl.execute(tsk)
	}

	return tsk.id
}

// Wait blocks until the task has completed (and its callback returned) or
// the timeout expires. A timeout is reported with an error matching the
// Timeout pattern. Waiting on a task that has already completed returns
// immediately.
func (pl *Pool) Wait(id TaskID, timeout time.Duration) error {
	pl.crit.Lock()
	tsk, ok := pl.active[id]
	pl.crit.Unlock()

	if !ok {
		return nil
	}

	select {
	case <-tsk.done:
		return nil
	case <-time.After(timeout):
		return curated.Errorf(Timeout)
	}
}

// WaitAll blocks until every submitted task has completed or the timeout
// expires. A timeout is reported with an error matching the Timeout pattern.
func (pl *Pool) WaitAll(timeout time.Duration) error {
	pl.crit.Lock()
	drained := pl.drained
	pl.crit.Unlock()

	if drained == nil {
		return nil
	}

	select {
	case <-drained:
		return nil
	case <-time.After(timeout):
		return curated.Errorf(Timeout)
	}
}

// Shutdown tells the workers to drain the queue and exit, and waits for
// them. Idempotent. Tasks submitted after Shutdown execute inline.
func (pl *Pool) Shutdown() {
	pl.crit.Lock()
	if !pl.running {
		pl.crit.Unlock()
		return
	}
	pl.running = false
	pl.crit.Unlock()

	close(pl.quit)
	pl.wg.Wait()

	// a submission racing the running check can land a task after the
	// workers have drained and exited. run it here so no Wait() caller is
	// stranded
	for {
		select {
		case tsk := <-pl.tasks:
			pl.execute(tsk)
		default:
			logger.Log("workers", "shutdown")
			return
		}
	}
}
