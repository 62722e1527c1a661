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

package rsp_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/jetsetilly/ultragopher/async/rsp"
	"github.com/jetsetilly/ultragopher/performance"
	"github.com/jetsetilly/ultragopher/test"
)

// records execution order. safe for use from the scheduler goroutine in the
// experimental mode tests.
type recorder struct {
	crit  sync.Mutex
	order []string
}

func (rec *recorder) task(k rsp.Kind, label string) rsp.Task {
	return rsp.Task{
		Kind: k,
		Run: func() {
			rec.crit.Lock()
			defer rec.crit.Unlock()
			rec.order = append(rec.order, label)
		},
	}
}

func (rec *recorder) recorded() []string {
	rec.crit.Lock()
	defer rec.crit.Unlock()
	return append([]string(nil), rec.order...)
}

func TestAudioBatching(t *testing.T) {
	sts := performance.NewStats()
	sch := rsp.NewScheduler(false, sts)
	rec := &recorder{}

	// audio tasks short of a full batch are held back
	for i := 0; i < rsp.AudioBatchSize-1; i++ {
		sch.Submit(rec.task(rsp.KindAudio, "audio"))
	}
	test.ExpectEquality(t, len(rec.recorded()), 0)
	test.ExpectEquality(t, sch.Pending(), rsp.AudioBatchSize-1)

	// the eighth task completes the batch and the whole batch dispatches
	sch.Submit(rec.task(rsp.KindAudio, "audio"))
	test.ExpectEquality(t, len(rec.recorded()), rsp.AudioBatchSize)
	test.ExpectEquality(t, sch.Pending(), 0)

	test.ExpectEquality(t, sts.Snapshot().AudioTasks, int64(rsp.AudioBatchSize))
}

func TestFrameBoundaryFlushesPartialBatch(t *testing.T) {
	sts := performance.NewStats()
	sch := rsp.NewScheduler(false, sts)
	rec := &recorder{}

	sch.Submit(rec.task(rsp.KindAudio, "audio"))
	sch.Submit(rec.task(rsp.KindAudio, "audio"))
	test.ExpectEquality(t, len(rec.recorded()), 0)

	sch.FrameBoundary()
	test.ExpectEquality(t, len(rec.recorded()), 2)
}

func TestAudioPriority(t *testing.T) {
	sts := performance.NewStats()
	sch := rsp.NewScheduler(false, sts)
	rec := &recorder{}

	// audio submitted first but held in a partial batch; the graphics task
	// must not overtake it
	sch.Submit(rec.task(rsp.KindAudio, "audio"))
	sch.Submit(rec.task(rsp.KindGraphics, "graphics"))

	order := rec.recorded()
	test.DemandEquality(t, len(order), 2)
	test.ExpectEquality(t, order[0], "audio")
	test.ExpectEquality(t, order[1], "graphics")
}

func TestGraphicsOrder(t *testing.T) {
	sts := performance.NewStats()
	sch := rsp.NewScheduler(false, sts)
	rec := &recorder{}

	for i := 0; i < 10; i++ {
		sch.Submit(rec.task(rsp.KindGraphics, fmt.Sprintf("graphics %d", i)))
	}

	order := rec.recorded()
	test.DemandEquality(t, len(order), 10)
	for i := range order {
		test.ExpectEquality(t, order[i], fmt.Sprintf("graphics %d", i))
	}
}

// the experimental mode moves execution to the scheduler goroutine. note
// that graphics tasks are still executed in submission order relative to one
// another - what is forfeited is the guarantee that they have finished by
// the time Submit() returns.
func TestExperimentalThreading(t *testing.T) {
	sts := performance.NewStats()
	sch := rsp.NewScheduler(true, sts)
	rec := &recorder{}

	for i := 0; i < 10; i++ {
		sch.Submit(rec.task(rsp.KindGraphics, fmt.Sprintf("graphics %d", i)))
	}
	sch.Submit(rec.task(rsp.KindAudio, "audio"))

	// shutdown drains the work queue, so everything has executed by the
	// time it returns
	sch.Shutdown()

	order := rec.recorded()
	test.DemandEquality(t, len(order), 11)
	for i := 0; i < 10; i++ {
		test.ExpectEquality(t, order[i], fmt.Sprintf("graphics %d", i))
	}
	test.ExpectEquality(t, order[10], "audio")
}

func TestShutdownIdempotence(t *testing.T) {
	sts := performance.NewStats()
	sch := rsp.NewScheduler(true, sts)
	sch.Shutdown()
	sch.Shutdown()
}
