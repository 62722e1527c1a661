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

package async_test

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/jetsetilly/ultragopher/async"
	"github.com/jetsetilly/ultragopher/async/drawbatch"
	"github.com/jetsetilly/ultragopher/async/govern"
	"github.com/jetsetilly/ultragopher/async/presentation"
	"github.com/jetsetilly/ultragopher/async/rsp"
	"github.com/jetsetilly/ultragopher/async/texturecache"
	"github.com/jetsetilly/ultragopher/curated"
	"github.com/jetsetilly/ultragopher/test"
)

// every test shuts its Async value down. no goroutine may outlive its test
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingPresenter struct {
	crit      sync.Mutex
	frameNums []uint64
}

func (p *recordingPresenter) Present(frm presentation.Frame) error {
	p.crit.Lock()
	defer p.crit.Unlock()
	p.frameNums = append(p.frameNums, frm.FrameNum)
	return nil
}

func (p *recordingPresenter) presented() []uint64 {
	p.crit.Lock()
	defer p.crit.Unlock()
	return append([]uint64(nil), p.frameNums...)
}

func TestConfigValidation(t *testing.T) {
	cfg := async.NewConfig()
	cfg.GraphicsQueueDepth = 4
	_, err := async.NewAsync(cfg, nil, nil, nil, nil)
	test.ExpectFailure(t, err)
	test.ExpectEquality(t, curated.Is(err, async.InvalidConfig), true)

	cfg = async.NewConfig()
	cfg.WorkerThreadCount = -1
	_, err = async.NewAsync(cfg, nil, nil, nil, nil)
	test.ExpectFailure(t, err)

	// queue depth is not checked when graphics is synchronous
	cfg = async.NewConfig()
	cfg.AsyncGraphics = false
	cfg.GraphicsQueueDepth = 0
	asy, err := async.NewAsync(cfg, nil, nil, nil, nil)
	test.DemandSuccess(t, err)
	asy.Shutdown()
}

func TestFramePresentationThroughFacade(t *testing.T) {
	pres := &recordingPresenter{}
	asy, err := async.NewAsync(async.NewConfig(), nil, pres, nil, nil)
	test.DemandSuccess(t, err)
	defer asy.Shutdown()

	for i := 0; i < 20; i++ {
		test.DemandSuccess(t, asy.QueueFrame([]byte{0}, 1, 1))
	}
	asy.WaitForPresent()

	got := pres.presented()
	test.DemandEquality(t, len(got), 20)
	for i, n := range got {
		test.ExpectEquality(t, n, uint64(i))
	}
	test.ExpectEquality(t, asy.GetStats().FramesPresented, 20)
}

func TestAudioThroughFacade(t *testing.T) {
	asy, err := async.NewAsync(async.NewConfig(), nil, nil, nil, nil)
	test.DemandSuccess(t, err)
	defer asy.Shutdown()

	samples := make([]int16, 500*2)
	asy.QueueSamples(samples, 44100)
	test.ExpectEquality(t, asy.GetQueueDepth(), 500)

	asy.OnDMAComplete()

	// Read() returns samples, not sample frames
	buf := make([]int16, 500*2)
	test.ExpectEquality(t, asy.AudioRing().Read(buf), 500*2)
	test.ExpectEquality(t, asy.GetQueueDepth(), 0)
}

func TestWorkersThroughFacade(t *testing.T) {
	asy, err := async.NewAsync(async.NewConfig(), nil, nil, nil, nil)
	test.DemandSuccess(t, err)
	defer asy.Shutdown()

	var crit sync.Mutex
	results := make(map[int]bool)

	for i := 0; i < 10; i++ {
		i := i
		asy.QueueTask(func() any {
			return i
		}, func(result any) {
			crit.Lock()
			defer crit.Unlock()
			results[result.(int)] = true
		})
	}

	test.ExpectSuccess(t, asy.WaitAll(5*time.Second))

	crit.Lock()
	defer crit.Unlock()
	test.ExpectEquality(t, len(results), 10)
}

func TestWaitTaskTimeoutThroughFacade(t *testing.T) {
	asy, err := async.NewAsync(async.NewConfig(), nil, nil, nil, nil)
	test.DemandSuccess(t, err)
	defer asy.Shutdown()

	release := make(chan bool)
	id := asy.QueueTask(func() any {
		<-release
		return nil
	}, nil)

	err = asy.WaitTask(id, 10*time.Millisecond)
	test.ExpectFailure(t, err)
	test.ExpectEquality(t, curated.Is(err, async.Timeout), true)

	close(release)
	test.ExpectSuccess(t, asy.WaitAll(5*time.Second))
}

func TestRSPThroughFacade(t *testing.T) {
	asy, err := async.NewAsync(async.NewConfig(), nil, nil, nil, nil)
	test.DemandSuccess(t, err)
	defer asy.Shutdown()

	var ran []string
	for i := 0; i < 3; i++ {
		asy.QueueRSPTask(rsp.KindAudio, func() {
			ran = append(ran, "audio")
		})
	}

	// audio tasks are held for batching until the frame boundary
	test.ExpectEquality(t, len(ran), 0)

	asy.BeginFrame()
	asy.EndFrame()
	test.ExpectEquality(t, len(ran), 3)
}

func TestTextureCacheThroughFacade(t *testing.T) {
	var released []uint32
	asy, err := async.NewAsync(async.NewConfig(), nil, nil, nil, func(handle uint32) {
		released = append(released, handle)
	})
	test.DemandSuccess(t, err)
	defer asy.Shutdown()

	texels := []byte{1, 2, 3, 4}
	key := texturecache.Key{
		Addr: 0x1000, Width: 2, Height: 2, Format: 1,
		Hash: texturecache.HashTexels(texels),
	}

	_, ok := asy.CacheTexture(key)
	test.ExpectEquality(t, ok, false)

	test.ExpectEquality(t, asy.AddToTextureCache(key, 7, 4), true)

	handle, ok := asy.CacheTexture(key)
	test.ExpectEquality(t, ok, true)
	test.ExpectEquality(t, handle, 7)

	// shutdown clears the cache, releasing the handle
	asy.Shutdown()
	test.DemandEquality(t, len(released), 1)
	test.ExpectEquality(t, released[0], 7)
}

func TestDrawBatchingThroughFacade(t *testing.T) {
	var issued []drawbatch.DrawCall
	asy, err := async.NewAsync(async.NewConfig(), nil, nil, func(dc drawbatch.DrawCall) {
		issued = append(issued, dc)
	}, nil)
	test.DemandSuccess(t, err)
	defer asy.Shutdown()

	asy.BeginDrawCallBatching()
	asy.AddDrawCall(drawbatch.DrawCall{State: drawbatch.State{Texture: 2}})
	asy.AddDrawCall(drawbatch.DrawCall{State: drawbatch.State{Texture: 1}})
	asy.FlushDrawCalls()

	test.DemandEquality(t, len(issued), 2)
	test.ExpectEquality(t, issued[0].State.Texture, 1)
	test.ExpectEquality(t, issued[1].State.Texture, 2)
	test.ExpectEquality(t, asy.GetStats().DrawCalls, 2)
}

func TestStatsResetThroughFacade(t *testing.T) {
	pres := &recordingPresenter{}
	asy, err := async.NewAsync(async.NewConfig(), nil, pres, nil, nil)
	test.DemandSuccess(t, err)
	defer asy.Shutdown()

	test.DemandSuccess(t, asy.QueueFrame([]byte{0}, 1, 1))
	asy.WaitForPresent()
	test.ExpectEquality(t, asy.GetStats().FramesPresented, 1)

	asy.ResetStats()
	test.ExpectEquality(t, asy.GetStats().FramesPresented, 0)
}

func TestAggressiveOptimizationsThroughFacade(t *testing.T) {
	asy, err := async.NewAsync(async.NewConfig(), nil, nil, nil, nil)
	test.DemandSuccess(t, err)
	defer asy.Shutdown()

	before := asy.Prefs().MaxTextureSize.Get()

	// the governor only reacts to a published FPS measurement. enabling and
	// disabling with no measurement leaves the preferences alone
	asy.EnableAggressiveOptimizations(true)
	asy.BeginFrame()
	asy.EndFrame()
	asy.EnableAggressiveOptimizations(false)

	test.ExpectEquality(t, asy.Prefs().MaxTextureSize.Get(), before)
}

func TestGovernorGrowsAudioRing(t *testing.T) {
	asy, err := async.NewAsync(async.NewConfig(), nil, nil, nil, nil)
	test.DemandSuccess(t, err)
	defer asy.Shutdown()

	test.DemandEquality(t, asy.AudioRing().Capacity(), asy.Prefs().AudioBufferSize.Get())
	before := asy.Prefs().AudioBufferSize.Get()

	// queue some audio so the resize has something to carry over
	asy.QueueSamples(make([]int16, 100*2), 44100)

	// hold the measured frame rate below the floor for the sustained
	// window. VSync is off so the loop completes well inside the limiter's
	// re-measurement period and the published figure stands
	asy.SetVSyncMode(async.VSyncOff)
	asy.EnableAggressiveOptimizations(true)
	asy.Stats().PublishFPS(30)
	for i := 0; i < govern.SustainedWindow; i++ {
		asy.BeginFrame()
		asy.EndFrame()
	}

	// the audio buffer size mitigation must reach the ring itself, not
	// just the preference value
	test.ExpectEquality(t, asy.Prefs().AudioBufferSize.Get(), before*2)
	test.ExpectEquality(t, asy.AudioRing().Capacity(), before*2)
	test.ExpectEquality(t, asy.GetQueueDepth(), 100)
}

func TestShutdownIdempotence(t *testing.T) {
	asy, err := async.NewAsync(async.NewConfig(), nil, nil, nil, nil)
	test.DemandSuccess(t, err)

	asy.Shutdown()
	asy.Shutdown()
}

func TestVSyncModeThroughFacade(t *testing.T) {
	asy, err := async.NewAsync(async.NewConfig(), nil, nil, nil, nil)
	test.DemandSuccess(t, err)
	defer asy.Shutdown()

	asy.SetVSyncMode(async.VSyncAdaptive)
	test.ExpectEquality(t, asy.GetVSyncMode(), async.VSyncAdaptive)

	asy.SetTargetFPS(30)
	asy.SetVSyncMode(async.VSyncOff)
	test.ExpectEquality(t, asy.GetVSyncMode(), async.VSyncOff)
}
