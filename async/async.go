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

// Package async is the asynchronous presentation and performance core. It
// owns every goroutine, queue and cache that sits between the emulation
// driver and the host's GPU and audio device.
//
// The driver creates one Async value at startup, calls into it once per
// emulated frame, audio DMA and coprocessor dispatch, and shuts it down at
// exit. The core never calls back into the driver. Results flow only
// through completion callbacks and the statistics counters.
//
// The individual mechanisms live in the subpackages. This package is the
// context object tying them together, replacing what would otherwise be a
// collection of process-wide singletons.
package async

import (
	"fmt"
	"runtime"
	"time"

	"github.com/jetsetilly/ultragopher/async/drawbatch"
	"github.com/jetsetilly/ultragopher/async/govern"
	"github.com/jetsetilly/ultragopher/async/limiter"
	"github.com/jetsetilly/ultragopher/async/mixer"
	"github.com/jetsetilly/ultragopher/async/presentation"
	"github.com/jetsetilly/ultragopher/async/rsp"
	"github.com/jetsetilly/ultragopher/async/texturecache"
	"github.com/jetsetilly/ultragopher/async/workers"
	"github.com/jetsetilly/ultragopher/curated"
	"github.com/jetsetilly/ultragopher/logger"
	"github.com/jetsetilly/ultragopher/performance"
)

// Timeout is the status returned by WaitTask() and WaitAll() when the tasks
// being waited on are still running at the deadline. Test with curated.Is()
// or curated.Has().
const Timeout = workers.Timeout

// sentinel error patterns for the async package.
const (
	InvalidConfig = "async: invalid config: %v"
)

// vsync modes, re-exported for the application's configuration surface.
const (
	VSyncOff      = limiter.ModeOff
	VSyncOn       = limiter.ModeOn
	VSyncAdaptive = limiter.ModeAdaptive
	VSyncHalf     = limiter.ModeHalf
)

// Config is the immutable thread topology, fixed for the lifetime of the
// Async value.
type Config struct {
	// a false AsyncGraphics means QueueFrame() presents inline on the
	// caller's goroutine
	AsyncGraphics bool

	// a false AsyncAudio means the host audio backend is expected to pull
	// from the ring on the driver's timeline rather than a device callback.
	// the ring itself behaves identically either way
	AsyncAudio bool

	// worker pool. a zero WorkerThreadCount with WorkerThreadsEnabled means
	// automatic selection, NumCPU-2 with a floor of one
	WorkerThreadsEnabled bool
	WorkerThreadCount    int

	// number of frames the presentation queue may hold. valid range is 1 to
	// 3. ignored when AsyncGraphics is false
	GraphicsQueueDepth int

	// run coprocessor tasks on a scheduler goroutine. forfeits the ordering
	// guarantee between graphics tasks and the rendering step
	ExperimentalRSPThreading bool
}

// NewConfig returns a Config with conservative defaults: asynchronous
// graphics and audio on, automatic worker count, queue depth of two,
// experimental coprocessor threading off.
func NewConfig() Config {
	return Config{
		AsyncGraphics:        true,
		AsyncAudio:           true,
		WorkerThreadsEnabled: true,
		GraphicsQueueDepth:   2,
	}
}

func (cfg Config) validate() error {
	if cfg.AsyncGraphics && (cfg.GraphicsQueueDepth < 1 || cfg.GraphicsQueueDepth > 3) {
		return fmt.Errorf("graphics queue depth must be 1 to 3 (got %d)", cfg.GraphicsQueueDepth)
	}
	if cfg.WorkerThreadCount < 0 {
		return fmt.Errorf("worker thread count must not be negative (got %d)", cfg.WorkerThreadCount)
	}
	return nil
}

// the number of workers the pool is created with.
func (cfg Config) numWorkers() int {
	if !cfg.WorkerThreadsEnabled {
		return 0
	}
	if cfg.WorkerThreadCount > 0 {
		return cfg.WorkerThreadCount
	}
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	return n
}

// Async is the explicit context object for the asynchronous core. All
// methods are documented with the goroutine they may be called from; unless
// stated otherwise that is the emulation driver's goroutine.
type Async struct {
	cfg   Config
	prefs *Preferences
	stats *performance.Stats

	queue    *presentation.Queue
	ring     *mixer.Ring
	pool     *workers.Pool
	rsp      *rsp.Scheduler
	limiter  *limiter.Limiter
	cache    *texturecache.Cache
	batcher  *drawbatch.Batcher
	governor *govern.Governor
}

// NewAsync is the preferred method of initialisation for the Async type.
//
// The presenter receives finished frames; issue receives sorted draw calls
// at every batch flush; release is told about evicted texture handles. Any
// of the three may be nil when the corresponding mechanism is unused by the
// application.
//
// On error nothing is left running.
func NewAsync(cfg Config, prf *Preferences,
	presenter presentation.Presenter,
	issue func(drawbatch.DrawCall),
	release func(handle uint32)) (*Async, error) {

	if err := cfg.validate(); err != nil {
		return nil, curated.Errorf(InvalidConfig, err)
	}
	if prf == nil {
		var err error
		prf, err = NewPreferences()
		if err != nil {
			return nil, err
		}
	}

	asy := &Async{
		cfg:   cfg,
		prefs: prf,
		stats: performance.NewStats(),
	}

	depth := 0
	if cfg.AsyncGraphics {
		depth = cfg.GraphicsQueueDepth
	}
	asy.queue = presentation.NewQueue(presenter, depth, asy.stats)
	asy.ring = mixer.NewRing(prf.AudioBufferSize.Get(), asy.stats)

	// the audio buffer size preference is live. the quality governor grows
	// it when the host is struggling and the ring must follow
	prf.AudioBufferSize.SetHookPost(func(v int) error {
		asy.ring.Resize(v)
		return nil
	})
	asy.pool = workers.NewPool(cfg.numWorkers(), asy.stats)
	asy.rsp = rsp.NewScheduler(cfg.ExperimentalRSPThreading, asy.stats)
	asy.limiter = limiter.NewLimiter(asy.stats, &prf.AllowFrameSkip, &prf.MaxConsecSkips)
	asy.cache = texturecache.NewCache(int64(prf.TextureBudget.Get()), release, asy.stats)
	asy.batcher = drawbatch.NewBatcher(drawbatch.DefaultCap, issue, asy.stats)
	asy.governor = govern.NewGovernor(govern.Tuning{
		MaxTextureSize:  &prf.MaxTextureSize,
		Multisample:     &prf.Multisample,
		PostProcessing:  &prf.PostProcessing,
		AllowFrameSkip:  &prf.AllowFrameSkip,
		AudioBufferSize: &prf.AudioBufferSize,
	}, asy.stats)

	logger.Logf("async", "graphics async=%v depth=%d workers=%d rsp threading=%v",
		cfg.AsyncGraphics, depth, cfg.numWorkers(), cfg.ExperimentalRSPThreading)

	return asy, nil
}

// Shutdown stops every goroutine owned by the core and waits for them.
// Queues are drained, not abandoned. Safe to call more than once.
func (asy *Async) Shutdown() {
	asy.rsp.Shutdown()
	asy.pool.Shutdown()
	asy.queue.Shutdown()
	asy.batcher.Begin()
	asy.cache.Clear()
	logger.Log("async", "shutdown complete")
}

// Prefs returns the live tuning surface.
func (asy *Async) Prefs() *Preferences {
	return asy.prefs
}

// Config returns the immutable thread topology the core was created with.
// The host audio backend uses AsyncAudio to decide between a device
// callback and pulling on the driver's timeline.
func (asy *Async) Config() Config {
	return asy.cfg
}

// frame presentation

// QueueFrame hands a finished frame to the presentation goroutine. Blocks
// only when the queue is already holding its full depth of frames; the
// block is counted as a GPU sync wait.
func (asy *Async) QueueFrame(pixels []byte, width int, height int) error {
	return asy.queue.QueueFrame(pixels, width, height)
}

// WaitForPresent blocks until every queued frame has been presented.
func (asy *Async) WaitForPresent() {
	asy.queue.WaitForPresent()
}

// OnVIInterrupt tells the pacer a video interrupt has occurred, feeding the
// refresh rate measurement used by the Adaptive and Half vsync modes.
func (asy *Async) OnVIInterrupt() {
	asy.limiter.OnVIInterrupt()
}

// audio

// QueueSamples pushes interleaved stereo samples into the audio ring. Never
// blocks; samples that do not fit are dropped and counted.
func (asy *Async) QueueSamples(samples []int16, sampleRate int32) {
	asy.ring.QueueSamples(samples, sampleRate)
}

// GetQueueDepth returns the number of sample frames waiting in the audio
// ring.
func (asy *Async) GetQueueDepth() int {
	return asy.ring.Depth()
}

// OnDMAComplete records the completion of an audio DMA transfer.
func (asy *Async) OnDMAComplete() {
	asy.ring.OnDMAComplete()
}

// AudioRing exposes the ring for the host audio backend to read from. The
// backend calls Read() from the audio device goroutine.
func (asy *Async) AudioRing() *mixer.Ring {
	return asy.ring
}

// worker pool

// QueueTask submits a job to the worker pool, returning its id. The
// completion callback, if any, runs on the worker's goroutine. May be
// called from any goroutine.
func (asy *Async) QueueTask(run workers.Task, onComplete workers.Completion) workers.TaskID {
	return asy.pool.Queue(run, onComplete)
}

// WaitTask blocks until the identified task has completed or the timeout
// has elapsed, in which case the returned error matches Timeout.
func (asy *Async) WaitTask(id workers.TaskID, timeout time.Duration) error {
	return asy.pool.Wait(id, timeout)
}

// WaitAll blocks until every queued task has completed or the timeout has
// elapsed, in which case the returned error matches Timeout.
func (asy *Async) WaitAll(timeout time.Duration) error {
	return asy.pool.WaitAll(timeout)
}

// coprocessor scheduler

// QueueRSPTask submits a coprocessor job. Audio jobs may be held back until
// a full batch has accumulated; graphics jobs flush any held audio first
// and are never reordered among themselves.
func (asy *Async) QueueRSPTask(kind rsp.Kind, run func()) {
	asy.rsp.Submit(rsp.Task{Kind: kind, Run: run})
}

// texture cache

// CacheTexture consults the texture cache, returning the backend handle and
// true on a hit. Called from the goroutine that owns the GPU context.
func (asy *Async) CacheTexture(key texturecache.Key) (uint32, bool) {
	return asy.cache.Lookup(key)
}

// AddToTextureCache records an uploaded texture. Returns false when the
// texture is larger than the whole cache budget and was not recorded.
// Called from the goroutine that owns the GPU context.
func (asy *Async) AddToTextureCache(key texturecache.Key, handle uint32, size int64) bool {
	return asy.cache.Add(key, handle, size)
}

// draw batching

// BeginDrawCallBatching resets the draw call accumulator for a new frame.
// Called from the goroutine that owns the GPU context.
func (asy *Async) BeginDrawCallBatching() {
	asy.batcher.Begin()
}

// AddDrawCall appends a draw submission to the current batch, flushing
// automatically when the batch is full. Called from the goroutine that owns
// the GPU context.
func (asy *Async) AddDrawCall(dc drawbatch.DrawCall) {
	asy.batcher.Add(dc)
}

// FlushDrawCalls sorts the pending batch by GPU state and issues it.
// Called from the goroutine that owns the GPU context.
func (asy *Async) FlushDrawCalls() {
	asy.batcher.Flush()
}

// frame pacing

// BeginFrame marks the start of the per-frame work. It also advances the
// texture cache's frame counter, unpinning the previous frame's textures.
func (asy *Async) BeginFrame() {
	asy.limiter.BeginFrame()
	asy.cache.NewFrame()
}

// EndFrame marks the end of the per-frame work. Held audio batches are
// flushed, the pacing wait is performed and the quality governor takes its
// per-frame sample.
func (asy *Async) EndFrame() {
	asy.rsp.FrameBoundary()
	asy.limiter.EndFrame()
	asy.governor.Step()
}

// ShouldSkipFrame reports whether the driver would do better to not render
// the next frame. Only ever true when frame skipping is allowed and the
// recent frame times have been sustained over budget.
func (asy *Async) ShouldSkipFrame() bool {
	return asy.limiter.ShouldSkipFrame()
}

// SetVSyncMode changes the pacing strategy. May be called from any
// goroutine.
func (asy *Async) SetVSyncMode(m limiter.Mode) {
	asy.limiter.SetMode(m)
}

// GetVSyncMode returns the current pacing strategy.
func (asy *Async) GetVSyncMode() limiter.Mode {
	return asy.limiter.GetMode()
}

// SetTargetFPS overrides the target frame rate. A value of zero or below
// returns the pacer to the measured refresh rate. May be called from any
// goroutine.
func (asy *Async) SetTargetFPS(fps float64) {
	asy.limiter.SetTargetFPS(fps)
}

// statistics

// GetStats returns a copy of the statistics counters. May be called from
// any goroutine.
func (asy *Async) GetStats() performance.Snapshot {
	return asy.stats.Snapshot()
}

// ResetStats zeroes the statistics counters. May be called from any
// goroutine.
func (asy *Async) ResetStats() {
	asy.stats.Reset()
}

// Stats returns the live counters for packages that record into them.
func (asy *Async) Stats() *performance.Stats {
	return asy.stats
}

// quality governor

// EnableAggressiveOptimizations turns the adaptive quality governor on or
// off. Turning it off lifts any mitigations currently applied. May be
// called from any goroutine.
func (asy *Async) EnableAggressiveOptimizations(enable bool) {
	asy.governor.Enable(enable)
}
