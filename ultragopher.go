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

package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"runtime"

	"github.com/jetsetilly/ultragopher/async"
	"github.com/jetsetilly/ultragopher/async/rsp"
	"github.com/jetsetilly/ultragopher/gui/sdlaudio"
	"github.com/jetsetilly/ultragopher/gui/sdlplay"
	"github.com/jetsetilly/ultragopher/logger"
	"github.com/jetsetilly/ultragopher/statsview"
	"github.com/jetsetilly/ultragopher/version"
	"github.com/jetsetilly/ultragopher/wavwriter"
)

// demo display and audio parameters. the demo stands in for the emulation
// driver, producing a test pattern and a test tone once per frame
const (
	demoWidth      = 320
	demoHeight     = 240
	demoSampleRate = 44100
	demoFrameRate  = 60
)

func main() {
	// SDL window events must be serviced on the main thread
	runtime.LockOSThread()

	showVersion := flag.Bool("version", false, "print version and exit")
	useLog := flag.Bool("log", false, "echo log to stderr")
	useStats := flag.Bool("statsview", false, "run stats server (requires the statsview build tag)")
	wavFile := flag.String("wav", "", "record audio to WAV file")
	scale := flag.Float64("scale", 2.0, "window scale")
	frames := flag.Int("frames", 0, "exit after this many frames (0 = run until quit)")
	workers := flag.Int("workers", 0, "worker count (0 = automatic)")
	queueDepth := flag.Int("depth", 2, "graphics queue depth (1 to 3)")
	rspThreading := flag.Bool("rsp", false, "experimental coprocessor threading")
	flag.Parse()

	if *showVersion {
		vers, rev, _ := version.Version()
		fmt.Printf("%s %s (%s)\n", version.ApplicationName, vers, rev)
		os.Exit(0)
	}

	if *useLog {
		logger.SetEcho(os.Stderr)
	}

	if *useStats {
		if statsview.Available() {
			statsview.Launch(os.Stdout)
		} else {
			fmt.Println("statsview not available in this build")
		}
	}

	vers, rev, _ := version.Version()
	logger.Logf(version.ApplicationName, "%s (%s)", vers, rev)

	if err := run(*scale, *frames, *workers, *queueDepth, *rspThreading, *wavFile); err != nil {
		fmt.Printf("* %v\n", err)
		os.Exit(10)
	}
}

func run(scale float64, frames int, workers int, queueDepth int, rspThreading bool, wavFile string) error {
	// the demo drives the core from the main goroutine so graphics runs in
	// the synchronous fallback. SDL rendering is not safe off the thread
	// that created the window
	cfg := async.NewConfig()
	cfg.AsyncGraphics = false
	cfg.GraphicsQueueDepth = queueDepth
	cfg.WorkerThreadCount = workers
	cfg.ExperimentalRSPThreading = rspThreading

	scr, err := sdlplay.NewSdlPlay(float32(scale))
	if err != nil {
		return err
	}
	defer scr.Destroy()

	asy, err := async.NewAsync(cfg, nil, scr, nil, sdlplay.Release)
	if err != nil {
		return err
	}
	defer asy.Shutdown()

	aud, err := sdlaudio.NewAudio(asy.AudioRing(), cfg.AsyncAudio)
	if err != nil {
		return err
	}
	defer aud.EndMixing()

	var wav *wavwriter.WavWriter
	if wavFile != "" {
		wav, err = wavwriter.New(wavFile)
		if err != nil {
			return err
		}
		defer wav.EndMixing()
	}

	asy.SetVSyncMode(async.VSyncOn)
	asy.SetTargetFPS(demoFrameRate)

	intChan := make(chan os.Signal, 1)
	signal.Notify(intChan, os.Interrupt)

	pixels := make([]byte, demoWidth*demoHeight*4)
	samples := make([]int16, demoSampleRate/demoFrameRate*2)

	frameCt := 0
	for {
		select {
		case <-intChan:
			printStats(asy)
			return nil
		default:
		}

		if !scr.Service() {
			printStats(asy)
			return nil
		}

		asy.BeginFrame()

		// the coprocessor mixes the tone and draws the pattern, standing in
		// for the console's signal processor
		frame := frameCt
		asy.QueueRSPTask(rsp.KindAudio, func() {
			testTone(samples, frame)
			asy.QueueSamples(samples, demoSampleRate)
		})
		asy.QueueRSPTask(rsp.KindGraphics, func() {
			testPattern(pixels, frame)
		})

		if !asy.ShouldSkipFrame() {
			if err := asy.QueueFrame(pixels, demoWidth, demoHeight); err != nil {
				return err
			}
		}

		if wav != nil {
			_ = wav.SetAudio(samples, demoSampleRate)
		}
		if !cfg.AsyncAudio {
			if err := aud.Service(); err != nil {
				logger.Logf("demo", "%v", err)
			}
		}

		asy.OnVIInterrupt()
		asy.OnDMAComplete()
		asy.EndFrame()

		frameCt++
		if frames > 0 && frameCt >= frames {
			printStats(asy)
			return nil
		}
	}
}

// a sine tone that steps up a semitone every second.
func testTone(samples []int16, frame int) {
	freq := 220.0 * math.Pow(2, float64(frame/demoFrameRate%12)/12)
	step := freq / demoSampleRate * 2 * math.Pi
	phase := float64(frame*len(samples)/2) * step

	for i := 0; i < len(samples); i += 2 {
		v := int16(math.Sin(phase) * 2000)
		samples[i] = v
		samples[i+1] = v
		phase += step
	}
}

// scrolling colour bands.
func testPattern(pixels []byte, frame int) {
	for y := 0; y < demoHeight; y++ {
		band := byte((y + frame) % 256)
		for x := 0; x < demoWidth; x++ {
			i := (y*demoWidth + x) * 4
			pixels[i] = band
			pixels[i+1] = byte(x % 256)
			pixels[i+2] = byte(255 - band)
			pixels[i+3] = 255
		}
	}
}

func printStats(asy *async.Async) {
	s := asy.GetStats()
	fmt.Printf("%.1f fps (avg frame time %v)\n", s.FPS, s.AvgFrameTime)
	fmt.Printf("%d frames presented (%d skipped, %d sync waits)\n",
		s.FramesPresented, s.FramesSkipped, s.GPUSyncWaits)
	fmt.Printf("audio: %d overflowed, %d starved\n", s.AudioOverflow, s.AudioStarved)
	fmt.Printf("draw calls %d in %d flushes (%d state changes)\n",
		s.DrawCalls, s.BatchFlushes, s.StateChanges)
}
