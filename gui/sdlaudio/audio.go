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

// Package sdlaudio outputs the contents of the audio ring through an SDL
// audio device.
//
// In asynchronous mode a service goroutine drains the ring on a ticker
// sized to the device buffer. In synchronous mode the application calls
// Service() on its own timeline, typically once per frame.
package sdlaudio

import (
	"time"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/jetsetilly/ultragopher/async/mixer"
	"github.com/jetsetilly/ultragopher/curated"
	"github.com/jetsetilly/ultragopher/logger"
)

// the number of sample frames pushed to the device per service. not
// critical but it bounds both the service frequency and the added latency.
const bufferLength = 1024

// the device queue is not topped up past this many pushes worth of audio.
// video drifts relative to sound if the queue is allowed to grow.
const maxQueuedBuffers = 3

// fall back to this rate until the ring has tagged its samples.
const fallbackSampleRate = 44100

// Audio drains the audio ring into an SDL audio device.
type Audio struct {
	ring *mixer.Ring

	id         sdl.AudioDeviceID
	spec       sdl.AudioSpec
	sampleRate int32

	// scratch buffers for the int16 to byte conversion
	samples []int16
	bytes   []byte

	// nil in synchronous mode
	quit chan bool
	done chan bool
}

// NewAudio is the preferred method of initialisation for the Audio type.
//
// With async set, a goroutine is created that calls Service() on a ticker.
// Without it the application must call Service() itself.
func NewAudio(ring *mixer.Ring, async bool) (*Audio, error) {
	aud := &Audio{
		ring:    ring,
		samples: make([]int16, bufferLength*mixer.NumChannels),
		bytes:   make([]byte, bufferLength*mixer.NumChannels*2),
	}

	rate := ring.SampleRate()
	if rate == 0 {
		rate = fallbackSampleRate
	}

	if err := aud.open(rate); err != nil {
		return nil, curated.Errorf("sdlaudio: %v", err)
	}

	if async {
		aud.quit = make(chan bool)
		aud.done = make(chan bool)
		go aud.service()
	}

	logger.Logf("sdlaudio", "%dHz %d channels (async=%v)", aud.spec.Freq, aud.spec.Channels, async)

	return aud, nil
}

// open an SDL audio device at the given sample rate, closing any previous
// device.
func (aud *Audio) open(rate int32) error {
	if aud.id != 0 {
		sdl.CloseAudioDevice(aud.id)
		aud.id = 0
	}

	request := &sdl.AudioSpec{
		Freq:     rate,
		Format:   sdl.AUDIO_S16LSB,
		Channels: mixer.NumChannels,
		Samples:  uint16(bufferLength),
	}

	id, err := sdl.OpenAudioDevice("", false, request, &aud.spec, 0)
	if err != nil {
		return err
	}

	aud.id = id
	aud.sampleRate = rate
	sdl.PauseAudioDevice(aud.id, false)

	return nil
}

// the service goroutine. ticks at the duration of one device buffer.
func (aud *Audio) service() {
	dur := time.Duration(float64(bufferLength) / float64(aud.sampleRate) * float64(time.Second))
	tck := time.NewTicker(dur)
	defer tck.Stop()

	for {
		select {
		case <-aud.quit:
			aud.done <- true
			return
		case <-tck.C:
			if err := aud.Service(); err != nil {
				logger.Logf("sdlaudio", "%v", err)
			}
		}
	}
}

// Service drains one buffer's worth of samples from the ring and queues it
// on the device. Safe to call more often than necessary: servicing is
// skipped while the device already holds enough queued audio.
//
// In asynchronous mode this is called by the service goroutine and must not
// be called from anywhere else.
func (aud *Audio) Service() error {
	// the ring retags its contents when the console changes the DAC rate.
	// the device must follow
	if rate := aud.ring.SampleRate(); rate != 0 && rate != aud.sampleRate {
		logger.Logf("sdlaudio", "sample rate change %d -> %d", aud.sampleRate, rate)
		if err := aud.open(rate); err != nil {
			return curated.Errorf("sdlaudio: %v", err)
		}
	}

	if sdl.GetQueuedAudioSize(aud.id) >= uint32(len(aud.bytes)*maxQueuedBuffers) {
		return nil
	}

	// a shortfall comes back zero-filled, which suits the device fine. S16
	// silence is zero
	aud.ring.Read(aud.samples)

	for i, s := range aud.samples {
		aud.bytes[i*2] = byte(s)
		aud.bytes[i*2+1] = byte(s >> 8)
	}

	if err := sdl.QueueAudio(aud.id, aud.bytes); err != nil {
		return curated.Errorf("sdlaudio: %v", err)
	}

	return nil
}

// Mute pauses or unpauses the device without tearing it down.
func (aud *Audio) Mute(muted bool) {
	sdl.PauseAudioDevice(aud.id, muted)
}

// EndMixing closes the audio device and stops the service goroutine if
// there is one. Implements the mixer shutdown contract; safe to call more
// than once.
func (aud *Audio) EndMixing() error {
	if aud.quit != nil {
		aud.quit <- true
		<-aud.done
		aud.quit = nil
	}

	if aud.id != 0 {
		sdl.CloseAudioDevice(aud.id)
		aud.id = 0
	}

	return nil
}
