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

// Package wavwriter allows writing of mixed audio data to disk as a WAV
// file. Note that audio data is buffered in memory in its entirety, and
// written to disk on EndMixing(). It is therefore probably only suitable
// for testing purposes.
package wavwriter

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/jetsetilly/ultragopher/async/mixer"
	"github.com/jetsetilly/ultragopher/curated"
	"github.com/jetsetilly/ultragopher/logger"
)

// WavWriter records the interleaved stereo samples the driver queues to the
// audio ring. Attach it alongside the real audio output by calling
// SetAudio() with the same arguments as QueueSamples().
type WavWriter struct {
	filename   string
	buffer     []int
	sampleRate int32
}

// New is the preferred method of initialisation for the WavWriter type.
func New(filename string) (*WavWriter, error) {
	aw := &WavWriter{
		filename: filename,
		buffer:   make([]int, 0),
	}

	return aw, nil
}

// SetAudio appends interleaved stereo samples to the in-memory recording. A
// change of sample rate mid-recording is tolerated but the whole file is
// written at the most recent rate.
func (aw *WavWriter) SetAudio(samples []int16, sampleRate int32) error {
	aw.sampleRate = sampleRate
	for _, s := range samples {
		aw.buffer = append(aw.buffer, int(s))
	}
	return nil
}

// EndMixing writes the recording to disk.
func (aw *WavWriter) EndMixing() (rerr error) {
	f, err := os.Create(aw.filename)
	if err != nil {
		return curated.Errorf("wavwriter: %v", err)
	}
	defer func() {
		err := f.Close()
		if err != nil {
			rerr = curated.Errorf("wavwriter: %v", err)
		}
	}()

	rate := int(aw.sampleRate)
	if rate == 0 {
		rate = 44100
	}

	enc := wav.NewEncoder(f, rate, 16, mixer.NumChannels, 1)
	defer func() {
		err := enc.Close()
		if err != nil {
			rerr = curated.Errorf("wavwriter: %v", err)
		}
	}()

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: mixer.NumChannels,
			SampleRate:  rate,
		},
		Data:           aw.buffer,
		SourceBitDepth: 16,
	}

	logger.Logf("wavwriter", "writing audio to %s", aw.filename)

	if err := enc.Write(buf); err != nil {
		return curated.Errorf("wavwriter: %v", err)
	}

	return nil
}

// Reset abandons the recording made so far.
func (aw *WavWriter) Reset() {
	aw.buffer = aw.buffer[:0]
}
