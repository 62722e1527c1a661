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

// Package sdlplay is the SDL playback window. It implements the
// presentation.Presenter interface and so is the far end of the frame
// queue: Present() is called from the presentation goroutine and never from
// anywhere else.
//
// SDL requires that the window, renderer and texture are used from the
// goroutine that created them. NewSdlPlay() must therefore be called from
// the presentation side of the queue, or the queue run in its synchronous
// fallback mode.
package sdlplay

import (
	"github.com/veandco/go-sdl2/sdl"

	"github.com/jetsetilly/ultragopher/async/presentation"
	"github.com/jetsetilly/ultragopher/curated"
	"github.com/jetsetilly/ultragopher/logger"
)

// RGBA
const pixelDepth = 4

// SdlPlay is an SDL implementation of the presentation.Presenter interface.
type SdlPlay struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture

	// dimensions of the streaming texture. the texture is recreated when a
	// presented frame disagrees
	width  int32
	height int32

	scale float32
}

// NewSdlPlay is the preferred method of initialisation for the SdlPlay
// type. The window is created hidden; it is shown on the first presented
// frame.
func NewSdlPlay(scale float32) (*SdlPlay, error) {
	if scale <= 0 {
		scale = 2.0
	}

	scr := &SdlPlay{scale: scale}

	err := sdl.Init(sdl.INIT_VIDEO)
	if err != nil {
		return nil, curated.Errorf("sdlplay: %v", err)
	}

	scr.window, err = sdl.CreateWindow("Ultragopher",
		int32(sdl.WINDOWPOS_UNDEFINED), int32(sdl.WINDOWPOS_UNDEFINED),
		0, 0,
		uint32(sdl.WINDOW_HIDDEN|sdl.WINDOW_OPENGL))
	if err != nil {
		return nil, curated.Errorf("sdlplay: %v", err)
	}

	scr.renderer, err = sdl.CreateRenderer(scr.window, -1, uint32(sdl.RENDERER_ACCELERATED))
	if err != nil {
		scr.window.Destroy()
		return nil, curated.Errorf("sdlplay: %v", err)
	}

	logger.Log("sdlplay", "window created")

	return scr, nil
}

// recreate the streaming texture and resize the window for new frame
// dimensions.
func (scr *SdlPlay) resize(width int32, height int32) error {
	if scr.texture != nil {
		scr.texture.Destroy()
	}

	var err error
	scr.texture, err = scr.renderer.CreateTexture(uint32(sdl.PIXELFORMAT_ABGR8888),
		int(sdl.TEXTUREACCESS_STREAMING), width, height)
	if err != nil {
		return err
	}

	scr.width = width
	scr.height = height

	w := int32(float32(width) * scr.scale)
	h := int32(float32(height) * scr.scale)
	scr.window.SetSize(w, h)
	scr.window.Show()

	logger.Logf("sdlplay", "display %dx%d (window %dx%d)", width, height, w, h)

	return nil
}

// Present implements the presentation.Presenter interface. Called from the
// presentation goroutine.
func (scr *SdlPlay) Present(frm presentation.Frame) error {
	if int32(frm.Width) != scr.width || int32(frm.Height) != scr.height {
		if err := scr.resize(int32(frm.Width), int32(frm.Height)); err != nil {
			return curated.Errorf("sdlplay: %v", err)
		}
	}

	err := scr.texture.Update(nil, frm.Pixels, frm.Width*pixelDepth)
	if err != nil {
		return curated.Errorf("sdlplay: %v", err)
	}

	err = scr.renderer.Copy(scr.texture, nil, nil)
	if err != nil {
		return curated.Errorf("sdlplay: %v", err)
	}

	scr.renderer.Present()

	return nil
}

// Service polls and handles pending SDL events. Must be called regularly
// from the main goroutine. Returns false when the user has asked for the
// window to close.
func (scr *SdlPlay) Service() bool {
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		switch ev.(type) {
		case *sdl.QuitEvent:
			return false
		}
	}
	return true
}

// Destroy tears down the window and renderer. The presentation queue must
// have been shut down first.
func (scr *SdlPlay) Destroy() {
	if scr.texture != nil {
		scr.texture.Destroy()
		scr.texture = nil
	}
	if scr.renderer != nil {
		scr.renderer.Destroy()
		scr.renderer = nil
	}
	if scr.window != nil {
		scr.window.Destroy()
		scr.window = nil
	}
}
