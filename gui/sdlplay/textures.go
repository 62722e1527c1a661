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

package sdlplay

import (
	"github.com/go-gl/gl/v3.2-core/gl"

	"github.com/jetsetilly/ultragopher/async"
	"github.com/jetsetilly/ultragopher/async/texturecache"
	"github.com/jetsetilly/ultragopher/curated"
)

// not in the core profile headers but universally supported
const glTextureMaxAnisotropy = 0x84fe

// Textures uploads console texture data to the GPU, by way of the texture
// cache. All methods must be called from the goroutine that owns the GL
// context.
type Textures struct {
	asy *async.Async
}

// NewTextures is the preferred method of initialisation for the Textures
// type. GL must have been initialised.
func NewTextures(asy *async.Async) (*Textures, error) {
	if err := gl.Init(); err != nil {
		return nil, curated.Errorf("sdlplay: %v", err)
	}
	return &Textures{asy: asy}, nil
}

// Release deletes a GL texture. Given to the async core as the texture
// cache's release callback.
func Release(handle uint32) {
	gl.DeleteTextures(1, &handle)
}

// Upload returns a GL texture handle for the given RGBA texel data,
// uploading only when the texture cache has no entry for it. Texels are
// identified by the console memory address they were read from and a hash
// of their content, so a stale cache entry for a rewritten address misses
// and is re-uploaded.
func (txs *Textures) Upload(addr uint32, texels []byte, width int, height int) (uint32, error) {
	key := texturecache.Key{
		Addr:   addr,
		Width:  width,
		Height: height,
		Format: formatRGBA,
		Hash:   texturecache.HashTexels(texels),
	}

	if handle, ok := txs.asy.CacheTexture(key); ok {
		return handle, nil
	}

	// quality governor may have lowered the texture size limit
	if max := txs.asy.Prefs().MaxTextureSize.Get(); max > 0 {
		texels, width, height = decimate(texels, width, height, max)
	}

	var handle uint32
	gl.GenTextures(1, &handle)
	gl.BindTexture(gl.TEXTURE_2D, handle)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	if aniso := txs.asy.Prefs().Anisotropy.Get(); aniso > 1 {
		gl.TexParameterf(gl.TEXTURE_2D, glTextureMaxAnisotropy, float32(aniso))
	}

	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(width), int32(height), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(texels))

	// the original key is recorded even when the texels were decimated. the
	// cache tracks what the console asked for, not what the GPU received
	txs.asy.AddToTextureCache(key, handle, int64(len(texels)))

	return handle, nil
}

// the format tag used for all uploads. other console formats are converted
// to RGBA before they reach this package.
const formatRGBA = 1

// nearest-neighbour decimation of RGBA texels to fit within the max
// dimension. returns the input unchanged when it already fits.
func decimate(texels []byte, width int, height int, max int) ([]byte, int, int) {
	if width <= max && height <= max {
		return texels, width, height
	}

	step := 1
	for width/step > max || height/step > max {
		step *= 2
	}

	nw := width / step
	nh := height / step
	out := make([]byte, nw*nh*pixelDepth)

	for y := 0; y < nh; y++ {
		for x := 0; x < nw; x++ {
			src := ((y*step)*width + x*step) * pixelDepth
			dst := (y*nw + x) * pixelDepth
			copy(out[dst:dst+pixelDepth], texels[src:src+pixelDepth])
		}
	}

	return out, nw, nh
}
