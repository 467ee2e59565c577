package renderer

import (
	"image"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/polyfloyd/shaderism/shadertoy"
	"github.com/polyfloyd/shaderism/texture"
)

// channelTextures holds the GL textures of a texture set.
type channelTextures struct {
	set   *texture.Set
	ids   [shadertoy.MaxChannels]uint32
	sizes [shadertoy.MaxChannels]image.Point
}

func uploadChannels(set *texture.Set) *channelTextures {
	ct := &channelTextures{set: set}
	for i := range ct.ids {
		ch := set.Channel(i)
		if ch == nil {
			continue
		}
		img := ch.Image()
		if img == nil {
			continue
		}
		gl.GenTextures(1, &ct.ids[i])
		gl.BindTexture(gl.TEXTURE_2D, ct.ids[i])
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
		ct.sizes[i] = img.Rect.Size()
		ct.write(i, img, true)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return ct
}

// write uploads the pixels of a channel. Pictures are flipped so their top
// row ends up at the top of the canvas.
func (ct *channelTextures) write(i int, img *image.RGBA, alloc bool) {
	if d, ok := ct.set.Channel(i).(texture.Data); !ok || !d.Data() {
		flipped := image.NewRGBA(img.Rect)
		copy(flipped.Pix, img.Pix)
		flipRows(flipped)
		img = flipped
	}
	w, h := int32(img.Rect.Dx()), int32(img.Rect.Dy())
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	if alloc {
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, w, h, 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	} else {
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, w, h, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	}
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
}

// update re-uploads the channels that changed since the last frame.
func (ct *channelTextures) update(changed []int) {
	for _, i := range changed {
		if ct.ids[i] == 0 {
			continue
		}
		img := ct.set.Channel(i).Image()
		if img == nil || img.Rect.Size() != ct.sizes[i] {
			continue
		}
		gl.BindTexture(gl.TEXTURE_2D, ct.ids[i])
		ct.write(i, img, false)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

// Channel implements shadertoy.ChannelSource. The handle of a present
// texture is its GL texture name.
func (ct *channelTextures) Channel(i int) (shadertoy.Texture, bool) {
	if i < 0 || i >= len(ct.ids) || ct.ids[i] == 0 {
		return shadertoy.Texture{}, false
	}
	return shadertoy.Texture{
		Handle: ct.ids[i],
		Width:  ct.sizes[i].X,
		Height: ct.sizes[i].Y,
	}, true
}

func (ct *channelTextures) Close() error {
	for i, id := range ct.ids {
		if id != 0 {
			gl.DeleteTextures(1, &id)
			ct.ids[i] = 0
		}
	}
	return ct.set.Close()
}

// flipRows turns an image upside down.
func flipRows(img *image.RGBA) {
	h := img.Rect.Dy()
	rowLen := img.Rect.Dx() * 4
	tmp := make([]byte, rowLen)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : y*img.Stride+rowLen]
		bottom := img.Pix[(h-1-y)*img.Stride : (h-1-y)*img.Stride+rowLen]
		copy(tmp, top)
		copy(top, bottom)
		copy(bottom, tmp)
	}
}
