package encode

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"time"
)

// encodeEach writes every image in the stream with the same single image
// encoder.
func encodeEach(f Format, w io.Writer, stream <-chan image.Image) error {
	for img := range stream {
		if err := f.Encode(w, img); err != nil {
			return err
		}
	}
	return nil
}

// single turns one image into a closed stream.
func single(img image.Image) <-chan image.Image {
	stream := make(chan image.Image, 1)
	stream <- img
	close(stream)
	return stream
}

func toRGBA(img image.Image) *image.RGBA {
	if i, ok := img.(*image.RGBA); ok && i.Rect.Min == (image.Point{}) && i.Stride == 4*i.Rect.Dx() {
		return i
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

type PNGFormat struct{}

func (f PNGFormat) Extensions() []string {
	return []string{"png"}
}

func (f PNGFormat) Encode(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

func (f PNGFormat) EncodeAnimation(w io.Writer, stream <-chan image.Image, interval time.Duration) error {
	return encodeEach(f, w, stream)
}

type JPGFormat struct{}

func (f JPGFormat) Extensions() []string {
	return []string{"jpg", "jpeg"}
}

func (f JPGFormat) Encode(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, nil)
}

func (f JPGFormat) EncodeAnimation(w io.Writer, stream <-chan image.Image, interval time.Duration) error {
	return encodeEach(f, w, stream)
}

// RGB24Format writes raw 8 bit RGB pixels without any header.
type RGB24Format struct{}

func (f RGB24Format) Extensions() []string {
	return []string{}
}

func (f RGB24Format) Encode(w io.Writer, img image.Image) error {
	rgba := toRGBA(img)
	buf := make([]byte, 0, len(rgba.Pix)/4*3)
	for i := 0; i < len(rgba.Pix); i += 4 {
		buf = append(buf, rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2])
	}
	_, err := w.Write(buf)
	return err
}

func (f RGB24Format) EncodeAnimation(w io.Writer, stream <-chan image.Image, interval time.Duration) error {
	return encodeEach(f, w, stream)
}

// RGBA32Format writes raw 8 bit RGBA pixels without any header.
type RGBA32Format struct{}

func (f RGBA32Format) Extensions() []string {
	return []string{}
}

func (f RGBA32Format) Encode(w io.Writer, img image.Image) error {
	_, err := w.Write(toRGBA(img).Pix)
	return err
}

func (f RGBA32Format) EncodeAnimation(w io.Writer, stream <-chan image.Image, interval time.Duration) error {
	return encodeEach(f, w, stream)
}

type GIFFormat struct{}

func (f GIFFormat) Extensions() []string {
	return []string{"gif"}
}

func (f GIFFormat) Encode(w io.Writer, img image.Image) error {
	return f.EncodeAnimation(w, single(img), 0)
}

func (f GIFFormat) EncodeAnimation(w io.Writer, stream <-chan image.Image, interval time.Duration) error {
	gifImg := &gif.GIF{}
	for img := range stream {
		frame := image.NewPaletted(img.Bounds(), palette.Plan9)
		draw.Draw(frame, img.Bounds(), img, img.Bounds().Min, draw.Over)
		gifImg.Image = append(gifImg.Image, frame)
		gifImg.Delay = append(gifImg.Delay, int(interval/(time.Second/100)))
		gifImg.Disposal = append(gifImg.Disposal, gif.DisposalBackground)
	}
	if len(gifImg.Image) == 0 {
		return fmt.Errorf("no frames to encode")
	}
	return gif.EncodeAll(w, gifImg)
}

// AnsiDisplay renders to a terminal that supports 24 bit colors.
type AnsiDisplay struct {
	initDone bool
}

func (f *AnsiDisplay) Extensions() []string {
	return []string{}
}

func (f *AnsiDisplay) Encode(w io.Writer, img image.Image) error {
	return f.EncodeAnimation(w, single(img), 0)
}

func (f *AnsiDisplay) EncodeAnimation(w io.Writer, stream <-chan image.Image, interval time.Duration) error {
	bw := bufio.NewWriter(w)
	lastFrame := time.Now()
	for img := range stream {
		var buf bytes.Buffer
		f.writeFrame(&buf, img)
		if _, err := buf.WriteTo(bw); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		time.Sleep(interval - time.Since(lastFrame))
		lastFrame = time.Now()
	}
	return nil
}

func (f *AnsiDisplay) writeFrame(buf *bytes.Buffer, img image.Image) {
	b := img.Bounds()
	if !f.initDone {
		// Clear the screen and any previous frame with it.
		buf.WriteString("\x1b[3J\x1b[H\x1b[2J")
		f.initDone = true
	} else {
		buf.WriteString("\x1b[1;1H")
	}

	// Two pixels are rendered per character using the Upper Half Block: the
	// foreground colors the top pixel and the background the bottom one.
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			fmt.Fprintf(buf, "\x1b[38;2;%d;%d;%dm", r>>8, g>>8, bl>>8)
			if y+1 < b.Max.Y {
				r, g, bl, _ := img.At(x, y+1).RGBA()
				fmt.Fprintf(buf, "\x1b[48;2;%d;%d;%dm", r>>8, g>>8, bl>>8)
			} else {
				buf.WriteString("\x1b[48;2;0;0;0m")
			}
			buf.WriteString("▀")
		}
		buf.WriteString("\x1b[0m\n")
	}
}
