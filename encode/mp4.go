package encode

import (
	"fmt"
	"image"
	"io"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// MP4Format pipes raw frames through ffmpeg. The output is a fragmented MP4
// so it can be written to a pipe.
type MP4Format struct {
	// Codec is passed as the video codec to ffmpeg, libx264 by default.
	Codec string
}

func (f MP4Format) Extensions() []string {
	return []string{"mp4"}
}

func (f MP4Format) Encode(w io.Writer, img image.Image) error {
	return f.EncodeAnimation(w, single(img), time.Second)
}

func (f MP4Format) EncodeAnimation(w io.Writer, stream <-chan image.Image, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("mp4 output requires a framerate to be set")
	}
	first, ok := <-stream
	if !ok {
		return fmt.Errorf("no frames to encode")
	}

	pr, pw := io.Pipe()
	errc := make(chan error, 1)
	go func() {
		cmd := ffmpeg.Input("pipe:", f.inputArgs(first.Bounds(), interval)).
			Output("pipe:", f.outputArgs()).
			WithInput(pr).
			WithOutput(w)
		err := cmd.Run()
		pr.CloseWithError(err)
		errc <- err
	}()

	raw := RGBA32Format{}
	err := raw.Encode(pw, first)
	for img := range stream {
		if err != nil {
			// Keep draining so the renderer is not blocked.
			continue
		}
		if img.Bounds().Size() != first.Bounds().Size() {
			err = fmt.Errorf("frame size changed from %v to %v", first.Bounds().Size(), img.Bounds().Size())
			continue
		}
		err = raw.Encode(pw, img)
	}
	pw.Close()
	if ffErr := <-errc; ffErr != nil {
		return fmt.Errorf("ffmpeg: %v", ffErr)
	}
	return err
}

func (f MP4Format) inputArgs(bounds image.Rectangle, interval time.Duration) ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"format":    "rawvideo",
		"pix_fmt":   "rgba",
		"s":         fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy()),
		"framerate": fmt.Sprintf("%f", 1/interval.Seconds()),
	}
}

func (f MP4Format) outputArgs() ffmpeg.KwArgs {
	codec := f.Codec
	if codec == "" {
		codec = "libx264"
	}
	return ffmpeg.KwArgs{
		"format":   "mp4",
		"c:v":      codec,
		"pix_fmt":  "yuv420p",
		"movflags": "frag_keyframe+empty_moov",
	}
}
