package texture

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

func init() {
	RegisterResourceType("video", func(m Mapping) (Channel, error) {
		path, err := ResolvePath(m.PWD, m.Value)
		if err != nil {
			return nil, err
		}
		return openVideo(path)
	})
}

type probeResult struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
	} `json:"streams"`
}

func probeVideo(filename string) (image.Rectangle, time.Duration, error) {
	out, err := ffmpeg.Probe(filename)
	if err != nil {
		return image.Rectangle{}, 0, fmt.Errorf("unable to get media info: %v", err)
	}
	var info probeResult
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		return image.Rectangle{}, 0, fmt.Errorf("unable to get media info: %v", err)
	}
	for _, s := range info.Streams {
		if s.CodecType != "video" {
			continue
		}
		interval, err := parseFrameRate(s.AvgFrameRate)
		if err != nil {
			return image.Rectangle{}, 0, err
		}
		return image.Rect(0, 0, s.Width, s.Height), interval, nil
	}
	return image.Rectangle{}, 0, fmt.Errorf("%q has no video stream", filename)
}

// parseFrameRate converts a rate like "30000/1001" to a frame interval.
func parseFrameRate(rate string) (time.Duration, error) {
	s := strings.SplitN(rate, "/", 2)
	nu, err := strconv.ParseFloat(s[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q", rate)
	}
	de := 1.0
	if len(s) == 2 {
		if de, err = strconv.ParseFloat(s[1], 64); err != nil {
			return 0, fmt.Errorf("invalid frame rate %q", rate)
		}
	}
	if nu <= 0 || de <= 0 {
		return 0, fmt.Errorf("invalid frame rate %q", rate)
	}
	return time.Duration(float64(time.Second) * de / nu), nil
}

// videoChannel plays a video in a loop. Frames advance with the time of the
// scene rather than the wall clock, so offscreen renders are reproducible.
type videoChannel struct {
	open     func() io.ReadCloser
	interval time.Duration
	img      *image.RGBA

	frames  io.ReadCloser
	elapsed time.Duration
}

func openVideo(filename string) (*videoChannel, error) {
	rect, interval, err := probeVideo(filename)
	if err != nil {
		return nil, err
	}
	open := func() io.ReadCloser {
		r, w := io.Pipe()
		go func() {
			err := ffmpeg.Input(filename).
				Output("pipe:", ffmpeg.KwArgs{
					"format":  "rawvideo",
					"pix_fmt": "rgba",
				}).
				WithOutput(w).
				Run()
			w.CloseWithError(err)
		}()
		return r
	}
	return newVideoChannel(open, rect, interval)
}

func newVideoChannel(open func() io.ReadCloser, rect image.Rectangle, interval time.Duration) (*videoChannel, error) {
	vc := &videoChannel{
		open:     open,
		interval: interval,
		img:      image.NewRGBA(rect),
	}
	vc.frames = open()
	if err := vc.nextFrame(); err != nil {
		vc.Close()
		return nil, fmt.Errorf("unable to read the first frame: %v", err)
	}
	return vc, nil
}

// nextFrame reads a frame, starting over at the end of the video.
func (vc *videoChannel) nextFrame() error {
	_, err := io.ReadFull(vc.frames, vc.img.Pix)
	if err != io.EOF && err != io.ErrUnexpectedEOF {
		return err
	}
	vc.frames.Close()
	vc.frames = vc.open()
	_, err = io.ReadFull(vc.frames, vc.img.Pix)
	return err
}

func (vc *videoChannel) Image() *image.RGBA {
	return vc.img
}

func (vc *videoChannel) Advance(dt time.Duration) bool {
	if vc.frames == nil {
		return false
	}
	vc.elapsed += dt
	changed := false
	for vc.elapsed >= vc.interval {
		vc.elapsed -= vc.interval
		if err := vc.nextFrame(); err != nil {
			log.Printf("texture: video stopped: %v", err)
			vc.frames.Close()
			vc.frames = nil
			return changed
		}
		changed = true
	}
	return changed
}

func (vc *videoChannel) Close() error {
	if vc.frames == nil {
		return nil
	}
	err := vc.frames.Close()
	vc.frames = nil
	return err
}
