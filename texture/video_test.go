package texture

import (
	"bytes"
	"image"
	"io"
	"testing"
	"time"
)

func TestParseFrameRate(t *testing.T) {
	valid := map[string]time.Duration{
		"25/1":       40 * time.Millisecond,
		"50":         20 * time.Millisecond,
		"30000/1001": time.Duration(float64(time.Second) * 1001 / 30000),
	}
	for input, expected := range valid {
		interval, err := parseFrameRate(input)
		if err != nil {
			t.Errorf("error parsing valid frame rate %q: %v", input, err)
		}
		if interval != expected {
			t.Errorf("unexpected interval for %q: exp %v, got %v", input, expected, interval)
		}
	}
	for _, input := range []string{"", "0/0", "x/1", "25/y", "-1/1"} {
		if _, err := parseFrameRate(input); err == nil {
			t.Errorf("expected an error while parsing invalid frame rate %q", input)
		}
	}
}

// rawFrames returns an opener of a stream of 1x1 frames with the given red
// values.
func rawFrames(reds ...byte) func() io.ReadCloser {
	return func() io.ReadCloser {
		var buf bytes.Buffer
		for _, r := range reds {
			buf.Write([]byte{r, 0, 0, 255})
		}
		return io.NopCloser(&buf)
	}
}

func TestVideoChannel(t *testing.T) {
	vc, err := newVideoChannel(rawFrames(10, 20, 30), image.Rect(0, 0, 1, 1), 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer vc.Close()

	steps := []struct {
		dt      time.Duration
		changed bool
		red     uint8
	}{
		{0, false, 10},
		{50 * time.Millisecond, false, 10},
		{50 * time.Millisecond, true, 20},
		{100 * time.Millisecond, true, 30},
		// Loops back to the start.
		{100 * time.Millisecond, true, 10},
		{200 * time.Millisecond, true, 30},
	}
	for i, step := range steps {
		if changed := vc.Advance(step.dt); changed != step.changed {
			t.Errorf("step %d: unexpected change: exp %v, got %v", i, step.changed, changed)
		}
		if r := vc.Image().Pix[0]; r != step.red {
			t.Errorf("step %d: unexpected frame: exp %d, got %d", i, step.red, r)
		}
	}
}

func TestVideoChannelEmpty(t *testing.T) {
	if _, err := newVideoChannel(rawFrames(), image.Rect(0, 0, 1, 1), time.Second); err == nil {
		t.Fatal("expected an error for a video without frames")
	}
}
