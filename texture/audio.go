package texture

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"log"
	"math/cmplx"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/mjibson/go-dsp/fft"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

func init() {
	RegisterResourceType("audio", func(m Mapping) (Channel, error) {
		source, err := parseAudioValue(m.PWD, m.Value)
		if err != nil {
			return nil, err
		}
		return newAudioChannel(source), nil
	})
}

// The audio texture is 512x2: the spectrum in the first row and the waveform
// in the second, like on shadertoy.com.
const audioTexWidth = 512

const decodedSampleRate = 22000

var (
	audioMicValueRe     = regexp.MustCompile(`^mic(?:;(\d+))?$`)
	audioGenericValueRe = regexp.MustCompile(`^([^;]+)$`)
	audioPCMValueRe     = regexp.MustCompile(`^([^;]+);(\d+):(\d+):([su]\d{1,2}[lb]e)$`)
	pcmFormatRe         = regexp.MustCompile(`^([su])(\d{1,2})([lb]e)$`)
)

type audioSource interface {
	SampleRate() int
	// ReadSamples returns the mono samples for the next period, in the range
	// -1 to 1.
	ReadSamples(period time.Duration) []float64
	io.Closer
}

func parseAudioValue(pwd, value string) (audioSource, error) {
	if match := audioMicValueRe.FindStringSubmatch(value); match != nil {
		rate := 44100
		if match[1] != "" {
			rate, _ = strconv.Atoi(match[1])
		}
		return openMicrophone(rate)
	}

	if match := audioGenericValueRe.FindStringSubmatch(value); match != nil {
		filename, err := ResolvePath(pwd, match[1])
		if err != nil {
			return nil, err
		}
		return decodeAudioFile(filename)
	}

	match := audioPCMValueRe.FindStringSubmatch(value)
	if match == nil {
		return nil, fmt.Errorf("could not parse audio value: %q (format: %s)", value, audioPCMValueRe)
	}
	filename, err := ResolvePath(pwd, match[1])
	if err != nil {
		return nil, err
	}
	samplerate, err := strconv.Atoi(match[2])
	if err != nil {
		return nil, err
	}
	channels, err := strconv.Atoi(match[3])
	if err != nil {
		return nil, err
	}
	format, err := parsePCMFormat(match[4])
	if err != nil {
		return nil, err
	}
	if samplerate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid sample rate or channel count in %q", value)
	}

	fd, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open audio source: %v", err)
	}
	return &pcmSource{
		file:       fd,
		sampleRate: samplerate,
		channels:   channels,
		format:     format,
	}, nil
}

type pcmFormat struct {
	signed bool
	bits   int
	order  binary.ByteOrder
}

func parsePCMFormat(s string) (pcmFormat, error) {
	match := pcmFormatRe.FindStringSubmatch(s)
	if match == nil {
		return pcmFormat{}, fmt.Errorf("invalid PCM format %q", s)
	}
	bits, _ := strconv.Atoi(match[2])
	if bits != 8 && bits != 16 {
		return pcmFormat{}, fmt.Errorf("only 8 and 16 bit PCM samples are supported, format: %q", s)
	}
	f := pcmFormat{signed: match[1] == "s", bits: bits, order: binary.LittleEndian}
	if match[3] == "be" {
		f.order = binary.BigEndian
	}
	return f, nil
}

func (f pcmFormat) bytes() int { return f.bits / 8 }

func (f pcmFormat) decode(b []byte) float64 {
	if f.bits == 8 {
		if f.signed {
			return float64(int8(b[0])) / 0x7f
		}
		return (float64(b[0]) - 0x80) / 0x7f
	}
	v := f.order.Uint16(b)
	if f.signed {
		return float64(int16(v)) / 0x7fff
	}
	return (float64(v) - 0x8000) / 0x7fff
}

// pcmSource reads raw interleaved PCM. Only the first channel is used.
type pcmSource struct {
	file                 io.ReadCloser
	sampleRate, channels int
	format               pcmFormat
}

func (s *pcmSource) SampleRate() int {
	return s.sampleRate
}

func (s *pcmSource) ReadSamples(period time.Duration) []float64 {
	numSamples := int(time.Duration(s.sampleRate) * period / time.Second)
	frameSize := s.channels * s.format.bytes()
	buf := make([]byte, numSamples*frameSize)
	n, err := io.ReadFull(s.file, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return make([]float64, numSamples)
	}

	samples := make([]float64, numSamples)
	for i := 0; i < n/frameSize; i++ {
		samples[i] = s.format.decode(buf[i*frameSize:])
	}
	return samples
}

func (s *pcmSource) Close() error {
	return s.file.Close()
}

// decodeAudioFile converts any file ffmpeg understands to mono s16le.
func decodeAudioFile(filename string) (*pcmSource, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, err
	}
	r, w := io.Pipe()
	go func() {
		err := ffmpeg.Input(filename).
			Output("pipe:", ffmpeg.KwArgs{
				"f":      "s16le",
				"acodec": "pcm_s16le",
				"ac":     1,
				"ar":     decodedSampleRate,
			}).
			WithOutput(w).
			Run()
		if err != nil {
			log.Printf("texture: decoding %q: %v", filename, err)
		}
		w.CloseWithError(err)
	}()
	return &pcmSource{
		file:       r,
		sampleRate: decodedSampleRate,
		channels:   1,
		format:     pcmFormat{signed: true, bits: 16, order: binary.LittleEndian},
	}, nil
}

// microphone keeps the most recent second of input of the default input
// device.
type microphone struct {
	sampleRate int
	stream     *portaudio.Stream

	lock    sync.Mutex
	history []float64
}

func openMicrophone(sampleRate int) (*microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	host, err := portaudio.DefaultHostApi()
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	mic := &microphone{
		sampleRate: sampleRate,
		history:    make([]float64, sampleRate),
	}
	params := portaudio.HighLatencyParameters(host.DefaultInputDevice, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(sampleRate)
	stream, err := portaudio.OpenStream(params, mic.record)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	mic.stream = stream
	return mic, nil
}

// record runs on the PortAudio callback thread.
func (m *microphone) record(in []float32) {
	m.lock.Lock()
	defer m.lock.Unlock()
	samples := make([]float64, len(in))
	for i, v := range in {
		samples[i] = float64(v)
	}
	m.history = append(m.history, samples...)[len(samples):]
}

func (m *microphone) SampleRate() int {
	return m.sampleRate
}

func (m *microphone) ReadSamples(period time.Duration) []float64 {
	n := int(time.Duration(m.sampleRate) * period / time.Second)
	out := make([]float64, n)
	m.lock.Lock()
	defer m.lock.Unlock()
	if n > len(m.history) {
		copy(out[n-len(m.history):], m.history)
	} else {
		copy(out, m.history[len(m.history)-n:])
	}
	return out
}

func (m *microphone) Close() error {
	err := m.stream.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}

// audioChannel renders the spectrum and waveform of the last
// audioTexWidth samples of a source.
type audioChannel struct {
	source audioSource
	window []float64
	img    *image.RGBA
}

func newAudioChannel(source audioSource) *audioChannel {
	ac := &audioChannel{
		source: source,
		window: make([]float64, audioTexWidth),
		img:    image.NewRGBA(image.Rect(0, 0, audioTexWidth, 2)),
	}
	renderAudio(ac.img, ac.window)
	return ac
}

// Data reports that the rows are a spectrum and a waveform.
func (ac *audioChannel) Data() bool {
	return true
}

func (ac *audioChannel) Image() *image.RGBA {
	return ac.img
}

func (ac *audioChannel) Advance(dt time.Duration) bool {
	samples := ac.source.ReadSamples(dt)
	if len(samples) == 0 {
		return false
	}
	ac.window = append(ac.window, samples...)[len(samples):]
	renderAudio(ac.img, ac.window)
	return true
}

func (ac *audioChannel) Close() error {
	return ac.source.Close()
}

// renderAudio writes the spectrum of window to the first row of img and the
// waveform to the second.
func renderAudio(img *image.RGBA, window []float64) {
	freqs := fft.FFTReal(window)
	for x := 0; x < audioTexWidth; x++ {
		// Only the lower half of the spectrum is unique, stretch it over the
		// full width.
		magnitude := cmplx.Abs(freqs[x/2]) / (audioTexWidth / 2)
		setGray(img, x, 0, magnitude)
		setGray(img, x, 1, window[x]*0.5+0.5)
	}
}

func setGray(img *image.RGBA, x, y int, v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	c := uint8(v * 255)
	i := img.PixOffset(x, y)
	img.Pix[i+0] = c
	img.Pix[i+1] = c
	img.Pix[i+2] = c
	img.Pix[i+3] = 0xff
}
