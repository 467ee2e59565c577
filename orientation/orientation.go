// Package orientation reads the device orientation from a peripheral
// attached over a serial port, or from any file or pipe that produces the
// same protocol.
//
// The peripheral writes one line per update:
//
//	orient <alpha> <beta> <gamma> <screen angle>
//
// with all angles in degrees. Other lines are ignored.
package orientation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/tarm/serial"
)

var (
	periphFile   = regexp.MustCompile(`^([^;]+)$`)
	periphSerial = regexp.MustCompile(`^([^;]+);(\d+)$`)
)

// A Sensor holds the most recent orientation reported by a peripheral.
type Sensor struct {
	reader io.ReadCloser

	lock  sync.Mutex
	value [4]float32
	err   error

	done chan struct{}
}

// Open connects to the peripheral. The address is either a path or
// "<device>;<baudrate>" for a serial port.
func Open(address string) (*Sensor, error) {
	if match := periphSerial.FindStringSubmatch(address); match != nil {
		baudrate, err := strconv.Atoi(match[2])
		if err != nil {
			return nil, err
		}
		ser, err := serial.OpenPort(&serial.Config{
			Name: match[1],
			Baud: baudrate,
		})
		if err != nil {
			return nil, fmt.Errorf("could not open %s: %v", match[1], err)
		}
		return NewSensor(ser), nil
	}
	if match := periphFile.FindStringSubmatch(address); match != nil {
		fd, err := os.Open(match[1])
		if err != nil {
			return nil, err
		}
		return NewSensor(fd), nil
	}
	return nil, fmt.Errorf("invalid orientation peripheral %q", address)
}

// NewSensor starts reading orientation updates from r. The sensor takes
// ownership of r.
func NewSensor(r io.ReadCloser) *Sensor {
	s := &Sensor{
		reader: r,
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sensor) run() {
	defer close(s.done)
	br := bufio.NewReader(s.reader)
	for {
		line, err := br.ReadString('\n')
		if v, ok := parseLine(line); ok {
			s.lock.Lock()
			s.value = v
			s.lock.Unlock()
		}
		if err != nil {
			if err != io.EOF {
				s.lock.Lock()
				s.err = err
				s.lock.Unlock()
			}
			return
		}
	}
}

func parseLine(line string) ([4]float32, bool) {
	fields := strings.Fields(line)
	if len(fields) != 5 || fields[0] != "orient" {
		return [4]float32{}, false
	}
	var out [4]float32
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return [4]float32{}, false
		}
		out[i] = float32(v)
	}
	return out, true
}

// Value returns the last reported alpha, beta, gamma and screen angle.
func (s *Sensor) Value() [4]float32 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.value
}

// Done is closed when the peripheral stops producing updates.
func (s *Sensor) Done() <-chan struct{} {
	return s.done
}

// Err returns the read error that stopped the sensor, if any.
func (s *Sensor) Err() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.err
}

func (s *Sensor) Close() error {
	return s.reader.Close()
}
