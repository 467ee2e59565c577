// Package texture loads the images that are bound to the texture channels of
// a shader.
//
// Channels are configured with mappings of the form
// "iChannel0=namespace:value", either on the command line or through
// "// map" directives in the shader source.
package texture

import (
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/polyfloyd/shaderism/shadertoy"
)

var (
	mappingRe       = regexp.MustCompile(`^(\w+)=([^:]+):(.+)$`)
	mappingDirectRe = regexp.MustCompile(`(?m)^\/\/\s+map\s+(\w+=[^:\n]+:.+)$`)
	channelNameRe   = regexp.MustCompile(`^` + shadertoy.UniformChannel + `(\d)$`)
)

// A Channel is the image bound to a single texture channel.
type Channel interface {
	// Image returns the current contents of the channel. The returned
	// image remains owned by the channel.
	Image() *image.RGBA
	io.Closer
}

// Animated channels change over time.
type Animated interface {
	Channel
	// Advance moves the channel forward by dt and reports whether the
	// image changed.
	Advance(dt time.Duration) bool
}

// Data is implemented by channels whose rows hold values, such as a
// spectrum, rather than a picture. Pictures are shown with their top row at
// the top of the canvas while data rows are sampled in order.
type Data interface {
	Channel
	Data() bool
}

// A Mapping is a parsed representation of a "<name>=<namespace>:<value>"
// directive.
type Mapping struct {
	Name      string
	Namespace string
	Value     string
	// PWD is the directory relative paths in Value are resolved against.
	PWD string
}

// Index returns the number of the channel the mapping binds to.
func (m Mapping) Index() int {
	match := channelNameRe.FindStringSubmatch(m.Name)
	if match == nil {
		return -1
	}
	i, _ := strconv.Atoi(match[1])
	return i
}

func (m Mapping) String() string {
	return fmt.Sprintf("%s=%s:%s", m.Name, m.Namespace, m.Value)
}

// ParseMapping parses a single mapping.
func ParseMapping(str, pwd string) (Mapping, error) {
	match := mappingRe.FindStringSubmatch(strings.TrimSpace(str))
	if match == nil {
		return Mapping{}, fmt.Errorf("could not parse mapping %q (format: %s)", str, mappingRe)
	}
	m := Mapping{
		Name:      match[1],
		Namespace: match[2],
		Value:     match[3],
		PWD:       pwd,
	}
	if i := m.Index(); i < 0 || i >= shadertoy.MaxChannels {
		return Mapping{}, fmt.Errorf("mapping %q does not bind to %s0 through %s%d", str, shadertoy.UniformChannel, shadertoy.UniformChannel, shadertoy.MaxChannels-1)
	}
	return m, nil
}

// ExtractMappings collects the "// map" directives in a shader source.
// Malformed directives are logged and skipped.
func ExtractMappings(source, pwd string) []Mapping {
	var mappings []Mapping
	for _, match := range mappingDirectRe.FindAllStringSubmatch(source, -1) {
		m, err := ParseMapping(match[1], pwd)
		if err != nil {
			log.Printf("texture: %v", err)
			continue
		}
		mappings = append(mappings, m)
	}
	return mappings
}

// A Builder creates the channel for a mapping.
type Builder func(m Mapping) (Channel, error)

var resourceBuilders = map[string]Builder{}

// RegisterResourceType makes a namespace available to mappings.
func RegisterResourceType(namespace string, builder Builder) {
	resourceBuilders[namespace] = builder
}

// Namespaces returns the registered namespaces.
func Namespaces() []string {
	names := make([]string, 0, len(resourceBuilders))
	for ns := range resourceBuilders {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

// ResolvePath expands ~ and makes relative paths relative to pwd.
func ResolvePath(pwd, path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not resolve %q: %v", path, err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	if !filepath.IsAbs(path) {
		return filepath.Join(pwd, path), nil
	}
	return path, nil
}

// A Set holds the channels a shader samples from.
type Set struct {
	channels [shadertoy.MaxChannels]Channel
	count    int
}

// Load builds a channel for every mapping. A mapping that fails to load is
// logged and leaves its channel empty, so the shader still renders with a
// blank texture. Only conflicting mappings are an error.
func Load(mappings []Mapping) (*Set, error) {
	set := &Set{}
	seen := map[int]Mapping{}
	for _, m := range mappings {
		i := m.Index()
		if i < 0 || i >= shadertoy.MaxChannels {
			return nil, fmt.Errorf("invalid channel in mapping %q", m)
		}
		if prev, ok := seen[i]; ok {
			set.Close()
			return nil, fmt.Errorf("%s is mapped twice: %q and %q", m.Name, prev, m)
		}
		seen[i] = m
		if i+1 > set.count {
			set.count = i + 1
		}

		build, ok := resourceBuilders[m.Namespace]
		if !ok {
			log.Printf("texture: don't know how to map %q", m)
			continue
		}
		ch, err := build(m)
		if err != nil {
			log.Printf("texture: could not load %q: %v", m, err)
			continue
		}
		set.channels[i] = ch
	}
	return set, nil
}

// Count returns the number of channels a shader should declare: one more
// than the highest mapped channel.
func (s *Set) Count() int {
	if s == nil {
		return 0
	}
	return s.count
}

// Channel returns the channel at index i, or nil if it is empty.
func (s *Set) Channel(i int) Channel {
	if s == nil || i < 0 || i >= len(s.channels) {
		return nil
	}
	return s.channels[i]
}

// Advance advances all animated channels and returns the indices of those
// that changed.
func (s *Set) Advance(dt time.Duration) []int {
	if s == nil {
		return nil
	}
	var changed []int
	for i, ch := range s.channels {
		if a, ok := ch.(Animated); ok && a.Advance(dt) {
			changed = append(changed, i)
		}
	}
	return changed
}

func (s *Set) Close() error {
	if s == nil {
		return nil
	}
	var firstErr error
	for i, ch := range s.channels {
		if ch == nil {
			continue
		}
		if err := ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.channels[i] = nil
	}
	return firstErr
}
