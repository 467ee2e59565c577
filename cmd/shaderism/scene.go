package main

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/polyfloyd/shaderism/renderer"
	"github.com/polyfloyd/shaderism/shadertoy"
	"github.com/polyfloyd/shaderism/texture"
)

// sceneLoader builds scenes from the files and flags given on the command
// line. It is called again every time a watched file changes.
type sceneLoader struct {
	files    []string
	mappings []string
	config   shadertoy.CompileConfig
}

// source reads the shader files and everything they include. The returned
// filenames are those that make up the shader, or the input files if they
// could not be resolved.
func (sl sceneLoader) source() (string, []string, error) {
	sources, err := renderer.Includes(sl.files...)
	if err != nil {
		return "", sl.files, err
	}
	source, err := renderer.Concat(sources)
	return source, renderer.Filenames(sources), err
}

// parseMappings collects the mappings in the source and those passed with
// -map. The latter take precedence.
func (sl sceneLoader) parseMappings(source string) ([]texture.Mapping, error) {
	byName := map[string]texture.Mapping{}
	var order []string
	add := func(m texture.Mapping) {
		if _, ok := byName[m.Name]; !ok {
			order = append(order, m.Name)
		}
		byName[m.Name] = m
	}

	for _, m := range texture.ExtractMappings(source, filepath.Dir(sl.files[0])) {
		add(m)
	}
	for _, str := range sl.mappings {
		m, err := texture.ParseMapping(str, ".")
		if err != nil {
			return nil, err
		}
		add(m)
	}

	mappings := make([]texture.Mapping, 0, len(order))
	for _, name := range order {
		mappings = append(mappings, byName[name])
	}
	return mappings, nil
}

func (sl sceneLoader) load() (renderer.Scene, []string, error) {
	source, files, err := sl.source()
	if err != nil {
		return renderer.Scene{}, files, err
	}
	mappings, err := sl.parseMappings(source)
	if err != nil {
		return renderer.Scene{}, files, err
	}
	channels, err := texture.Load(mappings)
	if err != nil {
		return renderer.Scene{}, files, err
	}
	return renderer.Scene{
		Source:   source,
		Config:   sl.config,
		Channels: channels,
	}, files, nil
}

func channelCount(mappings []texture.Mapping) int {
	n := 0
	for _, m := range mappings {
		if i := m.Index(); i+1 > n {
			n = i + 1
		}
	}
	return n
}

var uniformFlagRe = regexp.MustCompile(`^(\w+)=(\w+):(.+)$`)

var uniformComponents = map[shadertoy.Kind]int{
	shadertoy.Float: 1,
	shadertoy.Int:   1,
	shadertoy.Vec2:  2,
	shadertoy.Vec3:  3,
	shadertoy.Vec4:  4,
}

// parseUniform parses a custom uniform in the form name=type:v1,v2,...
func parseUniform(str string) (string, shadertoy.Value, error) {
	m := uniformFlagRe.FindStringSubmatch(str)
	if m == nil {
		return "", shadertoy.Value{}, fmt.Errorf("invalid uniform %q, expected name=type:value", str)
	}
	name := m[1]
	if _, ok := shadertoy.Builtin(name); ok {
		return "", shadertoy.Value{}, fmt.Errorf("uniform %s is builtin", name)
	}
	kind, err := shadertoy.ParseKind(m[2])
	if err != nil {
		return "", shadertoy.Value{}, err
	}
	n, ok := uniformComponents[kind]
	if !ok {
		return "", shadertoy.Value{}, fmt.Errorf("custom uniforms can not be of type %s", kind)
	}
	components := strings.Split(m[3], ",")
	if len(components) != n {
		return "", shadertoy.Value{}, fmt.Errorf("uniform %s of type %s needs %d values, got %d", name, kind, n, len(components))
	}

	value := shadertoy.Value{Kind: kind}
	for i, c := range components {
		c = strings.TrimSpace(c)
		if kind == shadertoy.Int {
			v, err := strconv.ParseInt(c, 10, 32)
			if err != nil {
				return "", shadertoy.Value{}, fmt.Errorf("invalid value for uniform %s: %v", name, err)
			}
			value.Int = int32(v)
			continue
		}
		v, err := strconv.ParseFloat(c, 32)
		if err != nil {
			return "", shadertoy.Value{}, fmt.Errorf("invalid value for uniform %s: %v", name, err)
		}
		value.Vec[i] = float32(v)
	}
	return name, value, nil
}
