package shadertoy

import (
	"sort"
)

// ChannelSource provides the textures bound to the texture channels. ok is
// false for channels that have no texture, including ones that failed to
// load.
type ChannelSource interface {
	Channel(index int) (tex Texture, ok bool)
}

// UniformTable maps uniform names to their current values. Once built, no
// entries are added or removed; only the values change.
type UniformTable map[string]*Value

// Names returns the names in the table in lexical order.
func (t UniformTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildUniformTable creates the initial values of all uniforms that a shader
// compiled from the same source and config declares. channels may be nil.
func BuildUniformTable(source string, cfg CompileConfig, channels ChannelSource) UniformTable {
	cfg = cfg.normalized()
	code := applyFixups(source)

	table := UniformTable{}
	for _, u := range selectUniforms(code, code, cfg) {
		v := u.Default
		switch v.Kind {
		case Sampler:
			v.Texture = channelTexture(channels, channelIndex(u.Name))
		case Vec3Array:
			for i := range v.Array {
				if tex := channelTexture(channels, i); tex.Present() {
					v.Array[i] = [3]float32{float32(tex.Width), float32(tex.Height), 1}
				}
			}
		}
		table[u.Name] = &v
	}
	return table
}

func channelTexture(channels ChannelSource, index int) Texture {
	if channels == nil {
		return Texture{}
	}
	tex, ok := channels.Channel(index)
	if !ok {
		return Texture{}
	}
	return tex
}
