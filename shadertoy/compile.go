// Package shadertoy converts ShaderToy style fragment shaders into complete
// GLSL ES programs and maintains the values of the uniforms they use.
//
// Source is accepted in three shapes: complete shaders with their own main,
// shaders defining mainImage, and bare statement lists that use the FC, r, t
// and o aliases. Compile patches a number of non-portable constructs, wraps
// the code in an entry point and declares exactly the uniforms it
// references. BuildUniformTable produces the matching set of values, which a
// FrameClock then updates every frame.
package shadertoy

import (
	"math"
)

// DefaultVertexSource draws the fullscreen strip the fragment shader is
// rendered on.
const DefaultVertexSource = `attribute vec3 vert;

void main(void) {
	gl_Position = vec4(vert, 1.0);
}
`

var precisions = []string{"lowp", "mediump", "highp"}

type CompileConfig struct {
	// Precision is the default float precision. Anything other than lowp,
	// mediump and highp is replaced with highp.
	Precision string
	// DevicePixelRatio is exposed to the shader as DPR. Non-positive values
	// are replaced with 1.
	DevicePixelRatio float64
	// TextureChannels is the number of texture channels in use, 0 through 4.
	TextureChannels int
	// CustomUniforms are declared and given a value if the source mentions
	// them.
	CustomUniforms map[string]Value
	// VertexSource replaces DefaultVertexSource if set.
	VertexSource string
}

func (cfg CompileConfig) normalized() CompileConfig {
	valid := false
	for _, p := range precisions {
		valid = valid || cfg.Precision == p
	}
	if !valid {
		cfg.Precision = "highp"
	}
	if !(cfg.DevicePixelRatio > 0) || math.IsInf(cfg.DevicePixelRatio, 0) {
		cfg.DevicePixelRatio = 1
	}
	if cfg.TextureChannels < 0 {
		cfg.TextureChannels = 0
	} else if cfg.TextureChannels > MaxChannels {
		cfg.TextureChannels = MaxChannels
	}
	return cfg
}

type CompiledShader struct {
	FragmentSource string
	VertexSource   string
}

// Compile produces a complete shader program from ShaderToy style source.
// It never fails: source it does not understand is compiled as a Direct
// shader and left for the GLSL compiler to report on.
func Compile(source string, cfg CompileConfig) CompiledShader {
	cfg = cfg.normalized()
	dialect := DetectDialect(source)
	wrapped := Wrap(Patch(source, dialect), dialect, cfg)

	vert := cfg.VertexSource
	if vert == "" {
		vert = DefaultVertexSource
	}
	return CompiledShader{
		FragmentSource: Inject(wrapped, cfg),
		VertexSource:   vert,
	}
}
