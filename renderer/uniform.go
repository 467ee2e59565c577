package renderer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/polyfloyd/shaderism/shadertoy"
	"github.com/polyfloyd/shaderism/translate"
)

// Uniform is an active uniform of a linked program.
type Uniform struct {
	Name     string
	Type     uint32
	Location int32
}

// ListUniforms returns the active uniforms of a program. Arrays are expanded
// into an entry for every element, e.g. "a[0]" and "a[1]".
func ListUniforms(program uint32) map[string]Uniform {
	var numUniforms int32
	gl.GetProgramiv(program, gl.ACTIVE_UNIFORMS, &numUniforms)
	var bufSize int32
	gl.GetProgramiv(program, gl.ACTIVE_UNIFORM_MAX_LENGTH, &bufSize)

	uniforms := map[string]Uniform{}
	for i := uint32(0); i < uint32(numUniforms); i++ {
		var length, size int32
		var typ uint32
		nameBuf := strings.Repeat("\x00", int(bufSize)+1)
		gl.GetActiveUniform(program, i, bufSize, &length, &size, &typ, gl.Str(nameBuf))
		name := nameBuf[:length]

		if !strings.HasSuffix(name, "[0]") {
			uniforms[name] = Uniform{
				Name:     name,
				Type:     typ,
				Location: gl.GetUniformLocation(program, gl.Str(name+"\x00")),
			}
			continue
		}
		baseName := strings.TrimSuffix(name, "[0]")
		for i := 0; i < int(size); i++ {
			elemName := fmt.Sprintf("%s[%d]", baseName, i)
			loc := gl.GetUniformLocation(program, gl.Str(elemName+"\x00"))
			if loc == -1 {
				break
			}
			uniforms[elemName] = Uniform{
				Name:     elemName,
				Type:     typ,
				Location: loc,
			}
		}
	}
	return uniforms
}

// A binding connects an entry of the uniform table to the locations it is
// uploaded to.
type binding struct {
	name      string
	value     *shadertoy.Value
	locations []int32
	unit      int32
}

// bindUniforms resolves the locations of all uniforms in the table.
// Uniforms that the GLSL compiler optimized away are left out.
func bindUniforms(table shadertoy.UniformTable, prog translate.Program, active map[string]Uniform) []binding {
	var bindings []binding
	for _, name := range table.Names() {
		value := table[name]
		mapped := prog.Name(name)
		b := binding{name: name, value: value}

		if value.Kind == shadertoy.Vec3Array {
			for i := range value.Array {
				u, ok := active[fmt.Sprintf("%s[%d]", mapped, i)]
				if !ok {
					break
				}
				b.locations = append(b.locations, u.Location)
			}
		} else if u, ok := active[mapped]; ok {
			b.locations = []int32{u.Location}
		}
		if len(b.locations) == 0 {
			continue
		}
		if value.Kind == shadertoy.Sampler {
			unit, err := strconv.Atoi(strings.TrimPrefix(name, shadertoy.UniformChannel))
			if err != nil {
				continue
			}
			b.unit = int32(unit)
		}
		bindings = append(bindings, b)
	}
	return bindings
}

// upload sets the current value. The program must be in use.
func (b binding) upload() {
	v := b.value
	loc := b.locations[0]
	switch v.Kind {
	case shadertoy.Float:
		gl.Uniform1f(loc, v.Vec[0])
	case shadertoy.Int:
		gl.Uniform1i(loc, v.Int)
	case shadertoy.Vec2:
		gl.Uniform2f(loc, v.Vec[0], v.Vec[1])
	case shadertoy.Vec3:
		gl.Uniform3f(loc, v.Vec[0], v.Vec[1], v.Vec[2])
	case shadertoy.Vec4:
		gl.Uniform4f(loc, v.Vec[0], v.Vec[1], v.Vec[2], v.Vec[3])
	case shadertoy.Vec3Array:
		for i, loc := range b.locations {
			e := v.Array[i]
			gl.Uniform3f(loc, e[0], e[1], e[2])
		}
	case shadertoy.Sampler:
		var id uint32
		if h, ok := v.Texture.Handle.(uint32); ok {
			id = h
		}
		gl.ActiveTexture(gl.TEXTURE0 + uint32(b.unit))
		gl.BindTexture(gl.TEXTURE_2D, id)
		gl.Uniform1i(loc, b.unit)
	}
}
