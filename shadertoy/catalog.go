package shadertoy

import (
	"fmt"
	"strings"
)

// Kind is the GLSL type of a uniform value.
type Kind int

const (
	Float Kind = iota
	Int
	Vec2
	Vec3
	Vec4
	Vec3Array
	Sampler
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "float"
	case Int:
		return "int"
	case Vec2:
		return "vec2"
	case Vec3:
		return "vec3"
	case Vec4:
		return "vec4"
	case Vec3Array:
		return "vec3[]"
	case Sampler:
		return "sampler2D"
	}
	return "invalid"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := Float; k <= Sampler; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown uniform type %q", s)
}

// Texture is an opaque texture handle as supplied by a texture loader. A nil
// Handle means that the texture is absent, e.g. because it failed to load.
type Texture struct {
	Handle        interface{}
	Width, Height int
}

// Present reports whether the texture was loaded.
func (t Texture) Present() bool {
	return t.Handle != nil
}

// Value holds the current value of a single uniform. Which field is
// meaningful depends on Kind: scalars and vectors use Vec, Int uses Int,
// Vec3Array uses Array and Sampler uses Texture.
type Value struct {
	Kind    Kind
	Vec     [4]float32
	Int     int32
	Array   [][3]float32
	Texture Texture
}

func FloatValue(f float32) Value { return Value{Kind: Float, Vec: [4]float32{f}} }

func IntValue(i int32) Value { return Value{Kind: Int, Int: i} }

func Vec2Value(x, y float32) Value { return Value{Kind: Vec2, Vec: [4]float32{x, y}} }

func Vec3Value(x, y, z float32) Value { return Value{Kind: Vec3, Vec: [4]float32{x, y, z}} }

func Vec4Value(x, y, z, w float32) Value { return Value{Kind: Vec4, Vec: [4]float32{x, y, z, w}} }

// Copy returns a value that shares no memory with v.
func (v Value) Copy() Value {
	if v.Array != nil {
		arr := make([][3]float32, len(v.Array))
		copy(arr, v.Array)
		v.Array = arr
	}
	return v
}

// Declaration returns the GLSL declaration of a uniform with this value's
// type.
func (v Value) Declaration(name string) string {
	if v.Kind == Vec3Array {
		return fmt.Sprintf("uniform vec3 %s[%d];", name, len(v.Array))
	}
	return fmt.Sprintf("uniform %s %s;", v.Kind, name)
}

func (v Value) String() string {
	switch v.Kind {
	case Float:
		return fmt.Sprintf("%g", v.Vec[0])
	case Int:
		return fmt.Sprintf("%d", v.Int)
	case Vec2:
		return fmt.Sprintf("vec2(%g, %g)", v.Vec[0], v.Vec[1])
	case Vec3:
		return fmt.Sprintf("vec3(%g, %g, %g)", v.Vec[0], v.Vec[1], v.Vec[2])
	case Vec4:
		return fmt.Sprintf("vec4(%g, %g, %g, %g)", v.Vec[0], v.Vec[1], v.Vec[2], v.Vec[3])
	case Vec3Array:
		elems := make([]string, len(v.Array))
		for i, e := range v.Array {
			elems[i] = fmt.Sprintf("vec3(%g, %g, %g)", e[0], e[1], e[2])
		}
		return "[" + strings.Join(elems, ", ") + "]"
	case Sampler:
		return fmt.Sprintf("sampler2D(%dx%d)", v.Texture.Width, v.Texture.Height)
	}
	return "invalid"
}

// UniformDescriptor describes a uniform the shader environment knows about.
type UniformDescriptor struct {
	Name    string
	Default Value
}

// MaxChannels is the number of texture channels a shader can sample from.
const MaxChannels = 4

const (
	UniformTime              = "iTime"
	UniformTimeDelta         = "iTimeDelta"
	UniformFrame             = "iFrame"
	UniformDate              = "iDate"
	UniformMouse             = "iMouse"
	UniformResolution        = "iResolution"
	UniformDeviceOrientation = "iDeviceOrientation"
	UniformChannel           = "iChannel"
	UniformChannelResolution = "iChannelResolution"
)

// ChannelName returns the sampler uniform name of the texture channel at the
// specified index.
func ChannelName(index int) string {
	return fmt.Sprintf("%s%d", UniformChannel, index)
}

var builtins = []UniformDescriptor{
	{Name: UniformTime, Default: FloatValue(0)},
	{Name: UniformResolution, Default: Vec2Value(0, 0)},
	{Name: UniformTimeDelta, Default: FloatValue(0)},
	{Name: UniformFrame, Default: IntValue(0)},
	{Name: UniformMouse, Default: Vec4Value(0, 0, 0, 0)},
	{Name: UniformDate, Default: Vec4Value(0, 0, 0, 0)},
	{Name: UniformDeviceOrientation, Default: Vec4Value(0, 0, 0, 0)},
	{Name: ChannelName(0), Default: Value{Kind: Sampler}},
	{Name: ChannelName(1), Default: Value{Kind: Sampler}},
	{Name: ChannelName(2), Default: Value{Kind: Sampler}},
	{Name: ChannelName(3), Default: Value{Kind: Sampler}},
	{Name: UniformChannelResolution, Default: Value{Kind: Vec3Array}},
}

var builtinIndex = func() map[string]int {
	m := make(map[string]int, len(builtins))
	for i, d := range builtins {
		m[d.Name] = i
	}
	return m
}()

// Builtin looks up a built-in uniform by name.
func Builtin(name string) (UniformDescriptor, bool) {
	i, ok := builtinIndex[name]
	if !ok {
		return UniformDescriptor{}, false
	}
	d := builtins[i]
	d.Default = d.Default.Copy()
	return d, true
}

// Builtins returns all built-in uniforms in declaration order.
func Builtins() []UniformDescriptor {
	out := make([]UniformDescriptor, len(builtins))
	for i, d := range builtins {
		d.Default = d.Default.Copy()
		out[i] = d
	}
	return out
}

// alwaysDeclared reports whether a uniform is declared regardless of whether
// the shader references it.
func alwaysDeclared(name string) bool {
	return name == UniformTime || name == UniformResolution
}

// references is the membership test shared by the declaration injector and
// the uniform table builder: a uniform is in use iff its name occurs anywhere
// in the text.
func references(text, name string) bool {
	return strings.Contains(text, name)
}
