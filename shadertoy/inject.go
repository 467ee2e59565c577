package shadertoy

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var textureCallRe = regexp.MustCompile(`\btexture\s*\(`)

// Inject inserts the declarations of all uniforms the wrapped shader uses
// between its preamble and body, and renames texture() to texture2D().
func Inject(w Wrapped, cfg CompileConfig) string {
	cfg = cfg.normalized()
	code := stripComments(w.Body)

	var b strings.Builder
	b.WriteString(w.Preamble)
	seen := map[string]bool{}
	for _, u := range selectUniforms(w.Body, w.Source, cfg) {
		if seen[u.Name] || declaredInSource(code, u.Name) {
			continue
		}
		seen[u.Name] = true
		b.WriteString(u.Default.Declaration(u.Name))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(w.Body)
	return textureCallRe.ReplaceAllString(b.String(), "texture2D(")
}

func declaredInSource(code, name string) bool {
	re := regexp.MustCompile(`\buniform\s+(?:(?:lowp|mediump|highp)\s+)?\w+\s+` + regexp.QuoteMeta(name) + `\b`)
	return re.MatchString(code)
}

// selectUniforms decides which uniforms a shader uses. Built-ins are looked
// up in code, custom uniforms in customCode. The declaration injector and the
// table builder both go through here so they always agree.
func selectUniforms(code, customCode string, cfg CompileConfig) []UniformDescriptor {
	var out []UniformDescriptor
	for _, d := range builtins {
		switch d.Default.Kind {
		case Sampler:
			if channelIndex(d.Name) >= cfg.TextureChannels || !references(code, d.Name) {
				continue
			}
		case Vec3Array:
			if cfg.TextureChannels == 0 || !references(code, d.Name) {
				continue
			}
			d.Default = Value{Kind: Vec3Array, Array: make([][3]float32, cfg.TextureChannels)}
		default:
			if !alwaysDeclared(d.Name) && !references(code, d.Name) {
				continue
			}
		}
		d.Default = d.Default.Copy()
		out = append(out, d)
	}

	names := make([]string, 0, len(cfg.CustomUniforms))
	for name := range cfg.CustomUniforms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := builtinIndex[name]; ok || !references(customCode, name) {
			continue
		}
		out = append(out, UniformDescriptor{Name: name, Default: cfg.CustomUniforms[name].Copy()})
	}
	return out
}

func channelIndex(name string) int {
	i, err := strconv.Atoi(strings.TrimPrefix(name, UniformChannel))
	if err != nil {
		return -1
	}
	return i
}
