// Package translate turns compiled shaders into desktop GLSL.
//
// Shaders are compiled for GLSL ES 1.00. The desktop core profile accepts
// none of that, so before a program is linked both stages are run through
// ANGLE's translator. If the translator is unavailable, Shim applies the
// handful of textual substitutions that are enough for most shaders.
package translate

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	gst "github.com/richinsley/goshadertranslator"

	"github.com/polyfloyd/shaderism/shadertoy"
)

const (
	stageFragment = "fragment"
	stageVertex   = "vertex"
)

// FragmentOutput is the name of the color output of shim translated
// fragment shaders.
const FragmentOutput = "shaderism_FragColor"

// A Program is a shader program ready to be compiled by a core profile
// context.
type Program struct {
	Fragment string
	Vertex   string
	// Translated is false when the program was produced by Shim.
	Translated bool

	names map[string]string
}

// Name returns the name a variable of the original source has in the
// translated program.
func (p Program) Name(name string) string {
	if mapped, ok := p.names[name]; ok {
		return mapped
	}
	return name
}

type Translator struct {
	gst *gst.ShaderTranslator
}

// New loads the translator. This takes a while, so a single translator
// should be shared by all shaders.
func New(ctx context.Context) (*Translator, error) {
	t, err := gst.NewShaderTranslator(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load the shader translator: %v", err)
	}
	return &Translator{gst: t}, nil
}

// Desktop translates both stages to GLSL 3.30.
func (t *Translator) Desktop(cs shadertoy.CompiledShader) (Program, error) {
	frag, err := t.gst.TranslateShader(lowerPrecision(cs.FragmentSource), stageFragment, gst.ShaderSpecWebGL2, gst.OutputFormatGLSL330)
	if err != nil {
		return Program{}, fmt.Errorf("fragment shader translation failed: %w", err)
	}
	vert, err := t.gst.TranslateShader(cs.VertexSource, stageVertex, gst.ShaderSpecWebGL2, gst.OutputFormatGLSL330)
	if err != nil {
		return Program{}, fmt.Errorf("vertex shader translation failed: %w", err)
	}

	names := map[string]string{}
	for _, s := range []*gst.Shader{vert, frag} {
		for name, v := range s.Variables {
			if v.MappedName != "" {
				names[name] = v.MappedName
			}
		}
	}
	return Program{
		Fragment:   frag.Code,
		Vertex:     vert.Code,
		Translated: true,
		names:      names,
	}, nil
}

// Check validates the fragment shader of cs and reports the uniforms of
// table that the shader declares but never uses. iTime and iResolution are
// always declared and therefore not reported.
func (t *Translator) Check(cs shadertoy.CompiledShader, table shadertoy.UniformTable) ([]string, error) {
	frag, err := t.gst.TranslateShader(lowerPrecision(cs.FragmentSource), stageFragment, gst.ShaderSpecWebGL2, gst.OutputFormatGLSL330)
	if err != nil {
		return nil, err
	}
	return unusedUniforms(frag.Variables, table), nil
}

var highpRe = regexp.MustCompile(`\bhighp\b`)

// lowerPrecision replaces highp with mediump. ESSL 1.00 fragment shaders
// only get highp if GL_FRAGMENT_PRECISION_HIGH is defined, which the
// translator does not do. Desktop GLSL ignores precision qualifiers, so the
// translated program is the same.
func lowerPrecision(fragment string) string {
	return highpRe.ReplaceAllString(fragment, "mediump")
}

// Close releases the translator runtime.
func (t *Translator) Close() error {
	switch c := interface{}(t.gst).(type) {
	case interface{ Close(context.Context) error }:
		return c.Close(context.Background())
	case interface{ Close() error }:
		return c.Close()
	case interface{ Close() }:
		c.Close()
	}
	return nil
}

func unusedUniforms(vars map[string]gst.ShaderVariable, table shadertoy.UniformTable) []string {
	var warnings []string
	for _, name := range table.Names() {
		if name == shadertoy.UniformTime || name == shadertoy.UniformResolution {
			continue
		}
		if v, ok := vars[name]; !ok || !v.StaticUse {
			warnings = append(warnings, fmt.Sprintf("uniform %s is declared but not used", name))
		}
	}
	sort.Strings(warnings)
	return warnings
}

var (
	shimAttributeRe = regexp.MustCompile(`\battribute\b`)
	shimVaryingRe   = regexp.MustCompile(`\bvarying\b`)
	shimTextureRe   = regexp.MustCompile(`\btexture2D\s*\(`)
	shimFragColorRe = regexp.MustCompile(`\bgl_FragColor\b`)
	shimVersionRe   = regexp.MustCompile(`(?m)^\s*#version[^\n]*\n`)
)

const shimHeader = "#version 330 core\n"

// Shim rewrites a GLSL ES 1.00 program to GLSL 3.30 without a translator.
// Variable names are left as they are.
func Shim(cs shadertoy.CompiledShader) Program {
	vert := shimVersionRe.ReplaceAllString(cs.VertexSource, "")
	vert = shimAttributeRe.ReplaceAllString(vert, "in")
	vert = shimVaryingRe.ReplaceAllString(vert, "out")

	frag := shimVersionRe.ReplaceAllString(cs.FragmentSource, "")
	frag = shimVaryingRe.ReplaceAllString(frag, "in")
	frag = shimTextureRe.ReplaceAllString(frag, "texture(")
	frag = shimFragColorRe.ReplaceAllString(frag, FragmentOutput)

	return Program{
		Fragment: shimHeader + "out vec4 " + FragmentOutput + ";\n" + frag,
		Vertex:   shimHeader + vert,
	}
}
