package translate

import (
	"context"
	"strings"
	"testing"

	gst "github.com/richinsley/goshadertranslator"

	"github.com/polyfloyd/shaderism/shadertoy"
)

func TestShim(t *testing.T) {
	cs := shadertoy.Compile(`void mainImage(out vec4 c, in vec2 p) { c = texture(iChannel0, p / iResolution.xy); }`, shadertoy.CompileConfig{TextureChannels: 1})
	p := Shim(cs)

	if p.Translated {
		t.Fatalf("a shim program should not be marked as translated")
	}
	if !strings.HasPrefix(p.Fragment, "#version 330 core\n") || !strings.HasPrefix(p.Vertex, "#version 330 core\n") {
		t.Fatalf("missing version directive")
	}
	if strings.Contains(p.Fragment, "texture2D") || strings.Contains(p.Fragment, "gl_FragColor") {
		t.Fatalf("ES constructs remain in the fragment shader:\n%s", p.Fragment)
	}
	if !strings.Contains(p.Fragment, FragmentOutput+" = color;") {
		t.Fatalf("the output is not written:\n%s", p.Fragment)
	}
	if !strings.Contains(p.Vertex, "in vec3 vert;") || strings.Contains(p.Vertex, "attribute") {
		t.Fatalf("unexpected vertex shader:\n%s", p.Vertex)
	}
	if p.Name("iTime") != "iTime" {
		t.Fatalf("the shim should not rename variables")
	}
}

func TestShimReplacesVersion(t *testing.T) {
	cs := shadertoy.CompiledShader{
		FragmentSource: "#version 100\nvarying vec2 uv;\nvoid main() { gl_FragColor = vec4(uv, 0., 1.); }\n",
		VertexSource:   "#version 100\nattribute vec3 vert;\nvarying vec2 uv;\nvoid main() { uv = vert.xy; gl_Position = vec4(vert, 1.); }\n",
	}
	p := Shim(cs)
	if strings.Count(p.Fragment, "#version") != 1 || strings.Count(p.Vertex, "#version") != 1 {
		t.Fatalf("duplicate version directives:\n%s\n%s", p.Fragment, p.Vertex)
	}
	if !strings.Contains(p.Fragment, "in vec2 uv;") || !strings.Contains(p.Vertex, "out vec2 uv;") {
		t.Fatalf("varyings were not rewritten:\n%s\n%s", p.Fragment, p.Vertex)
	}
}

func TestUnusedUniforms(t *testing.T) {
	table := shadertoy.UniformTable{
		"iTime":       &shadertoy.Value{Kind: shadertoy.Float},
		"iResolution": &shadertoy.Value{Kind: shadertoy.Vec2},
		"iMouse":      &shadertoy.Value{Kind: shadertoy.Vec4},
		"iFrame":      &shadertoy.Value{Kind: shadertoy.Int},
		"iDate":       &shadertoy.Value{Kind: shadertoy.Vec4},
	}
	vars := map[string]gst.ShaderVariable{
		"iMouse": {Name: "iMouse", MappedName: "_uiMouse", StaticUse: true},
		"iFrame": {Name: "iFrame", MappedName: "_uiFrame", StaticUse: false},
	}
	warnings := unusedUniforms(vars, table)
	expected := []string{
		"uniform iDate is declared but not used",
		"uniform iFrame is declared but not used",
	}
	if len(warnings) != len(expected) {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	for i := range expected {
		if warnings[i] != expected[i] {
			t.Fatalf("unexpected warnings: %v", warnings)
		}
	}
}

func TestProgramName(t *testing.T) {
	p := Program{names: map[string]string{"iTime": "_uiTime"}}
	if p.Name("iTime") != "_uiTime" || p.Name("iMouse") != "iMouse" {
		t.Fatalf("unexpected names")
	}
}

func TestDesktop(t *testing.T) {
	tr, err := New(context.Background())
	if err != nil {
		t.Skipf("translator unavailable: %v", err)
	}
	defer tr.Close()

	for _, precision := range []string{"", "lowp", "mediump", "highp"} {
		t.Run("precision "+precision, func(t *testing.T) {
			source := `void mainImage(out vec4 c, in vec2 p) { highp vec2 uv = p / iResolution.xy; c = vec4(uv, iMouse.x, 1.0); }`
			cfg := shadertoy.CompileConfig{Precision: precision}
			cs := shadertoy.Compile(source, cfg)
			if _, err := tr.Desktop(cs); err != nil {
				t.Fatalf("translation failed: %v", err)
			}
			warnings, err := tr.Check(cs, shadertoy.BuildUniformTable(source, cfg, nil))
			if err != nil {
				t.Fatalf("check failed: %v", err)
			}
			if len(warnings) != 0 {
				t.Fatalf("unexpected warnings: %v", warnings)
			}
		})
	}

	cs := shadertoy.Compile(`void mainImage(out vec4 c, in vec2 p) { c = vec4(p / iResolution.xy, sin(iTime), 1.0); }`, shadertoy.CompileConfig{})
	p, err := tr.Desktop(cs)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Translated || p.Fragment == "" || p.Vertex == "" {
		t.Fatalf("unexpected program: %+v", p)
	}
	if p.Name("iTime") == "" {
		t.Fatalf("iTime has no name")
	}

	if _, err := tr.Desktop(shadertoy.CompiledShader{FragmentSource: "void main() { undefined(); }", VertexSource: cs.VertexSource}); err == nil {
		t.Fatalf("expected an error for an invalid shader")
	}

	warnings, err := tr.Check(cs, shadertoy.BuildUniformTable(`c = vec4(1.);`, shadertoy.CompileConfig{}, nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}

func TestLowerPrecision(t *testing.T) {
	in := "precision highp float;\nuniform highp vec2 iResolution;\nvec2 highpass;\n"
	expected := "precision mediump float;\nuniform mediump vec2 iResolution;\nvec2 highpass;\n"
	if out := lowerPrecision(in); out != expected {
		t.Fatalf("unexpected output:\nexp %q\ngot %q", expected, out)
	}
}
