package shadertoy

import (
	"regexp"
	"strings"
	"testing"
)

var declarationRe = regexp.MustCompile(`(?m)^uniform\s+\w+\s+(\w+)`)

func TestCompileMainImage(t *testing.T) {
	source := `void mainImage(out vec4 fragColor, in vec2 fragCoord){ fragColor = vec4(1.0); }`
	if d := DetectDialect(source); d != MainImageStyle {
		t.Fatalf("unexpected dialect: %v", d)
	}
	out := Compile(source, CompileConfig{}).FragmentSource

	if n := len(mainRe.FindAllString(out, -1)); n != 1 {
		t.Fatalf("expected exactly one main function, got %d:\n%s", n, out)
	}
	for _, expected := range []string{"mainImage(color, gl_FragCoord.xy);", "gl_FragColor = color;"} {
		if !strings.Contains(out, expected) {
			t.Fatalf("%q is missing from the output:\n%s", expected, out)
		}
	}
	if strings.Contains(out, "fragColor = vec4(0.0);") {
		t.Fatalf("an assigned output was given a default:\n%s", out)
	}
}

func TestCompileDirect(t *testing.T) {
	body := `o = vec4(FC.x/r.x, FC.y/r.y, 0.0, 1.0);`
	if d := DetectDialect(body); d != Direct {
		t.Fatalf("unexpected dialect: %v", d)
	}
	out := Compile(body, CompileConfig{}).FragmentSource

	bodyPos := strings.Index(out, body)
	if bodyPos < 0 {
		t.Fatalf("the body is missing from the output:\n%s", out)
	}
	for _, alias := range []string{
		"vec2 FC = fragCoord;",
		"vec2 r = iResolution.xy;",
		"float t = iTime;",
		"vec4 o = vec4(0.0, 0.0, 0.0, 1.0);",
	} {
		i := strings.Index(out, alias)
		if i < 0 || i > bodyPos {
			t.Fatalf("%q is not defined before the body:\n%s", alias, out)
		}
	}
	if n := len(mainRe.FindAllString(out, -1)); n != 1 {
		t.Fatalf("expected exactly one main function, got %d:\n%s", n, out)
	}
	if !strings.Contains(out, "fragColor = o;") {
		t.Fatalf("o is not written to the output:\n%s", out)
	}
}

func TestCompileComplete(t *testing.T) {
	source := "uniform vec2 iResolution;\nuniform float iTime;\nvoid main() { gl_FragColor = vec4(iTime); }\n"
	out := Compile(source, CompileConfig{}).FragmentSource
	if !strings.HasSuffix(out, source) {
		t.Fatalf("complete shaders should be passed through:\n%s", out)
	}
	for _, name := range []string{"iTime", "iResolution"} {
		if n := countDeclarations(out, name); n != 1 {
			t.Fatalf("%s is declared %d times:\n%s", name, n, out)
		}
	}
}

func TestCompileHeader(t *testing.T) {
	out := Compile(`o = vec4(1.0);`, CompileConfig{Precision: "mediump", DevicePixelRatio: 2}).FragmentSource
	expected := "precision mediump float;\n#define DPR 2.0\nuniform float iTime;\nuniform vec2 iResolution;\n"
	if !strings.HasPrefix(out, expected) {
		t.Fatalf("unexpected header:\n%s", out)
	}
	if !strings.Contains(out, "vec3 hsv(float h, float s, float v)") {
		t.Fatalf("the helper functions are missing:\n%s", out)
	}
}

func TestCompileConfigFallback(t *testing.T) {
	cases := []CompileConfig{
		{Precision: "ultra", DevicePixelRatio: -3},
		{Precision: "", DevicePixelRatio: 0},
	}
	for _, cfg := range cases {
		out := Compile(`o = vec4(1.0);`, cfg).FragmentSource
		if !strings.HasPrefix(out, "precision highp float;\n#define DPR 1.0\n") {
			t.Fatalf("unexpected header for %+v:\n%s", cfg, out)
		}
	}
	if cfg := (CompileConfig{TextureChannels: 9}).normalized(); cfg.TextureChannels != MaxChannels {
		t.Fatalf("texture channels were not clamped: %d", cfg.TextureChannels)
	}
}

func TestCompileVertexSource(t *testing.T) {
	if out := Compile(`o = vec4(1.0);`, CompileConfig{}); out.VertexSource != DefaultVertexSource {
		t.Fatalf("unexpected vertex source: %q", out.VertexSource)
	}
	custom := "attribute vec3 vert;\nvoid main() { gl_Position = vec4(vert.yx, 0.0, 1.0); }\n"
	if out := Compile(`o = vec4(1.0);`, CompileConfig{VertexSource: custom}); out.VertexSource != custom {
		t.Fatalf("unexpected vertex source: %q", out.VertexSource)
	}
}

func TestCompileHelperDefinedByAuthor(t *testing.T) {
	source := "vec3 hsv(float h, float s, float v) { return vec3(h, s, v); }\nvoid mainImage(out vec4 c, in vec2 p) { c = vec4(hsv(0., 1., 1.), 1.); }\n"
	out := Compile(source, CompileConfig{}).FragmentSource
	if n := strings.Count(out, "vec3 hsv("); n != 1 {
		t.Fatalf("hsv is defined %d times:\n%s", n, out)
	}
}

func TestCompileOptionalUniforms(t *testing.T) {
	source := `void mainImage(out vec4 c, in vec2 p){ c = iMouse / iResolution.xyxy; }`
	out := Compile(source, CompileConfig{}).FragmentSource
	if !strings.Contains(out, "uniform vec4 iMouse;") {
		t.Fatalf("iMouse is not declared:\n%s", out)
	}
	if strings.Contains(out, "iFrame") {
		t.Fatalf("iFrame should not be declared:\n%s", out)
	}

	table := BuildUniformTable(source, CompileConfig{}, nil)
	mouse, ok := table["iMouse"]
	if !ok {
		t.Fatalf("iMouse is missing from the table")
	}
	if mouse.Kind != Vec4 || mouse.Vec != [4]float32{} {
		t.Fatalf("unexpected iMouse value: %v", mouse)
	}
	if _, ok := table["iFrame"]; ok {
		t.Fatalf("iFrame should not be in the table")
	}
}

func TestCompileTextureCall(t *testing.T) {
	source := `void mainImage(out vec4 c, in vec2 p){ c = texture(iChannel0, p) + texture (iChannel1, p) + texture2D(iChannel0, p); }`
	out := Compile(source, CompileConfig{TextureChannels: 2}).FragmentSource
	if textureCallRe.MatchString(out) {
		t.Fatalf("texture() calls remain in the output:\n%s", out)
	}
	if n := strings.Count(out, "texture2D("); n < 3 {
		t.Fatalf("expected at least 3 texture2D calls, got %d:\n%s", n, out)
	}
	for _, decl := range []string{"uniform sampler2D iChannel0;", "uniform sampler2D iChannel1;"} {
		if !strings.Contains(out, decl) {
			t.Fatalf("%q is missing:\n%s", decl, out)
		}
	}
}

func TestCompileChannels(t *testing.T) {
	source := `void mainImage(out vec4 c, in vec2 p){ c = texture(iChannel1, p / iChannelResolution[1].xy) + texture(iChannel3, p); }`

	out := Compile(source, CompileConfig{TextureChannels: 2}).FragmentSource
	if !strings.Contains(out, "uniform sampler2D iChannel1;") {
		t.Fatalf("iChannel1 is not declared:\n%s", out)
	}
	if strings.Contains(out, "uniform sampler2D iChannel0;") || strings.Contains(out, "uniform sampler2D iChannel3;") {
		t.Fatalf("unreferenced or out of range channels are declared:\n%s", out)
	}
	if !strings.Contains(out, "uniform vec3 iChannelResolution[2];") {
		t.Fatalf("iChannelResolution is not declared:\n%s", out)
	}

	out = Compile(source, CompileConfig{}).FragmentSource
	if strings.Contains(out, "uniform vec3 iChannelResolution") {
		t.Fatalf("iChannelResolution is declared without any channels:\n%s", out)
	}
}

func TestCompileCustomUniforms(t *testing.T) {
	cfg := CompileConfig{
		CustomUniforms: map[string]Value{
			"uSpeed":  FloatValue(2),
			"uTint":   Vec3Value(1, 0, 0),
			"uUnused": Vec4Value(1, 2, 3, 4),
			"iTime":   FloatValue(5),
		},
	}
	source := `void mainImage(out vec4 c, in vec2 p){ c = vec4(uTint * sin(iTime * uSpeed), 1.0); }`
	out := Compile(source, cfg).FragmentSource
	for _, decl := range []string{"uniform float uSpeed;", "uniform vec3 uTint;"} {
		if !strings.Contains(out, decl) {
			t.Fatalf("%q is missing:\n%s", decl, out)
		}
	}
	if strings.Contains(out, "uUnused") {
		t.Fatalf("an unreferenced custom uniform is declared:\n%s", out)
	}
	if n := countDeclarations(out, "iTime"); n != 1 {
		t.Fatalf("iTime is declared %d times", n)
	}

	table := BuildUniformTable(source, cfg, nil)
	if v, ok := table["uSpeed"]; !ok || v.Vec[0] != 2 {
		t.Fatalf("unexpected uSpeed entry: %v", v)
	}
	if _, ok := table["uUnused"]; ok {
		t.Fatalf("an unreferenced custom uniform is in the table")
	}
	if v := table["iTime"]; v.Vec[0] != 0 {
		t.Fatalf("a custom uniform replaced a built-in: %v", v)
	}
}

func TestCompileDeterministic(t *testing.T) {
	cfg := CompileConfig{
		TextureChannels: 3,
		CustomUniforms: map[string]Value{
			"uA": FloatValue(1),
			"uB": FloatValue(2),
			"uC": FloatValue(3),
			"uD": FloatValue(4),
		},
	}
	for _, source := range testSources {
		a := Compile(source, cfg)
		b := Compile(source, cfg)
		if a != b {
			t.Fatalf("compiling %q twice gave different results", source)
		}
	}
}

func TestDeclarationsMatchTable(t *testing.T) {
	cfgs := []CompileConfig{
		{},
		{TextureChannels: 1},
		{TextureChannels: 4},
	}
	for _, cfg := range cfgs {
		for _, source := range testSources {
			out := Compile(source, cfg).FragmentSource
			table := BuildUniformTable(source, cfg, nil)

			for _, d := range Builtins() {
				_, inTable := table[d.Name]
				declared := countDeclarations(out, d.Name) > 0
				if inTable != declared {
					t.Errorf("%s: declared=%v, in table=%v for source %q (channels %d)", d.Name, declared, inTable, source, cfg.TextureChannels)
				}
			}
			for name := range table {
				if !references(out, name) {
					t.Errorf("%s is in the table but not referenced by the shader", name)
				}
			}
		}
	}
}

func TestNoDuplicateDeclarations(t *testing.T) {
	for _, source := range testSources {
		out := Compile(source, CompileConfig{TextureChannels: 4}).FragmentSource
		seen := map[string]bool{}
		for _, m := range declarationRe.FindAllStringSubmatch(out, -1) {
			if seen[m[1]] {
				t.Fatalf("%s is declared more than once:\n%s", m[1], out)
			}
			seen[m[1]] = true
		}
	}
}

func countDeclarations(code, name string) int {
	re := regexp.MustCompile(`\buniform\s+\w+\s+` + regexp.QuoteMeta(name) + `\b`)
	return len(re.FindAllString(code, -1))
}

var testSources = []string{
	``,
	`o = vec4(FC.xy / r, sin(t), 1.0);`,
	`void mainImage(out vec4 c, in vec2 p) { c = vec4(iDate.w, iTimeDelta, float(iFrame), 1.0); }`,
	`void mainImage(out vec4 c, in vec2 p) { c = texture(iChannel0, p / iChannelResolution[0].xy) * iMouse.x; }`,
	`void mainImage(out vec4 c, in vec2 p) { c = texture(iChannel2, p) + texture(iChannel3, p) + iDeviceOrientation; }`,
	"uniform float iTime;\nvoid main() { gl_FragColor = vec4(iTime + uA + uB, 0.0, 0.0, 1.0); }",
	"void mainImage(out vec4 c, in vec2 p) {\n\tvec2 uv = p / resolution;\n\tc = vec4(uv, sin(time), 1.);\n}",
	"// Singularity by @XorDev\nvec2 v = FC.xy;\nv*=mat2(cos(log(length(v))+iTime*.2+vec4(0,33,11,0)))*5.;\no = vec4(v, 0., 1.);",
	"for(float i;i++<9.;) { o.rgb += hsv(i / 9., 1., exp(-i)); }",
}
