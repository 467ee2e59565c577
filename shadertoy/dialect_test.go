package shadertoy

import (
	"testing"
)

func TestDetectDialectMainImage(t *testing.T) {
	sources := []string{
		`void mainImage( out vec4 fragColor, in vec2 fragCoord ) { }`,
		`void mainImage( out vec4 fragColor, vec2 fragCoord )`,
		`void mainImage(out vec4 foo,in vec2 bar){}`,
		`void   mainImage  (  out  vec4  o  ,  in   vec2  i  )  {  }`,
		`void mainImage(out vec4 o, const in vec2 i) {}`,
		`void mainImage(out highp vec4 c, in highp vec2 p) {}`,
		`void mainImage(out mediump vec4 c, vec2 p) {}`,
	}
	for _, s := range sources {
		if d := DetectDialect(s); d != MainImageStyle {
			t.Fatalf("expected %v for source %q, got %v", MainImageStyle, s, d)
		}
	}
}

func TestDetectDialectComplete(t *testing.T) {
	sources := []string{
		`void main() { gl_FragColor = vec4(1.0); }`,
		`void main(void){}`,
		"void  main\n(void) {}",
		`void mainImage(out vec4 o, in vec2 i) {} void main() { mainImage(gl_FragColor, gl_FragCoord.xy); }`,
	}
	for _, s := range sources {
		if d := DetectDialect(s); d != Complete {
			t.Fatalf("expected %v for source %q, got %v", Complete, s, d)
		}
	}
}

func TestDetectDialectDirect(t *testing.T) {
	sources := []string{
		``,
		`o = vec4(FC.xy / r, 0.0, 1.0);`,
		"// void main() {}\no = vec4(1.0);",
		"/* void mainImage(out vec4 o, in vec2 i) {} */ o.r = t;",
		`void mainImage(vec4 o, vec2 i) {}`,
		`void domain() {}`,
	}
	for _, s := range sources {
		if d := DetectDialect(s); d != Direct {
			t.Fatalf("expected %v for source %q, got %v", Direct, s, d)
		}
	}
}
