package shadertoy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Functions that every shader may call.
const helperSource = `vec3 hsv(float h, float s, float v) {
	vec4 K = vec4(1.0, 2.0/3.0, 1.0/3.0, 3.0);
	vec3 p = abs(fract(vec3(h) + K.xyz) * 6.0 - K.www);
	return v * mix(K.xxx, clamp(p - K.xxx, 0.0, 1.0), s);
}
`

const mainImageWrapper = `
void main(void) {
	vec4 color = vec4(0.0, 0.0, 0.0, 1.0);
	mainImage(color, gl_FragCoord.xy);
	gl_FragColor = color;
}
`

const directTemplate = `void mainImage(out vec4 fragColor, in vec2 fragCoord) {
	vec2 FC = fragCoord;
	vec2 r = iResolution.xy;
	float t = iTime;
	vec4 o = vec4(0.0, 0.0, 0.0, 1.0);
%s
	fragColor = o;
}
`

var hsvDefRe = regexp.MustCompile(`\bvec3\s+hsv\s*\(`)

// Wrapped is a shader that has been given a main entry point but does not
// yet declare its uniforms.
type Wrapped struct {
	// Preamble sets the float precision and defines DPR.
	Preamble string
	// Body holds the helper functions, the author's code and the entry
	// point.
	Body string
	// Source is the author's code after patching.
	Source string
}

func (w Wrapped) String() string {
	return w.Preamble + w.Body
}

// Wrap turns patched source of the specified dialect into a shader with a
// single main function.
func Wrap(patched string, dialect Dialect, cfg CompileConfig) Wrapped {
	cfg = cfg.normalized()

	var preamble strings.Builder
	fmt.Fprintf(&preamble, "precision %s float;\n", cfg.Precision)
	fmt.Fprintf(&preamble, "#define DPR %s\n", strconv.FormatFloat(cfg.DevicePixelRatio, 'f', 1, 64))

	var body strings.Builder
	if !hsvDefRe.MatchString(stripComments(patched)) {
		body.WriteString(helperSource)
		body.WriteString("\n")
	}
	switch dialect {
	case Complete:
		body.WriteString(patched)
	case MainImageStyle:
		body.WriteString(patched)
		body.WriteString(mainImageWrapper)
	default:
		fmt.Fprintf(&body, directTemplate, patched)
		body.WriteString(mainImageWrapper)
	}

	return Wrapped{
		Preamble: preamble.String(),
		Body:     body.String(),
		Source:   patched,
	}
}
