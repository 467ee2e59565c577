package shadertoy

import (
	"regexp"
)

// Dialect is the shape in which shader source was written.
type Dialect int

const (
	// Complete shaders define their own main function.
	Complete Dialect = iota
	// MainImageStyle shaders define the ShaderToy mainImage entry point.
	MainImageStyle
	// Direct shaders are a bare statement list using the FC, r, t and o
	// aliases.
	Direct
)

func (d Dialect) String() string {
	switch d {
	case Complete:
		return "complete"
	case MainImageStyle:
		return "mainImage"
	case Direct:
		return "direct"
	}
	return "invalid"
}

var (
	mainRe      = regexp.MustCompile(`\bvoid\s+main\s*\(`)
	mainImageRe = regexp.MustCompile(`\bvoid\s+mainImage\s*\(\s*out\s+(?:(?:lowp|mediump|highp)\s+)?vec4\s+\w+\s*,\s*(?:(?:const\s+)?in\s+)?(?:(?:lowp|mediump|highp)\s+)?vec2\s+\w+\s*\)`)
	commentRe   = regexp.MustCompile(`(?s)//[^\n]*|/\*.*?\*/`)
)

// DetectDialect classifies shader source. Text that looks like neither a
// complete shader nor a mainImage shader is treated as Direct.
func DetectDialect(source string) Dialect {
	code := stripComments(source)
	if mainRe.MatchString(code) {
		return Complete
	}
	if mainImageRe.MatchString(code) {
		return MainImageStyle
	}
	return Direct
}

func stripComments(source string) string {
	return commentRe.ReplaceAllString(source, " ")
}
