package shadertoy

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/chewxy/math32"
)

// Patch rewrites constructs that ShaderToy accepts but which do not compile
// or behave differently elsewhere. The rules run in a fixed order, each on the
// output of the previous one.
func Patch(source string, dialect Dialect) string {
	for _, rule := range patchRules {
		source = rule.apply(source, dialect)
	}
	return source
}

type patchRule struct {
	name  string
	apply func(src string, dialect Dialect) string
}

var patchRules = []patchRule{
	{name: "loop counters", apply: initLoopCounters},
	{name: "rotation matrices", apply: rewriteRotations},
	{name: "exp overflow", apply: guardExp},
	{name: "uninitialized locals", apply: initLocals},
	{name: "legacy aliases", apply: injectAliases},
	{name: "output default", apply: defaultOutput},
	{name: "known shaders", apply: func(src string, _ Dialect) string { return applyFixups(src) }},
}

var (
	forRe         = regexp.MustCompile(`\bfor\s*\(`)
	floatInitRe   = regexp.MustCompile(`(?s)^(\s*(?:(?:lowp|mediump|highp)\s+)?float\s+)(.*)$`)
	loopCondRe    = regexp.MustCompile(`^\s*(?:\+\+|--)?\s*([A-Za-z_]\w*)`)
	floatDeclRe   = regexp.MustCompile(`\b(?:(?:lowp|mediump|highp)\s+)?float\s+([^;(){}]*);`)
	rotationRe    = regexp.MustCompile(`\bmat2\s*\(\s*cos\s*\(`)
	expRe         = regexp.MustCompile(`\bexp\s*\(`)
	localDeclRe   = regexp.MustCompile(`\b(?:(?:lowp|mediump|highp)\s+)?(float|vec2|vec3|vec4)\s+([^;]*);`)
	// Phases are literals. The rewrite drops them, so anything else would
	// vanish from the shader.
	phaseIdentRe  = regexp.MustCompile(`(?:^|[^\w.])[A-Za-z_]`)
	outParamRe    = regexp.MustCompile(`\bout\s+(?:(?:lowp|mediump|highp)\s+)?vec4\s+(\w+)`)
	aliasDeclTmpl = `\b(?:float|int|vec[234])\s+%s\b`
)

// initLoopCounters gives float loop counters without an initializer a start
// value of zero.
//
//	for(float i; i<9.; i++)  ->  for(float i=0.; i<9.; i++)
//	float i; for(; i<9.; i++)  ->  float i; for(i=0.; i<9.; i++)
func initLoopCounters(src string, _ Dialect) string {
	comments := commentRe.FindAllStringIndex(src, -1)
	var b strings.Builder
	last := 0
	for _, loc := range forRe.FindAllStringIndex(src, -1) {
		open := loc[1] - 1
		if open < last || inSpans(loc[0], comments) {
			continue
		}
		close := matchClose(src, open)
		if close < 0 {
			continue
		}
		clauses := splitTopLevel(src[open+1:close], ';')
		if len(clauses) != 3 {
			continue
		}
		init, ok := loopInit(src[:loc[0]], clauses)
		if !ok {
			continue
		}
		b.WriteString(src[last : open+1])
		b.WriteString(init)
		last = open + 1 + len(clauses[0])
	}
	b.WriteString(src[last:])
	return b.String()
}

func loopInit(before string, clauses []string) (string, bool) {
	init := clauses[0]
	if strings.TrimSpace(init) == "" {
		m := loopCondRe.FindStringSubmatch(clauses[1])
		if m == nil || !uninitializedFloat(before, m[1]) {
			return "", false
		}
		return init + m[1] + "=0.", true
	}

	m := floatInitRe.FindStringSubmatch(init)
	if m == nil {
		return "", false
	}
	decls := splitTopLevel(m[2], ',')
	changed := false
	for i, d := range decls {
		if strings.Contains(d, "=") || !identRe.MatchString(strings.TrimSpace(d)) {
			continue
		}
		decls[i] = withInitializer(d, "=0.")
		changed = true
	}
	return m[1] + strings.Join(decls, ","), changed
}

// uninitializedFloat reports whether the most recent declaration of name in
// text is a float without an initializer that has not been touched since.
func uninitializedFloat(text, name string) bool {
	locs := floatDeclRe.FindAllStringSubmatchIndex(text, -1)
	for i := len(locs) - 1; i >= 0; i-- {
		l := locs[i]
		if !startsStatement(text, l[0]) {
			continue
		}
		for _, d := range splitTopLevel(text[l[2]:l[3]], ',') {
			d = strings.TrimSpace(d)
			if d == name {
				return !wordRe(name).MatchString(text[l[1]:])
			}
			if strings.HasPrefix(d, name) && strings.HasPrefix(strings.TrimSpace(d[len(name):]), "=") {
				return false
			}
		}
	}
	return false
}

// rewriteRotations replaces rotation matrices that are constructed from a
// single vec4 with the explicit cosine/sine form.
//
//	mat2(cos(a+vec4(0,33,11,0)))  ->  mat2(cos(a), sin(a), -sin(a), cos(a))
//
// Occurrences that belong to a known shader are left to its fix-up.
func rewriteRotations(src string, _ Dialect) string {
	protected := fixupSpans(src)
	var b strings.Builder
	last := 0
	for _, loc := range rotationRe.FindAllStringIndex(src, -1) {
		if loc[0] < last || inSpans(loc[0], protected) {
			continue
		}
		matOpen := loc[0] + strings.IndexByte(src[loc[0]:], '(')
		matClose := matchClose(src, matOpen)
		cosOpen := loc[1] - 1
		cosClose := matchClose(src, cosOpen)
		if matClose < 0 || cosClose < 0 || strings.TrimSpace(src[cosClose+1:matClose]) != "" {
			continue
		}
		angle, ok := rotationAngle(src[cosOpen+1 : cosClose])
		if !ok {
			continue
		}
		b.WriteString(src[last:loc[0]])
		fmt.Fprintf(&b, "mat2(cos(%[1]s), sin(%[1]s), -sin(%[1]s), cos(%[1]s))", angle)
		last = matClose + 1
	}
	b.WriteString(src[last:])
	return b.String()
}

// rotationAngle extracts the angle from "<angle> + vec4(...)".
func rotationAngle(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if !strings.HasSuffix(arg, ")") {
		return "", false
	}
	open := matchOpen(arg, len(arg)-1)
	if open < 0 {
		return "", false
	}
	head := strings.TrimRight(arg[:open], " \t\r\n")
	if !strings.HasSuffix(head, "vec4") || phaseIdentRe.MatchString(arg[open+1:len(arg)-1]) {
		return "", false
	}
	head = strings.TrimSuffix(head, "vec4")
	if n := len(head); n > 0 && (head[n-1] == '_' || isAlnum(head[n-1])) {
		return "", false
	}
	head = strings.TrimRight(head, " \t\r\n")
	if !strings.HasSuffix(head, "+") {
		return "", false
	}
	angle := strings.TrimSpace(strings.TrimSuffix(head, "+"))
	return angle, angle != ""
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// The largest x for which exp(x) is still a finite float32, with a margin.
var (
	expLimit  = math32.Floor(math32.Log(math.MaxFloat32)) - 1
	expBounds = fmt.Sprintf(", %.1f, %.1f)", -expLimit, expLimit)
)

// guardExp clamps the argument of every exp call so it can not overflow.
// Nested calls are guarded too and guarded calls are left alone.
func guardExp(src string, _ Dialect) string {
	pos := 0
	for {
		loc := expRe.FindStringIndex(src[pos:])
		if loc == nil {
			return src
		}
		open := pos + loc[1] - 1
		if inSpans(pos+loc[0], commentRe.FindAllStringIndex(src, -1)) {
			pos = open + 1
			continue
		}
		close := matchClose(src, open)
		if close < 0 {
			pos = open + 1
			continue
		}
		arg := src[open+1 : close]
		if isExpGuarded(arg) {
			pos = open + 1
			continue
		}
		src = src[:open+1] + "clamp(" + arg + expBounds + src[close:]
		pos = open + 1 + len("clamp(")
	}
}

func isExpGuarded(arg string) bool {
	a := strings.TrimSpace(arg)
	if !strings.HasPrefix(a, "clamp") || !strings.HasSuffix(a, expBounds) {
		return false
	}
	open := strings.IndexByte(a, '(')
	if open < 0 || strings.TrimSpace(a[len("clamp"):open]) != "" {
		return false
	}
	return matchClose(a, open) == len(a)-1
}

var zeroValues = map[string]string{
	"float": "0.",
	"vec2":  "vec2(0.)",
	"vec3":  "vec3(0.)",
	"vec4":  "vec4(0.)",
}

// initLocals zero-initializes float and vector declarations in the image
// function. Every declarator is treated on its own.
func initLocals(src string, dialect Dialect) string {
	fn, ok := imageFunction(src, dialect)
	if !ok {
		return src
	}
	body := src[fn.bodyStart:fn.bodyEnd]
	var b strings.Builder
	last := 0
	for _, m := range localDeclRe.FindAllStringSubmatchIndex(body, -1) {
		if !startsStatement(body, m[0]) {
			continue
		}
		decls, ok := zeroInitialized(body[m[4]:m[5]], zeroValues[body[m[2]:m[3]]])
		if !ok {
			continue
		}
		b.WriteString(body[last:m[4]])
		b.WriteString(decls)
		last = m[5]
	}
	b.WriteString(body[last:])
	return src[:fn.bodyStart] + b.String() + src[fn.bodyEnd:]
}

func zeroInitialized(declarators, zero string) (string, bool) {
	decls := splitTopLevel(declarators, ',')
	changed := false
	for i, d := range decls {
		name := strings.TrimSpace(d)
		if strings.ContainsAny(name, "=[") {
			continue
		}
		if !identRe.MatchString(name) {
			return "", false
		}
		decls[i] = withInitializer(d, " = "+zero)
		changed = true
	}
	return strings.Join(decls, ","), changed
}

var legacyAliases = []struct {
	builtin, alias, decl string
}{
	{builtin: UniformResolution, alias: "resolution", decl: "vec2 resolution = iResolution.xy;"},
	{builtin: UniformTime, alias: "time", decl: "float time = iTime;"},
}

// injectAliases declares the GLSL Sandbox style resolution and time variables
// for shaders that use them instead of the ShaderToy uniforms.
func injectAliases(src string, dialect Dialect) string {
	fn, ok := imageFunction(src, dialect)
	if !ok {
		return src
	}
	body := stripComments(src[fn.bodyStart:fn.bodyEnd])
	code := stripComments(src)
	var stmts []string
	for _, a := range legacyAliases {
		if references(body, a.builtin) || !wordRe(a.alias).MatchString(body) {
			continue
		}
		if regexp.MustCompile(fmt.Sprintf(aliasDeclTmpl, a.alias)).MatchString(code) {
			continue
		}
		stmts = append(stmts, a.decl)
	}
	if len(stmts) == 0 {
		return src
	}
	return insertAtEntry(src, fn, stmts)
}

// defaultOutput clears the output color of mainImage on entry unless the
// function body assigns it unconditionally.
func defaultOutput(src string, dialect Dialect) string {
	if dialect != MainImageStyle {
		return src
	}
	fn, ok := imageFunction(src, dialect)
	if !ok {
		return src
	}
	m := outParamRe.FindStringSubmatch(fn.params)
	if m == nil || assignedAtTopLevel(stripComments(src[fn.bodyStart:fn.bodyEnd]), m[1]) {
		return src
	}
	return insertAtEntry(src, fn, []string{m[1] + " = vec4(0.0);"})
}

// assignedAtTopLevel reports whether a statement that is not nested in any
// block or condition assigns to name.
func assignedAtTopLevel(body, name string) bool {
	assign := regexp.MustCompile(`^\s*` + regexp.QuoteMeta(name) + `\s*=[^=]`)
	starts := []int{0}
	braces, parens := 0, 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '{':
			braces++
		case '}':
			braces--
			if braces == 0 {
				starts = append(starts, i+1)
			}
		case '(':
			parens++
		case ')':
			parens--
		case ';':
			if braces == 0 && parens == 0 {
				starts = append(starts, i+1)
			}
		}
	}
	for _, s := range starts {
		if assign.MatchString(body[s:]) {
			return true
		}
	}
	return false
}

// A fixup is a hand written replacement for a construct in a specific,
// well known shader that the general rules can not handle.
type fixup struct {
	name string
	// The fixup applies if all strings of any one of the signatures occur in
	// the source.
	signatures  [][]string
	pattern     *regexp.Regexp
	replacement string
}

var fixups = []fixup{
	{
		name: "Singularity by XorDev",
		signatures: [][]string{
			{"v*=mat2(cos(log(length(v))+iTime*.2+vec4(0,33,11,0)))*5.;"},
			{"Singularity", "XorDev"},
		},
		pattern:     regexp.MustCompile(regexp.QuoteMeta("v*=mat2(cos(log(length(v))+iTime*.2+vec4(0,33,11,0)))*5.")),
		replacement: "float rotAngle = log(length(v))+iTime*.2; v*=mat2(cos(rotAngle), sin(rotAngle), -sin(rotAngle), cos(rotAngle))*5.",
	},
}

func (f fixup) matches(src string) bool {
outer:
	for _, sig := range f.signatures {
		for _, s := range sig {
			if !strings.Contains(src, s) {
				continue outer
			}
		}
		return true
	}
	return false
}

// applyFixups replaces the first occurrence of the pattern of every fixup
// whose signature is present.
func applyFixups(src string) string {
	for _, f := range fixups {
		if !f.matches(src) {
			continue
		}
		if loc := f.pattern.FindStringIndex(src); loc != nil {
			src = src[:loc[0]] + f.replacement + src[loc[1]:]
		}
	}
	return src
}

func fixupSpans(src string) [][]int {
	var spans [][]int
	for _, f := range fixups {
		if !f.matches(src) {
			continue
		}
		if loc := f.pattern.FindStringIndex(src); loc != nil {
			spans = append(spans, loc)
		}
	}
	return spans
}
