package renderer

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"
)

type Stage string

const (
	StageVertex   Stage = "vert"
	StageFragment Stage = "frag"
)

func (stage Stage) glEnum() (uint32, error) {
	switch stage {
	case StageVertex:
		return gl.VERTEX_SHADER, nil
	case StageFragment:
		return gl.FRAGMENT_SHADER, nil
	}
	return 0, fmt.Errorf("invalid pipeline stage: %q", stage)
}

func (stage Stage) String() string {
	switch stage {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	}
	return string(stage)
}

func compileShader(stage Stage, source string) (uint32, error) {
	glStage, err := stage.glEnum()
	if err != nil {
		return 0, err
	}

	shader := gl.CreateShader(glStage)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, CompileError{
			Stage:  stage,
			Source: source,
			Log:    strings.TrimRight(log, "\x00"),
		}
	}
	return shader, nil
}

func linkProgram(vertex, fragment string) (uint32, error) {
	vert, err := compileShader(StageVertex, vertex)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vert)
	frag, err := compileShader(StageFragment, fragment)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(frag)

	program := gl.CreateProgram()
	gl.AttachShader(program, vert)
	gl.AttachShader(program, frag)
	gl.LinkProgram(program)
	gl.DetachShader(program, vert)
	gl.DetachShader(program, frag)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(program, logLen, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, LinkError{Log: strings.TrimRight(log, "\x00")}
	}
	return program, nil
}

// CompileError is returned when the OpenGL driver rejects a shader.
type CompileError struct {
	Stage  Stage
	Source string
	Log    string
}

func (err CompileError) Error() string {
	return fmt.Sprintf("error compiling %s shader:\n%s", err.Stage, err.Log)
}

type marker struct {
	lineno   int
	severity string
	message  string
}

// Drivers disagree on the format of their logs.
var markerRes = []*regexp.Regexp{
	// Mesa: 0:3(5): error: ...
	regexp.MustCompile(`^\d+:(\d+)\(\d+\): (error|warning): (.*)$`),
	// NVIDIA: 0(3) : error C0000: ...
	regexp.MustCompile(`^\d+\((\d+)\) : (error|warning) \w+: (.*)$`),
	// ANGLE and others: ERROR: 0:3: ...
	regexp.MustCompile(`^(?i:(error|warning)): \d+:(\d+): (.*)$`),
}

func (err CompileError) markers() []marker {
	var markers []marker
	for _, line := range strings.Split(err.Log, "\n") {
		line = strings.TrimSpace(line)
		for i, re := range markerRes {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			lineStr, severity := m[1], m[2]
			if i == 2 {
				lineStr, severity = m[2], m[1]
			}
			lineno, _ := strconv.Atoi(lineStr)
			markers = append(markers, marker{
				lineno:   lineno,
				severity: strings.ToLower(severity),
				message:  m[3],
			})
			break
		}
	}
	sort.SliceStable(markers, func(i, j int) bool { return markers[i].lineno < markers[j].lineno })
	return markers
}

// PrettyPrint writes the offending source lines with the messages the
// compiler attached to them. If the log can not be parsed, it is written as
// is.
func (err CompileError) PrettyPrint(out io.Writer, color bool) {
	markers := err.markers()
	if len(markers) == 0 {
		fmt.Fprintln(out, err.Error())
		return
	}
	lines := strings.Split(err.Source, "\n")
	fmt.Fprintf(out, "error compiling %s shader:\n", err.Stage)
	for _, m := range markers {
		src := ""
		if m.lineno >= 1 && m.lineno <= len(lines) {
			src = lines[m.lineno-1]
		}
		severity := m.severity
		if color {
			code := "33"
			if severity == "error" {
				code = "31"
			}
			severity = "\x1b[" + code + "m" + severity + "\x1b[0m"
		}
		fmt.Fprintf(out, "%4d | %s\n     %s: %s\n", m.lineno, src, severity, m.message)
	}
}

type LinkError struct {
	Log string
}

func (err LinkError) Error() string {
	return "error linking program:\n" + err.Log
}
