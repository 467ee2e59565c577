package renderer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestMarkers(t *testing.T) {
	logs := map[string]string{
		"mesa":   "0:3(2): error: syntax error, unexpected IDENTIFIER\n",
		"nvidia": "0(3) : error C0000: syntax error, unexpected IDENTIFIER\n",
		"angle":  "ERROR: 0:3: 'IDENTIFIER' : syntax error\n",
	}
	for driver, log := range logs {
		t.Run(driver, func(t *testing.T) {
			m := CompileError{Stage: StageFragment, Log: log}.markers()
			if len(m) != 1 {
				t.Fatalf("unexpected number of markers: exp 1, got %d", len(m))
			}
			if m[0].lineno != 3 {
				t.Errorf("unexpected lineno: exp 3, got %d", m[0].lineno)
			}
			if m[0].severity != "error" {
				t.Errorf("unexpected severity: %q", m[0].severity)
			}
		})
	}
}

func TestMarkersSorted(t *testing.T) {
	log := "0:9(1): warning: unused\n0:2(1): error: undeclared\nsomething else\n"
	m := CompileError{Log: log}.markers()
	if len(m) != 2 {
		t.Fatalf("unexpected number of markers: exp 2, got %d", len(m))
	}
	if m[0].lineno != 2 || m[1].lineno != 9 {
		t.Fatalf("markers are not sorted by line: %+v", m)
	}
}

func TestPrettyPrint(t *testing.T) {
	cerr := CompileError{
		Stage:  StageFragment,
		Source: "void main() {\n\tgl_FragColor = vec4(x);\n}\n",
		Log:    "0:2(22): error: `x' undeclared\n",
	}
	var buf bytes.Buffer
	cerr.PrettyPrint(&buf, false)
	out := buf.String()
	if !strings.Contains(out, "   2 | \tgl_FragColor = vec4(x);") {
		t.Errorf("source line is missing:\n%s", out)
	}
	if !strings.Contains(out, "error: `x' undeclared") {
		t.Errorf("message is missing:\n%s", out)
	}

	buf.Reset()
	CompileError{Stage: StageVertex, Log: "garbage"}.PrettyPrint(&buf, false)
	if !strings.Contains(buf.String(), "garbage") {
		t.Errorf("unparsable log was not printed: %q", buf.String())
	}
}

func TestCompileErrorPosition(t *testing.T) {
	initTestGL(t)

	source := `#version 330 core

void main() {
	#error meh
}
`
	_, err := compileShader(StageVertex, source)
	var cerr CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected a compile error, got %v", err)
	}
	t.Logf("\n%s\n", cerr.Log)

	m := cerr.markers()
	if len(m) == 0 {
		t.Fatalf("Expected at least one error marker")
	}
	if m[0].lineno != 4 {
		t.Fatalf("Unexpected lineno: %d", m[0].lineno)
	}
}

func TestInvalidStage(t *testing.T) {
	if _, err := Stage("geom").glEnum(); err == nil {
		t.Fatal("expected an error")
	}
}
