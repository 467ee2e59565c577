package renderer

import (
	"runtime"
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// initTestGL makes a hidden GL context current on the goroutine of the
// test. Tests are skipped on machines without a display.
func initTestGL(t *testing.T) {
	t.Helper()
	runtime.LockOSThread()
	window, err := newWindow(1, 1, false, "test")
	if err != nil {
		runtime.UnlockOSThread()
		t.Skipf("no OpenGL context available: %v", err)
	}
	t.Cleanup(func() {
		window.Destroy()
		glfw.Terminate()
		runtime.UnlockOSThread()
	})
}

// newTestEngine creates an offscreen engine or skips the test.
func newTestEngine(t *testing.T, w, h int) *Engine {
	t.Helper()
	runtime.LockOSThread()
	e, err := NewEngine(w, h, false, nil)
	if err != nil {
		runtime.UnlockOSThread()
		t.Skipf("no OpenGL context available: %v", err)
	}
	t.Cleanup(func() {
		e.Close()
		runtime.UnlockOSThread()
	})
	return e
}
