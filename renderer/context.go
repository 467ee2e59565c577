package renderer

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// ErrWindowClosed is returned by Run when the user closes the window.
var ErrWindowClosed = errors.New("the window was closed")

// newWindow initializes GLFW and creates a window with a current OpenGL 3.3
// core context. An invisible window only serves as the owner of the context
// for offscreen rendering.
//
// GLFW must only be used from the main thread, so the caller should have
// locked it with runtime.LockOSThread.
func newWindow(width, height int, visible bool, title string) (*glfw.Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("could not initialize GLFW: %v", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 3)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLDebugContext, glfw.True)
	if visible {
		glfw.WindowHint(glfw.Visible, glfw.True)
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Visible, glfw.False)
		glfw.WindowHint(glfw.Resizable, glfw.False)
	}

	window, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("could not create a window: %v", err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("could not initialize OpenGL: %v", err)
	}
	if visible {
		glfw.SwapInterval(1)
	}
	return window, nil
}

// pointer tracks the mouse the way ShaderToy reports it in iMouse: xy is
// the position while the left button is held, zw the position of the last
// click, negated once the button is released.
type pointer struct {
	down        bool
	last, click [2]float32
}

func (p *pointer) update(window *glfw.Window) [4]float32 {
	x, y := window.GetCursorPos()
	fbw, fbh := window.GetFramebufferSize()
	ww, wh := window.GetSize()
	scaleX, scaleY := 1.0, 1.0
	if ww > 0 && wh > 0 {
		scaleX, scaleY = float64(fbw)/float64(ww), float64(fbh)/float64(wh)
	}
	// GL puts the origin in the bottom left.
	pos := [2]float32{float32(x * scaleX), float32(float64(fbh) - y*scaleY)}

	if window.GetMouseButton(glfw.MouseButtonLeft) == glfw.Press {
		if !p.down {
			p.click = pos
		}
		p.down = true
		p.last = pos
	} else {
		p.down = false
	}
	if p.down {
		return [4]float32{p.last[0], p.last[1], p.click[0], p.click[1]}
	}
	return [4]float32{p.last[0], p.last[1], -p.click[0], -p.click[1]}
}
