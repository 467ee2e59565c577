// Package renderer draws shaders with OpenGL, either offscreen to produce
// images or to a window on screen.
package renderer

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/polyfloyd/shaderism/translate"
)

const windowTitle = "shaderism"

// Engine owns an OpenGL context and the scene being drawn. Apart from
// SetScene, its methods must be called from the thread that created it.
type Engine struct {
	w, h    int
	visible bool
	window  *glfw.Window

	translator  *translate.Translator
	orientation func() [4]float32

	vao, vbo uint32
	targets  *pboRenderer

	scene     *loadedScene
	newScenes chan Scene

	// Virtual time of offscreen rendering.
	base   time.Time
	offset time.Duration
}

// NewEngine creates an engine that renders at the given size. A visible
// engine opens a window which the user may resize.
//
// The translator may be nil, in which case shaders are converted to
// desktop GLSL with translate.Shim.
func NewEngine(width, height int, visible bool, tr *translate.Translator) (*Engine, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", width, height)
	}
	window, err := newWindow(width, height, visible, windowTitle)
	if err != nil {
		return nil, err
	}

	debug := GLDebugOutput()
	go func() {
		for dm := range debug {
			if dm.Severity != gl.DEBUG_SEVERITY_NOTIFICATION {
				log.Printf("OpenGL %s", dm)
			}
		}
	}()

	e := &Engine{
		w:          width,
		h:          height,
		visible:    visible,
		window:     window,
		translator: tr,
		newScenes:  make(chan Scene, 1),
		base:       time.Now(),
	}
	if !visible {
		e.targets = &pboRenderer{w: width, h: height}
		e.targets.Setup()
	}

	// The canvas.
	vertices := []float32{
		-1.0, -1.0, 0.0,
		1.0, -1.0, 0.0,
		-1.0, 1.0, 0.0,
		1.0, 1.0, 0.0,
	}
	gl.GenVertexArrays(1, &e.vao)
	gl.BindVertexArray(e.vao)
	gl.GenBuffers(1, &e.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, e.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(&vertices[0]), gl.STATIC_DRAW)
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.ClearColor(0, 0, 0, 1)
	return e, nil
}

// SetOrientationSource sets the function that is polled for the value of
// iDeviceOrientation before every frame.
func (e *Engine) SetOrientationSource(fn func() [4]float32) {
	e.orientation = fn
}

// Load replaces the current scene immediately. If the scene can not be
// loaded, the previous one stays and its textures are released.
//
// Compile errors are of type CompileError.
func (e *Engine) Load(scene Scene) error {
	ls, err := e.loadScene(scene, e.now)
	if err != nil {
		scene.Channels.Close()
		return err
	}
	if e.scene != nil {
		e.scene.Close()
	}
	e.scene = ls
	return nil
}

// SetScene queues a scene to replace the current one at the start of the
// next frame. It is safe to call from any goroutine. A queued scene that has
// not been picked up yet is discarded.
func (e *Engine) SetScene(scene Scene) {
	for {
		select {
		case e.newScenes <- scene:
			return
		case old := <-e.newScenes:
			old.Channels.Close()
		}
	}
}

// reloadScene ensures that a scene is loaded. If none is, it blocks until
// one arrives or the context is canceled.
func (e *Engine) reloadScene(ctx context.Context) error {
	for {
		var scene Scene
		if e.scene == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case scene = <-e.newScenes:
			}
		} else {
			select {
			case scene = <-e.newScenes:
			default:
				return nil
			}
		}
		if err := e.Load(scene); err != nil {
			log.Printf("Error reloading scene: %v", err)
		}
	}
}

func (e *Engine) now() time.Time {
	if e.visible {
		return time.Now()
	}
	return e.base.Add(e.offset)
}

// Image renders a single frame at time zero.
func (e *Engine) Image(ctx context.Context) (*image.RGBA, error) {
	if e.targets == nil {
		return nil, fmt.Errorf("engine renders to a window")
	}
	if err := e.reloadScene(ctx); err != nil {
		return nil, err
	}
	e.scene.clock.SetResolution(float32(e.w), float32(e.h))
	handle := e.targets.Draw(func() { e.scene.draw(e.orientation) })
	img := e.targets.Image(handle)
	flipRows(img)
	return img, nil
}

// Animate renders frames offscreen and sends them to stream until the
// context is canceled. The time between frames is interval regardless of
// how long rendering takes.
func (e *Engine) Animate(ctx context.Context, interval time.Duration, stream chan<- image.Image) error {
	if e.targets == nil {
		return fmt.Errorf("engine renders to a window")
	}
	buffer := make(chan int, e.targets.NumBuffers())
	for {
		if err := e.reloadScene(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		e.scene.clock.SetResolution(float32(e.w), float32(e.h))
		handle := e.targets.Draw(func() { e.scene.draw(e.orientation) })
		e.offset += interval

		buffer <- handle
		if len(buffer) != cap(buffer) {
			// Give the first renders time to complete.
			continue
		}
		img := e.targets.Image(<-buffer)
		flipRows(img)
		select {
		case <-ctx.Done():
			return nil
		case stream <- img:
		}
	}
}

// Run draws the scene to the window until the context is canceled or the
// window is closed, in which case ErrWindowClosed is returned.
func (e *Engine) Run(ctx context.Context) error {
	if !e.visible {
		return fmt.Errorf("engine renders offscreen")
	}
	var mouse pointer
	for !e.window.ShouldClose() {
		if err := e.reloadScene(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fbw, fbh := e.window.GetFramebufferSize()
		gl.Viewport(0, 0, int32(fbw), int32(fbh))
		clock := e.scene.clock
		clock.SetResolution(float32(fbw), float32(fbh))
		clock.SetMouse(mouse.update(e.window))
		e.scene.draw(e.orientation)

		e.window.SwapBuffers()
		glfw.PollEvents()
	}
	return ErrWindowClosed
}

func (e *Engine) Close() error {
	var err error
	if e.scene != nil {
		err = e.scene.Close()
	}
	select {
	case scene := <-e.newScenes:
		scene.Channels.Close()
	default:
	}
	if e.targets != nil {
		e.targets.Close()
	}
	gl.DeleteVertexArrays(1, &e.vao)
	gl.DeleteBuffers(1, &e.vbo)
	e.window.Destroy()
	glfw.Terminate()
	return err
}

// pboRenderer renders to a ring of framebuffers. Their contents are copied
// to pixel buffers asynchronously, so reading a frame only stalls if it is
// the most recent one.
type pboRenderer struct {
	w, h           int
	curTargetIndex int
	targets        [3]struct {
		pbo, rbo, fbo uint32
	}
}

func (pr *pboRenderer) Setup() {
	for i := range pr.targets {
		t := &pr.targets[i]
		gl.GenFramebuffers(1, &t.fbo)
		gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
		gl.GenRenderbuffers(1, &t.rbo)
		gl.BindRenderbuffer(gl.RENDERBUFFER, t.rbo)
		gl.RenderbufferStorage(gl.RENDERBUFFER, gl.RGBA8, int32(pr.w), int32(pr.h))
		gl.FramebufferRenderbuffer(gl.DRAW_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.RENDERBUFFER, t.rbo)
		gl.ReadBuffer(gl.COLOR_ATTACHMENT0)

		gl.GenBuffers(1, &t.pbo)
		gl.BindBuffer(gl.PIXEL_PACK_BUFFER, t.pbo)
		gl.BufferData(gl.PIXEL_PACK_BUFFER, pr.w*pr.h*4, nil, gl.DYNAMIC_READ)
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 4)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
	gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
}

func (pr *pboRenderer) NumBuffers() int {
	return len(pr.targets)
}

// Draw renders a frame with the function provided and starts the transfer
// to its pixel buffer. The returned handle refers to the frame.
func (pr *pboRenderer) Draw(drawFunc func()) int {
	pr.curTargetIndex = (pr.curTargetIndex + 1) % len(pr.targets)
	t := &pr.targets[pr.curTargetIndex]
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	drawFunc()
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, t.pbo)
	gl.ReadPixels(0, 0, int32(pr.w), int32(pr.h), gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return pr.curTargetIndex
}

// Image reads a frame. Its rows are in GL order, bottom to top.
func (pr *pboRenderer) Image(handle int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, pr.w, pr.h))
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, pr.targets[handle].pbo)
	gl.GetBufferSubData(gl.PIXEL_PACK_BUFFER, 0, pr.w*pr.h*4, gl.Ptr(&img.Pix[0]))
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
	return img
}

func (pr *pboRenderer) Close() error {
	for _, t := range pr.targets {
		gl.DeleteFramebuffers(1, &t.fbo)
		gl.DeleteRenderbuffers(1, &t.rbo)
		gl.DeleteBuffers(1, &t.pbo)
	}
	return nil
}
