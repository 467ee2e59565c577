package renderer

import (
	"log"
	"time"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/polyfloyd/shaderism/shadertoy"
	"github.com/polyfloyd/shaderism/texture"
	"github.com/polyfloyd/shaderism/translate"
)

// A Scene is a shader and the textures it samples.
type Scene struct {
	Source string
	Config shadertoy.CompileConfig
	// Channels is owned by the engine once the scene is handed over and is
	// closed when the scene is replaced. It may be nil.
	Channels *texture.Set
}

// loadedScene is a scene that is ready to be drawn.
type loadedScene struct {
	program  uint32
	table    shadertoy.UniformTable
	bindings []binding
	textures *channelTextures
	clock    *shadertoy.FrameClock
	channels *texture.Set
}

func (e *Engine) loadScene(scene Scene, now func() time.Time) (*loadedScene, error) {
	cfg := scene.Config
	cfg.TextureChannels = scene.Channels.Count()
	compiled := shadertoy.Compile(scene.Source, cfg)

	prog := translate.Shim(compiled)
	if e.translator != nil {
		translated, err := e.translator.Desktop(compiled)
		if err != nil {
			log.Printf("Falling back to plain GLSL: %v", err)
		} else {
			prog = translated
		}
	}

	program, err := linkProgram(prog.Vertex, prog.Fragment)
	if err != nil {
		return nil, err
	}

	textures := uploadChannels(scene.Channels)
	table := shadertoy.BuildUniformTable(scene.Source, cfg, textures)
	ls := &loadedScene{
		program:  program,
		table:    table,
		bindings: bindUniforms(table, prog, ListUniforms(program)),
		textures: textures,
		clock:    shadertoy.NewFrameClock(now),
		channels: scene.Channels,
	}

	gl.BindVertexArray(e.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, e.vbo)
	vertLoc := gl.GetAttribLocation(program, gl.Str(prog.Name("vert")+"\x00"))
	if vertLoc >= 0 {
		gl.EnableVertexAttribArray(uint32(vertLoc))
		gl.VertexAttribPointer(uint32(vertLoc), 3, gl.FLOAT, false, 0, nil)
	}
	return ls, nil
}

// step ticks the clock and advances the animated channels by the same delta.
// It returns the channels that changed.
func (ls *loadedScene) step(orientation func() [4]float32) []int {
	if orientation != nil {
		ls.clock.SetOrientation(orientation())
	}
	ls.clock.Tick(ls.table)
	return ls.channels.Advance(ls.clock.Delta())
}

// draw advances the scene by one frame and renders it to the current
// framebuffer.
func (ls *loadedScene) draw(orientation func() [4]float32) {
	ls.textures.update(ls.step(orientation))

	gl.UseProgram(ls.program)
	for _, b := range ls.bindings {
		b.upload()
	}
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
}

func (ls *loadedScene) Close() error {
	gl.DeleteProgram(ls.program)
	return ls.textures.Close()
}
