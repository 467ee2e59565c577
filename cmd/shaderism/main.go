package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"os/signal"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/polyfloyd/shaderism/encode"
	"github.com/polyfloyd/shaderism/orientation"
	"github.com/polyfloyd/shaderism/renderer"
	"github.com/polyfloyd/shaderism/shadertoy"
	"github.com/polyfloyd/shaderism/translate"
)

const (
	geometryEnv     = "SHADERISM_GEOMETRY"
	defaultGeometry = "800x450"
	windowFormat    = "window"
)

func main() {
	log.SetOutput(os.Stderr)
	// Lock this goroutine to the current thread. This is required because
	// OpenGL contexts are bounds to threads.
	runtime.LockOSThread()

	var inputFiles arrayFlags
	flag.Var(&inputFiles, "i", "The shader file(s) to use")
	emit := flag.Bool("emit", false, "Print the compiled fragment shader instead of rendering it")
	check := flag.Bool("check", false, "Validate the compiled shader and report unused uniforms instead of rendering it")
	outputFile := flag.String("o", "-", "The file to write the rendered image to")
	geometry := flag.String("g", "env", "The geometry of the rendered image in WIDTHxHEIGHT format. If \"env\", look for the "+geometryEnv+" variable")
	outputFormat := flag.String("ofmt", "", "The encoding format to use to output the image. Valid values are: "+strings.Join(append(encode.Names(), windowFormat), ", ")+". Detected from -o if not set, a window is opened if that is stdout")
	framerate := flag.Float64("f", 0, "Whether to animate using the specified number of frames per second")
	numFrames := flag.Uint("n", 0, "Limit the number of frames in the animation. No limit is set by default")
	duration := flag.Float64("d", 0.0, "Limit the animation to the specified number of seconds. No limit is set by default")
	realtime := flag.Bool("rt", false, "Render at the actual number of frames per second set by -f")
	verbose := flag.Bool("v", false, "Show verbose output about rendering")
	watch := flag.Bool("w", false, "Watch the shader source files for changes")
	precision := flag.String("precision", "highp", "The default float precision: lowp, mediump or highp")
	dpr := flag.Float64("dpr", 1, "The device pixel ratio exposed to the shader as DPR")
	orientationDev := flag.String("orientation", "", "Read iDeviceOrientation from a file or serial port (\"/dev/ttyUSB0;115200\")")
	var mappingFlags arrayFlags
	flag.Var(&mappingFlags, "map", "Specify or override texture channel mappings, e.g. iChannel0=builtin:Checker")
	var uniformFlags arrayFlags
	flag.Var(&uniformFlags, "uniform", "Declare a custom uniform, e.g. speed=float:0.5 or tint=vec3:1,0,0")
	flag.Parse()

	if len(inputFiles) == 0 {
		log.Fatalf("Please specify at least one GLSL file with -i")
	}
	if *emit && *check {
		log.Fatalf("-emit and -check are mutually exclusive")
	}

	customUniforms := map[string]shadertoy.Value{}
	for _, str := range uniformFlags {
		name, value, err := parseUniform(str)
		if err != nil {
			log.Fatal(err)
		}
		customUniforms[name] = value
	}
	cfg := shadertoy.CompileConfig{
		Precision:        *precision,
		DevicePixelRatio: *dpr,
		CustomUniforms:   customUniforms,
	}
	loader := sceneLoader{
		files:    inputFiles,
		mappings: mappingFlags,
		config:   cfg,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
		signal.Stop(sig)
		cancel()
	}()

	if *emit || *check {
		source, _, err := loader.source()
		if err != nil {
			log.Fatal(err)
		}
		mappings, err := loader.parseMappings(source)
		if err != nil {
			log.Fatal(err)
		}
		cfg.TextureChannels = channelCount(mappings)
		compiled := shadertoy.Compile(source, cfg)
		if *emit {
			fmt.Print(compiled.FragmentSource)
			return
		}
		tr, err := translate.New(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer tr.Close()
		warnings, err := tr.Check(compiled, shadertoy.BuildUniformTable(source, cfg, nil))
		if err != nil {
			log.Fatalf("Invalid shader: %v", err)
		}
		for _, w := range warnings {
			log.Println(w)
		}
		return
	}

	var animateNumFrames uint
	if *duration != 0.0 && *numFrames != 0 {
		log.Fatalf("-d and -n are mutually exclusive")
	}
	if *numFrames != 0 {
		if *framerate == 0 {
			log.Fatalf("-n is set while -f is not set")
		}
		animateNumFrames = *numFrames
	}
	if *duration != 0.0 {
		if *framerate == 0 {
			log.Fatalf("-d is set while -f is not set")
		}
		animateNumFrames = uint(*duration * *framerate)
	}
	var interval time.Duration
	if *framerate > 0 {
		interval = time.Duration(float64(time.Second) / *framerate)
	} else {
		animateNumFrames = 1
	}
	if *realtime && *framerate == 0 {
		log.Fatalf("-rt is set while -f is not set")
	}

	onscreen := *outputFormat == windowFormat || (*outputFormat == "" && *outputFile == "-")
	var format encode.Format
	if !onscreen {
		var ok bool
		if format, ok = encode.Formats[*outputFormat]; !ok {
			if format, ok = encode.DetectFormat(*outputFile); !ok {
				log.Fatalf("Unable to detect output format. Please set the -ofmt flag")
			}
		}
	}

	width, height, err := parseGeometry(*geometry)
	if err != nil {
		if !onscreen {
			log.Fatalf("%v", err)
		}
		width, height, _ = parseGeometry(defaultGeometry)
	}

	tr, err := translate.New(ctx)
	if err != nil {
		log.Printf("%v, shaders will be converted without it", err)
		tr = nil
	} else {
		defer tr.Close()
	}
	engine, err := renderer.NewEngine(int(width), int(height), onscreen, tr)
	if err != nil {
		log.Fatalf("Could not initialize engine: %v", err)
	}
	defer engine.Close()

	if *orientationDev != "" {
		sensor, err := orientation.Open(*orientationDev)
		if err != nil {
			log.Fatal(err)
		}
		defer sensor.Close()
		engine.SetOrientationSource(sensor.Value)
		go func() {
			<-sensor.Done()
			if err := sensor.Err(); err != nil {
				log.Printf("Orientation sensor stopped: %v", err)
			}
		}()
	}

	if *watch {
		go watchScene(ctx, engine, loader.load)
	} else {
		scene, _, err := loader.load()
		if err != nil {
			log.Fatal(err)
		}
		if err := engine.Load(scene); err != nil {
			var cerr renderer.CompileError
			if errors.As(err, &cerr) {
				cerr.PrettyPrint(os.Stderr, isTerminal(os.Stderr))
				os.Exit(1)
			}
			log.Fatal(err)
		}
	}
	if *verbose {
		log.Printf("Rendering %dx%d, translator available: %v", width, height, tr != nil)
	}

	// Rendering to a window is a separate path.
	if onscreen {
		if err := engine.Run(ctx); errors.Is(err, renderer.ErrWindowClosed) {
			return
		} else if err != nil {
			log.Fatal(err)
		}
		return
	}

	outWriter, err := openWriter(*outputFile)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer outWriter.Close()

	in := make(chan image.Image, 10)
	out := (<-chan image.Image)(in)
	if animateNumFrames > 0 {
		out = limitNumFrames(out, animateNumFrames)
	}
	if *realtime {
		out = limitFramerate(out, interval)
	}
	if *verbose {
		out = printStats(out, interval, animateNumFrames)
	}
	go func() {
		if err := format.EncodeAnimation(outWriter, out, interval); err != nil {
			log.Printf("Error animating: %v", err)
		}
		cancel()
	}()

	if err := engine.Animate(ctx, interval, in); err != nil {
		log.Fatal(err)
	}
}

// watchScene loads the scene and reloads it whenever one of the files it is
// made of changes.
func watchScene(ctx context.Context, engine interface{ SetScene(renderer.Scene) }, load func() (renderer.Scene, []string, error)) {
	for ctx.Err() == nil {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			log.Printf("Could not watch files: %v", err)
			return
		}
		scene, files, err := load()
		for _, f := range files {
			if err := watcher.Add(f); err != nil {
				log.Printf("Could not watch %q: %v", f, err)
			}
		}
		if err != nil {
			log.Println(err)
		} else {
			engine.SetScene(scene)
		}

		select {
		case <-watcher.Events:
			// Editors tend to write files in multiple steps.
			t := time.NewTimer(time.Millisecond * 20)
		outer:
			for {
				select {
				case <-watcher.Events:
				case <-t.C:
					break outer
				}
			}
		case err := <-watcher.Errors:
			log.Println(err)
		case <-ctx.Done():
		}
		watcher.Close()
	}
}

func limitNumFrames(in <-chan image.Image, desiredTotalNumFrames uint) <-chan image.Image {
	out := make(chan image.Image)
	go func() {
		defer close(out)
		frame := uint(0)
		for img := range in {
			frame++
			out <- img
			if frame >= desiredTotalNumFrames {
				break
			}
		}
	}()
	return out
}

func limitFramerate(in <-chan image.Image, interval time.Duration) <-chan image.Image {
	if interval == 0 {
		return in
	}
	out := make(chan image.Image)
	go func() {
		defer close(out)
		lastFrame := time.Now()
		for img := range in {
			time.Sleep(interval - time.Since(lastFrame))
			lastFrame = time.Now()
			out <- img
		}
	}()
	return out
}

func printStats(in <-chan image.Image, desiredInterval time.Duration, desiredTotalNumFrames uint) <-chan image.Image {
	out := make(chan image.Image)
	go func() {
		defer close(out)
		defer fmt.Fprintf(os.Stderr, "\n")
		frame := uint(0)
		lastFrame := time.Now()
		frameTarget := "∞"
		if desiredTotalNumFrames != 0 {
			frameTarget = strconv.FormatUint(uint64(desiredTotalNumFrames), 10)
		}
		for img := range in {
			renderTime := time.Since(lastFrame)
			fps := 1.0 / renderTime.Seconds()
			speed := float64(desiredInterval) / float64(renderTime)
			lastFrame = time.Now()
			frame++
			fmt.Fprintf(os.Stderr, "\rfps=%.2f frames=%d/%s speed=%.2f", fps, frame, frameTarget, speed)

			out <- img
		}
	}()
	return out
}

var geometryRe = regexp.MustCompile(`^(\d+)x(\d+)$`)

func parseGeometry(geom string) (uint, uint, error) {
	if geom == "env" {
		geom = os.Getenv(geometryEnv)
		if geom == "" {
			return 0, 0, fmt.Errorf("%s is empty while instructed to load the display geometry from the environment", geometryEnv)
		}
	}

	matches := geometryRe.FindStringSubmatch(geom)
	if matches == nil {
		return 0, 0, fmt.Errorf("invalid geometry: %q", geom)
	}
	w, err := strconv.ParseUint(matches[1], 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width in geometry %q: %v", geom, err)
	}
	h, err := strconv.ParseUint(matches[2], 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height in geometry %q: %v", geom, err)
	}
	if w == 0 || h == 0 {
		return 0, 0, fmt.Errorf("no geometry dimension can be 0, got (%d, %d)", w, h)
	}
	return uint(w), uint(h), nil
}

func openWriter(filename string) (io.WriteCloser, error) {
	if filename == "-" {
		return nopCloseWriter{Writer: os.Stdout}, nil
	}
	return os.Create(filename)
}

type nopCloseWriter struct {
	io.Writer
}

func (nopCloseWriter) Close() error {
	return nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

type arrayFlags []string

func (i *arrayFlags) String() string {
	return "more of the same"
}

func (i *arrayFlags) Set(value string) error {
	*i = append(*i, value)
	return nil
}
