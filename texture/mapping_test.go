package texture

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping("iChannel2=image:foo/bar.png", "/tmp")
	if err != nil {
		t.Fatal(err)
	}
	expected := Mapping{Name: "iChannel2", Namespace: "image", Value: "foo/bar.png", PWD: "/tmp"}
	if m != expected {
		t.Fatalf("unexpected mapping: %+v", m)
	}
	if m.Index() != 2 {
		t.Fatalf("unexpected index: %d", m.Index())
	}

	invalid := []string{
		"",
		"iChannel0",
		"iChannel0=image",
		"iChannel4=image:foo.png",
		"iNoise=builtin:Checker",
	}
	for _, str := range invalid {
		if _, err := ParseMapping(str, ""); err == nil {
			t.Errorf("expected an error for %q", str)
		}
	}
}

func TestExtractMappings(t *testing.T) {
	source := `// map iChannel0=builtin:RGBA Noise Small
// map iChannel1=audio:song.raw;44100:2:s16le
// map iChannel9=builtin:Checker
//map iChannel3=builtin:Checker
void mainImage(out vec4 c, in vec2 p) {
	// map iChannel2=builtin:Checker
	c = texture(iChannel0, p);
}
`
	mappings := ExtractMappings(source, "/shaders")
	if len(mappings) != 2 {
		t.Fatalf("unexpected mappings: %v", mappings)
	}
	if m := mappings[0]; m.Name != "iChannel0" || m.Namespace != "builtin" || m.Value != "RGBA Noise Small" || m.PWD != "/shaders" {
		t.Fatalf("unexpected mapping: %+v", m)
	}
	if m := mappings[1]; m.Name != "iChannel1" || m.Namespace != "audio" || m.Value != "song.raw;44100:2:s16le" {
		t.Fatalf("unexpected mapping: %+v", m)
	}
}

func TestResolvePath(t *testing.T) {
	if p, _ := ResolvePath("/shaders", "img/a.png"); p != "/shaders/img/a.png" {
		t.Fatalf("unexpected path: %q", p)
	}
	if p, _ := ResolvePath("/shaders", "/abs/a.png"); p != "/abs/a.png" {
		t.Fatalf("unexpected path: %q", p)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip(err)
	}
	if p, _ := ResolvePath("/shaders", "~/a.png"); p != filepath.Join(home, "a.png") {
		t.Fatalf("unexpected path: %q", p)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	fd, err := os.Create(filepath.Join(dir, "img.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(fd, image.NewGray(image.Rect(0, 0, 3, 2))); err != nil {
		t.Fatal(err)
	}
	fd.Close()

	mappings := []Mapping{
		{Name: "iChannel0", Namespace: "builtin", Value: "Checker"},
		{Name: "iChannel1", Namespace: "image", Value: "img.png", PWD: dir},
		{Name: "iChannel3", Namespace: "image", Value: "missing.png", PWD: dir},
	}
	set, err := Load(mappings)
	if err != nil {
		t.Fatal(err)
	}
	defer set.Close()

	if set.Count() != 4 {
		t.Fatalf("unexpected count: %d", set.Count())
	}
	if ch := set.Channel(0); ch == nil || ch.Image().Bounds().Dx() != 256 {
		t.Fatalf("unexpected channel 0: %v", ch)
	}
	if ch := set.Channel(1); ch == nil || ch.Image().Bounds() != image.Rect(0, 0, 3, 2) {
		t.Fatalf("unexpected channel 1: %v", ch)
	}
	if set.Channel(2) != nil || set.Channel(3) != nil {
		t.Fatalf("unmapped or failed channels should be empty")
	}
	if set.Channel(-1) != nil || set.Channel(7) != nil {
		t.Fatalf("out of range channels should be empty")
	}
	if changed := set.Advance(time.Second); len(changed) != 0 {
		t.Fatalf("static channels changed: %v", changed)
	}
}

func TestLoadConflict(t *testing.T) {
	mappings := []Mapping{
		{Name: "iChannel0", Namespace: "builtin", Value: "Checker"},
		{Name: "iChannel0", Namespace: "builtin", Value: "RGBA Noise Small"},
	}
	if _, err := Load(mappings); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestLoadUnknownNamespace(t *testing.T) {
	set, err := Load([]Mapping{{Name: "iChannel1", Namespace: "kinect", Value: "0"}})
	if err != nil {
		t.Fatal(err)
	}
	if set.Count() != 2 || set.Channel(1) != nil {
		t.Fatalf("unexpected set: count=%d", set.Count())
	}
}

func TestNilSet(t *testing.T) {
	var set *Set
	if set.Count() != 0 || set.Channel(0) != nil || set.Advance(time.Second) != nil || set.Close() != nil {
		t.Fatalf("a nil set should be empty")
	}
}

func TestNamespaces(t *testing.T) {
	expected := []string{"audio", "builtin", "image"}
	ns := Namespaces()
	if len(ns) != len(expected) {
		t.Fatalf("unexpected namespaces: %v", ns)
	}
	for i := range expected {
		if ns[i] != expected[i] {
			t.Fatalf("unexpected namespaces: %v", ns)
		}
	}
}
