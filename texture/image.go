package texture

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/rand"
	"os"
)

func init() {
	RegisterResourceType("builtin", func(m Mapping) (Channel, error) {
		switch m.Value {
		case "RGBA Noise Small": // 64x64 4channels uint8
			return staticImage{img: noise(image.Rect(0, 0, 64, 64))}, nil
		case "RGBA Noise Medium": // 256x256 4channels uint8
			return staticImage{img: noise(image.Rect(0, 0, 256, 256))}, nil
		case "Checker":
			return staticImage{img: checker(256, 8)}, nil
		default:
			return nil, fmt.Errorf("unknown builtin mapping %q", m.Value)
		}
	})
	RegisterResourceType("image", func(m Mapping) (Channel, error) {
		path, err := ResolvePath(m.PWD, m.Value)
		if err != nil {
			return nil, err
		}
		img, err := decodeImage(path)
		if err != nil {
			return nil, err
		}
		return staticImage{img: img}, nil
	})
}

type staticImage struct {
	img *image.RGBA
}

func (s staticImage) Image() *image.RGBA { return s.img }

func (s staticImage) Close() error { return nil }

func decodeImage(path string) (*image.RGBA, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	img, _, err := image.Decode(fd)
	if err != nil {
		return nil, fmt.Errorf("could not decode %q: %v", path, err)
	}
	return toRGBA(img), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if i, ok := img.(*image.RGBA); ok && i.Rect.Min == (image.Point{}) {
		return i
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

func noise(rect image.Rectangle) *image.RGBA {
	img := image.NewRGBA(rect)
	rng := rand.New(rand.NewSource(1337))
	rng.Read(img.Pix)
	return img
}

var (
	checkerA = color.RGBA{R: 255, A: 255}
	checkerB = color.RGBA{G: 255, B: 255, A: 255}
)

// checker draws a size x size image of cells x cells alternating squares.
func checker(size, cells int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cell := size / cells
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetRGBA(x, y, checkerA)
			} else {
				img.SetRGBA(x, y, checkerB)
			}
		}
	}
	return img
}
