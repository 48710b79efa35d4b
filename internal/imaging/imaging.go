// Package imaging turns raw oscilloscope screen dumps into saved screenshots.
package imaging

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/jupitervolta/ds1054z/internal/persist"
)

// ErrUnsupportedFormat is returned for image data or extensions we cannot handle.
var ErrUnsupportedFormat = errors.New("unsupported image format")

//go:embed overlay.png
var defaultOverlay []byte

// Options controls the screenshot pipeline.
type Options struct {
	Overlay      image.Image // nil disables compositing
	OverlayAlpha float64     // 0..1
	Printable    bool
	Stamp        string // optional label drawn in the lower-left corner
}

// Decode parses PNG, BMP, GIF or JPEG bytes.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: display data (%d bytes)", ErrUnsupportedFormat, len(data))
		}
		return nil, fmt.Errorf("decode display data: %w", err)
	}
	return img, nil
}

// DefaultOverlay returns the built-in graticule overlay.
func DefaultOverlay() (image.Image, error) {
	return png.Decode(bytes.NewReader(defaultOverlay))
}

// LoadOverlay reads an overlay PNG. An empty path yields the built-in overlay.
func LoadOverlay(path string) (image.Image, error) {
	if path == "" {
		return DefaultOverlay()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open overlay: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode overlay %s: %w", path, err)
	}
	return img, nil
}

// Render applies the pipeline to a decoded screen. src is never modified.
func Render(src image.Image, opts Options) (image.Image, error) {
	out := image.Image(opaque(src))
	if opts.Overlay != nil {
		out = Composite(out, opts.Overlay, opts.OverlayAlpha)
	}
	if opts.Stamp != "" {
		stamped, err := Stamp(out, opts.Stamp)
		if err != nil {
			return nil, err
		}
		out = stamped
	}
	if opts.Printable {
		out = Printable(out)
	}
	return out, nil
}

// opaque copies src onto black so every pixel has full alpha.
func opaque(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

// Composite draws overlay over base with its alpha scaled by alpha.
// The overlay is anchored at the top-left corner and clipped to base.
func Composite(base, overlay image.Image, alpha float64) *image.RGBA {
	alpha = math.Max(0, math.Min(1, alpha))

	dst := opaque(base)
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(alpha * 255))})
	ob := overlay.Bounds()
	draw.DrawMask(dst, image.Rect(0, 0, ob.Dx(), ob.Dy()), overlay, ob.Min, mask, image.Point{}, draw.Over)
	return dst
}

// Printable produces a light-background grayscale rendition for paper:
// invert, desaturate, brightness 0.95, contrast 2 around the mean, and
// near-white values pushed to pure white.
func Printable(src image.Image) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	lum := make([]float64, 0, w*h)

	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			ir := 255 - float64(r>>8)
			ig := 255 - float64(g>>8)
			ib := 255 - float64(bl>>8)
			l := clamp8((ir*299 + ig*587 + ib*114) / 1000)
			l = clamp8(l * 0.95)
			lum = append(lum, l)
			sum += l
		}
	}

	mean := 0.0
	if len(lum) > 0 {
		mean = math.Round(sum / float64(len(lum)))
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for i, l := range lum {
		v := clamp8(mean + 2*(l-mean))
		if v >= 252 {
			v = 255
		}
		out.Pix[(i/w)*out.Stride+i%w] = uint8(v)
	}
	return out
}

func clamp8(v float64) float64 {
	return math.Max(0, math.Min(255, math.Round(v)))
}

// Encoder writes an image in one file format.
type Encoder func(w io.Writer, img image.Image) error

var encoders = map[string]Encoder{
	".png": png.Encode,
	".jpg": func(w io.Writer, img image.Image) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	},
	".jpeg": func(w io.Writer, img image.Image) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	},
	".gif": func(w io.Writer, img image.Image) error {
		return gif.Encode(w, img, nil)
	},
	".bmp": bmp.Encode,
	".tif": func(w io.Writer, img image.Image) error {
		return tiff.Encode(w, img, nil)
	},
	".tiff": func(w io.Writer, img image.Image) error {
		return tiff.Encode(w, img, nil)
	},
}

// EncoderFor picks the encoder from the file extension.
func EncoderFor(path string) (Encoder, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil, fmt.Errorf("%w: %s", persist.ErrMissingExtension, path)
	}
	enc, ok := encoders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return enc, nil
}

// Save encodes img by the extension of path and writes it atomically.
func Save(img image.Image, path string) error {
	enc, err := EncoderFor(path)
	if err != nil {
		return err
	}
	return persist.WriteFile(path, func(w io.Writer) error {
		if err := enc(w, img); err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		return nil
	})
}
