package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	faceOnce sync.Once
	face     font.Face
	faceErr  error
)

func labelFace() (font.Face, error) {
	faceOnce.Do(func() {
		tt, err := opentype.Parse(gomono.TTF)
		if err != nil {
			faceErr = fmt.Errorf("parse font: %w", err)
			return
		}

		const size = 12
		const dpi = 72

		face, faceErr = opentype.NewFace(tt, &opentype.FaceOptions{
			Size:    size,
			DPI:     dpi,
			Hinting: font.HintingNone,
		})
	})
	return face, faceErr
}

// Stamp draws text on a dark strip in the lower-left corner of a copy of src.
func Stamp(src image.Image, text string) (*image.RGBA, error) {
	fontFace, err := labelFace()
	if err != nil {
		return nil, err
	}

	dst := opaque(src)
	metrics := fontFace.Metrics()
	lineHeight := metrics.Height.Ceil() + 2
	width := font.MeasureString(fontFace, text).Ceil() + 4

	b := dst.Bounds()
	strip := image.Rect(0, b.Max.Y-lineHeight, width, b.Max.Y).Intersect(b)
	draw.Draw(dst, strip, image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)

	drawer := font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: fontFace,
		Dot:  fixed.P(2, b.Max.Y-lineHeight+metrics.Ascent.Ceil()+1),
	}
	drawer.DrawString(text)
	return dst, nil
}
