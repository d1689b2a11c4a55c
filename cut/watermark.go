package cut

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Watermark is a pure frame transform applied to every collected frame.
type Watermark func(image.Image) image.Image

// Identity returns the frame unchanged.
func Identity(img image.Image) image.Image { return img }

// TextStamp returns a watermark that draws text in the bottom-left corner.
func TextStamp(text string) Watermark {
	if text == "" {
		return Identity
	}
	face := basicfont.Face7x13
	return func(img image.Image) image.Image {
		bounds := img.Bounds()
		dst, ok := img.(draw.Image)
		if !ok {
			rgba := image.NewRGBA(bounds)
			draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
			dst = rgba
		}
		drawer := font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(color.White),
			Face: face,
			Dot:  fixed.P(bounds.Min.X+4, bounds.Max.Y-4),
		}
		drawer.DrawString(text)
		return dst
	}
}
