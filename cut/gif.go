package cut

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"math"
)

// GIFCutter extracts a frame range from an animated GIF entirely in process.
type GIFCutter struct{}

// GIFDuration sums every frame's declared display delay. This full pass is
// the authoritative duration source for GIFs: no duration arrives with the
// request metadata. The result is in seconds.
func GIFDuration(g *gif.GIF) float64 {
	totalMS := 0
	for _, d := range g.Delay {
		totalMS += d * 10 // delays are in 100ths of a second
	}
	return float64(totalMS) / 1000
}

// Cut decodes the animation, walks frames accumulating each frame's delay,
// collects the frames whose timestamp falls in [start, end), watermarks them
// and re-encodes a looping GIF. Output frame delays are redistributed
// uniformly as window/frameCount; the source's per-frame timing variability
// is not preserved.
func (GIFCutter) Cut(ctx context.Context, data []byte, req Request) ([]byte, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not decode gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("gif has no frames")
	}

	startMS, endMS := req.StartMS, req.EndMS
	duration := req.Duration
	if duration <= 0 {
		duration = GIFDuration(g)
		endMS = int64(math.Min(float64(endMS), duration*1000))
	}

	watermark := req.watermark()

	// Frames carry their own bounds and may only cover part of the logical
	// screen, so every frame is composited onto a running canvas even while
	// it is being skipped.
	width, height := g.Config.Width, g.Config.Height
	if width == 0 || height == 0 {
		b := g.Image[0].Bounds()
		width, height = b.Max.X, b.Max.Y
	}
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))

	var frames []image.Image
	var cumMS int64
	for i, src := range g.Image {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		draw.Draw(canvas, src.Bounds(), src, src.Bounds().Min, draw.Over)
		frameMS := int64(g.Delay[i]) * 10

		if cumMS < startMS {
			cumMS += frameMS
			continue
		}
		if cumMS < endMS {
			frames = append(frames, watermark(cloneRGBA(canvas)))
			cumMS += frameMS
			continue
		}
		if len(frames) == 0 {
			// The window is narrower than a single frame: force-include
			// exactly one so the result is never empty.
			frames = append(frames, watermark(cloneRGBA(canvas)))
		}
		break
	}
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	windowMS := endMS - startMS
	delayCS := int(math.Round(float64(windowMS) / float64(len(frames)) / 10))
	if delayCS < 1 {
		delayCS = 1
	}

	out := &gif.GIF{
		Image:     make([]*image.Paletted, 0, len(frames)),
		Delay:     make([]int, 0, len(frames)),
		LoopCount: 0, // loop forever
		Config:    image.Config{Width: width, Height: height},
	}
	for _, frame := range frames {
		pal := image.NewPaletted(image.Rect(0, 0, width, height), palette.Plan9)
		draw.FloydSteinberg.Draw(pal, pal.Bounds(), frame, frame.Bounds().Min)
		out.Image = append(out.Image, pal)
		out.Delay = append(out.Delay, delayCS)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, out); err != nil {
		return nil, fmt.Errorf("could not encode gif: %w", err)
	}
	return buf.Bytes(), nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
