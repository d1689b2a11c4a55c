// Package cut implements the media cutting engines: a frame-accurate GIF
// slicer working purely in process and a video slicer delegating to an
// external transcoder. Both conform to the Cutter contract and are selected
// by media type.
package cut

import (
	"context"
	"errors"

	"clipbot/media"
)

// Request describes one cut: a normalized [StartMS, EndMS) window plus the
// metadata the engines need. Duration is the total source length in seconds
// and zero when unknown; each engine then probes it from the raw bytes.
type Request struct {
	StartMS   int64
	EndMS     int64
	Duration  float64
	Extension string
	Watermark Watermark
}

func (r Request) watermark() Watermark {
	if r.Watermark == nil {
		return Identity
	}
	return r.Watermark
}

// ErrNoFrames signals that a cut produced zero frames. The force-include rule
// makes this unreachable for any window inside the source; hitting it means a
// logic fault, not bad input.
var ErrNoFrames = errors.New("cut produced no frames")

// Cutter extracts the requested sub-range from raw media bytes.
type Cutter interface {
	Cut(ctx context.Context, data []byte, req Request) ([]byte, error)
}

// Engines holds one engine per supported media family.
type Engines struct {
	GIF   Cutter
	Video Cutter
}

// For returns the engine responsible for the given media type, or nil when
// none applies.
func (e Engines) For(t media.Type) Cutter {
	switch {
	case t == media.TypeGIF:
		return e.GIF
	case t.IsVideo():
		return e.Video
	default:
		return nil
	}
}
