package media

import "strings"

// Type identifies the container family of a requested media resource.
type Type string

const (
	TypeGIF     Type = "gif"
	TypeMP4     Type = "mp4"
	TypeMOV     Type = "mov"
	TypeWEBM    Type = "webm"
	TypeUnknown Type = "unknown"
)

// FromExtension maps a file extension (without the dot) to a media type.
func FromExtension(ext string) Type {
	switch strings.ToLower(ext) {
	case "gif":
		return TypeGIF
	case "mp4":
		return TypeMP4
	case "mov":
		return TypeMOV
	case "webm":
		return TypeWEBM
	default:
		return TypeUnknown
	}
}

// IsVideo reports whether the type is handled by the video cutting engine.
func (t Type) IsVideo() bool {
	switch t {
	case TypeMP4, TypeMOV, TypeWEBM:
		return true
	}
	return false
}

// Video carries the hosted-video metadata attached to a submission.
// Duration is in seconds and zero when the host did not report one.
type Video struct {
	FallbackURL string
	ScrubberURL string
	Duration    float64
}
