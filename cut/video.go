package cut

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

const pipeInput = "pipe:0"

// VideoCutter extracts a time range from a video container by driving an
// external transcoder over pipes: raw bytes on stdin, the cut container on
// stdout. The cut is a codec copy, so the output keeps the source container
// family.
type VideoCutter struct {
	Bin       string
	Runner    Runner
	Probe     *Probe
	ExtraArgs []string
}

// SplitExtraArgs parses a configured argument string into an argv slice
// without involving a shell.
func SplitExtraArgs(extra string) ([]string, error) {
	if extra == "" {
		return nil, nil
	}
	args, err := shlex.Split(extra)
	if err != nil {
		return nil, fmt.Errorf("invalid extra args syntax: %w", err)
	}
	return args, nil
}

func (v *VideoCutter) Cut(ctx context.Context, data []byte, req Request) ([]byte, error) {
	startMS, endMS := req.StartMS, req.EndMS
	if req.Duration <= 0 {
		duration, err := v.Probe.Duration(ctx, data, req.Extension)
		if err != nil {
			return nil, err
		}
		endMS = int64(math.Min(float64(endMS), duration*1000))
	}
	windowMS := endMS - startMS
	if windowMS <= 0 {
		return nil, fmt.Errorf("empty cut window [%d, %d)", startMS, endMS)
	}

	args := v.buildArgs(pipeInput, startMS, windowMS, req.Extension)
	out, stderr, runErr := v.Runner.Run(ctx, v.Bin, args, bytes.NewReader(data))

	// Pipe-based input is known to fail with a "partial file" diagnostic for
	// containers whose index lives at the end of the stream. Retry exactly
	// once with the input spooled to disk; whatever the second attempt
	// produces is final.
	if strings.Contains(string(stderr), "partial file") {
		return v.cutFromFile(ctx, data, startMS, windowMS, req.Extension)
	}
	if runErr != nil {
		return nil, fmt.Errorf("transcoder failed: %w (%s)", runErr, firstLine(stderr))
	}
	return out, nil
}

func (v *VideoCutter) cutFromFile(ctx context.Context, data []byte, startMS, windowMS int64, ext string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "clipbot_cut_*."+ext)
	if err != nil {
		return nil, fmt.Errorf("could not create fallback temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("could not write fallback temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	args := v.buildArgs(tmp.Name(), startMS, windowMS, ext)
	out, stderr, err := v.Runner.Run(ctx, v.Bin, args, nil)
	if err != nil {
		return nil, fmt.Errorf("transcoder failed after file fallback: %w (%s)", err, firstLine(stderr))
	}
	return out, nil
}

func (v *VideoCutter) buildArgs(input string, startMS, windowMS int64, ext string) []string {
	args := []string{
		"-i", input,
		"-ss", formatSeconds(startMS),
		"-t", formatSeconds(windowMS),
		"-c", "copy",
	}
	switch ext {
	case "mp4", "mov":
		// Streaming to stdout has no seekable destination, so the index must
		// not be written at the front of the file.
		args = append(args, "-movflags", "frag_keyframe+empty_moov")
	}
	args = append(args, v.ExtraArgs...)
	return append(args, "-f", ext, "pipe:1")
}

func formatSeconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', -1, 64)
}

func firstLine(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
