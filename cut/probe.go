package cut

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Probe inspects raw media bytes for duration and frame rate through an
// external inspection tool.
type Probe struct {
	Bin    string
	Runner Runner
}

// Duration returns the container duration in seconds. The bytes are written
// to a temporary file first: format-level probing over a pipe is unreliable
// with this tool.
func (p *Probe) Duration(ctx context.Context, data []byte, ext string) (float64, error) {
	tmp, err := os.CreateTemp("", "clipbot_probe_*."+ext)
	if err != nil {
		return 0, fmt.Errorf("could not create probe temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("could not write probe temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}

	args := []string{"-v", "quiet", "-show_entries", "format=duration", "-of", "csv=p=0", "-i", tmp.Name()}
	out, stderr, err := p.Runner.Run(ctx, p.Bin, args, nil)
	if err != nil {
		return 0, fmt.Errorf("duration probe failed: %w (%s)", err, strings.TrimSpace(string(stderr)))
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return seconds, nil
}

// FrameRate returns the video stream frame rate in frames per second, parsed
// from the tool's "num/den" rational output.
func (p *Probe) FrameRate(ctx context.Context, data []byte) (float64, error) {
	args := []string{"-i", "pipe:0", "-v", "0", "-select_streams", "v", "-of", "flat", "-show_entries", "stream=r_frame_rate"}
	out, stderr, err := p.Runner.Run(ctx, p.Bin, args, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("frame rate probe failed: %w (%s)", err, strings.TrimSpace(string(stderr)))
	}

	// Output shape: streams.stream.0.r_frame_rate="30000/1001"
	_, value, found := strings.Cut(strings.TrimSpace(string(out)), "=")
	if !found {
		return 0, fmt.Errorf("unparsable frame rate output %q", strings.TrimSpace(string(out)))
	}
	value = strings.Trim(value, `"`)

	num, den, hasDen := strings.Cut(value, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable frame rate %q: %w", value, err)
	}
	if !hasDen {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("unparsable frame rate denominator %q", value)
	}
	return n / d, nil
}
