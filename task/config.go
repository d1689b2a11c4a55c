package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"clipbot/cut"
	"clipbot/media"
)

// ConfigState tracks whether a configuration survived resolution. The state
// is monotonic: once INVALID it never flips back.
type ConfigState string

const (
	ConfigValid   ConfigState = "valid"
	ConfigInvalid ConfigState = "invalid"
)

// ErrOEmbed signals that scraping an embedded-player payload down to a raw
// media URL failed.
var ErrOEmbed = errors.New("oEmbed resolution failed")

// Message is one inbound request from the inbox collaborator.
type Message interface {
	ID() string
	Body() string
	Submission() Submission
	MarkRead(ctx context.Context) error
	Reply(ctx context.Context, text string) error
}

// Submission is the content a message refers to.
type Submission interface {
	URL() string
	IsVideo() bool
	IsCrosspost() bool
	// Root returns the original post of a crosspost chain, or the submission
	// itself when it is not a crosspost.
	Root() Submission
	// Video returns hosted-video metadata, or nil when the submission does
	// not carry any.
	Video() *media.Video
	// OEmbedHTML returns the embedded-player markup, or "" when absent.
	OEmbedHTML() string
	OEmbedProvider() string
}

// Config is the fully-resolved description of one cut request. It is built
// by a Resolver in a single explicit step and not mutated afterwards.
type Config struct {
	Message   Message
	MediaType media.Type
	StartMS   int64
	EndMS     int64
	MediaURL  string
	Extension string
	// Duration is the total media length in seconds; 0 until a probe runs.
	Duration  float64
	Watermark cut.Watermark
	State     ConfigState
	// Err records why resolution failed when State is ConfigInvalid.
	Err error
}

// IsValid reports whether the config survived resolution.
func (c *Config) IsValid() bool {
	return c.State == ConfigValid
}

// Resolver turns inbound messages into resolved configurations.
type Resolver struct {
	// Client fetches oEmbed provider pages during classification.
	Client    *http.Client
	Watermark cut.Watermark
	Log       zerolog.Logger
}

// FromMessage parses and classifies a message. Any resolution failure yields
// a config in the INVALID state with Err set; no further fields are computed
// past the failing step.
func (r *Resolver) FromMessage(ctx context.Context, msg Message) *Config {
	cfg := &Config{
		Message:   msg,
		MediaType: media.TypeUnknown,
		Watermark: r.Watermark,
		State:     ConfigValid,
	}

	startMS, endMS, err := ParseWindow(msg.Body())
	if err != nil {
		return cfg.invalidate(err)
	}
	cfg.StartMS, cfg.EndMS = FixStartEnd(startMS, endMS)

	sub := msg.Submission()
	switch {
	case isVideoSubmission(sub):
		r.resolveVideo(cfg, sub)
	case isDirectGIF(sub):
		cfg.MediaType = media.TypeGIF
		cfg.MediaURL = sub.URL()
		cfg.Extension = "gif"
	case sub.OEmbedHTML() != "":
		r.resolveOEmbed(ctx, cfg, sub)
	default:
		return cfg.invalidate(fmt.Errorf("unclassifiable submission %q", sub.URL()))
	}
	if !cfg.IsValid() {
		return cfg
	}

	if cfg.MediaURL == "" {
		return cfg.invalidate(errors.New("resolved media URL is empty"))
	}
	if cfg.Extension == "" {
		return cfg.invalidate(errors.New("resolved extension is empty"))
	}
	if cfg.Duration > 0 {
		cfg.EndMS = int64(math.Min(float64(cfg.EndMS), cfg.Duration*1000))
	}
	return cfg
}

func (c *Config) invalidate(err error) *Config {
	c.State = ConfigInvalid
	c.Err = err
	return c
}

// isVideoSubmission traces crosspost indirection: the video flag lives on
// the original post.
func isVideoSubmission(sub Submission) bool {
	if sub.IsCrosspost() {
		return sub.Root().IsVideo()
	}
	return sub.IsVideo()
}

func isDirectGIF(sub Submission) bool {
	if sub.IsCrosspost() {
		// Crossposted GIFs are unsupported: the resolvable URL lives on the
		// original post and is not exposed through the message. Known gap.
		return false
	}
	return extensionOf(sub.URL()) == "gif"
}

func (r *Resolver) resolveVideo(cfg *Config, sub Submission) {
	vm := sub.Root().Video()
	if vm == nil {
		cfg.invalidate(errors.New("video submission without video metadata"))
		return
	}
	ext := extensionOf(vm.ScrubberURL)
	if ext == "" {
		cfg.invalidate(errors.New("video metadata carries no scrubber extension"))
		return
	}
	cfg.MediaType = media.FromExtension(ext)
	cfg.MediaURL = vm.FallbackURL
	cfg.Extension = ext
	cfg.Duration = vm.Duration
}

// resolveOEmbed follows the embedded-player chain down to raw media: the
// embed HTML holds a player iframe, its src query parameter points at a
// provider page, and that page's <video><source> element names the file.
func (r *Resolver) resolveOEmbed(ctx context.Context, cfg *Config, sub Submission) {
	srcURL, ext, err := r.scrapeOEmbed(ctx, sub.OEmbedHTML())
	if err != nil {
		r.Log.Warn().Err(err).
			Str("provider", sub.OEmbedProvider()).
			Msg("could not resolve embedded player")
		cfg.invalidate(fmt.Errorf("%w: %v", ErrOEmbed, err))
		return
	}
	cfg.MediaType = media.FromExtension(ext)
	cfg.MediaURL = srcURL
	cfg.Extension = ext
}

func (r *Resolver) scrapeOEmbed(ctx context.Context, embedHTML string) (string, string, error) {
	doc, err := html.Parse(strings.NewReader(embedHTML))
	if err != nil {
		return "", "", fmt.Errorf("unparsable embed markup: %w", err)
	}
	iframe := findElement(doc, "iframe")
	if iframe == nil {
		return "", "", errors.New("embed markup has no player iframe")
	}
	frameSrc, err := url.Parse(attr(iframe, "src"))
	if err != nil {
		return "", "", fmt.Errorf("unparsable iframe src: %w", err)
	}
	pageURL := frameSrc.Query().Get("src")
	if pageURL == "" {
		return "", "", errors.New("player iframe src carries no provider page")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("provider page fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("provider page returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", err
	}

	page, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", "", fmt.Errorf("unparsable provider page: %w", err)
	}
	video := findElement(page, "video")
	if video == nil {
		return "", "", errors.New("provider page has no video element")
	}
	sources := childElements(video, "source")
	if len(sources) == 0 {
		return "", "", errors.New("provider video has no source elements")
	}
	// Providers list a poster-ish first source; prefer the second one when
	// present.
	src := sources[0]
	if len(sources) > 1 {
		src = sources[1]
	}
	mediaURL := attr(src, "src")
	ext := extensionOf(mediaURL)
	if mediaURL == "" || ext == "" {
		return "", "", errors.New("provider source carries no usable src")
	}
	return mediaURL, ext, nil
}

// extensionOf returns the lower-cased file extension of a URL path without
// the dot, ignoring any query string.
func extensionOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

func childElements(n *html.Node, name string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == name {
			out = append(out, c)
		}
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
