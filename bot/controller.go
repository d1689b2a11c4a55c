// Package bot orchestrates the clipping pipeline: three independently
// scheduled stages hand work through two bounded queues. Fetch pulls inbox
// messages into tasks, work executes one cut per tick, upload ships the
// result and answers the requester.
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"clipbot/config"
	"clipbot/cut"
	"clipbot/logging"
	"clipbot/media"
	"clipbot/queue"
	"clipbot/task"
)

// Inbox is the message source collaborator.
type Inbox interface {
	HasUnread(ctx context.Context) (bool, error)
	Unread(ctx context.Context) ([]task.Message, error)
}

// Hoster is the upload collaborator.
type Hoster interface {
	UploadImage(ctx context.Context, data []byte, title string) (string, error)
	UploadVideo(ctx context.Context, data []byte, name string) (string, error)
}

// Stats is a snapshot of the pipeline counters and queue depths.
type Stats struct {
	Fetched     uint64 `json:"fetched"`
	Enqueued    uint64 `json:"enqueued"`
	Requeued    uint64 `json:"requeued"`
	Dropped     uint64 `json:"dropped"`
	Cut         uint64 `json:"cut"`
	Uploaded    uint64 `json:"uploaded"`
	Failures    uint64 `json:"failures"`
	InputDepth  int    `json:"inputDepth"`
	OutputDepth int    `json:"outputDepth"`
}

// TaskSnapshot is a read-only view of one task for the status API.
type TaskSnapshot struct {
	ID        string     `json:"id"`
	State     task.State `json:"state"`
	MediaType media.Type `json:"mediaType"`
	StartMS   int64      `json:"startMs"`
	EndMS     int64      `json:"endMs"`
	Retries   int        `json:"retries"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

const recentLimit = 50

// Controller owns the two queues and exposes the three stage entry points.
// Each stage is safe to invoke concurrently with the others but not with
// itself.
type Controller struct {
	cfg       *config.Config
	inbox     Inbox
	hoster    Hoster
	resolver  *task.Resolver
	engines   cut.Engines
	resources ResourceChecker
	client    *http.Client
	limiter   *rate.Limiter

	input  *queue.Queue[*task.Task]
	output *queue.Queue[*task.Result]

	fetchLog  zerolog.Logger
	cutLog    zerolog.Logger
	uploadLog zerolog.Logger

	fetched, enqueued, requeued atomic.Uint64
	dropped, cutOK              atomic.Uint64
	uploaded, failures          atomic.Uint64

	mu     sync.Mutex
	recent []TaskSnapshot
}

// NewController wires the pipeline. Clients are injected, scoped to the
// controller's lifetime; nothing global is mutated.
func NewController(cfg *config.Config, inbox Inbox, hoster Hoster, engines cut.Engines, resources ResourceChecker, client *http.Client) *Controller {
	if client == nil {
		client = http.DefaultClient
	}
	return &Controller{
		cfg:     cfg,
		inbox:   inbox,
		hoster:  hoster,
		engines: engines,
		resolver: &task.Resolver{
			Client:    client,
			Watermark: cut.TextStamp(cfg.WatermarkText),
			Log:       logging.WithComponent("resolve"),
		},
		resources: resources,
		client:    client,
		// Courtesy floor between inbox polls, independent of the configured
		// fetch interval.
		limiter:   rate.NewLimiter(rate.Every(2*time.Second), 1),
		input:     queue.New[*task.Task](cfg.QueueSize),
		output:    queue.New[*task.Result](cfg.QueueSize),
		fetchLog:  logging.WithComponent("fetch"),
		cutLog:    logging.WithComponent("cut"),
		uploadLog: logging.WithComponent("upload"),
	}
}

// Fetch pulls new inbox messages, resolves them into tasks and enqueues the
// valid ones. On successful enqueue the source message is marked read; a
// message that cannot be enqueued stays unread for a future pass.
func (c *Controller) Fetch(ctx context.Context) error {
	if !c.limiter.Allow() {
		c.fetchLog.Debug().Msg("skipping fetch tick, rate limited")
		return nil
	}

	has, err := c.inbox.HasUnread(ctx)
	if err != nil {
		return fmt.Errorf("inbox probe failed: %w", err)
	}
	if !has {
		c.fetchLog.Info().Msg("no new messages")
		return nil
	}

	msgs, err := c.inbox.Unread(ctx)
	if err != nil {
		return fmt.Errorf("inbox fetch failed: %w", err)
	}

	for _, msg := range msgs {
		c.fetched.Add(1)
		c.fetchLog.Info().Str("message", msg.ID()).Msg("new message received")

		cfg := c.resolver.FromMessage(ctx, msg)
		if !cfg.IsValid() {
			if errors.Is(cfg.Err, task.ErrNoPattern) {
				// A malformed request will never become parseable; mark it
				// read so it is not reprocessed forever.
				c.fetchLog.Warn().Str("message", msg.ID()).Msg("no cut window in message, discarding")
				if err := msg.MarkRead(ctx); err != nil {
					c.fetchLog.Warn().Err(err).Str("message", msg.ID()).Msg("could not mark message read")
				}
			} else {
				// Resolution failures stay unread: upstream metadata may
				// repair itself before the next pass.
				c.fetchLog.Warn().Err(cfg.Err).Str("message", msg.ID()).Msg("task config invalid, leaving unread")
			}
			continue
		}

		t := task.New(cfg, c.engines, c.client, c.cfg.MaxInputSize)
		if err := c.input.TryPush(t); err != nil {
			c.fetchLog.Error().Err(err).Str("message", msg.ID()).Msg("could not enqueue task")
			continue
		}
		c.enqueued.Add(1)
		c.record(t)
		c.fetchLog.Debug().Int("depth", c.input.Len()).Msg("task enqueued")

		if err := msg.MarkRead(ctx); err != nil {
			c.fetchLog.Warn().Err(err).Str("message", msg.ID()).Msg("could not mark message read")
		}
	}
	return nil
}

// Work pops one task and executes it. DROP and DONE tasks are discarded,
// INVALID tasks are requeued until the retry bound, VALID tasks are cut and
// their result pushed to the output queue.
func (c *Controller) Work(ctx context.Context) error {
	t, err := c.input.TryPop()
	if errors.Is(err, queue.ErrEmpty) {
		c.cutLog.Debug().Msg("input queue empty")
		return nil
	}
	if err != nil {
		return err
	}

	switch t.State() {
	case task.StateDrop, task.StateDone:
		c.cutLog.Info().Str("task", t.ID).Str("state", string(t.State())).Msg("discarding task")
		c.dropped.Add(1)
		c.record(t)
		return nil

	case task.StateInvalid:
		if t.Retries() >= c.cfg.MaxTaskRetries {
			c.cutLog.Warn().Str("task", t.ID).Int("retries", t.Retries()).Msg("giving up on invalid task")
			c.dropped.Add(1)
			c.record(t)
			return nil
		}
		t.MarkRequeued()
		if err := c.input.TryPush(t); err != nil {
			c.cutLog.Error().Err(err).Str("task", t.ID).Msg("could not requeue invalid task")
			c.dropped.Add(1)
			return nil
		}
		c.requeued.Add(1)
		c.record(t)
		c.cutLog.Info().Str("task", t.ID).Int("retries", t.Retries()).Msg("invalid task requeued")
		return nil

	case task.StateValid:
		if err := c.resources.Check(); err != nil {
			c.cutLog.Warn().Err(err).Msg("insufficient resources, deferring cut")
			if pushErr := c.input.TryPush(t); pushErr != nil {
				c.cutLog.Error().Err(pushErr).Str("task", t.ID).Msg("could not defer task")
			}
			return nil
		}
		c.cutLog.Info().Str("task", t.ID).Str("media", string(t.Config.MediaType)).Msg("cutting")

		cutCtx, cancel := context.WithTimeout(ctx, c.cfg.FFTimeout)
		defer cancel()
		res, err := t.Handle(cutCtx)
		c.record(t)
		if err != nil {
			c.failures.Add(1)
			if errors.Is(err, task.ErrTaskFailure) {
				c.cutLog.Error().Err(err).Str("task", t.ID).Msg("task failed")
			} else {
				c.cutLog.Error().Err(err).Str("task", t.ID).Msg("unexpected cut error")
			}
			return nil
		}
		c.cutOK.Add(1)

		if err := c.output.TryPush(res); err != nil {
			c.failures.Add(1)
			c.cutLog.Error().Err(err).Str("task", t.ID).Msg("could not push result to output queue")
			return nil
		}
		c.cutLog.Debug().Int("depth", c.output.Len()).Msg("result enqueued")
		return nil
	}
	return nil
}

// UploadAndAnswer pops one result, uploads it shaped by media type and
// replies with the hosted link. Upload and reply errors propagate to the
// scheduler boundary; the result is lost for that tick.
func (c *Controller) UploadAndAnswer(ctx context.Context) error {
	res, err := c.output.TryPop()
	if errors.Is(err, queue.ErrEmpty) {
		c.uploadLog.Debug().Msg("output queue empty")
		return nil
	}
	if err != nil {
		return err
	}

	var link string
	if res.MediaType == media.TypeGIF {
		link, err = c.hoster.UploadImage(ctx, res.Media, "clipbot cut")
	} else {
		link, err = c.hoster.UploadVideo(ctx, res.Media, "cut."+string(res.MediaType))
	}
	if err != nil {
		c.failures.Add(1)
		return fmt.Errorf("upload failed: %w", err)
	}
	res.SetUploadLink(link)
	c.uploadLog.Info().Str("link", link).Msg("upload finished")

	if err := res.Message.Reply(ctx, c.replyText(link)); err != nil {
		c.failures.Add(1)
		return fmt.Errorf("reply failed: %w", err)
	}
	c.uploaded.Add(1)
	c.uploadLog.Info().Str("message", res.Message.ID()).Msg("reply sent")
	return nil
}

func (c *Controller) replyText(link string) string {
	issue := url.Values{
		"to":      {c.cfg.IssueRecipient},
		"subject": {c.cfg.RedditUsername + " issue"},
		"message": {"Add a link to the gif or comment in your message, I'm not always sure which request is being reported. Thanks for helping me out!"},
	}
	issueLink := "https://www.reddit.com/message/compose/?" + issue.Encode()
	footer := fmt.Sprintf("---\n\n^(I am a bot.) [^(Report an issue)](%s)", issueLink)
	return fmt.Sprintf("Here is your cut GIF: %s\n%s", link, footer)
}

// Stats snapshots the pipeline counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Fetched:     c.fetched.Load(),
		Enqueued:    c.enqueued.Load(),
		Requeued:    c.requeued.Load(),
		Dropped:     c.dropped.Load(),
		Cut:         c.cutOK.Load(),
		Uploaded:    c.uploaded.Load(),
		Failures:    c.failures.Load(),
		InputDepth:  c.input.Len(),
		OutputDepth: c.output.Len(),
	}
}

// RecentTasks returns the newest task snapshots, most recent first.
func (c *Controller) RecentTasks() []TaskSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TaskSnapshot, len(c.recent))
	copy(out, c.recent)
	return out
}

func (c *Controller) record(t *task.Task) {
	snap := TaskSnapshot{
		ID:        t.ID,
		State:     t.State(),
		MediaType: t.Config.MediaType,
		StartMS:   t.Config.StartMS,
		EndMS:     t.Config.EndMS,
		Retries:   t.Retries(),
		UpdatedAt: time.Now(),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.recent {
		if c.recent[i].ID == snap.ID {
			c.recent[i] = snap
			return
		}
	}
	c.recent = append([]TaskSnapshot{snap}, c.recent...)
	if len(c.recent) > recentLimit {
		c.recent = c.recent[:recentLimit]
	}
}

// Close shuts both queues; buffered items drain on their next tick.
func (c *Controller) Close() {
	c.input.Close()
	c.output.Close()
}
