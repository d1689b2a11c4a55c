package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/lithammer/shortuuid/v4"

	"clipbot/cut"
)

// State is the lifecycle position of a task.
type State string

const (
	StateValid   State = "valid"   // ready to execute
	StateInvalid State = "invalid" // recoverable, eligible for requeue
	StateDrop    State = "drop"    // no engine for this media type, discard
	StateDone    State = "done"    // terminal, produced a result
)

// ErrTaskFailure signals that executing a task failed in a way that is
// terminal for this attempt, such as the media fetch returning a non-success
// status.
var ErrTaskFailure = errors.New("task failure")

// Task binds one resolved configuration to the cutting engine selected for
// its media type.
type Task struct {
	ID     string
	Config *Config

	cutter   cut.Cutter
	client   *http.Client
	maxBytes int64
	state    State
	retries  int
}

// New selects an engine by the config's media type. A config whose type no
// engine handles yields a task in the DROP state.
func New(cfg *Config, engines cut.Engines, client *http.Client, maxBytes int64) *Task {
	t := &Task{
		ID:       shortuuid.New(),
		Config:   cfg,
		client:   client,
		maxBytes: maxBytes,
		state:    StateValid,
	}
	if !cfg.IsValid() {
		t.state = StateInvalid
		return t
	}
	t.cutter = engines.For(cfg.MediaType)
	if t.cutter == nil {
		t.state = StateDrop
	}
	return t
}

// State returns the current lifecycle state.
func (t *Task) State() State {
	return t.state
}

// Retries returns how often this task has been requeued after popping in the
// INVALID state.
func (t *Task) Retries() int {
	return t.retries
}

// MarkRequeued bumps the requeue counter.
func (t *Task) MarkRequeued() {
	t.retries++
}

// Handle fetches the raw media bytes and drives the cut. A fetch returning a
// non-success status flips the task to INVALID and fails with
// ErrTaskFailure; a successful cut transitions to DONE.
func (t *Task) Handle(ctx context.Context) (*Result, error) {
	data, err := t.fetch(ctx)
	if err != nil {
		t.state = StateInvalid
		return nil, fmt.Errorf("%w: %v", ErrTaskFailure, err)
	}

	out, err := t.cutter.Cut(ctx, data, cut.Request{
		StartMS:   t.Config.StartMS,
		EndMS:     t.Config.EndMS,
		Duration:  t.Config.Duration,
		Extension: t.Config.Extension,
		Watermark: t.Config.Watermark,
	})
	if err != nil {
		return nil, err
	}

	t.state = StateDone
	return &Result{
		Media:     out,
		MediaType: t.Config.MediaType,
		Message:   t.Config.Message,
	}, nil
}

// fetch buffers the media fully into memory. Inputs are bounded by upstream
// size limits, enforced again here with a hard cap.
func (t *Task) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Config.MediaURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("media fetch returned status %d", resp.StatusCode)
	}

	limited := &io.LimitedReader{R: resp.Body, N: t.maxBytes + 1}
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("could not read media stream: %w", err)
	}
	if int64(len(data)) > t.maxBytes {
		return nil, fmt.Errorf("media exceeds size limit of %d bytes", t.maxBytes)
	}
	return data, nil
}
