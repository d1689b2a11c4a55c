package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipbot/config"
	"clipbot/cut"
	"clipbot/media"
	"clipbot/task"
)

type fakeSubmission struct {
	url       string
	isVideo   bool
	crosspost bool
	video     *media.Video
}

func (s *fakeSubmission) URL() string            { return s.url }
func (s *fakeSubmission) IsVideo() bool          { return s.isVideo }
func (s *fakeSubmission) IsCrosspost() bool      { return s.crosspost }
func (s *fakeSubmission) Root() task.Submission  { return s }
func (s *fakeSubmission) Video() *media.Video    { return s.video }
func (s *fakeSubmission) OEmbedHTML() string     { return "" }
func (s *fakeSubmission) OEmbedProvider() string { return "" }

type fakeMessage struct {
	id      string
	body    string
	sub     *fakeSubmission
	read    bool
	replies []string
}

func (m *fakeMessage) ID() string                  { return m.id }
func (m *fakeMessage) Body() string                { return m.body }
func (m *fakeMessage) Submission() task.Submission { return m.sub }
func (m *fakeMessage) MarkRead(context.Context) error {
	m.read = true
	return nil
}
func (m *fakeMessage) Reply(_ context.Context, text string) error {
	m.replies = append(m.replies, text)
	return nil
}

type fakeInbox struct {
	msgs []task.Message
}

func (f *fakeInbox) HasUnread(context.Context) (bool, error) {
	for _, m := range f.msgs {
		if !m.(*fakeMessage).read {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeInbox) Unread(context.Context) ([]task.Message, error) {
	var out []task.Message
	for _, m := range f.msgs {
		if !m.(*fakeMessage).read {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeHoster struct {
	imageCalls int
	videoCalls int
	link       string
	err        error
}

func (f *fakeHoster) UploadImage(context.Context, []byte, string) (string, error) {
	f.imageCalls++
	return f.link, f.err
}

func (f *fakeHoster) UploadVideo(context.Context, []byte, string) (string, error) {
	f.videoCalls++
	return f.link, f.err
}

type okResources struct{}

func (okResources) Check() error { return nil }

type busyResources struct{}

func (busyResources) Check() error { return errors.New("not enough idle CPU") }

type countingCutter struct {
	calls int
	out   []byte
}

func (c *countingCutter) Cut(context.Context, []byte, cut.Request) ([]byte, error) {
	c.calls++
	return c.out, nil
}

func testConfig() *config.Config {
	return &config.Config{
		QueueSize:      8,
		MaxTaskRetries: 2,
		MaxInputSize:   1 << 20,
		FFTimeout:      time.Minute,
		IssueRecipient: "domac",
		RedditUsername: "clipbot",
	}
}

func TestController_Scenario(t *testing.T) {
	// A 10 second GIF behind an HTTP URL; the engine is stubbed so the test
	// exercises the pipeline, not the codec.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("raw gif"))
	}))
	defer srv.Close()

	msg := &fakeMessage{
		id:   "t1_abc",
		body: "s=0 e=250",
		sub:  &fakeSubmission{url: srv.URL + "/funny.gif"},
	}
	inbox := &fakeInbox{msgs: []task.Message{msg}}
	hoster := &fakeHoster{link: "https://i.example/cut.gif"}
	engine := &countingCutter{out: []byte("cut gif")}

	c := NewController(testConfig(), inbox, hoster, cut.Engines{GIF: engine}, okResources{}, srv.Client())
	ctx := context.Background()

	require.NoError(t, c.Fetch(ctx))
	assert.True(t, msg.read)
	assert.Equal(t, 1, c.input.Len())

	require.NoError(t, c.Work(ctx))
	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, 1, c.output.Len())

	require.NoError(t, c.UploadAndAnswer(ctx))
	assert.Equal(t, 1, hoster.imageCalls)
	assert.Zero(t, hoster.videoCalls)
	require.Len(t, msg.replies, 1)
	assert.Contains(t, msg.replies[0], "Here is your cut GIF: https://i.example/cut.gif")
	assert.Contains(t, msg.replies[0], "^(I am a bot.)")
	assert.Contains(t, msg.replies[0], "Report an issue")

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Enqueued)
	assert.Equal(t, uint64(1), stats.Cut)
	assert.Equal(t, uint64(1), stats.Uploaded)
}

func TestController_NoPatternMarksRead(t *testing.T) {
	msg := &fakeMessage{id: "t1_x", body: "hello world", sub: &fakeSubmission{url: "https://x/f.gif"}}
	c := NewController(testConfig(), &fakeInbox{msgs: []task.Message{msg}}, &fakeHoster{}, cut.Engines{}, okResources{}, nil)

	require.NoError(t, c.Fetch(context.Background()))
	assert.True(t, msg.read)
	assert.Zero(t, c.input.Len())
}

func TestController_ResolutionFailureLeavesUnread(t *testing.T) {
	// Unclassifiable submission: pattern matches but no media branch does.
	msg := &fakeMessage{id: "t1_y", body: "s=0 e=100", sub: &fakeSubmission{url: "https://x/article.html"}}
	c := NewController(testConfig(), &fakeInbox{msgs: []task.Message{msg}}, &fakeHoster{}, cut.Engines{}, okResources{}, nil)

	require.NoError(t, c.Fetch(context.Background()))
	assert.False(t, msg.read)
	assert.Zero(t, c.input.Len())
}

func TestController_StagesAreNoopsWhenEmpty(t *testing.T) {
	c := NewController(testConfig(), &fakeInbox{}, &fakeHoster{}, cut.Engines{}, okResources{}, nil)
	assert.NoError(t, c.Work(context.Background()))
	assert.NoError(t, c.UploadAndAnswer(context.Background()))
}

func TestController_InvalidTaskRequeueBound(t *testing.T) {
	cfg := testConfig()
	c := NewController(cfg, &fakeInbox{}, &fakeHoster{}, cut.Engines{}, okResources{}, nil)

	invalidCfg := &task.Config{
		Message:   &fakeMessage{id: "t1_z"},
		MediaType: media.TypeGIF,
		State:     task.ConfigInvalid,
	}
	tsk := task.New(invalidCfg, cut.Engines{}, http.DefaultClient, 1)
	require.Equal(t, task.StateInvalid, tsk.State())
	require.NoError(t, c.input.TryPush(tsk))

	ctx := context.Background()
	// Two requeues are allowed, the third pop gives up.
	require.NoError(t, c.Work(ctx))
	assert.Equal(t, 1, c.input.Len())
	require.NoError(t, c.Work(ctx))
	assert.Equal(t, 1, c.input.Len())
	require.NoError(t, c.Work(ctx))
	assert.Zero(t, c.input.Len())
	assert.Equal(t, uint64(2), c.Stats().Requeued)
	assert.Equal(t, uint64(1), c.Stats().Dropped)
}

func TestController_FetchFailureDropsTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	msg := &fakeMessage{id: "t1_a", body: "s=0 e=250", sub: &fakeSubmission{url: srv.URL + "/gone.gif"}}
	engine := &countingCutter{}
	c := NewController(testConfig(), &fakeInbox{msgs: []task.Message{msg}}, &fakeHoster{}, cut.Engines{GIF: engine}, okResources{}, srv.Client())

	ctx := context.Background()
	require.NoError(t, c.Fetch(ctx))
	require.NoError(t, c.Work(ctx))

	assert.Zero(t, engine.calls)
	assert.Zero(t, c.output.Len())
	// Failed handles are dropped, not requeued.
	assert.Zero(t, c.input.Len())
	assert.Equal(t, uint64(1), c.Stats().Failures)
}

func TestController_BusyHostDefersCut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("raw"))
	}))
	defer srv.Close()

	msg := &fakeMessage{id: "t1_b", body: "s=0 e=250", sub: &fakeSubmission{url: srv.URL + "/f.gif"}}
	engine := &countingCutter{}
	c := NewController(testConfig(), &fakeInbox{msgs: []task.Message{msg}}, &fakeHoster{}, cut.Engines{GIF: engine}, busyResources{}, srv.Client())

	ctx := context.Background()
	require.NoError(t, c.Fetch(ctx))
	require.NoError(t, c.Work(ctx))

	assert.Zero(t, engine.calls)
	// The task went back to the input queue for a later tick.
	assert.Equal(t, 1, c.input.Len())
}

func TestController_UploadErrorPropagates(t *testing.T) {
	c := NewController(testConfig(), &fakeInbox{}, &fakeHoster{err: errors.New("quota exceeded")}, cut.Engines{}, okResources{}, nil)

	res := &task.Result{Media: []byte("x"), MediaType: media.TypeGIF, Message: &fakeMessage{id: "t1_c"}}
	require.NoError(t, c.output.TryPush(res))

	err := c.UploadAndAnswer(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload failed")
}

func TestController_VideoResultUsesFilePayload(t *testing.T) {
	hoster := &fakeHoster{link: "https://i.example/cut.mp4"}
	c := NewController(testConfig(), &fakeInbox{}, hoster, cut.Engines{}, okResources{}, nil)

	msg := &fakeMessage{id: "t1_d"}
	res := &task.Result{Media: []byte("x"), MediaType: media.TypeMP4, Message: msg}
	require.NoError(t, c.output.TryPush(res))

	require.NoError(t, c.UploadAndAnswer(context.Background()))
	assert.Equal(t, 1, hoster.videoCalls)
	assert.Zero(t, hoster.imageCalls)
	require.Len(t, msg.replies, 1)
}
