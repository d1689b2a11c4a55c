package task

import (
	"context"

	"clipbot/media"
)

type fakeSubmission struct {
	url       string
	isVideo   bool
	crosspost bool
	root      *fakeSubmission
	video     *media.Video
	oembed    string
	provider  string
}

func (s *fakeSubmission) URL() string            { return s.url }
func (s *fakeSubmission) IsVideo() bool          { return s.isVideo }
func (s *fakeSubmission) IsCrosspost() bool      { return s.crosspost }
func (s *fakeSubmission) Video() *media.Video    { return s.video }
func (s *fakeSubmission) OEmbedHTML() string     { return s.oembed }
func (s *fakeSubmission) OEmbedProvider() string { return s.provider }

func (s *fakeSubmission) Root() Submission {
	if s.root != nil {
		return s.root
	}
	return s
}

type fakeMessage struct {
	id      string
	body    string
	sub     *fakeSubmission
	read    bool
	replies []string
}

func (m *fakeMessage) ID() string             { return m.id }
func (m *fakeMessage) Body() string           { return m.body }
func (m *fakeMessage) Submission() Submission { return m.sub }

func (m *fakeMessage) MarkRead(context.Context) error {
	m.read = true
	return nil
}

func (m *fakeMessage) Reply(_ context.Context, text string) error {
	m.replies = append(m.replies, text)
	return nil
}
