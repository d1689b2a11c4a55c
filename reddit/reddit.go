// Package reddit is a thin inbox collaborator: it polls unread inbox items,
// loads the submissions they refer to, marks items read and posts replies.
// All pipeline logic lives elsewhere.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clipbot/media"
	"clipbot/task"
)

const (
	defaultAuthBase  = "https://www.reddit.com"
	defaultOAuthBase = "https://oauth.reddit.com"
)

// Credentials holds the script-app login used by the client.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
}

// Client talks to the reddit API with a password-grant token.
type Client struct {
	httpClient *http.Client
	creds      Credentials
	authBase   string
	oauthBase  string
	log        zerolog.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewClient(creds Credentials, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		creds:      creds,
		authBase:   defaultAuthBase,
		oauthBase:  defaultOAuthBase,
		log:        log,
	}
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.creds.Username},
		"password":   {c.creds.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.authBase+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.creds.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string  `json:"access_token"`
		ExpiresIn   float64 `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("unparsable token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token response carries no access token")
	}
	c.token = body.AccessToken
	c.tokenExp = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	var reqBody *strings.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	} else {
		reqBody = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.oauthBase+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.creds.UserAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// HasUnread reports whether at least one unread item is waiting.
func (c *Client) HasUnread(ctx context.Context) (bool, error) {
	var list listing[messageData]
	if err := c.do(ctx, http.MethodGet, "/message/unread?limit=1", nil, &list); err != nil {
		return false, err
	}
	return len(list.Data.Children) > 0, nil
}

// Unread returns the unread inbox items with their submissions loaded. Items
// whose submission cannot be resolved are skipped and stay unread for a
// later pass.
func (c *Client) Unread(ctx context.Context) ([]task.Message, error) {
	var list listing[messageData]
	if err := c.do(ctx, http.MethodGet, "/message/unread?limit=100", nil, &list); err != nil {
		return nil, err
	}

	var out []task.Message
	for _, child := range list.Data.Children {
		md := child.Data
		sub, err := c.loadSubmission(ctx, md.submissionID())
		if err != nil {
			c.log.Warn().Err(err).Str("message", md.Name).Msg("could not load submission, leaving unread")
			continue
		}
		out = append(out, &Message{client: c, name: md.Name, body: md.Body, sub: sub})
	}
	return out, nil
}

func (c *Client) loadSubmission(ctx context.Context, id36 string) (*Submission, error) {
	if id36 == "" {
		return nil, fmt.Errorf("message carries no submission reference")
	}
	var list listing[submissionData]
	if err := c.do(ctx, http.MethodGet, "/api/info?id=t3_"+id36, nil, &list); err != nil {
		return nil, err
	}
	if len(list.Data.Children) == 0 {
		return nil, fmt.Errorf("submission t3_%s not found", id36)
	}
	return &Submission{data: list.Data.Children[0].Data}, nil
}

type listing[T any] struct {
	Data struct {
		Children []struct {
			Data T `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type messageData struct {
	Name    string `json:"name"`
	Body    string `json:"body"`
	Context string `json:"context"`
	LinkID  string `json:"link_id"`
}

// submissionID digs the base36 submission id out of the comment permalink or
// the link fullname.
func (m messageData) submissionID() string {
	if m.LinkID != "" {
		return strings.TrimPrefix(m.LinkID, "t3_")
	}
	// Context shape: /r/<sub>/comments/<id36>/<slug>/<comment>/?context=3
	parts := strings.Split(strings.Trim(m.Context, "/"), "/")
	for i, p := range parts {
		if p == "comments" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

type submissionData struct {
	URL                 string           `json:"url"`
	IsVideo             bool             `json:"is_video"`
	CrosspostParent     string           `json:"crosspost_parent"`
	CrosspostParentList []submissionData `json:"crosspost_parent_list"`
	SecureMedia         *struct {
		RedditVideo *struct {
			FallbackURL      string  `json:"fallback_url"`
			ScrubberMediaURL string  `json:"scrubber_media_url"`
			Duration         float64 `json:"duration"`
		} `json:"reddit_video"`
	} `json:"secure_media"`
	Media *struct {
		OEmbed *struct {
			HTML         string `json:"html"`
			URL          string `json:"url"`
			ProviderName string `json:"provider_name"`
		} `json:"oembed"`
	} `json:"media"`
}

// Submission adapts reddit's post payload to the pipeline's view of it.
type Submission struct {
	data submissionData
}

func (s *Submission) URL() string { return s.data.URL }

func (s *Submission) IsVideo() bool { return s.data.IsVideo }

func (s *Submission) IsCrosspost() bool {
	return s.data.CrosspostParent != "" || len(s.data.CrosspostParentList) > 0
}

func (s *Submission) Root() task.Submission {
	if len(s.data.CrosspostParentList) > 0 {
		// The first entry of the lineage is the original post.
		return &Submission{data: s.data.CrosspostParentList[0]}
	}
	return s
}

func (s *Submission) Video() *media.Video {
	if s.data.SecureMedia == nil || s.data.SecureMedia.RedditVideo == nil {
		return nil
	}
	rv := s.data.SecureMedia.RedditVideo
	return &media.Video{
		FallbackURL: rv.FallbackURL,
		ScrubberURL: rv.ScrubberMediaURL,
		Duration:    rv.Duration,
	}
}

func (s *Submission) OEmbedHTML() string {
	if s.data.Media == nil || s.data.Media.OEmbed == nil {
		return ""
	}
	if s.data.Media.OEmbed.HTML != "" {
		return s.data.Media.OEmbed.HTML
	}
	return s.data.Media.OEmbed.URL
}

func (s *Submission) OEmbedProvider() string {
	if s.data.Media == nil || s.data.Media.OEmbed == nil {
		return ""
	}
	return s.data.Media.OEmbed.ProviderName
}

// Message adapts one unread inbox item.
type Message struct {
	client *Client
	name   string
	body   string
	sub    *Submission
}

func (m *Message) ID() string { return m.name }

func (m *Message) Body() string { return m.body }

func (m *Message) Submission() task.Submission { return m.sub }

func (m *Message) MarkRead(ctx context.Context) error {
	return m.client.do(ctx, http.MethodPost, "/api/read_message", url.Values{"id": {m.name}}, nil)
}

func (m *Message) Reply(ctx context.Context, text string) error {
	form := url.Values{"thing_id": {m.name}, "text": {text}, "api_type": {"json"}}
	return m.client.do(ctx, http.MethodPost, "/api/comment", form, nil)
}
