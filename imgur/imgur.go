// Package imgur is a thin hosting collaborator: it uploads media bytes and
// hands back the hosted link. GIFs go up as inline base64 image payloads,
// videos as multipart file payloads.
package imgur

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

const defaultBaseURL = "https://api.imgur.com/3"

// Client uploads media to imgur. With an access token it acts on behalf of
// an account, otherwise it uploads anonymously under the client ID.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	clientID    string
	accessToken string
}

func NewClient(clientID, accessToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     defaultBaseURL,
		clientID:    clientID,
		accessToken: accessToken,
	}
}

type uploadResponse struct {
	Data struct {
		Link  string `json:"link"`
		Error any    `json:"error"`
	} `json:"data"`
	Success bool `json:"success"`
}

// UploadImage uploads an animated image as a base64 payload and returns the
// hosted link.
func (c *Client) UploadImage(ctx context.Context, data []byte, title string) (string, error) {
	form := url.Values{
		"image": {base64.StdEncoding.EncodeToString(data)},
		"type":  {"base64"},
		"title": {title},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/image", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(req)
}

// UploadVideo uploads a video as a multipart file payload and returns the
// hosted link.
func (c *Client) UploadVideo(ctx context.Context, data []byte, name string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("video", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.send(req)
}

func (c *Client) send(req *http.Request) (string, error) {
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	} else {
		req.Header.Set("Authorization", "Client-ID "+c.clientID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("unparsable upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !parsed.Success || parsed.Data.Link == "" {
		return "", fmt.Errorf("upload rejected with status %d (%v)", resp.StatusCode, parsed.Data.Error)
	}
	return parsed.Data.Link, nil
}
