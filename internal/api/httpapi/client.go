package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/narrator/internal/app/notification"
)

// Client calls the trigger API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a new client. A nil httpClient uses http.DefaultClient.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// Play requests a sequence.
func (c *Client) Play(ctx context.Context, name string) (*PlayResponse, error) {
	var resp PlayResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sequences/"+url.PathEscape(name)+"/play", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Abort aborts the active sequence.
func (c *Client) Abort(ctx context.Context) (*AbortResponse, error) {
	var resp AbortResponse
	if err := c.do(ctx, http.MethodPost, "/v1/abort", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reset resets the sequencer.
func (c *Client) Reset(ctx context.Context) (*ResetResponse, error) {
	var resp ResetResponse
	if err := c.do(ctx, http.MethodPost, "/v1/reset", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status returns the session status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events calls fn for every streamed notification until ctx is done or the
// server closes the stream.
func (c *Client) Events(ctx context.Context, fn func(*notification.Notification)) error {
	res, err := c.send(ctx, http.MethodGet, "/v1/events")
	if err != nil {
		return err
	}
	defer res.Body.Close()

	scanner := bufio.NewScanner(res.Body)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var n notification.Notification
		if err := json.Unmarshal(line, &n); err != nil {
			return errors.Wrap(err, "failed to decode notification")
		}
		fn(&n)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "event stream failed")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	res, err := c.send(ctx, method, path)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// send performs the request and converts non-2xx responses to errors.
func (c *Client) send(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set(AdminTokenHeader, c.token)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	if res.StatusCode/100 != 2 {
		defer res.Body.Close()
		var e ErrorResponse
		body, _ := io.ReadAll(res.Body)
		if json.Unmarshal(body, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(body))
		}
		return nil, errors.Newf("%s %s: %s: %s", method, path, res.Status, e.Error)
	}
	return res, nil
}
