package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/wavesbyte/cibtron-tool/internal/config"
)

// StatusSuccess is the envelope status every successful backend reply carries.
const StatusSuccess = "success"

// SessionCookie is the cookie the backend reads the operator token from.
const SessionCookie = "idToken"

// Client provides typed access to the programming backend.
// Every endpoint replies with a JSON envelope; Send decodes it regardless of
// the HTTP status because the backend reports failures in the body.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu      sync.RWMutex
	idToken string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithIDToken attaches the session cookie to every request.
func WithIDToken(token string) Option {
	return func(c *Client) {
		c.idToken = token
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid backend URL %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// IDToken returns the session token, if any.
func (c *Client) IDToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idToken
}

func (c *Client) clearIDToken() {
	c.mu.Lock()
	c.idToken = ""
	c.mu.Unlock()
}

// Envelope is the status/message pair shared by all replies.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (e Envelope) check(op string, code int) error {
	if e.Status == StatusSuccess {
		return nil
	}
	return &BackendError{Op: op, StatusCode: code, Message: e.Message}
}

// Send issues a request and decodes the JSON reply into out.
// It returns the HTTP status code alongside any transport error.
func (c *Client) Send(ctx context.Context, method, endpoint string, query url.Values, body io.Reader, contentType string, out any) (int, error) {
	op := strings.TrimPrefix(endpoint, "/")

	u := c.BaseURL()
	u.Path = strings.TrimRight(u.Path, "/") + endpoint
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to build %s request", op)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.IDToken(); token != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	}

	config.Debugf("api: %s %s", method, u.Redacted())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &TransportError{Op: op, Err: errors.Wrap(err, "failed to read response")}
	}
	config.Debugf("api: %s -> %d %s", op, resp.StatusCode, string(raw))

	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return resp.StatusCode, &BackendError{Op: op, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return resp.StatusCode, &TransportError{Op: op, Err: errors.Wrap(err, "failed to decode response")}
	}
	return resp.StatusCode, nil
}

// --- JSON helpers ---

// GetJSON sends a GET request and decodes the reply.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out any) (int, error) {
	return c.Send(ctx, http.MethodGet, endpoint, query, nil, "", out)
}

// PostJSON sends a POST request with a JSON body and decodes the reply.
func (c *Client) PostJSON(ctx context.Context, endpoint string, payload, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, errors.Wrap(err, "failed to marshal payload")
		}
		body = bytes.NewReader(b)
	}
	return c.Send(ctx, http.MethodPost, endpoint, nil, body, "application/json", out)
}

// PostForm sends a POST request with a urlencoded form body and decodes the reply.
func (c *Client) PostForm(ctx context.Context, endpoint string, form url.Values, out any) (int, error) {
	return c.Send(ctx, http.MethodPost, endpoint, nil, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", out)
}
