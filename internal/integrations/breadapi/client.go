package breadapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bread-widget/internal/domain"
)

const (
	defaultStartPath = "/start/"
	defaultTurnPath  = "/bread"
	maxResponseBytes = 1 << 20
)

// ErrMissingConversationID is returned when the start endpoint answers
// without a conversation identifier.
var ErrMissingConversationID = domain.ErrMissingConversationID

// ErrResponseTooLarge is returned when a success body exceeds the read limit.
var ErrResponseTooLarge = errors.New("response too large")

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("breadapi: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to the bread baking assistant service.
type Client struct {
	baseURL    string
	startPath  string
	turnPath   string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithPaths overrides the start and turn endpoint paths. Empty values keep
// the defaults.
func WithPaths(startPath, turnPath string) Option {
	return func(c *Client) {
		if p := strings.TrimSpace(startPath); p != "" {
			c.startPath = p
		}
		if p := strings.TrimSpace(turnPath); p != "" {
			c.turnPath = p
		}
	}
}

// NewClient creates a Client for the service rooted at baseURL.
// No request timeout is configured unless an HTTP client carrying one is
// supplied with WithHTTPClient.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("breadapi: base URL must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		startPath:  defaultStartPath,
		turnPath:   defaultTurnPath,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return http.DefaultClient
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) startURL() string { return joinURL(c.baseURL, c.startPath) }
func (c *Client) turnURL() string  { return joinURL(c.baseURL, c.turnPath) }

// StartSession asks the service for a new conversation identifier.
func (c *Client) StartSession(ctx context.Context) (string, error) {
	url := c.startURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("breadapi: create start request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", fmt.Errorf("breadapi: start request failed: %w", err)
	}

	var payload domain.StartResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("breadapi: decode start response: %w", err)
	}
	id := strings.TrimSpace(payload.ConversationID)
	if id == "" {
		return "", ErrMissingConversationID
	}
	return id, nil
}

// Turn sends one user input and returns the validated response.
func (c *Client) Turn(ctx context.Context, in domain.TurnRequest) (domain.ServerResponse, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return domain.ServerResponse{}, errors.New("breadapi: session id must not be empty")
	}

	body, err := json.Marshal(in)
	if err != nil {
		return domain.ServerResponse{}, fmt.Errorf("breadapi: marshal turn request: %w", err)
	}

	url := c.turnURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.ServerResponse{}, fmt.Errorf("breadapi: create turn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return domain.ServerResponse{}, fmt.Errorf("breadapi: turn request failed: %w", err)
	}

	resp, err := domain.ParseServerResponse(raw)
	if err != nil {
		return domain.ServerResponse{}, fmt.Errorf("breadapi: decode turn response: %w", err)
	}
	return resp, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(buf) > maxResponseBytes {
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrResponseTooLarge, maxResponseBytes, url)
	}
	return buf, nil
}
