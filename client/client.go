// Package client implements the HTTP client for the portfolio advisor agent
// API.
//
// Pull mode reads the mutable chat resource (FetchChat); push mode opens an
// NDJSON chunk stream (StreamChat) whose body is handed to stream.Decoder.
// Mutations (CreateChat, Followup) return the updated record in queued
// status; the poller's next cycle observes the effect.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/justapithecus/teller/iox"
	"github.com/justapithecus/teller/log"
	"github.com/justapithecus/teller/metrics"
	"github.com/justapithecus/teller/types"
)

// DefaultTimeout is the default per-request timeout for unary calls.
// Streaming requests are bounded by their context instead.
const DefaultTimeout = 10 * time.Second

// NDJSONContentType is the content type of the push-mode chunk stream.
const NDJSONContentType = "application/x-ndjson"

// Config configures the API client.
type Config struct {
	// BaseURL is the agent API root, e.g. http://localhost:8001 (required).
	BaseURL string
	// Timeout is the per-request timeout for unary calls (default 10s).
	Timeout time.Duration
	// Logger is an optional logger.
	Logger *log.Logger
	// Collector is an optional session metrics collector.
	Collector *metrics.Collector
}

// Client talks to the agent API. Safe for concurrent use.
type Client struct {
	config    Config
	unary     *http.Client
	streaming *http.Client
	logger    *log.Logger
	collector *metrics.Collector
}

// New creates a client from the given config.
// Returns an error if the base URL is empty or unparsable.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client requires a base URL")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("client: invalid base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}

	return &Client{
		config: cfg,
		unary:  &http.Client{Timeout: cfg.Timeout},
		// No client-wide timeout: a chunk stream stays open as long as the
		// agent keeps producing. Cancellation comes from the request context.
		streaming: &http.Client{},
		logger:    logger,
		collector: cfg.Collector,
	}, nil
}

// StatusError is returned for non-2xx HTTP responses. Wrapping the status
// code lets callers distinguish a missing chat (404) from server failures.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// IsNotFound returns true if err is a StatusError with code 404.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}

// CreateChat creates a new chat job. The backend answers immediately with the
// record in queued status and processes in the background.
func (c *Client) CreateChat(ctx context.Context, req types.ChatCreateRequest) (*types.ChatRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	var rec types.ChatRecord
	if err := c.doJSON(ctx, http.MethodPost, "/chat", req, &rec); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &rec, nil
}

// FetchChat fetches the current chat record. Implements poll.Fetcher.
func (c *Client) FetchChat(ctx context.Context, id string) (*types.ChatRecord, error) {
	var rec types.ChatRecord
	if err := c.doJSON(ctx, http.MethodGet, "/chat/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, fmt.Errorf("fetch chat %s: %w", id, err)
	}
	return &rec, nil
}

// ListChats lists chats newest-first with pagination.
func (c *Client) ListChats(ctx context.Context, limit, offset int) ([]types.ChatRecord, error) {
	path := "/chat?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	var recs []types.ChatRecord
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &recs); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return recs, nil
}

// Portfolio fetches the chat's current portfolio positions.
func (c *Client) Portfolio(ctx context.Context, id string) ([]types.PortfolioPosition, error) {
	var out struct {
		Portfolio []types.PortfolioPosition `json:"portfolio"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/chat/"+url.PathEscape(id)+"/portfolio", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch portfolio %s: %w", id, err)
	}
	return out.Portfolio, nil
}

// Followup appends a user message to an existing chat. The record returns to
// queued status; the poller's next observation picks that up and re-arms its
// cadence.
func (c *Client) Followup(ctx context.Context, id string, req types.FollowupRequest) (*types.ChatRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("followup: %w", err)
	}
	var rec types.ChatRecord
	if err := c.doJSON(ctx, http.MethodPost, "/chat/"+url.PathEscape(id)+"/followup", req, &rec); err != nil {
		return nil, fmt.Errorf("followup %s: %w", id, err)
	}
	return &rec, nil
}

// StreamChat opens a push-mode chunk stream for a prompt against an existing
// chat. The response is validated (2xx, usable body) before any read, per
// the stream-unusable contract; on success the caller owns the returned body
// and normally hands it straight to stream.NewDecoder.
func (c *Client) StreamChat(ctx context.Context, id string, req types.FollowupRequest) (io.ReadCloser, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("stream chat: %w", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("stream chat: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/"+url.PathEscape(id)+"/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("stream chat: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", NDJSONContentType)

	resp, err := c.streaming.Do(httpReq)
	if err != nil {
		c.collector.IncStreamErrors()
		return nil, fmt.Errorf("stream chat: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		iox.DiscardClose(resp.Body)
		c.collector.IncStreamErrors()
		return nil, fmt.Errorf("stream chat: %w", &StatusError{Code: resp.StatusCode})
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		c.collector.IncStreamErrors()
		return nil, errors.New("stream chat: response has no body")
	}

	c.collector.IncStreamsOpened()
	c.logger.Debug("chunk stream opened", map[string]any{"chat_id": id})
	return resp.Body, nil
}

// doJSON performs one unary request: optional JSON request body, required
// JSON response decode. Non-2xx responses become StatusError.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.unary.Do(req)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
