// Package redis implements a Redis pub/sub wake-up listener for pull mode.
//
// The backend publishes a JSON event on a channel whenever a chat record
// changes. Subscribing is strictly an optimization over the fixed cadence:
// a notification for the watched chat triggers an immediate refetch, which
// is also the external trigger that flips a quiesced poller back to active
// when a followup reopens a completed chat. Pure polling remains correct
// without it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/teller/log"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "teller:chat_updated"

// Refetcher triggers an immediate fetch of the tracked chat.
// poll.Poller implements it.
type Refetcher interface {
	Refetch(ctx context.Context) error
}

// Config configures the listener.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: teller:chat_updated).
	Channel string
	// Logger is an optional logger.
	Logger *log.Logger
}

// updateEvent is the payload the backend publishes on chat changes.
type updateEvent struct {
	ChatID string `json:"chat_id"`
}

// Listener subscribes to chat-update notifications and nudges a Refetcher.
type Listener struct {
	config    Config
	client    *goredis.Client
	refetcher Refetcher
	// watched returns the currently tracked chat id; events for any other
	// id are ignored.
	watched func() string
	logger  *log.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a listener. watched reports the chat id currently tracked by
// the caller's poller; it is consulted per event so target switches need no
// re-subscribe.
func New(cfg Config, refetcher Refetcher, watched func() string) (*Listener, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis listener requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis listener: invalid URL: %w", err)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}

	return &Listener{
		config:    cfg,
		client:    goredis.NewClient(opts),
		refetcher: refetcher,
		watched:   watched,
		logger:    cfg.Logger,
	}, nil
}

// Start subscribes and begins dispatching events on a background goroutine.
// Returns once the subscription is confirmed, so events published after
// Start returns are not missed.
func (l *Listener) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())

	pubsub := l.client.Subscribe(runCtx, l.config.Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return fmt.Errorf("redis listener: subscribe: %w", err)
	}

	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(runCtx, pubsub)
	return nil
}

func (l *Listener) run(ctx context.Context, pubsub *goredis.PubSub) {
	defer close(l.done)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			l.handle(ctx, msg.Payload)
		}
	}
}

func (l *Listener) handle(ctx context.Context, payload string) {
	var ev updateEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		l.logger.Warn("skipping malformed update event", map[string]any{"error": err.Error()})
		return
	}
	if ev.ChatID == "" || ev.ChatID != l.watched() {
		return
	}

	l.logger.Debug("update notification, refetching", map[string]any{"chat_id": ev.ChatID})
	if err := l.refetcher.Refetch(ctx); err != nil {
		// The poller already surfaced it through its error snapshot.
		l.logger.Warn("notification refetch failed", map[string]any{
			"chat_id": ev.ChatID,
			"error":   err.Error(),
		})
	}
}

// Close stops dispatching and releases the connection. Safe to call before
// Start and more than once.
func (l *Listener) Close() error {
	if l.cancel != nil {
		l.cancel()
		<-l.done
		l.cancel = nil
	}
	return l.client.Close()
}
