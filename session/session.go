// Package session wires the chat client, conversation store, poller, stream
// decoder, and optional notifier into one owned lifecycle. The TUI and the
// one-shot CLI commands drive a Session instead of assembling the parts
// themselves.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/teller/cache"
	"github.com/justapithecus/teller/client"
	"github.com/justapithecus/teller/conversation"
	"github.com/justapithecus/teller/log"
	"github.com/justapithecus/teller/metrics"
	notifyredis "github.com/justapithecus/teller/notify/redis"
	"github.com/justapithecus/teller/poll"
	"github.com/justapithecus/teller/stream"
	"github.com/justapithecus/teller/types"
)

// Config configures a Session.
type Config struct {
	// Client is the backend API client. Required.
	Client *client.Client
	// Store is the conversation store the UI renders. Required.
	Store *conversation.Store
	// Cache is the optional on-disk record cache. Every poll update is
	// written through so list/show work offline.
	Cache *cache.Store
	// NotifyURL is the optional redis URL for push update notifications.
	NotifyURL string
	// NotifyChannel overrides the default notification channel.
	NotifyChannel string
	// PollInterval overrides the poller's default cadence.
	PollInterval time.Duration
	// Logger is an optional logger.
	Logger *log.Logger
	// Collector is an optional session metrics collector.
	Collector *metrics.Collector
}

// Session owns the sync machinery for one tracked chat. A Session starts
// with no chat attached; Send creates one, Attach resumes an existing one.
type Session struct {
	client    *client.Client
	store     *conversation.Store
	cache     *cache.Store
	poller    *poll.Poller
	listener  *notifyredis.Listener
	logger    *log.Logger
	collector *metrics.Collector

	mu      sync.Mutex
	chatID  string
	applied int // record messages already reflected in the conversation
	lastErr string

	obsMu     sync.Mutex
	observers []func(*types.ChatRecord)
}

// New creates a Session. The poller starts Idle; nothing is fetched until
// Send or Attach selects a chat.
func New(cfg Config) (*Session, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("session: client is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session: store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}

	s := &Session{
		client:    cfg.Client,
		store:     cfg.Store,
		cache:     cfg.Cache,
		logger:    logger,
		collector: cfg.Collector,
	}

	s.poller = poll.New(cfg.Client, poll.Config{
		Interval:  cfg.PollInterval,
		Logger:    logger,
		Collector: cfg.Collector,
		OnUpdate:  s.handleUpdate,
		OnError: func(err error) {
			logger.Warn("chat fetch failed", map[string]any{"error": err.Error()})
		},
	})

	if cfg.NotifyURL != "" {
		listener, err := notifyredis.New(notifyredis.Config{
			URL:     cfg.NotifyURL,
			Channel: cfg.NotifyChannel,
			Logger:  logger,
		}, s.poller, s.ChatID)
		if err != nil {
			s.poller.Close()
			return nil, fmt.Errorf("session: %w", err)
		}
		s.listener = listener
	}

	return s, nil
}

// Start brings up the optional notification listener. Safe to call when no
// notifier is configured.
func (s *Session) Start(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Start(ctx)
}

// ChatID returns the currently tracked chat id, empty when none.
func (s *Session) ChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// Snapshot returns the poller's last fetched record, nil when none.
func (s *Session) Snapshot() *types.ChatRecord {
	return s.poller.Snapshot()
}

// Observe registers a callback invoked after every applied record update.
// Used by the TUI to repaint the status line.
func (s *Session) Observe(fn func(*types.ChatRecord)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

// Send creates a new chat job from the request and starts tracking it.
// The user prompt is rendered immediately; the assistant reply arrives
// through poll updates.
func (s *Session) Send(ctx context.Context, req types.ChatCreateRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	rec, err := s.client.CreateChat(ctx, req)
	if err != nil {
		s.store.Dispatch(conversation.ErrorRaised{Message: err.Error()})
		return err
	}

	s.mu.Lock()
	s.chatID = rec.ID
	// The backend records the user prompt as the first message; rendering
	// it locally means the first poll update must not render it again.
	s.applied = 1
	s.mu.Unlock()

	s.store.Dispatch(conversation.UserSent{Content: req.UserPrompt})
	s.poller.SetTarget(rec.ID)
	return nil
}

// Followup continues the tracked chat with another prompt. The record goes
// back to queued on the backend; an immediate refetch restarts the cadence.
func (s *Session) Followup(ctx context.Context, prompt string) error {
	req := types.FollowupRequest{Prompt: prompt}
	if err := req.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	id := s.chatID
	s.mu.Unlock()
	if id == "" {
		return fmt.Errorf("no chat attached")
	}

	if _, err := s.client.Followup(ctx, id, req); err != nil {
		s.store.Dispatch(conversation.ErrorRaised{Message: err.Error()})
		return err
	}

	s.mu.Lock()
	s.applied++ // backend appended the followup prompt
	s.mu.Unlock()

	s.store.Dispatch(conversation.UserSent{Content: prompt})
	if err := s.poller.Refetch(ctx); err != nil {
		s.logger.Warn("refetch after followup failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// Stream continues the tracked chat in push mode: the reply arrives as an
// NDJSON chunk stream and is appended to the conversation as it decodes.
// The decoder runs until the stream ends or ctx is canceled.
func (s *Session) Stream(ctx context.Context, prompt string) error {
	req := types.FollowupRequest{Prompt: prompt}
	if err := req.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	id := s.chatID
	s.mu.Unlock()
	if id == "" {
		return fmt.Errorf("no chat attached")
	}

	body, err := s.client.StreamChat(ctx, id, req)
	if err != nil {
		s.store.Dispatch(conversation.ErrorRaised{Message: err.Error()})
		return err
	}

	s.mu.Lock()
	s.applied++ // the streamed prompt will appear in the record too
	s.mu.Unlock()
	s.store.Dispatch(conversation.UserSent{Content: prompt})

	msgID := uuid.NewString()
	s.store.Dispatch(conversation.AssistantStarted{MessageID: msgID})

	dec := stream.NewDecoder(body, stream.Handler{
		OnChunk: func(c types.Chunk) {
			s.store.Dispatch(conversation.ChunkAppended{MessageID: msgID, Chunk: c})
		},
		OnComplete: func() {
			s.mu.Lock()
			s.applied++ // the streamed reply is already rendered
			s.mu.Unlock()
			s.store.Dispatch(conversation.StreamingFinished{MessageID: msgID})
			if err := s.poller.Refetch(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("refetch after stream failed", map[string]any{"error": err.Error()})
			}
		},
		OnError: func(err error) {
			s.store.Dispatch(conversation.ErrorRaised{Message: err.Error()})
		},
	}, stream.WithLogger(s.logger), stream.WithCollector(s.collector))

	dec.Run(ctx)
	return nil
}

// Attach resumes an existing chat. The whole recorded history is rendered
// through the first poll update.
func (s *Session) Attach(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("empty chat id")
	}

	s.mu.Lock()
	s.chatID = id
	s.applied = 0
	s.lastErr = ""
	s.mu.Unlock()

	s.poller.SetTarget(id)
	return nil
}

// ClearError clears the visible conversation error.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
	s.store.Dispatch(conversation.ErrorCleared{})
}

// Close tears down the listener and the poller. Idempotent.
func (s *Session) Close() {
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Warn("listener close failed", map[string]any{"error": err.Error()})
		}
	}
	s.poller.Close()
}

// handleUpdate folds a fetched record into the conversation: messages the
// conversation has not seen yet are appended in record order, a terminal
// failure surfaces its error message once. Invoked by the poller outside
// its state lock.
func (s *Session) handleUpdate(rec *types.ChatRecord) {
	s.mu.Lock()
	if rec.ID != s.chatID {
		s.mu.Unlock()
		return
	}
	start := s.applied
	if start > len(rec.Messages) {
		// The stream raced ahead of the record; nothing new to apply and
		// the high-water mark stays where it is.
		start = len(rec.Messages)
	}
	fresh := rec.Messages[start:]
	if len(rec.Messages) > s.applied {
		s.applied = len(rec.Messages)
	}

	raise := ""
	if rec.Status == types.StatusFailed || rec.Status == types.StatusTimeout {
		msg := string(rec.Status)
		if rec.ErrorMessage != nil && *rec.ErrorMessage != "" {
			msg = *rec.ErrorMessage
		}
		if msg != s.lastErr {
			s.lastErr = msg
			raise = msg
		}
	}
	s.mu.Unlock()

	for _, m := range fresh {
		switch m.Type {
		case "user":
			s.store.Dispatch(conversation.UserSent{Content: m.Message})
		case "agent":
			id := uuid.NewString()
			s.store.Dispatch(conversation.AssistantStarted{MessageID: id})
			s.store.Dispatch(conversation.ChunkAppended{
				MessageID: id,
				Chunk:     types.Chunk{Type: types.ChunkTypeText, Content: m.Message},
			})
			s.store.Dispatch(conversation.StreamingFinished{MessageID: id})
		default:
			s.logger.Warn("unknown message type in record", map[string]any{
				"chat_id": rec.ID,
				"type":    m.Type,
			})
		}
	}

	if raise != "" {
		s.store.Dispatch(conversation.ErrorRaised{Message: raise})
	}

	if s.cache != nil {
		if err := s.cache.Put(rec); err != nil {
			s.logger.Warn("cache write failed", map[string]any{
				"chat_id": rec.ID,
				"error":   err.Error(),
			})
		}
	}

	s.obsMu.Lock()
	obs := make([]func(*types.ChatRecord), len(s.observers))
	copy(obs, s.observers)
	s.obsMu.Unlock()
	for _, fn := range obs {
		fn(rec)
	}
}
