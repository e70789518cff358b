package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

// stubRefetcher counts Refetch calls.
type stubRefetcher struct {
	mu    sync.Mutex
	calls int
}

func (s *stubRefetcher) Refetch(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

func (s *stubRefetcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestListener(t *testing.T, refetcher Refetcher, watched func() string) (*Listener, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	l, err := New(Config{URL: "redis://" + mr.Addr()}, refetcher, watched)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l, mr
}

func TestListener_RefetchesWatchedChat(t *testing.T) {
	refetcher := &stubRefetcher{}
	_, mr := newTestListener(t, refetcher, func() string { return "chat-A" })

	mr.Publish(DefaultChannel, `{"chat_id":"chat-A"}`)

	waitFor(t, "refetch", func() bool { return refetcher.count() == 1 })
}

func TestListener_IgnoresOtherChats(t *testing.T) {
	refetcher := &stubRefetcher{}
	_, mr := newTestListener(t, refetcher, func() string { return "chat-A" })

	mr.Publish(DefaultChannel, `{"chat_id":"chat-B"}`)
	mr.Publish(DefaultChannel, `{"chat_id":""}`)
	mr.Publish(DefaultChannel, `{"chat_id":"chat-A"}`)

	waitFor(t, "refetch for chat-A only", func() bool { return refetcher.count() == 1 })
	time.Sleep(20 * time.Millisecond)
	if got := refetcher.count(); got != 1 {
		t.Errorf("refetch count = %d, want 1", got)
	}
}

func TestListener_MalformedEventIgnored(t *testing.T) {
	refetcher := &stubRefetcher{}
	_, mr := newTestListener(t, refetcher, func() string { return "chat-A" })

	mr.Publish(DefaultChannel, "NOT JSON")
	mr.Publish(DefaultChannel, `{"chat_id":"chat-A"}`)

	waitFor(t, "valid event still processed", func() bool { return refetcher.count() == 1 })
}

func TestListener_WatchedConsultedPerEvent(t *testing.T) {
	refetcher := &stubRefetcher{}
	var mu sync.Mutex
	watched := "chat-A"
	_, mr := newTestListener(t, refetcher, func() string {
		mu.Lock()
		defer mu.Unlock()
		return watched
	})

	mr.Publish(DefaultChannel, `{"chat_id":"chat-B"}`)

	// Switch targets without re-subscribing.
	mu.Lock()
	watched = "chat-B"
	mu.Unlock()

	mr.Publish(DefaultChannel, `{"chat_id":"chat-B"}`)
	waitFor(t, "refetch after target switch", func() bool { return refetcher.count() == 1 })
}

func TestListener_CloseBeforeStart(t *testing.T) {
	mr := miniredis.RunT(t)
	l, err := New(Config{URL: "redis://" + mr.Addr()}, &stubRefetcher{}, func() string { return "" })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close before Start: %v", err)
	}
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Config{}, &stubRefetcher{}, func() string { return "" }); err == nil {
		t.Fatal("expected error for empty URL")
	}
}
