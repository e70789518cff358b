package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/teller/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func record(id string, updated time.Time) *types.ChatRecord {
	return &types.ChatRecord{
		ID:          id,
		Status:      types.StatusCompleted,
		Strategy:    types.StrategyPassive,
		TargetAPY:   10,
		MaxDrawdown: 20,
		Messages: []types.ChatMessage{
			{Type: "user", Message: "hi", Timestamp: updated},
		},
		CreatedAt: updated.Add(-time.Minute),
		UpdatedAt: updated,
	}
}

func TestStore_PutGetRoundtrip(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)

	if err := s.Put(record("chat-001", now)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get("chat-001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "chat-001" || got.Status != types.StatusCompleted {
		t.Errorf("got %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Message != "hi" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, now)
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	rec := record("chat-001", now)
	if err := s.Put(rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rec.Status = types.StatusProcessing
	if err := s.Put(rec); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	got, err := s.Get("chat-001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != types.StatusProcessing {
		t.Errorf("status = %q, want processing", got.Status)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("ghost")
	if !errors.Is(err, ErrNotCached) {
		t.Errorf("err = %v, want ErrNotCached", err)
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		if err := s.Put(record(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}

	recs, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	want := []string{"new", "mid", "old"}
	for i, w := range want {
		if recs[i].ID != w {
			t.Errorf("record %d = %q, want %q", i, recs[i].ID, w)
		}
	}
}

func TestStore_ListSkipsCorruptEntries(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := s.Put(record("chat-001", time.Now())); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.msgpack"), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write corrupt entry: %v", err)
	}

	recs, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "chat-001" {
		t.Errorf("records = %+v, want only chat-001", recs)
	}
}

func TestStore_RejectsUnsafeIDs(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"", "../escape", "a/b", `a\b`} {
		if err := s.Put(record(id, time.Now())); err == nil {
			t.Errorf("Put(%q) accepted unsafe id", id)
		}
		if _, err := s.Get(id); err == nil {
			t.Errorf("Get(%q) accepted unsafe id", id)
		}
	}
}
