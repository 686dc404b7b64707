package messagestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "messages.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndList_ReturnsChronologicalOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	msgs := []models.Message{
		{Role: "user", Text: "사고가 났어요", Timestamp: base},
		{Role: "bot", Text: "상황을 알려주세요", Timestamp: base.Add(time.Millisecond)},
		{Role: "user", Text: "교차로에서 충돌했어요", Timestamp: base.Add(2 * time.Millisecond)},
	}
	for _, m := range msgs {
		if err := s.Append(ctx, "sess-1", m); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := s.List(ctx, "sess-1", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	for i, m := range got {
		if m.Text != msgs[i].Text {
			t.Errorf("message %d: got text %q, want %q", i, m.Text, msgs[i].Text)
		}
	}
}

func TestList_RespectsLimitAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		err := s.Append(ctx, "sess-2", models.Message{
			Role:      "user",
			Text:      string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := s.List(ctx, "sess-2", 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].Text != "d" || got[1].Text != "e" {
		t.Errorf("got %q, %q; want the two most recent messages in order", got[0].Text, got[1].Text)
	}
}

func TestList_UnknownSessionReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.List(context.Background(), "nonexistent", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d messages, want 0", len(got))
	}
}

func TestAppend_SeparateSessionsDoNotLeak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "sess-a", models.Message{Role: "user", Text: "A"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append(ctx, "sess-b", models.Message{Role: "user", Text: "B"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := s.List(ctx, "sess-a", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 || got[0].Text != "A" {
		t.Errorf("got %v, want a single message with text A", got)
	}
}

func TestHealth_OK(t *testing.T) {
	s := newTestStore(t)
	if err := s.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}
}
