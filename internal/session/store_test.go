package session

import (
	"strings"
	"testing"
	"time"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

func TestHistory_Empty(t *testing.T) {
	sess := &models.Session{}
	if got := History(sess); got != "" {
		t.Errorf("got %q, want empty string", got)
	}
}

func TestHistory_FormatsRolesInOrder(t *testing.T) {
	sess := &models.Session{
		MessageWindow: []models.Message{
			{Role: "user", Text: "사고가 났어요"},
			{Role: "bot", Text: "과실비율을 분석해드릴게요"},
		},
	}
	got := History(sess)
	want := "User: 사고가 났어요\nBot: 과실비율을 분석해드릴게요"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	s := New(nil, Config{})
	if s.cfg.HistoryWindowPairs != 8 {
		t.Errorf("got window %d, want default 8", s.cfg.HistoryWindowPairs)
	}
	if s.cfg.KeyPrefix != "advisor:session:" {
		t.Errorf("got prefix %q, want default", s.cfg.KeyPrefix)
	}
}

func TestKey_UsesConfiguredPrefix(t *testing.T) {
	s := New(nil, Config{KeyPrefix: "test:session:"})
	if got := s.key("abc123"); got != "test:session:abc123" {
		t.Errorf("got %q", got)
	}
}

func TestLockFor_ReturnsSameMutexForSameSession(t *testing.T) {
	s := New(nil, Config{})
	a := s.lockFor("session-1")
	b := s.lockFor("session-1")
	if a != b {
		t.Error("expected the same mutex instance for the same session id")
	}
	c := s.lockFor("session-2")
	if a == c {
		t.Error("expected distinct mutexes for distinct session ids")
	}
}

func TestAppend_TrimsRollingWindowInvariant(t *testing.T) {
	windowPairs := 2
	maxEntries := 2 * windowPairs

	var window []models.Message
	for i := 0; i < 5; i++ {
		window = append(window,
			models.Message{Role: "user", Text: "q", Timestamp: time.Now()},
			models.Message{Role: "bot", Text: "a", Timestamp: time.Now()},
		)
		window = trimWindow(window, windowPairs)
	}

	if len(window) != maxEntries {
		t.Errorf("got window length %d, want %d", len(window), maxEntries)
	}
}

func TestActiveSessions_StripsKeyPrefix(t *testing.T) {
	s := New(nil, Config{})
	full := s.key("session-xyz")
	if !strings.HasPrefix(full, "advisor:session:") {
		t.Fatal("test setup invariant broken")
	}
	if got := s.sessionIDFromKey(full); got != "session-xyz" {
		t.Errorf("got %q, want session-xyz", got)
	}
}
