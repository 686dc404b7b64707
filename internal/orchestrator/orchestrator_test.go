package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/classifier"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/prompt"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/retriever"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

type fakeRetriever struct {
	result string
	calls  int
}

func (f *fakeRetriever) Search(ctx context.Context, query string, category models.Category) string {
	f.calls++
	return f.result
}

type fakeSessions struct {
	sessions map[string]*models.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]*models.Session)}
}

func (f *fakeSessions) GetOrCreate(ctx context.Context, sessionID string, category models.Category) (*models.Session, error) {
	if s, ok := f.sessions[sessionID]; ok {
		return s, nil
	}
	s := &models.Session{SessionID: sessionID, PrimaryCategory: category, PerCategoryCounts: make(map[models.Category]int)}
	f.sessions[sessionID] = s
	return s, nil
}

func (f *fakeSessions) Append(ctx context.Context, sessionID string, category models.Category, userText, botText string, processingMs int64) error {
	s, _ := f.GetOrCreate(ctx, sessionID, category)
	s.PrimaryCategory = category
	s.InteractionCount++
	s.PerCategoryCounts[category]++
	s.MessageWindow = append(s.MessageWindow,
		models.Message{Role: "user", Text: userText},
		models.Message{Role: "bot", Text: botText},
	)
	return nil
}

func (f *fakeSessions) Stats(ctx context.Context, sessionID string) (models.SessionStats, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return models.SessionStats{}, errors.New("not found")
	}
	return s.Stats(), nil
}

type fakeChatModel struct {
	response string
	err      error
	calls    int
}

func (f *fakeChatModel) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeMessageStore struct {
	appended []models.Message
	failNext bool
}

func (f *fakeMessageStore) Append(ctx context.Context, sessionID string, msg models.Message) error {
	if f.failNext {
		return errors.New("disk full")
	}
	f.appended = append(f.appended, msg)
	return nil
}

func (f *fakeMessageStore) List(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	return f.appended, nil
}

func newTestOrchestrator(retrResult string, chatResponse string, chatErr error) (*Orchestrator, *fakeChatModel, *fakeMessageStore, *fakeSessions) {
	cls := classifier.New(classifier.Config{ConfidenceThreshold: 0.65, MinScore: 4})
	retr := &fakeRetriever{result: retrResult}
	prompts := prompt.New()
	sessions := newFakeSessions()
	messages := &fakeMessageStore{}
	chat := &fakeChatModel{response: chatResponse, err: chatErr}

	orch := New(cls, retr, prompts, sessions, messages, chat, Config{})
	return orch, chat, messages, sessions
}

func TestHandleTurn_EmptyQueryIsGeneralWithoutRetrieval(t *testing.T) {
	orch, chat, _, _ := newTestOrchestrator("some context", "should not be used", nil)
	result := orch.HandleTurn(context.Background(), "sess-empty", "   ")

	if result.Category != models.CategoryGeneral {
		t.Errorf("got category %s, want general", result.Category)
	}
	if chat.calls != 0 {
		t.Errorf("got %d ChatModel calls, want 0 for empty query", chat.calls)
	}
	if retr := orch.retriever.(*fakeRetriever); retr.calls != 0 {
		t.Errorf("got %d retriever calls, want 0 for empty query", retr.calls)
	}
}

func TestHandleTurn_PrecedentNotFoundSkipsChatModel(t *testing.T) {
	sentinel := retriever.SentinelPrecedentNotFound + "9999다99999"
	orch, chat, _, _ := newTestOrchestrator(sentinel, "unused", nil)

	result := orch.HandleTurn(context.Background(), "sess-B", "대법원 9999다99999 판례 알려줘")

	if chat.calls != 0 {
		t.Errorf("got %d ChatModel calls, want 0 when precedent sentinel fires", chat.calls)
	}
	if result.ContextUsed {
		t.Error("expected context_used=false for precedent-not-found sentinel")
	}
	if result.Response != prompt.PrecedentNotFoundResponse {
		t.Errorf("got response %q, want the fixed not-found message", result.Response)
	}
}

func TestHandleTurn_SuccessfulTurnCallsChatModelOnce(t *testing.T) {
	orch, chat, messages, _ := newTestOrchestrator("[1] 참고 문서\n사고 ID: A1", "분석 결과입니다", nil)

	result := orch.HandleTurn(context.Background(), "sess-C", "교차로에서 좌회전 중 직진 차량과 충돌했어요")

	if chat.calls != 1 {
		t.Errorf("got %d ChatModel calls, want exactly 1", chat.calls)
	}
	if !result.ContextUsed {
		t.Error("expected context_used=true when retrieval returned content")
	}
	if result.Response != "분석 결과입니다" {
		t.Errorf("got response %q", result.Response)
	}
	if len(messages.appended) != 2 {
		t.Errorf("got %d persisted messages, want 2 (user+bot)", len(messages.appended))
	}
}

func TestHandleTurn_ChatModelErrorUsesCannedFallback(t *testing.T) {
	orch, chat, _, _ := newTestOrchestrator("some context", "", errors.New("connection refused"))

	result := orch.HandleTurn(context.Background(), "sess-D", "도로교통법 제5조 내용")

	if chat.calls != 1 {
		t.Errorf("got %d ChatModel calls, want 1 (the failed attempt)", chat.calls)
	}
	if !result.Error {
		t.Error("expected Error=true on ChatModel failure")
	}
	if result.Response == "" {
		t.Error("expected a non-empty canned fallback response")
	}
}

func TestHandleTurn_MessageStoreFailureDoesNotFailTurn(t *testing.T) {
	orch, _, messages, _ := newTestOrchestrator("", "정상 응답", nil)
	messages.failNext = true

	result := orch.HandleTurn(context.Background(), "sess-E", "안녕하세요")

	if result.Response != "정상 응답" {
		t.Errorf("got response %q, want the chat model's response despite message store failure", result.Response)
	}
}

func TestHandleTurn_SessionHistoryPersistsAcrossTurns(t *testing.T) {
	orch, _, _, sessions := newTestOrchestrator("", "첫 응답", nil)

	orch.HandleTurn(context.Background(), "sess-F", "첫 질문입니다")
	orch.HandleTurn(context.Background(), "sess-F", "두번째 질문입니다")

	sess := sessions.sessions["sess-F"]
	if sess == nil {
		t.Fatal("expected session to exist after two turns")
	}
	if sess.InteractionCount != 2 {
		t.Errorf("got interaction count %d, want 2", sess.InteractionCount)
	}
	if !strings.Contains(sess.MessageWindow[0].Text, "첫 질문") {
		t.Errorf("expected first message window entry to contain the first query")
	}
}
