package prompt

import (
	"strings"
	"testing"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

func TestTemplateFor_AllCategories(t *testing.T) {
	lib := New()
	for _, cat := range models.Categories {
		tpl := lib.TemplateFor(cat)
		if tpl.System == "" {
			t.Errorf("empty system prompt for %s", cat)
		}
	}
}

func TestTemplateFor_UnknownFallsBackToGeneral(t *testing.T) {
	lib := New()
	tpl := lib.TemplateFor(models.Category("nonsense"))
	if tpl.System != lib.TemplateFor(models.CategoryGeneral).System {
		t.Error("expected fallback to general template")
	}
}

func TestAssemble_EmptyContextRendersVerbatim(t *testing.T) {
	lib := New()
	tpl := lib.TemplateFor(models.CategoryGeneral)
	_, user := lib.Assemble(tpl, "", "안녕하세요", "")
	if user != "안녕하세요" {
		t.Errorf("got %q, want verbatim query", user)
	}
}

func TestAssemble_ContextInjected(t *testing.T) {
	lib := New()
	tpl := lib.TemplateFor(models.CategoryLaw)
	_, user := lib.Assemble(tpl, "", "제5조 내용", "도로교통법 제5조는 ...")
	if !strings.Contains(user, "[참고자료:") {
		t.Errorf("expected context block in user prompt, got %q", user)
	}
	if !strings.HasPrefix(user, "제5조 내용") {
		t.Errorf("expected query to lead the prompt, got %q", user)
	}
}

func TestAssemble_ContextTruncated(t *testing.T) {
	lib := New()
	tpl := lib.TemplateFor(models.CategoryLaw)
	long := strings.Repeat("가", 500)
	_, user := lib.Assemble(tpl, "", "질문", long)
	if strings.Count(user, "가") != contextCharLimit {
		t.Errorf("expected context truncated to %d runes, got %d", contextCharLimit, strings.Count(user, "가"))
	}
}

func TestAssemble_HistoryPrepended(t *testing.T) {
	lib := New()
	tpl := lib.TemplateFor(models.CategoryGeneral)
	_, user := lib.Assemble(tpl, "User: 이전 질문\nBot: 이전 답변", "새 질문", "")
	if !strings.HasPrefix(user, "User: 이전 질문") {
		t.Errorf("expected history to lead the prompt, got %q", user)
	}
	if !strings.HasSuffix(user, "새 질문") {
		t.Errorf("expected query at the end, got %q", user)
	}
}

func TestFallback_AllCategoriesNonEmpty(t *testing.T) {
	lib := New()
	for _, cat := range models.Categories {
		if lib.Fallback(cat) == "" {
			t.Errorf("empty fallback for %s", cat)
		}
	}
}
