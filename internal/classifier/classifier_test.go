package classifier

import (
	"context"
	"strings"
	"testing"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

func testConfig() Config {
	return Config{
		ConfidenceThreshold: 0.65,
		MinScore:            4,
		RemoteTimeout:       0,
		RemoteEndpoint:      "",
	}
}

func TestClassify_Closure(t *testing.T) {
	c := New(testConfig())
	queries := []string{
		"교차로에서 좌회전 중 직진 차량과 충돌했어요",
		"대법원 2019다12345 판례 내용 알려줘",
		"도로교통법 제5조 내용",
		"과실비율이란 무엇인가요?",
		"안녕하세요",
		"",
	}
	for _, q := range queries {
		cat := c.Classify(context.Background(), q, "")
		if !cat.Valid() {
			t.Errorf("Classify(%q) = %q, not a valid category", q, cat)
		}
	}
}

func TestClassify_Accident(t *testing.T) {
	c := New(testConfig())
	got := c.Classify(context.Background(), "교차로에서 좌회전 중 직진 차량과 충돌했어요", "")
	if got != models.CategoryAccident {
		t.Errorf("got %q, want %q", got, models.CategoryAccident)
	}
}

func TestClassify_Precedent(t *testing.T) {
	c := New(testConfig())
	got := c.Classify(context.Background(), "대법원 2019다12345 판례 내용 알려줘", "")
	if got != models.CategoryPrecedent {
		t.Errorf("got %q, want %q", got, models.CategoryPrecedent)
	}
}

func TestClassify_Law(t *testing.T) {
	c := New(testConfig())
	got := c.Classify(context.Background(), "도로교통법 제5조 내용을 알려주세요", "")
	if got != models.CategoryLaw {
		t.Errorf("got %q, want %q", got, models.CategoryLaw)
	}
}

func TestClassify_Term(t *testing.T) {
	c := New(testConfig())
	got := c.Classify(context.Background(), "용어의 정의와 의미를 설명해 주세요", "")
	if got != models.CategoryTerm {
		t.Errorf("got %q, want %q", got, models.CategoryTerm)
	}
}

func TestClassify_EmptyQueryIsGeneral(t *testing.T) {
	c := New(testConfig())
	got := c.Classify(context.Background(), "", "")
	if got != models.CategoryGeneral {
		t.Errorf("got %q, want general", got)
	}
}

func TestClassify_NoSignalFallsBackToGeneral(t *testing.T) {
	c := New(testConfig())
	got := c.Classify(context.Background(), "안녕하세요 반갑습니다", "")
	if got != models.CategoryGeneral {
		t.Errorf("got %q, want general", got)
	}
}

func TestClassify_ContextCarry(t *testing.T) {
	c := New(testConfig())
	// "위 내용과 관련된" carries no strong category signal on its own but
	// does carry the context-carry keyword set.
	got := c.Classify(context.Background(), "위 내용과 관련된 내용도 알려줘", models.CategoryAccident)
	if got != models.CategoryAccident {
		t.Errorf("got %q, want carried category %q", got, models.CategoryAccident)
	}
}

func TestClassify_VeryLongQueryTruncated(t *testing.T) {
	c := New(testConfig())
	// Real signal up front, then filler well past the truncation point; the
	// filler must not itself contain any keyword substring.
	query := "교차로에서 좌회전 중 직진 차량과 충돌했습니다" + strings.Repeat("가", 3000)
	got := c.Classify(context.Background(), query, "")
	if got != models.CategoryAccident {
		t.Errorf("got %q, want accident", got)
	}
}
