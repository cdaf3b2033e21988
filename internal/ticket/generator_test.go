package ticket

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tuannvm/devhub/internal/models"
)

type fakeLLM struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeLLM) GenerateText(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

type fakeResources struct {
	keywords  string
	resources []models.RelatedResource
}

func (f *fakeResources) SearchRelatedResources(_ context.Context, keywords string) []models.RelatedResource {
	f.keywords = keywords
	return f.resources
}

func fixedClock() time.Time { return testNow }

const twoTicketReply = `{"parentTicket":{"issueType":"Epic","summary":"Authentication overhaul"},
"tickets":[
 {"issueType":"Bug","summary":"Fix login button","estimatedHours":4},
 {"issueType":"Task","summary":"Password reset emails","estimatedHours":6}
],"analysisNotes":"two issues"}`

func TestGenerateBreakdown(t *testing.T) {
	llm := &fakeLLM{reply: twoTicketReply}
	g := NewGenerator(llm, WithClock(fixedClock))

	bd, err := g.GenerateBreakdown(context.Background(), "  Login and reset are broken  ", "")
	if err != nil {
		t.Fatalf("GenerateBreakdown() error = %v", err)
	}
	if bd.OriginalRequest != "Login and reset are broken" {
		t.Errorf("original request = %q", bd.OriginalRequest)
	}
	if bd.TotalEstimatedHours != 10 {
		t.Errorf("total = %v, want 10", bd.TotalEstimatedHours)
	}
	if bd.ParentTicket.DraftID != "draft-1700000000000-0" || bd.Tickets[1].DraftID != "draft-1700000000000-2" {
		t.Errorf("unexpected ids %q %q", bd.ParentTicket.DraftID, bd.Tickets[1].DraftID)
	}
	if !strings.HasSuffix(llm.prompt, "REQUEST:\nLogin and reset are broken") {
		t.Errorf("prompt does not end with the request: %q", llm.prompt[len(llm.prompt)-60:])
	}
	if !strings.Contains(llm.prompt, "Output all text in English.") {
		t.Error("expected the English instruction")
	}
}

func TestGenerateBreakdownJapanesePrompt(t *testing.T) {
	llm := &fakeLLM{reply: "no json"}
	bd, err := NewGenerator(llm).GenerateBreakdown(context.Background(), "ログインを直す", "")
	if err != nil {
		t.Fatal(err)
	}
	if !IsFallback(bd) {
		t.Error("expected fallback")
	}
	if !strings.Contains(llm.prompt, "## 受け入れ条件") {
		t.Error("expected Japanese section headers in the prompt")
	}
}

func TestGenerateBreakdownErrors(t *testing.T) {
	llmErr := errors.New("API_ERROR: quota exceeded")
	g := NewGenerator(&fakeLLM{err: llmErr})

	if _, err := g.GenerateBreakdown(context.Background(), "Fix it", models.LanguageEnglish); !errors.Is(err, llmErr) {
		t.Errorf("error = %v, want wrapped LLM error", err)
	}
	if _, err := g.GenerateBreakdown(context.Background(), "   ", models.LanguageEnglish); err == nil {
		t.Error("expected an error for a blank request")
	}
}

func TestGenerateEnrichedBreakdown(t *testing.T) {
	resources := &fakeResources{resources: sampleResources}
	g := NewGenerator(&fakeLLM{reply: twoTicketReply}, WithResources(resources), WithClock(fixedClock))

	got, err := g.GenerateEnrichedBreakdown(context.Background(), "Login broken", EnrichOptions{Language: LanguageAuto, EnableSearch: true})
	if err != nil {
		t.Fatalf("GenerateEnrichedBreakdown() error = %v", err)
	}
	if got.DetectedLanguage != models.LanguageEnglish {
		t.Errorf("language = %q", got.DetectedLanguage)
	}
	// Children first, then the parent.
	if want := "authentication password overhaul broken button"; resources.keywords != want {
		t.Errorf("keywords = %q, want %q", resources.keywords, want)
	}
	if len(got.RelatedResources) != 2 {
		t.Errorf("resources = %v", got.RelatedResources)
	}
	for _, d := range append([]models.TicketDraft{*got.ParentTicket}, got.Tickets...) {
		if !strings.Contains(d.Description, "## Resources") {
			t.Errorf("draft %s not enriched", d.DraftID)
		}
	}
}

func TestGenerateEnrichedBreakdownBilingual(t *testing.T) {
	llm := &fakeLLM{reply: twoTicketReply}
	g := NewGenerator(llm, WithResources(&fakeResources{resources: sampleResources}))

	got, err := g.GenerateEnrichedBreakdown(context.Background(), "ログイン修正、英語でもお願いします", EnrichOptions{Language: LanguageAuto, EnableSearch: true})
	if err != nil {
		t.Fatal(err)
	}
	if got.DetectedLanguage != models.LanguageBilingual {
		t.Errorf("language = %q, want bilingual", got.DetectedLanguage)
	}
	if !strings.Contains(llm.prompt, "Output BILINGUAL content") {
		t.Error("expected the bilingual prompt")
	}
	if !strings.Contains(got.Tickets[0].Description, "## 参考資料") {
		t.Errorf("expected the Japanese resources header, got %q", got.Tickets[0].Description)
	}
}

func TestGenerateEnrichedBreakdownSearchDisabled(t *testing.T) {
	resources := &fakeResources{resources: sampleResources}
	g := NewGenerator(&fakeLLM{reply: twoTicketReply}, WithResources(resources))

	got, err := g.GenerateEnrichedBreakdown(context.Background(), "ログイン", EnrichOptions{Language: "en"})
	if err != nil {
		t.Fatal(err)
	}
	if got.DetectedLanguage != models.LanguageEnglish {
		t.Errorf("explicit language ignored: %q", got.DetectedLanguage)
	}
	if resources.keywords != "" || len(got.RelatedResources) != 0 {
		t.Error("search ran although disabled")
	}
	if strings.Contains(got.Tickets[0].Description, "## Resources") {
		t.Error("description enriched although search is disabled")
	}
}
