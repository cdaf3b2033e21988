package ticket

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/models"
)

var testNow = time.UnixMilli(1700000000000)

func TestBuildBreakdownFallback(t *testing.T) {
	got := BuildBreakdown("Sorry, I cannot help with that.", "Fix the login bug", testNow)

	want := models.TicketBreakdown{
		OriginalRequest: "Fix the login bug",
		Tickets: []models.TicketDraft{{
			DraftID:         "draft-1700000000000-1",
			IssueType:       models.IssueTask,
			Summary:         "Fix the login bug",
			Description:     "Fix the login bug",
			Priority:        models.PriorityMedium,
			Labels:          []string{},
			EstimatedHours:  common.Float64Ptr(4),
			ConfidenceScore: 50,
		}},
		TotalEstimatedHours: 4,
		AnalysisNotes:       "Fallback: Could not parse response",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fallback breakdown mismatch (-want +got):\n%s", diff)
	}
	if !IsFallback(got) {
		t.Error("expected IsFallback to report true")
	}
}

func TestBuildBreakdownTruncatesLabels(t *testing.T) {
	reply := `{"parentTicket": null, "tickets": [{"issueType":"Bug","summary":"Fix X","description":"...","priority":"High","labels":["a","b","c","d"],"estimatedHours":4,"confidenceScore":90}], "analysisNotes":"n"}`
	got := BuildBreakdown(reply, "Fix X please", testNow)

	want := models.TicketBreakdown{
		OriginalRequest: "Fix X please",
		Tickets: []models.TicketDraft{{
			DraftID:         "draft-1700000000000-1",
			IssueType:       models.IssueBug,
			Summary:         "Fix X",
			Description:     "...",
			Priority:        models.PriorityHigh,
			Labels:          []string{"a", "b", "c"},
			EstimatedHours:  common.Float64Ptr(4),
			ConfidenceScore: 90,
		}},
		TotalEstimatedHours: 4,
		AnalysisNotes:       "n",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("breakdown mismatch (-want +got):\n%s", diff)
	}
}

func TestParseBreakdownIgnoresSurroundingProse(t *testing.T) {
	reply := "Here is the breakdown you asked for:\n```json\n" +
		`{"tickets":[{"summary":"Add index","issueType":"Task"}],"analysisNotes":"ok"}` +
		"\n```\nLet me know if you need changes."
	payload, ok := ParseBreakdown(reply)
	if !ok {
		t.Fatal("expected the embedded object to parse")
	}
	if len(payload.Tickets) != 1 || payload.Tickets[0]["summary"] != "Add index" {
		t.Errorf("unexpected tickets: %v", payload.Tickets)
	}
}

func TestParseBreakdownRejects(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no braces", "just text"},
		{"malformed", `{"tickets": [`},
		{"unbalanced json", `{"tickets": []} trailing }`},
		{"array root", `[{"summary":"x"}]`},
		{"nothing usable", `{"analysisNotes":"n"}`},
		{"tickets not an array", `{"tickets":"one ticket"}`},
		{"null tickets", `{"parentTicket":null,"tickets":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := ParseBreakdown(tt.reply); ok {
				t.Errorf("ParseBreakdown(%q) reported ok", tt.reply)
			}
		})
	}
}

func TestValidateBreakdownDefaults(t *testing.T) {
	reply := `{
		"parentTicket": {"issueType":"Epic","summary":"Auth overhaul","priority":"Urgent","estimatedHours":100},
		"tickets": [
			{"issueType":"Feature","priority":"SuperHigh","summary":42,"labels":"auth","estimatedHours":"6","confidenceScore":"high","component":"api"},
			{"issueType":"Sub-task","summary":"Write tests","labels":[1,true,null],"confidenceScore":150,"component":""},
			"not a ticket"
		],
		"totalEstimatedHours": 999
	}`
	got := BuildBreakdown(reply, "Overhaul auth", testNow)

	if got.ParentTicket == nil {
		t.Fatal("expected a parent ticket")
	}
	if got.ParentTicket.DraftID != "draft-1700000000000-0" {
		t.Errorf("parent id = %q", got.ParentTicket.DraftID)
	}
	if got.ParentTicket.Priority != models.PriorityMedium {
		t.Errorf("parent priority = %q, want Medium", got.ParentTicket.Priority)
	}
	if len(got.Tickets) != 2 {
		t.Fatalf("got %d tickets, want 2", len(got.Tickets))
	}

	first := got.Tickets[0]
	if first.IssueType != models.IssueTask || first.Priority != models.PriorityMedium {
		t.Errorf("invalid enums not defaulted: %q/%q", first.IssueType, first.Priority)
	}
	if first.Summary != "42" {
		t.Errorf("summary = %q, want coerced number", first.Summary)
	}
	if len(first.Labels) != 0 {
		t.Errorf("non-array labels = %v, want empty", first.Labels)
	}
	if first.Hours() != 4 || first.ConfidenceScore != 70 {
		t.Errorf("non-numeric defaults = %v/%v, want 4/70", first.Hours(), first.ConfidenceScore)
	}
	if first.Component == nil || *first.Component != "api" {
		t.Errorf("component = %v", first.Component)
	}

	second := got.Tickets[1]
	if second.DraftID != "draft-1700000000000-2" {
		t.Errorf("second id = %q", second.DraftID)
	}
	if second.IssueType != models.IssueSubTask {
		t.Errorf("issue type = %q, want Sub-task", second.IssueType)
	}
	if diff := cmp.Diff([]string{"1", "true", ""}, second.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if second.ConfidenceScore != 100 {
		t.Errorf("confidence = %v, want clamped to 100", second.ConfidenceScore)
	}
	if second.Component != nil {
		t.Errorf("empty component kept: %q", *second.Component)
	}

	// The parent estimate and the reported total are both ignored.
	if got.TotalEstimatedHours != 8 {
		t.Errorf("total = %v, want 8", got.TotalEstimatedHours)
	}
	if got.AnalysisNotes != "" {
		t.Errorf("analysis notes = %q, want empty", got.AnalysisNotes)
	}
}

func TestValidateBreakdownTruncatesSummary(t *testing.T) {
	long := strings.Repeat("界", 150)
	got := BuildBreakdown(`{"tickets":[{"summary":"`+long+`"}]}`, "req", testNow)
	if n := utf8.RuneCountInString(got.Tickets[0].Summary); n != 100 {
		t.Errorf("summary length = %d, want 100", n)
	}
}

func TestValidateBreakdownParentOnly(t *testing.T) {
	got := BuildBreakdown(`{"parentTicket":{"summary":"Epic"},"tickets":{}}`, "req", testNow)
	if got.ParentTicket == nil || got.ParentTicket.Summary != "Epic" {
		t.Fatalf("parent = %+v", got.ParentTicket)
	}
	if len(got.Tickets) != 0 || got.TotalEstimatedHours != 0 {
		t.Errorf("tickets = %v total = %v, want none", got.Tickets, got.TotalEstimatedHours)
	}
}

func TestBuildBreakdownEmptyTickets(t *testing.T) {
	got := BuildBreakdown(`{"parentTicket":null,"tickets":[],"analysisNotes":"Nothing to do"}`, "req", testNow)

	want := models.TicketBreakdown{
		OriginalRequest: "req",
		Tickets:         []models.TicketDraft{},
		AnalysisNotes:   "Nothing to do",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("empty breakdown mismatch (-want +got):\n%s", diff)
	}
	if IsFallback(got) {
		t.Error("an explicit empty tickets array must not fall back")
	}
}

func TestFallbackSummaryUses80Runes(t *testing.T) {
	request := strings.Repeat("a", 120)
	got := FallbackBreakdown(request, testNow)
	if len(got.Tickets[0].Summary) != 80 {
		t.Errorf("summary length = %d, want 80", len(got.Tickets[0].Summary))
	}
	if got.Tickets[0].Description != request {
		t.Error("description should carry the full request")
	}
}
