package ticket

import (
	"fmt"
	"strings"

	"github.com/tuannvm/devhub/internal/models"
)

type sectionHeaders struct {
	Overview           string
	AcceptanceCriteria string
	TechnicalNotes     string
	OutOfScope         string
	Dependencies       string
	Resources          string
	TestScenarios      string
}

var headers = map[models.Language]sectionHeaders{
	models.LanguageEnglish: {
		Overview:           "## Overview",
		AcceptanceCriteria: "## Acceptance Criteria",
		TechnicalNotes:     "## Technical Notes",
		OutOfScope:         "## Out of Scope",
		Dependencies:       "## Dependencies",
		Resources:          "## Resources",
		TestScenarios:      "## Test Scenarios",
	},
	models.LanguageJapanese: {
		Overview:           "## 概要",
		AcceptanceCriteria: "## 受け入れ条件",
		TechnicalNotes:     "## 技術的備考",
		OutOfScope:         "## 対象外",
		Dependencies:       "## 依存関係",
		Resources:          "## 参考資料",
		TestScenarios:      "## テストシナリオ",
	},
}

// headersFor returns the section headers of lang. Bilingual output uses the
// English set for appended sections.
func headersFor(lang models.Language) sectionHeaders {
	if h, ok := headers[lang]; ok {
		return h
	}
	return headers[models.LanguageEnglish]
}

const breakdownRules = `RULES:
1. Each ticket should represent ONE clear deliverable (2-8 hours of work)
2. Classify each ticket: Bug (defect), Task (technical work), Story (user value), Epic (grouping)
3. Set appropriate priority based on impact and urgency
4. Extract relevant labels (max 3 per ticket)
5. If the request is complex, create a parent Epic/Story with sub-tickets
6. For simple requests, just return individual tickets without parent
`

const outputFormat = `OUTPUT FORMAT (strict JSON):
{
  "parentTicket": null | {
    "issueType": "Epic" | "Story",
    "summary": "%s",
    "description": "%s",
    "priority": "High" | "Medium" | "Low" | "Highest" | "Lowest",
    "labels": ["..."],
    "estimatedHours": 0,
    "confidenceScore": 85
  },
  "tickets": [
    {
      "issueType": "Bug" | "Task" | "Story" | "Sub-task",
      "summary": "%s",
      "description": "%s",
      "priority": "High" | "Medium" | "Low" | "Highest" | "Lowest",
      "labels": ["frontend", "auth"],
      "component": "optional-module-name",
      "estimatedHours": 4,
      "confidenceScore": 90
    }
  ],
  "analysisNotes": "%s"
}
`

// breakdownPrompt returns the prompt prefix for a single-language breakdown.
// The request text is appended by the caller.
func breakdownPrompt(lang models.Language) string {
	h := headersFor(lang)
	instruction := "Output all text in English."
	if lang == models.LanguageJapanese {
		instruction = "Output all text in Japanese (日本語で出力してください)."
	}

	var b strings.Builder
	b.WriteString("You are a JIRA ticket breakdown expert. Analyze the request and break it down into atomic, actionable tickets.\n\n")
	b.WriteString(instruction + "\n\n")
	b.WriteString(breakdownRules + "\n")
	b.WriteString("DESCRIPTION FORMAT (use these exact section headers):\n")
	writeSections(&b, h, []string{
		"Brief description of what this ticket accomplishes.",
		"- [ ] Criterion 1\n- [ ] Criterion 2",
		"- Implementation considerations\n- Related code areas or modules\n- Technical approach suggestions",
		"- What is NOT included in this ticket\n- Future considerations deferred",
		"- Prerequisite tickets or tasks\n- External dependencies",
		"- Test case 1\n- Test case 2",
	})
	fmt.Fprintf(&b, outputFormat, "...", "...", "Brief title (max 80 chars)", "Use the section format above",
		"Brief explanation of the breakdown logic")
	b.WriteString("\nREQUEST:\n")
	return b.String()
}

// bilingualPrompt returns the prompt prefix asking for Japanese and English
// descriptions side by side.
func bilingualPrompt() string {
	var b strings.Builder
	b.WriteString("You are a JIRA ticket breakdown expert. Analyze the request and break it down into atomic, actionable tickets.\n\n")
	b.WriteString("IMPORTANT: Output BILINGUAL content (Japanese + English) for each ticket.\n\n")
	b.WriteString(breakdownRules + "\n")
	b.WriteString("DESCRIPTION FORMAT (BILINGUAL - use these exact section headers):\n---\n# 🇯🇵 日本語 / Japanese\n")
	writeSections(&b, headersFor(models.LanguageJapanese), []string{
		"Brief description in Japanese.",
		"- [ ] 条件1\n- [ ] 条件2",
		"- 技術的な考慮事項",
		"- 対象外の項目",
		"- 依存関係",
		"- テストケース1",
	})
	b.WriteString("---\n# 🇺🇸 English\n")
	writeSections(&b, headersFor(models.LanguageEnglish), []string{
		"Brief description in English.",
		"- [ ] Criterion 1\n- [ ] Criterion 2",
		"- Implementation considerations",
		"- What is NOT included",
		"- Dependencies",
		"- Test case 1",
	})
	fmt.Fprintf(&b, outputFormat, "Japanese summary / English summary", "BILINGUAL description using format above",
		"日本語タイトル / English Title (max 80 chars)", "BILINGUAL description using format above",
		"Brief explanation of the breakdown logic (in English)")
	b.WriteString("\nREQUEST:\n")
	return b.String()
}

func writeSections(b *strings.Builder, h sectionHeaders, bodies []string) {
	titles := []string{h.Overview, h.AcceptanceCriteria, h.TechnicalNotes, h.OutOfScope, h.Dependencies, h.TestScenarios}
	for i, title := range titles {
		fmt.Fprintf(b, "%s\n%s\n\n", title, bodies[i])
	}
}
