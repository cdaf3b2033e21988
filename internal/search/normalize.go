package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/tuannvm/devhub/internal/chatsearch"
	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/confluence"
	"github.com/tuannvm/devhub/internal/jira"
	"github.com/tuannvm/devhub/internal/models"
	"github.com/tuannvm/devhub/internal/websearch"
)

const (
	snippetLength   = 200
	chatTitleLength = 120
)

// NormalizeConfluence maps CQL search hits. webURL turns relative links into
// browsable URLs.
func NormalizeConfluence(hits []confluence.SearchHit, webURL func(string) string) []models.SearchResult {
	results := make([]models.SearchResult, 0, len(hits))
	for i, hit := range hits {
		results = append(results, models.SearchResult{
			ID:        "cf-" + hit.Content.ID,
			Title:     common.StripHTML(hit.DisplayTitle()),
			Source:    models.SourceConfluence,
			Snippet:   common.Truncate(common.StripHTML(hit.Excerpt), snippetLength),
			URL:       webURL(hit.WebUI()),
			Relevance: clampRelevance(90 - i*5),
			Metadata: map[string]string{
				"pageId":       hit.Content.ID,
				"lastModified": hit.LastModified,
			},
		})
	}
	return dedupe(results)
}

// NormalizeJira maps issue search results. browseURL builds the issue link
// from its key.
func NormalizeJira(issues []jira.Issue, browseURL func(string) string) []models.SearchResult {
	results := make([]models.SearchResult, 0, len(issues))
	for i, issue := range issues {
		results = append(results, models.SearchResult{
			ID:        "jr-" + issue.ID,
			Title:     fmt.Sprintf("%s: %s", issue.Key, issue.Fields.Summary),
			Source:    models.SourceJira,
			Snippet:   common.Truncate(jira.DocumentText(issue.Fields.Description), snippetLength),
			URL:       browseURL(issue.Key),
			Relevance: clampRelevance(85 - i*5),
			Metadata: map[string]string{
				"issueKey":  issue.Key,
				"status":    issue.Fields.StatusName(),
				"updatedAt": issue.Fields.Updated,
			},
		})
	}
	return dedupe(results)
}

// NormalizeWeb maps organic web hits. now seeds the ids.
func NormalizeWeb(hits []websearch.OrganicResult, now time.Time) []models.SearchResult {
	results := make([]models.SearchResult, 0, len(hits))
	for i, hit := range hits {
		position := hit.Position
		if position <= 0 {
			position = i + 1
		}
		results = append(results, models.SearchResult{
			ID:        fmt.Sprintf("web-%d-%d", now.UnixMilli(), i),
			Title:     hit.Title,
			Source:    models.SourceWeb,
			Snippet:   common.Truncate(hit.Snippet, snippetLength),
			URL:       hit.Link,
			Relevance: clampRelevance(100 - position*5),
			Metadata:  map[string]string{"source": "google"},
		})
	}
	return dedupe(results)
}

// NormalizeChat maps chat message hits.
func NormalizeChat(msgs []chatsearch.Message) []models.SearchResult {
	results := make([]models.SearchResult, 0, len(msgs))
	for _, msg := range msgs {
		text := msg.Text()
		title := common.Truncate(common.StripHTML(common.FirstLine(text)), chatTitleLength)
		if title == "" {
			title = "Teams message"
		}
		results = append(results, models.SearchResult{
			ID:        "chat-" + msg.ID,
			Title:     title,
			Source:    models.SourceChat,
			Snippet:   common.Truncate(common.StripHTML(text), snippetLength),
			URL:       msg.WebURL,
			Relevance: 80,
			Metadata: map[string]string{
				"author":    msg.Author,
				"updatedAt": msg.UpdatedAt,
			},
		})
	}
	return dedupe(results)
}

// AIAnswer is the structured answer the AI source asks the model for.
type AIAnswer struct {
	Title       string
	Answer      string
	Suggestions []string
}

// NormalizeAIAnswer maps an AI answer to a single result. An empty answer
// yields no results.
func NormalizeAIAnswer(answer AIAnswer, now time.Time) []models.SearchResult {
	if strings.TrimSpace(answer.Answer) == "" {
		return []models.SearchResult{}
	}
	title := answer.Title
	if title == "" {
		title = "AI Answer"
	}
	result := models.SearchResult{
		ID:        fmt.Sprintf("ai-%d", now.UnixMilli()),
		Title:     title,
		Source:    models.SourceAI,
		Snippet:   answer.Answer,
		Relevance: 100,
	}
	if len(answer.Suggestions) > 0 {
		result.Metadata = map[string]string{"suggestions": strings.Join(answer.Suggestions, "\n")}
	}
	return []models.SearchResult{result}
}

func clampRelevance(r int) int {
	switch {
	case r < 0:
		return 0
	case r > 100:
		return 100
	default:
		return r
	}
}

// dedupe drops results whose id was already seen, keeping the first.
func dedupe(results []models.SearchResult) []models.SearchResult {
	seen := make(map[string]struct{}, len(results))
	out := results[:0]
	for _, r := range results {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
