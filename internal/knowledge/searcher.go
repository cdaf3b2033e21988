// Package knowledge answers questions from internal Jira and Confluence
// content.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tuannvm/devhub/internal/logging"
	"github.com/tuannvm/devhub/internal/models"
	"github.com/tuannvm/devhub/internal/query"
	"github.com/tuannvm/devhub/internal/search"
)

const (
	defaultLimit = 3

	// NoAnswer is returned when no source matched the question.
	NoAnswer = "No relevant information found."
)

// Searcher grounds LLM answers on the best Jira and Confluence matches.
type Searcher struct {
	Wiki   search.WikiSearcher
	Issues search.IssueSearcher
	LLM    search.TextGenerator
	// Limit caps the results taken from each provider.
	Limit int
	Log   *zap.SugaredLogger
}

// Ask searches both providers concurrently and answers question from what
// they return. Provider failures are logged and treated as no results.
func (s *Searcher) Ask(ctx context.Context, question string) (*models.KnowledgeAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is required")
	}
	log := logging.OrDefault(s.Log)
	limit := s.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	term := query.EscapeStrict(question)

	var pages, issues []models.SearchResult
	var g errgroup.Group
	if s.Wiki != nil {
		g.Go(func() error {
			cql := fmt.Sprintf(`type = "page" AND (title ~ "%s" OR text ~ "%s")`, term, term)
			resp, err := s.Wiki.SearchCQL(ctx, cql, limit)
			if err != nil {
				log.Warnf("Knowledge search in Confluence failed: %v", err)
				return nil
			}
			pages = search.NormalizeConfluence(resp.Results, s.Wiki.WebURL)
			return nil
		})
	}
	if s.Issues != nil {
		g.Go(func() error {
			jql := fmt.Sprintf(`(summary ~ "%s" OR description ~ "%s") ORDER BY updated DESC`, term, term)
			resp, err := s.Issues.SearchIssues(ctx, jql, limit)
			if err != nil {
				log.Warnf("Knowledge search in Jira failed: %v", err)
				return nil
			}
			issues = search.NormalizeJira(resp.Issues, s.Issues.BrowseURL)
			return nil
		})
	}
	_ = g.Wait()

	sources := append(append([]models.SearchResult{}, pages...), issues...)
	if len(sources) == 0 || s.LLM == nil {
		return &models.KnowledgeAnswer{Answer: NoAnswer, Sources: sources}, nil
	}

	answer, err := s.LLM.GenerateText(ctx, answerPrompt(question, sources))
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	return &models.KnowledgeAnswer{Answer: strings.TrimSpace(answer), Sources: sources}, nil
}

func answerPrompt(question string, sources []models.SearchResult) string {
	var b strings.Builder
	b.WriteString("Answer this question based on the following sources. Cite sources when relevant.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nSources:\n", question)
	for i, src := range sources {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s] %s: %s", src.Source, src.Title, src.Snippet)
	}
	b.WriteString("\n\nProvide a helpful, concise answer:")
	return b.String()
}
