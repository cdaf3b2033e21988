package triage

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

const searchLimit = 5

// SuggestedActions are offered with every error search.
var SuggestedActions = []string{
	"View related JIRA tickets",
	"Check Confluence documentation",
	"Create new ticket",
}

// Searcher finds tickets and pages related to a classified error.
type Searcher struct {
	Wiki   search.WikiSearcher
	Issues search.IssueSearcher
	LLM    search.TextGenerator
	Log    *zap.SugaredLogger
}

// SearchForError classifies errLog and searches Jira and Confluence for its
// category. Provider failures are logged and yield no results from that
// provider; the AI summary is only requested when something was found.
func (s *Searcher) SearchForError(ctx context.Context, errLog string) (*models.ErrorSearchResult, error) {
	if strings.TrimSpace(errLog) == "" {
		return nil, errors.New("error log is required")
	}
	log := logging.OrDefault(s.Log)

	classified := Classify(errLog)
	term := query.EscapeStrict(classified.Category + " error")

	result := &models.ErrorSearchResult{
		Classification:   classified,
		RelatedIssues:    []models.SearchResult{},
		Documentation:    []models.SearchResult{},
		SuggestedActions: append([]string(nil), SuggestedActions...),
	}

	var g errgroup.Group
	if s.Issues != nil {
		g.Go(func() error {
			jql := fmt.Sprintf(`text ~ "%s" ORDER BY created DESC`, term)
			resp, err := s.Issues.SearchIssues(ctx, jql, searchLimit)
			if err != nil {
				log.Warnf("Jira search for %s errors failed: %v", classified.Category, err)
				return nil
			}
			result.RelatedIssues = search.NormalizeJira(resp.Issues, s.Issues.BrowseURL)
			return nil
		})
	}
	if s.Wiki != nil {
		g.Go(func() error {
			cql := fmt.Sprintf(`type = "page" AND text ~ "%s" ORDER BY lastModified DESC`, term)
			resp, err := s.Wiki.SearchCQL(ctx, cql, searchLimit)
			if err != nil {
				log.Warnf("Confluence search for %s errors failed: %v", classified.Category, err)
				return nil
			}
			result.Documentation = search.NormalizeConfluence(resp.Results, s.Wiki.WebURL)
			return nil
		})
	}
	_ = g.Wait()

	found := append(append([]models.SearchResult{}, result.RelatedIssues...), result.Documentation...)
	if len(found) == 0 || s.LLM == nil {
		return result, nil
	}
	summary, err := s.LLM.GenerateText(ctx, summaryPrompt(errLog, found))
	if err != nil {
		log.Warnf("AI summary for %s error failed: %v", classified.Category, err)
		return result, nil
	}
	result.AISummary = strings.TrimSpace(summary)
	return result, nil
}

func summaryPrompt(errLog string, found []models.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the error %q and these related documents:\n", strings.Join(ExtractErrorContext(errLog), "\n"))
	for _, r := range found {
		fmt.Fprintf(&b, "[%s] %s: %s\n", r.Source, r.Title, r.Snippet)
	}
	b.WriteString("\nProvide a brief summary of the root cause and suggested solution in 2-3 sentences.")
	return b.String()
}
