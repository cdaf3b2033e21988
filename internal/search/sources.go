package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tuannvm/devhub/internal/chatsearch"
	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/confluence"
	"github.com/tuannvm/devhub/internal/jira"
	"github.com/tuannvm/devhub/internal/logging"
	"github.com/tuannvm/devhub/internal/models"
	"github.com/tuannvm/devhub/internal/query"
	"github.com/tuannvm/devhub/internal/websearch"
)

// Names of the default sources, in tracking order.
const (
	SourceInternal = "internal"
	SourceChat     = "chat"
	SourceWeb      = "web"
	SourceAI       = "ai"
)

const defaultLimit = 10

// Searcher runs one source's search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query string) ([]models.SearchResult, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	return f(ctx, query)
}

// WikiSearcher is the part of the Confluence client the internal source uses.
type WikiSearcher interface {
	SearchCQL(ctx context.Context, cql string, limit int) (*confluence.SearchResponse, error)
	WebURL(webui string) string
}

// IssueSearcher is the part of the Jira client the internal source uses.
type IssueSearcher interface {
	SearchIssues(ctx context.Context, jql string, maxResults int) (*jira.SearchResponse, error)
	BrowseURL(key string) string
}

// WebSearcher runs web searches.
type WebSearcher interface {
	Search(ctx context.Context, q string, num int) (*websearch.Response, error)
}

// ChatSearcher runs chat message searches.
type ChatSearcher interface {
	Search(ctx context.Context, q string) ([]chatsearch.Message, error)
}

// TextGenerator produces LLM completions.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// InternalSource searches the wiki and the issue tracker together. Either
// side may be nil.
type InternalSource struct {
	Wiki       WikiSearcher
	Issues     IssueSearcher
	SpaceKey   string
	ProjectKey string
	Limit      int
	Log        *zap.SugaredLogger
}

// Search queries both backends concurrently. It fails only when every
// configured backend fails.
func (s *InternalSource) Search(ctx context.Context, q string) ([]models.SearchResult, error) {
	log := logging.OrDefault(s.Log)
	limit := s.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var (
		wikiResults, issueResults []models.SearchResult
		wikiErr, issueErr         error
	)
	var g errgroup.Group
	if s.Wiki != nil {
		g.Go(func() error {
			cql := query.BuildWikiQuery(q, query.WikiQueryOptions{SpaceKey: s.SpaceKey, ContentType: query.ContentPage})
			if cql == "" {
				return nil
			}
			resp, err := s.Wiki.SearchCQL(ctx, cql, limit)
			if err != nil {
				wikiErr = err
				return nil
			}
			wikiResults = NormalizeConfluence(resp.Results, s.Wiki.WebURL)
			return nil
		})
	}
	if s.Issues != nil {
		g.Go(func() error {
			jql := query.BuildIssueTrackerQuery(q, query.IssueQueryOptions{ProjectKey: s.ProjectKey})
			if jql == "" {
				return nil
			}
			resp, err := s.Issues.SearchIssues(ctx, jql, limit)
			if err != nil {
				issueErr = err
				return nil
			}
			issueResults = NormalizeJira(resp.Issues, s.Issues.BrowseURL)
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case wikiErr != nil && issueErr != nil:
		return nil, fmt.Errorf("%w; %w", wikiErr, issueErr)
	case wikiErr != nil && s.Issues == nil:
		return nil, wikiErr
	case issueErr != nil && s.Wiki == nil:
		return nil, issueErr
	case wikiErr != nil:
		log.Warnf("Confluence search failed, using Jira results only: %v", wikiErr)
	case issueErr != nil:
		log.Warnf("Jira search failed, using Confluence results only: %v", issueErr)
	}

	results := make([]models.SearchResult, 0, len(wikiResults)+len(issueResults))
	results = append(results, wikiResults...)
	results = append(results, issueResults...)
	return results, nil
}

// WebSource searches the web.
type WebSource struct {
	Client WebSearcher
	Limit  int
	Now    func() time.Time
}

// Search returns normalized web hits.
func (s *WebSource) Search(ctx context.Context, q string) ([]models.SearchResult, error) {
	resp, err := s.Client.Search(ctx, q, s.Limit)
	if err != nil {
		return nil, err
	}
	return NormalizeWeb(resp.Organic, now(s.Now)), nil
}

// ChatSource searches chat messages.
type ChatSource struct {
	Client ChatSearcher
}

// Search returns normalized chat hits.
func (s *ChatSource) Search(ctx context.Context, q string) ([]models.SearchResult, error) {
	msgs, err := s.Client.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return NormalizeChat(msgs), nil
}

// AISource asks the LLM for a direct answer.
type AISource struct {
	LLM TextGenerator
	Now func() time.Time
	Log *zap.SugaredLogger
}

// Search returns at most one AI answer. A reply without a JSON object yields
// no results.
func (s *AISource) Search(ctx context.Context, q string) ([]models.SearchResult, error) {
	text, err := s.LLM.GenerateText(ctx, answerPrompt(q))
	if err != nil {
		return nil, err
	}
	obj, ok := common.DecodeJSONObject(text)
	if !ok {
		logging.OrDefault(s.Log).Debugf("AI answer was not JSON: %s", common.TruncateForLogging(text))
		return []models.SearchResult{}, nil
	}
	return NormalizeAIAnswer(AIAnswer{
		Title:       common.ToString(obj["title"]),
		Answer:      common.ToString(obj["answer"]),
		Suggestions: common.ToStringSlice(obj["suggestions"]),
	}, now(s.Now)), nil
}

func answerPrompt(q string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User question: %q\n\n", q)
	b.WriteString("Based on your knowledge, provide a comprehensive answer.\n\n")
	b.WriteString("Format as JSON:\n")
	b.WriteString("{\n")
	b.WriteString(`  "title": "Answer summary (short title)",` + "\n")
	b.WriteString(`  "answer": "Detailed answer with explanation",` + "\n")
	b.WriteString(`  "suggestions": ["Follow-up question 1", "Follow-up question 2"]` + "\n")
	b.WriteString("}\n\n")
	b.WriteString("Return ONLY the JSON, no other text.")
	return b.String()
}

func now(fn func() time.Time) time.Time {
	if fn == nil {
		return time.Now()
	}
	return fn()
}

// Deps are the clients behind the default sources. Nil clients leave their
// source out.
type Deps struct {
	Wiki       WikiSearcher
	Issues     IssueSearcher
	Web        WebSearcher
	Chat       ChatSearcher
	LLM        TextGenerator
	SpaceKey   string
	ProjectKey string
	Log        *zap.SugaredLogger
}

// DefaultSources builds the internal, chat, web and ai sources in that order.
func DefaultSources(d Deps) []Source {
	var sources []Source
	if d.Wiki != nil || d.Issues != nil {
		sources = append(sources, Source{
			Name:     SourceInternal,
			Searcher: &InternalSource{Wiki: d.Wiki, Issues: d.Issues, SpaceKey: d.SpaceKey, ProjectKey: d.ProjectKey, Log: d.Log},
			Fallback: "Internal search failed",
		})
	}
	if d.Chat != nil {
		sources = append(sources, Source{Name: SourceChat, Searcher: &ChatSource{Client: d.Chat}, Fallback: "Teams search failed"})
	}
	if d.Web != nil {
		sources = append(sources, Source{Name: SourceWeb, Searcher: &WebSource{Client: d.Web}, Fallback: "Web search failed"})
	}
	if d.LLM != nil {
		sources = append(sources, Source{Name: SourceAI, Searcher: &AISource{LLM: d.LLM, Log: d.Log}, Fallback: "AI search failed"})
	}
	return sources
}
