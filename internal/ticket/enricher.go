package ticket

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/confluence"
	"github.com/tuannvm/devhub/internal/jira"
	"github.com/tuannvm/devhub/internal/logging"
	"github.com/tuannvm/devhub/internal/models"
)

const (
	defaultSearchLimit = 5
	maxSnippetLength   = 200
)

// SpaceSearcher searches one wiki space.
type SpaceSearcher interface {
	SearchInSpace(ctx context.Context, spaceKey, text string, limit int) ([]confluence.PageSummary, error)
}

// ProjectSearcher searches one issue tracker project.
type ProjectSearcher interface {
	SearchInProject(ctx context.Context, projectKey, text string, limit int) ([]jira.IssueSummary, error)
}

// ResourceFinder looks up wiki pages and issues related to a breakdown. A
// nil client or blank key disables that side.
type ResourceFinder struct {
	Wiki       SpaceSearcher
	Issues     ProjectSearcher
	SpaceKey   string
	ProjectKey string
	Limit      int
	Log        *zap.SugaredLogger
}

// SearchRelatedResources queries the wiki and the issue tracker concurrently.
// A failing side is logged and contributes nothing. Wiki pages come first.
func (f *ResourceFinder) SearchRelatedResources(ctx context.Context, keywords string) []models.RelatedResource {
	if strings.TrimSpace(keywords) == "" {
		return []models.RelatedResource{}
	}
	log := logging.OrDefault(f.Log)
	limit := f.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var pages, issues []models.RelatedResource
	var g errgroup.Group
	if f.Wiki != nil && f.SpaceKey != "" {
		g.Go(func() error {
			results, err := f.Wiki.SearchInSpace(ctx, f.SpaceKey, keywords, limit)
			if err != nil {
				log.Warnf("Confluence resource search failed: %v", err)
				return nil
			}
			for _, p := range results {
				pages = append(pages, models.RelatedResource{
					Source:  models.SourceConfluence,
					Title:   p.Title,
					URL:     p.URL,
					Snippet: common.Truncate(p.Excerpt, maxSnippetLength),
				})
			}
			return nil
		})
	}
	if f.Issues != nil && f.ProjectKey != "" {
		g.Go(func() error {
			results, err := f.Issues.SearchInProject(ctx, f.ProjectKey, keywords, limit)
			if err != nil {
				log.Warnf("Jira resource search failed: %v", err)
				return nil
			}
			for _, issue := range results {
				issues = append(issues, models.RelatedResource{
					Source:  models.SourceJira,
					Title:   fmt.Sprintf("[%s] %s", issue.Key, issue.Summary),
					URL:     issue.URL,
					Snippet: "Status: " + issue.Status,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	resources := make([]models.RelatedResource, 0, len(pages)+len(issues))
	resources = append(resources, pages...)
	return append(resources, issues...)
}

// FormatResourcesSection renders resources as a markdown section headed in
// lang. No resources yield "".
func FormatResourcesSection(resources []models.RelatedResource, lang models.Language) string {
	if len(resources) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(headersFor(lang).Resources)
	for _, r := range resources {
		label := "🎫 Jira"
		if r.Source == models.SourceConfluence {
			label = "📄 Confluence"
		}
		fmt.Fprintf(&b, "\n- %s: [%s](%s)", label, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "\n  > %s", r.Snippet)
		}
	}
	return b.String()
}

// Enrich appends the resources section to the parent and every child
// description. Descriptions that already carry the section are left alone, so
// enriching twice is the same as enriching once. bd itself is not modified.
func Enrich(bd models.TicketBreakdown, resources []models.RelatedResource, lang models.Language) models.TicketBreakdown {
	if len(resources) == 0 {
		return bd
	}
	section := FormatResourcesSection(resources, lang)
	header := headersFor(lang).Resources
	enrich := func(d models.TicketDraft) models.TicketDraft {
		if !strings.Contains(d.Description, header) {
			d.Description += "\n\n" + section
		}
		return d
	}

	out := bd
	if bd.ParentTicket != nil {
		parent := enrich(*bd.ParentTicket)
		out.ParentTicket = &parent
	}
	out.Tickets = make([]models.TicketDraft, len(bd.Tickets))
	for i, t := range bd.Tickets {
		out.Tickets[i] = enrich(t)
	}
	return out
}
