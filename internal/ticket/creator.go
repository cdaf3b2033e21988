package ticket

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/tuannvm/devhub/internal/confluence"
	"github.com/tuannvm/devhub/internal/jira"
	"github.com/tuannvm/devhub/internal/logging"
	"github.com/tuannvm/devhub/internal/models"
)

// IssueCreator creates issues and comments on them.
type IssueCreator interface {
	CreateIssue(ctx context.Context, params jira.CreateIssueParams) (*jira.CreatedIssue, error)
	AddComment(ctx context.Context, issueKey, text string) error
}

// PagePublisher creates or updates wiki pages.
type PagePublisher interface {
	UpsertPage(ctx context.Context, params confluence.CreatePageParams) (*confluence.Page, error)
	WebURL(webui string) string
}

// CreateOptions controls CreateTickets.
type CreateOptions struct {
	ProjectKey            string
	CreateConfluencePages bool
}

// Creator creates confirmed drafts in Jira and optionally mirrors each one to
// a Confluence page.
type Creator struct {
	issues       IssueCreator
	pages        PagePublisher
	spaceID      string
	parentPageID string
	log          *zap.SugaredLogger
}

// CreatorOption configures a Creator.
type CreatorOption func(*Creator)

// WithPages enables page publishing into spaceID, under parentPageID when set.
func WithPages(p PagePublisher, spaceID, parentPageID string) CreatorOption {
	return func(c *Creator) {
		c.pages = p
		c.spaceID = spaceID
		c.parentPageID = parentPageID
	}
}

// WithCreatorLogger sets the creator logger.
func WithCreatorLogger(l *zap.SugaredLogger) CreatorOption {
	return func(c *Creator) { c.log = l }
}

// NewCreator creates a Creator.
func NewCreator(issues IssueCreator, opts ...CreatorOption) *Creator {
	c := &Creator{issues: issues}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDefault(c.log)
	return c
}

// CreateTickets creates drafts one after another. A failure is recorded on
// that draft's result and the batch continues.
func (c *Creator) CreateTickets(ctx context.Context, drafts []models.TicketDraft, opts CreateOptions) []models.CreatedTicket {
	out := make([]models.CreatedTicket, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, c.createOne(ctx, d, opts))
	}
	return out
}

func (c *Creator) createOne(ctx context.Context, d models.TicketDraft, opts CreateOptions) models.CreatedTicket {
	result := models.CreatedTicket{DraftID: d.DraftID}

	created, err := c.issues.CreateIssue(ctx, jira.CreateIssueParams{
		ProjectKey:  opts.ProjectKey,
		Summary:     d.Summary,
		Description: descriptionWithFooter(d),
		IssueType:   string(jiraIssueType(d.IssueType)),
		Priority:    string(d.Priority),
		Labels:      d.Labels,
	})
	if err != nil {
		c.log.Errorf("Failed to create issue for draft %s: %v", d.DraftID, err)
		result.Error = err.Error()
		return result
	}
	result.IssueKey = created.Key
	result.IssueURL = created.URL

	if !opts.CreateConfluencePages || c.pages == nil || c.spaceID == "" {
		return result
	}
	page, err := c.pages.UpsertPage(ctx, confluence.CreatePageParams{
		SpaceID:  c.spaceID,
		Title:    PageTitle(created.Key, d.Summary),
		Body:     pageBody(d, created),
		ParentID: c.parentPageID,
	})
	if err != nil {
		c.log.Errorf("Failed to publish page for %s: %v", created.Key, err)
		result.Error = fmt.Sprintf("issue created but page failed: %v", err)
		return result
	}
	result.ConfluencePageURL = c.pages.WebURL(page.Links.WebUI)

	if err := c.issues.AddComment(ctx, created.Key, "Confluence Page: "+result.ConfluencePageURL); err != nil {
		c.log.Warnf("Failed to link page on %s: %v", created.Key, err)
	}
	return result
}

// PageTitle is the wiki page title of a created issue.
func PageTitle(key, summary string) string {
	return fmt.Sprintf("[%s] %s", key, summary)
}

// jiraIssueType maps draft issue types to ones creatable at the top level.
func jiraIssueType(t models.IssueType) models.IssueType {
	if t == models.IssueSubTask {
		return models.IssueTask
	}
	return t
}

func descriptionWithFooter(d models.TicketDraft) string {
	return fmt.Sprintf("%s\n\n---\n*Auto-generated by devhub*\n*Confidence: %.0f%%*", d.Description, d.ConfidenceScore)
}

func pageBody(d models.TicketDraft, created *jira.CreatedIssue) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<p>Jira: <a href="%s">%s</a></p>`, html.EscapeString(created.URL), html.EscapeString(created.Key))
	for _, line := range strings.Split(d.Description, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(line))
	}
	return b.String()
}
