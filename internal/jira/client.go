package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/config"
	"github.com/tuannvm/devhub/internal/logging"
	"github.com/tuannvm/devhub/internal/query"
)

const provider = "jira"

// DefaultSearchFields are requested for every issue search.
var DefaultSearchFields = []string{"summary", "status", "priority", "assignee", "labels", "issuetype", "created", "updated", "description"}

// Client represents a Jira Cloud REST v3 client
type Client struct {
	siteURL    string
	authHeader string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a new Jira client. Blank credentials are reported as a
// *common.ConfigError.
func NewClient(cfg config.AtlassianConfig, opts ...Option) (*Client, error) {
	switch {
	case strings.TrimSpace(cfg.Domain) == "" && strings.TrimSpace(cfg.BaseURL) == "":
		return nil, common.NewConfigError(provider, "Domain is required")
	case strings.TrimSpace(cfg.Email) == "":
		return nil, common.NewConfigError(provider, "Email is required")
	case strings.TrimSpace(cfg.APIToken) == "":
		return nil, common.NewConfigError(provider, "API token is required")
	}

	c := &Client{
		siteURL:    cfg.SiteURL(),
		authHeader: common.BasicAuth(cfg.Email, cfg.APIToken),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDefault(c.log)
	return c, nil
}

// BrowseURL returns the web URL of an issue.
func (c *Client) BrowseURL(key string) string {
	return c.siteURL + "/browse/" + key
}

// SearchIssues runs a JQL search and returns up to maxResults issues.
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults int) (*SearchResponse, error) {
	return c.search(ctx, jql, maxResults, DefaultSearchFields)
}

func (c *Client) search(ctx context.Context, jql string, maxResults int, fields []string) (*SearchResponse, error) {
	if strings.TrimSpace(jql) == "" {
		return nil, errors.New("JQL query is required")
	}
	if maxResults <= 0 {
		maxResults = 50
	}

	payload := map[string]interface{}{
		"jql":        jql,
		"maxResults": maxResults,
		"fields":     fields,
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/rest/api/3/search/jql", payload)
	if err != nil {
		return nil, err
	}

	c.log.Debugf("Searching Jira issues: %s", jql)
	var resp SearchResponse
	if err := common.DoJSON(c.httpClient, req, provider, "Jira search", &resp); err != nil {
		return nil, err
	}
	if resp.Issues == nil {
		resp.Issues = []Issue{}
	}
	return &resp, nil
}

// SearchInProject finds issues of one project whose summary or description
// matches text.
func (c *Client) SearchInProject(ctx context.Context, projectKey, text string, limit int) ([]IssueSummary, error) {
	if strings.TrimSpace(projectKey) == "" {
		return nil, errors.New("project key is required")
	}
	if limit <= 0 {
		limit = 10
	}
	term := query.EscapeStrict(text)
	jql := fmt.Sprintf(`project = "%s" AND (summary ~ "%s" OR description ~ "%s") ORDER BY updated DESC`,
		query.EscapeStrict(projectKey), term, term)

	resp, err := c.SearchIssues(ctx, jql, limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]IssueSummary, 0, len(resp.Issues))
	for _, issue := range resp.Issues {
		summaries = append(summaries, IssueSummary{
			Key:     issue.Key,
			Summary: issue.Fields.Summary,
			URL:     c.BrowseURL(issue.Key),
			Status:  issue.Fields.StatusName(),
		})
	}
	return summaries, nil
}

// CountIssues returns the number of issues matching jql.
func (c *Client) CountIssues(ctx context.Context, jql string) (int, error) {
	resp, err := c.search(ctx, jql, 1, []string{"key"})
	if err != nil {
		return 0, err
	}
	if resp.IsLast {
		return len(resp.Issues), nil
	}

	// The enhanced search endpoint does not report totals, so page through keys.
	total := 0
	token := ""
	for {
		payload := map[string]interface{}{
			"jql":        jql,
			"maxResults": 5000,
			"fields":     []string{"key"},
		}
		if token != "" {
			payload["nextPageToken"] = token
		}
		req, err := c.newRequest(ctx, http.MethodPost, "/rest/api/3/search/jql", payload)
		if err != nil {
			return 0, err
		}
		var page SearchResponse
		if err := common.DoJSON(c.httpClient, req, provider, "Jira count", &page); err != nil {
			return 0, err
		}
		total += len(page.Issues)
		if page.IsLast || page.NextPageToken == "" {
			return total, nil
		}
		token = page.NextPageToken
	}
}

// CreateIssue creates an issue and returns its identifiers.
func (c *Client) CreateIssue(ctx context.Context, params CreateIssueParams) (*CreatedIssue, error) {
	if strings.TrimSpace(params.ProjectKey) == "" {
		return nil, errors.New("project key is required")
	}
	if strings.TrimSpace(params.Summary) == "" {
		return nil, errors.New("summary is required")
	}
	issueType := params.IssueType
	if issueType == "" {
		issueType = "Task"
	}

	fields := map[string]interface{}{
		"project":   map[string]string{"key": params.ProjectKey},
		"summary":   params.Summary,
		"issuetype": map[string]string{"name": issueType},
	}
	if params.Description != "" {
		fields["description"] = TextDocument(params.Description)
	}
	if params.Priority != "" {
		fields["priority"] = map[string]string{"name": params.Priority}
	}
	if len(params.Labels) > 0 {
		fields["labels"] = params.Labels
	}
	if params.ParentKey != "" {
		fields["parent"] = map[string]string{"key": params.ParentKey}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/rest/api/3/issue", map[string]interface{}{"fields": fields})
	if err != nil {
		return nil, err
	}

	var created CreatedIssue
	if err := common.DoJSON(c.httpClient, req, provider, "Create issue", &created); err != nil {
		return nil, err
	}
	if created.Key == "" {
		return nil, errors.New("create issue response missing key")
	}
	created.URL = c.BrowseURL(created.Key)
	c.log.Infof("Created Jira issue %s", created.Key)
	return &created, nil
}

// AddComment posts a comment to an issue.
func (c *Client) AddComment(ctx context.Context, issueKey, text string) error {
	if strings.TrimSpace(issueKey) == "" {
		return errors.New("issue key is required")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("comment text is required")
	}

	path := "/rest/api/3/issue/" + url.PathEscape(issueKey) + "/comment"
	req, err := c.newRequest(ctx, http.MethodPost, path, map[string]interface{}{"body": TextDocument(text)})
	if err != nil {
		return err
	}
	if _, err := common.Do(c.httpClient, req, provider, "Add comment"); err != nil {
		return err
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	req, err := common.NewJSONRequest(ctx, method, c.siteURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.authHeader)
	return req, nil
}

// TextDocument wraps plain text in an Atlassian document with one paragraph
// per line.
func TextDocument(text string) map[string]interface{} {
	var content []interface{}
	for _, line := range strings.Split(text, "\n") {
		paragraph := map[string]interface{}{"type": "paragraph"}
		if line != "" {
			paragraph["content"] = []interface{}{
				map[string]interface{}{"type": "text", "text": line},
			}
		}
		content = append(content, paragraph)
	}
	return map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": content,
	}
}

// DocumentText flattens an Atlassian document (or a plain string, as the
// v2 API returns) to text. Paragraph-level nodes are separated by spaces.
func DocumentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var node adfNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return ""
	}
	var parts []string
	node.collect(&parts)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

func (n adfNode) collect(parts *[]string) {
	if n.Type == "text" {
		*parts = append(*parts, n.Text)
		return
	}
	for _, child := range n.Content {
		child.collect(parts)
	}
}
