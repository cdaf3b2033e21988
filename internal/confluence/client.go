package confluence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/config"
	"github.com/tuannvm/devhub/internal/logging"
	"github.com/tuannvm/devhub/internal/query"
)

const provider = "confluence"

// Client talks to the Confluence Cloud v2 API and, for CQL search, the
// legacy REST API.
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

// NewClient creates a Confluence client from the shared Atlassian settings.
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

// WebURL turns a relative webui link into a browsable URL.
func (c *Client) WebURL(webui string) string {
	if webui == "" {
		return ""
	}
	if strings.HasPrefix(webui, "http://") || strings.HasPrefix(webui, "https://") {
		return webui
	}
	return c.siteURL + "/wiki" + webui
}

// SearchPages finds pages by title.
func (c *Client) SearchPages(ctx context.Context, title string, limit int) (*PageList, error) {
	if limit <= 0 {
		limit = 25
	}
	params := url.Values{}
	params.Set("title", title)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("body-format", "storage")

	var pages PageList
	if err := c.getJSON(ctx, "/wiki/api/v2/pages?"+params.Encode(), "Search pages", &pages); err != nil {
		return nil, err
	}
	if pages.Results == nil {
		pages.Results = []Page{}
	}
	return &pages, nil
}

// SearchCQL runs a CQL query against the legacy search endpoint.
func (c *Client) SearchCQL(ctx context.Context, cql string, limit int) (*SearchResponse, error) {
	if strings.TrimSpace(cql) == "" {
		return nil, errors.New("CQL query is required")
	}
	if limit <= 0 {
		limit = 25
	}
	params := url.Values{}
	params.Set("cql", cql)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("excerpt", "highlight")

	c.log.Debugf("Searching Confluence: %s", cql)
	var resp SearchResponse
	if err := c.getJSON(ctx, "/wiki/rest/api/search?"+params.Encode(), "Confluence search", &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = []SearchHit{}
	}
	return &resp, nil
}

// SearchInSpace finds pages of one space whose title or text matches, most
// recently modified first.
func (c *Client) SearchInSpace(ctx context.Context, spaceKey, text string, limit int) ([]PageSummary, error) {
	if strings.TrimSpace(spaceKey) == "" {
		return nil, errors.New("space key is required")
	}
	if limit <= 0 {
		limit = 10
	}
	term := query.EscapeStrict(text)
	cql := fmt.Sprintf(`space = "%s" AND (title ~ "%s" OR text ~ "%s") ORDER BY lastModified DESC`,
		query.EscapeStrict(spaceKey), term, term)

	resp, err := c.SearchCQL(ctx, cql, limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]PageSummary, 0, len(resp.Results))
	for _, hit := range resp.Results {
		summaries = append(summaries, PageSummary{
			ID:      hit.Content.ID,
			Title:   hit.DisplayTitle(),
			URL:     c.WebURL(hit.WebUI()),
			Excerpt: common.StripHTML(hit.Excerpt),
		})
	}
	return summaries, nil
}

// GetPage fetches one page with its storage body.
func (c *Client) GetPage(ctx context.Context, id string) (*Page, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("page ID is required")
	}
	var page Page
	path := "/wiki/api/v2/pages/" + url.PathEscape(id) + "?body-format=storage"
	if err := c.getJSON(ctx, path, "Get page", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FindPageByTitle returns the page of a space with exactly this title, or
// nil when there is none.
func (c *Client) FindPageByTitle(ctx context.Context, spaceID, title string) (*Page, error) {
	params := url.Values{}
	params.Set("space-id", spaceID)
	params.Set("title", title)
	params.Set("limit", "1")

	var pages PageList
	if err := c.getJSON(ctx, "/wiki/api/v2/pages?"+params.Encode(), "Find page", &pages); err != nil {
		return nil, err
	}
	if len(pages.Results) == 0 {
		return nil, nil
	}
	return &pages.Results[0], nil
}

// CreatePage creates a page in storage representation.
func (c *Client) CreatePage(ctx context.Context, params CreatePageParams) (*Page, error) {
	if strings.TrimSpace(params.SpaceID) == "" {
		return nil, errors.New("space ID is required")
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, errors.New("title is required")
	}

	payload := map[string]interface{}{
		"spaceId": params.SpaceID,
		"status":  "current",
		"title":   params.Title,
		"body": map[string]string{
			"representation": "storage",
			"value":          params.Body,
		},
	}
	if params.ParentID != "" {
		payload["parentId"] = params.ParentID
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/wiki/api/v2/pages", payload)
	if err != nil {
		return nil, err
	}
	var page Page
	if err := common.DoJSON(c.httpClient, req, provider, "Create page", &page); err != nil {
		return nil, err
	}
	c.log.Infof("Created Confluence page %s (%s)", page.ID, page.Title)
	return &page, nil
}

// UpdatePage replaces a page body. The new version is priorVersion+1; a
// stale priorVersion is not detected here.
func (c *Client) UpdatePage(ctx context.Context, id, title, body string, priorVersion int) (*Page, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("page ID is required")
	}

	payload := map[string]interface{}{
		"id":     id,
		"status": "current",
		"title":  title,
		"body": map[string]string{
			"representation": "storage",
			"value":          body,
		},
		"version": map[string]int{"number": priorVersion + 1},
	}
	req, err := c.newRequest(ctx, http.MethodPut, "/wiki/api/v2/pages/"+url.PathEscape(id), payload)
	if err != nil {
		return nil, err
	}
	var page Page
	if err := common.DoJSON(c.httpClient, req, provider, "Update page", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UpsertPage updates the page with the same title in the space, or creates
// it when none exists.
func (c *Client) UpsertPage(ctx context.Context, params CreatePageParams) (*Page, error) {
	existing, err := c.FindPageByTitle(ctx, params.SpaceID, params.Title)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return c.CreatePage(ctx, params)
	}
	return c.UpdatePage(ctx, existing.ID, params.Title, params.Body, existing.Version.Number)
}

func (c *Client) getJSON(ctx context.Context, path, op string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return common.DoJSON(c.httpClient, req, provider, op, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	req, err := common.NewJSONRequest(ctx, method, c.siteURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.authHeader)
	return req, nil
}
