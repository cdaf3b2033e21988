package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/config"
	"github.com/tuannvm/devhub/internal/logging"
)

const (
	provider       = "github"
	defaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"
)

// ReviewEvent is the verdict submitted with a review.
type ReviewEvent string

const (
	EventApprove        ReviewEvent = "APPROVE"
	EventRequestChanges ReviewEvent = "REQUEST_CHANGES"
	EventComment        ReviewEvent = "COMMENT"
)

// Client is a GitHub REST client authenticated with a bearer token.
type Client struct {
	baseURL    string
	token      string
	owner      string
	repo       string
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

// NewClient creates a GitHub client. Owner and repo from cfg are used when a
// call passes blank values.
func NewClient(cfg config.GitHubConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, common.NewConfigError(provider, "GitHub token is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	c := &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		owner:      cfg.Owner,
		repo:       cfg.Repo,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDefault(c.log)
	return c, nil
}

func (c *Client) repoPath(owner, repo string) (string, error) {
	if owner == "" {
		owner = c.owner
	}
	if repo == "" {
		repo = c.repo
	}
	if owner == "" || repo == "" {
		return "", errors.New("repository owner and name are required")
	}
	return fmt.Sprintf("/repos/%s/%s", owner, repo), nil
}

// GetPullRequest fetches pull request metadata.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	path, err := c.repoPath(owner, repo)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("%s/pulls/%d", path, number), nil)
	if err != nil {
		return nil, err
	}
	var pr PullRequest
	if err := common.DoJSON(c.httpClient, req, provider, "Get pull request", &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// GetPullRequestFiles lists the changed files of a pull request.
func (c *Client) GetPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]PullRequestFile, error) {
	path, err := c.repoPath(owner, repo)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("%s/pulls/%d/files?per_page=100", path, number), nil)
	if err != nil {
		return nil, err
	}
	files := []PullRequestFile{}
	if err := common.DoJSON(c.httpClient, req, provider, "Get pull request files", &files); err != nil {
		return nil, err
	}
	return files, nil
}

// GetPullRequestDiff returns the unified diff of a pull request.
func (c *Client) GetPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	path, err := c.repoPath(owner, repo)
	if err != nil {
		return "", err
	}
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("%s/pulls/%d", path, number), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github.v3.diff")
	body, err := common.Do(c.httpClient, req, provider, "Get pull request diff")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// CreateReview submits a review on a pull request.
func (c *Client) CreateReview(ctx context.Context, owner, repo string, number int, review ReviewRequest) (*Review, error) {
	path, err := c.repoPath(owner, repo)
	if err != nil {
		return nil, err
	}
	switch review.Event {
	case EventApprove, EventRequestChanges, EventComment:
	default:
		return nil, fmt.Errorf("invalid review event %q", review.Event)
	}
	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("%s/pulls/%d/reviews", path, number), review)
	if err != nil {
		return nil, err
	}
	var created Review
	if err := common.DoJSON(c.httpClient, req, provider, "Create review", &created); err != nil {
		return nil, err
	}
	c.log.Infof("Submitted %s review on %s#%d", review.Event, path, number)
	return &created, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	req, err := common.NewJSONRequest(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	return req, nil
}

var (
	prURLRegex  = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/pull/(\d+)`)
	prLinkRegex = regexp.MustCompile(`(?:https?://)?(?:www\.)?github\.com/[^/\s]+/[^/\s]+/pull/\d+`)
)

// FindPRURL returns the first pull request link in text.
func FindPRURL(text string) (string, bool) {
	link := prLinkRegex.FindString(text)
	return link, link != ""
}

// ParsePRURL extracts owner, repo and number from a pull request URL.
func ParsePRURL(prURL string) (owner, repo string, number int, err error) {
	m := prURLRegex.FindStringSubmatch(prURL)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid pull request URL: %s", prURL)
	}
	number, err = strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid pull request number in %s: %w", prURL, err)
	}
	return m[1], m[2], number, nil
}
