// Package websearch queries the Serper Google Search API.
package websearch

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/config"
	"github.com/tuannvm/devhub/internal/logging"
)

const (
	provider       = "serper"
	defaultBaseURL = "https://google.serper.dev"
	defaultNum     = 5
)

// Response is the subset of the Serper search response we read.
type Response struct {
	Organic []OrganicResult `json:"organic"`
}

// OrganicResult is one organic search hit.
type OrganicResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

// Client is a Serper client. Without an API key every search is empty.
type Client struct {
	apiKey     string
	baseURL    string
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

// NewClient creates a web search client.
func NewClient(cfg config.SerperConfig, opts ...Option) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDefault(c.log)
	return c
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Search returns up to num organic results for q.
func (c *Client) Search(ctx context.Context, q string, num int) (*Response, error) {
	if !c.Enabled() {
		c.log.Debugf("Serper API key not configured, skipping web search")
		return &Response{Organic: []OrganicResult{}}, nil
	}
	if num <= 0 {
		num = defaultNum
	}

	req, err := common.NewJSONRequest(ctx, http.MethodPost, c.baseURL+"/search", map[string]interface{}{
		"q":   q,
		"num": num,
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", c.apiKey)

	var resp Response
	if err := common.DoJSON(c.httpClient, req, provider, "Web search", &resp); err != nil {
		return nil, err
	}
	if resp.Organic == nil {
		resp.Organic = []OrganicResult{}
	}
	return &resp, nil
}
