// Package chatsearch searches Microsoft Teams chat messages through the
// Microsoft Graph search API with an app-only token.
package chatsearch

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/config"
	"github.com/tuannvm/devhub/internal/logging"
)

const (
	provider        = "teams"
	defaultGraphURL = "https://graph.microsoft.com"
	graphScope      = "https://graph.microsoft.com/.default"
)

// Message is a chat message hit.
type Message struct {
	ID        string `json:"id"`
	Summary   string `json:"summary"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	WebURL    string `json:"webUrl"`
}

// Text returns the best available message text.
func (m Message) Text() string {
	if m.Content != "" {
		return m.Content
	}
	return m.Summary
}

// Client searches chat messages. Without tenant and app credentials every
// search is empty.
type Client struct {
	tenantID     string
	clientID     string
	clientSecret string
	tokenURL     string
	graphURL     string
	tokens       oauth2.TokenSource
	httpClient   *http.Client
	log          *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for both token and search
// requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) { c.log = l }
}

// WithEndpoints overrides the token and Graph endpoints.
func WithEndpoints(tokenURL, graphURL string) Option {
	return func(c *Client) {
		c.tokenURL = tokenURL
		c.graphURL = strings.TrimRight(graphURL, "/")
	}
}

// NewClient creates a chat search client.
func NewClient(cfg config.TeamsConfig, opts ...Option) *Client {
	c := &Client{
		tenantID:     strings.TrimSpace(cfg.TenantID),
		clientID:     strings.TrimSpace(cfg.ClientID),
		clientSecret: strings.TrimSpace(cfg.ClientSecret),
		graphURL:     defaultGraphURL,
		httpClient:   &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDefault(c.log)

	if c.Enabled() {
		tokenURL := c.tokenURL
		if tokenURL == "" {
			tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", c.tenantID)
		}
		cc := &clientcredentials.Config{
			ClientID:     c.clientID,
			ClientSecret: c.clientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{graphScope},
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
		c.tokens = cc.TokenSource(tokenCtx)
	}
	return c
}

// Enabled reports whether all credentials are configured.
func (c *Client) Enabled() bool {
	return c.tenantID != "" && c.clientID != "" && c.clientSecret != ""
}

// Search returns chat messages matching q.
func (c *Client) Search(ctx context.Context, q string) ([]Message, error) {
	if !c.Enabled() {
		c.log.Debugf("Teams credentials not configured, skipping chat search")
		return []Message{}, nil
	}

	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("Teams token request failed: %w", err)
	}

	payload := map[string]interface{}{
		"requests": []interface{}{
			map[string]interface{}{
				"entityTypes": []string{"chatMessage"},
				"query":       map[string]string{"queryString": q},
			},
		},
	}
	req, err := common.NewJSONRequest(ctx, http.MethodPost, c.graphURL+"/v1.0/search/query", payload)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)

	var resp searchResponse
	if err := common.DoJSON(c.httpClient, req, provider, "Teams search", &resp); err != nil {
		return nil, err
	}
	return resp.messages(), nil
}

type searchResponse struct {
	Value []struct {
		HitsContainers []struct {
			Hits []struct {
				HitID    string      `json:"hitId"`
				Summary  string      `json:"summary"`
				Resource chatMessage `json:"resource"`
			} `json:"hits"`
		} `json:"hitsContainers"`
	} `json:"value"`
}

type chatMessage struct {
	ID                   string `json:"id"`
	CreatedDateTime      string `json:"createdDateTime"`
	LastModifiedDateTime string `json:"lastModifiedDateTime"`
	WebURL               string `json:"webUrl"`
	WebLink              string `json:"webLink"`
	Body                 struct {
		Content string `json:"content"`
	} `json:"body"`
	From struct {
		User struct {
			DisplayName string `json:"displayName"`
		} `json:"user"`
		EmailAddress struct {
			Name string `json:"name"`
		} `json:"emailAddress"`
	} `json:"from"`
}

func (r searchResponse) messages() []Message {
	out := []Message{}
	for _, value := range r.Value {
		for _, container := range value.HitsContainers {
			for _, hit := range container.Hits {
				res := hit.Resource
				id := res.ID
				if id == "" {
					id = hit.HitID
				}
				author := res.From.User.DisplayName
				if author == "" {
					author = res.From.EmailAddress.Name
				}
				webURL := res.WebURL
				if webURL == "" {
					webURL = res.WebLink
				}
				updated := res.LastModifiedDateTime
				if updated == "" {
					updated = res.CreatedDateTime
				}
				out = append(out, Message{
					ID:        id,
					Summary:   hit.Summary,
					Content:   res.Body.Content,
					Author:    author,
					CreatedAt: res.CreatedDateTime,
					UpdatedAt: updated,
					WebURL:    webURL,
				})
			}
		}
	}
	return out
}
