package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/config"
	"github.com/tuannvm/devhub/internal/logging"
	"github.com/tuannvm/devhub/internal/metrics"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryDelay = time.Second
	maxAttempts       = 3
)

// LLMClient defines the interface for interacting with LLM services
type LLMClient interface {
	// GenerateText sends a single prompt and returns the completion
	GenerateText(ctx context.Context, prompt string) (string, error)
	// Chat sends a conversation and returns the next model turn
	Chat(ctx context.Context, messages []Message) (string, error)
	// ClassifyText returns the category label the model picks for text
	ClassifyText(ctx context.Context, text string, categories []string) (string, error)
}

// Role is the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// backend performs one raw generation call against a provider.
type backend interface {
	generate(ctx context.Context, messages []Message) (string, error)
}

// Client wraps a provider backend with a uniform timeout and retry policy.
type Client struct {
	backend    backend
	timeout    time.Duration
	retryDelay time.Duration
	log        *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) { c.log = l }
}

// WithRetryDelay sets the base delay multiplied by the attempt number.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// NewClient creates a new LLM client based on the provided configuration
func NewClient(ctx context.Context, cfg config.LLMConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, newError(CodeInvalidConfig, "API key is required", false, nil)
	}

	var b backend
	var err error
	switch cfg.Provider {
	case "", "gemini":
		b, err = newGeminiBackend(ctx, cfg)
	case "openai", "azure":
		b, err = newOpenAIBackend(cfg)
	default:
		return nil, newError(CodeInvalidConfig, fmt.Sprintf("unsupported LLM provider: %s", cfg.Provider), false, nil)
	}
	if err != nil {
		return nil, newError(CodeInvalidConfig, fmt.Sprintf("failed to initialize LLM: %v", err), false, err)
	}

	return newClient(b, cfg.TimeoutDuration(), opts...), nil
}

func newClient(b backend, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		backend:    b,
		timeout:    timeout,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDefault(c.log)
	return c
}

// GenerateText sends a prompt to the LLM and returns the completion
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", newError(CodeInvalidInput, "prompt is required", false, nil)
	}
	return c.call(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

// Chat continues a conversation. The last message is the new user turn.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", newError(CodeInvalidInput, "at least one message is required", false, nil)
	}
	return c.call(ctx, messages)
}

// ClassifyText asks the model to pick one of categories for text.
func (c *Client) ClassifyText(ctx context.Context, text string, categories []string) (string, error) {
	if len(categories) == 0 {
		return "", newError(CodeInvalidInput, "at least one category is required", false, nil)
	}
	prompt := fmt.Sprintf("Classify the following text into one of these categories: %s\nOnly respond with the category name, nothing else.\n\nText: %s",
		strings.Join(categories, ", "), text)
	label, err := c.GenerateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(label), nil
}

// call runs retry(timeout(generate)).
func (c *Client) call(ctx context.Context, messages []Message) (string, error) {
	c.log.Debugf("Sending %d message(s) to LLM: %s", len(messages),
		common.TruncateForLogging(messages[len(messages)-1].Content))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := c.withTimeout(ctx, messages)
		metrics.ObserveLLMAttempt(err)
		if err == nil {
			c.log.Debugf("Received response from LLM: %s", common.TruncateForLogging(text))
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) || attempt == maxAttempts {
			break
		}

		delay := c.retryDelay * time.Duration(attempt)
		c.log.Warnf("LLM attempt %d failed, retrying in %v: %v", attempt, delay, err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	var llmErr *Error
	if errors.As(lastErr, &llmErr) {
		return "", llmErr
	}
	return "", newError(CodeAPIError, lastErr.Error(), isRetryable(lastErr), lastErr)
}

// withTimeout races one backend call against the client timeout.
func (c *Client) withTimeout(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := c.backend.generate(ctx, messages)
		done <- result{text: text, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case r := <-done:
		return r.text, r.err
	case <-timer.C:
		return "", newError(CodeTimeout, "Request timeout", true, nil)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// isRetryable reports whether an error message looks transient.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var llmErr *Error
	if errors.As(err, &llmErr) && llmErr.Code == CodeTimeout {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "503", "timeout", "network"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
