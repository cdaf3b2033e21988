package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// ConfigError reports a missing or invalid setting detected at construction.
type ConfigError struct {
	Provider string
	Message  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// NewConfigError creates a ConfigError for the given provider.
func NewConfigError(provider, message string) *ConfigError {
	return &ConfigError{Provider: provider, Message: message}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// APIError is returned for non-2xx responses from a provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *APIError) Error() string {
	return e.Message
}

// IsRetryable reports whether err carries a retryable APIError.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}

// StatusCode returns the HTTP status of an APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// errorBody covers the error payloads of the providers we talk to:
// Atlassian uses errorMessages/errors, GitHub and Graph use message or
// error.message.
type errorBody struct {
	ErrorMessages []string        `json:"errorMessages"`
	Errors        json.RawMessage `json:"errors"`
	Message       string          `json:"message"`
	Error         json.RawMessage `json:"error"`
}

// fieldErrors decodes the Atlassian field-error map; other shapes yield nil.
func (b errorBody) fieldErrors() map[string]string {
	var m map[string]string
	if len(b.Errors) == 0 || json.Unmarshal(b.Errors, &m) != nil {
		return nil
	}
	return m
}

// nestedMessage decodes {"error": {"message": "..."}} or {"error": "..."}.
func (b errorBody) nestedMessage() string {
	if len(b.Error) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(b.Error, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(b.Error, &obj) == nil {
		return obj.Message
	}
	return ""
}

// NewAPIError builds an APIError from a failed response. The body is read
// but not closed.
func NewAPIError(provider, op string, resp *http.Response) *APIError {
	apiErr := &APIError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("%s failed: %d %s", op, resp.StatusCode, http.StatusText(resp.StatusCode)),
		Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil || len(raw) == 0 {
		return apiErr
	}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return apiErr
	}

	fields := body.fieldErrors()
	switch {
	case len(body.ErrorMessages) > 0:
		apiErr.Message = fmt.Sprintf("%s: %s", op, strings.Join(body.ErrorMessages, ", "))
	case len(fields) > 0:
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		values := make([]string, 0, len(keys))
		for _, k := range keys {
			values = append(values, fields[k])
		}
		apiErr.Message = fmt.Sprintf("%s: %s", op, strings.Join(values, ", "))
	case body.Message != "":
		apiErr.Message = fmt.Sprintf("%s: %s", op, body.Message)
	case body.nestedMessage() != "":
		apiErr.Message = fmt.Sprintf("%s: %s", op, body.nestedMessage())
	}
	return apiErr
}
