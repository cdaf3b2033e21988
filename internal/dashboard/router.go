// Package dashboard computes the dashboard headline numbers and routes free
// text requests to the plugin that should handle them.
package dashboard

import "regexp"

// PluginType names a dashboard plugin.
type PluginType string

const (
	PluginJiraAutomation  PluginType = "jira-automation"
	PluginKnowledgeSearch PluginType = "knowledge-search"
	PluginPRReview        PluginType = "pr-review"
	PluginErrorLogSearch  PluginType = "error-log-search"
)

// Valid reports whether p names a known plugin.
func (p PluginType) Valid() bool {
	switch p {
	case PluginJiraAutomation, PluginKnowledgeSearch, PluginPRReview, PluginErrorLogSearch:
		return true
	}
	return false
}

// Patterns are unanchored; "pr" also matches inside longer words, and the
// first matching row wins.
var pluginPatterns = []struct {
	pattern *regexp.Regexp
	plugin  PluginType
}{
	{regexp.MustCompile(`(?i)jira|ticket|issue|bug report`), PluginJiraAutomation},
	{regexp.MustCompile(`(?i)search|find|where|how to|documentation`), PluginKnowledgeSearch},
	{regexp.MustCompile(`(?i)pr|pull request|review|code review`), PluginPRReview},
	{regexp.MustCompile(`(?i)error|exception|log|crash|failure`), PluginErrorLogSearch},
}

// DetectPluginType returns the plugin for text, or "" when none matches.
func DetectPluginType(text string) PluginType {
	for _, p := range pluginPatterns {
		if p.pattern.MatchString(text) {
			return p.plugin
		}
	}
	return ""
}
