// Package query builds JQL and CQL strings from free text.
//
// Two escaping policies exist and are not interchangeable. EscapeStrict
// backslash-escapes quote, backslash and square brackets, and is used by the
// provider clients. EscapeStrip removes quotes and backslashes outright, and
// is used by the search query builders.
package query

import (
	"fmt"
	"strings"
)

var strictReplacer = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`[`, `\[`,
	`]`, `\]`,
)

var strictUnreplacer = strings.NewReplacer(
	`\\`, `\`,
	`\"`, `"`,
	`\[`, `[`,
	`\]`, `]`,
)

var stripReplacer = strings.NewReplacer(`\`, "", `"`, "")

// EscapeStrict prefixes every backslash, double quote and square bracket
// with a backslash.
func EscapeStrict(s string) string {
	if s == "" {
		return ""
	}
	return strictReplacer.Replace(s)
}

// UnescapeStrict reverses EscapeStrict.
func UnescapeStrict(s string) string {
	if s == "" {
		return ""
	}
	return strictUnreplacer.Replace(s)
}

// EscapeStrip removes every backslash and double quote.
func EscapeStrip(s string) string {
	if s == "" {
		return ""
	}
	return stripReplacer.Replace(s)
}

// SearchMode selects the JQL clause used for free text.
type SearchMode string

const (
	// SearchTargeted matches summary OR description.
	SearchTargeted SearchMode = "targeted"
	// SearchText matches Jira's full-text field.
	SearchText SearchMode = "text"
)

// IssueQueryOptions restricts an issue tracker query.
type IssueQueryOptions struct {
	ProjectKey string
	SearchMode SearchMode
	Status     string
}

// BuildIssueTrackerQuery builds a JQL query for text. Blank text yields "".
func BuildIssueTrackerQuery(text string, opts IssueQueryOptions) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	escaped := EscapeStrip(text)

	var conditions []string
	if opts.ProjectKey != "" {
		conditions = append(conditions, fmt.Sprintf(`project = "%s"`, EscapeStrip(opts.ProjectKey)))
	}
	if opts.Status != "" {
		conditions = append(conditions, fmt.Sprintf(`status = "%s"`, EscapeStrip(opts.Status)))
	}
	if opts.SearchMode == SearchText {
		conditions = append(conditions, fmt.Sprintf(`text ~ "%s"`, escaped))
	} else {
		conditions = append(conditions, fmt.Sprintf(`(summary ~ "%s" OR description ~ "%s")`, escaped, escaped))
	}

	return strings.Join(conditions, " AND ") + " ORDER BY updated DESC"
}

// ContentType restricts a wiki query to one kind of content.
type ContentType string

const (
	ContentPage     ContentType = "page"
	ContentBlogPost ContentType = "blogpost"
	ContentAll      ContentType = "all"
)

// WikiQueryOptions restricts a wiki query.
type WikiQueryOptions struct {
	SpaceKey string
	// ContentType defaults to all content types when empty.
	ContentType ContentType
}

// BuildWikiQuery builds a CQL query matching title or body text. Blank text
// yields "".
func BuildWikiQuery(text string, opts WikiQueryOptions) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	escaped := EscapeStrip(text)

	var conditions []string
	if opts.SpaceKey != "" {
		conditions = append(conditions, fmt.Sprintf(`space = "%s"`, EscapeStrip(opts.SpaceKey)))
	}
	if opts.ContentType != "" && opts.ContentType != ContentAll {
		conditions = append(conditions, fmt.Sprintf(`type = "%s"`, opts.ContentType))
	}
	conditions = append(conditions, fmt.Sprintf(`(title ~ "%s" OR text ~ "%s")`, escaped, escaped))

	return strings.Join(conditions, " AND ") + " ORDER BY lastModified DESC"
}
