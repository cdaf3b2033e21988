package jira

import "encoding/json"

// SearchResponse is the body of POST /rest/api/3/search/jql.
type SearchResponse struct {
	Issues        []Issue `json:"issues"`
	IsLast        bool    `json:"isLast"`
	NextPageToken string  `json:"nextPageToken"`
}

// Issue is a Jira issue as returned by search.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields holds the requested issue fields.
type IssueFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description"`
	Status      *NamedField     `json:"status"`
	Priority    *NamedField     `json:"priority"`
	IssueType   *NamedField     `json:"issuetype"`
	Assignee    *User           `json:"assignee"`
	Labels      []string        `json:"labels"`
	Created     string          `json:"created"`
	Updated     string          `json:"updated"`
}

// StatusName returns the status name or "".
func (f IssueFields) StatusName() string {
	if f.Status == nil {
		return ""
	}
	return f.Status.Name
}

// PriorityName returns the priority name or "".
func (f IssueFields) PriorityName() string {
	if f.Priority == nil {
		return ""
	}
	return f.Priority.Name
}

// NamedField is any Jira field object identified by name.
type NamedField struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// User is a Jira account.
type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
}

// IssueSummary is the compact result of SearchInProject.
type IssueSummary struct {
	Key     string `json:"key"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
	Status  string `json:"status"`
}

// CreateIssueParams describes an issue to create.
type CreateIssueParams struct {
	ProjectKey  string
	Summary     string
	Description string
	IssueType   string
	Priority    string
	Labels      []string
	ParentKey   string
}

// CreatedIssue identifies a newly created issue.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
	URL  string `json:"-"`
}
