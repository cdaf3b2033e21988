package models

// Source identifies where a search result came from.
type Source string

const (
	SourceConfluence Source = "confluence"
	SourceJira       Source = "jira"
	SourceWeb        Source = "web"
	SourceAI         Source = "ai"
	SourceChat       Source = "chat"
)

// SearchResult is the common shape every provider payload is normalized into.
type SearchResult struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Source    Source            `json:"source"`
	Snippet   string            `json:"snippet"`
	URL       string            `json:"url"`
	Relevance int               `json:"relevance"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SearchStageStatus is the per-source status tracked by the aggregator.
type SearchStageStatus string

const (
	StatusIdle      SearchStageStatus = "idle"
	StatusLoading   SearchStageStatus = "loading"
	StatusSuccess   SearchStageStatus = "success"
	StatusError     SearchStageStatus = "error"
	StatusNoResults SearchStageStatus = "no-results"
)

// IsTerminal reports whether no further transition is expected for the
// current search.
func (s SearchStageStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusNoResults
}

// IssueType is the Jira issue type of a draft.
type IssueType string

const (
	IssueBug     IssueType = "Bug"
	IssueTask    IssueType = "Task"
	IssueStory   IssueType = "Story"
	IssueEpic    IssueType = "Epic"
	IssueSubTask IssueType = "Sub-task"
)

// Priority is the Jira priority of a draft.
type Priority string

const (
	PriorityHighest Priority = "Highest"
	PriorityHigh    Priority = "High"
	PriorityMedium  Priority = "Medium"
	PriorityLow     Priority = "Low"
	PriorityLowest  Priority = "Lowest"
)

// TicketDraft is a candidate ticket awaiting confirmation before creation.
type TicketDraft struct {
	DraftID         string    `json:"draftId"`
	IssueType       IssueType `json:"issueType"`
	Summary         string    `json:"summary"`
	Description     string    `json:"description"`
	Priority        Priority  `json:"priority"`
	Labels          []string  `json:"labels"`
	Component       *string   `json:"component,omitempty"`
	EstimatedHours  *float64  `json:"estimatedHours,omitempty"`
	ConfidenceScore float64   `json:"confidenceScore"`
}

// Hours returns the estimate, or 0 when the draft has none.
func (d TicketDraft) Hours() float64 {
	if d.EstimatedHours == nil {
		return 0
	}
	return *d.EstimatedHours
}

// TicketBreakdown is the result of decomposing one request into drafts.
type TicketBreakdown struct {
	OriginalRequest     string        `json:"originalRequest"`
	ParentTicket        *TicketDraft  `json:"parentTicket"`
	Tickets             []TicketDraft `json:"tickets"`
	TotalEstimatedHours float64       `json:"totalEstimatedHours"`
	AnalysisNotes       string        `json:"analysisNotes"`
}

// Language is the detected language of a ticket request.
type Language string

const (
	LanguageEnglish   Language = "en"
	LanguageJapanese  Language = "ja"
	LanguageBilingual Language = "bilingual"
)

// RelatedResource is a wiki page or issue attached to a breakdown.
type RelatedResource struct {
	Source  Source `json:"source"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// EnrichedTicketBreakdown is a breakdown with related resources attached.
type EnrichedTicketBreakdown struct {
	TicketBreakdown
	RelatedResources []RelatedResource `json:"relatedResources"`
	DetectedLanguage Language          `json:"detectedLanguage"`
}

// Severity ranks a classified error.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// ClassifiedError is the outcome of matching an error message against the
// ordered pattern table.
type ClassifiedError struct {
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Pattern  string   `json:"pattern,omitempty"`
}

// ReviewRecommendation is the verdict of a PR review.
type ReviewRecommendation string

const (
	RecommendApprove        ReviewRecommendation = "APPROVE"
	RecommendRequestChanges ReviewRecommendation = "REQUEST_CHANGES"
	RecommendComment        ReviewRecommendation = "COMMENT"
)

// ReviewComment is a single finding on a changed file.
type ReviewComment struct {
	Path     string `json:"path"`
	Line     int    `json:"line,omitempty"`
	Body     string `json:"body"`
	Severity string `json:"severity,omitempty"`
}

// ReviewResult is the validated outcome of an AI PR review.
type ReviewResult struct {
	Summary         string               `json:"summary"`
	Comments        []ReviewComment      `json:"comments"`
	Suggestions     []string             `json:"suggestions"`
	Recommendation  ReviewRecommendation `json:"recommendation"`
	ComplexityScore int                  `json:"complexityScore"`
}

// PRInfo describes a pull request.
type PRInfo struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	State     string `json:"state"`
	Author    string `json:"author"`
	URL       string `json:"url"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changed   int    `json:"changedFiles"`
}

// PRFile is one changed file of a pull request.
type PRFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
	Patch     string `json:"patch,omitempty"`
}

// PRReviewResponse bundles a pull request with its review.
type PRReviewResponse struct {
	PR     PRInfo       `json:"pr"`
	Files  []PRFile     `json:"files"`
	Review ReviewResult `json:"review"`
}

// RelatedIssue is an existing ticket that looks similar to an analyzed error.
type RelatedIssue struct {
	Key        string `json:"key"`
	Summary    string `json:"summary"`
	Status     string `json:"status"`
	URL        string `json:"url"`
	Similarity int    `json:"similarity"`
}

// ErrorAnalysis is the AI analysis of an error log.
type ErrorAnalysis struct {
	ErrorType     string         `json:"errorType"`
	Category      string         `json:"category"`
	Severity      Severity       `json:"severity"`
	RootCause     string         `json:"rootCause"`
	Solutions     []string       `json:"solutions"`
	RelatedIssues []RelatedIssue `json:"relatedIssues"`
}

// ErrorSearchResult is the outcome of a classified error search.
type ErrorSearchResult struct {
	Classification   ClassifiedError `json:"classification"`
	RelatedIssues    []SearchResult  `json:"relatedIssues"`
	Documentation    []SearchResult  `json:"documentation"`
	AISummary        string          `json:"aiSummary,omitempty"`
	SuggestedActions []string        `json:"suggestedActions"`
}

// KnowledgeAnswer is an AI answer grounded on internal sources.
type KnowledgeAnswer struct {
	Answer  string         `json:"answer"`
	Sources []SearchResult `json:"sources"`
}

// DashboardStats are the headline numbers of the dashboard.
type DashboardStats struct {
	TicketsThisWeek  int    `json:"ticketsThisWeek"`
	TicketsChange    string `json:"ticketsChange"`
	OpenIssues       int    `json:"openIssues"`
	OpenChange       string `json:"openChange"`
	CompletedTasks   int    `json:"completedTasks"`
	CompletedChange  string `json:"completedChange"`
	InProgressIssues int    `json:"inProgressIssues"`
}

// TaskSummary is a compact issue row shown on the dashboard.
type TaskSummary struct {
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Updated  string `json:"updated"`
	URL      string `json:"url"`
}

// DashboardTasks groups the dashboard issue lists.
type DashboardTasks struct {
	Recent     []TaskSummary `json:"recent"`
	InProgress []TaskSummary `json:"inProgress"`
	Completed  []TaskSummary `json:"completed"`
	Open       []TaskSummary `json:"open"`
}

// CreatedTicket reports what happened to one draft during bulk creation.
type CreatedTicket struct {
	DraftID           string `json:"draftId"`
	IssueKey          string `json:"issueKey,omitempty"`
	IssueURL          string `json:"issueUrl,omitempty"`
	ConfluencePageURL string `json:"confluencePageUrl,omitempty"`
	Error             string `json:"error,omitempty"`
}

// DashboardRequest is a plugin request received by the dashboard agent.
// Plugin may be empty, in which case it is detected from Query. Create asks
// the jira-automation plugin to file the drafted tickets (or pr-review to post
// its review). Analyze asks for an AI answer instead of a plain search.
type DashboardRequest struct {
	Plugin   string `json:"plugin,omitempty"`
	Query    string `json:"query"`
	Language string `json:"language,omitempty"`
	Create   bool   `json:"create,omitempty"`
	Analyze  bool   `json:"analyze,omitempty"`
}
