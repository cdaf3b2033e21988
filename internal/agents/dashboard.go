package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"
	"trpc.group/trpc-go/trpc-a2a-go/taskmanager"

	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/dashboard"
	"github.com/tuannvm/devhub/internal/github"
	"github.com/tuannvm/devhub/internal/logging"
	"github.com/tuannvm/devhub/internal/models"
	"github.com/tuannvm/devhub/internal/search"
	"github.com/tuannvm/devhub/internal/ticket"
)

const (
	stateWorking   = protocol.TaskState("working")
	stateCompleted = protocol.TaskState("completed")
	stateFailed    = protocol.TaskState("failed")
)

// ErrNotConfigured is returned for plugins whose backend was not wired.
var ErrNotConfigured = errors.New("plugin is not configured")

// BreakdownGenerator drafts enriched ticket breakdowns.
type BreakdownGenerator interface {
	GenerateEnrichedBreakdown(ctx context.Context, request string, opts ticket.EnrichOptions) (models.EnrichedTicketBreakdown, error)
}

// TicketCreator files drafted tickets.
type TicketCreator interface {
	CreateTickets(ctx context.Context, drafts []models.TicketDraft, opts ticket.CreateOptions) []models.CreatedTicket
}

// ticketResult is the jira-automation reply when tickets were filed.
type ticketResult struct {
	models.EnrichedTicketBreakdown
	Created []models.CreatedTicket `json:"created"`
}

// PRReviewer reviews a pull request by URL and can post the result back.
type PRReviewer interface {
	ReviewURL(ctx context.Context, prURL string) (*models.PRReviewResponse, error)
	PostReview(ctx context.Context, owner, repo string, number int, result models.ReviewResult) (*github.Review, error)
}

// reviewResult is the pr-review reply when the review was posted.
type reviewResult struct {
	*models.PRReviewResponse
	Posted *github.Review `json:"posted"`
}

// ErrorSearcher looks up tickets and docs for an error log.
type ErrorSearcher interface {
	SearchForError(ctx context.Context, errLog string) (*models.ErrorSearchResult, error)
}

// KnowledgeAsker answers a question from internal sources.
type KnowledgeAsker interface {
	Ask(ctx context.Context, question string) (*models.KnowledgeAnswer, error)
}

// ErrorAnalyzer runs a full AI analysis of an error log.
type ErrorAnalyzer interface {
	Analyze(ctx context.Context, errLog string) (*models.ErrorAnalysis, error)
}

// DashboardAgent implements the TaskProcessor interface from trpc-a2a-go. It
// routes each request to one dashboard plugin.
type DashboardAgent struct {
	tickets     BreakdownGenerator
	enrich      ticket.EnrichOptions
	creator     TicketCreator
	create      ticket.CreateOptions
	sources     []search.Source
	asker       KnowledgeAsker
	reviewer    PRReviewer
	errorSearch ErrorSearcher
	analyzer    ErrorAnalyzer
	log         *zap.SugaredLogger
}

// Option configures a DashboardAgent.
type Option func(*DashboardAgent)

// WithTickets enables the jira-automation plugin. opts apply when a request
// does not name a language.
func WithTickets(g BreakdownGenerator, opts ticket.EnrichOptions) Option {
	return func(a *DashboardAgent) {
		a.tickets = g
		a.enrich = opts
	}
}

// WithCreator lets jira-automation requests with create set file their drafts.
func WithCreator(c TicketCreator, opts ticket.CreateOptions) Option {
	return func(a *DashboardAgent) {
		a.creator = c
		a.create = opts
	}
}

// WithSearchSources enables the knowledge-search plugin.
func WithSearchSources(sources []search.Source) Option {
	return func(a *DashboardAgent) { a.sources = sources }
}

// WithKnowledge serves knowledge-search requests with analyze set.
func WithKnowledge(k KnowledgeAsker) Option {
	return func(a *DashboardAgent) { a.asker = k }
}

// WithReviewer enables the pr-review plugin. Requests with create set also
// post the review to the pull request.
func WithReviewer(r PRReviewer) Option {
	return func(a *DashboardAgent) { a.reviewer = r }
}

// WithErrorSearch enables the error-log-search plugin.
func WithErrorSearch(s ErrorSearcher) Option {
	return func(a *DashboardAgent) { a.errorSearch = s }
}

// WithErrorAnalyzer serves error-log-search requests with analyze set.
func WithErrorAnalyzer(an ErrorAnalyzer) Option {
	return func(a *DashboardAgent) { a.analyzer = an }
}

// WithLogger sets the agent logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(a *DashboardAgent) { a.log = l }
}

// NewDashboardAgent creates a DashboardAgent. Plugins without a backend fail
// their tasks with ErrNotConfigured.
func NewDashboardAgent(opts ...Option) *DashboardAgent {
	a := &DashboardAgent{}
	for _, opt := range opts {
		opt(a)
	}
	a.log = logging.OrDefault(a.log)
	return a
}

// Process implements the TaskProcessor interface from trpc-a2a-go
func (a *DashboardAgent) Process(ctx context.Context, taskID string, message protocol.Message, handle taskmanager.TaskHandle) error {
	a.log.Infof("Received task %s", taskID)
	if err := handle.UpdateStatus(stateWorking, nil); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	req, err := common.ExtractDashboardRequest(message)
	if err != nil {
		return a.fail(handle, taskID, fmt.Errorf("failed to extract request: %w", err))
	}
	plugin := dashboard.PluginType(req.Plugin)
	if plugin == "" {
		plugin = dashboard.DetectPluginType(req.Query)
	}
	if !plugin.Valid() {
		return a.fail(handle, taskID, fmt.Errorf("no plugin matches request %q", common.TruncateForLogging(req.Query)))
	}
	a.log.Infof("Task %s routed to %s", taskID, plugin)

	result, err := a.dispatch(ctx, plugin, req, handle)
	if err != nil {
		return a.fail(handle, taskID, fmt.Errorf("%s: %w", plugin, err))
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return a.fail(handle, taskID, fmt.Errorf("failed to marshal %s result: %w", plugin, err))
	}

	artifact := protocol.Artifact{
		Name:        common.StringPtr(string(plugin)),
		Description: common.StringPtr(fmt.Sprintf("%s result", plugin)),
		Parts:       []protocol.Part{protocol.NewTextPart(string(resultJSON))},
		Metadata: map[string]interface{}{
			"plugin":       string(plugin),
			"content-type": "application/json",
		},
	}
	if err := handle.AddArtifact(artifact); err != nil {
		a.log.Warnf("Failed to add artifact for task %s: %v", taskID, err)
	}

	responseMsg := &protocol.Message{
		Parts: []protocol.Part{protocol.NewTextPart(string(resultJSON))},
	}
	if err := handle.UpdateStatus(stateCompleted, responseMsg); err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	a.log.Infof("Task %s completed", taskID)
	return nil
}

func (a *DashboardAgent) dispatch(ctx context.Context, plugin dashboard.PluginType, req models.DashboardRequest, handle taskmanager.TaskHandle) (interface{}, error) {
	switch plugin {
	case dashboard.PluginJiraAutomation:
		if a.tickets == nil {
			return nil, ErrNotConfigured
		}
		opts := a.enrich
		if req.Language != "" {
			opts.Language = req.Language
		}
		bd, err := a.tickets.GenerateEnrichedBreakdown(ctx, req.Query, opts)
		if err != nil || !req.Create {
			return bd, err
		}
		if a.creator == nil {
			return nil, fmt.Errorf("ticket creation: %w", ErrNotConfigured)
		}
		var drafts []models.TicketDraft
		if bd.ParentTicket != nil {
			drafts = append(drafts, *bd.ParentTicket)
		}
		drafts = append(drafts, bd.Tickets...)
		return ticketResult{EnrichedTicketBreakdown: bd, Created: a.creator.CreateTickets(ctx, drafts, a.create)}, nil

	case dashboard.PluginKnowledgeSearch:
		if req.Analyze {
			if a.asker == nil {
				return nil, fmt.Errorf("knowledge answer: %w", ErrNotConfigured)
			}
			return a.asker.Ask(ctx, req.Query)
		}
		if len(a.sources) == 0 {
			return nil, ErrNotConfigured
		}
		agg := search.NewAggregator(a.sources,
			search.WithLogger(a.log),
			search.WithObserver(func(s search.State) { a.progress(handle, s) }),
		)
		return agg.Search(ctx, req.Query), nil

	case dashboard.PluginPRReview:
		if a.reviewer == nil {
			return nil, ErrNotConfigured
		}
		prURL, ok := github.FindPRURL(req.Query)
		if !ok {
			return nil, fmt.Errorf("no pull request URL in %q", common.TruncateForLogging(req.Query))
		}
		resp, err := a.reviewer.ReviewURL(ctx, prURL)
		if err != nil || !req.Create {
			return resp, err
		}
		owner, repo, number, err := github.ParsePRURL(prURL)
		if err != nil {
			return nil, err
		}
		posted, err := a.reviewer.PostReview(ctx, owner, repo, number, resp.Review)
		if err != nil {
			return nil, fmt.Errorf("failed to post review: %w", err)
		}
		return reviewResult{PRReviewResponse: resp, Posted: posted}, nil

	case dashboard.PluginErrorLogSearch:
		if req.Analyze {
			if a.analyzer == nil {
				return nil, fmt.Errorf("error analysis: %w", ErrNotConfigured)
			}
			return a.analyzer.Analyze(ctx, req.Query)
		}
		if a.errorSearch == nil {
			return nil, ErrNotConfigured
		}
		return a.errorSearch.SearchForError(ctx, req.Query)
	}
	return nil, fmt.Errorf("unknown plugin %q", plugin)
}

// progress forwards an aggregator snapshot as an intermediate status.
func (a *DashboardAgent) progress(handle taskmanager.TaskHandle, s search.State) {
	raw, err := json.Marshal(s)
	if err != nil {
		a.log.Warnf("Failed to marshal search state: %v", err)
		return
	}
	msg := &protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(string(raw))}}
	if err := handle.UpdateStatus(stateWorking, msg); err != nil {
		a.log.Warnf("Failed to publish search progress: %v", err)
	}
}

func (a *DashboardAgent) fail(handle taskmanager.TaskHandle, taskID string, cause error) error {
	a.log.Errorf("Task %s failed: %v", taskID, cause)
	msg := &protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(cause.Error())}}
	if err := handle.UpdateStatus(stateFailed, msg); err != nil {
		a.log.Warnf("Failed to mark task %s failed: %v", taskID, err)
	}
	return cause
}
