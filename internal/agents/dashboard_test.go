package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"github.com/tuannvm/devhub/internal/github"
	"github.com/tuannvm/devhub/internal/models"
	"github.com/tuannvm/devhub/internal/search"
	"github.com/tuannvm/devhub/internal/ticket"
)

type statusUpdate struct {
	state protocol.TaskState
	text  string
}

type fakeHandle struct {
	mu        sync.Mutex
	updates   []statusUpdate
	artifacts []protocol.Artifact
}

func (h *fakeHandle) UpdateStatus(state protocol.TaskState, msg *protocol.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	u := statusUpdate{state: state}
	if msg != nil && len(msg.Parts) > 0 {
		u.text = partText(msg.Parts[0])
	}
	h.updates = append(h.updates, u)
	return nil
}

func (h *fakeHandle) AddArtifact(a protocol.Artifact) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.artifacts = append(h.artifacts, a)
	return nil
}

func (h *fakeHandle) IsStreamingRequest() bool { return false }

func (h *fakeHandle) last() statusUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.updates[len(h.updates)-1]
}

func partText(p protocol.Part) string {
	switch v := p.(type) {
	case protocol.TextPart:
		return v.Text
	case *protocol.TextPart:
		return v.Text
	}
	return ""
}

func textMessage(text string) protocol.Message {
	return protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(text)}}
}

type fakeTickets struct {
	request string
	opts    ticket.EnrichOptions
}

func (f *fakeTickets) GenerateEnrichedBreakdown(_ context.Context, request string, opts ticket.EnrichOptions) (models.EnrichedTicketBreakdown, error) {
	f.request, f.opts = request, opts
	return models.EnrichedTicketBreakdown{DetectedLanguage: models.LanguageJapanese}, nil
}

type fakeReviewer struct {
	err    error
	posted *models.ReviewResult
	target string
}

func (f *fakeReviewer) ReviewURL(_ context.Context, prURL string) (*models.PRReviewResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.PRReviewResponse{PR: models.PRInfo{URL: prURL}}, nil
}

func (f *fakeReviewer) PostReview(_ context.Context, owner, repo string, number int, result models.ReviewResult) (*github.Review, error) {
	f.posted = &result
	f.target = fmt.Sprintf("%s/%s#%d", owner, repo, number)
	return &github.Review{ID: 11}, nil
}

type fakeErrorSearch struct{}

func (fakeErrorSearch) SearchForError(_ context.Context, errLog string) (*models.ErrorSearchResult, error) {
	return &models.ErrorSearchResult{AISummary: errLog}, nil
}

func TestProcessJiraAutomation(t *testing.T) {
	gen := &fakeTickets{}
	agent := NewDashboardAgent(WithTickets(gen, ticket.EnrichOptions{Language: "auto", EnableSearch: true}))
	handle := &fakeHandle{}

	msg := protocol.Message{Parts: []protocol.Part{protocol.DataPart{
		Type: "data",
		Data: map[string]interface{}{"plugin": "jira-automation", "request": "Add SSO login", "language": "ja"},
	}}}
	require.NoError(t, agent.Process(context.Background(), "task-1", msg, handle))

	assert.Equal(t, "Add SSO login", gen.request)
	assert.Equal(t, ticket.EnrichOptions{Language: "ja", EnableSearch: true}, gen.opts)

	assert.Equal(t, stateWorking, handle.updates[0].state)
	final := handle.last()
	assert.Equal(t, stateCompleted, final.state)
	var got models.EnrichedTicketBreakdown
	require.NoError(t, json.Unmarshal([]byte(final.text), &got))
	assert.Equal(t, models.LanguageJapanese, got.DetectedLanguage)

	require.Len(t, handle.artifacts, 1)
	assert.Equal(t, "jira-automation", *handle.artifacts[0].Name)
	assert.Equal(t, "jira-automation", handle.artifacts[0].Metadata["plugin"])
}

func TestProcessDetectsPlugin(t *testing.T) {
	agent := NewDashboardAgent(
		WithReviewer(&fakeReviewer{}),
		WithErrorSearch(fakeErrorSearch{}),
	)

	handle := &fakeHandle{}
	require.NoError(t, agent.Process(context.Background(), "t", textMessage("review https://github.com/acme/api/pull/7"), handle))
	assert.Contains(t, handle.last().text, `"url":"https://github.com/acme/api/pull/7"`)

	handle = &fakeHandle{}
	require.NoError(t, agent.Process(context.Background(), "t", textMessage("NullPointerException at Foo.bar"), handle))
	assert.Contains(t, handle.last().text, `"aiSummary":"NullPointerException at Foo.bar"`)
}

func TestProcessKnowledgeSearchPublishesProgress(t *testing.T) {
	src := search.Source{Name: "internal", Searcher: search.SearcherFunc(func(_ context.Context, q string) ([]models.SearchResult, error) {
		return []models.SearchResult{{ID: "c-1", Title: q, Source: models.SourceConfluence}}, nil
	})}
	agent := NewDashboardAgent(WithSearchSources([]search.Source{src}))
	handle := &fakeHandle{}

	require.NoError(t, agent.Process(context.Background(), "t", textMessage("where is the deploy runbook"), handle))

	var final search.State
	require.NoError(t, json.Unmarshal([]byte(handle.last().text), &final))
	assert.Equal(t, "where is the deploy runbook", final.Query)
	assert.Equal(t, models.StatusSuccess, final.Source("internal").Status)

	// working (start), loading snapshot, success snapshot, completed
	var progress int
	for _, u := range handle.updates {
		if u.state == stateWorking && u.text != "" {
			progress++
		}
	}
	assert.GreaterOrEqual(t, progress, 2)
}

func TestProcessFailures(t *testing.T) {
	tests := []struct {
		name    string
		agent   *DashboardAgent
		msg     protocol.Message
		wantErr string
		is      error
	}{
		{
			name:    "no parts",
			agent:   NewDashboardAgent(),
			msg:     protocol.Message{},
			wantErr: "failed to extract request",
		},
		{
			name:    "no plugin matches",
			agent:   NewDashboardAgent(),
			msg:     textMessage("hello there"),
			wantErr: "no plugin matches",
		},
		{
			name:  "plugin not configured",
			agent: NewDashboardAgent(),
			msg:   textMessage("create a ticket for the bug"),
			is:    ErrNotConfigured,
		},
		{
			name:    "review without a link",
			agent:   NewDashboardAgent(WithReviewer(&fakeReviewer{})),
			msg:     textMessage("review the login change"),
			wantErr: "pr-review: no pull request URL",
		},
		{
			name:    "plugin error",
			agent:   NewDashboardAgent(WithReviewer(&fakeReviewer{err: errors.New("GitHub get pull request: 404")})),
			msg:     textMessage("review https://github.com/acme/api/pull/9"),
			wantErr: "pr-review: GitHub get pull request: 404",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handle := &fakeHandle{}
			err := tt.agent.Process(context.Background(), "t", tt.msg, handle)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			final := handle.last()
			assert.Equal(t, stateFailed, final.state)
			assert.Equal(t, err.Error(), final.text)
			assert.Empty(t, handle.artifacts)
		})
	}
}

type fakeCreator struct {
	drafts []models.TicketDraft
	opts   ticket.CreateOptions
}

func (f *fakeCreator) CreateTickets(_ context.Context, drafts []models.TicketDraft, opts ticket.CreateOptions) []models.CreatedTicket {
	f.drafts, f.opts = drafts, opts
	out := make([]models.CreatedTicket, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, models.CreatedTicket{DraftID: d.DraftID, IssueKey: "ENG-" + d.DraftID})
	}
	return out
}

type draftingTickets struct{}

func (draftingTickets) GenerateEnrichedBreakdown(_ context.Context, request string, _ ticket.EnrichOptions) (models.EnrichedTicketBreakdown, error) {
	var bd models.EnrichedTicketBreakdown
	bd.OriginalRequest = request
	bd.ParentTicket = &models.TicketDraft{DraftID: "1", Summary: "Epic"}
	bd.Tickets = []models.TicketDraft{{DraftID: "2", Summary: "Task"}}
	return bd, nil
}

func TestProcessCreatesTickets(t *testing.T) {
	creator := &fakeCreator{}
	agent := NewDashboardAgent(
		WithTickets(draftingTickets{}, ticket.EnrichOptions{}),
		WithCreator(creator, ticket.CreateOptions{ProjectKey: "ENG", CreateConfluencePages: true}),
	)
	handle := &fakeHandle{}
	msg := protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(`{"plugin":"jira-automation","query":"Add SSO","create":true}`)}}

	require.NoError(t, agent.Process(context.Background(), "t", msg, handle))
	require.Len(t, creator.drafts, 2)
	assert.Equal(t, "Epic", creator.drafts[0].Summary)
	assert.Equal(t, "ENG", creator.opts.ProjectKey)

	var got struct {
		OriginalRequest string                 `json:"originalRequest"`
		Created         []models.CreatedTicket `json:"created"`
	}
	require.NoError(t, json.Unmarshal([]byte(handle.last().text), &got))
	assert.Equal(t, "Add SSO", got.OriginalRequest)
	require.Len(t, got.Created, 2)
	assert.Equal(t, "ENG-2", got.Created[1].IssueKey)

	err := NewDashboardAgent(WithTickets(draftingTickets{}, ticket.EnrichOptions{})).
		Process(context.Background(), "t", msg, &fakeHandle{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestProcessPostsReview(t *testing.T) {
	reviewer := &fakeReviewer{}
	agent := NewDashboardAgent(WithReviewer(reviewer))
	handle := &fakeHandle{}
	msg := protocol.Message{Parts: []protocol.Part{protocol.DataPart{
		Type: "data",
		Data: map[string]interface{}{"plugin": "pr-review", "url": "https://github.com/acme/api/pull/12", "create": true},
	}}}

	require.NoError(t, agent.Process(context.Background(), "t", msg, handle))
	require.NotNil(t, reviewer.posted)
	assert.Equal(t, "acme/api#12", reviewer.target)
	assert.Contains(t, handle.last().text, `"posted":{"id":11`)
}

func TestProcessErrorAnalysis(t *testing.T) {
	agent := NewDashboardAgent(WithErrorAnalyzer(fakeAnalyzer{}))
	handle := &fakeHandle{}
	msg := protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(`{"plugin":"error-log-search","errorLog":"panic: nil map","analyze":true}`)}}

	require.NoError(t, agent.Process(context.Background(), "t", msg, handle))
	assert.Contains(t, handle.last().text, `"rootCause":"panic: nil map"`)

	// Plain search is still unconfigured.
	err := agent.Process(context.Background(), "t", textMessage("error: nil map"), &fakeHandle{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(_ context.Context, errLog string) (*models.ErrorAnalysis, error) {
	return &models.ErrorAnalysis{RootCause: errLog}, nil
}

type fakeAsker struct{}

func (fakeAsker) Ask(_ context.Context, question string) (*models.KnowledgeAnswer, error) {
	return &models.KnowledgeAnswer{Answer: "see runbook for " + question}, nil
}

func TestProcessKnowledgeAnswer(t *testing.T) {
	agent := NewDashboardAgent(WithKnowledge(fakeAsker{}))
	handle := &fakeHandle{}
	msg := protocol.Message{Parts: []protocol.Part{protocol.DataPart{
		Type: "data",
		Data: map[string]interface{}{"question": "how to deploy", "analyze": true},
	}}}

	require.NoError(t, agent.Process(context.Background(), "t", msg, handle))
	assert.Contains(t, handle.last().text, "see runbook for how to deploy")
}
