package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannvm/devhub/internal/github"
	"github.com/tuannvm/devhub/internal/models"
)

type fakePRs struct {
	filesErr error
	diff     string
	posted   github.ReviewRequest
	owner    string
	number   int
}

func (f *fakePRs) GetPullRequest(_ context.Context, owner, _ string, number int) (*github.PullRequest, error) {
	f.owner, f.number = owner, number
	pr := &github.PullRequest{Number: number, Title: "Add login rate limit", Body: "Limits attempts", State: "open", HTMLURL: "https://github.com/acme/api/pull/42", Additions: 30, Deletions: 5, ChangedFiles: 2}
	pr.User.Login = "octo"
	return pr, nil
}

func (f *fakePRs) GetPullRequestFiles(context.Context, string, string, int) ([]github.PullRequestFile, error) {
	if f.filesErr != nil {
		return nil, f.filesErr
	}
	return []github.PullRequestFile{
		{Filename: "auth/limit.go", Status: "added", Additions: 25, Deletions: 0, Changes: 25},
		{Filename: "auth/login.go", Status: "modified", Additions: 5, Deletions: 5, Changes: 10},
	}, nil
}

func (f *fakePRs) GetPullRequestDiff(context.Context, string, string, int) (string, error) {
	return f.diff, nil
}

func (f *fakePRs) CreateReview(_ context.Context, _, _ string, _ int, r github.ReviewRequest) (*github.Review, error) {
	f.posted = r
	return &github.Review{ID: 9, State: string(r.Event)}, nil
}

type fakeLLM struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeLLM) GenerateText(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestParseReviewResponse(t *testing.T) {
	got := ParseReviewResponse("Here is my review:\n```json\n" + `{
		"summary": "Looks mostly fine",
		"issues": [
			{"path": "auth/limit.go", "line": 12, "message": "Unbounded map", "severity": "WARNING"},
			"not an object",
			{"path": "auth/login.go", "message": "Missing test", "severity": "critical"}
		],
		"suggestions": ["Add a TTL", 3],
		"recommendation": "REQUEST_CHANGES",
		"complexityScore": 7.6
	}` + "\n```")

	assert.Equal(t, "Looks mostly fine", got.Summary)
	assert.Equal(t, models.RecommendRequestChanges, got.Recommendation)
	assert.Equal(t, 8, got.ComplexityScore)
	assert.Equal(t, []string{"Add a TTL", "3"}, got.Suggestions)
	assert.Equal(t, []models.ReviewComment{
		{Path: "auth/limit.go", Line: 12, Body: "Unbounded map", Severity: "warning"},
		{Path: "auth/login.go", Body: "Missing test", Severity: "info"},
	}, got.Comments)
}

func TestParseReviewResponseDefaults(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		summary        string
		recommendation models.ReviewRecommendation
		score          int
	}{
		{"not json", "LGTM!", "Unable to parse review", models.RecommendComment, 5},
		{"invalid recommendation", `{"summary":"ok","recommendation":"MERGE"}`, "ok", models.RecommendComment, 5},
		{"string score", `{"summary":"ok","recommendation":"APPROVE","complexityScore":"high"}`, "ok", models.RecommendApprove, 5},
		{"score above range", `{"complexityScore":42}`, "", models.RecommendComment, 10},
		{"score below range", `{"complexityScore":-3}`, "", models.RecommendComment, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReviewResponse(tt.text)
			assert.Equal(t, tt.summary, got.Summary)
			assert.Equal(t, tt.recommendation, got.Recommendation)
			assert.Equal(t, tt.score, got.ComplexityScore)
			assert.NotNil(t, got.Comments)
			assert.NotNil(t, got.Suggestions)
		})
	}
}

func TestCalculateComplexity(t *testing.T) {
	tests := []struct {
		changed int
		want    int
	}{
		{0, 1}, {50, 1}, {51, 3}, {100, 3}, {101, 5}, {200, 5}, {201, 7}, {500, 7}, {501, 10},
	}
	for _, tt := range tests {
		files := []models.PRFile{{Additions: tt.changed / 2}, {Deletions: tt.changed - tt.changed/2}}
		assert.Equal(t, tt.want, CalculateComplexity(files), "changed lines %d", tt.changed)
	}
}

func TestReviewURL(t *testing.T) {
	prs := &fakePRs{diff: strings.Repeat("+", 20000)}
	llm := &fakeLLM{reply: `{"summary":"Good change","issues":[],"recommendation":"APPROVE","complexityScore":2}`}
	r := NewReviewer(prs, llm)

	got, err := r.ReviewURL(context.Background(), "https://github.com/acme/api/pull/42")
	require.NoError(t, err)

	assert.Equal(t, "acme", prs.owner)
	assert.Equal(t, 42, prs.number)
	assert.Equal(t, models.PRInfo{
		Number: 42, Title: "Add login rate limit", Body: "Limits attempts", State: "open", Author: "octo",
		URL: "https://github.com/acme/api/pull/42", Additions: 30, Deletions: 5, Changed: 2,
	}, got.PR)
	require.Len(t, got.Files, 2)
	assert.Equal(t, "auth/limit.go", got.Files[0].Filename)
	assert.Equal(t, models.RecommendApprove, got.Review.Recommendation)
	assert.Equal(t, 2, got.Review.ComplexityScore)

	assert.Contains(t, llm.prompt, "Title: Add login rate limit")
	assert.Contains(t, llm.prompt, "- auth/login.go (modified, +5 -5)")
	diff := llm.prompt[strings.Index(llm.prompt, "Diff:\n")+len("Diff:\n"):]
	assert.Len(t, diff, 15000)
}

func TestReviewUnparsedUsesHeuristicComplexity(t *testing.T) {
	r := NewReviewer(&fakePRs{}, &fakeLLM{reply: "I could not review this"})
	got, err := r.ReviewURL(context.Background(), "https://github.com/acme/api/pull/42")
	require.NoError(t, err)
	assert.Equal(t, "Unable to parse review", got.Review.Summary)
	// 40 changed lines.
	assert.Equal(t, 1, got.Review.ComplexityScore)
}

func TestReviewErrors(t *testing.T) {
	_, err := NewReviewer(&fakePRs{}, &fakeLLM{}).ReviewURL(context.Background(), "https://gitlab.com/acme/api/merge_requests/1")
	assert.Error(t, err)

	filesErr := errors.New("GitHub files: 404")
	_, err = NewReviewer(&fakePRs{filesErr: filesErr}, &fakeLLM{}).ReviewURL(context.Background(), "https://github.com/acme/api/pull/1")
	assert.ErrorIs(t, err, filesErr)

	llmErr := errors.New("quota")
	_, err = NewReviewer(&fakePRs{}, &fakeLLM{err: llmErr}).ReviewURL(context.Background(), "https://github.com/acme/api/pull/1")
	assert.ErrorIs(t, err, llmErr)
}

func TestPostReview(t *testing.T) {
	prs := &fakePRs{}
	r := NewReviewer(prs, &fakeLLM{})

	review, err := r.PostReview(context.Background(), "acme", "api", 42, models.ReviewResult{
		Summary: "Needs work",
		Comments: []models.ReviewComment{
			{Path: "auth/limit.go", Line: 12, Body: "Unbounded map", Severity: "warning"},
			{Path: "auth/login.go", Body: "Missing test", Severity: "info"},
			{Body: "Consider splitting the PR", Severity: "info"},
		},
		Suggestions:     []string{"Add a TTL"},
		Recommendation:  models.RecommendRequestChanges,
		ComplexityScore: 6,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), review.ID)

	assert.Equal(t, github.EventRequestChanges, prs.posted.Event)
	assert.Equal(t, []github.ReviewComment{{Path: "auth/limit.go", Line: 12, Body: "**warning**: Unbounded map"}}, prs.posted.Comments)
	assert.Equal(t, "Needs work\n\n### Findings\n"+
		"- **info** `auth/login.go`: Missing test\n"+
		"- **info**: Consider splitting the PR\n"+
		"\n\n### Suggestions\n- Add a TTL\n"+
		"\n\nComplexity: 6/10", prs.posted.Body)
}
