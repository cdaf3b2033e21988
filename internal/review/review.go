// Package review runs AI code reviews of GitHub pull requests.
package review

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/github"
	"github.com/tuannvm/devhub/internal/logging"
	"github.com/tuannvm/devhub/internal/models"
)

const (
	maxDiffLength     = 15000
	defaultComplexity = 5
	unparsedSummary   = "Unable to parse review"
)

var validSeverities = map[string]bool{"error": true, "warning": true, "info": true}

// ParseReviewResponse converts an LLM review reply into a ReviewResult. A
// reply without a usable JSON object yields a neutral COMMENT review.
func ParseReviewResponse(text string) models.ReviewResult {
	obj, ok := common.DecodeJSONObject(text)
	if !ok {
		return unparsedReview()
	}

	result := models.ReviewResult{
		Summary:         common.ToString(obj["summary"]),
		Comments:        []models.ReviewComment{},
		Suggestions:     common.ToStringSlice(obj["suggestions"]),
		Recommendation:  models.RecommendComment,
		ComplexityScore: defaultComplexity,
	}
	if issues, ok := common.ToArray(obj["issues"]); ok {
		for _, item := range issues {
			issue, ok := common.ToObject(item)
			if !ok {
				continue
			}
			result.Comments = append(result.Comments, toComment(issue))
		}
	}
	switch rec := models.ReviewRecommendation(common.ToString(obj["recommendation"])); rec {
	case models.RecommendApprove, models.RecommendRequestChanges, models.RecommendComment:
		result.Recommendation = rec
	}
	if score, ok := common.ToFloat(obj["complexityScore"]); ok {
		result.ComplexityScore = clampScore(int(math.Round(score)))
	}
	return result
}

func unparsedReview() models.ReviewResult {
	return models.ReviewResult{
		Summary:         unparsedSummary,
		Comments:        []models.ReviewComment{},
		Suggestions:     []string{},
		Recommendation:  models.RecommendComment,
		ComplexityScore: defaultComplexity,
	}
}

func toComment(issue map[string]interface{}) models.ReviewComment {
	c := models.ReviewComment{
		Path:     common.ToString(issue["path"]),
		Body:     common.ToString(issue["message"]),
		Severity: "info",
	}
	if c.Body == "" {
		c.Body = common.ToString(issue["body"])
	}
	if line, ok := common.ToFloat(issue["line"]); ok && line > 0 {
		c.Line = int(line)
	}
	if sev := strings.ToLower(common.ToString(issue["severity"])); validSeverities[sev] {
		c.Severity = sev
	}
	return c
}

func clampScore(s int) int {
	if s < 1 {
		return 1
	}
	if s > 10 {
		return 10
	}
	return s
}

// CalculateComplexity scores a change set by its total added and deleted
// lines.
func CalculateComplexity(files []models.PRFile) int {
	total := 0
	for _, f := range files {
		total += f.Additions + f.Deletions
	}
	switch {
	case total > 500:
		return 10
	case total > 200:
		return 7
	case total > 100:
		return 5
	case total > 50:
		return 3
	default:
		return 1
	}
}

// PullRequests is the part of the GitHub client the reviewer uses.
type PullRequests interface {
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	GetPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]github.PullRequestFile, error)
	GetPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error)
	CreateReview(ctx context.Context, owner, repo string, number int, review github.ReviewRequest) (*github.Review, error)
}

// TextGenerator produces LLM completions.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Reviewer reviews pull requests with an LLM.
type Reviewer struct {
	prs PullRequests
	llm TextGenerator
	log *zap.SugaredLogger
}

// Option configures a Reviewer.
type Option func(*Reviewer)

// WithLogger sets the reviewer logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Reviewer) { r.log = l }
}

// NewReviewer creates a Reviewer.
func NewReviewer(prs PullRequests, llm TextGenerator, opts ...Option) *Reviewer {
	r := &Reviewer{prs: prs, llm: llm}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logging.OrDefault(r.log)
	return r
}

// ReviewURL fetches the pull request at prURL and reviews its diff.
func (r *Reviewer) ReviewURL(ctx context.Context, prURL string) (*models.PRReviewResponse, error) {
	owner, repo, number, err := github.ParsePRURL(prURL)
	if err != nil {
		return nil, err
	}
	return r.Review(ctx, owner, repo, number)
}

// Review fetches the pull request, its files and its diff concurrently and
// asks the LLM for a review.
func (r *Reviewer) Review(ctx context.Context, owner, repo string, number int) (*models.PRReviewResponse, error) {
	var (
		pr    *github.PullRequest
		files []github.PullRequestFile
		diff  string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		pr, err = r.prs.GetPullRequest(gctx, owner, repo, number)
		return err
	})
	g.Go(func() (err error) {
		files, err = r.prs.GetPullRequestFiles(gctx, owner, repo, number)
		return err
	})
	g.Go(func() (err error) {
		diff, err = r.prs.GetPullRequestDiff(gctx, owner, repo, number)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &models.PRReviewResponse{
		PR: models.PRInfo{
			Number:    pr.Number,
			Title:     pr.Title,
			Body:      pr.Body,
			State:     pr.State,
			Author:    pr.User.Login,
			URL:       pr.HTMLURL,
			Additions: pr.Additions,
			Deletions: pr.Deletions,
			Changed:   pr.ChangedFiles,
		},
		Files: make([]models.PRFile, 0, len(files)),
	}
	for _, f := range files {
		resp.Files = append(resp.Files, models.PRFile{
			Filename:  f.Filename,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Changes:   f.Changes,
		})
	}

	reply, err := r.llm.GenerateText(ctx, reviewPrompt(resp, diff))
	if err != nil {
		return nil, fmt.Errorf("failed to generate review: %w", err)
	}
	resp.Review = ParseReviewResponse(reply)
	if resp.Review.Summary == unparsedSummary {
		r.log.Warnf("Could not parse review of %s/%s#%d: %s", owner, repo, number, common.TruncateForLogging(reply))
		resp.Review.ComplexityScore = CalculateComplexity(resp.Files)
	}
	r.log.Infof("Reviewed %s/%s#%d: %s", owner, repo, number, resp.Review.Recommendation)
	return resp, nil
}

// PostReview submits result as a review. Comments with a path and a line are
// posted inline; the rest are folded into the review body.
func (r *Reviewer) PostReview(ctx context.Context, owner, repo string, number int, result models.ReviewResult) (*github.Review, error) {
	req := github.ReviewRequest{Event: github.ReviewEvent(result.Recommendation)}

	var b strings.Builder
	b.WriteString(result.Summary)
	var general []models.ReviewComment
	for _, c := range result.Comments {
		if c.Path != "" && c.Line > 0 {
			req.Comments = append(req.Comments, github.ReviewComment{
				Path: c.Path,
				Line: c.Line,
				Body: fmt.Sprintf("**%s**: %s", c.Severity, c.Body),
			})
			continue
		}
		general = append(general, c)
	}
	if len(general) > 0 {
		b.WriteString("\n\n### Findings\n")
		for _, c := range general {
			if c.Path != "" {
				fmt.Fprintf(&b, "- **%s** `%s`: %s\n", c.Severity, c.Path, c.Body)
			} else {
				fmt.Fprintf(&b, "- **%s**: %s\n", c.Severity, c.Body)
			}
		}
	}
	if len(result.Suggestions) > 0 {
		b.WriteString("\n\n### Suggestions\n")
		for _, s := range result.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	fmt.Fprintf(&b, "\n\nComplexity: %d/10", result.ComplexityScore)
	req.Body = b.String()

	return r.prs.CreateReview(ctx, owner, repo, number, req)
}

func reviewPrompt(pr *models.PRReviewResponse, diff string) string {
	var b strings.Builder
	b.WriteString("Review this pull request and provide feedback in JSON format:\n")
	b.WriteString(`{
  "summary": "Overall review summary",
  "issues": [{"path": "file.go", "line": 1, "message": "Issue description", "severity": "error|warning|info"}],
  "suggestions": ["Improvement suggestion"],
  "recommendation": "APPROVE|REQUEST_CHANGES|COMMENT",
  "complexityScore": 1-10
}

Focus on:
1. Security vulnerabilities
2. Performance issues
3. Code complexity (CC>10, CoC>15 are bad)
4. Best practices violations
5. Potential bugs

`)
	fmt.Fprintf(&b, "Title: %s\n", pr.PR.Title)
	if strings.TrimSpace(pr.PR.Body) != "" {
		fmt.Fprintf(&b, "Description:\n%s\n", pr.PR.Body)
	}
	b.WriteString("\nFiles:\n")
	for _, f := range pr.Files {
		fmt.Fprintf(&b, "- %s (%s, +%d -%d)\n", f.Filename, f.Status, f.Additions, f.Deletions)
	}
	b.WriteString("\nDiff:\n")
	b.WriteString(common.Truncate(diff, maxDiffLength))
	return b.String()
}
