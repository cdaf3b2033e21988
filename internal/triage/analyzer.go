package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/logging"
	"github.com/tuannvm/devhub/internal/models"
	"github.com/tuannvm/devhub/internal/query"
	"github.com/tuannvm/devhub/internal/search"
)

const (
	maxLogLength    = 5000
	maxKeywords     = 3
	relatedLimit    = 5
	unknownValue    = "Unknown"
	unanalyzedCause = "Unable to analyze"
)

var validSeverities = map[models.Severity]bool{
	models.SeverityCritical: true,
	models.SeverityHigh:     true,
	models.SeverityMedium:   true,
	models.SeverityLow:      true,
}

const analysisPrompt = `Analyze this error log and provide diagnosis in JSON format:
{
  "classification": {
    "type": "ErrorType (e.g., NullPointerException, ConnectionError)",
    "category": "Category (e.g., Runtime Error, Network Error)",
    "severity": "critical|high|medium|low"
  },
  "rootCause": "Explanation of probable root cause",
  "solutions": [
    {"title": "Solution title", "description": "Solution description", "code": "Example code if applicable"}
  ],
  "searchKeywords": ["keyword1", "keyword2"]
}

Error Log:
`

// Analyzer diagnoses error logs with an LLM and links similar Jira issues.
type Analyzer struct {
	LLM        search.TextGenerator
	Issues     search.IssueSearcher
	ProjectKey string
	Log        *zap.SugaredLogger
}

// Analyze asks the LLM for a diagnosis of errLog. An unparseable reply yields
// the Unknown defaults; the related issue lookup never fails the analysis.
func (a *Analyzer) Analyze(ctx context.Context, errLog string) (*models.ErrorAnalysis, error) {
	if strings.TrimSpace(errLog) == "" {
		return nil, errors.New("error log is required")
	}
	log := logging.OrDefault(a.Log)

	reply, err := a.LLM.GenerateText(ctx, analysisPrompt+common.Truncate(errLog, maxLogLength))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze error log: %w", err)
	}

	analysis, keywords := parseAnalysis(reply)
	if analysis.RootCause == unanalyzedCause {
		log.Warnf("Could not parse error analysis: %s", common.TruncateForLogging(reply))
	}
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	analysis.RelatedIssues = a.relatedIssues(ctx, strings.Join(keywords, " "), log)
	return analysis, nil
}

func (a *Analyzer) relatedIssues(ctx context.Context, keywords string, log *zap.SugaredLogger) []models.RelatedIssue {
	related := []models.RelatedIssue{}
	jql := query.BuildIssueTrackerQuery(keywords, query.IssueQueryOptions{ProjectKey: a.ProjectKey})
	if a.Issues == nil || jql == "" {
		return related
	}
	resp, err := a.Issues.SearchIssues(ctx, jql, relatedLimit)
	if err != nil {
		log.Warnf("Related issue search failed: %v", err)
		return related
	}
	for i, issue := range resp.Issues {
		related = append(related, models.RelatedIssue{
			Key:        issue.Key,
			Summary:    issue.Fields.Summary,
			Status:     issue.Fields.StatusName(),
			URL:        a.Issues.BrowseURL(issue.Key),
			Similarity: 95 - i*7,
		})
	}
	return related
}

func parseAnalysis(reply string) (*models.ErrorAnalysis, []string) {
	analysis := &models.ErrorAnalysis{
		ErrorType: unknownValue,
		Category:  unknownValue,
		Severity:  models.SeverityMedium,
		RootCause: unanalyzedCause,
		Solutions: []string{},
	}
	obj, ok := common.DecodeJSONObject(reply)
	if !ok {
		return analysis, nil
	}

	if cls, ok := common.ToObject(obj["classification"]); ok {
		if v := common.ToString(cls["type"]); v != "" {
			analysis.ErrorType = v
		}
		if v := common.ToString(cls["category"]); v != "" {
			analysis.Category = v
		}
		if sev := models.Severity(strings.ToLower(common.ToString(cls["severity"]))); validSeverities[sev] {
			analysis.Severity = sev
		}
	}
	if v := common.ToString(obj["rootCause"]); v != "" {
		analysis.RootCause = v
	}
	if items, ok := common.ToArray(obj["solutions"]); ok {
		for _, item := range items {
			if s := solutionText(item); s != "" {
				analysis.Solutions = append(analysis.Solutions, s)
			}
		}
	}
	return analysis, common.ToStringSlice(obj["searchKeywords"])
}

// solutionText flattens a {title, description, code} solution.
func solutionText(v interface{}) string {
	sol, ok := common.ToObject(v)
	if !ok {
		return strings.TrimSpace(common.ToString(v))
	}
	title := common.ToString(sol["title"])
	desc := common.ToString(sol["description"])
	text := title
	switch {
	case title != "" && desc != "":
		text = title + ": " + desc
	case title == "":
		text = desc
	}
	if code := common.ToString(sol["code"]); code != "" {
		text += "\n```\n" + code + "\n```"
	}
	return text
}
