package ticket

import (
	"fmt"
	"time"

	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/models"
)

const (
	maxSummaryLength        = 100
	maxLabels               = 3
	fallbackSummaryLength   = 80
	defaultEstimatedHours   = 4.0
	defaultConfidenceScore  = 70.0
	fallbackConfidenceScore = 50.0
	fallbackAnalysisNotes   = "Fallback: Could not parse response"
)

var (
	validIssueTypes = map[models.IssueType]bool{
		models.IssueBug:     true,
		models.IssueTask:    true,
		models.IssueStory:   true,
		models.IssueEpic:    true,
		models.IssueSubTask: true,
	}
	validPriorities = map[models.Priority]bool{
		models.PriorityHighest: true,
		models.PriorityHigh:    true,
		models.PriorityMedium:  true,
		models.PriorityLow:     true,
		models.PriorityLowest:  true,
	}
)

// BreakdownPayload is the untrusted object decoded from an LLM reply. Parent
// is nil when the reply has no parent object.
type BreakdownPayload struct {
	Parent        map[string]interface{}
	Tickets       []map[string]interface{}
	AnalysisNotes interface{}
}

// ParseBreakdown extracts the breakdown object embedded in text. It reports
// false when no usable object is found: no braces, malformed JSON, a non-object
// root, or an object with no parent and no tickets array. An explicit empty
// tickets array is a valid, empty breakdown.
func ParseBreakdown(text string) (BreakdownPayload, bool) {
	obj, ok := common.DecodeJSONObject(text)
	if !ok {
		return BreakdownPayload{}, false
	}

	var payload BreakdownPayload
	if parent, ok := common.ToObject(obj["parentTicket"]); ok {
		payload.Parent = parent
	}
	items, hasTickets := common.ToArray(obj["tickets"])
	if hasTickets {
		for _, item := range items {
			if t, ok := common.ToObject(item); ok {
				payload.Tickets = append(payload.Tickets, t)
			}
		}
	}
	payload.AnalysisNotes = obj["analysisNotes"]

	if payload.Parent == nil && !hasTickets {
		return BreakdownPayload{}, false
	}
	return payload, true
}

// ValidateBreakdown turns a parsed payload into a breakdown whose every field
// satisfies the draft constraints. The parent gets draft index 0 and the
// children 1..n. The total is recomputed from the children.
func ValidateBreakdown(payload BreakdownPayload, request string, now time.Time) models.TicketBreakdown {
	bd := models.TicketBreakdown{
		OriginalRequest: request,
		Tickets:         make([]models.TicketDraft, 0, len(payload.Tickets)),
		AnalysisNotes:   common.ToString(payload.AnalysisNotes),
	}
	if payload.Parent != nil {
		parent := validateDraft(payload.Parent)
		parent.DraftID = draftID(now, 0)
		bd.ParentTicket = &parent
	}
	for i, raw := range payload.Tickets {
		draft := validateDraft(raw)
		draft.DraftID = draftID(now, i+1)
		bd.Tickets = append(bd.Tickets, draft)
	}
	bd.TotalEstimatedHours = totalHours(bd.Tickets)
	return bd
}

// FallbackBreakdown is the breakdown used when the LLM reply is unusable: one
// Task carrying the whole request.
func FallbackBreakdown(request string, now time.Time) models.TicketBreakdown {
	draft := models.TicketDraft{
		DraftID:         draftID(now, 1),
		IssueType:       models.IssueTask,
		Summary:         common.Truncate(request, fallbackSummaryLength),
		Description:     request,
		Priority:        models.PriorityMedium,
		Labels:          []string{},
		EstimatedHours:  common.Float64Ptr(defaultEstimatedHours),
		ConfidenceScore: fallbackConfidenceScore,
	}
	return models.TicketBreakdown{
		OriginalRequest:     request,
		Tickets:             []models.TicketDraft{draft},
		TotalEstimatedHours: defaultEstimatedHours,
		AnalysisNotes:       fallbackAnalysisNotes,
	}
}

// IsFallback reports whether bd was produced by FallbackBreakdown.
func IsFallback(bd models.TicketBreakdown) bool {
	return bd.AnalysisNotes == fallbackAnalysisNotes
}

// BuildBreakdown parses and validates an LLM reply, falling back when it
// cannot be parsed.
func BuildBreakdown(reply, request string, now time.Time) models.TicketBreakdown {
	payload, ok := ParseBreakdown(reply)
	if !ok {
		return FallbackBreakdown(request, now)
	}
	return ValidateBreakdown(payload, request, now)
}

func validateDraft(raw map[string]interface{}) models.TicketDraft {
	draft := models.TicketDraft{
		IssueType:       models.IssueTask,
		Summary:         common.Truncate(common.ToString(raw["summary"]), maxSummaryLength),
		Description:     common.ToString(raw["description"]),
		Priority:        models.PriorityMedium,
		Labels:          []string{},
		EstimatedHours:  common.Float64Ptr(defaultEstimatedHours),
		ConfidenceScore: defaultConfidenceScore,
	}
	if s, ok := raw["issueType"].(string); ok && validIssueTypes[models.IssueType(s)] {
		draft.IssueType = models.IssueType(s)
	}
	if s, ok := raw["priority"].(string); ok && validPriorities[models.Priority(s)] {
		draft.Priority = models.Priority(s)
	}
	if labels, ok := common.ToArray(raw["labels"]); ok {
		if len(labels) > maxLabels {
			labels = labels[:maxLabels]
		}
		for _, l := range labels {
			draft.Labels = append(draft.Labels, common.ToString(l))
		}
	}
	if c, ok := raw["component"].(string); ok && c != "" {
		draft.Component = common.StringPtr(c)
	}
	if h, ok := common.ToFloat(raw["estimatedHours"]); ok {
		draft.EstimatedHours = common.Float64Ptr(h)
	}
	if c, ok := common.ToFloat(raw["confidenceScore"]); ok {
		draft.ConfidenceScore = clamp(c, 0, 100)
	}
	return draft
}

func totalHours(drafts []models.TicketDraft) float64 {
	var total float64
	for _, d := range drafts {
		total += d.Hours()
	}
	return total
}

func draftID(now time.Time, index int) string {
	return fmt.Sprintf("draft-%d-%d", now.UnixMilli(), index)
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
