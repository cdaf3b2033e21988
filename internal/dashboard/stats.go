package dashboard

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tuannvm/devhub/internal/jira"
	"github.com/tuannvm/devhub/internal/logging"
	"github.com/tuannvm/devhub/internal/models"
	"github.com/tuannvm/devhub/internal/query"
)

const (
	taskListLimit = 5
	dateLayout    = "2006-01-02"
	week          = 7 * 24 * time.Hour

	closedStatuses = "(Done, Closed)"
)

// IssueTracker is the part of the Jira client the dashboard reads from.
type IssueTracker interface {
	CountIssues(ctx context.Context, jql string) (int, error)
	SearchIssues(ctx context.Context, jql string, maxResults int) (*jira.SearchResponse, error)
	BrowseURL(key string) string
}

// StatsService computes dashboard numbers for one project.
type StatsService struct {
	Issues     IssueTracker
	ProjectKey string
	Log        *zap.SugaredLogger
}

// Stats counts this week's activity against the week before. All counts run
// concurrently; a failed count is logged and reported as 0.
func (s *StatsService) Stats(ctx context.Context, now time.Time) models.DashboardStats {
	now = now.UTC()
	weekAgo := now.Add(-week).Format(dateLayout)
	twoWeeksAgo := now.Add(-2 * week).Format(dateLayout)

	queries := []string{
		s.jql(fmt.Sprintf(`created >= "%s"`, weekAgo)),
		s.jql(fmt.Sprintf(`created >= "%s" AND created < "%s"`, twoWeeksAgo, weekAgo)),
		s.jql("status NOT IN " + closedStatuses),
		s.jql(fmt.Sprintf(`created < "%s" AND (resolved IS EMPTY OR resolved >= "%s")`, weekAgo, weekAgo)),
		s.jql(fmt.Sprintf(`status IN %s AND resolved >= "%s"`, closedStatuses, weekAgo)),
		s.jql(fmt.Sprintf(`status IN %s AND resolved >= "%s" AND resolved < "%s"`, closedStatuses, twoWeeksAgo, weekAgo)),
		s.jql(`status = "In Progress"`),
	}
	counts := make([]int, len(queries))

	log := logging.OrDefault(s.Log)
	var g errgroup.Group
	for i, jql := range queries {
		g.Go(func() error {
			n, err := s.Issues.CountIssues(ctx, jql)
			if err != nil {
				log.Warnf("Dashboard count failed for %q: %v", jql, err)
				return nil
			}
			counts[i] = n
			return nil
		})
	}
	_ = g.Wait()

	const (
		thisWeek = iota
		lastWeek
		open
		openLastWeek
		completed
		completedLastWeek
		inProgress
	)
	return models.DashboardStats{
		TicketsThisWeek:  counts[thisWeek],
		TicketsChange:    CalcChange(counts[thisWeek], counts[lastWeek]),
		OpenIssues:       counts[open],
		OpenChange:       CalcChange(counts[open], counts[openLastWeek]),
		CompletedTasks:   counts[completed],
		CompletedChange:  CalcChange(counts[completed], counts[completedLastWeek]),
		InProgressIssues: counts[inProgress],
	}
}

// Tasks returns the dashboard issue lists. A failed list is logged and left
// empty.
func (s *StatsService) Tasks(ctx context.Context) models.DashboardTasks {
	tasks := models.DashboardTasks{
		Recent:     []models.TaskSummary{},
		InProgress: []models.TaskSummary{},
		Completed:  []models.TaskSummary{},
		Open:       []models.TaskSummary{},
	}
	lists := []struct {
		jql  string
		dest *[]models.TaskSummary
	}{
		{s.jql("") + " ORDER BY updated DESC", &tasks.Recent},
		{s.jql(`status = "In Progress"`) + " ORDER BY updated DESC", &tasks.InProgress},
		{s.jql("status IN "+closedStatuses) + " ORDER BY resolved DESC", &tasks.Completed},
		{s.jql(`status = "To Do"`) + " ORDER BY priority DESC, created DESC", &tasks.Open},
	}

	log := logging.OrDefault(s.Log)
	var g errgroup.Group
	for _, l := range lists {
		jql := strings.TrimSpace(l.jql)
		g.Go(func() error {
			resp, err := s.Issues.SearchIssues(ctx, jql, taskListLimit)
			if err != nil {
				log.Warnf("Dashboard task list failed for %q: %v", jql, err)
				return nil
			}
			out := make([]models.TaskSummary, 0, len(resp.Issues))
			for _, issue := range resp.Issues {
				out = append(out, s.taskSummary(issue))
			}
			*l.dest = out
			return nil
		})
	}
	_ = g.Wait()
	return tasks
}

func (s *StatsService) taskSummary(issue jira.Issue) models.TaskSummary {
	t := models.TaskSummary{
		Key:      issue.Key,
		Summary:  issue.Fields.Summary,
		Status:   issue.Fields.StatusName(),
		Priority: issue.Fields.PriorityName(),
		Updated:  issue.Fields.Updated,
		URL:      s.Issues.BrowseURL(issue.Key),
	}
	if t.Status == "" {
		t.Status = "Unknown"
	}
	if t.Priority == "" {
		t.Priority = "Medium"
	}
	return t
}

// jql prefixes cond with the project restriction.
func (s *StatsService) jql(cond string) string {
	var parts []string
	if s.ProjectKey != "" {
		parts = append(parts, fmt.Sprintf(`project = "%s"`, query.EscapeStrict(s.ProjectKey)))
	}
	if cond != "" {
		parts = append(parts, cond)
	}
	return strings.Join(parts, " AND ")
}

// CalcChange formats the relative change from prev to cur as a signed
// whole percentage.
func CalcChange(cur, prev int) string {
	if prev == 0 {
		if cur > 0 {
			return "+100%"
		}
		return "0%"
	}
	change := int(math.Round(float64(cur-prev) / float64(prev) * 100))
	if change >= 0 {
		return fmt.Sprintf("+%d%%", change)
	}
	return fmt.Sprintf("%d%%", change)
}
