package monitor

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ShayCichocki/foreman/internal/events"
	"github.com/ShayCichocki/foreman/internal/llm"
	"github.com/ShayCichocki/foreman/pkg/models"
)

const assessmentTemperature = 0.2

const assessmentSystemPrompt = `You assess the health of software projects. Given the task list and the automatic findings, report additional risks and concrete recommendations.

Return ONLY a JSON object with this exact structure:
{
  "findings": [
    {
      "type": "stale_task|blocker|critical_path_drift|agent_error",
      "severity": "info|warning|critical",
      "task_id": "optional task id",
      "message": "what is wrong",
      "suggested_action": "what to do"
    }
  ],
  "recommendations": ["recommendation"]
}`

type assessmentResponse struct {
	Findings        []models.Finding `json:"findings"`
	Recommendations []string         `json:"recommendations"`
}

// RunHealthCheck evaluates p and returns a report. It updates p's
// milestones in place; the caller persists the project. When the project is
// critical and auto-replan is enabled, a replan request is published.
func (m *Monitor) RunHealthCheck(ctx context.Context, p *models.Project) *models.HealthReport {
	now := m.now()
	report := &models.HealthReport{
		ProjectID:            p.ID,
		Timestamp:            now,
		CompletionPercentage: CompletionPercentage(p.Tasks()),
		Findings:             m.deterministicFindings(p),
		Recommendations:      []string{},
	}

	extra, recs := m.assess(ctx, p, report.Findings)
	report.Findings = append(report.Findings, extra...)
	report.Recommendations = append(report.Recommendations, recs...)
	report.OverallHealth = m.classify(report)

	m.RollUpMilestones(p)

	if report.OverallHealth == models.HealthCritical && p.Settings.AutoReplan {
		var reasons []string
		for _, f := range report.Findings {
			if f.Severity == models.SeverityCritical {
				reasons = append(reasons, f.Message)
			}
		}
		m.requestReplan(ReplanRequest{ProjectID: p.ID, Reason: strings.Join(reasons, "; ")})
	}

	m.mu.Lock()
	m.reports[p.ID] = report
	m.mu.Unlock()

	m.emitter.Emit(events.Event{
		Type:      events.EventProjectHealthUpdate,
		ProjectID: p.ID,
		Message:   string(report.OverallHealth),
		Payload:   report,
		Timestamp: now,
	})
	m.logger.Log("[monitor] %s: %s, %d%% complete, %d findings",
		p.ID, report.OverallHealth, report.CompletionPercentage, len(report.Findings))
	return report
}

// classify derives overall health from the findings.
func (m *Monitor) classify(r *models.HealthReport) models.HealthLevel {
	if r.CountBySeverity(models.SeverityCritical) > 0 {
		return models.HealthCritical
	}
	if r.CountBySeverity(models.SeverityWarning) >= m.atRiskThreshold {
		return models.HealthAtRisk
	}
	return models.HealthHealthy
}

// deterministicFindings reports stale in-progress tasks and unresolved
// blocked tasks.
func (m *Monitor) deterministicFindings(p *models.Project) []models.Finding {
	now := m.now()
	findings := []models.Finding{}

	for _, t := range p.Tasks() {
		switch t.Status {
		case models.TaskStatusInProgress:
			if t.StartedAt == nil {
				continue
			}
			estimate, ok := ParseEffort(t.EstimatedEffort)
			if !ok {
				continue
			}
			elapsed := now.Sub(*t.StartedAt)
			limit := timeMultiple(estimate, m.staleFactor)
			if elapsed > limit {
				findings = append(findings, models.Finding{
					Type:     models.FindingStaleTask,
					Severity: models.SeverityWarning,
					TaskID:   t.ID,
					Message: fmt.Sprintf("%q has run %s against an estimate of %s",
						t.Title, elapsed.Round(minuteRound), t.EstimatedEffort),
					SuggestedAction: "Check on the agent, or cancel the task and reassign it.",
				})
			}

		case models.TaskStatusBlocked:
			if t.HasNoteOfType(models.NoteTypeResolution) {
				continue
			}
			msg := fmt.Sprintf("%q is blocked", t.Title)
			if reason := lastNoteOfType(t, models.NoteTypeBlocker); reason != "" {
				msg += ": " + reason
			}
			findings = append(findings, models.Finding{
				Type:            models.FindingBlocker,
				Severity:        models.SeverityCritical,
				TaskID:          t.ID,
				Message:         msg,
				SuggestedAction: "Resolve the blocker or replan the remaining work.",
			})
		}
	}
	return findings
}

// assess asks the planning model for extra findings and recommendations.
// Any failure yields nothing.
func (m *Monitor) assess(ctx context.Context, p *models.Project, findings []models.Finding) ([]models.Finding, []string) {
	if m.llm == nil {
		return nil, nil
	}

	resp, err := m.llm.Complete(ctx, llm.JSONRequest(assessmentSystemPrompt, assessmentBrief(p, findings), assessmentTemperature))
	if err != nil {
		m.logger.Log("[monitor] %s: assessment unavailable: %v", p.ID, err)
		return nil, nil
	}
	parsed := llm.Decode[assessmentResponse](resp.Content)
	if parsed.Malformed() {
		m.logger.Log("[monitor] %s: assessment unusable: %v", p.ID, parsed.Err)
		return nil, nil
	}

	var extra []models.Finding
	for _, f := range parsed.Value.Findings {
		if !f.Type.Valid() || !f.Severity.Valid() || strings.TrimSpace(f.Message) == "" {
			continue
		}
		if f.TaskID != "" && p.Task(f.TaskID) == nil {
			f.TaskID = ""
		}
		extra = append(extra, f)
	}
	var recs []string
	for _, r := range parsed.Value.Recommendations {
		if r = strings.TrimSpace(r); r != "" {
			recs = append(recs, r)
		}
	}
	return extra, recs
}

func assessmentBrief(p *models.Project, findings []models.Finding) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s (%s)\n\nTasks:\n", p.Name, p.Status)
	for _, t := range p.Tasks() {
		fmt.Fprintf(&sb, "- id=%s %q status=%s priority=%s effort=%s\n",
			t.ID, t.Title, t.Status, t.Priority, t.EstimatedEffort)
	}
	if p.Plan != nil && len(p.Plan.CriticalPath) > 0 {
		fmt.Fprintf(&sb, "\nCritical path: %s\n", strings.Join(p.Plan.CriticalPath, " -> "))
	}
	if len(findings) > 0 {
		sb.WriteString("\nAutomatic findings:\n")
		for _, f := range findings {
			fmt.Fprintf(&sb, "- [%s/%s] %s\n", f.Severity, f.Type, f.Message)
		}
	}
	return sb.String()
}

// RollUpMilestones recomputes completion for every milestone of p and
// advances their status. Status only moves forward. A milestone that
// reaches completed emits a milestone:reached event and, when
// notifyOnMilestone is set, a notification. It returns the ids of
// milestones completed by this call.
func (m *Monitor) RollUpMilestones(p *models.Project) []string {
	var reached []string
	for i := range p.Milestones {
		ms := &p.Milestones[i]
		done, total := milestoneProgress(p, ms.TaskIDs)
		ms.CompletionPercentage = 0
		if total > 0 {
			ms.CompletionPercentage = percent(done, total)
		}

		switch {
		case ms.Status == models.MilestoneStatusCompleted:
			continue
		case total > 0 && done == total:
			ms.Status = models.MilestoneStatusCompleted
			reached = append(reached, ms.ID)
			m.milestoneReached(p, ms)
		case done > 0:
			ms.Status = models.MilestoneStatusInProgress
		}
	}
	return reached
}

func (m *Monitor) milestoneReached(p *models.Project, ms *models.Milestone) {
	m.emitter.Emit(events.Event{
		Type:        events.EventMilestoneReached,
		ProjectID:   p.ID,
		MilestoneID: ms.ID,
		Message:     ms.Name,
		Timestamp:   m.now(),
	})
	if p.Settings.NotifyOnMilestone {
		m.notifier.Notify(events.Notification{
			Title:    "Milestone reached",
			Message:  fmt.Sprintf("%s: %s is complete", p.Name, ms.Name),
			Type:     events.NotificationSuccess,
			Priority: "normal",
			Category: "milestone",
			Source:   "foreman",
		})
	}
	m.logger.Log("[monitor] %s: milestone %q reached", p.ID, ms.Name)
}

// CompletionPercentage returns the rounded share of done tasks.
func CompletionPercentage(tasks []*models.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range tasks {
		if t.Status == models.TaskStatusDone {
			done++
		}
	}
	return percent(done, len(tasks))
}

// milestoneProgress counts the done tasks among taskIDs.
func milestoneProgress(p *models.Project, taskIDs []string) (done, total int) {
	for _, id := range taskIDs {
		if t := p.Task(id); t != nil && t.Status == models.TaskStatusDone {
			done++
		}
	}
	return done, len(taskIDs)
}

// percent rounds n/total to a whole percentage. Only n == total yields 100.
func percent(n, total int) int {
	pct := int(math.Round(float64(n) * 100 / float64(total)))
	if pct == 100 && n < total {
		pct = 99
	}
	return pct
}

func lastNoteOfType(t *models.Task, noteType models.NoteType) string {
	for i := len(t.Notes) - 1; i >= 0; i-- {
		if t.Notes[i].Type == noteType {
			return t.Notes[i].Content
		}
	}
	return ""
}
