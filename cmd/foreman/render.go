package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ShayCichocki/foreman/internal/manager"
	"github.com/ShayCichocki/foreman/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Width(14)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	barDoneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	barTodoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

var healthStyles = map[models.HealthLevel]lipgloss.Style{
	models.HealthHealthy:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
	models.HealthAtRisk:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
	models.HealthCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

var statusOrder = []models.TaskStatus{
	models.TaskStatusPending,
	models.TaskStatusReady,
	models.TaskStatusInProgress,
	models.TaskStatusBlocked,
	models.TaskStatusDone,
	models.TaskStatusCancelled,
}

func progressBar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	return barDoneStyle.Render(strings.Repeat("█", filled)) +
		barTodoStyle.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf(" %3d%%", pct)
}

func field(label, value string) string {
	return labelStyle.Render(label) + value
}

func taskStatusString(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusDone:
		return color.GreenString(string(s))
	case models.TaskStatusInProgress:
		return color.CyanString(string(s))
	case models.TaskStatusBlocked:
		return color.RedString(string(s))
	case models.TaskStatusReady:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

func renderStatus(s *manager.StatusSnapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(s.Name) + dimStyle.Render("  "+s.ProjectID) + "\n\n")
	b.WriteString(field("Status", string(s.Status)) + "\n")
	b.WriteString(field("Plan version", fmt.Sprintf("%d", s.PlanVersion)) + "\n")
	b.WriteString(field("Progress", progressBar(s.CompletionPercentage, 30)) + "\n")

	counts := make([]string, 0, len(statusOrder))
	for _, st := range statusOrder {
		if n := s.TaskCounts[st]; n > 0 {
			counts = append(counts, fmt.Sprintf("%s %d", taskStatusString(st), n))
		}
	}
	b.WriteString(field("Tasks", fmt.Sprintf("%d  (%s)", s.TotalTasks, strings.Join(counts, ", "))) + "\n")

	monitoring := "off"
	switch {
	case s.Monitoring && s.Degraded:
		monitoring = color.YellowString("degraded (manual checks only)")
	case s.Monitoring:
		monitoring = "scheduled"
	}
	b.WriteString(field("Monitoring", monitoring) + "\n")
	if s.LastReport != nil {
		b.WriteString(field("Health", healthString(s.LastReport.OverallHealth)) + "\n")
	}

	if len(s.Milestones) > 0 {
		b.WriteString("\n" + titleStyle.Render("Milestones") + "\n")
		for _, ms := range s.Milestones {
			b.WriteString(fmt.Sprintf("  %-28s %s\n", truncate(ms.Name, 28), progressBar(ms.CompletionPercentage, 20)))
		}
	}
	if len(s.Executions) > 0 {
		b.WriteString("\n" + titleStyle.Render("Running") + "\n")
		for _, e := range s.Executions {
			b.WriteString(fmt.Sprintf("  %s on %s %s\n", e.TaskID, e.AgentID, dimStyle.Render("since "+e.DispatchedAt.Format("15:04:05"))))
		}
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderPlan(p *models.Project) string {
	if p.Plan == nil || len(p.Plan.Tasks) == 0 {
		return dimStyle.Render("(no tasks)")
	}
	titles := make(map[string]string, len(p.Plan.Tasks))
	for _, t := range p.Plan.Tasks {
		titles[t.ID] = t.Title
	}
	onPath := make(map[string]bool, len(p.Plan.CriticalPath))
	for _, id := range p.Plan.CriticalPath {
		onPath[id] = true
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Plan v%d", p.Plan.Version)) + "\n")
	for _, t := range p.Plan.Tasks {
		marker := " "
		if onPath[t.ID] {
			marker = color.MagentaString("*")
		}
		line := fmt.Sprintf("%s %-11s %-8s %-40s", marker, taskStatusString(t.Status), t.Priority, truncate(t.Title, 40))
		if t.EstimatedEffort != "" {
			line += " " + dimStyle.Render(t.EstimatedEffort)
		}
		b.WriteString(line + "\n")
		if len(t.DependsOn) > 0 {
			deps := make([]string, len(t.DependsOn))
			for i, id := range t.DependsOn {
				deps[i] = titles[id]
			}
			b.WriteString(dimStyle.Render("      after: "+strings.Join(deps, ", ")) + "\n")
		}
		b.WriteString(dimStyle.Render("      id: "+t.ID) + "\n")
	}
	b.WriteString(dimStyle.Render("* critical path"))
	return b.String()
}

func healthString(h models.HealthLevel) string {
	style, ok := healthStyles[h]
	if !ok {
		return string(h)
	}
	return style.Render(string(h))
}

func renderReport(r *models.HealthReport) string {
	var b strings.Builder
	b.WriteString(field("Health", healthString(r.OverallHealth)) + "\n")
	b.WriteString(field("Progress", progressBar(r.CompletionPercentage, 30)) + "\n")
	b.WriteString(field("Checked", r.Timestamp.Format("2006-01-02 15:04:05")) + "\n")

	findings := append([]models.Finding(nil), r.Findings...)
	rank := map[models.Severity]int{models.SeverityCritical: 0, models.SeverityWarning: 1, models.SeverityInfo: 2}
	sort.SliceStable(findings, func(i, j int) bool {
		return rank[findings[i].Severity] < rank[findings[j].Severity]
	})

	if len(findings) == 0 {
		b.WriteString("\n" + color.GreenString("No findings.") + "\n")
	} else {
		b.WriteString("\n" + titleStyle.Render("Findings") + "\n")
		for _, f := range findings {
			b.WriteString(fmt.Sprintf("  %s %s %s\n", severityString(f.Severity), dimStyle.Render(string(f.Type)), f.Message))
			if f.SuggestedAction != "" {
				b.WriteString(dimStyle.Render("      -> "+f.SuggestedAction) + "\n")
			}
		}
	}
	if len(r.Recommendations) > 0 {
		b.WriteString("\n" + titleStyle.Render("Recommendations") + "\n")
		for _, rec := range r.Recommendations {
			b.WriteString("  - " + rec + "\n")
		}
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func severityString(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return color.RedString("[critical]")
	case models.SeverityWarning:
		return color.YellowString("[warning]")
	default:
		return color.CyanString("[info]")
	}
}

func printHealthLine(r *models.HealthReport) {
	fmt.Printf("%s health %s, %d%% complete, %d finding(s)\n",
		dimStyle.Render(r.Timestamp.Format("15:04:05")), healthString(r.OverallHealth), r.CompletionPercentage, len(r.Findings))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
