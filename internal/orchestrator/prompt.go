package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/foreman/pkg/models"
)

// maxDependencyOutput caps how much of each dependency's output is quoted.
const maxDependencyOutput = 1000

// buildTaskPrompt renders the message handed to the agent for one task.
func buildTaskPrompt(p *models.Project, task *models.Task) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are working on the project %q.\n\n", p.Name)
	fmt.Fprintf(&sb, "## Task: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", task.Description)
	}

	if len(task.AcceptanceCriteria) > 0 {
		sb.WriteString("\n## Acceptance Criteria\n")
		for _, c := range task.AcceptanceCriteria {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}

	var deps []*models.Task
	for _, id := range task.DependsOn {
		if dep := p.Task(id); dep != nil && dep.Status == models.TaskStatusDone {
			deps = append(deps, dep)
		}
	}
	if len(deps) > 0 {
		sb.WriteString("\n## Completed Dependencies\n")
		for _, dep := range deps {
			fmt.Fprintf(&sb, "### %s\n", dep.Title)
			if out := truncate(dep.Output, maxDependencyOutput); out != "" {
				fmt.Fprintf(&sb, "%s\n", out)
			} else {
				sb.WriteString("(no output recorded)\n")
			}
		}
	}

	sb.WriteString("\nReport what you did and the result when finished.\n")
	return sb.String()
}
