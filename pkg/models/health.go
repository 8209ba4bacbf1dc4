package models

import "time"

// HealthLevel is the overall health verdict of a project.
type HealthLevel string

const (
	HealthHealthy  HealthLevel = "healthy"
	HealthAtRisk   HealthLevel = "at_risk"
	HealthCritical HealthLevel = "critical"
)

// FindingType classifies a health finding.
type FindingType string

const (
	FindingStaleTask         FindingType = "stale_task"
	FindingBlocker           FindingType = "blocker"
	FindingCriticalPathDrift FindingType = "critical_path_drift"
	FindingAgentError        FindingType = "agent_error"
)

// Valid returns true if the finding type is a known value.
func (t FindingType) Valid() bool {
	switch t {
	case FindingStaleTask, FindingBlocker, FindingCriticalPathDrift, FindingAgentError:
		return true
	default:
		return false
	}
}

// Severity grades a finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Valid returns true if the severity is a known value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// Finding is one reported issue in a health report.
type Finding struct {
	Type            FindingType `json:"type"`
	Severity        Severity    `json:"severity"`
	TaskID          string      `json:"task_id,omitempty"`
	Message         string      `json:"message"`
	SuggestedAction string      `json:"suggested_action,omitempty"`
}

// HealthReport is the ephemeral result of one health check.
type HealthReport struct {
	ProjectID            string      `json:"project_id"`
	Timestamp            time.Time   `json:"timestamp"`
	OverallHealth        HealthLevel `json:"overall_health"`
	CompletionPercentage int         `json:"completion_percentage"`
	Findings             []Finding   `json:"findings"`
	Recommendations      []string    `json:"recommendations"`
}

// CountBySeverity returns how many findings carry the given severity.
func (r *HealthReport) CountBySeverity(s Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}
