package planner

import (
	"encoding/json"
	"strings"
)

// stringList accepts either a JSON array of strings or a single string.
// Models alternate between the two for list-like fields.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	single = strings.TrimSpace(single)
	if single == "" {
		*s = nil
		return nil
	}
	*s = []string{single}
	return nil
}

type analysisResponse struct {
	Requirements []string `json:"requirements"`
	Risks        []string `json:"risks"`
	SkillDomains []string `json:"skill_domains"`
	Constraints  []string `json:"constraints"`
}

// plannedTask is one task as the model describes it. Dependencies are titles.
type plannedTask struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Priority           string     `json:"priority"`
	EstimatedEffort    string     `json:"estimated_effort"`
	DependsOn          stringList `json:"depends_on"`
	Tags               stringList `json:"tags"`
	AcceptanceCriteria stringList `json:"acceptance_criteria"`
}

type plannedMilestone struct {
	Name  string        `json:"name"`
	Tasks []plannedTask `json:"tasks"`
}

type decompositionResponse struct {
	Milestones []plannedMilestone `json:"milestones"`
	// Tasks holds tasks the model emitted outside any milestone.
	Tasks []plannedTask `json:"tasks"`
}

type validationResponse struct {
	UncoveredGoals []string `json:"uncovered_goals"`
	VagueCriteria  []struct {
		Task  string `json:"task"`
		Issue string `json:"issue"`
	} `json:"vague_criteria"`
	Suggestions []string `json:"suggestions"`
}

type estimateResponse struct {
	Estimates []struct {
		ID              string `json:"id"`
		EstimatedEffort string `json:"estimated_effort"`
	} `json:"estimates"`
}

type prioritizeResponse struct {
	Priorities []struct {
		ID       string `json:"id"`
		Priority string `json:"priority"`
	} `json:"priorities"`
}

type replanResponse struct {
	Tasks []plannedTask `json:"tasks"`
}
