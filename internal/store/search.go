package store

import (
	"context"
	"strings"

	"github.com/ShayCichocki/foreman/pkg/models"
)

// SemanticSearcher ranks task ids of a project by relevance to a query.
type SemanticSearcher interface {
	SearchTasks(ctx context.Context, projectID, query string, limit int) ([]string, error)
}

// FindTasks returns tasks whose title, description, tags or acceptance
// criteria contain query, case-insensitively. Subtasks are searched
// depth-first after their parent. An empty query matches nothing.
func FindTasks(p *models.Project, query string) []*models.Task {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var matches []*models.Task
	var walk func(tasks []*models.Task)
	walk = func(tasks []*models.Task) {
		for _, t := range tasks {
			if taskMatches(t, q) {
				matches = append(matches, t)
			}
			walk(t.Subtasks)
		}
	}
	walk(p.Tasks())
	return matches
}

func taskMatches(t *models.Task, q string) bool {
	if strings.Contains(strings.ToLower(t.Title), q) ||
		strings.Contains(strings.ToLower(t.Description), q) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	for _, c := range t.AcceptanceCriteria {
		if strings.Contains(strings.ToLower(c), q) {
			return true
		}
	}
	return false
}

// FindTaskByID searches the plan, including subtasks, for id.
func FindTaskByID(p *models.Project, id string) *models.Task {
	var find func(tasks []*models.Task) *models.Task
	find = func(tasks []*models.Task) *models.Task {
		for _, t := range tasks {
			if t.ID == id {
				return t
			}
			if found := find(t.Subtasks); found != nil {
				return found
			}
		}
		return nil
	}
	return find(p.Tasks())
}

// SearchTasks asks the semantic searcher first and falls back to FindTasks
// when it is absent, fails, or returns nothing usable. limit <= 0 means
// no limit.
func (s *Store) SearchTasks(ctx context.Context, p *models.Project, query string, limit int) []*models.Task {
	if s.searcher != nil {
		ids, err := s.searcher.SearchTasks(ctx, p.ID, query, limit)
		if err != nil {
			s.logger.Log("[store] semantic search failed for %s, falling back to text search: %v", p.ID, err)
		}
		var tasks []*models.Task
		for _, id := range ids {
			if t := FindTaskByID(p, id); t != nil {
				tasks = append(tasks, t)
			}
		}
		if len(tasks) > 0 {
			return truncate(tasks, limit)
		}
	}
	return truncate(FindTasks(p, query), limit)
}

func truncate(tasks []*models.Task, limit int) []*models.Task {
	if limit > 0 && len(tasks) > limit {
		return tasks[:limit]
	}
	return tasks
}
