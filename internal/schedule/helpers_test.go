package schedule

import "github.com/ShayCichocki/foreman/pkg/models"

func monitorProject(id string) *models.Project {
	return &models.Project{ID: id, Name: id, Status: models.ProjectStatusActive, Settings: models.DefaultProjectSettings()}
}
