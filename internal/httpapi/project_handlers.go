package httpapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"collate/internal/db"
)

type projectResponse struct {
	ProjectUUID string    `json:"project_uuid"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}

type sourceResponse struct {
	SourceUUID string    `json:"source_uuid"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

type createNamedRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListProjects(c echo.Context) error {
	projects, err := s.pool.ListProjects(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list projects failed")
		return internalError(c, "Failed to load projects")
	}

	items := make([]projectResponse, 0, len(projects))
	for _, project := range projects {
		items = append(items, buildProjectResponse(project))
	}
	return success(c, map[string]any{"items": items})
}

func (s *Server) handleCreateProject(c echo.Context) error {
	var req createNamedRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return failValidation(c, map[string]string{"name": "is required"})
	}

	project, err := s.pool.CreateProject(c.Request().Context(), name)
	if err != nil {
		s.logger.Error().Err(err).Str("name", name).Msg("create project failed")
		return internalError(c, "Failed to create project")
	}
	return successWithStatus(c, 201, map[string]any{"project": buildProjectResponse(project)})
}

func (s *Server) handleListSources(c echo.Context) error {
	project, ok, failure := s.loadProject(c)
	if !ok {
		return failure
	}

	sources, err := s.pool.ListSourcesByProject(c.Request().Context(), project.ProjectID)
	if err != nil {
		s.logger.Error().Err(err).Str("project_uuid", project.ProjectUUID).Msg("list sources failed")
		return internalError(c, "Failed to load sources")
	}

	items := make([]sourceResponse, 0, len(sources))
	for _, source := range sources {
		items = append(items, buildSourceResponse(source))
	}
	return success(c, map[string]any{"items": items})
}

func (s *Server) handleCreateSource(c echo.Context) error {
	project, ok, failure := s.loadProject(c)
	if !ok {
		return failure
	}

	var req createNamedRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return failValidation(c, map[string]string{"name": "is required"})
	}

	source, err := s.pool.CreateSource(c.Request().Context(), project.ProjectID, name)
	if err != nil {
		s.logger.Error().Err(err).Str("project_uuid", project.ProjectUUID).Str("name", name).Msg("create source failed")
		return internalError(c, "Failed to create source")
	}
	return successWithStatus(c, 201, map[string]any{"source": buildSourceResponse(source)})
}

func buildProjectResponse(project db.Project) projectResponse {
	return projectResponse{
		ProjectUUID: project.ProjectUUID,
		Name:        project.Name,
		CreatedAt:   project.CreatedAt.UTC(),
	}
}

func buildSourceResponse(source db.Source) sourceResponse {
	return sourceResponse{
		SourceUUID: source.SourceUUID,
		Name:       source.Name,
		CreatedAt:  source.CreatedAt.UTC(),
	}
}
