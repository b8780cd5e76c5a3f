package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"collate/internal/db"
	"collate/internal/projlock"
)

type jobResponse struct {
	JobUUID         string     `json:"job_uuid"`
	Status          string     `json:"status"`
	RecordsBefore   *int       `json:"records_before,omitempty"`
	RecordsAfter    *int       `json:"records_after,omitempty"`
	Merges          *int       `json:"merges,omitempty"`
	ClustersCreated *int       `json:"clusters_created,omitempty"`
	ClustersDeleted *int       `json:"clusters_deleted,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

type createJobRequest struct {
	StrategyUUID string `json:"strategy_uuid"`
}

func (s *Server) handleCreateJob(c echo.Context) error {
	project, ok, failure := s.loadProject(c)
	if !ok {
		return failure
	}

	var req createJobRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	strategyUUID := strings.TrimSpace(req.StrategyUUID)
	if strategyUUID == "" {
		return failValidation(c, map[string]string{"strategy_uuid": "is required"})
	}

	strategy, err := s.pool.GetMatchStrategyByUUID(c.Request().Context(), project.ProjectID, strategyUUID)
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Strategy not found")
		}
		s.logger.Error().Err(err).Str("strategy_uuid", strategyUUID).Msg("load strategy failed")
		return internalError(c, "Failed to load strategy")
	}

	job, err := s.clusters.Submit(c.Request().Context(), project, strategy)
	if err != nil {
		if errors.Is(err, projlock.ErrProjectLocked) {
			return failConflict(c, "Project is locked by another job")
		}
		s.logger.Error().Err(err).Str("project_uuid", project.ProjectUUID).Msg("submit clustering job failed")
		return internalError(c, "Failed to submit clustering job")
	}

	return successWithStatus(c, http.StatusAccepted, map[string]any{"job": buildJobResponse(job)})
}

func (s *Server) handleListJobs(c echo.Context) error {
	project, ok, failure := s.loadProject(c)
	if !ok {
		return failure
	}

	jobs, err := s.pool.ListClusteringJobs(c.Request().Context(), project.ProjectID)
	if err != nil {
		s.logger.Error().Err(err).Str("project_uuid", project.ProjectUUID).Msg("list jobs failed")
		return internalError(c, "Failed to load jobs")
	}

	items := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, buildJobResponse(job))
	}
	return success(c, map[string]any{"items": items})
}

func (s *Server) handleJobDetail(c echo.Context) error {
	project, ok, failure := s.loadProject(c)
	if !ok {
		return failure
	}

	job, found, failure := s.loadJob(c, project)
	if !found {
		return failure
	}
	return success(c, map[string]any{"job": buildJobResponse(job)})
}

func (s *Server) handleJobAudit(c echo.Context) error {
	project, ok, failure := s.loadProject(c)
	if !ok {
		return failure
	}

	job, found, failure := s.loadJob(c, project)
	if !found {
		return failure
	}

	limit, offset, err := parsePagination(c)
	if err != nil {
		return failValidation(c, map[string]string{"pagination": err.Error()})
	}

	entries, err := s.pool.ListAuditEntriesByJob(c.Request().Context(), job.JobID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("job_uuid", job.JobUUID).Msg("list audit entries failed")
		return internalError(c, "Failed to load audit entries")
	}

	return success(c, map[string]any{
		"job_uuid": job.JobUUID,
		"items":    entries,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) loadJob(c echo.Context, project db.Project) (db.ClusteringJob, bool, error) {
	jobUUID := strings.TrimSpace(c.Param("job_uuid"))
	if jobUUID == "" {
		return db.ClusteringJob{}, false, failValidation(c, map[string]string{"job_uuid": "is required"})
	}

	job, err := s.pool.GetClusteringJobByUUID(c.Request().Context(), project.ProjectID, jobUUID)
	if err != nil {
		if db.IsNoRows(err) {
			return db.ClusteringJob{}, false, failNotFound(c, "Job not found")
		}
		s.logger.Error().Err(err).Str("job_uuid", jobUUID).Msg("load job failed")
		return db.ClusteringJob{}, false, internalError(c, "Failed to load job")
	}
	return job, true, nil
}

func buildJobResponse(job db.ClusteringJob) jobResponse {
	return jobResponse{
		JobUUID:         job.JobUUID,
		Status:          job.Status,
		RecordsBefore:   job.RecordsBefore,
		RecordsAfter:    job.RecordsAfter,
		Merges:          job.Merges,
		ClustersCreated: job.ClustersCreated,
		ClustersDeleted: job.ClustersDeleted,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       job.CreatedAt.UTC(),
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
	}
}
