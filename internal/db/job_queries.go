package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

const maxJobErrorLength = 4000

// JobStats carries the counters persisted when a clustering job completes.
type JobStats struct {
	RecordsBefore   int
	RecordsAfter    int
	Merges          int
	ClustersCreated int
	ClustersDeleted int
}

func (p *Pool) CreateClusteringJob(ctx context.Context, projectID, strategyID int64) (ClusteringJob, error) {
	const q = `
INSERT INTO dedup.clustering_jobs (project_id, strategy_id, status)
VALUES ($1, $2, 'pending')
RETURNING job_id, job_uuid, project_id, strategy_id, status, created_at
`
	var job ClusteringJob
	err := p.QueryRow(ctx, q, projectID, strategyID).Scan(
		&job.JobID,
		&job.JobUUID,
		&job.ProjectID,
		&job.StrategyID,
		&job.Status,
		&job.CreatedAt,
	)
	if err != nil {
		return ClusteringJob{}, fmt.Errorf("insert clustering job: %w", err)
	}
	return job, nil
}

func (p *Pool) MarkJobRunning(ctx context.Context, jobID int64, startedAt time.Time) error {
	const q = `
UPDATE dedup.clustering_jobs
SET status = 'running', started_at = $2
WHERE job_id = $1 AND status = 'pending'
`
	tag, err := p.Exec(ctx, q, jobID, startedAt)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %d is not pending", jobID)
	}
	return nil
}

// MarkJobCompleted runs inside the clustering transaction so the stats and
// the mutations they describe commit as one unit.
func MarkJobCompleted(ctx context.Context, q Querier, jobID int64, stats JobStats, completedAt time.Time) error {
	const query = `
UPDATE dedup.clustering_jobs
SET
	status = 'completed',
	records_before = $2,
	records_after = $3,
	merges = $4,
	clusters_created = $5,
	clusters_deleted = $6,
	completed_at = $7,
	error_message = NULL
WHERE job_id = $1
`
	_, err := q.Exec(ctx, query,
		jobID,
		stats.RecordsBefore,
		stats.RecordsAfter,
		stats.Merges,
		stats.ClustersCreated,
		stats.ClustersDeleted,
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	return nil
}

func (p *Pool) MarkJobFailed(ctx context.Context, jobID int64, cause error, completedAt time.Time) error {
	const q = `
UPDATE dedup.clustering_jobs
SET status = 'failed', error_message = $2, completed_at = $3
WHERE job_id = $1
`
	msg := "clustering failed"
	if cause != nil {
		msg = strings.TrimSpace(cause.Error())
	}
	if len(msg) > maxJobErrorLength {
		msg = msg[:maxJobErrorLength]
	}

	_, err := p.Exec(ctx, q, jobID, msg, completedAt)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

func (p *Pool) GetClusteringJobByUUID(ctx context.Context, projectID int64, jobUUID string) (ClusteringJob, error) {
	const q = `
SELECT
	job_id, job_uuid, project_id, strategy_id, status,
	records_before, records_after, merges, clusters_created, clusters_deleted,
	error_message, created_at, started_at, completed_at
FROM dedup.clustering_jobs
WHERE project_id = $1 AND job_uuid = $2
`
	var job ClusteringJob
	err := p.QueryRow(ctx, q, projectID, jobUUID).Scan(
		&job.JobID,
		&job.JobUUID,
		&job.ProjectID,
		&job.StrategyID,
		&job.Status,
		&job.RecordsBefore,
		&job.RecordsAfter,
		&job.Merges,
		&job.ClustersCreated,
		&job.ClustersDeleted,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return ClusteringJob{}, err
	}
	return job, nil
}

func (p *Pool) ListClusteringJobs(ctx context.Context, projectID int64) ([]ClusteringJob, error) {
	const q = `
SELECT
	job_id, job_uuid, project_id, strategy_id, status,
	records_before, records_after, merges, clusters_created, clusters_deleted,
	error_message, created_at, started_at, completed_at
FROM dedup.clustering_jobs
WHERE project_id = $1
ORDER BY created_at DESC, job_id DESC
`
	rows, err := p.Query(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("query clustering jobs: %w", err)
	}
	defer rows.Close()

	var jobs []ClusteringJob
	for rows.Next() {
		var job ClusteringJob
		if err := rows.Scan(
			&job.JobID,
			&job.JobUUID,
			&job.ProjectID,
			&job.StrategyID,
			&job.Status,
			&job.RecordsBefore,
			&job.RecordsAfter,
			&job.Merges,
			&job.ClustersCreated,
			&job.ClustersDeleted,
			&job.ErrorMessage,
			&job.CreatedAt,
			&job.StartedAt,
			&job.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan clustering job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
