package db

import (
	"context"
	"fmt"
)

// Querier is satisfied by both *Pool and Tx so query helpers can run inside
// or outside a transaction.
type Querier interface {
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
	Exec(ctx context.Context, query string, args ...any) (CommandTag, error)
}

func (p *Pool) CreateProject(ctx context.Context, name string) (Project, error) {
	const q = `
INSERT INTO dedup.projects (name)
VALUES ($1)
RETURNING project_id, project_uuid, name, created_at
`
	var project Project
	err := p.QueryRow(ctx, q, name).Scan(
		&project.ProjectID,
		&project.ProjectUUID,
		&project.Name,
		&project.CreatedAt,
	)
	if err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	return project, nil
}

func (p *Pool) ListProjects(ctx context.Context) ([]Project, error) {
	const q = `
SELECT project_id, project_uuid, name, created_at
FROM dedup.projects
ORDER BY created_at ASC, project_id ASC
`
	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var project Project
		if err := rows.Scan(&project.ProjectID, &project.ProjectUUID, &project.Name, &project.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (p *Pool) GetProjectByUUID(ctx context.Context, projectUUID string) (Project, error) {
	const q = `
SELECT project_id, project_uuid, name, created_at
FROM dedup.projects
WHERE project_uuid = $1
`
	var project Project
	err := p.QueryRow(ctx, q, projectUUID).Scan(
		&project.ProjectID,
		&project.ProjectUUID,
		&project.Name,
		&project.CreatedAt,
	)
	if err != nil {
		return Project{}, err
	}
	return project, nil
}

func (p *Pool) CreateSource(ctx context.Context, projectID int64, name string) (Source, error) {
	const q = `
INSERT INTO dedup.sources (project_id, name)
VALUES ($1, $2)
RETURNING source_id, source_uuid, project_id, name, created_at
`
	var source Source
	err := p.QueryRow(ctx, q, projectID, name).Scan(
		&source.SourceID,
		&source.SourceUUID,
		&source.ProjectID,
		&source.Name,
		&source.CreatedAt,
	)
	if err != nil {
		return Source{}, fmt.Errorf("insert source: %w", err)
	}
	return source, nil
}

func (p *Pool) ListSourcesByProject(ctx context.Context, projectID int64) ([]Source, error) {
	const q = `
SELECT source_id, source_uuid, project_id, name, created_at
FROM dedup.sources
WHERE project_id = $1
ORDER BY created_at ASC, source_id ASC
`
	rows, err := p.Query(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var source Source
		if err := rows.Scan(&source.SourceID, &source.SourceUUID, &source.ProjectID, &source.Name, &source.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (p *Pool) GetSourceByUUID(ctx context.Context, projectID int64, sourceUUID string) (Source, error) {
	const q = `
SELECT source_id, source_uuid, project_id, name, created_at
FROM dedup.sources
WHERE project_id = $1 AND source_uuid = $2
`
	var source Source
	err := p.QueryRow(ctx, q, projectID, sourceUUID).Scan(
		&source.SourceID,
		&source.SourceUUID,
		&source.ProjectID,
		&source.Name,
		&source.CreatedAt,
	)
	if err != nil {
		return Source{}, err
	}
	return source, nil
}
