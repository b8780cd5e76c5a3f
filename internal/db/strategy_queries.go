package db

import (
	"context"
	"encoding/json"
	"fmt"
)

func (p *Pool) CreateMatchStrategy(ctx context.Context, projectID int64, name, preset string, config json.RawMessage) (MatchStrategy, error) {
	if len(config) == 0 {
		config = json.RawMessage(`{}`)
	}

	const q = `
INSERT INTO dedup.match_strategies (project_id, name, preset, config, is_active)
VALUES ($1, $2, $3, $4::jsonb, FALSE)
RETURNING strategy_id, strategy_uuid, project_id, name, preset, config, is_active, created_at
`
	var strategy MatchStrategy
	err := p.QueryRow(ctx, q, projectID, name, preset, string(config)).Scan(
		&strategy.StrategyID,
		&strategy.StrategyUUID,
		&strategy.ProjectID,
		&strategy.Name,
		&strategy.Preset,
		&strategy.Config,
		&strategy.IsActive,
		&strategy.CreatedAt,
	)
	if err != nil {
		return MatchStrategy{}, fmt.Errorf("insert match strategy: %w", err)
	}
	return strategy, nil
}

func (p *Pool) ListMatchStrategies(ctx context.Context, projectID int64) ([]MatchStrategy, error) {
	const q = `
SELECT strategy_id, strategy_uuid, project_id, name, preset, config, is_active, created_at
FROM dedup.match_strategies
WHERE project_id = $1
ORDER BY created_at ASC, strategy_id ASC
`
	rows, err := p.Query(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("query match strategies: %w", err)
	}
	defer rows.Close()

	var strategies []MatchStrategy
	for rows.Next() {
		var strategy MatchStrategy
		if err := rows.Scan(
			&strategy.StrategyID,
			&strategy.StrategyUUID,
			&strategy.ProjectID,
			&strategy.Name,
			&strategy.Preset,
			&strategy.Config,
			&strategy.IsActive,
			&strategy.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan match strategy: %w", err)
		}
		strategies = append(strategies, strategy)
	}
	return strategies, rows.Err()
}

func (p *Pool) GetMatchStrategyByUUID(ctx context.Context, projectID int64, strategyUUID string) (MatchStrategy, error) {
	const q = `
SELECT strategy_id, strategy_uuid, project_id, name, preset, config, is_active, created_at
FROM dedup.match_strategies
WHERE project_id = $1 AND strategy_uuid = $2
`
	var strategy MatchStrategy
	err := p.QueryRow(ctx, q, projectID, strategyUUID).Scan(
		&strategy.StrategyID,
		&strategy.StrategyUUID,
		&strategy.ProjectID,
		&strategy.Name,
		&strategy.Preset,
		&strategy.Config,
		&strategy.IsActive,
		&strategy.CreatedAt,
	)
	if err != nil {
		return MatchStrategy{}, err
	}
	return strategy, nil
}

// GetActiveMatchStrategy returns ErrNoRows when the project has no active
// strategy yet (nothing has been clustered).
func (p *Pool) GetActiveMatchStrategy(ctx context.Context, projectID int64) (MatchStrategy, error) {
	const q = `
SELECT strategy_id, strategy_uuid, project_id, name, preset, config, is_active, created_at
FROM dedup.match_strategies
WHERE project_id = $1 AND is_active
`
	var strategy MatchStrategy
	err := p.QueryRow(ctx, q, projectID).Scan(
		&strategy.StrategyID,
		&strategy.StrategyUUID,
		&strategy.ProjectID,
		&strategy.Name,
		&strategy.Preset,
		&strategy.Config,
		&strategy.IsActive,
		&strategy.CreatedAt,
	)
	if err != nil {
		return MatchStrategy{}, err
	}
	return strategy, nil
}

// ActivateMatchStrategy flips the is_active flag to the given strategy and
// away from every other strategy of the project. Deactivation must run first
// or the partial unique index rejects the swap.
func ActivateMatchStrategy(ctx context.Context, q Querier, projectID, strategyID int64) error {
	const deactivate = `
UPDATE dedup.match_strategies
SET is_active = FALSE
WHERE project_id = $1 AND is_active AND strategy_id <> $2
`
	if _, err := q.Exec(ctx, deactivate, projectID, strategyID); err != nil {
		return fmt.Errorf("deactivate match strategies: %w", err)
	}

	const activate = `
UPDATE dedup.match_strategies
SET is_active = TRUE
WHERE project_id = $1 AND strategy_id = $2
`
	tag, err := q.Exec(ctx, activate, projectID, strategyID)
	if err != nil {
		return fmt.Errorf("activate match strategy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("match strategy %d not found in project %d", strategyID, projectID)
	}
	return nil
}
