package httpapi

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"collate/internal/db"
	"collate/internal/matchkey"
)

type strategyResponse struct {
	StrategyUUID string          `json:"strategy_uuid"`
	Name         string          `json:"name"`
	Preset       string          `json:"preset"`
	Config       json.RawMessage `json:"config"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
}

type createStrategyRequest struct {
	Name   string          `json:"name"`
	Preset string          `json:"preset"`
	Config json.RawMessage `json:"config"`
}

func (s *Server) handleListStrategies(c echo.Context) error {
	project, ok, failure := s.loadProject(c)
	if !ok {
		return failure
	}

	strategies, err := s.pool.ListMatchStrategies(c.Request().Context(), project.ProjectID)
	if err != nil {
		s.logger.Error().Err(err).Str("project_uuid", project.ProjectUUID).Msg("list strategies failed")
		return internalError(c, "Failed to load strategies")
	}

	items := make([]strategyResponse, 0, len(strategies))
	for _, strategy := range strategies {
		items = append(items, buildStrategyResponse(strategy))
	}
	return success(c, map[string]any{"items": items})
}

func (s *Server) handleCreateStrategy(c echo.Context) error {
	project, ok, failure := s.loadProject(c)
	if !ok {
		return failure
	}

	var req createStrategyRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return failValidation(c, map[string]string{"name": "is required"})
	}
	preset, err := matchkey.ParsePreset(req.Preset)
	if err != nil {
		return failValidation(c, map[string]string{"preset": err.Error()})
	}

	strategy, err := s.pool.CreateMatchStrategy(c.Request().Context(), project.ProjectID, name, string(preset), req.Config)
	if err != nil {
		s.logger.Error().Err(err).Str("project_uuid", project.ProjectUUID).Str("name", name).Msg("create strategy failed")
		return internalError(c, "Failed to create strategy")
	}
	return successWithStatus(c, 201, map[string]any{"strategy": buildStrategyResponse(strategy)})
}

func buildStrategyResponse(strategy db.MatchStrategy) strategyResponse {
	config := strategy.Config
	if len(config) == 0 {
		config = json.RawMessage(`{}`)
	}
	return strategyResponse{
		StrategyUUID: strategy.StrategyUUID,
		Name:         strategy.Name,
		Preset:       strategy.Preset,
		Config:       config,
		IsActive:     strategy.IsActive,
		CreatedAt:    strategy.CreatedAt.UTC(),
	}
}
