package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"collate/internal/db"
	"collate/internal/ingest"
	"collate/internal/projlock"
)

type ingestRequest struct {
	SourceUUID string          `json:"source_uuid"`
	Payload    json.RawMessage `json:"payload"`
}

func (s *Server) handleIngestItem(c echo.Context) error {
	project, ok, failure := s.loadProject(c)
	if !ok {
		return failure
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxRequestBodyBytes))
	if err != nil {
		return failValidation(c, map[string]string{"body": "must be readable JSON"})
	}
	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}

	sourceUUID := strings.TrimSpace(req.SourceUUID)
	if sourceUUID == "" {
		return failValidation(c, map[string]string{"source_uuid": "is required"})
	}
	if len(req.Payload) == 0 {
		return failValidation(c, map[string]string{"payload": "is required"})
	}

	source, err := s.pool.GetSourceByUUID(c.Request().Context(), project.ProjectID, sourceUUID)
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Source not found")
		}
		s.logger.Error().Err(err).Str("source_uuid", sourceUUID).Msg("load source failed")
		return internalError(c, "Failed to load source")
	}

	result, err := s.ingester.Ingest(c.Request().Context(), project, source, req.Payload)
	if err != nil {
		if errors.Is(err, projlock.ErrProjectLocked) {
			return failConflict(c, "Project is locked by another job")
		}
		if errors.Is(err, ingest.ErrInvalidPayload) {
			return failValidation(c, map[string]string{"payload": err.Error()})
		}
		s.logger.Error().Err(err).Str("project_uuid", project.ProjectUUID).Msg("ingest item failed")
		return internalError(c, "Failed to ingest record")
	}

	return successWithStatus(c, http.StatusCreated, map[string]any{
		"source_item_uuid": result.SourceItemUUID,
		"canonical_uuid":   result.CanonicalUUID,
		"attached":         result.Attached,
		"match_key":        result.MatchKey,
		"match_basis":      result.MatchBasis,
	})
}
