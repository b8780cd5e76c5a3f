package httpapi

import (
	"strings"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleListRecords(c echo.Context) error {
	project, ok, failure := s.loadProject(c)
	if !ok {
		return failure
	}

	limit, offset, err := parsePagination(c)
	if err != nil {
		return failValidation(c, map[string]string{"pagination": err.Error()})
	}

	records, err := s.pool.ListCanonicalRecords(c.Request().Context(), project.ProjectID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("project_uuid", project.ProjectUUID).Msg("list canonical records failed")
		return internalError(c, "Failed to load records")
	}

	return success(c, map[string]any{
		"items":  records,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleListRecordItems(c echo.Context) error {
	project, ok, failure := s.loadProject(c)
	if !ok {
		return failure
	}

	canonicalUUID := strings.TrimSpace(c.Param("canonical_uuid"))
	if canonicalUUID == "" {
		return failValidation(c, map[string]string{"canonical_uuid": "is required"})
	}

	items, err := s.pool.ListSourceItemsByCanonical(c.Request().Context(), project.ProjectID, canonicalUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("canonical_uuid", canonicalUUID).Msg("list record members failed")
		return internalError(c, "Failed to load record members")
	}
	if len(items) == 0 {
		return failNotFound(c, "Record not found")
	}

	return success(c, map[string]any{
		"canonical_uuid": canonicalUUID,
		"items":          items,
	})
}
