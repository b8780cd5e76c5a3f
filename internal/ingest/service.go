// Package ingest places single incoming records without re-clustering the
// project: the item either attaches to the canonical record that already
// owns its match key or founds a new one.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"collate/internal/db"
	"collate/internal/globaltime"
	"collate/internal/langdetect"
	"collate/internal/language"
	"collate/internal/matchkey"
	"collate/internal/normalize"
	"collate/internal/projlock"
	payloadschema "collate/schema"
)

// DefaultPreset applies when the project has never been clustered and no
// strategy is active yet.
const DefaultPreset = matchkey.PresetDOIFirstStrict

// ErrInvalidPayload wraps every payload rejection so callers can map it to a
// client error.
var ErrInvalidPayload = errors.New("invalid payload")

type Service struct {
	pool   *db.Pool
	gate   *projlock.Gate
	logger zerolog.Logger
}

func NewService(pool *db.Pool, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		gate:   projlock.NewGate(pool.DB()),
		logger: logger,
	}
}

// Result reports where one ingested record landed.
type Result struct {
	SourceItemUUID string
	CanonicalUUID  string
	Attached       bool
	MatchKey       *string
	MatchBasis     string
}

// Ingest validates, normalizes, and places one payload. It holds the project
// gate for the duration so placement never races a clustering job, and
// returns projlock.ErrProjectLocked when one is running.
func (s *Service) Ingest(ctx context.Context, project db.Project, source db.Source, payload json.RawMessage) (Result, error) {
	record, err := payloadschema.ValidateRecordPayload(payload)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	lease, err := s.gate.Acquire(ctx, project.ProjectUUID)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if releaseErr := lease.Release(ctx); releaseErr != nil {
			s.logger.Error().Err(releaseErr).Str("project_uuid", project.ProjectUUID).Msg("release project lock")
		}
	}()

	preset := DefaultPreset
	if strategy, err := s.pool.GetActiveMatchStrategy(ctx, project.ProjectID); err == nil {
		preset, err = matchkey.ParsePreset(strategy.Preset)
		if err != nil {
			return Result{}, fmt.Errorf("active strategy is unusable: %w", err)
		}
	} else if !db.IsNoRows(err) {
		return Result{}, fmt.Errorf("load active strategy: %w", err)
	}

	fields := buildFields(record)
	key, basis := matchkey.Compute(
		deref(fields.NormTitle),
		deref(fields.NormFirstAuthor),
		derefInt(fields.PubYear),
		deref(fields.NormIdentifier),
		preset,
	)

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("begin ingest transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	now := globaltime.UTC()

	var target db.CanonicalRef
	attached := false
	if key != "" {
		target, err = db.FindCanonicalByMatchKey(ctx, tx, project.ProjectID, key)
		if err != nil {
			return Result{}, err
		}
		attached = target.CanonicalID != 0
	}
	if target.CanonicalID == 0 {
		target, err = db.InsertCanonicalRecord(ctx, tx, project.ProjectID, nullableKey(key), string(basis), fields, now)
		if err != nil {
			return Result{}, err
		}
	}

	itemUUID := uuid.NewString()
	if _, err := db.InsertSourceItem(ctx, tx, project.ProjectID, source.SourceID, target.CanonicalID, itemUUID, payload, fields, now); err != nil {
		return Result{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("commit ingest transaction: %w", err)
	}

	s.logger.Debug().
		Str("project_uuid", project.ProjectUUID).
		Str("source_item_uuid", itemUUID).
		Str("canonical_uuid", target.CanonicalUUID).
		Bool("attached", attached).
		Str("match_basis", string(basis)).
		Msg("record ingested")

	return Result{
		SourceItemUUID: itemUUID,
		CanonicalUUID:  target.CanonicalUUID,
		Attached:       attached,
		MatchKey:       nullableKey(key),
		MatchBasis:     string(basis),
	}, nil
}

// buildFields maps a validated payload onto storage columns, computing the
// normalized fields once at ingest so clustering never re-parses payloads.
func buildFields(record *payloadschema.Record) db.SourceItemFields {
	fields := db.SourceItemFields{
		Title:      nullableString(record.Title),
		Abstract:   record.Abstract,
		PubYear:    record.PubYear,
		Journal:    record.Journal,
		Volume:     record.Volume,
		Issue:      record.Issue,
		Pages:      record.Pages,
		Identifier: record.Identifier,
	}

	if record.Language != nil {
		if code := language.NormalizeCode(*record.Language); code != "" {
			fields.Language = &code
		}
	}

	if len(record.Authors) > 0 {
		if raw, err := json.Marshal(record.Authors); err == nil {
			fields.Authors = raw
		}
	}

	fields.NormTitle = nullableString(normalize.Title(record.Title))
	fields.NormFirstAuthor = nullableString(normalize.FirstAuthor(record.Authors))
	if record.Identifier != nil {
		fields.NormIdentifier = nullableString(normalize.Identifier(*record.Identifier))
	}

	if fields.Language == nil {
		sample := record.Title
		if record.Abstract != nil {
			sample = sample + " " + *record.Abstract
		}
		if code := langdetect.DetectISO6391(sample); code != "" {
			fields.Language = &code
		}
	}

	return fields
}

func nullableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &value
}

func nullableKey(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func derefInt(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}
