package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SourceItemFields carries the parsed and normalized columns of one incoming
// record. Pointers are nil when the payload omitted the field.
type SourceItemFields struct {
	Title           *string
	Abstract        *string
	Authors         json.RawMessage
	PubYear         *int
	Journal         *string
	Volume          *string
	Issue           *string
	Pages           *string
	Identifier      *string
	Language        *string
	NormTitle       *string
	NormFirstAuthor *string
	NormIdentifier  *string
}

// CanonicalRef identifies one canonical record both internally and on the
// wire.
type CanonicalRef struct {
	CanonicalID   int64
	CanonicalUUID string
}

// FindCanonicalByMatchKey returns the zero CanonicalRef when no record in the
// project carries the key.
func FindCanonicalByMatchKey(ctx context.Context, q Querier, projectID int64, matchKey string) (CanonicalRef, error) {
	const query = `
SELECT canonical_id, canonical_uuid
FROM dedup.canonical_records
WHERE project_id = $1 AND match_key = $2
`
	var ref CanonicalRef
	err := q.QueryRow(ctx, query, projectID, matchKey).Scan(&ref.CanonicalID, &ref.CanonicalUUID)
	if err != nil {
		if IsNoRows(err) {
			return CanonicalRef{}, nil
		}
		return CanonicalRef{}, fmt.Errorf("find canonical by match key: %w", err)
	}
	return ref, nil
}

// InsertCanonicalRecord creates a canonical record directly from parsed
// fields, for placements where no source item exists yet.
func InsertCanonicalRecord(ctx context.Context, q Querier, projectID int64, matchKey *string, matchBasis string, fields SourceItemFields, now time.Time) (CanonicalRef, error) {
	const query = `
INSERT INTO dedup.canonical_records (
	project_id,
	match_key,
	match_basis,
	title,
	abstract,
	authors,
	pub_year,
	journal,
	volume,
	issue,
	pages,
	identifier,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
RETURNING canonical_id, canonical_uuid
`
	var ref CanonicalRef
	err := q.QueryRow(ctx, query,
		projectID,
		matchKey,
		matchBasis,
		fields.Title,
		fields.Abstract,
		fields.Authors,
		fields.PubYear,
		fields.Journal,
		fields.Volume,
		fields.Issue,
		fields.Pages,
		fields.Identifier,
		now,
	).Scan(&ref.CanonicalID, &ref.CanonicalUUID)
	if err != nil {
		return CanonicalRef{}, fmt.Errorf("insert canonical record: %w", err)
	}
	return ref, nil
}

// InsertSourceItem persists one ingested record. The raw payload and parsed
// columns never change after this insert.
func InsertSourceItem(ctx context.Context, q Querier, projectID, sourceID, canonicalID int64, itemUUID string, rawPayload json.RawMessage, fields SourceItemFields, now time.Time) (int64, error) {
	const query = `
INSERT INTO dedup.source_items (
	source_item_uuid,
	project_id,
	source_id,
	canonical_id,
	raw_payload,
	title,
	abstract,
	authors,
	pub_year,
	journal,
	volume,
	issue,
	pages,
	identifier,
	language,
	norm_title,
	norm_first_author,
	norm_identifier,
	created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
RETURNING source_item_id
`
	var sourceItemID int64
	err := q.QueryRow(ctx, query,
		itemUUID,
		projectID,
		sourceID,
		canonicalID,
		rawPayload,
		fields.Title,
		fields.Abstract,
		fields.Authors,
		fields.PubYear,
		fields.Journal,
		fields.Volume,
		fields.Issue,
		fields.Pages,
		fields.Identifier,
		fields.Language,
		fields.NormTitle,
		fields.NormFirstAuthor,
		fields.NormIdentifier,
		now,
	).Scan(&sourceItemID)
	if err != nil {
		return 0, fmt.Errorf("insert source item: %w", err)
	}
	return sourceItemID, nil
}

func CountSourceItems(ctx context.Context, q Querier, projectID int64) (int, error) {
	const query = `
SELECT COUNT(*)
FROM dedup.source_items
WHERE project_id = $1
`
	var count int
	if err := q.QueryRow(ctx, query, projectID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count source items: %w", err)
	}
	return count, nil
}

// SourceItemListItem is one member of a canonical record, for API listings.
type SourceItemListItem struct {
	SourceItemUUID string          `json:"source_item_uuid"`
	SourceUUID     string          `json:"source_uuid"`
	Title          *string         `json:"title,omitempty"`
	Authors        json.RawMessage `json:"authors,omitempty"`
	PubYear        *int            `json:"pub_year,omitempty"`
	Journal        *string         `json:"journal,omitempty"`
	Identifier     *string         `json:"identifier,omitempty"`
	Language       *string         `json:"language,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (p *Pool) ListSourceItemsByCanonical(ctx context.Context, projectID int64, canonicalUUID string) ([]SourceItemListItem, error) {
	const query = `
SELECT
	si.source_item_uuid,
	s.source_uuid,
	si.title,
	si.authors,
	si.pub_year,
	si.journal,
	si.identifier,
	si.language,
	si.created_at
FROM dedup.source_items si
JOIN dedup.canonical_records cr ON cr.canonical_id = si.canonical_id
JOIN dedup.sources s ON s.source_id = si.source_id
WHERE si.project_id = $1 AND cr.canonical_uuid = $2
ORDER BY si.source_item_id ASC
`
	rows, err := p.Query(ctx, query, projectID, canonicalUUID)
	if err != nil {
		return nil, fmt.Errorf("query source items: %w", err)
	}
	defer rows.Close()

	var items []SourceItemListItem
	for rows.Next() {
		var item SourceItemListItem
		if err := rows.Scan(
			&item.SourceItemUUID,
			&item.SourceUUID,
			&item.Title,
			&item.Authors,
			&item.PubYear,
			&item.Journal,
			&item.Identifier,
			&item.Language,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan source item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
