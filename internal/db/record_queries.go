package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ClusterItemRow is the slice of a source item the cluster builder needs:
// the precomputed normalized fields plus enough metadata to pick cluster
// representatives. Raw payloads are deliberately not loaded.
type ClusterItemRow struct {
	SourceItemID    int64
	CanonicalID     int64
	NormTitle       string
	NormFirstAuthor string
	NormIdentifier  string
	PubYear         int
	BibFieldCount   int
}

// ListClusterItems loads every source item of a project in stable ingestion
// order.
func ListClusterItems(ctx context.Context, q Querier, projectID int64) ([]ClusterItemRow, error) {
	const query = `
SELECT
	source_item_id,
	canonical_id,
	COALESCE(norm_title, ''),
	COALESCE(norm_first_author, ''),
	COALESCE(norm_identifier, ''),
	COALESCE(pub_year, 0),
	(title IS NOT NULL)::int
		+ (abstract IS NOT NULL)::int
		+ (authors IS NOT NULL)::int
		+ (pub_year IS NOT NULL)::int
		+ (journal IS NOT NULL)::int
		+ (identifier IS NOT NULL)::int
FROM dedup.source_items
WHERE project_id = $1
ORDER BY source_item_id ASC
`
	rows, err := q.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query cluster items: %w", err)
	}
	defer rows.Close()

	var items []ClusterItemRow
	for rows.Next() {
		var item ClusterItemRow
		if err := rows.Scan(
			&item.SourceItemID,
			&item.CanonicalID,
			&item.NormTitle,
			&item.NormFirstAuthor,
			&item.NormIdentifier,
			&item.PubYear,
			&item.BibFieldCount,
		); err != nil {
			return nil, fmt.Errorf("scan cluster item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListCanonicalKeys maps every canonical record of the project to its
// current match key (nil for isolated records).
func ListCanonicalKeys(ctx context.Context, q Querier, projectID int64) (map[int64]*string, error) {
	const query = `
SELECT canonical_id, match_key
FROM dedup.canonical_records
WHERE project_id = $1
`
	rows, err := q.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query canonical keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[int64]*string)
	for rows.Next() {
		var canonicalID int64
		var matchKey *string
		if err := rows.Scan(&canonicalID, &matchKey); err != nil {
			return nil, fmt.Errorf("scan canonical key: %w", err)
		}
		keys[canonicalID] = matchKey
	}
	return keys, rows.Err()
}

func CountCanonicalRecords(ctx context.Context, q Querier, projectID int64) (int, error) {
	const query = `
SELECT COUNT(*)
FROM dedup.canonical_records
WHERE project_id = $1
`
	var count int
	if err := q.QueryRow(ctx, query, projectID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count canonical records: %w", err)
	}
	return count, nil
}

// FindCanonicalIDByMatchKey returns (0, nil) when no record carries the key.
func FindCanonicalIDByMatchKey(ctx context.Context, q Querier, projectID int64, matchKey string) (int64, error) {
	const query = `
SELECT canonical_id
FROM dedup.canonical_records
WHERE project_id = $1 AND match_key = $2
`
	var canonicalID int64
	err := q.QueryRow(ctx, query, projectID, matchKey).Scan(&canonicalID)
	if err != nil {
		if IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("find canonical by match key: %w", err)
	}
	return canonicalID, nil
}

// InsertCanonicalFromItem creates a canonical record whose representative
// bibliographic fields are copied from the given source item.
func InsertCanonicalFromItem(ctx context.Context, q Querier, projectID, sourceItemID int64, matchKey *string, matchBasis string, now time.Time) (int64, error) {
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
SELECT $1, $2, $3, title, abstract, authors, pub_year, journal, volume, issue, pages, identifier, $4, $4
FROM dedup.source_items
WHERE source_item_id = $5
RETURNING canonical_id
`
	var canonicalID int64
	err := q.QueryRow(ctx, query, projectID, matchKey, matchBasis, now, sourceItemID).Scan(&canonicalID)
	if err != nil {
		return 0, fmt.Errorf("insert canonical record: %w", err)
	}
	return canonicalID, nil
}

// UpdateCanonicalMatchKey re-keys a canonical record in place, keeping its
// identity stable for reruns that preserve membership.
func UpdateCanonicalMatchKey(ctx context.Context, q Querier, canonicalID int64, matchKey *string, matchBasis string, now time.Time) error {
	const query = `
UPDATE dedup.canonical_records
SET match_key = $2, match_basis = $3, updated_at = $4
WHERE canonical_id = $1
`
	tag, err := q.Exec(ctx, query, canonicalID, matchKey, matchBasis, now)
	if err != nil {
		return fmt.Errorf("update canonical match key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("canonical record %d not found", canonicalID)
	}
	return nil
}

// ReassignSourceItem re-points one source item's canonical pointer.
func ReassignSourceItem(ctx context.Context, q Querier, sourceItemID, canonicalID int64) error {
	const query = `
UPDATE dedup.source_items
SET canonical_id = $2
WHERE source_item_id = $1
`
	tag, err := q.Exec(ctx, query, sourceItemID, canonicalID)
	if err != nil {
		return fmt.Errorf("reassign source item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source item %d not found", sourceItemID)
	}
	return nil
}

// DeleteOrphanCanonicalRecords garbage-collects canonical records that no
// source item points at. Audit rows referencing them null out via the FK.
func DeleteOrphanCanonicalRecords(ctx context.Context, q Querier, projectID int64) (int, error) {
	const query = `
DELETE FROM dedup.canonical_records cr
WHERE cr.project_id = $1
	AND NOT EXISTS (
		SELECT 1 FROM dedup.source_items si
		WHERE si.canonical_id = cr.canonical_id
	)
`
	tag, err := q.Exec(ctx, query, projectID)
	if err != nil {
		return 0, fmt.Errorf("delete orphan canonical records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CanonicalRecordListItem is a canonical record plus its member count, for
// API listings.
type CanonicalRecordListItem struct {
	CanonicalUUID string          `json:"canonical_uuid"`
	MatchKey      *string         `json:"match_key,omitempty"`
	MatchBasis    string          `json:"match_basis"`
	Title         *string         `json:"title,omitempty"`
	Authors       json.RawMessage `json:"authors,omitempty"`
	PubYear       *int            `json:"pub_year,omitempty"`
	Journal       *string         `json:"journal,omitempty"`
	Identifier    *string         `json:"identifier,omitempty"`
	MemberCount   int             `json:"member_count"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p *Pool) ListCanonicalRecords(ctx context.Context, projectID int64, limit, offset int) ([]CanonicalRecordListItem, error) {
	const query = `
SELECT
	cr.canonical_uuid,
	cr.match_key,
	cr.match_basis,
	cr.title,
	cr.authors,
	cr.pub_year,
	cr.journal,
	cr.identifier,
	(SELECT COUNT(*) FROM dedup.source_items si WHERE si.canonical_id = cr.canonical_id),
	cr.created_at,
	cr.updated_at
FROM dedup.canonical_records cr
WHERE cr.project_id = $1
ORDER BY cr.canonical_id ASC
LIMIT $2 OFFSET $3
`
	rows, err := p.Query(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query canonical records: %w", err)
	}
	defer rows.Close()

	var records []CanonicalRecordListItem
	for rows.Next() {
		var record CanonicalRecordListItem
		if err := rows.Scan(
			&record.CanonicalUUID,
			&record.MatchKey,
			&record.MatchBasis,
			&record.Title,
			&record.Authors,
			&record.PubYear,
			&record.Journal,
			&record.Identifier,
			&record.MemberCount,
			&record.CreatedAt,
			&record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan canonical record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
