package db

import (
	"context"
	"fmt"
	"time"
)

// AuditEntryInput is one per-item clustering decision to append to the log.
type AuditEntryInput struct {
	SourceItemID     int64
	PriorCanonicalID *int64
	NewCanonicalID   int64
	MatchKey         *string
	MatchBasis       string
	Action           string
}

// InsertAuditEntries appends one row per touched source item. Must run in
// the clustering transaction, before the orphan GC deletes any canonical
// record the prior pointers still reference.
func InsertAuditEntries(ctx context.Context, q Querier, jobID int64, entries []AuditEntryInput, now time.Time) error {
	const query = `
INSERT INTO dedup.audit_entries (
	job_id,
	source_item_id,
	prior_canonical_id,
	new_canonical_id,
	match_key,
	match_basis,
	action,
	created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	for _, entry := range entries {
		if _, err := q.Exec(ctx, query,
			jobID,
			entry.SourceItemID,
			entry.PriorCanonicalID,
			entry.NewCanonicalID,
			entry.MatchKey,
			entry.MatchBasis,
			entry.Action,
			now,
		); err != nil {
			return fmt.Errorf("insert audit entry for item %d: %w", entry.SourceItemID, err)
		}
	}
	return nil
}

// AuditEntryListItem is an audit row joined with item identity for the API.
type AuditEntryListItem struct {
	AuditEntryUUID   string    `json:"audit_entry_uuid"`
	SourceItemUUID   string    `json:"source_item_uuid"`
	PriorCanonicalID *int64    `json:"prior_canonical_id,omitempty"`
	NewCanonicalID   int64     `json:"new_canonical_id"`
	MatchKey         *string   `json:"match_key,omitempty"`
	MatchBasis       string    `json:"match_basis"`
	Action           string    `json:"action"`
	CreatedAt        time.Time `json:"created_at"`
}

func (p *Pool) ListAuditEntriesByJob(ctx context.Context, jobID int64, limit, offset int) ([]AuditEntryListItem, error) {
	const q = `
SELECT
	ae.audit_entry_uuid,
	si.source_item_uuid,
	ae.prior_canonical_id,
	ae.new_canonical_id,
	ae.match_key,
	ae.match_basis,
	ae.action,
	ae.created_at
FROM dedup.audit_entries ae
JOIN dedup.source_items si ON si.source_item_id = ae.source_item_id
WHERE ae.job_id = $1
ORDER BY ae.audit_entry_id ASC
LIMIT $2 OFFSET $3
`
	rows, err := p.Query(ctx, q, jobID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntryListItem
	for rows.Next() {
		var entry AuditEntryListItem
		if err := rows.Scan(
			&entry.AuditEntryUUID,
			&entry.SourceItemUUID,
			&entry.PriorCanonicalID,
			&entry.NewCanonicalID,
			&entry.MatchKey,
			&entry.MatchBasis,
			&entry.Action,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
