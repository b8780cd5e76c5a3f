package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"collate/internal/db"
	"collate/internal/globaltime"
	"collate/internal/matchkey"
	"collate/internal/projlock"
)

// Service runs clustering jobs: it owns the project gate, the durable job
// ledger, and the re-clustering transaction. One instance serves all
// projects; serialization is per project via the gate.
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

// Submit acquires the project gate, creates a pending job row, and runs the
// clustering asynchronously. When the gate is held it returns
// projlock.ErrProjectLocked without creating any row; callers report that as
// a retryable conflict.
func (s *Service) Submit(ctx context.Context, project db.Project, strategy db.MatchStrategy) (db.ClusteringJob, error) {
	lease, err := s.gate.Acquire(ctx, project.ProjectUUID)
	if err != nil {
		return db.ClusteringJob{}, err
	}

	job, err := s.pool.CreateClusteringJob(ctx, project.ProjectID, strategy.StrategyID)
	if err != nil {
		if releaseErr := lease.Release(ctx); releaseErr != nil {
			s.logger.Error().Err(releaseErr).Str("project_uuid", project.ProjectUUID).Msg("release project lock after job create failure")
		}
		return db.ClusteringJob{}, fmt.Errorf("create clustering job: %w", err)
	}

	go func() {
		// Detached from the request context: the job outlives the HTTP call
		// and callers observe it through the job row.
		runCtx := context.Background()
		defer func() {
			if releaseErr := lease.Release(runCtx); releaseErr != nil {
				s.logger.Error().Err(releaseErr).Str("project_uuid", project.ProjectUUID).Msg("release project lock")
			}
		}()
		s.execute(runCtx, job, project, strategy)
	}()

	return job, nil
}

// RunSync executes one clustering job to a terminal state before returning,
// for the CLI path. The returned job row carries the final status and stats.
func (s *Service) RunSync(ctx context.Context, project db.Project, strategy db.MatchStrategy) (db.ClusteringJob, error) {
	lease, err := s.gate.Acquire(ctx, project.ProjectUUID)
	if err != nil {
		return db.ClusteringJob{}, err
	}
	defer func() {
		if releaseErr := lease.Release(ctx); releaseErr != nil {
			s.logger.Error().Err(releaseErr).Str("project_uuid", project.ProjectUUID).Msg("release project lock")
		}
	}()

	job, err := s.pool.CreateClusteringJob(ctx, project.ProjectID, strategy.StrategyID)
	if err != nil {
		return db.ClusteringJob{}, fmt.Errorf("create clustering job: %w", err)
	}

	s.execute(ctx, job, project, strategy)

	return s.pool.GetClusteringJobByUUID(ctx, project.ProjectID, job.JobUUID)
}

// execute drives one job to a terminal state. Errors never escape: they are
// recorded on the job row and callers learn of them by polling.
func (s *Service) execute(ctx context.Context, job db.ClusteringJob, project db.Project, strategy db.MatchStrategy) {
	preset, err := matchkey.ParsePreset(strategy.Preset)
	if err != nil {
		// Configuration error: fail before touching any data. The job goes
		// pending -> failed and never runs.
		s.fail(ctx, job, err)
		return
	}

	var stats db.JobStats
	err = runGuarded(func() error {
		if err := s.pool.MarkJobRunning(ctx, job.JobID, globaltime.UTC()); err != nil {
			return err
		}
		var runErr error
		stats, runErr = s.recluster(ctx, job, project, strategy, preset)
		return runErr
	})
	if err != nil {
		s.fail(ctx, job, err)
		return
	}

	s.logger.Info().
		Int64("job_id", job.JobID).
		Str("job_uuid", job.JobUUID).
		Str("project_uuid", project.ProjectUUID).
		Str("preset", string(preset)).
		Int("records_before", stats.RecordsBefore).
		Int("records_after", stats.RecordsAfter).
		Int("merges", stats.Merges).
		Int("clusters_created", stats.ClustersCreated).
		Int("clusters_deleted", stats.ClustersDeleted).
		Msg("clustering job completed")
}

// runGuarded invokes fn, converting a panic into an error so a broken run
// marks its job failed instead of taking the process down.
func runGuarded(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("clustering run panicked: %v", r)
		}
	}()
	return fn()
}

func (s *Service) fail(ctx context.Context, job db.ClusteringJob, cause error) {
	s.logger.Error().
		Err(cause).
		Int64("job_id", job.JobID).
		Str("job_uuid", job.JobUUID).
		Msg("clustering job failed")

	if err := s.pool.MarkJobFailed(ctx, job.JobID, cause, globaltime.UTC()); err != nil {
		s.logger.Error().Err(err).Int64("job_id", job.JobID).Msg("mark clustering job failed")
	}
}

// recluster recomputes the entire canonical clustering of the project inside
// one transaction: reassignments, audit entries, orphan GC, job stats, and
// strategy activation commit as a single unit or not at all.
func (s *Service) recluster(ctx context.Context, job db.ClusteringJob, project db.Project, strategy db.MatchStrategy, preset matchkey.Preset) (db.JobStats, error) {
	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return db.JobStats{}, fmt.Errorf("begin clustering transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	before, err := db.CountCanonicalRecords(ctx, tx, project.ProjectID)
	if err != nil {
		return db.JobStats{}, err
	}

	rows, err := db.ListClusterItems(ctx, tx, project.ProjectID)
	if err != nil {
		return db.JobStats{}, err
	}
	canonicalKeys, err := db.ListCanonicalKeys(ctx, tx, project.ProjectID)
	if err != nil {
		return db.JobStats{}, err
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, Item{
			ID:          row.SourceItemID,
			CanonicalID: row.CanonicalID,
			Title:       row.NormTitle,
			FirstAuthor: row.NormFirstAuthor,
			Identifier:  row.NormIdentifier,
			Year:        row.PubYear,
			BibFields:   row.BibFieldCount,
		})
	}

	plan := BuildPlan(items, preset)
	now := globaltime.UTC()

	store := &txCanonicalStore{tx: tx, projectID: project.ProjectID}
	resolutions, created, err := resolve(ctx, store, plan, canonicalKeys, now)
	if err != nil {
		return db.JobStats{}, err
	}

	actions := ClassifyActions(resolutions)

	// Reassign pointers in place; untouched pointers stay untouched so
	// canonical ids remain stable across reruns.
	for _, r := range resolutions {
		if r.Item.CanonicalID == r.NewCanonicalID {
			continue
		}
		if err := db.ReassignSourceItem(ctx, tx, r.Item.ID, r.NewCanonicalID); err != nil {
			return db.JobStats{}, err
		}
	}

	// Audit entries go in before the orphan GC so prior canonical ids are
	// recorded while their rows still exist.
	entries := make([]db.AuditEntryInput, 0, len(resolutions))
	merges := 0
	for _, r := range resolutions {
		action := actions[r.Item.ID]
		if action == ActionMerged {
			merges++
		}
		prior := r.Item.CanonicalID
		entries = append(entries, db.AuditEntryInput{
			SourceItemID:     r.Item.ID,
			PriorCanonicalID: &prior,
			NewCanonicalID:   r.NewCanonicalID,
			MatchKey:         nullableKey(r.Key),
			MatchBasis:       string(r.Basis),
			Action:           action,
		})
	}
	if err := db.InsertAuditEntries(ctx, tx, job.JobID, entries, now); err != nil {
		return db.JobStats{}, err
	}

	deleted, err := db.DeleteOrphanCanonicalRecords(ctx, tx, project.ProjectID)
	if err != nil {
		return db.JobStats{}, err
	}

	after, err := db.CountCanonicalRecords(ctx, tx, project.ProjectID)
	if err != nil {
		return db.JobStats{}, err
	}

	stats := db.JobStats{
		RecordsBefore:   before,
		RecordsAfter:    after,
		Merges:          merges,
		ClustersCreated: created,
		ClustersDeleted: deleted,
	}

	if err := db.MarkJobCompleted(ctx, tx, job.JobID, stats, globaltime.UTC()); err != nil {
		return db.JobStats{}, err
	}

	// The clustering state and the active strategy must never disagree, so
	// the activation swap rides the same transaction.
	if err := db.ActivateMatchStrategy(ctx, tx, project.ProjectID, strategy.StrategyID); err != nil {
		return db.JobStats{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return db.JobStats{}, fmt.Errorf("commit clustering transaction: %w", err)
	}
	return stats, nil
}

// canonicalStore is the slice of storage resolution needs. The transaction
// adapter below is the production implementation; tests substitute an
// in-memory one.
type canonicalStore interface {
	FindCanonicalIDByMatchKey(ctx context.Context, matchKey string) (int64, error)
	InsertCanonicalFromItem(ctx context.Context, sourceItemID int64, matchKey *string, matchBasis string, now time.Time) (int64, error)
	UpdateCanonicalMatchKey(ctx context.Context, canonicalID int64, matchKey *string, matchBasis string, now time.Time) error
}

type txCanonicalStore struct {
	tx        db.Tx
	projectID int64
}

func (s *txCanonicalStore) FindCanonicalIDByMatchKey(ctx context.Context, matchKey string) (int64, error) {
	return db.FindCanonicalIDByMatchKey(ctx, s.tx, s.projectID, matchKey)
}

func (s *txCanonicalStore) InsertCanonicalFromItem(ctx context.Context, sourceItemID int64, matchKey *string, matchBasis string, now time.Time) (int64, error) {
	return db.InsertCanonicalFromItem(ctx, s.tx, s.projectID, sourceItemID, matchKey, matchBasis, now)
}

func (s *txCanonicalStore) UpdateCanonicalMatchKey(ctx context.Context, canonicalID int64, matchKey *string, matchBasis string, now time.Time) error {
	return db.UpdateCanonicalMatchKey(ctx, s.tx, canonicalID, matchKey, matchBasis, now)
}

// resolve maps every planned group and isolated item to a canonical record
// id, creating or re-keying records as needed. Returns one resolution per
// item plus the number of records created.
func resolve(ctx context.Context, store canonicalStore, plan Plan, canonicalKeys map[int64]*string, now time.Time) ([]Resolution, int, error) {
	ownerCounts := OwnerCounts(append(itemsOfGroups(plan.Groups), plan.Isolated...))
	claimed := make(map[int64]bool)
	created := 0

	targets := make([]int64, len(plan.Groups))
	targetCreated := make([]bool, len(plan.Groups))

	// Existing records claim their keys first so an in-place re-key never
	// collides with a key another group already owns.
	pendingGroups := make([]int, 0, len(plan.Groups))
	for i, group := range plan.Groups {
		existing, err := store.FindCanonicalIDByMatchKey(ctx, group.Key)
		if err != nil {
			return nil, 0, err
		}
		if existing != 0 {
			targets[i] = existing
			claimed[existing] = true
			continue
		}
		pendingGroups = append(pendingGroups, i)
	}

	for _, i := range pendingGroups {
		group := plan.Groups[i]
		key := group.Key
		basis := string(group.Basis)

		if owner := group.SoleOwner(ownerCounts); owner != 0 && !claimed[owner] {
			if err := store.UpdateCanonicalMatchKey(ctx, owner, &key, basis, now); err != nil {
				return nil, 0, err
			}
			targets[i] = owner
			claimed[owner] = true
			continue
		}

		canonicalID, err := store.InsertCanonicalFromItem(ctx, group.Representative.ID, &key, basis, now)
		if err != nil {
			return nil, 0, err
		}
		targets[i] = canonicalID
		targetCreated[i] = true
		claimed[canonicalID] = true
		created++
	}

	resolutions := make([]Resolution, 0, len(ownerCounts))
	for i, group := range plan.Groups {
		for _, member := range group.Members {
			resolutions = append(resolutions, Resolution{
				Item:           member,
				Key:            group.Key,
				Basis:          group.Basis,
				NewCanonicalID: targets[i],
				TargetCreated:  targetCreated[i],
			})
		}
	}

	// Null-key items stay singletons: an item keeps its record only when it
	// is the sole claimant, and a kept record loses any stale match key.
	for _, item := range plan.Isolated {
		target := item.CanonicalID
		targetWasCreated := false
		if claimed[target] {
			canonicalID, err := store.InsertCanonicalFromItem(ctx, item.ID, nil, string(matchkey.BasisNone), now)
			if err != nil {
				return nil, 0, err
			}
			target = canonicalID
			targetWasCreated = true
			created++
		} else if staleKey, ok := canonicalKeys[item.CanonicalID]; ok && staleKey != nil {
			if err := store.UpdateCanonicalMatchKey(ctx, item.CanonicalID, nil, string(matchkey.BasisNone), now); err != nil {
				return nil, 0, err
			}
		}
		claimed[target] = true
		resolutions = append(resolutions, Resolution{
			Item:           item,
			Key:            "",
			Basis:          matchkey.BasisNone,
			NewCanonicalID: target,
			TargetCreated:  targetWasCreated,
		})
	}

	return resolutions, created, nil
}

func itemsOfGroups(groups []Group) []Item {
	var items []Item
	for _, group := range groups {
		items = append(items, group.Members...)
	}
	return items
}

func nullableKey(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}
