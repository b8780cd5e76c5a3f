package cluster

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"collate/internal/matchkey"
)

// fakeCanonicalStore keeps canonical records in memory and enforces the
// same per-project match-key uniqueness the partial unique index does, so
// an ordering bug in resolution surfaces as an error here too.
type fakeCanonicalStore struct {
	nextID     int64
	canonicals map[int64]*string
}

func newFakeCanonicalStore() *fakeCanonicalStore {
	return &fakeCanonicalStore{nextID: 100, canonicals: make(map[int64]*string)}
}

func (f *fakeCanonicalStore) seed(matchKey *string) int64 {
	f.nextID++
	f.canonicals[f.nextID] = matchKey
	return f.nextID
}

func (f *fakeCanonicalStore) holderOf(matchKey string) int64 {
	for id, key := range f.canonicals {
		if key != nil && *key == matchKey {
			return id
		}
	}
	return 0
}

func (f *fakeCanonicalStore) FindCanonicalIDByMatchKey(_ context.Context, matchKey string) (int64, error) {
	return f.holderOf(matchKey), nil
}

func (f *fakeCanonicalStore) InsertCanonicalFromItem(_ context.Context, _ int64, matchKey *string, _ string, _ time.Time) (int64, error) {
	if matchKey != nil {
		if holder := f.holderOf(*matchKey); holder != 0 {
			return 0, fmt.Errorf("match key %q already held by canonical %d", *matchKey, holder)
		}
	}
	return f.seed(matchKey), nil
}

func (f *fakeCanonicalStore) UpdateCanonicalMatchKey(_ context.Context, canonicalID int64, matchKey *string, _ string, _ time.Time) error {
	if _, ok := f.canonicals[canonicalID]; !ok {
		return fmt.Errorf("canonical %d not found", canonicalID)
	}
	if matchKey != nil {
		if holder := f.holderOf(*matchKey); holder != 0 && holder != canonicalID {
			return fmt.Errorf("match key %q already held by canonical %d", *matchKey, holder)
		}
	}
	f.canonicals[canonicalID] = matchKey
	return nil
}

func (f *fakeCanonicalStore) keysByID() map[int64]*string {
	keys := make(map[int64]*string, len(f.canonicals))
	for id, key := range f.canonicals {
		keys[id] = key
	}
	return keys
}

type passResult struct {
	actions    map[int64]string
	created    int
	reassigned int
	deleted    int
}

// runPass drives one full plan/resolve cycle against the fake store and
// applies its effects the way recluster does: pointers move, then
// unreferenced canonical records are collected.
func runPass(t *testing.T, store *fakeCanonicalStore, items []Item, preset matchkey.Preset) ([]Item, passResult) {
	t.Helper()

	plan := BuildPlan(items, preset)
	resolutions, created, err := resolve(context.Background(), store, plan, store.keysByID(), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, resolutions, len(items))

	actions := ClassifyActions(resolutions)

	targets := make(map[int64]int64, len(resolutions))
	reassigned := 0
	for _, r := range resolutions {
		targets[r.Item.ID] = r.NewCanonicalID
		if r.Item.CanonicalID != r.NewCanonicalID {
			reassigned++
		}
	}

	next := make([]Item, 0, len(items))
	referenced := make(map[int64]bool, len(items))
	for _, item := range items {
		item.CanonicalID = targets[item.ID]
		referenced[item.CanonicalID] = true
		next = append(next, item)
	}

	deleted := 0
	for id := range store.canonicals {
		if !referenced[id] {
			delete(store.canonicals, id)
			deleted++
		}
	}

	return next, passResult{actions: actions, created: created, reassigned: reassigned, deleted: deleted}
}

func TestResolveRerunIsNoOp(t *testing.T) {
	t.Parallel()

	store := newFakeCanonicalStore()
	items := []Item{
		{ID: 1, Title: "effects x y", FirstAuthor: "smith", Year: 2019, Identifier: "10.1/abc"},
		{ID: 2, Title: "effects x y", FirstAuthor: "jones", Year: 2019, Identifier: "10.1/abc"},
		{ID: 3, Title: "other paper", FirstAuthor: "lee", Year: 2020, Identifier: "10.2/def"},
		{ID: 4, Title: "keyless fragment"},
	}
	for i := range items {
		items[i].CanonicalID = store.seed(nil)
	}

	items, first := runPass(t, store, items, matchkey.PresetDOIFirstStrict)
	require.Positive(t, first.reassigned)

	countAfterFirst := len(store.canonicals)

	// Same items, same strategy: the second run must not move a single
	// pointer, create or delete a record, or relabel anything.
	items, second := runPass(t, store, items, matchkey.PresetDOIFirstStrict)
	require.Zero(t, second.created)
	require.Zero(t, second.reassigned)
	require.Zero(t, second.deleted)
	require.Equal(t, countAfterFirst, len(store.canonicals))
	for _, item := range items {
		require.Equal(t, ActionUnchanged, second.actions[item.ID])
	}
}

func TestResolveSplitsSharedNullKeyCanonical(t *testing.T) {
	t.Parallel()

	// A previous looser strategy clustered two records that produce no key
	// under strict (title and year but no author). They must end up in
	// separate singletons, and the kept record must lose its stale key.
	store := newFakeCanonicalStore()
	staleKey := "ty:effects x y|2019"
	shared := store.seed(&staleKey)
	items := []Item{
		{ID: 1, CanonicalID: shared, Title: "effects x y", Year: 2019},
		{ID: 2, CanonicalID: shared, Title: "effects x y", Year: 2019},
	}

	items, result := runPass(t, store, items, matchkey.PresetStrict)

	require.Equal(t, 1, result.created)
	require.Equal(t, shared, items[0].CanonicalID)
	require.Nil(t, store.canonicals[shared])
	require.NotEqual(t, shared, items[1].CanonicalID)
	require.Nil(t, store.canonicals[items[1].CanonicalID])
	require.Equal(t, ActionUnchanged, result.actions[1])
	require.Equal(t, ActionSplit, result.actions[2])
}

func TestResolveStrategySwitchMergesThenSplits(t *testing.T) {
	t.Parallel()

	store := newFakeCanonicalStore()
	items := []Item{
		{ID: 1, Title: "effects x y", FirstAuthor: "smith", Year: 2019},
		{ID: 2, Title: "effects x y", FirstAuthor: "jones", Year: 2019},
		{ID: 3, Title: "other paper", FirstAuthor: "lee", Year: 2020},
	}
	for i := range items {
		items[i].CanonicalID = store.seed(nil)
	}

	// Under strict every record is its own cluster; records are re-keyed in
	// place so nothing moves.
	items, result := runPass(t, store, items, matchkey.PresetStrict)
	require.Zero(t, result.reassigned)

	// Medium drops the author: records 1 and 2 merge, record 3 keeps its
	// cluster and just re-keys.
	bystander := items[2].CanonicalID
	items, result = runPass(t, store, items, matchkey.PresetMedium)
	require.Equal(t, ActionMerged, result.actions[1])
	require.Equal(t, ActionMerged, result.actions[2])
	require.Equal(t, ActionUnchanged, result.actions[3])
	require.Equal(t, items[0].CanonicalID, items[1].CanonicalID)
	require.Equal(t, bystander, items[2].CanonicalID)
	require.Equal(t, 2, result.deleted)

	// Re-running medium over the merged state is a no-op.
	items, result = runPass(t, store, items, matchkey.PresetMedium)
	require.Zero(t, result.created)
	require.Zero(t, result.reassigned)
	require.Zero(t, result.deleted)

	// Switching back to strict fans the merged cluster out again while the
	// untouched cluster keeps its identity.
	merged := items[0].CanonicalID
	items, result = runPass(t, store, items, matchkey.PresetStrict)
	require.Equal(t, ActionSplit, result.actions[1])
	require.Equal(t, ActionSplit, result.actions[2])
	require.Equal(t, ActionUnchanged, result.actions[3])
	require.NotEqual(t, items[0].CanonicalID, items[1].CanonicalID)
	require.Equal(t, bystander, items[2].CanonicalID)
	require.NotContains(t, store.canonicals, merged)
}

func TestRunGuardedConvertsPanic(t *testing.T) {
	t.Parallel()

	err := runGuarded(func() error { panic("boom") })
	require.ErrorContains(t, err, "boom")

	require.NoError(t, runGuarded(func() error { return nil }))

	sentinel := fmt.Errorf("plain failure")
	require.ErrorIs(t, runGuarded(func() error { return sentinel }), sentinel)
}
