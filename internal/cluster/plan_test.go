package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"collate/internal/matchkey"
)

func TestBuildPlanGroupsByIdentifier(t *testing.T) {
	t.Parallel()

	items := []Item{
		{ID: 1, CanonicalID: 10, Title: "effects x y", FirstAuthor: "smith", Year: 2019, Identifier: "10.1/abc"},
		{ID: 2, CanonicalID: 11, Title: "something else", FirstAuthor: "jones", Year: 2020, Identifier: "10.1/abc"},
		{ID: 3, CanonicalID: 12, Title: "third paper", FirstAuthor: "lee", Year: 2021, Identifier: "10.2/def"},
	}

	plan := BuildPlan(items, matchkey.PresetDOIFirstStrict)

	require.Len(t, plan.Groups, 2)
	require.Empty(t, plan.Isolated)
	require.Equal(t, "id:10.1/abc", plan.Groups[0].Key)
	require.Equal(t, matchkey.BasisIdentifier, plan.Groups[0].Basis)
	require.Len(t, plan.Groups[0].Members, 2)
	require.Equal(t, "id:10.2/def", plan.Groups[1].Key)
}

func TestBuildPlanNullKeyItemsNeverGroup(t *testing.T) {
	t.Parallel()

	// Neither item can produce a key under strict (no identifier, no author),
	// so both stay isolated even though their fields are identical.
	items := []Item{
		{ID: 1, CanonicalID: 10, Title: "effects x y", Year: 2019},
		{ID: 2, CanonicalID: 11, Title: "effects x y", Year: 2019},
	}

	plan := BuildPlan(items, matchkey.PresetStrict)

	require.Empty(t, plan.Groups)
	require.Len(t, plan.Isolated, 2)
	require.Equal(t, int64(1), plan.Isolated[0].ID)
	require.Equal(t, int64(2), plan.Isolated[1].ID)
}

func TestBuildPlanDeterministicOrder(t *testing.T) {
	t.Parallel()

	items := []Item{
		{ID: 3, CanonicalID: 3, Identifier: "10.9/zzz"},
		{ID: 1, CanonicalID: 1, Identifier: "10.1/aaa"},
		{ID: 2, CanonicalID: 2, Identifier: "10.5/mmm"},
	}

	first := BuildPlan(items, matchkey.PresetDOIFirstMedium)
	for i := 0; i < 20; i++ {
		again := BuildPlan(items, matchkey.PresetDOIFirstMedium)
		require.Equal(t, first, again)
	}
	require.Equal(t, "id:10.1/aaa", first.Groups[0].Key)
	require.Equal(t, "id:10.5/mmm", first.Groups[1].Key)
	require.Equal(t, "id:10.9/zzz", first.Groups[2].Key)
}

func TestPickRepresentativePrefersIdentifierThenCompleteness(t *testing.T) {
	t.Parallel()

	members := []Item{
		{ID: 1, BibFields: 6},
		{ID: 2, BibFields: 2, Identifier: "10.1/abc"},
		{ID: 3, BibFields: 5, Identifier: "10.1/abc"},
	}
	require.Equal(t, int64(3), pickRepresentative(members).ID)

	// No identifiers: completeness wins.
	members = []Item{
		{ID: 1, BibFields: 3},
		{ID: 2, BibFields: 5},
	}
	require.Equal(t, int64(2), pickRepresentative(members).ID)

	// Full tie: earliest-ingested wins.
	members = []Item{
		{ID: 7, BibFields: 4},
		{ID: 4, BibFields: 4},
	}
	require.Equal(t, int64(4), pickRepresentative(members).ID)
}

func TestSoleOwnerRequiresWholeCluster(t *testing.T) {
	t.Parallel()

	group := Group{Members: []Item{
		{ID: 1, CanonicalID: 10},
		{ID: 2, CanonicalID: 10},
	}}

	// Both members share record 10 and nothing outside points at it.
	counts := map[int64]int{10: 2}
	require.Equal(t, int64(10), group.SoleOwner(counts))

	// An outside item still points at record 10, so the group cannot take it.
	counts = map[int64]int{10: 3}
	require.Equal(t, int64(0), group.SoleOwner(counts))

	// Members disagree about their prior record.
	group.Members[1].CanonicalID = 11
	counts = map[int64]int{10: 1, 11: 1}
	require.Equal(t, int64(0), group.SoleOwner(counts))
}

func TestClassifyActionsStablePointer(t *testing.T) {
	t.Parallel()

	resolutions := []Resolution{
		{Item: Item{ID: 1, CanonicalID: 10}, NewCanonicalID: 10},
		{Item: Item{ID: 2, CanonicalID: 10}, NewCanonicalID: 10},
	}
	actions := ClassifyActions(resolutions)
	require.Equal(t, ActionUnchanged, actions[1])
	require.Equal(t, ActionUnchanged, actions[2])
}

func TestClassifyActionsSplit(t *testing.T) {
	t.Parallel()

	// One old cluster fans out into two: every moved member is a split.
	resolutions := []Resolution{
		{Item: Item{ID: 1, CanonicalID: 10}, NewCanonicalID: 10},
		{Item: Item{ID: 2, CanonicalID: 10}, NewCanonicalID: 20, TargetCreated: true},
	}
	actions := ClassifyActions(resolutions)
	require.Equal(t, ActionUnchanged, actions[1])
	require.Equal(t, ActionSplit, actions[2])
}

func TestClassifyActionsMerged(t *testing.T) {
	t.Parallel()

	// Two old clusters collapse onto one surviving record.
	resolutions := []Resolution{
		{Item: Item{ID: 1, CanonicalID: 10}, NewCanonicalID: 10},
		{Item: Item{ID: 2, CanonicalID: 11}, NewCanonicalID: 10},
	}
	actions := ClassifyActions(resolutions)
	require.Equal(t, ActionUnchanged, actions[1])
	require.Equal(t, ActionMerged, actions[2])
}

func TestClassifyActionsCreated(t *testing.T) {
	t.Parallel()

	// A whole old cluster moves onto a freshly created record without
	// splitting or absorbing anyone: that is a plain re-keying, not a merge.
	resolutions := []Resolution{
		{Item: Item{ID: 1, CanonicalID: 10}, NewCanonicalID: 30, TargetCreated: true},
		{Item: Item{ID: 2, CanonicalID: 10}, NewCanonicalID: 30, TargetCreated: true},
	}
	actions := ClassifyActions(resolutions)
	require.Equal(t, ActionCreated, actions[1])
	require.Equal(t, ActionCreated, actions[2])
}

func TestClassifyActionsMergeAndSplitCombined(t *testing.T) {
	t.Parallel()

	// Old cluster 10 splits across records 20 and 21 while record 20 also
	// absorbs old cluster 11. Split takes precedence for members of 10;
	// the member of 11 is a merge.
	resolutions := []Resolution{
		{Item: Item{ID: 1, CanonicalID: 10}, NewCanonicalID: 20},
		{Item: Item{ID: 2, CanonicalID: 10}, NewCanonicalID: 21, TargetCreated: true},
		{Item: Item{ID: 3, CanonicalID: 11}, NewCanonicalID: 20},
	}
	actions := ClassifyActions(resolutions)
	require.Equal(t, ActionSplit, actions[1])
	require.Equal(t, ActionSplit, actions[2])
	require.Equal(t, ActionMerged, actions[3])
}
