package cluster

import (
	"sort"

	"collate/internal/matchkey"
)

// Item is one source item as the planner sees it: precomputed normalized
// fields plus enough metadata to pick representatives. Raw payloads never
// reach the planner.
type Item struct {
	ID          int64
	CanonicalID int64
	Title       string
	FirstAuthor string
	Identifier  string
	Year        int
	BibFields   int
}

// Group is one keyed cluster: every member computed the same non-empty
// match key under the run's preset.
type Group struct {
	Key            string
	Basis          matchkey.Basis
	Members        []Item
	Representative Item
}

// Plan is the deterministic regrouping of a project's items under one
// preset. Groups are ordered by key and isolated items by ingestion order,
// so identical input always yields an identical plan.
type Plan struct {
	Preset   matchkey.Preset
	Groups   []Group
	Isolated []Item
}

// BuildPlan computes the match key for every item and groups them. Items
// without a key are never grouped with anything, including each other.
func BuildPlan(items []Item, preset matchkey.Preset) Plan {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	grouped := make(map[string][]Item)
	bases := make(map[string]matchkey.Basis)
	var isolated []Item

	for _, item := range sorted {
		key, basis := matchkey.Compute(item.Title, item.FirstAuthor, item.Year, item.Identifier, preset)
		if key == "" {
			isolated = append(isolated, item)
			continue
		}
		grouped[key] = append(grouped[key], item)
		bases[key] = basis
	}

	keys := make([]string, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	groups := make([]Group, 0, len(keys))
	for _, key := range keys {
		members := grouped[key]
		groups = append(groups, Group{
			Key:            key,
			Basis:          bases[key],
			Members:        members,
			Representative: pickRepresentative(members),
		})
	}

	return Plan{Preset: preset, Groups: groups, Isolated: isolated}
}

// pickRepresentative chooses the member whose bibliographic fields seed a
// new canonical record: identifier bearers first, then the most complete
// record, then the earliest-ingested.
func pickRepresentative(members []Item) Item {
	best := members[0]
	for _, candidate := range members[1:] {
		if representativeLess(best, candidate) {
			best = candidate
		}
	}
	return best
}

func representativeLess(current, candidate Item) bool {
	currentHasID := current.Identifier != ""
	candidateHasID := candidate.Identifier != ""
	if currentHasID != candidateHasID {
		return candidateHasID
	}
	if current.BibFields != candidate.BibFields {
		return candidate.BibFields > current.BibFields
	}
	return candidate.ID < current.ID
}

// SoleOwner reports the prior canonical record wholly absorbed by this
// group: every member points at it and no outside item does. Such a record
// can be re-keyed in place instead of deleted and recreated, keeping its
// identity stable. Returns 0 when no such record exists.
func (g Group) SoleOwner(ownerCounts map[int64]int) int64 {
	if len(g.Members) == 0 {
		return 0
	}
	owner := g.Members[0].CanonicalID
	for _, member := range g.Members[1:] {
		if member.CanonicalID != owner {
			return 0
		}
	}
	if ownerCounts[owner] != len(g.Members) {
		return 0
	}
	return owner
}

// OwnerCounts tallies how many loaded items point at each canonical record.
func OwnerCounts(items []Item) map[int64]int {
	counts := make(map[int64]int, len(items))
	for _, item := range items {
		counts[item.CanonicalID]++
	}
	return counts
}

// Audit transition labels, persisted verbatim.
const (
	ActionUnchanged = "unchanged"
	ActionMerged    = "merged"
	ActionSplit     = "split"
	ActionCreated   = "created"
)

// Resolution records where one item ended up after canonical targets were
// resolved against storage.
type Resolution struct {
	Item           Item
	Key            string
	Basis          matchkey.Basis
	NewCanonicalID int64
	TargetCreated  bool
}

// ClassifyActions labels every resolution with its audit transition:
// unchanged when the pointer is stable; split when the item's previous
// cluster fans out into several new ones; merged when its new cluster
// unites members of several previous ones; created when a whole previous
// cluster moved onto a freshly created canonical record.
func ClassifyActions(resolutions []Resolution) map[int64]string {
	oldFanout := make(map[int64]map[int64]struct{})
	newSources := make(map[int64]map[int64]struct{})
	for _, r := range resolutions {
		if oldFanout[r.Item.CanonicalID] == nil {
			oldFanout[r.Item.CanonicalID] = make(map[int64]struct{})
		}
		oldFanout[r.Item.CanonicalID][r.NewCanonicalID] = struct{}{}
		if newSources[r.NewCanonicalID] == nil {
			newSources[r.NewCanonicalID] = make(map[int64]struct{})
		}
		newSources[r.NewCanonicalID][r.Item.CanonicalID] = struct{}{}
	}

	actions := make(map[int64]string, len(resolutions))
	for _, r := range resolutions {
		switch {
		case r.Item.CanonicalID == r.NewCanonicalID:
			actions[r.Item.ID] = ActionUnchanged
		case len(oldFanout[r.Item.CanonicalID]) > 1:
			actions[r.Item.ID] = ActionSplit
		case len(newSources[r.NewCanonicalID]) > 1:
			actions[r.Item.ID] = ActionMerged
		case r.TargetCreated:
			actions[r.Item.ID] = ActionCreated
		default:
			actions[r.Item.ID] = ActionMerged
		}
	}
	return actions
}
