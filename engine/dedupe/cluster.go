package dedupe

import (
	"context"
	"sort"
)

// Progress is one tick of the two-phase scanning/grouping report (§4.13).
type Progress struct {
	Phase   string // "scanning" or "grouping"
	Current int
	Total   int
}

const (
	PhaseScanning = "scanning"
	PhaseGrouping = "grouping"
)

// progressEvery is how often (in items) the scanning phase emits a tick;
// the final item always ticks regardless of this stride.
const progressEvery = 10

// Group is one cluster of near-duplicate sample ids, size >= 2, ids sorted
// ascending.
type Group struct {
	SampleIDs []string
}

// NeighbourFunc returns the ids of every sample within the duplicate
// threshold of id (the caller has already applied the score cutoff and the
// top-10 cap via the vector index query).
type NeighbourFunc func(ctx context.Context, id string) ([]string, error)

// Cluster runs the scanning phase (querying every id's neighbours and
// union-merging each pair) followed by the grouping phase, emitting
// Progress on events as it goes. events may be nil to run silently.
func Cluster(ctx context.Context, ids []string, neighboursOf NeighbourFunc, events chan<- Progress) ([]Group, error) {
	uf := NewUnionFind(ids)

	emit := func(p Progress) {
		if events != nil {
			events <- p
		}
	}

	total := len(ids)
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		neighbours, err := neighboursOf(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbours {
			uf.add(n)
			uf.Union(id, n)
		}
		if (i+1)%progressEvery == 0 || i == total-1 {
			emit(Progress{Phase: PhaseScanning, Current: i + 1, Total: total})
		}
	}

	emit(Progress{Phase: PhaseGrouping, Current: 1, Total: 1})
	return buildGroups(uf), nil
}

// buildGroups filters union-find members to size >= 2, sorts sample ids
// ascending within each group, and sorts groups by size descending.
func buildGroups(uf *UnionFind) []Group {
	members := uf.Members()
	groups := make([]Group, 0, len(members))
	for _, ids := range members {
		if len(ids) < 2 {
			continue
		}
		sorted := append([]string{}, ids...)
		sort.Strings(sorted)
		groups = append(groups, Group{SampleIDs: sorted})
	}
	sort.SliceStable(groups, func(i, j int) bool { return len(groups[i].SampleIDs) > len(groups[j].SampleIDs) })
	return groups
}
