package dedupe

import (
	"context"
	"testing"
)

func TestUnionFindMergesTransitively(t *testing.T) {
	uf := NewUnionFind([]string{"a", "b", "c", "d"})
	uf.Union("a", "b")
	uf.Union("b", "c")
	if uf.Find("a") != uf.Find("c") {
		t.Fatalf("expected a and c in the same set")
	}
	if uf.Find("a") == uf.Find("d") {
		t.Fatalf("expected d to remain isolated")
	}
}

func TestClusterFiltersSingletonsAndSortsBySize(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	neighbours := map[string][]string{
		"a": {"b"},
		"b": {"a"},
		"c": {"d", "e"},
		"d": {"c"},
		"e": {"c"},
	}

	groups, err := Cluster(context.Background(), ids, func(_ context.Context, id string) ([]string, error) {
		return neighbours[id], nil
	}, nil)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(groups), groups)
	}
	if len(groups[0].SampleIDs) != 3 {
		t.Fatalf("expected largest group first with 3 members, got %+v", groups[0])
	}
	if groups[0].SampleIDs[0] != "c" || groups[0].SampleIDs[1] != "d" || groups[0].SampleIDs[2] != "e" {
		t.Fatalf("expected ascending sort within group, got %+v", groups[0].SampleIDs)
	}
}

func TestClusterEmitsProgress(t *testing.T) {
	ids := []string{"a", "b"}
	events := make(chan Progress, 8)
	_, err := Cluster(context.Background(), ids, func(_ context.Context, id string) ([]string, error) {
		return nil, nil
	}, events)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	close(events)

	var sawGrouping bool
	for p := range events {
		if p.Phase == PhaseGrouping {
			sawGrouping = true
		}
	}
	if !sawGrouping {
		t.Fatal("expected a grouping-phase tick")
	}
}
