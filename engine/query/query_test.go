package query

import (
	"context"
	"testing"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateDataset(ctx, domain.Dataset{ID: "d1", Name: "test", Format: domain.FormatCOCO}); err != nil {
		t.Fatal(err)
	}
	trainSplit := "train"
	valSplit := "val"
	if err := s.BulkInsertImages(ctx, "d1", []store.ImageRow{
		{ID: "s1", Filename: "alpha.jpg", Split: &trainSplit},
		{ID: "s2", Filename: "beta.jpg", Split: &valSplit},
		{ID: "s3", Filename: "gamma.jpg", Split: &trainSplit},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.BulkInsertAnnotations(ctx, "d1", []store.AnnotationRow{
		{ID: "a1", SampleID: "s1", CategoryName: "car", Source: "ground_truth"},
		{ID: "a2", SampleID: "s2", CategoryName: "truck", Source: "ground_truth"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.BulkTag(ctx, "d1", "reviewed", []string{"s1"}); err != nil {
		t.Fatal(err)
	}
}

func TestFilterMissingDatasetID(t *testing.T) {
	_, err := Build(Filter{})
	if err == nil {
		t.Fatal("expected error for missing dataset_id")
	}
}

func TestFilterSplitAndTag(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	train := "train"
	page, err := Run(context.Background(), s, Filter{DatasetID: "d1", Split: &train})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(page.Samples) != 2 {
		t.Fatalf("expected 2 train samples, got %d: %+v", len(page.Samples), page.Samples)
	}

	page, err = Run(context.Background(), s, Filter{DatasetID: "d1", Tags: []string{"reviewed"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(page.Samples) != 1 || page.Samples[0].ID != "s1" {
		t.Fatalf("expected only s1 tagged reviewed, got %+v", page.Samples)
	}
}

func TestFilterCategoryJoin(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	cat := "car"
	page, err := Run(context.Background(), s, Filter{DatasetID: "d1", Category: &cat})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(page.Samples) != 1 || page.Samples[0].ID != "s1" {
		t.Fatalf("expected only s1 to have category car, got %+v", page.Samples)
	}
}

func TestFilterSortFallback(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	page, err := Run(context.Background(), s, Filter{DatasetID: "d1", SortColumn: "not_a_real_column"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(page.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(page.Samples))
	}
	if page.Samples[0].ID != "s1" || page.Samples[1].ID != "s2" || page.Samples[2].ID != "s3" {
		t.Fatalf("expected id ASC fallback ordering, got %+v", page.Samples)
	}
}

func TestFilterTooManyIDs(t *testing.T) {
	ids := make([]string, MaxIDAllowList+1)
	for i := range ids {
		ids[i] = "x"
	}
	_, err := Build(Filter{DatasetID: "d1", IDAllowList: ids})
	if err == nil {
		t.Fatal("expected error for oversized id-allow-list")
	}
}
