package store

import (
	"context"
	"testing"
	"time"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/pkg/repo"
)

func TestDatasetRepoCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := NewDatasetRepo(s)

	_, err := r.Create(ctx, domain.Dataset{
		ID: "d1", Name: "first", AnnotationPath: "a.json", ImageBasePath: "images/",
		Format: domain.FormatCOCO, DatasetType: domain.DatasetTypeDetection, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := r.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "first" {
		t.Fatalf("expected name first, got %s", got.Name)
	}

	got.Name = "second"
	updated, err := r.Update(ctx, got)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "second" {
		t.Fatalf("expected name second, got %s", updated.Name)
	}

	list, err := r.List(ctx, repo.ListOpts{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "d1" {
		t.Fatalf("expected one dataset d1, got %+v", list)
	}

	if err := r.Delete(ctx, "d1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Get(ctx, "d1"); err == nil {
		t.Fatal("expected not found after delete")
	}
}

func TestDatasetRepoUpdateMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := NewDatasetRepo(s)

	_, err := r.Update(ctx, domain.Dataset{ID: "missing", Name: "x"})
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}
