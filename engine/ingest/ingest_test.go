package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/visionset/lens/engine/objstore"
	"github.com/visionset/lens/engine/plugin"
	"github.com/visionset/lens/engine/store"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Deps{
		Store:   s,
		FS:      objstore.NewRegistry(nil),
		Plugins: plugin.NewRegistry(logger),
		Logger:  logger,
	})
}

const fixtureCOCO = `{
  "categories": [{"id": 1, "name": "car"}, {"id": 2, "name": "truck"}],
  "images": [
    {"id": 1, "file_name": "a.jpg", "width": 100, "height": 100},
    {"id": 2, "file_name": "b.jpg", "width": 200, "height": 200}
  ],
  "annotations": [
    {"id": 1, "image_id": 1, "category_id": 1, "bbox": [1,2,3,4], "iscrowd": 1},
    {"id": 2, "image_id": 2, "category_id": 999, "bbox": [0,0,0,0]},
    {"id": 3, "image_id": 1, "category_id": 2, "bbox": [5,5,-1,-1]}
  ]
}`

func drain(t *testing.T, events <-chan Progress) []Progress {
	t.Helper()
	var out []Progress
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestIngestCOCOEventOrderAndCounters(t *testing.T) {
	dir := t.TempDir()
	annPath := filepath.Join(dir, "annotations.json")
	if err := os.WriteFile(annPath, []byte(fixtureCOCO), 0o644); err != nil {
		t.Fatal(err)
	}

	o := newTestOrchestrator(t)
	events, err := o.Ingest(context.Background(), Request{
		AnnotationPath: annPath,
		ImageDir:       dir,
		DatasetName:    "test",
		Format:         "coco",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	progress := drain(t, events)
	if len(progress) == 0 {
		t.Fatal("expected at least one progress event")
	}
	if progress[0].Stage != StageCategories {
		t.Fatalf("expected first event to be categories, got %+v", progress[0])
	}
	last := progress[len(progress)-1]
	if last.Stage != StageComplete {
		t.Fatalf("expected last event to be complete, got %+v", progress)
	}
	datasetID := last.Message

	ds, err := o.deps.Store.GetDataset(context.Background(), datasetID)
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if ds.ImageCount != 2 {
		t.Fatalf("expected 2 images, got %d", ds.ImageCount)
	}
	if ds.AnnotationCount != 3 {
		t.Fatalf("expected 3 ground-truth annotations, got %d", ds.AnnotationCount)
	}
	if ds.CategoryCount != 3 { // car, truck, unknown
		t.Fatalf("expected 3 distinct category names, got %d", ds.CategoryCount)
	}
}

func TestIngestMissingFileIsBadInput(t *testing.T) {
	o := newTestOrchestrator(t)
	_, err := o.Ingest(context.Background(), Request{
		AnnotationPath: "/nonexistent/path.json",
		Format:         "coco",
	})
	if err == nil {
		t.Fatal("expected error for missing annotation file")
	}
}
