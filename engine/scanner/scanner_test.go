package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/visionset/lens/engine/objstore"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const miniCOCO = `{"images":[{"id":1,"file_name":"a.jpg","width":10,"height":10}],"annotations":[],"categories":[]}`

func TestDetectFlatCOCO(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "annotations.json"), miniCOCO)
	writeFile(t, filepath.Join(root, "images", "a.jpg"), "fake-bytes")

	s := New(objstore.NewLocalFS())
	result, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Layout != "flat_coco" || result.Format != "coco" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Splits) != 1 || result.Splits[0].ImageCount != 1 {
		t.Fatalf("unexpected splits: %+v", result.Splits)
	}
}

func TestDetectStandardCOCO(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "annotations", "instances_train2017.json"), miniCOCO)
	writeFile(t, filepath.Join(root, "images", "train", "a.jpg"), "fake-bytes")

	s := New(objstore.NewLocalFS())
	result, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Layout != "standard_coco" {
		t.Fatalf("expected standard_coco, got %+v", result)
	}
	if len(result.Splits) != 1 || result.Splits[0].Name != "train" {
		t.Fatalf("unexpected splits: %+v", result.Splits)
	}
}

func TestDetectFlatClassification(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "labels.jsonl"), `{"filename":"a.jpg","label":"cat"}`+"\n"+`{"filename":"b.jpg","label":"dog"}`)
	writeFile(t, filepath.Join(root, "images", "a.jpg"), "fake-bytes")

	s := New(objstore.NewLocalFS())
	result, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Layout != "flat_classification" || result.Format != "classification_jsonl" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDetectClassificationSplitDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "train", "labels.jsonl"), `{"filename":"a.jpg","label":"cat"}`)
	writeFile(t, filepath.Join(root, "val", "labels.jsonl"), `{"filename":"b.jpg","label":"dog"}`)

	s := New(objstore.NewLocalFS())
	result, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Layout != "classification_split_dirs" {
		t.Fatalf("expected classification_split_dirs, got %+v", result)
	}
	if len(result.Splits) != 2 {
		t.Fatalf("expected 2 splits, got %+v", result.Splits)
	}
}

func TestScanNoLayoutDetected(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "readme.txt"), "nothing here")

	s := New(objstore.NewLocalFS())
	result, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Layout != "" || len(result.Warnings) == 0 {
		t.Fatalf("expected no layout and a warning, got %+v", result)
	}
}
