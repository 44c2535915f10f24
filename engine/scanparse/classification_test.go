package scanparse

import (
	"strings"
	"testing"

	"github.com/visionset/lens/engine/store"
)

func TestClassificationParserAliasesAndMultiLabel(t *testing.T) {
	body := strings.Join([]string{
		`{"file_name": "a.jpg", "label": "cat"}`,
		`{"image": "b.jpg", "class": ["dog", "puppy"]}`,
		`{"path": "c.jpg"}`,
	}, "\n")
	p := NewClassificationParser(openerFor(body))

	var images []store.ImageRow
	skipped, err := p.BuildImageBatches(nil, func(rows []store.ImageRow) error {
		images = append(images, rows...)
		return nil
	})
	if err != nil {
		t.Fatalf("BuildImageBatches: %v", err)
	}
	if skipped != 0 || len(images) != 3 {
		t.Fatalf("unexpected images=%v skipped=%d", images, skipped)
	}

	var anns []store.AnnotationRow
	_, err = p.BuildAnnotationBatches("ground_truth", func(rows []store.AnnotationRow) error {
		anns = append(anns, rows...)
		return nil
	})
	if err != nil {
		t.Fatalf("BuildAnnotationBatches: %v", err)
	}
	if len(anns) != 4 { // cat + dog + puppy + unknown
		t.Fatalf("expected 4 annotations (multi-label expanded + unknown fallback), got %d: %+v", len(anns), anns)
	}
	last := anns[len(anns)-1]
	if last.CategoryName != "unknown" {
		t.Fatalf("expected missing-label record to fall back to unknown, got %q", last.CategoryName)
	}
}

func TestClassificationParserSkipsMalformedLines(t *testing.T) {
	body := strings.Join([]string{
		`not json`,
		`{"no_filename_key": true}`,
		`{"filename": "ok.jpg", "label": "x"}`,
	}, "\n")
	p := NewClassificationParser(openerFor(body))
	var images []store.ImageRow
	skipped, err := p.BuildImageBatches(nil, func(rows []store.ImageRow) error {
		images = append(images, rows...)
		return nil
	})
	if err != nil {
		t.Fatalf("BuildImageBatches: %v", err)
	}
	if skipped != 2 || len(images) != 1 {
		t.Fatalf("expected 2 skipped and 1 image, got skipped=%d images=%v", skipped, images)
	}
}
