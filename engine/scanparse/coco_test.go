package scanparse

import (
	"io"
	"strings"
	"testing"

	"github.com/visionset/lens/engine/store"
)

func openerFor(body string) Opener {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	}
}

const cocoFixture = `{
  "categories": [{"id": 1, "name": "cat", "supercategory": "animal"}],
  "images": [{"id": 1, "file_name": "a.jpg", "width": 100, "height": 200}],
  "annotations": [{"id": 1, "image_id": 1, "category_id": 1, "bbox": [1,2,3,4], "iscrowd": 0}]
}`

func TestCOCOParserRoundTrip(t *testing.T) {
	p := NewCOCOParser(openerFor(cocoFixture))

	_, lookup, err := p.ParseCategories()
	if err != nil {
		t.Fatalf("ParseCategories: %v", err)
	}
	if lookup[1] != "cat" {
		t.Fatalf("expected category lookup[1]=cat, got %v", lookup)
	}

	var images []store.ImageRow
	dims, skipped, err := p.BuildImageBatches(nil, func(rows []store.ImageRow) error {
		images = append(images, rows...)
		return nil
	})
	if err != nil {
		t.Fatalf("BuildImageBatches: %v", err)
	}
	if skipped != 0 || len(images) != 1 || images[0].Filename != "a.jpg" {
		t.Fatalf("unexpected images=%v skipped=%d", images, skipped)
	}
	if dims["1"] != [2]int{100, 200} {
		t.Fatalf("unexpected dims: %v", dims)
	}

	var anns []store.AnnotationRow
	skipped, err = p.BuildAnnotationBatches(lookup, func(rows []store.AnnotationRow) error {
		anns = append(anns, rows...)
		return nil
	})
	if err != nil {
		t.Fatalf("BuildAnnotationBatches: %v", err)
	}
	if skipped != 0 || len(anns) != 1 {
		t.Fatalf("unexpected anns=%v skipped=%d", anns, skipped)
	}
	if anns[0].CategoryName != "cat" || anns[0].BBoxW != 3 {
		t.Fatalf("unexpected annotation: %+v", anns[0])
	}
}

func TestCOCOParserUnknownCategory(t *testing.T) {
	body := `{"categories":[],"images":[],"annotations":[{"id":1,"image_id":1,"category_id":99,"bbox":[0,0,0,0]}]}`
	p := NewCOCOParser(openerFor(body))
	var anns []store.AnnotationRow
	_, err := p.BuildAnnotationBatches(map[int]string{}, func(rows []store.AnnotationRow) error {
		anns = append(anns, rows...)
		return nil
	})
	if err != nil {
		t.Fatalf("BuildAnnotationBatches: %v", err)
	}
	if len(anns) != 1 || anns[0].CategoryName != "unknown" {
		t.Fatalf("expected unknown category, got %+v", anns)
	}
}

func TestCOCOParserMalformedBBox(t *testing.T) {
	body := `{"annotations":[{"id":1,"image_id":1,"category_id":1,"bbox":[1,2,-3,4]}]}`
	p := NewCOCOParser(openerFor(body))
	var anns []store.AnnotationRow
	_, err := p.BuildAnnotationBatches(map[int]string{1: "x"}, func(rows []store.AnnotationRow) error {
		anns = append(anns, rows...)
		return nil
	})
	if err != nil {
		t.Fatalf("BuildAnnotationBatches: %v", err)
	}
	if anns[0].BBoxW != 0 || anns[0].BBoxH != 0 {
		t.Fatalf("expected zeroed bbox on negative dims, got %+v", anns[0])
	}
}
