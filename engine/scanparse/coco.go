package scanparse

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/visionset/lens/engine/store"
)

// Opener yields a fresh reader over the same source, allowing a parser to
// make multiple passes (categories, then images, then annotations) without
// holding the whole file in memory at once.
type Opener func() (io.ReadCloser, error)

// COCOParser streams a COCO-format annotation file. It implements the
// shared parser contract from spec.md §9: format_name, parse_categories,
// build_image_batches, build_annotation_batches.
type COCOParser struct {
	open Opener
}

func NewCOCOParser(open Opener) *COCOParser { return &COCOParser{open: open} }

func (p *COCOParser) FormatName() string { return "coco" }

type cocoCategory struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

type cocoImage struct {
	ID       json.Number `json:"id"`
	FileName string      `json:"file_name"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
}

type cocoAnnotation struct {
	ID         json.Number   `json:"id"`
	ImageID    json.Number   `json:"image_id"`
	CategoryID *int          `json:"category_id"`
	BBox       []json.Number `json:"bbox"`
	Area       *float64      `json:"area"`
	IsCrowd    int           `json:"iscrowd"`
}

// ParseCategories reads the categories.item path. Returns the category rows
// and a lookup from category_id to name for annotation building.
func (p *COCOParser) ParseCategories() ([]store.CategoryRow, map[int]string, error) {
	r, err := p.open()
	if err != nil {
		return nil, nil, fmt.Errorf("coco: open for categories: %w", err)
	}
	defer r.Close()

	var rows []store.CategoryRow
	lookup := map[int]string{}
	_, err = walkTopLevelArray(r, "categories", func(raw json.RawMessage) error {
		var c cocoCategory
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil // malformed category row: skipped, never fatal
		}
		rows = append(rows, store.CategoryRow{CategoryID: c.ID, Name: c.Name, Supercategory: c.Supercategory})
		lookup[c.ID] = c.Name
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("coco: parse categories: %w", err)
	}
	return rows, lookup, nil
}

// BuildImageBatches streams images.item, emitting ImageRow batches. split is
// applied to every sample (single-split call; ingest_splits composes N of
// these under one dataset_id per §4.5). Returns the image_id -> (width,
// height) lookup annotation building needs for bbox normalisation in other
// formats, plus a skipped-record count.
func (p *COCOParser) BuildImageBatches(split *string, emit ImageBatchFunc) (map[string][2]int, int, error) {
	r, err := p.open()
	if err != nil {
		return nil, 0, fmt.Errorf("coco: open for images: %w", err)
	}
	defer r.Close()

	dims := map[string][2]int{}
	skipped := 0
	batcher := &imageBatcher{emit: emit}
	_, err = walkTopLevelArray(r, "images", func(raw json.RawMessage) error {
		var img cocoImage
		if err := json.Unmarshal(raw, &img); err != nil {
			skipped++
			return nil
		}
		id := img.ID.String()
		dims[id] = [2]int{img.Width, img.Height}
		return batcher.add(store.ImageRow{ID: id, Filename: img.FileName, Width: img.Width, Height: img.Height, Split: split})
	})
	if err != nil {
		return dims, skipped, fmt.Errorf("coco: parse images: %w", err)
	}
	if err := batcher.Flush(); err != nil {
		return dims, skipped, err
	}
	return dims, skipped, nil
}

// BuildAnnotationBatches streams annotations.item, emitting AnnotationRow
// batches. Unknown category_id maps to "unknown"; missing bbox defaults to
// four zeros (§4.3).
func (p *COCOParser) BuildAnnotationBatches(categoryLookup map[int]string, emit AnnotationBatchFunc) (int, error) {
	r, err := p.open()
	if err != nil {
		return 0, fmt.Errorf("coco: open for annotations: %w", err)
	}
	defer r.Close()

	skipped := 0
	batcher := &annotationBatcher{emit: emit}
	_, err = walkTopLevelArray(r, "annotations", func(raw json.RawMessage) error {
		var a cocoAnnotation
		if err := json.Unmarshal(raw, &a); err != nil {
			skipped++
			return nil
		}
		name := "unknown"
		if a.CategoryID != nil {
			if n, ok := categoryLookup[*a.CategoryID]; ok {
				name = n
			}
		}
		x, y, w, h := bboxOrZero(a.BBox)
		area := w * h
		if a.Area != nil {
			area = *a.Area
		}
		row := store.AnnotationRow{
			ID:           annotationID(a.ID),
			SampleID:     a.ImageID.String(),
			CategoryName: name,
			BBoxX:        x, BBoxY: y, BBoxW: w, BBoxH: h,
			Area:    area,
			IsCrowd: a.IsCrowd != 0,
			Source:  "ground_truth",
		}
		return batcher.add(row)
	})
	if err != nil {
		return skipped, fmt.Errorf("coco: parse annotations: %w", err)
	}
	if err := batcher.Flush(); err != nil {
		return skipped, err
	}
	return skipped, nil
}

func bboxOrZero(nums []json.Number) (x, y, w, h float64) {
	if len(nums) != 4 {
		return 0, 0, 0, 0
	}
	vals := make([]float64, 4)
	for i, n := range nums {
		f, err := n.Float64()
		if err != nil {
			return 0, 0, 0, 0
		}
		vals[i] = f
	}
	if vals[2] < 0 || vals[3] < 0 {
		return 0, 0, 0, 0
	}
	return vals[0], vals[1], vals[2], vals[3]
}

func annotationID(n json.Number) string {
	return n.String()
}
