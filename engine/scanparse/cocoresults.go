package scanparse

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/visionset/lens/engine/store"
)

// CocoResultsParser streams a COCO-results predictions file: a flat
// top-level JSON array of {image_id, category_id, bbox:[x,y,w,h], score}.
// Predictions carry no category list of their own, so the caller supplies
// the category_id -> name lookup built from the dataset's ground truth.
type CocoResultsParser struct {
	open Opener
}

func NewCocoResultsParser(open Opener) *CocoResultsParser {
	return &CocoResultsParser{open: open}
}

func (p *CocoResultsParser) FormatName() string { return "coco_results" }

type cocoResultRow struct {
	ImageID    json.Number   `json:"image_id"`
	CategoryID *int          `json:"category_id"`
	BBox       []json.Number `json:"bbox"`
	Score      *float64      `json:"score"`
}

// BuildAnnotationBatches streams the predictions array, emitting one
// AnnotationRow per entry tagged with source. Unknown category_id maps to
// "unknown"; malformed bbox defaults to four zeros, matching the ground
// truth parser's tolerance (§4.3).
func (p *CocoResultsParser) BuildAnnotationBatches(source string, categoryLookup map[int]string, emit AnnotationBatchFunc) (int, error) {
	r, err := p.open()
	if err != nil {
		return 0, fmt.Errorf("coco_results: open: %w", err)
	}
	defer r.Close()

	skipped := 0
	batcher := &annotationBatcher{emit: emit}
	err = walkRootArray(r, func(raw json.RawMessage) error {
		var row cocoResultRow
		if err := json.Unmarshal(raw, &row); err != nil {
			skipped++
			return nil
		}
		name := "unknown"
		if row.CategoryID != nil {
			if n, ok := categoryLookup[*row.CategoryID]; ok {
				name = n
			}
		}
		x, y, w, h := bboxOrZero(row.BBox)
		var score *float64
		if row.Score != nil {
			s := *row.Score
			score = &s
		}
		out := store.AnnotationRow{
			ID:           uuid.NewString(),
			SampleID:     row.ImageID.String(),
			CategoryName: name,
			BBoxX:        x, BBoxY: y, BBoxW: w, BBoxH: h,
			Area:       w * h,
			Source:     source,
			Confidence: score,
		}
		return batcher.add(out)
	})
	if err != nil {
		return skipped, fmt.Errorf("coco_results: parse: %w", err)
	}
	if err := batcher.Flush(); err != nil {
		return skipped, err
	}
	return skipped, nil
}
