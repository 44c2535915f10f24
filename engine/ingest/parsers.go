package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/objstore"
	"github.com/visionset/lens/engine/scanparse"
	"github.com/visionset/lens/engine/store"
)

// cocoAdapter narrows scanparse.COCOParser's image-batch dims return to
// the orchestrator's format-agnostic parser interface; the orchestrator
// has no use for per-image dimensions (only the detection-dir parser,
// invoked separately for predictions, needs that lookup).
type cocoAdapter struct {
	p *scanparse.COCOParser
}

func (a *cocoAdapter) ParseCategories() ([]store.CategoryRow, map[int]string, error) {
	return a.p.ParseCategories()
}

func (a *cocoAdapter) BuildImageBatches(split *string, emit func([]store.ImageRow) error) (int, error) {
	_, skipped, err := a.p.BuildImageBatches(split, emit)
	return skipped, err
}

func (a *cocoAdapter) BuildAnnotationBatches(lookup map[int]string, emit func([]store.AnnotationRow) error) (int, error) {
	return a.p.BuildAnnotationBatches(lookup, emit)
}

// classificationAdapter wraps scanparse.ClassificationParser, whose
// BuildAnnotationBatches takes a source name rather than a category lookup:
// the adapter ignores the lookup and passes domain.GroundTruthSource, so
// newParser can return a single interface value regardless of format.
type classificationAdapter struct {
	p *scanparse.ClassificationParser
}

func (a *classificationAdapter) ParseCategories() ([]store.CategoryRow, map[int]string, error) {
	return a.p.ParseCategories()
}

func (a *classificationAdapter) BuildImageBatches(split *string, emit func([]store.ImageRow) error) (int, error) {
	return a.p.BuildImageBatches(split, emit)
}

func (a *classificationAdapter) BuildAnnotationBatches(_ map[int]string, emit func([]store.AnnotationRow) error) (int, error) {
	return a.p.BuildAnnotationBatches(domain.GroundTruthSource, emit)
}

// newParser dispatches on req.Format, opening annotationPath through fs for
// every pass the chosen parser needs (§9's tagged-variant dispatch).
func newParser(ctx context.Context, fs objstore.FS, annotationPath, format string) (parser, error) {
	opener := func() (io.ReadCloser, error) {
		return fs.Open(ctx, annotationPath)
	}
	switch format {
	case "coco":
		return &cocoAdapter{p: scanparse.NewCOCOParser(opener)}, nil
	case "classification_jsonl":
		return &classificationAdapter{p: scanparse.NewClassificationParser(opener)}, nil
	default:
		return nil, fmt.Errorf("ingest: unknown format %q", format)
	}
}
