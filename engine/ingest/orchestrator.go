package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/objstore"
	"github.com/visionset/lens/engine/store"
)

// Ingest runs one single-split ingestion, returning a channel of Progress
// events. The channel is closed after the final event (StageComplete on
// success, StageError on failure) — callers range over it rather than
// polling, matching §9's generator guidance. A synchronous error is
// returned only for preconditions checkable before the stream starts
// (missing file, unknown format).
func (o *Orchestrator) Ingest(ctx context.Context, req Request) (<-chan Progress, error) {
	fs := o.deps.FS.Resolve(req.AnnotationPath)
	exists, err := fs.Exists(ctx, req.AnnotationPath)
	if err != nil {
		return nil, domain.NewError(domain.KindStoreError, "annotation_path", err)
	}
	if !exists {
		return nil, domain.NewError(domain.KindBadInput, "annotation_path", fmt.Errorf("annotation file not found: %s", req.AnnotationPath))
	}
	p, err := newParser(ctx, fs, req.AnnotationPath, req.Format)
	if err != nil {
		return nil, domain.NewError(domain.KindBadInput, "format", err)
	}

	datasetID := req.DatasetID
	if datasetID == "" {
		datasetID = uuid.NewString()
	}

	events := make(chan Progress, 16)
	go o.run(ctx, req, datasetID, fs, p, events)
	return events, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, datasetID string, fs objstore.FS, p parser, events chan<- Progress) {
	defer close(events)

	isNew := false
	if _, err := o.deps.Store.GetDataset(ctx, datasetID); err != nil {
		if domain.KindOf(err) != domain.KindNotFound {
			o.fail(events, err)
			return
		}
		isNew = true
	}

	o.deps.Plugins.DispatchIngestStart(datasetID)

	if isNew {
		d := domain.Dataset{
			ID: datasetID, Name: req.DatasetName, AnnotationPath: req.AnnotationPath,
			ImageBasePath: req.ImageDir, Format: domain.Format(req.Format), DatasetType: domain.DatasetTypeDetection,
			CreatedAt: time.Now(),
		}
		if req.Format == "classification_jsonl" {
			d.DatasetType = domain.DatasetTypeClassification
		}
		if err := o.deps.Store.CreateDataset(ctx, d); err != nil {
			o.fail(events, err)
			return
		}
	}

	categoryRows, categoryLookup, err := p.ParseCategories()
	if err != nil {
		o.fail(events, domain.NewError(domain.KindParseError, "categories", err))
		return
	}
	if len(categoryRows) > 0 {
		if err := o.deps.Store.UpsertCategories(ctx, datasetID, categoryRows); err != nil {
			o.fail(events, err)
			return
		}
	}
	events <- Progress{Stage: StageCategories, Total: -1, Message: fmt.Sprintf("%d categories", len(categoryRows))}

	imageBatch := 0
	imagesSkipped, err := p.BuildImageBatches(req.Split, func(rows []store.ImageRow) error {
		for i := range rows {
			rows[i].ImageDir = req.ImageDir
		}
		if err := o.deps.Store.BulkInsertImages(ctx, datasetID, rows); err != nil {
			return err
		}
		imageBatch++
		o.countMetric("lens_ingest_images_total", "Total images ingested", len(rows))
		events <- Progress{Stage: StageParsingImages, Current: imageBatch, Total: -1, Message: fmt.Sprintf("%d images", len(rows))}
		return nil
	})
	if err != nil {
		o.fail(events, domain.NewError(domain.KindParseError, "images", err))
		return
	}

	annBatch := 0
	annsSkipped, err := p.BuildAnnotationBatches(categoryLookup, func(rows []store.AnnotationRow) error {
		if err := o.deps.Store.BulkInsertAnnotations(ctx, datasetID, rows); err != nil {
			return err
		}
		annBatch++
		o.countMetric("lens_ingest_annotations_total", "Total annotations ingested", len(rows))
		events <- Progress{Stage: StageParsingAnnotations, Current: annBatch, Total: -1, Message: fmt.Sprintf("%d annotations", len(rows))}
		return nil
	})
	if err != nil {
		o.fail(events, domain.NewError(domain.KindParseError, "annotations", err))
		return
	}

	backfilled, failed := o.backfillThumbnails(ctx, fs, datasetID)
	events <- Progress{
		Stage: StageThumbnails, Total: -1,
		Message: fmt.Sprintf("%d thumbnails generated, %d failed, %d images skipped, %d annotations skipped", backfilled, failed, imagesSkipped, annsSkipped),
	}

	if err := o.deps.Store.RecomputeCounters(ctx, datasetID); err != nil {
		o.fail(events, err)
		return
	}

	ds, err := o.deps.Store.GetDataset(ctx, datasetID)
	if err != nil {
		o.fail(events, err)
		return
	}
	stats := map[string]any{
		"image_count": ds.ImageCount, "annotation_count": ds.AnnotationCount,
		"category_count": ds.CategoryCount, "prediction_count": ds.PredictionCount,
	}
	o.deps.Plugins.DispatchIngestComplete(datasetID, stats)

	o.countMetric("lens_ingest_runs_total", "Total ingestion runs completed", 1)
	events <- Progress{Stage: StageComplete, Total: -1, Message: datasetID}
}

func (o *Orchestrator) fail(events chan<- Progress, err error) {
	o.deps.Logger.Error("ingest failed", "error", err)
	o.countMetric("lens_ingest_failures_total", "Total ingestion runs that failed", 1)
	events <- Progress{Stage: StageError, Message: err.Error()}
}

// countMetric increments a named counter if a metrics registry is
// configured; instrumentation is a no-op when Deps.Metrics is nil.
func (o *Orchestrator) countMetric(name, help string, n int) {
	if o.deps.Metrics == nil {
		return
	}
	o.deps.Metrics.Counter(name, help).Add(int64(n))
}
