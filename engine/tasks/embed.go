package tasks

import (
	"context"
	"errors"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/objstore"
	"github.com/visionset/lens/engine/query"
	"github.com/visionset/lens/pkg/fn"
	"github.com/visionset/lens/pkg/resilience"
)

// embedBatchSize is how many images are forwarded through the embedder
// per batch (§4.11 "Embed").
const embedBatchSize = 32

// LaunchEmbed starts the embed task for datasetID: existing embeddings for
// the dataset are dropped, then every sample's image is resolved, loaded
// and batch-forwarded through the embedder, one D-length vector per
// sample. Images that fail to load or embed are skipped and logged once;
// they do not fail the run.
func (e *Engine) LaunchEmbed(datasetID string) error {
	return e.launch(datasetID, TypeEmbed, func(ctx context.Context, report reportFunc) error {
		return e.runEmbed(ctx, datasetID, report)
	})
}

func (e *Engine) runEmbed(ctx context.Context, datasetID string, report reportFunc) error {
	if err := e.deps.Store.DeleteEmbeddings(ctx, datasetID); err != nil {
		return err
	}

	page, err := query.Run(ctx, e.deps.Store, query.Filter{DatasetID: datasetID})
	if err != nil {
		return err
	}
	samples := page.Samples
	total := len(samples)
	report(0, total, "")

	stage := fn.Stage[domain.Sample, *domain.Embedding](func(ctx context.Context, sm domain.Sample) fn.Result[*domain.Embedding] {
		return e.embedOne(ctx, datasetID, sm)
	})
	batched := fn.BatchStage(embedBatchSize, stage)

	processed := 0
	for start := 0; start < total; start += embedBatchSize {
		end := min(start+embedBatchSize, total)
		if err := ctx.Err(); err != nil {
			return err
		}

		result := batched(ctx, samples[start:end])
		embeddings, err := result.Unwrap()
		if err != nil {
			// A circuit-open breaker trips the whole batch; everything else
			// (missing image, embedder error for one sample) is swallowed
			// inside embedOne so a single bad sample never aborts the run.
			return domain.NewError(domain.KindCapabilityUnavailable, "embedder", err)
		}
		for _, emb := range embeddings {
			if emb == nil {
				continue
			}
			if err := e.deps.Store.InsertEmbedding(ctx, *emb); err != nil {
				return err
			}
		}
		processed = end
		report(processed, total, "")
	}
	return nil
}

// embedOne resolves and loads sm's image and runs it through the
// embedder. Missing images and per-sample embedder failures are logged
// and yield a nil embedding (skipped by the caller) rather than failing
// the batch; only a tripped breaker propagates as an error.
func (e *Engine) embedOne(ctx context.Context, datasetID string, sm domain.Sample) fn.Result[*domain.Embedding] {
	fs := e.deps.FS.Resolve(sm.ImageDir)
	path := objstore.ResolveImagePath(sm.ImageDir, sm.Filename)
	data, err := fs.ReadBytes(ctx, path)
	if err != nil {
		e.deps.Logger.Warn("embed: failed to load image", "sample_id", sm.ID, "path", path, "error", err)
		return fn.Ok[*domain.Embedding](nil)
	}

	var vector []float32
	callErr := e.breaker.Call(ctx, func(ctx context.Context) error {
		v, err := e.deps.Embedder.Embed(ctx, data)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	if callErr != nil {
		if errors.Is(callErr, resilience.ErrCircuitOpen) {
			return fn.Err[*domain.Embedding](callErr)
		}
		e.deps.Logger.Warn("embed: embedder failed", "sample_id", sm.ID, "error", callErr)
		return fn.Ok[*domain.Embedding](nil)
	}

	return fn.Ok(&domain.Embedding{SampleID: sm.ID, DatasetID: datasetID, ModelName: e.deps.ModelName, Vector: vector})
}
