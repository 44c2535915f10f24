package tasks

import (
	"context"

	"github.com/visionset/lens/engine/capability"
	"github.com/visionset/lens/engine/domain"
)

// reduceNeighbors is the default neighbourhood size passed to the
// reducer; clamped down when a dataset has fewer samples (§4.11 "Reduce").
const reduceNeighbors = 15

// LaunchReduce starts the reduce task: every stored embedding for
// datasetID is projected to 2-D coordinates and written back.
func (e *Engine) LaunchReduce(datasetID string) error {
	return e.launch(datasetID, TypeReduce, func(ctx context.Context, report reportFunc) error {
		return e.runReduce(ctx, datasetID, report)
	})
}

func (e *Engine) runReduce(ctx context.Context, datasetID string, report reportFunc) error {
	embeddings, err := e.deps.Store.EmbeddingsForDataset(ctx, datasetID, e.deps.ModelName)
	if err != nil {
		return err
	}
	total := len(embeddings)
	report(0, total, "")
	if total == 0 {
		return nil
	}

	if e.deps.Reducer == nil {
		return domain.NewError(domain.KindCapabilityUnavailable, "reducer", errNoReducer)
	}

	vectors := make([][]float32, total)
	for i, emb := range embeddings {
		vectors[i] = emb.Vector
	}

	neighbors := reduceNeighbors
	if total-1 < neighbors {
		neighbors = max(total-1, 1)
	}
	params := capability.ReduceParams{Neighbors: neighbors, MinDist: 0.1, Metric: "cosine", Seed: 42}

	coords, err := e.deps.Reducer.Reduce(ctx, vectors, params)
	if err != nil {
		return domain.NewError(domain.KindCapabilityUnavailable, "reducer", err)
	}
	if len(coords) != total {
		return domain.NewError(domain.KindInternal, "reducer", errMismatchedCoordCount)
	}

	for i, emb := range embeddings {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.deps.Store.UpdateCoordinates(ctx, datasetID, emb.SampleID, e.deps.ModelName, coords[i][0], coords[i][1]); err != nil {
			return err
		}
		report(i+1, total, "")
	}
	return nil
}
