package tasks

import (
	"context"

	"github.com/visionset/lens/engine/dedupe"
	"github.com/visionset/lens/engine/domain"
)

// nearDuplicateThreshold and nearDuplicateTopK bound the neighbour query
// each sample runs against the vector index (§4.13).
const (
	nearDuplicateThreshold = 0.95
	nearDuplicateTopK      = 10
)

// LaunchNearDuplicate starts the near-duplicate task: every embedded
// sample is synced into its dataset's vector collection, then each sample
// is union-merged with every k-NN neighbour its own query returns above the
// similarity threshold (a one-way link is enough to merge).
func (e *Engine) LaunchNearDuplicate(datasetID string) error {
	return e.launch(datasetID, TypeNearDuplicate, func(ctx context.Context, report reportFunc) error {
		return e.runNearDuplicate(ctx, datasetID, e.deps.Embedder.Dimensions(), report)
	})
}

// NearDuplicateResult returns the last completed near-duplicate run's
// groups for datasetID, or false if none has completed yet.
func (e *Engine) NearDuplicateResult(datasetID string) ([]dedupe.Group, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	groups, ok := e.dedupe[datasetID]
	return groups, ok
}

func (e *Engine) runNearDuplicate(ctx context.Context, datasetID string, vectorDims int, report reportFunc) error {
	if err := e.deps.VecIndex.EnsureCollection(ctx, datasetID, vectorDims); err != nil {
		return domain.NewError(domain.KindCapabilityUnavailable, "vector_index", err)
	}

	embeddings, err := e.deps.Store.EmbeddingsForDataset(ctx, datasetID, e.deps.ModelName)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(embeddings))
	vectorByID := make(map[string][]float32, len(embeddings))
	for _, emb := range embeddings {
		ids = append(ids, emb.SampleID)
		vectorByID[emb.SampleID] = emb.Vector
	}

	events := make(chan dedupe.Progress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range events {
			report(p.Current, p.Total, p.Phase)
		}
	}()

	neighboursOf := func(ctx context.Context, id string) ([]string, error) {
		hits, err := e.deps.VecIndex.Query(ctx, datasetID, vectorByID[id], nearDuplicateTopK, id)
		if err != nil {
			return nil, domain.NewError(domain.KindCapabilityUnavailable, "vector_index", err)
		}
		var neighbours []string
		for _, hit := range hits {
			if hit.Score >= nearDuplicateThreshold {
				neighbours = append(neighbours, hit.SampleID)
			}
		}
		return neighbours, nil
	}

	groups, err := dedupe.Cluster(ctx, ids, neighboursOf, events)
	close(events)
	<-done
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.dedupe[datasetID] = groups
	e.mu.Unlock()
	return nil
}
