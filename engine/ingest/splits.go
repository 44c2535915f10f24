package ingest

import (
	"context"

	"github.com/google/uuid"
)

// SplitRequest is one split within an ingest_splits call.
type SplitRequest struct {
	AnnotationPath string
	ImageDir       string
	Split          string
	Format         string
}

// IngestSplits composes N single-split Ingest calls under one shared
// dataset_id so multiple splits accumulate into one dataset (§4.5): the
// dataset row is created on the first split only, every split upserts its
// own categories (names already present are kept as they are),
// subsequent calls reuse datasetID and their counters are recomputed
// additively by RecomputeCounters against the accumulated rows.
//
// The returned channel concatenates every split's events in order; a
// failure in one split still allows subsequent splits to run so partial
// imports are visible, matching the orchestrator's per-stage isolation.
func (o *Orchestrator) IngestSplits(ctx context.Context, name string, splits []SplitRequest) (<-chan Progress, string, error) {
	if len(splits) == 0 {
		return nil, "", nil
	}
	datasetID := uuid.NewString()
	out := make(chan Progress, 16)

	go func() {
		defer close(out)
		for _, sp := range splits {
			split := sp.Split
			events, err := o.Ingest(ctx, Request{
				AnnotationPath: sp.AnnotationPath,
				ImageDir:       sp.ImageDir,
				DatasetName:    name,
				Format:         sp.Format,
				Split:          &split,
				DatasetID:      datasetID,
			})
			if err != nil {
				out <- Progress{Stage: StageError, Message: err.Error()}
				continue
			}
			for ev := range events {
				out <- ev
			}
		}
	}()

	return out, datasetID, nil
}
