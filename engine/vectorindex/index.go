package vectorindex

import (
	"context"
	"fmt"

	"github.com/visionset/lens/engine/store"
)

// syncBatchSize is the batch size for pulling vectors out of the column
// store during sync (§4.12).
const syncBatchSize = 500

// Index is the C12 façade: per-dataset Qdrant collections synced from the
// column store's embeddings table.
type Index struct {
	client    *Client
	store     *store.Store
	modelName string
}

// NewIndex wires a façade over client and s, scoped to one embedding model name
// (the column store keys embeddings by (dataset_id, model_name)).
func NewIndex(client *Client, s *store.Store, modelName string) *Index {
	return &Index{client: client, store: s, modelName: modelName}
}

// EnsureCollection lazily creates the dataset's collection (if absent) and
// syncs every stored vector into it.
func (idx *Index) EnsureCollection(ctx context.Context, datasetID string, dims int) error {
	if err := idx.client.ensureCollection(ctx, datasetID, dims); err != nil {
		return err
	}
	return idx.sync(ctx, datasetID)
}

// Invalidate drops the dataset's collection entirely; the next
// EnsureCollection call recreates and resyncs it.
func (idx *Index) Invalidate(ctx context.Context, datasetID string) error {
	return idx.client.deleteCollection(ctx, datasetID)
}

// Query runs k-NN against the dataset's collection, excluding
// excludeSampleID (similarity-by-sample never returns the query sample).
func (idx *Index) Query(ctx context.Context, datasetID string, vector []float32, k int, excludeSampleID string) ([]SearchResult, error) {
	return idx.client.search(ctx, datasetID, vector, k, excludeSampleID)
}

// sync pulls every stored vector for the dataset in batches of 500 and
// upserts them into the collection (§4.12).
func (idx *Index) sync(ctx context.Context, datasetID string) error {
	embeddings, err := idx.store.EmbeddingsForDataset(ctx, datasetID, idx.modelName)
	if err != nil {
		return fmt.Errorf("vectorindex: load embeddings for sync: %w", err)
	}

	for start := 0; start < len(embeddings); start += syncBatchSize {
		end := min(start+syncBatchSize, len(embeddings))
		batch := make([]VectorRecord, 0, end-start)
		for _, e := range embeddings[start:end] {
			if len(e.Vector) == 0 {
				continue
			}
			batch = append(batch, VectorRecord{SampleID: e.SampleID, DatasetID: e.DatasetID, Embedding: e.Vector})
		}
		if err := idx.client.upsert(ctx, datasetID, batch); err != nil {
			return err
		}
	}
	return nil
}
