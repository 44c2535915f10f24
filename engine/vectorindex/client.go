// Package vectorindex implements the vector index façade (C12): a
// per-dataset k-NN collection of fixed-dimension embeddings backed by
// Qdrant. Adapted from the teacher's single-collection semantic store: here
// every operation names its collection explicitly so one Client can own
// many datasets' collections instead of one fixed collection per instance.
package vectorindex

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client owns the gRPC connection to Qdrant. One Client serves every
// dataset's collection.
type Client struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
}

// New dials Qdrant at addr.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("vectorindex: dial qdrant %s: %w", addr, err)
	}
	return &Client{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}, nil
}

// Close closes the underlying gRPC connection.
func (c *Client) Close() error { return c.conn.Close() }

// collectionName derives the per-dataset Qdrant collection name (§4.12
// "per-dataset collections").
func collectionName(datasetID string) string { return "lens_samples_" + datasetID }

// ensureCollection creates the dataset's collection if absent.
func (c *Client) ensureCollection(ctx context.Context, datasetID string, dims int) error {
	name := collectionName(datasetID)
	list, err := c.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("vectorindex: list collections: %w", err)
	}
	for _, col := range list.GetCollections() {
		if col.GetName() == name {
			return nil
		}
	}

	d := uint64(dims)
	_, err = c.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: d, Distance: pb.Distance_Cosine},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorindex: create collection %s: %w", name, err)
	}
	return nil
}

// deleteCollection drops the dataset's collection entirely (invalidate).
func (c *Client) deleteCollection(ctx context.Context, datasetID string) error {
	_, err := c.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: collectionName(datasetID)})
	if err != nil {
		return fmt.Errorf("vectorindex: delete collection %s: %w", collectionName(datasetID), err)
	}
	return nil
}

// upsert stores records into the dataset's collection, payload {sample_id,
// dataset_id} per §4.12.
func (c *Client) upsert(ctx context.Context, datasetID string, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: r.SampleID}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Embedding}},
			},
			Payload: map[string]*pb.Value{
				"sample_id":  {Kind: &pb.Value_StringValue{StringValue: r.SampleID}},
				"dataset_id": {Kind: &pb.Value_StringValue{StringValue: r.DatasetID}},
			},
		}
	}

	wait := true
	_, err := c.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collectionName(datasetID),
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vectorindex: upsert %d points into %s: %w", len(records), collectionName(datasetID), err)
	}
	return nil
}

// search runs k-NN against the dataset's collection, optionally excluding
// one point id (similarity-by-sample excludes the query sample itself).
func (c *Client) search(ctx context.Context, datasetID string, embedding []float32, k int, excludeSampleID string) ([]SearchResult, error) {
	limit := k
	if excludeSampleID != "" {
		limit++ // over-fetch by one so excluding the query sample still returns k results
	}

	resp, err := c.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collectionName(datasetID),
		Vector:         embedding,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: search %s: %w", collectionName(datasetID), err)
	}

	results := make([]SearchResult, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		sampleID := r.GetId().GetUuid()
		if sampleID == excludeSampleID {
			continue
		}
		results = append(results, SearchResult{SampleID: sampleID, Score: r.GetScore()})
		if len(results) == k {
			break
		}
	}
	return results, nil
}
