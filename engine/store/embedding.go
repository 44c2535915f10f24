package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"

	"github.com/visionset/lens/engine/domain"
)

// encodeVector/decodeVector store []float32 as a little-endian BLOB, since
// SQLite (unlike DuckDB) has no native fixed-width array column type.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// DeleteEmbeddings removes all embedding rows for a dataset (embed task
// deletes existing rows first for idempotence, §4.11).
func (s *Store) DeleteEmbeddings(ctx context.Context, datasetID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE dataset_id = ?`, datasetID)
	return wrapExecErr("delete embeddings", err)
}

// InsertEmbedding writes one embedding row.
func (s *Store) InsertEmbedding(ctx context.Context, e domain.Embedding) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO embeddings (sample_id, dataset_id, model_name, vector, x, y)
		VALUES (?, ?, ?, ?, ?, ?)`, e.SampleID, e.DatasetID, e.ModelName, encodeVector(e.Vector), e.X, e.Y)
	return wrapExecErr("insert embedding", err)
}

// EmbeddingsForDataset loads every embedding row for a dataset+model.
func (s *Store) EmbeddingsForDataset(ctx context.Context, datasetID, modelName string) ([]domain.Embedding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sample_id, dataset_id, model_name, vector, x, y
		FROM embeddings WHERE dataset_id = ? AND model_name = ?`, datasetID, modelName)
	if err != nil {
		return nil, wrapExecErr("embeddings for dataset", err)
	}
	defer rows.Close()
	var out []domain.Embedding
	for rows.Next() {
		var e domain.Embedding
		var vec []byte
		var x, y sql.NullFloat64
		if err := rows.Scan(&e.SampleID, &e.DatasetID, &e.ModelName, &vec, &x, &y); err != nil {
			return nil, wrapExecErr("scan embedding", err)
		}
		e.Vector = decodeVector(vec)
		if x.Valid && y.Valid {
			xv, yv := x.Float64, y.Float64
			e.X, e.Y = &xv, &yv
		}
		out = append(out, e)
	}
	return out, wrapExecErr("embeddings for dataset", rows.Err())
}

// UpdateCoordinates writes the 2-D projection back for one sample (I5: both
// or neither of x/y are set).
func (s *Store) UpdateCoordinates(ctx context.Context, datasetID, sampleID, modelName string, x, y float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE embeddings SET x=?, y=? WHERE dataset_id=? AND sample_id=? AND model_name=?`,
		x, y, datasetID, sampleID, modelName)
	if err != nil {
		return wrapExecErr("update coordinates", err)
	}
	return requireRowsAffected(res, "sample_id")
}
