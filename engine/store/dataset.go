package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/visionset/lens/engine/domain"
)

// CreateDataset inserts a new dataset row. Called by the ingestion
// orchestrator (C5) the first time a dataset_id is seen.
func (s *Store) CreateDataset(ctx context.Context, d domain.Dataset) error {
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return domain.NewError(domain.KindBadInput, "metadata", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO datasets
		(id, name, annotation_path, image_base_path, format, dataset_type, created_at, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.AnnotationPath, d.ImageBasePath, d.Format, d.DatasetType, d.CreatedAt.UTC().Format(time.RFC3339Nano), string(meta))
	return wrapExecErr("create dataset", err)
}

// GetDataset loads a dataset by id, or NotFound.
func (s *Store) GetDataset(ctx context.Context, id string) (domain.Dataset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, annotation_path, image_base_path, format,
		dataset_type, image_count, annotation_count, category_count, prediction_count, created_at, metadata_json
		FROM datasets WHERE id = ?`, id)
	return scanDataset(row)
}

// ListDatasets returns all datasets ordered by creation time descending.
func (s *Store) ListDatasets(ctx context.Context) ([]domain.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, annotation_path, image_base_path, format,
		dataset_type, image_count, annotation_count, category_count, prediction_count, created_at, metadata_json
		FROM datasets ORDER BY created_at DESC`)
	if err != nil {
		return nil, wrapExecErr("list datasets", err)
	}
	defer rows.Close()
	var out []domain.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, wrapExecErr("list datasets scan", rows.Err())
}

// UpdateDataset renames a dataset. The remaining fields are structural
// (format, paths) or derived (counters, §4's RecomputeCounters) and aren't
// mutated through this path.
func (s *Store) UpdateDataset(ctx context.Context, d domain.Dataset) error {
	res, err := s.db.ExecContext(ctx, `UPDATE datasets SET name = ? WHERE id = ?`, d.Name, d.ID)
	if err != nil {
		return wrapExecErr("update dataset", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapExecErr("update dataset", err)
	}
	if n == 0 {
		return domain.NewError(domain.KindNotFound, "dataset_id", errors.New("dataset not found"))
	}
	return nil
}

// DeleteDataset cascades to samples, annotations, categories, embeddings,
// saved views, and triage overrides (§3 "Lifecycles"). The caller is
// responsible for invalidating the associated vector collection (C12) and
// thumbnail cache, which live outside the column store.
func (s *Store) DeleteDataset(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, tbl := range []string{"annotation_triage", "embeddings", "annotations", "sample_tags", "samples", "categories", "saved_views", "datasets"} {
			col := "dataset_id"
			if tbl == "datasets" {
				col = "id"
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+tbl+" WHERE "+col+" = ?", id); err != nil {
				return wrapExecErr("delete cascade "+tbl, err)
			}
		}
		return nil
	})
}

// scannable abstracts *sql.Row and *sql.Rows for scanDataset.
type scannable interface {
	Scan(dest ...any) error
}

func scanDataset(row scannable) (domain.Dataset, error) {
	var d domain.Dataset
	var createdAt, metaJSON string
	err := row.Scan(&d.ID, &d.Name, &d.AnnotationPath, &d.ImageBasePath, &d.Format, &d.DatasetType,
		&d.ImageCount, &d.AnnotationCount, &d.CategoryCount, &d.PredictionCount, &createdAt, &metaJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return d, domain.NewError(domain.KindNotFound, "dataset_id", err)
		}
		return d, wrapExecErr("scan dataset", err)
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	_ = json.Unmarshal([]byte(metaJSON), &d.Metadata)
	return d, nil
}

// RecomputeCounters recalculates the four derived counters from the
// underlying rows and writes them back, enforcing I2. Called after any
// mutation that could change counts (ingest, prediction import, annotation
// create/delete).
func (s *Store) RecomputeCounters(ctx context.Context, datasetID string) error {
	var imageCount, annotationCount, categoryCount, predictionCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples WHERE dataset_id = ?`, datasetID).Scan(&imageCount); err != nil {
		return wrapExecErr("count samples", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM annotations WHERE dataset_id = ? AND source = ?`, datasetID, domain.GroundTruthSource).Scan(&annotationCount); err != nil {
		return wrapExecErr("count annotations", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM annotations WHERE dataset_id = ? AND source != ?`, datasetID, domain.GroundTruthSource).Scan(&predictionCount); err != nil {
		return wrapExecErr("count predictions", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT category_name) FROM annotations WHERE dataset_id = ?`, datasetID).Scan(&categoryCount); err != nil {
		return wrapExecErr("count categories", err)
	}
	_, err := s.db.ExecContext(ctx, `UPDATE datasets SET image_count=?, annotation_count=?, category_count=?, prediction_count=? WHERE id=?`,
		imageCount, annotationCount, categoryCount, predictionCount, datasetID)
	return wrapExecErr("update counters", err)
}
