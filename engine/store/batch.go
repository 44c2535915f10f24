package store

import (
	"context"
	"database/sql"

	"github.com/visionset/lens/engine/domain"
)

// ImageRow, AnnotationRow, and CategoryRow are the contractual tabular batch
// shapes streaming parsers (C3) emit. Column order here IS the store schema
// order so bulk insert never needs to project (§4.3).
type ImageRow struct {
	ID       string
	Filename string
	Width    int
	Height   int
	Split    *string
	ImageDir string
}

type AnnotationRow struct {
	ID           string
	SampleID     string
	CategoryName string
	BBoxX        float64
	BBoxY        float64
	BBoxW        float64
	BBoxH        float64
	Area         float64
	IsCrowd      bool
	Source       string
	Confidence   *float64
}

type CategoryRow struct {
	CategoryID    int
	Name          string
	Supercategory string
}

// BulkInsertImages inserts a batch of samples by reference, avoiding
// per-row round-trips (§4.1). Existing (dataset_id, id) rows are left
// untouched (INSERT OR IGNORE) so re-running a partially-completed batch is
// safe.
func (s *Store) BulkInsertImages(ctx context.Context, datasetID string, rows []ImageRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO samples
			(dataset_id, id, filename, width, height, thumbnail_path, split, image_dir)
			VALUES (?, ?, ?, ?, ?, '', ?, ?)`)
		if err != nil {
			return wrapExecErr("prepare insert samples", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			var split any
			if r.Split != nil {
				split = *r.Split
			}
			if _, err := stmt.ExecContext(ctx, datasetID, r.ID, r.Filename, r.Width, r.Height, split, r.ImageDir); err != nil {
				return wrapExecErr("insert sample", err)
			}
		}
		return nil
	})
}

// BulkInsertAnnotations inserts a batch of annotations by reference.
func (s *Store) BulkInsertAnnotations(ctx context.Context, datasetID string, rows []AnnotationRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO annotations
			(dataset_id, id, sample_id, category_name, bbox_x, bbox_y, bbox_w, bbox_h, area, is_crowd, source, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return wrapExecErr("prepare insert annotations", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			var conf any
			if r.Confidence != nil {
				conf = *r.Confidence
			}
			source := r.Source
			if source == "" {
				source = domain.GroundTruthSource
			}
			if _, err := stmt.ExecContext(ctx, datasetID, r.ID, r.SampleID, r.CategoryName,
				r.BBoxX, r.BBoxY, r.BBoxW, r.BBoxH, r.Area, boolToInt(r.IsCrowd), source, conf); err != nil {
				return wrapExecErr("insert annotation", err)
			}
		}
		return nil
	})
}

// UpsertCategories inserts new (dataset_id, category_id) rows, deduplicating
// on that key as §4.5 requires ("insert only new categories").
func (s *Store) UpsertCategories(ctx context.Context, datasetID string, rows []CategoryRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO categories
			(dataset_id, category_id, name, supercategory) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return wrapExecErr("prepare insert categories", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, datasetID, r.CategoryID, r.Name, r.Supercategory); err != nil {
				return wrapExecErr("insert category", err)
			}
		}
		return nil
	})
}

// DeleteAnnotationsBySource deletes all rows for (dataset_id, source),
// used before re-importing a prediction run under the same name (R2).
func (s *Store) DeleteAnnotationsBySource(ctx context.Context, datasetID, source string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM annotations WHERE dataset_id = ? AND source = ?`, datasetID, source)
	return wrapExecErr("delete annotations by source", err)
}

func (s *Store) withTx(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapExecErr("begin tx", err)
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapExecErr("commit tx", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
