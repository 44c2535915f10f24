package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/visionset/lens/engine/domain"
)

// AnnotationsForSample returns every annotation row for one sample,
// optionally filtered to a single source ("" means all sources).
func (s *Store) AnnotationsForSample(ctx context.Context, datasetID, sampleID, source string) ([]domain.Annotation, error) {
	query := `SELECT dataset_id, id, sample_id, category_name, bbox_x, bbox_y, bbox_w, bbox_h, area, is_crowd, source, confidence
		FROM annotations WHERE dataset_id = ? AND sample_id = ?`
	args := []any{datasetID, sampleID}
	if source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapExecErr("annotations for sample", err)
	}
	defer rows.Close()
	return scanAnnotations(rows)
}

// BatchAnnotations returns annotations for up to 200 sample ids in one
// round-trip (§6 "GET /samples/batch-annotations").
func (s *Store) BatchAnnotations(ctx context.Context, datasetID string, sampleIDs []string, source string) ([]domain.Annotation, error) {
	if len(sampleIDs) == 0 {
		return nil, nil
	}
	if len(sampleIDs) > 200 {
		return nil, domain.NewError(domain.KindBadInput, "ids", domain.ErrTooManyIDs)
	}
	placeholders := strings.Repeat("?,", len(sampleIDs))
	placeholders = placeholders[:len(placeholders)-1]
	query := `SELECT dataset_id, id, sample_id, category_name, bbox_x, bbox_y, bbox_w, bbox_h, area, is_crowd, source, confidence
		FROM annotations WHERE dataset_id = ? AND sample_id IN (` + placeholders + `)`
	args := make([]any, 0, len(sampleIDs)+2)
	args = append(args, datasetID)
	for _, id := range sampleIDs {
		args = append(args, id)
	}
	if source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapExecErr("batch annotations", err)
	}
	defer rows.Close()
	return scanAnnotations(rows)
}

func scanAnnotations(rows *sql.Rows) ([]domain.Annotation, error) {
	var out []domain.Annotation
	for rows.Next() {
		var a domain.Annotation
		var isCrowd int
		var conf sql.NullFloat64
		if err := rows.Scan(&a.DatasetID, &a.ID, &a.SampleID, &a.CategoryName, &a.BBoxX, &a.BBoxY, &a.BBoxW, &a.BBoxH,
			&a.Area, &isCrowd, &a.Source, &conf); err != nil {
			return nil, wrapExecErr("scan annotation", err)
		}
		a.IsCrowd = isCrowd != 0
		if conf.Valid {
			v := conf.Float64
			a.Confidence = &v
		}
		out = append(out, a)
	}
	return out, wrapExecErr("scan annotations", rows.Err())
}

// CreateAnnotation inserts a single ground-truth annotation (§6 "POST
// /annotations"). Enforces I3: area is recomputed from the box.
func (s *Store) CreateAnnotation(ctx context.Context, a domain.Annotation) error {
	a.Source = domain.GroundTruthSource
	a.Area = a.BBoxW * a.BBoxH
	if a.BBoxW < 0 || a.BBoxH < 0 {
		return domain.NewError(domain.KindBadInput, "bbox", domain.ErrInvalidBBox)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO annotations
		(dataset_id, id, sample_id, category_name, bbox_x, bbox_y, bbox_w, bbox_h, area, is_crowd, source, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.DatasetID, a.ID, a.SampleID, a.CategoryName, a.BBoxX, a.BBoxY, a.BBoxW, a.BBoxH, a.Area, boolToInt(a.IsCrowd), a.Source, a.Confidence)
	return wrapExecErr("create annotation", err)
}

// UpdateAnnotation replaces a ground-truth annotation's fields in place.
// NotFound if the row is absent or is not a ground-truth row.
func (s *Store) UpdateAnnotation(ctx context.Context, a domain.Annotation) error {
	a.Area = a.BBoxW * a.BBoxH
	res, err := s.db.ExecContext(ctx, `UPDATE annotations SET category_name=?, bbox_x=?, bbox_y=?, bbox_w=?, bbox_h=?, area=?, is_crowd=?
		WHERE dataset_id=? AND id=? AND source=?`,
		a.CategoryName, a.BBoxX, a.BBoxY, a.BBoxW, a.BBoxH, a.Area, boolToInt(a.IsCrowd), a.DatasetID, a.ID, domain.GroundTruthSource)
	if err != nil {
		return wrapExecErr("update annotation", err)
	}
	return requireRowsAffected(res, "annotation_id")
}

// DeleteAnnotation deletes a ground-truth-only annotation by id.
func (s *Store) DeleteAnnotation(ctx context.Context, datasetID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM annotations WHERE dataset_id=? AND id=? AND source=?`, datasetID, id, domain.GroundTruthSource)
	if err != nil {
		return wrapExecErr("delete annotation", err)
	}
	return requireRowsAffected(res, "annotation_id")
}

func requireRowsAffected(res sql.Result, field string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapExecErr("rows affected", err)
	}
	if n == 0 {
		return domain.NewError(domain.KindNotFound, field, errors.New("no matching row"))
	}
	return nil
}

// AllAnnotations loads every annotation for (dataset, source), used by the
// evaluators (C7-C9) which need the full in-memory set to build IoU
// matrices and confusion matrices.
func (s *Store) AllAnnotations(ctx context.Context, datasetID, source string, split string) ([]domain.Annotation, error) {
	query := `SELECT a.dataset_id, a.id, a.sample_id, a.category_name, a.bbox_x, a.bbox_y, a.bbox_w, a.bbox_h, a.area, a.is_crowd, a.source, a.confidence
		FROM annotations a`
	args := []any{}
	conds := []string{"a.dataset_id = ?"}
	args = append(args, datasetID)
	if source != "" {
		conds = append(conds, "a.source = ?")
		args = append(args, source)
	}
	if split != "" {
		query += " JOIN samples s ON s.dataset_id = a.dataset_id AND s.id = a.sample_id"
		conds = append(conds, "s.split = ?")
		args = append(args, split)
	}
	query += " WHERE " + strings.Join(conds, " AND ")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapExecErr("all annotations", err)
	}
	defer rows.Close()
	return scanAnnotations(rows)
}
