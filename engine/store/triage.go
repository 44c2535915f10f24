package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/visionset/lens/engine/domain"
)

// AnnotationTriageOverrides returns every override for one sample.
func (s *Store) AnnotationTriageOverrides(ctx context.Context, datasetID, sampleID string) (map[string]domain.AnnotationTriageOverride, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT annotation_id, dataset_id, sample_id, label, created_at
		FROM annotation_triage WHERE dataset_id = ? AND sample_id = ?`, datasetID, sampleID)
	if err != nil {
		return nil, wrapExecErr("annotation triage overrides", err)
	}
	defer rows.Close()
	out := make(map[string]domain.AnnotationTriageOverride)
	for rows.Next() {
		var o domain.AnnotationTriageOverride
		var createdAt string
		if err := rows.Scan(&o.AnnotationID, &o.DatasetID, &o.SampleID, &o.Label, &createdAt); err != nil {
			return nil, wrapExecErr("scan annotation triage", err)
		}
		o.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out[o.AnnotationID] = o
	}
	return out, wrapExecErr("annotation triage overrides", rows.Err())
}

// SetAnnotationTriageOverride stores or replaces an override (I4) and
// ensures the sample carries triage:annotated.
func (s *Store) SetAnnotationTriageOverride(ctx context.Context, o domain.AnnotationTriageOverride) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		if _, err := tx.ExecContext(ctx, `INSERT INTO annotation_triage (annotation_id, dataset_id, sample_id, label, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (dataset_id, annotation_id) DO UPDATE SET label = excluded.label, created_at = excluded.created_at`,
			o.AnnotationID, o.DatasetID, o.SampleID, o.Label, now); err != nil {
			return wrapExecErr("set annotation triage override", err)
		}
		return setAnnotatedTagTx(ctx, tx, o.DatasetID, o.SampleID, true)
	})
}

// DeleteAnnotationTriageOverride clears an override and, if none remain for
// the sample, removes triage:annotated (I4).
func (s *Store) DeleteAnnotationTriageOverride(ctx context.Context, datasetID, sampleID, annotationID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM annotation_triage WHERE dataset_id=? AND annotation_id=?`, datasetID, annotationID)
		if err != nil {
			return wrapExecErr("delete annotation triage override", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NewError(domain.KindNotFound, "annotation_id", errors.New("no override"))
		}
		var remaining int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM annotation_triage WHERE dataset_id=? AND sample_id=?`, datasetID, sampleID).Scan(&remaining); err != nil {
			return wrapExecErr("count remaining overrides", err)
		}
		if remaining == 0 {
			return setAnnotatedTagTx(ctx, tx, datasetID, sampleID, false)
		}
		return nil
	})
}

func setAnnotatedTagTx(ctx context.Context, tx *sql.Tx, datasetID, sampleID string, present bool) error {
	if present {
		var maxOrd sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MAX(ord) FROM sample_tags WHERE dataset_id=? AND sample_id=?`, datasetID, sampleID).Scan(&maxOrd); err != nil {
			return wrapExecErr("max tag ord", err)
		}
		next := int64(0)
		if maxOrd.Valid {
			next = maxOrd.Int64 + 1
		}
		_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO sample_tags (dataset_id, sample_id, tag, ord) VALUES (?, ?, ?, ?)`,
			datasetID, sampleID, domain.TagAnnotated, next)
		return wrapExecErr("set annotated tag", err)
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM sample_tags WHERE dataset_id=? AND sample_id=? AND tag=?`, datasetID, sampleID, domain.TagAnnotated)
	return wrapExecErr("clear annotated tag", err)
}
