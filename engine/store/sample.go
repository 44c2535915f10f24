package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/visionset/lens/engine/domain"
)

// GetSample loads one sample plus its ordered tag list.
func (s *Store) GetSample(ctx context.Context, datasetID, id string) (domain.Sample, error) {
	row := s.db.QueryRowContext(ctx, `SELECT dataset_id, id, filename, width, height, thumbnail_path, split, image_dir
		FROM samples WHERE dataset_id = ? AND id = ?`, datasetID, id)
	sm, err := scanSample(row)
	if err != nil {
		return sm, err
	}
	sm.Tags, err = s.sampleTags(ctx, datasetID, id)
	return sm, err
}

func scanSample(row scannable) (domain.Sample, error) {
	var sm domain.Sample
	var split sql.NullString
	err := row.Scan(&sm.DatasetID, &sm.ID, &sm.Filename, &sm.Width, &sm.Height, &sm.ThumbnailPath, &split, &sm.ImageDir)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sm, domain.NewError(domain.KindNotFound, "sample_id", err)
		}
		return sm, wrapExecErr("scan sample", err)
	}
	if split.Valid {
		v := domain.Split(split.String)
		sm.Split = &v
	}
	return sm, nil
}

func (s *Store) sampleTags(ctx context.Context, datasetID, sampleID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM sample_tags WHERE dataset_id = ? AND sample_id = ? ORDER BY ord`, datasetID, sampleID)
	if err != nil {
		return nil, wrapExecErr("list sample tags", err)
	}
	defer rows.Close()
	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, wrapExecErr("scan sample tag", err)
		}
		tags = append(tags, t)
	}
	return tags, wrapExecErr("list sample tags", rows.Err())
}

// BulkTag adds tag to every sample in sampleIDs, idempotently (P8): a
// sample that already carries the tag is left unchanged.
func (s *Store) BulkTag(ctx context.Context, datasetID, tag string, sampleIDs []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, sid := range sampleIDs {
			var maxOrd sql.NullInt64
			if err := tx.QueryRowContext(ctx, `SELECT MAX(ord) FROM sample_tags WHERE dataset_id=? AND sample_id=?`, datasetID, sid).Scan(&maxOrd); err != nil {
				return wrapExecErr("max tag ord", err)
			}
			next := int64(0)
			if maxOrd.Valid {
				next = maxOrd.Int64 + 1
			}
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO sample_tags (dataset_id, sample_id, tag, ord) VALUES (?, ?, ?, ?)`,
				datasetID, sid, tag, next); err != nil {
				return wrapExecErr("bulk tag", err)
			}
		}
		return nil
	})
}

// BulkUntag removes tag from every sample in sampleIDs. Idempotent: removing
// an absent tag is a no-op (P8).
func (s *Store) BulkUntag(ctx context.Context, datasetID, tag string, sampleIDs []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, sid := range sampleIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM sample_tags WHERE dataset_id=? AND sample_id=? AND tag=?`, datasetID, sid, tag); err != nil {
				return wrapExecErr("bulk untag", err)
			}
		}
		return nil
	})
}

// SetTriageTag atomically replaces any prior triage:* tag on sample with the
// one for label, implementing the "dataset triage tag" entity (§3, I4-adjacent).
func (s *Store) SetTriageTag(ctx context.Context, datasetID, sampleID string, label domain.TriageLabel) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sample_tags WHERE dataset_id=? AND sample_id=? AND tag LIKE 'triage:%' AND tag != 'triage:annotated'`, datasetID, sampleID); err != nil {
			return wrapExecErr("clear triage tag", err)
		}
		var maxOrd sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MAX(ord) FROM sample_tags WHERE dataset_id=? AND sample_id=?`, datasetID, sampleID).Scan(&maxOrd); err != nil {
			return wrapExecErr("max tag ord", err)
		}
		next := int64(0)
		if maxOrd.Valid {
			next = maxOrd.Int64 + 1
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO sample_tags (dataset_id, sample_id, tag, ord) VALUES (?, ?, ?, ?)`,
			datasetID, sampleID, domain.SampleTriageTag(label), next)
		return wrapExecErr("set triage tag", err)
	})
}

// ClearTriageTag removes the sample's triage:* tag (if any).
func (s *Store) ClearTriageTag(ctx context.Context, datasetID, sampleID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sample_tags WHERE dataset_id=? AND sample_id=? AND tag LIKE 'triage:%' AND tag != 'triage:annotated'`, datasetID, sampleID)
	return wrapExecErr("clear triage tag", err)
}

// SetAnnotatedTag adds or removes the triage:annotated tag depending on
// whether the sample still has any annotation-triage overrides (I4).
func (s *Store) SetAnnotatedTag(ctx context.Context, datasetID, sampleID string, present bool) error {
	if present {
		var maxOrd sql.NullInt64
		if err := s.db.QueryRowContext(ctx, `SELECT MAX(ord) FROM sample_tags WHERE dataset_id=? AND sample_id=?`, datasetID, sampleID).Scan(&maxOrd); err != nil {
			return wrapExecErr("max tag ord", err)
		}
		next := int64(0)
		if maxOrd.Valid {
			next = maxOrd.Int64 + 1
		}
		_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO sample_tags (dataset_id, sample_id, tag, ord) VALUES (?, ?, ?, ?)`,
			datasetID, sampleID, domain.TagAnnotated, next)
		return wrapExecErr("set annotated tag", err)
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM sample_tags WHERE dataset_id=? AND sample_id=? AND tag=?`, datasetID, sampleID, domain.TagAnnotated)
	return wrapExecErr("clear annotated tag", err)
}

// UpdateSampleThumbnail records the cache path after a successful backfill.
func (s *Store) UpdateSampleThumbnail(ctx context.Context, datasetID, sampleID, path string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE samples SET thumbnail_path=? WHERE dataset_id=? AND id=?`, path, datasetID, sampleID)
	return wrapExecErr("update thumbnail", err)
}

// UpdateSampleDimensions backfills width/height once resolved from the
// actual image (samples start with 0/0, meaning "unknown until thumbnail
// resolves", per §3).
func (s *Store) UpdateSampleDimensions(ctx context.Context, datasetID, sampleID string, width, height int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE samples SET width=?, height=? WHERE dataset_id=? AND id=?`, width, height, datasetID, sampleID)
	return wrapExecErr("update dimensions", err)
}

// SamplesMissingThumbnails returns up to limit sample ids lacking a
// thumbnail cache path, for ingestion backfill (§4.5).
func (s *Store) SamplesMissingThumbnails(ctx context.Context, datasetID string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM samples WHERE dataset_id=? AND thumbnail_path='' LIMIT ?`, datasetID, limit)
	if err != nil {
		return nil, wrapExecErr("samples missing thumbnails", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapExecErr("scan sample id", err)
		}
		ids = append(ids, id)
	}
	return ids, wrapExecErr("samples missing thumbnails", rows.Err())
}
