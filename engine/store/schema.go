package store

import (
	"context"
)

// schemaStatements are executed in order at bootstrap. Every statement is
// CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS so re-running is
// always safe (additive migrations land here as new statements, never as
// destructive ALTERs).
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS datasets (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		annotation_path  TEXT NOT NULL,
		image_base_path  TEXT NOT NULL,
		format           TEXT NOT NULL,
		dataset_type     TEXT NOT NULL DEFAULT 'detection',
		image_count      INTEGER NOT NULL DEFAULT 0,
		annotation_count INTEGER NOT NULL DEFAULT 0,
		category_count   INTEGER NOT NULL DEFAULT 0,
		prediction_count INTEGER NOT NULL DEFAULT 0,
		created_at       TEXT NOT NULL,
		metadata_json    TEXT NOT NULL DEFAULT '{}'
	);`,
	`CREATE TABLE IF NOT EXISTS samples (
		dataset_id     TEXT NOT NULL,
		id             TEXT NOT NULL,
		filename       TEXT NOT NULL,
		width          INTEGER NOT NULL DEFAULT 0,
		height         INTEGER NOT NULL DEFAULT 0,
		thumbnail_path TEXT NOT NULL DEFAULT '',
		split          TEXT,
		image_dir      TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (dataset_id, id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_samples_dataset_split ON samples(dataset_id, split);`,
	`CREATE TABLE IF NOT EXISTS sample_tags (
		dataset_id TEXT NOT NULL,
		sample_id  TEXT NOT NULL,
		tag        TEXT NOT NULL,
		ord        INTEGER NOT NULL,
		PRIMARY KEY (dataset_id, sample_id, tag)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_sample_tags_lookup ON sample_tags(dataset_id, tag);`,
	`CREATE TABLE IF NOT EXISTS categories (
		dataset_id    TEXT NOT NULL,
		category_id   INTEGER NOT NULL,
		name          TEXT NOT NULL,
		supercategory TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (dataset_id, category_id)
	);`,
	`CREATE TABLE IF NOT EXISTS annotations (
		dataset_id    TEXT NOT NULL,
		id            TEXT NOT NULL,
		sample_id     TEXT NOT NULL,
		category_name TEXT NOT NULL,
		bbox_x        REAL NOT NULL DEFAULT 0,
		bbox_y        REAL NOT NULL DEFAULT 0,
		bbox_w        REAL NOT NULL DEFAULT 0,
		bbox_h        REAL NOT NULL DEFAULT 0,
		area          REAL NOT NULL DEFAULT 0,
		is_crowd      INTEGER NOT NULL DEFAULT 0,
		source        TEXT NOT NULL DEFAULT 'ground_truth',
		confidence    REAL,
		PRIMARY KEY (dataset_id, id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_annotations_sample ON annotations(dataset_id, sample_id);`,
	`CREATE INDEX IF NOT EXISTS idx_annotations_source ON annotations(dataset_id, source);`,
	`CREATE TABLE IF NOT EXISTS embeddings (
		sample_id  TEXT NOT NULL,
		dataset_id TEXT NOT NULL,
		model_name TEXT NOT NULL,
		vector     BLOB NOT NULL,
		x          REAL,
		y          REAL,
		PRIMARY KEY (dataset_id, sample_id, model_name)
	);`,
	`CREATE TABLE IF NOT EXISTS saved_views (
		id         TEXT PRIMARY KEY,
		dataset_id TEXT NOT NULL,
		name       TEXT NOT NULL,
		state_json TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS annotation_triage (
		annotation_id TEXT NOT NULL,
		dataset_id    TEXT NOT NULL,
		sample_id     TEXT NOT NULL,
		label         TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		PRIMARY KEY (dataset_id, annotation_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_triage_sample ON annotation_triage(dataset_id, sample_id);`,
}

func (s *Store) bootstrap(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapExecErr("begin bootstrap", err)
	}
	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return wrapExecErr(stmt, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapExecErr("commit bootstrap", err)
	}
	return nil
}
