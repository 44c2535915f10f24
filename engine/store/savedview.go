package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/visionset/lens/engine/domain"
)

// CreateSavedView persists an opaque filter-state blob under a name.
func (s *Store) CreateSavedView(ctx context.Context, v domain.SavedView) error {
	state, err := json.Marshal(v.State)
	if err != nil {
		return domain.NewError(domain.KindBadInput, "state", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `INSERT INTO saved_views (id, dataset_id, name, state_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`, v.ID, v.DatasetID, v.Name, string(state), now, now)
	return wrapExecErr("create saved view", err)
}

// ListSavedViews returns all saved views for a dataset.
func (s *Store) ListSavedViews(ctx context.Context, datasetID string) ([]domain.SavedView, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, dataset_id, name, state_json, created_at, updated_at
		FROM saved_views WHERE dataset_id = ? ORDER BY created_at`, datasetID)
	if err != nil {
		return nil, wrapExecErr("list saved views", err)
	}
	defer rows.Close()
	var out []domain.SavedView
	for rows.Next() {
		var v domain.SavedView
		var stateJSON, createdAt, updatedAt string
		if err := rows.Scan(&v.ID, &v.DatasetID, &v.Name, &stateJSON, &createdAt, &updatedAt); err != nil {
			return nil, wrapExecErr("scan saved view", err)
		}
		_ = json.Unmarshal([]byte(stateJSON), &v.State)
		v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		v.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, v)
	}
	return out, wrapExecErr("list saved views", rows.Err())
}

// DeleteSavedView removes a saved view by id.
func (s *Store) DeleteSavedView(ctx context.Context, datasetID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_views WHERE dataset_id=? AND id=?`, datasetID, id)
	if err != nil {
		return wrapExecErr("delete saved view", err)
	}
	return requireRowsAffected(res, "saved_view_id")
}
