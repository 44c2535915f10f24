package store

import (
	"context"

	"github.com/visionset/lens/engine/domain"
)

// Categories returns every (category_id, name) row for a dataset, retained
// for round-tripping the source format's integer ids (§3).
func (s *Store) Categories(ctx context.Context, datasetID string) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT dataset_id, category_id, name, supercategory FROM categories WHERE dataset_id = ? ORDER BY category_id`, datasetID)
	if err != nil {
		return nil, wrapExecErr("list categories", err)
	}
	defer rows.Close()
	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.DatasetID, &c.CategoryID, &c.Name, &c.Supercategory); err != nil {
			return nil, wrapExecErr("scan category", err)
		}
		out = append(out, c)
	}
	return out, wrapExecErr("list categories", rows.Err())
}

// DistinctCategoryNames returns every distinct category_name appearing in
// annotations, used where a category list must include names introduced by
// the per-image detection-JSON parser (which invents "unknown").
func (s *Store) DistinctCategoryNames(ctx context.Context, datasetID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT category_name FROM annotations WHERE dataset_id = ? ORDER BY category_name`, datasetID)
	if err != nil {
		return nil, wrapExecErr("distinct category names", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapExecErr("scan category name", err)
		}
		out = append(out, name)
	}
	return out, wrapExecErr("distinct category names", rows.Err())
}
