package store

import (
	"context"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/pkg/repo"
)

// DatasetRepo adapts *Store's dataset methods to repo.Repository. Most of
// this package's surface (bulk inserts, cursor-scoped sample queries,
// composite annotation keys) doesn't fit repo.Repository's single-row CRUD
// shape, but a dataset row does: one id, one entity, plain list/get/
// create/update/delete.
type DatasetRepo struct {
	store *Store
}

// NewDatasetRepo wraps s for generic CRUD access to the datasets table.
func NewDatasetRepo(s *Store) DatasetRepo { return DatasetRepo{store: s} }

var _ repo.Repository[domain.Dataset, string] = DatasetRepo{}

func (r DatasetRepo) Get(ctx context.Context, id string) (domain.Dataset, error) {
	return r.store.GetDataset(ctx, id)
}

// List applies opts.Offset/opts.Limit over the full dataset list; opts.Filter
// is unused, the datasets table has nothing worth filtering on generically.
func (r DatasetRepo) List(ctx context.Context, opts repo.ListOpts) ([]domain.Dataset, error) {
	all, err := r.store.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}
	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return all[start:end], nil
}

func (r DatasetRepo) Create(ctx context.Context, d domain.Dataset) (domain.Dataset, error) {
	if err := r.store.CreateDataset(ctx, d); err != nil {
		return domain.Dataset{}, err
	}
	return r.store.GetDataset(ctx, d.ID)
}

func (r DatasetRepo) Update(ctx context.Context, d domain.Dataset) (domain.Dataset, error) {
	if err := r.store.UpdateDataset(ctx, d); err != nil {
		return domain.Dataset{}, err
	}
	return r.store.GetDataset(ctx, d.ID)
}

func (r DatasetRepo) Delete(ctx context.Context, id string) error {
	return r.store.DeleteDataset(ctx, id)
}
