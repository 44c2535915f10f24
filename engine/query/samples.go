package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/store"
)

// Page is one page of filtered samples plus the total matching count (for
// pagination UIs), mirroring the shape GET /samples returns.
type Page struct {
	Samples []domain.Sample
	Total   int
}

// Run executes f against db, returning a page of samples with their tags
// populated. Limit <= 0 means "no limit".
func Run(ctx context.Context, s *store.Store, f Filter) (Page, error) {
	built, err := Build(f)
	if err != nil {
		return Page{}, err
	}

	countSQL := fmt.Sprintf("SELECT COUNT(DISTINCT s.id) FROM samples s%s WHERE %s", built.Join, built.Where)
	var total int
	if err := s.DB().QueryRowContext(ctx, countSQL, built.Args...).Scan(&total); err != nil {
		return Page{}, domain.NewError(domain.KindStoreError, "", fmt.Errorf("count samples: %w", err))
	}

	selectSQL := fmt.Sprintf(`SELECT DISTINCT s.dataset_id, s.id, s.filename, s.width, s.height, s.thumbnail_path, s.split, s.image_dir
		FROM samples s%s WHERE %s ORDER BY %s`, built.Join, built.Where, built.Order)
	args := built.Args
	if f.Limit > 0 {
		selectSQL += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			selectSQL += " OFFSET ?"
			args = append(args, f.Offset)
		}
	}

	rows, err := s.DB().QueryContext(ctx, selectSQL, args...)
	if err != nil {
		return Page{}, domain.NewError(domain.KindStoreError, "", fmt.Errorf("list samples: %w", err))
	}
	defer rows.Close()

	var samples []domain.Sample
	for rows.Next() {
		var sm domain.Sample
		var split sql.NullString
		if err := rows.Scan(&sm.DatasetID, &sm.ID, &sm.Filename, &sm.Width, &sm.Height, &sm.ThumbnailPath, &split, &sm.ImageDir); err != nil {
			return Page{}, domain.NewError(domain.KindStoreError, "", fmt.Errorf("scan sample: %w", err))
		}
		if split.Valid {
			v := domain.Split(split.String)
			sm.Split = &v
		}
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return Page{}, domain.NewError(domain.KindStoreError, "", err)
	}

	if err := attachTags(ctx, s, f.DatasetID, samples); err != nil {
		return Page{}, err
	}

	return Page{Samples: samples, Total: total}, nil
}

// attachTags fills in sm.Tags for every returned sample in one query,
// rather than one round-trip per sample.
func attachTags(ctx context.Context, s *store.Store, datasetID string, samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	placeholders := make([]string, len(samples))
	args := make([]any, 0, len(samples)+1)
	args = append(args, datasetID)
	for i, sm := range samples {
		placeholders[i] = "?"
		args = append(args, sm.ID)
	}
	sqlText := fmt.Sprintf(`SELECT sample_id, tag FROM sample_tags WHERE dataset_id = ? AND sample_id IN (%s) ORDER BY sample_id, ord`, strings.Join(placeholders, ","))
	rows, err := s.DB().QueryContext(ctx, sqlText, args...)
	if err != nil {
		return domain.NewError(domain.KindStoreError, "", fmt.Errorf("list sample tags: %w", err))
	}
	defer rows.Close()

	tagsBySample := map[string][]string{}
	for rows.Next() {
		var sampleID, tag string
		if err := rows.Scan(&sampleID, &tag); err != nil {
			return domain.NewError(domain.KindStoreError, "", err)
		}
		tagsBySample[sampleID] = append(tagsBySample[sampleID], tag)
	}
	if err := rows.Err(); err != nil {
		return domain.NewError(domain.KindStoreError, "", err)
	}

	for i := range samples {
		samples[i].Tags = tagsBySample[samples[i].ID]
	}
	return nil
}

