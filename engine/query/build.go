package query

import (
	"fmt"
	"strings"
)

// Built is the compositional output §4.6 specifies: a where-clause, a
// join-clause, an order-clause, and the ordered parameter list they bind
// against. No caller-supplied value is ever concatenated into the text —
// everything lands in args behind a "?" placeholder.
type Built struct {
	Join  string
	Where string
	Order string
	Args  []any
}

// Build composes f into parameterised SQL fragments. Callers splice these
// into a `SELECT ... FROM samples s <Join> WHERE <Where> ORDER BY <Order>`
// template (samples.go does this for the concrete GET /samples query).
func Build(f Filter) (Built, error) {
	if err := f.Validate(); err != nil {
		return Built{}, err
	}

	var join strings.Builder
	var where []string
	var args []any

	where = append(where, "s.dataset_id = ?")
	args = append(args, f.DatasetID)

	if f.Split != nil {
		where = append(where, "s.split = ?")
		args = append(args, *f.Split)
	}

	if f.Category != nil {
		join.WriteString(" JOIN annotations ac ON ac.dataset_id = s.dataset_id AND ac.sample_id = s.id")
		where = append(where, "ac.category_name = ?")
		args = append(args, *f.Category)
	}

	if f.FilenameContains != nil && *f.FilenameContains != "" {
		where = append(where, "LOWER(s.filename) LIKE ?")
		args = append(args, "%"+strings.ToLower(*f.FilenameContains)+"%")
	}

	for _, tag := range f.Tags {
		where = append(where, "EXISTS (SELECT 1 FROM sample_tags st WHERE st.dataset_id = s.dataset_id AND st.sample_id = s.id AND st.tag = ?)")
		args = append(args, tag)
	}

	if len(f.IDAllowList) > 0 {
		placeholders := make([]string, len(f.IDAllowList))
		for i, id := range f.IDAllowList {
			placeholders[i] = "?"
			args = append(args, id)
		}
		where = append(where, fmt.Sprintf("s.id IN (%s)", strings.Join(placeholders, ",")))
	}

	if len(f.AnnotationSources) > 0 {
		placeholders := make([]string, len(f.AnnotationSources))
		for i, src := range f.AnnotationSources {
			placeholders[i] = "?"
			args = append(args, src)
		}
		join.WriteString(" JOIN annotations asrc ON asrc.dataset_id = s.dataset_id AND asrc.sample_id = s.id")
		where = append(where, fmt.Sprintf("asrc.source IN (%s)", strings.Join(placeholders, ",")))
	}

	col, dir := resolveSortColumn(f)

	return Built{
		Join:  join.String(),
		Where: strings.Join(where, " AND "),
		Order: fmt.Sprintf("%s %s", col, dir),
		Args:  args,
	}, nil
}
