// Package query implements the filter builder (C6): a compositional,
// fully parameterised predicate builder over samples, with a column
// allow-list for ordering and bounded id-allow-list support for lasso
// selections.
package query

import (
	"github.com/visionset/lens/engine/domain"
)

// MaxIDAllowList bounds the id-allow-list parameter (§4.6).
const MaxIDAllowList = 5000

// sortColumns is the allow-list of orderable columns (§4.6); anything else
// silently falls back to "id ASC".
var sortColumns = map[string]string{
	"id": "s.id", "file_name": "s.filename", "width": "s.width",
	"height": "s.height", "split": "s.split",
}

// Filter composes the predicates GET /samples accepts.
type Filter struct {
	DatasetID         string // mandatory
	Split             *string
	Category          *string
	FilenameContains  *string
	Tags              []string // AND semantics: every tag must be present
	IDAllowList       []string
	AnnotationSources []string
	SortColumn        string
	SortDescending    bool
	Limit             int
	Offset            int
}

// Validate enforces the bounds §4.6 names beyond what SQL parameter
// binding already guarantees (no injection is possible regardless; this
// only rejects oversized requests).
func (f Filter) Validate() error {
	if f.DatasetID == "" {
		return domain.NewError(domain.KindBadInput, "dataset_id", domain.ErrMissingDatasetID)
	}
	if len(f.IDAllowList) > MaxIDAllowList {
		return domain.NewError(domain.KindBadInput, "ids", domain.ErrTooManyIDs)
	}
	return nil
}

// resolveSortColumn returns the validated SQL column and direction,
// defaulting to "id ASC" for anything off the allow-list.
func resolveSortColumn(f Filter) (string, string) {
	col, ok := sortColumns[f.SortColumn]
	if !ok {
		return sortColumns["id"], "ASC"
	}
	dir := "ASC"
	if f.SortDescending {
		dir = "DESC"
	}
	return col, dir
}
