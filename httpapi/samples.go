package httpapi

import (
	"net/http"
	"strings"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/query"
)

func registerSampleRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("GET /samples", handleListSamples(deps))
	mux.HandleFunc("GET /samples/filter-facets", handleFilterFacets(deps))
	mux.HandleFunc("PATCH /samples/bulk-tag", handleBulkTag(deps))
	mux.HandleFunc("PATCH /samples/bulk-untag", handleBulkUntag(deps))
	mux.HandleFunc("GET /samples/{id}/annotations", handleSampleAnnotations(deps))
	mux.HandleFunc("GET /samples/batch-annotations", handleBatchAnnotations(deps))
}

// maxBatchAnnotationIDs bounds GET /samples/batch-annotations (§6).
const maxBatchAnnotationIDs = 200

func handleListSamples(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := query.Filter{
			DatasetID:        q.Get("dataset_id"),
			FilenameContains: optionalQuery(q, "filename_contains"),
			Split:            optionalQuery(q, "split"),
			Category:         optionalQuery(q, "category"),
			Tags:             splitCSV(q.Get("tags")),
			IDAllowList:      splitCSV(q.Get("ids")),
			AnnotationSources: splitCSV(q.Get("annotation_sources")),
			SortColumn:       q.Get("sort"),
			SortDescending:   q.Get("order") == "desc",
			Limit:            queryIntOr(r, "limit", 100),
			Offset:           queryIntOr(r, "offset", 0),
		}
		if err := f.Validate(); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		page, err := query.Run(r.Context(), deps.Store, f)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func optionalQuery(q map[string][]string, key string) *string {
	vals, ok := q[key]
	if !ok || len(vals) == 0 || vals[0] == "" {
		return nil
	}
	return &vals[0]
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// handleFilterFacets returns the distinct splits, categories, and tags a
// dataset's samples carry, for populating filter UI controls.
func handleFilterFacets(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		datasetID := r.URL.Query().Get("dataset_id")
		if datasetID == "" {
			writeError(w, deps.Logger, domain.NewError(domain.KindBadInput, "dataset_id", domain.ErrMissingDatasetID))
			return
		}
		categories, err := deps.Store.DistinctCategoryNames(ctx, datasetID)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		splits, err := distinctStrings(r, deps, `SELECT DISTINCT split FROM samples WHERE dataset_id = ? AND split IS NOT NULL`, datasetID)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		tags, err := distinctStrings(r, deps, `SELECT DISTINCT tag FROM sample_tags WHERE dataset_id = ?`, datasetID)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"splits": splits, "categories": categories, "tags": tags})
	}
}

func distinctStrings(r *http.Request, deps Deps, sqlQuery, datasetID string) ([]string, error) {
	rows, err := deps.Store.DB().QueryContext(r.Context(), sqlQuery, datasetID)
	if err != nil {
		return nil, domain.NewError(domain.KindStoreError, "", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, domain.NewError(domain.KindStoreError, "", err)
		}
		out = append(out, s)
	}
	return out, nil
}

type bulkTagRequest struct {
	DatasetID string   `json:"dataset_id"`
	Tag       string   `json:"tag"`
	SampleIDs []string `json:"sample_ids"`
}

func handleBulkTag(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkTagRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		if err := deps.Store.BulkTag(r.Context(), req.DatasetID, req.Tag, req.SampleIDs); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"tagged": len(req.SampleIDs)})
	}
}

func handleBulkUntag(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkTagRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		if err := deps.Store.BulkUntag(r.Context(), req.DatasetID, req.Tag, req.SampleIDs); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"untagged": len(req.SampleIDs)})
	}
}

func handleSampleAnnotations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID := r.URL.Query().Get("dataset_id")
		source := r.URL.Query().Get("source")
		anns, err := deps.Store.AnnotationsForSample(r.Context(), datasetID, r.PathValue("id"), source)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, anns)
	}
}

func handleBatchAnnotations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		datasetID := q.Get("dataset_id")
		ids := splitCSV(q.Get("ids"))
		if len(ids) > maxBatchAnnotationIDs {
			writeError(w, deps.Logger, domain.NewError(domain.KindBadInput, "ids", domain.ErrTooManyIDs))
			return
		}
		anns, err := deps.Store.BatchAnnotations(r.Context(), datasetID, ids, q.Get("source"))
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, anns)
	}
}
