package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/objstore"
	"github.com/visionset/lens/engine/scanparse"
	"github.com/visionset/lens/engine/store"
)

func registerDatasetRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("GET /datasets", handleListDatasets(deps))
	mux.HandleFunc("GET /datasets/{id}", handleGetDataset(deps))
	mux.HandleFunc("PATCH /datasets/{id}", handleRenameDataset(deps))
	mux.HandleFunc("DELETE /datasets/{id}", handleDeleteDataset(deps))
	mux.HandleFunc("POST /datasets/{id}/predictions", handleImportPredictions(deps))
}

func handleListDatasets(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasets, err := deps.Store.ListDatasets(r.Context())
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, datasets)
	}
}

func handleGetDataset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := deps.Store.GetDataset(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

type renameDatasetRequest struct {
	Name string `json:"name"`
}

// handleRenameDataset goes through store.DatasetRepo, the generic
// repo.Repository adapter: a dataset rename is a plain single-row
// get-then-update, exactly the shape that interface models.
func handleRenameDataset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req renameDatasetRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		repo := store.NewDatasetRepo(deps.Store)
		d, err := repo.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		d.Name = req.Name
		updated, err := repo.Update(r.Context(), d)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func handleDeleteDataset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DeleteDataset(r.Context(), r.PathValue("id")); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type predictionsRequest struct {
	PredictionPath string  `json:"prediction_path"`
	Format         string  `json:"format"`
	RunName        *string `json:"run_name"`
}

// handleImportPredictions dispatches to the format-appropriate scanparse
// parser (§6, §9's tagged-format dispatch) and derives run_name when the
// caller omits it.
func handleImportPredictions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		datasetID := r.PathValue("id")
		var req predictionsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		ds, err := deps.Store.GetDataset(ctx, datasetID)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}

		runName := ""
		if req.RunName != nil && *req.RunName != "" {
			runName = *req.RunName
		} else {
			annotationsSource, _ := ds.Metadata["annotations_source"].(string)
			runName = deriveRunName(req.Format, req.PredictionPath, annotationsSource, time.Now())
		}

		fs := deps.FS.Resolve(req.PredictionPath)
		count, err := importPredictions(ctx, deps, fs, datasetID, req.Format, req.PredictionPath, runName)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"run_name": runName, "annotations_imported": count})
	}
}

func importPredictions(ctx context.Context, deps Deps, fs objstore.FS, datasetID, format, path, runName string) (int, error) {
	opener := func() (io.ReadCloser, error) { return fs.Open(ctx, path) }

	switch format {
	case "coco":
		categoryLookup, err := categoryLookupFor(ctx, deps, datasetID)
		if err != nil {
			return 0, err
		}
		parser := scanparse.NewCocoResultsParser(opener)
		return insertPredictionAnnotations(ctx, deps, datasetID, func(emit func([]store.AnnotationRow) error) (int, error) {
			return parser.BuildAnnotationBatches(runName, categoryLookup, emit)
		})
	case "detection_annotation":
		dims, err := sampleDimensions(ctx, deps, datasetID)
		if err != nil {
			return 0, err
		}
		parser := scanparse.NewDetectionDirParser(fs, path, dims)
		return insertPredictionAnnotations(ctx, deps, datasetID, func(emit func([]store.AnnotationRow) error) (int, error) {
			return parser.BuildAnnotationBatches(ctx, emit)
		})
	case "classification_jsonl":
		parser := scanparse.NewClassificationParser(opener)
		return insertPredictionAnnotations(ctx, deps, datasetID, func(emit func([]store.AnnotationRow) error) (int, error) {
			return parser.BuildAnnotationBatches(runName, emit)
		})
	default:
		return 0, domain.NewError(domain.KindBadInput, "format", fmt.Errorf("unknown prediction format %q", format))
	}
}

func insertPredictionAnnotations(ctx context.Context, deps Deps, datasetID string, build func(emit func([]store.AnnotationRow) error) (int, error)) (int, error) {
	total := 0
	_, err := build(func(rows []store.AnnotationRow) error {
		total += len(rows)
		return deps.Store.BulkInsertAnnotations(ctx, datasetID, rows)
	})
	if err != nil {
		return total, domain.NewError(domain.KindParseError, "prediction_path", err)
	}
	if err := deps.Store.RecomputeCounters(ctx, datasetID); err != nil {
		return total, err
	}
	return total, nil
}

func categoryLookupFor(ctx context.Context, deps Deps, datasetID string) (map[int]string, error) {
	cats, err := deps.Store.Categories(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	lookup := make(map[int]string, len(cats))
	for _, c := range cats {
		lookup[c.CategoryID] = c.Name
	}
	return lookup, nil
}

// sampleDimensions builds the width/height lookup detection_annotation
// prediction import needs, keyed by filename, from already-ingested
// samples (§6).
func sampleDimensions(ctx context.Context, deps Deps, datasetID string) (map[string][2]int, error) {
	rows, err := deps.Store.DB().QueryContext(ctx, `SELECT filename, width, height FROM samples WHERE dataset_id = ?`, datasetID)
	if err != nil {
		return nil, domain.NewError(domain.KindStoreError, "", err)
	}
	defer rows.Close()
	out := map[string][2]int{}
	for rows.Next() {
		var filename string
		var w, h int
		if err := rows.Scan(&filename, &w, &h); err != nil {
			return nil, domain.NewError(domain.KindStoreError, "", err)
		}
		out[filename] = [2]int{w, h}
	}
	return out, nil
}
