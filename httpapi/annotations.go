package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/visionset/lens/engine/domain"
)

func registerAnnotationRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("POST /annotations", handleCreateAnnotation(deps))
	mux.HandleFunc("PUT /annotations/{id}", handleUpdateAnnotation(deps))
	mux.HandleFunc("DELETE /annotations/{id}", handleDeleteAnnotation(deps))
}

type annotationRequest struct {
	DatasetID    string  `json:"dataset_id"`
	SampleID     string  `json:"sample_id"`
	CategoryName string  `json:"category_name"`
	BBoxX        float64 `json:"bbox_x"`
	BBoxY        float64 `json:"bbox_y"`
	BBoxW        float64 `json:"bbox_w"`
	BBoxH        float64 `json:"bbox_h"`
	IsCrowd      bool    `json:"is_crowd"`
}

// handleCreateAnnotation creates a ground-truth annotation (§6: create is
// ground-truth only, enforced by store.CreateAnnotation forcing the
// source field regardless of what the caller sends).
func handleCreateAnnotation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req annotationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		a := domain.Annotation{
			DatasetID: req.DatasetID, ID: uuid.NewString(), SampleID: req.SampleID,
			CategoryName: req.CategoryName, BBoxX: req.BBoxX, BBoxY: req.BBoxY,
			BBoxW: req.BBoxW, BBoxH: req.BBoxH, IsCrowd: req.IsCrowd,
		}
		if err := deps.Store.CreateAnnotation(r.Context(), a); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		if err := deps.Store.RecomputeCounters(r.Context(), a.DatasetID); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

func handleUpdateAnnotation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req annotationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		a := domain.Annotation{
			DatasetID: req.DatasetID, ID: r.PathValue("id"), SampleID: req.SampleID,
			CategoryName: req.CategoryName, BBoxX: req.BBoxX, BBoxY: req.BBoxY,
			BBoxW: req.BBoxW, BBoxH: req.BBoxH, IsCrowd: req.IsCrowd,
		}
		if err := deps.Store.UpdateAnnotation(r.Context(), a); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		if err := deps.Store.RecomputeCounters(r.Context(), a.DatasetID); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func handleDeleteAnnotation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID := r.URL.Query().Get("dataset_id")
		if err := deps.Store.DeleteAnnotation(r.Context(), datasetID, r.PathValue("id")); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		if err := deps.Store.RecomputeCounters(r.Context(), datasetID); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
