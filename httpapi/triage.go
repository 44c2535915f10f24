package httpapi

import (
	"net/http"
	"time"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/eval"
	"github.com/visionset/lens/engine/triage"
)

func registerTriageRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("PATCH /samples/set-triage-tag", handleSetTriageTag(deps))
	mux.HandleFunc("DELETE /samples/{id}/triage-tag", handleDeleteTriageTag(deps))
	mux.HandleFunc("GET /datasets/{id}/worst-images", handleWorstImages(deps))

	mux.HandleFunc("GET /samples/{id}/annotation-triage", handleGetAnnotationTriage(deps))
	mux.HandleFunc("PATCH /samples/set-annotation-triage", handleSetAnnotationTriage(deps))
	mux.HandleFunc("DELETE /samples/{id}/annotation-triage/{annotation_id}", handleDeleteAnnotationTriage(deps))
}

type triageTagRequest struct {
	DatasetID string            `json:"dataset_id"`
	SampleID  string            `json:"sample_id"`
	Label     domain.TriageLabel `json:"label"`
}

func handleSetTriageTag(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req triageTagRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		if !domain.ValidTriageLabels[req.Label] {
			writeError(w, deps.Logger, domain.NewError(domain.KindBadInput, "label", domain.ErrUnknownTriageLabel))
			return
		}
		if err := deps.Store.SetTriageTag(r.Context(), req.DatasetID, req.SampleID, req.Label); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func handleDeleteTriageTag(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID := r.URL.Query().Get("dataset_id")
		if err := deps.Store.ClearTriageTag(r.Context(), datasetID, r.PathValue("id")); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleWorstImages(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		datasetID := r.PathValue("id")
		p := parseEvalParams(r)
		n := queryIntOr(r, "n", 20)

		gts, preds, err := loadDetectionPairs(ctx, deps, datasetID, p.source, p.split)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		scores := triage.WorstImages(gts, preds, p.iouThreshold, p.confidenceThreshold, n)
		writeJSON(w, http.StatusOK, scores)
	}
}

func handleGetAnnotationTriage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sampleID := r.PathValue("id")
		q := r.URL.Query()
		datasetID := q.Get("dataset_id")
		p := parseEvalParams(r)

		gtRows, err := deps.Store.AnnotationsForSample(ctx, datasetID, sampleID, domain.GroundTruthSource)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		var predRows []domain.Annotation
		if p.source != "" {
			predRows, err = deps.Store.AnnotationsForSample(ctx, datasetID, sampleID, p.source)
			if err != nil {
				writeError(w, deps.Logger, err)
				return
			}
		}
		gts, _ := eval.SplitAnnotations(gtRows)
		_, preds := eval.SplitAnnotations(predRows)

		overrides, err := deps.Store.AnnotationTriageOverrides(ctx, datasetID, sampleID)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		overlay := triage.BuildSampleOverlay(gts, preds, p.iouThreshold, p.confidenceThreshold, overrides)
		writeJSON(w, http.StatusOK, overlay)
	}
}

type setAnnotationTriageRequest struct {
	DatasetID    string            `json:"dataset_id"`
	SampleID     string            `json:"sample_id"`
	AnnotationID string            `json:"annotation_id"`
	Label        domain.TriageLabel `json:"label"`
}

func handleSetAnnotationTriage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setAnnotationTriageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		if !domain.ValidTriageLabels[req.Label] {
			writeError(w, deps.Logger, domain.NewError(domain.KindBadInput, "label", domain.ErrUnknownTriageLabel))
			return
		}
		o := domain.AnnotationTriageOverride{
			AnnotationID: req.AnnotationID, DatasetID: req.DatasetID, SampleID: req.SampleID,
			Label: req.Label, CreatedAt: time.Now(),
		}
		if err := deps.Store.SetAnnotationTriageOverride(r.Context(), o); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

func handleDeleteAnnotationTriage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID := r.URL.Query().Get("dataset_id")
		sampleID := r.PathValue("id")
		annotationID := r.PathValue("annotation_id")
		if err := deps.Store.DeleteAnnotationTriageOverride(r.Context(), datasetID, sampleID, annotationID); err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
