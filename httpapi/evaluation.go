package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/eval"
	"github.com/visionset/lens/engine/query"
)

func registerEvaluationRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("GET /datasets/{id}/statistics", handleStatistics(deps))
	mux.HandleFunc("GET /datasets/{id}/evaluation", handleEvaluation(deps))
	mux.HandleFunc("GET /datasets/{id}/confusion-cell-samples", handleConfusionCellSamples(deps))
	mux.HandleFunc("GET /datasets/{id}/error-analysis", handleErrorAnalysis(deps))
}

func handleStatistics(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		datasetID := r.PathValue("id")
		ds, err := deps.Store.GetDataset(ctx, datasetID)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		categories, err := deps.Store.Categories(ctx, datasetID)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		splits, err := distinctStrings(r, deps, `SELECT DISTINCT split FROM samples WHERE dataset_id = ? AND split IS NOT NULL`, datasetID)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		splitCounts := map[string]int{}
		for _, split := range splits {
			s := split
			page, err := query.Run(ctx, deps.Store, query.Filter{DatasetID: datasetID, Split: &s})
			if err != nil {
				writeError(w, deps.Logger, err)
				return
			}
			splitCounts[split] = page.Total
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"dataset":          ds,
			"categories":       categories,
			"counts_by_split":  splitCounts,
		})
	}
}

// evalParams reads the shared iou_threshold/conf_threshold/source/split
// query parameters §6 gives every evaluation endpoint.
type evalParams struct {
	source              string
	iouThreshold        float64
	confidenceThreshold float64
	split               string
}

func parseEvalParams(r *http.Request) evalParams {
	q := r.URL.Query()
	return evalParams{
		source:              q.Get("source"),
		iouThreshold:        queryFloatOr(q.Get("iou_threshold"), 0.5),
		confidenceThreshold: queryFloatOr(q.Get("conf_threshold"), 0.0),
		split:               q.Get("split"),
	}
}

func queryFloatOr(v string, fallback float64) float64 {
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func handleEvaluation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		datasetID := r.PathValue("id")
		p := parseEvalParams(r)

		ds, err := deps.Store.GetDataset(ctx, datasetID)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}

		if ds.DatasetType == domain.DatasetTypeClassification {
			gts, preds, err := loadClassificationPairs(ctx, deps, datasetID, p.source, p.split)
			if err != nil {
				writeError(w, deps.Logger, err)
				return
			}
			result := eval.EvaluateClassification(gts, preds, p.confidenceThreshold)
			writeJSON(w, http.StatusOK, result)
			return
		}

		gts, preds, err := loadDetectionPairs(ctx, deps, datasetID, p.source, p.split)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		result := eval.Evaluate(gts, preds, p.iouThreshold, p.confidenceThreshold)
		writeJSON(w, http.StatusOK, result)
	}
}

func handleConfusionCellSamples(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		datasetID := r.PathValue("id")
		p := parseEvalParams(r)
		q := r.URL.Query()

		gts, preds, err := loadDetectionPairs(ctx, deps, datasetID, p.source, p.split)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		samples := eval.ConfusionCellSamples(gts, preds, p.iouThreshold, p.confidenceThreshold, q.Get("actual_class"), q.Get("predicted_class"))
		writeJSON(w, http.StatusOK, map[string]any{"sample_ids": samples})
	}
}

func handleErrorAnalysis(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		datasetID := r.PathValue("id")
		p := parseEvalParams(r)

		gts, preds, err := loadDetectionPairs(ctx, deps, datasetID, p.source, p.split)
		if err != nil {
			writeError(w, deps.Logger, err)
			return
		}
		result := eval.Categorize(gts, preds, p.iouThreshold, p.confidenceThreshold)
		writeJSON(w, http.StatusOK, result)
	}
}

// loadDetectionPairs loads ground truth plus one prediction source's rows
// for a dataset (optionally restricted to a split) and splits them into
// the matcher's GT/Pred shape.
func loadDetectionPairs(ctx context.Context, deps Deps, datasetID, source, split string) ([]eval.GT, []eval.Pred, error) {
	gtRows, err := deps.Store.AllAnnotations(ctx, datasetID, domain.GroundTruthSource, split)
	if err != nil {
		return nil, nil, err
	}
	var predRows []domain.Annotation
	if source != "" {
		predRows, err = deps.Store.AllAnnotations(ctx, datasetID, source, split)
		if err != nil {
			return nil, nil, err
		}
	}
	gts, _ := eval.SplitAnnotations(gtRows)
	_, preds := eval.SplitAnnotations(predRows)
	return gts, preds, nil
}

// loadClassificationPairs loads ground truth labels (grouped per sample,
// multi-label) plus one prediction source's per-sample label, for C9.
func loadClassificationPairs(ctx context.Context, deps Deps, datasetID, source, split string) ([]eval.ClassificationGT, []eval.ClassificationPred, error) {
	gtRows, err := deps.Store.AllAnnotations(ctx, datasetID, domain.GroundTruthSource, split)
	if err != nil {
		return nil, nil, err
	}
	labelsBySample := map[string][]string{}
	order := []string{}
	for _, a := range gtRows {
		if _, ok := labelsBySample[a.SampleID]; !ok {
			order = append(order, a.SampleID)
		}
		labelsBySample[a.SampleID] = append(labelsBySample[a.SampleID], a.CategoryName)
	}
	gts := make([]eval.ClassificationGT, 0, len(order))
	for _, sid := range order {
		gts = append(gts, eval.ClassificationGT{SampleID: sid, Labels: labelsBySample[sid]})
	}

	var preds []eval.ClassificationPred
	if source != "" {
		predRows, err := deps.Store.AllAnnotations(ctx, datasetID, source, split)
		if err != nil {
			return nil, nil, err
		}
		for _, a := range predRows {
			confidence := 1.0
			if a.Confidence != nil {
				confidence = *a.Confidence
			}
			preds = append(preds, eval.ClassificationPred{SampleID: a.SampleID, Label: a.CategoryName, Confidence: confidence})
		}
	}
	return gts, preds, nil
}
