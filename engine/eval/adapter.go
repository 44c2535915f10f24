package eval

import "github.com/visionset/lens/engine/domain"

// SplitAnnotations partitions a dataset's loaded annotation rows into
// ground truth and predictions, converting each into the matcher's GT/Pred
// shape. Predictions with a nil confidence are treated as 1.0 (§4.7).
func SplitAnnotations(rows []domain.Annotation) (gts []GT, preds []Pred) {
	for _, a := range rows {
		box := domain.BBox{X: a.BBoxX, Y: a.BBoxY, W: a.BBoxW, H: a.BBoxH}
		if !a.IsPrediction() {
			gts = append(gts, GT{ID: a.ID, SampleID: a.SampleID, Class: a.CategoryName, Box: box})
			continue
		}
		confidence := 1.0
		if a.Confidence != nil {
			confidence = *a.Confidence
		}
		preds = append(preds, Pred{ID: a.ID, SampleID: a.SampleID, Class: a.CategoryName, Box: box, Confidence: confidence})
	}
	return gts, preds
}
