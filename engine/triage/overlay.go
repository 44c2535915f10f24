package triage

import (
	"github.com/visionset/lens/engine/domain"
	"github.com/visionset/lens/engine/eval"
)

// AnnotationOverlay is one annotation row's auto-computed label plus any
// manual override, for the per-sample triage review view (§4.10).
type AnnotationOverlay struct {
	AnnotationID string
	AutoLabel    domain.TriageLabel
	MatchedID    string // paired annotation id, empty for fp/fn
	IoU          float64
	Override     *domain.TriageLabel
	DisplayLabel domain.TriageLabel // override if present, else AutoLabel
}

// autoLabelFor maps the C8 error taxonomy onto the domain's triage
// vocabulary: tp stays tp, hard_fp becomes fp, false_negative becomes fn,
// and label_error becomes mistake (the box localised something real but
// under the wrong class).
func autoLabelFor(t eval.ErrorType) domain.TriageLabel {
	switch t {
	case eval.ErrorHardFP:
		return domain.TriageFP
	case eval.ErrorFalseNegative:
		return domain.TriageFN
	case eval.ErrorLabelError:
		return domain.TriageMistake
	default:
		return domain.TriageTP
	}
}

// BuildSampleOverlay runs the C8 matcher for one sample's ground truth and
// predictions and produces an overlay entry for every annotation row
// involved (both the ground-truth and the prediction side of each pair),
// joined against any manual overrides.
func BuildSampleOverlay(gts []eval.GT, preds []eval.Pred, iouThreshold, confidenceThreshold float64, overrides map[string]domain.AnnotationTriageOverride) []AnnotationOverlay {
	perSample := eval.CategorizeSamples(gts, preds, iouThreshold, confidenceThreshold)

	var out []AnnotationOverlay
	for _, sid := range sortedSampleIDs(perSample) {
		for _, o := range perSample[sid] {
			switch o.Type {
			case eval.ErrorTP:
				out = append(out, overlayEntry(o.GTID, domain.TriageTP, o.PredID, o.IoU, overrides))
				out = append(out, overlayEntry(o.PredID, domain.TriageTP, o.GTID, o.IoU, overrides))
			case eval.ErrorLabelError:
				out = append(out, overlayEntry(o.GTID, domain.TriageMistake, o.PredID, o.IoU, overrides))
				out = append(out, overlayEntry(o.PredID, domain.TriageMistake, o.GTID, o.IoU, overrides))
			case eval.ErrorHardFP:
				out = append(out, overlayEntry(o.PredID, domain.TriageFP, "", 0, overrides))
			case eval.ErrorFalseNegative:
				out = append(out, overlayEntry(o.GTID, domain.TriageFN, "", 0, overrides))
			}
		}
	}
	return out
}

func overlayEntry(annotationID string, auto domain.TriageLabel, matchedID string, iou float64, overrides map[string]domain.AnnotationTriageOverride) AnnotationOverlay {
	display := auto
	var overridePtr *domain.TriageLabel
	if ov, ok := overrides[annotationID]; ok {
		label := ov.Label
		overridePtr = &label
		display = label
	}
	return AnnotationOverlay{AnnotationID: annotationID, AutoLabel: auto, MatchedID: matchedID, IoU: iou, Override: overridePtr, DisplayLabel: display}
}
