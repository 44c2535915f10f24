// Package triage implements the worst-image composite scorer and the
// per-annotation triage overlay (C10).
package triage

import (
	"math"
	"sort"

	"github.com/visionset/lens/engine/eval"
)

// ImageScore is one sample's worst-image ranking inputs and composite.
type ImageScore struct {
	SampleID  string
	ErrCount  int
	Spread    float64
	Composite float64
}

const (
	errWeight    = 0.6
	spreadWeight = 0.4
)

// WorstImages ranks samples by §4.10's composite score: err(s) is the count
// of non-TP detections (hard_FP + label_error + FN); spread(s) is the
// population standard deviation of confidences across that sample's
// errored predictions (hard_FP + label_error only — FN carries no
// confidence), 0 when fewer than two such predictions exist. Both terms are
// normalised by their dataset-wide maximum (floored at 1 to avoid
// zero-division) before being combined 0.6/0.4. Returns the top n scores
// descending.
func WorstImages(gts []eval.GT, preds []eval.Pred, iouThreshold, confidenceThreshold float64, n int) []ImageScore {
	perSample := eval.CategorizeSamples(gts, preds, iouThreshold, confidenceThreshold)

	scores := make([]ImageScore, 0, len(perSample))
	maxErr, maxSpread := 1.0, 1.0
	for _, sid := range sortedSampleIDs(perSample) {
		outcomes := perSample[sid]
		errCount := 0
		var confidences []float64
		for _, o := range outcomes {
			if o.Type != eval.ErrorTP {
				errCount++
			}
			if o.Type == eval.ErrorHardFP || o.Type == eval.ErrorLabelError {
				confidences = append(confidences, o.Confidence)
			}
		}
		spread := populationStdDev(confidences)
		scores = append(scores, ImageScore{SampleID: sid, ErrCount: errCount, Spread: spread})
		if float64(errCount) > maxErr {
			maxErr = float64(errCount)
		}
		if spread > maxSpread {
			maxSpread = spread
		}
	}

	for i := range scores {
		errNorm := float64(scores[i].ErrCount) / maxErr
		spreadNorm := scores[i].Spread / maxSpread
		scores[i].Composite = errWeight*errNorm + spreadWeight*spreadNorm
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Composite > scores[j].Composite })
	if n > 0 && len(scores) > n {
		scores = scores[:n]
	}
	return scores
}

func populationStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func sortedSampleIDs(m map[string][]eval.PredOutcome) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
