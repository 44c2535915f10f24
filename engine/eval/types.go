// Package eval implements the detection evaluator (C7), error categoriser
// (C8), and classification evaluator (C9): IoU matching, PR curves, mAP,
// confusion matrices, and per-detection error taxonomy, per §4.7–4.9.
package eval

import "github.com/visionset/lens/engine/domain"

// GT is one ground-truth box within a single sample.
type GT struct {
	ID       string
	SampleID string
	Class    string
	Box      domain.BBox
}

// Pred is one prediction box within a single sample.
type Pred struct {
	ID         string
	SampleID   string
	Class      string
	Box        domain.BBox
	Confidence float64
}

// IoUThresholds is the ten thresholds mAP@50:95 averages over (§4.7).
var IoUThresholds = func() []float64 {
	out := make([]float64, 10)
	for i := range out {
		out[i] = 0.50 + float64(i)*0.05
	}
	return out
}()
