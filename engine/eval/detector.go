package eval

// ClassStats is the TP/FP/FN tally for one class at a single operating
// point (T, C).
type ClassStats struct {
	TP, FP, FN int
}

// backgroundClass is the reserved confusion-matrix row/column for
// unmatched predictions and unmatched ground truth (§4.7).
const backgroundClass = "background"

// ConfusionMatrix is a dense actual×predicted count table with a trailing
// background row and column.
type ConfusionMatrix struct {
	Classes []string // real classes, sorted; "background" is implicit, trailing
	Counts  map[string]map[string]int
}

// Increment bumps (actual, predicted), lazily allocating rows.
func (m *ConfusionMatrix) increment(actual, predicted string) {
	if m.Counts == nil {
		m.Counts = map[string]map[string]int{}
	}
	if m.Counts[actual] == nil {
		m.Counts[actual] = map[string]int{}
	}
	m.Counts[actual][predicted]++
}

// Cell returns the count at (actual, predicted), 0 if absent.
func (m ConfusionMatrix) Cell(actual, predicted string) int {
	row, ok := m.Counts[actual]
	if !ok {
		return 0
	}
	return row[predicted]
}

// DetectionResult is the full evaluation for one (dataset, prediction
// source) pair at a chosen operating point (T, C).
type DetectionResult struct {
	PerClass  map[string]ClassStats
	Curves    map[string]ClassCurve
	MAP50     float64
	MAP75     float64
	MAP5095   float64
	Confusion ConfusionMatrix
}

// Evaluate computes the full C7 detection evaluation at IoU threshold T and
// confidence threshold C.
func Evaluate(gts []GT, preds []Pred, iouThreshold, confidenceThreshold float64) DetectionResult {
	filtered := filterByConfidence(preds, confidenceThreshold)

	perClass := map[string]ClassStats{}
	var confusion ConfusionMatrix
	confusion.Classes = classesOf(gts, preds)

	gtBySample, predBySample, order := groupBySample(gts, filtered)
	for _, sid := range order {
		m := matchSample(gtBySample[sid], predBySample[sid], iouThreshold, true)
		for _, pair := range m.Matches {
			class := gtClassOf(gtBySample[sid], pair.GTID)
			s := perClass[class]
			s.TP++
			perClass[class] = s
			confusion.increment(class, class)
		}
		for _, p := range m.UnmatchedPreds {
			s := perClass[p.Class]
			s.FP++
			perClass[p.Class] = s
		}
		for _, g := range m.UnmatchedGTs {
			s := perClass[g.Class]
			s.FN++
			perClass[g.Class] = s
		}

		// Confusion cells beyond the diagonal come from a second cross-class
		// pass over what pass one left unmatched (the same skeleton
		// CategorizeSamples uses for label_error): a high-IoU wrong-class
		// pair becomes confusion(gt_class, pred_class) instead of routing
		// both sides through background.
		cross := matchSample(m.UnmatchedGTs, m.UnmatchedPreds, iouThreshold, false)
		for _, pair := range cross.Matches {
			gtClass := gtClassOf(m.UnmatchedGTs, pair.GTID)
			predClass := predClassOf(m.UnmatchedPreds, pair.PredID)
			confusion.increment(gtClass, predClass)
		}
		for _, p := range cross.UnmatchedPreds {
			confusion.increment(backgroundClass, p.Class)
		}
		for _, g := range cross.UnmatchedGTs {
			confusion.increment(g.Class, backgroundClass)
		}
	}

	map5095 := 0.0
	for _, t := range IoUThresholds {
		map5095 += meanAP(gts, preds, t)
	}
	map5095 /= float64(len(IoUThresholds))

	return DetectionResult{
		PerClass:  perClass,
		Curves:    Curves(gts, preds, iouThreshold),
		MAP50:     meanAP(gts, preds, 0.50),
		MAP75:     meanAP(gts, preds, 0.75),
		MAP5095:   map5095,
		Confusion: confusion,
	}
}

// ConfusionCellSamples drill down: given (actual, predicted), re-run
// per-sample matching at (T, C) and return the sample ids that contribute
// at least one detection to that cell. Background is treated symmetrically
// on either axis.
func ConfusionCellSamples(gts []GT, preds []Pred, iouThreshold, confidenceThreshold float64, actual, predicted string) []string {
	filtered := filterByConfidence(preds, confidenceThreshold)
	gtBySample, predBySample, order := groupBySample(gts, filtered)

	var samples []string
	for _, sid := range order {
		m := matchSample(gtBySample[sid], predBySample[sid], iouThreshold, true)
		hit := false
		for _, pair := range m.Matches {
			class := gtClassOf(gtBySample[sid], pair.GTID)
			if actual == class && predicted == class {
				hit = true
			}
		}

		cross := matchSample(m.UnmatchedGTs, m.UnmatchedPreds, iouThreshold, false)
		for _, pair := range cross.Matches {
			gtClass := gtClassOf(m.UnmatchedGTs, pair.GTID)
			predClass := predClassOf(m.UnmatchedPreds, pair.PredID)
			if actual == gtClass && predicted == predClass {
				hit = true
			}
		}
		if actual == backgroundClass {
			for _, p := range cross.UnmatchedPreds {
				if p.Class == predicted {
					hit = true
				}
			}
		}
		if predicted == backgroundClass {
			for _, g := range cross.UnmatchedGTs {
				if g.Class == actual {
					hit = true
				}
			}
		}
		if hit {
			samples = append(samples, sid)
		}
	}
	return samples
}
